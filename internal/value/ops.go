package value

import (
	"fmt"
	"math"
	"strings"
)

func isNumeric(v Value) bool {
	return v.Type == VAL_INT || v.Type == VAL_FLOAT || v.Type == VAL_BOOL
}

func asInt(v Value) int64 {
	if v.Type == VAL_BOOL {
		if v.AsBool {
			return 1
		}
		return 0
	}
	return v.AsInt
}

func asFloat(v Value) float64 {
	switch v.Type {
	case VAL_FLOAT:
		return v.AsFloat
	case VAL_BOOL:
		if v.AsBool {
			return 1
		}
		return 0
	default:
		return float64(v.AsInt)
	}
}

func bothInt(a, b Value) bool {
	return a.Type != VAL_FLOAT && b.Type != VAL_FLOAT
}

func typeErr(op string, a, b Value) error {
	return fmt.Errorf("unsupported operand type(s) for %s: '%s' and '%s'", op, TypeName(a), TypeName(b))
}

func Add(a, b Value) (Value, error) {
	if isNumeric(a) && isNumeric(b) {
		if bothInt(a, b) {
			return NewInt(asInt(a) + asInt(b)), nil
		}
		return NewFloat(asFloat(a) + asFloat(b)), nil
	}
	if a.Type == VAL_OBJ && b.Type == VAL_OBJ {
		if sa, ok := a.Obj.(string); ok {
			if sb, ok := b.Obj.(string); ok {
				return NewString(sa + sb), nil
			}
		}
		if la, ok := a.Obj.(*ObjList); ok {
			if lb, ok := b.Obj.(*ObjList); ok {
				out := make([]Value, 0, len(la.Elements)+len(lb.Elements))
				out = append(out, la.Elements...)
				out = append(out, lb.Elements...)
				return NewList(out), nil
			}
		}
		if ta, ok := a.Obj.(*ObjTuple); ok {
			if tb, ok := b.Obj.(*ObjTuple); ok {
				out := make([]Value, 0, len(ta.Elements)+len(tb.Elements))
				out = append(out, ta.Elements...)
				out = append(out, tb.Elements...)
				return NewTuple(out), nil
			}
		}
	}
	return NewNone(), typeErr("+", a, b)
}

func Sub(a, b Value) (Value, error) {
	if isNumeric(a) && isNumeric(b) {
		if bothInt(a, b) {
			return NewInt(asInt(a) - asInt(b)), nil
		}
		return NewFloat(asFloat(a) - asFloat(b)), nil
	}
	return NewNone(), typeErr("-", a, b)
}

func repeat(elements []Value, n int64) []Value {
	if n < 0 {
		n = 0
	}
	out := make([]Value, 0, int(n)*len(elements))
	for i := int64(0); i < n; i++ {
		out = append(out, elements...)
	}
	return out
}

func Mul(a, b Value) (Value, error) {
	if isNumeric(a) && isNumeric(b) {
		if bothInt(a, b) {
			return NewInt(asInt(a) * asInt(b)), nil
		}
		return NewFloat(asFloat(a) * asFloat(b)), nil
	}
	// sequence repetition, either operand order
	if a.Type == VAL_OBJ && isNumeric(b) && b.Type != VAL_FLOAT {
		a, b = b, a
	} else if !(b.Type == VAL_OBJ && isNumeric(a) && a.Type != VAL_FLOAT) {
		return NewNone(), typeErr("*", a, b)
	}
	n := asInt(a)
	switch o := b.Obj.(type) {
	case string:
		if n < 0 {
			n = 0
		}
		return NewString(strings.Repeat(o, int(n))), nil
	case *ObjList:
		return NewList(repeat(o.Elements, n)), nil
	case *ObjTuple:
		return NewTuple(repeat(o.Elements, n)), nil
	}
	return NewNone(), typeErr("*", a, b)
}

func TrueDiv(a, b Value) (Value, error) {
	if !isNumeric(a) || !isNumeric(b) {
		return NewNone(), typeErr("/", a, b)
	}
	d := asFloat(b)
	if d == 0 {
		return NewNone(), fmt.Errorf("division by zero")
	}
	return NewFloat(asFloat(a) / d), nil
}

// floorDivInt floors toward negative infinity.
func floorDivInt(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func FloorDiv(a, b Value) (Value, error) {
	if !isNumeric(a) || !isNumeric(b) {
		return NewNone(), typeErr("//", a, b)
	}
	if bothInt(a, b) {
		d := asInt(b)
		if d == 0 {
			return NewNone(), fmt.Errorf("integer division or modulo by zero")
		}
		return NewInt(floorDivInt(asInt(a), d)), nil
	}
	d := asFloat(b)
	if d == 0 {
		return NewNone(), fmt.Errorf("float floor division by zero")
	}
	return NewFloat(math.Floor(asFloat(a) / d)), nil
}

func Mod(a, b Value) (Value, error) {
	if !isNumeric(a) || !isNumeric(b) {
		return NewNone(), typeErr("%", a, b)
	}
	if bothInt(a, b) {
		d := asInt(b)
		if d == 0 {
			return NewNone(), fmt.Errorf("integer division or modulo by zero")
		}
		m := asInt(a) % d
		if m != 0 && ((m < 0) != (d < 0)) {
			m += d
		}
		return NewInt(m), nil
	}
	d := asFloat(b)
	if d == 0 {
		return NewNone(), fmt.Errorf("float modulo")
	}
	m := math.Mod(asFloat(a), d)
	if m != 0 && ((m < 0) != (d < 0)) {
		m += d
	}
	return NewFloat(m), nil
}

func Pow(a, b Value) (Value, error) {
	if !isNumeric(a) || !isNumeric(b) {
		return NewNone(), typeErr("** or pow()", a, b)
	}
	if bothInt(a, b) && asInt(b) >= 0 {
		base, exp := asInt(a), asInt(b)
		result := int64(1)
		for i := int64(0); i < exp; i++ {
			result *= base
		}
		return NewInt(result), nil
	}
	return NewFloat(math.Pow(asFloat(a), asFloat(b))), nil
}

func intBinop(op string, a, b Value, fn func(x, y int64) int64) (Value, error) {
	if a.Type == VAL_FLOAT || b.Type == VAL_FLOAT || !isNumeric(a) || !isNumeric(b) {
		return NewNone(), typeErr(op, a, b)
	}
	return NewInt(fn(asInt(a), asInt(b))), nil
}

func LShift(a, b Value) (Value, error) {
	return intBinop("<<", a, b, func(x, y int64) int64 { return x << uint64(y) })
}

func RShift(a, b Value) (Value, error) {
	return intBinop(">>", a, b, func(x, y int64) int64 { return x >> uint64(y) })
}

func BitAnd(a, b Value) (Value, error) {
	return intBinop("&", a, b, func(x, y int64) int64 { return x & y })
}

func BitOr(a, b Value) (Value, error) {
	return intBinop("|", a, b, func(x, y int64) int64 { return x | y })
}

func BitXor(a, b Value) (Value, error) {
	return intBinop("^", a, b, func(x, y int64) int64 { return x ^ y })
}

func Neg(v Value) (Value, error) {
	switch {
	case v.Type == VAL_FLOAT:
		return NewFloat(-v.AsFloat), nil
	case isNumeric(v):
		return NewInt(-asInt(v)), nil
	}
	return NewNone(), fmt.Errorf("bad operand type for unary -: '%s'", TypeName(v))
}

func Pos(v Value) (Value, error) {
	switch {
	case v.Type == VAL_FLOAT:
		return NewFloat(v.AsFloat), nil
	case isNumeric(v):
		return NewInt(asInt(v)), nil
	}
	return NewNone(), fmt.Errorf("bad operand type for unary +: '%s'", TypeName(v))
}

func Invert(v Value) (Value, error) {
	if isNumeric(v) && v.Type != VAL_FLOAT {
		return NewInt(^asInt(v)), nil
	}
	return NewNone(), fmt.Errorf("bad operand type for unary ~: '%s'", TypeName(v))
}

func Not(v Value) Value {
	return NewBool(!Truthy(v))
}

// Truthy implements the truthiness test: zero, empty and None are false.
func Truthy(v Value) bool {
	switch v.Type {
	case VAL_NONE:
		return false
	case VAL_BOOL:
		return v.AsBool
	case VAL_INT:
		return v.AsInt != 0
	case VAL_FLOAT:
		return v.AsFloat != 0
	case VAL_OBJ:
		switch o := v.Obj.(type) {
		case string:
			return len(o) > 0
		case *ObjList:
			return len(o.Elements) > 0
		case *ObjTuple:
			return len(o.Elements) > 0
		case *ObjDict:
			return o.Len() > 0
		case *ObjSet:
			return o.Len() > 0
		case *ObjRange:
			return o.Len() > 0
		}
	}
	return true
}

// Equal is the == capability: numeric cross-type equality, deep equality
// for containers, reference equality otherwise.
func Equal(a, b Value) bool {
	if isNumeric(a) && isNumeric(b) {
		if bothInt(a, b) {
			return asInt(a) == asInt(b)
		}
		return asFloat(a) == asFloat(b)
	}
	if a.Type == VAL_NONE && b.Type == VAL_NONE {
		return true
	}
	if a.Type != b.Type {
		return false
	}
	if a.Type != VAL_OBJ {
		return a.Obj == b.Obj
	}
	switch oa := a.Obj.(type) {
	case string:
		sb, ok := b.Obj.(string)
		return ok && oa == sb
	case *ObjList:
		lb, ok := b.Obj.(*ObjList)
		return ok && elementsEqual(oa.Elements, lb.Elements)
	case *ObjTuple:
		tb, ok := b.Obj.(*ObjTuple)
		return ok && elementsEqual(oa.Elements, tb.Elements)
	case *ObjDict:
		db, ok := b.Obj.(*ObjDict)
		if !ok || oa.Len() != db.Len() {
			return false
		}
		for _, e := range oa.Entries() {
			other, found, err := db.Get(e.Key)
			if err != nil || !found || !Equal(e.Value, other) {
				return false
			}
		}
		return true
	case *ObjSet:
		sb, ok := b.Obj.(*ObjSet)
		if !ok || oa.Len() != sb.Len() {
			return false
		}
		for _, e := range oa.Items() {
			found, err := sb.Contains(e)
			if err != nil || !found {
				return false
			}
		}
		return true
	}
	return a.Obj == b.Obj
}

func elementsEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Less implements the < capability for orderable values.
func Less(a, b Value) (bool, error) {
	if isNumeric(a) && isNumeric(b) {
		if bothInt(a, b) {
			return asInt(a) < asInt(b), nil
		}
		return asFloat(a) < asFloat(b), nil
	}
	if a.Type == VAL_OBJ && b.Type == VAL_OBJ {
		if sa, ok := a.Obj.(string); ok {
			if sb, ok := b.Obj.(string); ok {
				return sa < sb, nil
			}
		}
		var ea, eb []Value
		if la, ok := a.Obj.(*ObjList); ok {
			if lb, ok := b.Obj.(*ObjList); ok {
				ea, eb = la.Elements, lb.Elements
			}
		}
		if ta, ok := a.Obj.(*ObjTuple); ok {
			if tb, ok := b.Obj.(*ObjTuple); ok {
				ea, eb = ta.Elements, tb.Elements
			}
		}
		if ea != nil || eb != nil {
			for i := 0; i < len(ea) && i < len(eb); i++ {
				if Equal(ea[i], eb[i]) {
					continue
				}
				return Less(ea[i], eb[i])
			}
			return len(ea) < len(eb), nil
		}
	}
	return false, fmt.Errorf("'<' not supported between instances of '%s' and '%s'", TypeName(a), TypeName(b))
}

// Compare dispatches one of the six comparison operators.
func Compare(op string, a, b Value) (Value, error) {
	switch op {
	case "==":
		return NewBool(Equal(a, b)), nil
	case "!=":
		return NewBool(!Equal(a, b)), nil
	case "<":
		r, err := Less(a, b)
		return NewBool(r), err
	case "<=":
		if Equal(a, b) {
			return NewBool(true), nil
		}
		r, err := Less(a, b)
		return NewBool(r), err
	case ">":
		if Equal(a, b) {
			return NewBool(false), nil
		}
		r, err := Less(b, a)
		return NewBool(r), err
	case ">=":
		if Equal(a, b) {
			return NewBool(true), nil
		}
		r, err := Less(b, a)
		return NewBool(r), err
	}
	return NewNone(), fmt.Errorf("unknown comparison operator %q", op)
}

// Contains is the membership test: item in container.
func Contains(item, container Value) (bool, error) {
	if container.Type != VAL_OBJ {
		return false, fmt.Errorf("argument of type '%s' is not iterable", TypeName(container))
	}
	switch o := container.Obj.(type) {
	case string:
		s, ok := item.Obj.(string)
		if item.Type != VAL_OBJ || !ok {
			return false, fmt.Errorf("'in <string>' requires string as left operand, not %s", TypeName(item))
		}
		return strings.Contains(o, s), nil
	case *ObjList:
		for _, el := range o.Elements {
			if Equal(el, item) {
				return true, nil
			}
		}
		return false, nil
	case *ObjTuple:
		for _, el := range o.Elements {
			if Equal(el, item) {
				return true, nil
			}
		}
		return false, nil
	case *ObjSet:
		return o.Contains(item)
	case *ObjDict:
		_, found, err := o.Get(item)
		return found, err
	case *ObjRange:
		if !isNumeric(item) || item.Type == VAL_FLOAT {
			return false, nil
		}
		n := asInt(item)
		if o.Step > 0 {
			return n >= o.Start && n < o.Stop && (n-o.Start)%o.Step == 0, nil
		}
		return n <= o.Start && n > o.Stop && (o.Start-n)%(-o.Step) == 0, nil
	}
	return false, fmt.Errorf("argument of type '%s' is not iterable", TypeName(container))
}

// Is is the identity test. Heap objects compare by reference, scalars by
// value and type.
func Is(a, b Value) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case VAL_NONE:
		return true
	case VAL_BOOL:
		return a.AsBool == b.AsBool
	case VAL_INT:
		return a.AsInt == b.AsInt
	case VAL_FLOAT:
		return a.AsFloat == b.AsFloat
	}
	return a.Obj == b.Obj
}

// Len is the length capability.
func Len(v Value) (int64, error) {
	if v.Type == VAL_OBJ {
		switch o := v.Obj.(type) {
		case string:
			return int64(len([]rune(o))), nil
		case *ObjList:
			return int64(len(o.Elements)), nil
		case *ObjTuple:
			return int64(len(o.Elements)), nil
		case *ObjDict:
			return int64(o.Len()), nil
		case *ObjSet:
			return int64(o.Len()), nil
		case *ObjRange:
			return o.Len(), nil
		}
	}
	return 0, fmt.Errorf("object of type '%s' has no len()", TypeName(v))
}
