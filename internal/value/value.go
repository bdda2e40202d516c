package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type ValueType int

const (
	VAL_NONE ValueType = iota
	VAL_BOOL
	VAL_INT
	VAL_FLOAT
	VAL_OBJ // strings, containers, code objects and other heap data
	VAL_FUNCTION
	VAL_NATIVE
)

// Value is the single datum every stack slot and name binding holds.
// Scalars are unboxed; everything else lives behind Obj.
type Value struct {
	Type    ValueType
	AsBool  bool
	AsInt   int64
	AsFloat float64
	Obj     interface{}
}

// NativeFunc is a host function exposed to interpreted code.
type NativeFunc func(args []Value, kwargs map[string]Value) (Value, error)

type ObjNative struct {
	Name string
	Fn   NativeFunc
}

func (on *ObjNative) String() string {
	return fmt.Sprintf("<built-in function %s>", on.Name)
}

// ObjFunction is a callable built by the make-function instruction.
// Code holds the *code.Object it wraps; it is declared as interface{} so
// the value package does not depend on the code package (which depends on
// us for instruction arguments). Snapshot is a copy of the defining
// frame's locals taken at construction time; Globals and Builtins are
// shared by reference with the defining frame.
type ObjFunction struct {
	Name     string
	Code     interface{}
	Defaults []Value
	Snapshot map[string]Value
	Globals  map[string]Value
	Builtins map[string]Value
}

func (of *ObjFunction) String() string {
	return fmt.Sprintf("<function %s>", of.Name)
}

type ObjList struct {
	Elements []Value
}

type ObjTuple struct {
	Elements []Value
}

// ObjDict preserves insertion order. Keys are reduced to comparable hash
// keys; the original key Value is kept in the entry for iteration.
type ObjDict struct {
	entries map[interface{}]*DictEntry
	order   []interface{}
}

type DictEntry struct {
	Key   Value
	Value Value
}

func NewDictObj() *ObjDict {
	return &ObjDict{entries: make(map[interface{}]*DictEntry)}
}

func (d *ObjDict) Set(key, v Value) error {
	hk, err := hashKey(key)
	if err != nil {
		return err
	}
	if e, ok := d.entries[hk]; ok {
		e.Value = v
		return nil
	}
	d.entries[hk] = &DictEntry{Key: key, Value: v}
	d.order = append(d.order, hk)
	return nil
}

func (d *ObjDict) Get(key Value) (Value, bool, error) {
	hk, err := hashKey(key)
	if err != nil {
		return NewNone(), false, err
	}
	e, ok := d.entries[hk]
	if !ok {
		return NewNone(), false, nil
	}
	return e.Value, true, nil
}

func (d *ObjDict) Delete(key Value) (bool, error) {
	hk, err := hashKey(key)
	if err != nil {
		return false, err
	}
	if _, ok := d.entries[hk]; !ok {
		return false, nil
	}
	delete(d.entries, hk)
	for i, k := range d.order {
		if k == hk {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (d *ObjDict) Len() int {
	return len(d.entries)
}

// Entries returns key/value pairs in insertion order.
func (d *ObjDict) Entries() []DictEntry {
	out := make([]DictEntry, 0, len(d.order))
	for _, hk := range d.order {
		out = append(out, *d.entries[hk])
	}
	return out
}

func (d *ObjDict) Keys() []Value {
	out := make([]Value, 0, len(d.order))
	for _, hk := range d.order {
		out = append(out, d.entries[hk].Key)
	}
	return out
}

func (d *ObjDict) Values() []Value {
	out := make([]Value, 0, len(d.order))
	for _, hk := range d.order {
		out = append(out, d.entries[hk].Value)
	}
	return out
}

// ObjSet preserves insertion order for deterministic iteration.
type ObjSet struct {
	entries map[interface{}]Value
	order   []interface{}
}

func NewSetObj() *ObjSet {
	return &ObjSet{entries: make(map[interface{}]Value)}
}

func (s *ObjSet) Add(v Value) error {
	hk, err := hashKey(v)
	if err != nil {
		return err
	}
	if _, ok := s.entries[hk]; ok {
		return nil
	}
	s.entries[hk] = v
	s.order = append(s.order, hk)
	return nil
}

func (s *ObjSet) Contains(v Value) (bool, error) {
	hk, err := hashKey(v)
	if err != nil {
		return false, err
	}
	_, ok := s.entries[hk]
	return ok, nil
}

func (s *ObjSet) Len() int {
	return len(s.entries)
}

func (s *ObjSet) Items() []Value {
	out := make([]Value, 0, len(s.order))
	for _, hk := range s.order {
		out = append(out, s.entries[hk])
	}
	return out
}

// ObjModule is the opaque result of the import operation: a named bag of
// attributes supplied by the host.
type ObjModule struct {
	Name  string
	Attrs map[string]Value
}

func NewModuleObj(name string) *ObjModule {
	return &ObjModule{Name: name, Attrs: make(map[string]Value)}
}

func (m *ObjModule) String() string {
	return fmt.Sprintf("<module %s>", m.Name)
}

// ObjExceptionType is a raisable exception class; calling it constructs an
// ObjException instance.
type ObjExceptionType struct {
	Name string
}

func (et *ObjExceptionType) String() string {
	return fmt.Sprintf("<exception type %s>", et.Name)
}

type ObjException struct {
	ExcType *ObjExceptionType
	Args    []Value
}

func (e *ObjException) String() string {
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = Repr(a)
	}
	return fmt.Sprintf("%s(%s)", e.ExcType.Name, strings.Join(parts, ", "))
}

type ObjSlice struct {
	Start Value
	Stop  Value
	Step  Value
}

func (s *ObjSlice) String() string {
	return fmt.Sprintf("slice(%s, %s, %s)", Repr(s.Start), Repr(s.Stop), Repr(s.Step))
}

type ObjRange struct {
	Start int64
	Stop  int64
	Step  int64
}

func (r *ObjRange) Len() int64 {
	if r.Step > 0 {
		if r.Stop <= r.Start {
			return 0
		}
		return (r.Stop - r.Start + r.Step - 1) / r.Step
	}
	if r.Stop >= r.Start {
		return 0
	}
	return (r.Start - r.Stop - r.Step - 1) / (-r.Step)
}

func (r *ObjRange) String() string {
	if r.Step == 1 {
		return fmt.Sprintf("range(%d, %d)", r.Start, r.Stop)
	}
	return fmt.Sprintf("range(%d, %d, %d)", r.Start, r.Stop, r.Step)
}

// hashKey reduces a Value to a comparable key for dict and set storage.
// Bools and integral floats collapse onto their integer key, matching
// numeric-equality hashing.
func hashKey(v Value) (interface{}, error) {
	switch v.Type {
	case VAL_NONE:
		return noneKey{}, nil
	case VAL_BOOL:
		if v.AsBool {
			return int64(1), nil
		}
		return int64(0), nil
	case VAL_INT:
		return v.AsInt, nil
	case VAL_FLOAT:
		f := v.AsFloat
		if f == math.Trunc(f) && f >= math.MinInt64 && f <= math.MaxInt64 {
			return int64(f), nil
		}
		return f, nil
	case VAL_OBJ:
		switch o := v.Obj.(type) {
		case string:
			return o, nil
		case *ObjTuple:
			var b strings.Builder
			b.WriteString("t(")
			for _, el := range o.Elements {
				hk, err := hashKey(el)
				if err != nil {
					return nil, err
				}
				fmt.Fprintf(&b, "%T=%v;", hk, hk)
			}
			b.WriteString(")")
			return tupleKey(b.String()), nil
		}
	}
	return nil, fmt.Errorf("unhashable type: '%s'", TypeName(v))
}

type noneKey struct{}

type tupleKey string

// TypeName reports the user-facing type of a value.
func TypeName(v Value) string {
	switch v.Type {
	case VAL_NONE:
		return "NoneType"
	case VAL_BOOL:
		return "bool"
	case VAL_INT:
		return "int"
	case VAL_FLOAT:
		return "float"
	case VAL_FUNCTION:
		return "function"
	case VAL_NATIVE:
		return "builtin_function_or_method"
	case VAL_OBJ:
		switch o := v.Obj.(type) {
		case string:
			return "str"
		case *ObjList:
			return "list"
		case *ObjTuple:
			return "tuple"
		case *ObjDict:
			return "dict"
		case *ObjSet:
			return "set"
		case *ObjModule:
			return "module"
		case *ObjExceptionType:
			return "type"
		case *ObjException:
			return o.ExcType.Name
		case *ObjSlice:
			return "slice"
		case *ObjRange:
			return "range"
		case Iterator:
			return "iterator"
		default:
			return fmt.Sprintf("%T", v.Obj)
		}
	}
	return "unknown"
}

// Str renders a value the way print does.
func Str(v Value) string {
	if v.Type == VAL_OBJ {
		if s, ok := v.Obj.(string); ok {
			return s
		}
	}
	return Repr(v)
}

// Repr renders a value the way an interactive echo would: strings quoted,
// containers recursively.
func Repr(v Value) string {
	switch v.Type {
	case VAL_NONE:
		return "None"
	case VAL_BOOL:
		if v.AsBool {
			return "True"
		}
		return "False"
	case VAL_INT:
		return strconv.FormatInt(v.AsInt, 10)
	case VAL_FLOAT:
		s := strconv.FormatFloat(v.AsFloat, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") && !strings.Contains(s, "Inf") && !strings.Contains(s, "NaN") {
			s += ".0"
		}
		return s
	case VAL_FUNCTION:
		return v.Obj.(*ObjFunction).String()
	case VAL_NATIVE:
		return v.Obj.(*ObjNative).String()
	case VAL_OBJ:
		switch o := v.Obj.(type) {
		case string:
			return "'" + strings.ReplaceAll(o, "'", "\\'") + "'"
		case *ObjList:
			parts := make([]string, len(o.Elements))
			for i, el := range o.Elements {
				parts[i] = Repr(el)
			}
			return "[" + strings.Join(parts, ", ") + "]"
		case *ObjTuple:
			parts := make([]string, len(o.Elements))
			for i, el := range o.Elements {
				parts[i] = Repr(el)
			}
			if len(parts) == 1 {
				return "(" + parts[0] + ",)"
			}
			return "(" + strings.Join(parts, ", ") + ")"
		case *ObjDict:
			parts := make([]string, 0, o.Len())
			for _, e := range o.Entries() {
				parts = append(parts, Repr(e.Key)+": "+Repr(e.Value))
			}
			return "{" + strings.Join(parts, ", ") + "}"
		case *ObjSet:
			if o.Len() == 0 {
				return "set()"
			}
			parts := make([]string, 0, o.Len())
			for _, e := range o.Items() {
				parts = append(parts, Repr(e))
			}
			return "{" + strings.Join(parts, ", ") + "}"
		case fmt.Stringer:
			return o.String()
		default:
			return fmt.Sprintf("<%T>", o)
		}
	}
	return "unknown"
}

func (v Value) String() string {
	return Str(v)
}

// Helper constructors
func NewInt(v int64) Value {
	return Value{Type: VAL_INT, AsInt: v}
}

func NewFloat(v float64) Value {
	return Value{Type: VAL_FLOAT, AsFloat: v}
}

func NewBool(v bool) Value {
	return Value{Type: VAL_BOOL, AsBool: v}
}

func NewNone() Value {
	return Value{Type: VAL_NONE}
}

func NewString(v string) Value {
	return Value{Type: VAL_OBJ, Obj: v}
}

func NewList(elements []Value) Value {
	return Value{Type: VAL_OBJ, Obj: &ObjList{Elements: elements}}
}

func NewTuple(elements []Value) Value {
	return Value{Type: VAL_OBJ, Obj: &ObjTuple{Elements: elements}}
}

func NewDict() Value {
	return Value{Type: VAL_OBJ, Obj: NewDictObj()}
}

func NewSet() Value {
	return Value{Type: VAL_OBJ, Obj: NewSetObj()}
}

func NewRange(start, stop, step int64) Value {
	return Value{Type: VAL_OBJ, Obj: &ObjRange{Start: start, Stop: stop, Step: step}}
}

func NewSlice(start, stop, step Value) Value {
	return Value{Type: VAL_OBJ, Obj: &ObjSlice{Start: start, Stop: stop, Step: step}}
}

func NewNative(name string, fn NativeFunc) Value {
	return Value{Type: VAL_NATIVE, Obj: &ObjNative{Name: name, Fn: fn}}
}

func NewFunctionValue(fn *ObjFunction) Value {
	return Value{Type: VAL_FUNCTION, Obj: fn}
}

func NewExceptionType(name string) Value {
	return Value{Type: VAL_OBJ, Obj: &ObjExceptionType{Name: name}}
}

func NewException(excType *ObjExceptionType, args []Value) Value {
	return Value{Type: VAL_OBJ, Obj: &ObjException{ExcType: excType, Args: args}}
}

func NewModule(m *ObjModule) Value {
	return Value{Type: VAL_OBJ, Obj: m}
}

// NewObject wraps arbitrary host data, such as code objects appearing as
// instruction constants.
func NewObject(o interface{}) Value {
	return Value{Type: VAL_OBJ, Obj: o}
}
