package value

import (
	"fmt"
	"strings"
)

// GetAttr is the attribute-get capability. Modules expose their attribute
// bag; the built-in container types expose a small method surface as bound
// natives.
func GetAttr(v Value, name string) (Value, error) {
	if v.Type == VAL_OBJ {
		switch o := v.Obj.(type) {
		case *ObjModule:
			if attr, ok := o.Attrs[name]; ok {
				return attr, nil
			}
			return NewNone(), fmt.Errorf("module '%s' has no attribute '%s'", o.Name, name)
		case *ObjException:
			if name == "args" {
				return NewTuple(o.Args), nil
			}
		case *ObjExceptionType:
			if name == "__name__" {
				return NewString(o.Name), nil
			}
		case *ObjList:
			if m, ok := listMethod(o, name); ok {
				return m, nil
			}
		case *ObjDict:
			if m, ok := dictMethod(o, name); ok {
				return m, nil
			}
		case *ObjSet:
			if m, ok := setMethod(o, name); ok {
				return m, nil
			}
		case string:
			if m, ok := stringMethod(o, name); ok {
				return m, nil
			}
		}
	}
	return NewNone(), fmt.Errorf("'%s' object has no attribute '%s'", TypeName(v), name)
}

// SetAttr is the attribute-set capability. Only modules are mutable this
// way in the closed value model.
func SetAttr(v Value, name string, attr Value) error {
	if v.Type == VAL_OBJ {
		if o, ok := v.Obj.(*ObjModule); ok {
			o.Attrs[name] = attr
			return nil
		}
	}
	return fmt.Errorf("'%s' object has no settable attribute '%s'", TypeName(v), name)
}

// DelAttr is the attribute-delete capability.
func DelAttr(v Value, name string) error {
	if v.Type == VAL_OBJ {
		if o, ok := v.Obj.(*ObjModule); ok {
			if _, found := o.Attrs[name]; !found {
				return fmt.Errorf("module '%s' has no attribute '%s'", o.Name, name)
			}
			delete(o.Attrs, name)
			return nil
		}
	}
	return fmt.Errorf("'%s' object has no deletable attribute '%s'", TypeName(v), name)
}

func noKwargs(name string, kwargs map[string]Value) error {
	if len(kwargs) > 0 {
		return fmt.Errorf("%s() takes no keyword arguments", name)
	}
	return nil
}

func listMethod(o *ObjList, name string) (Value, bool) {
	switch name {
	case "append":
		return NewNative("list.append", func(args []Value, kwargs map[string]Value) (Value, error) {
			if err := noKwargs("append", kwargs); err != nil {
				return NewNone(), err
			}
			if len(args) != 1 {
				return NewNone(), fmt.Errorf("append() takes exactly one argument (%d given)", len(args))
			}
			o.Elements = append(o.Elements, args[0])
			return NewNone(), nil
		}), true
	case "extend":
		return NewNative("list.extend", func(args []Value, kwargs map[string]Value) (Value, error) {
			if err := noKwargs("extend", kwargs); err != nil {
				return NewNone(), err
			}
			if len(args) != 1 {
				return NewNone(), fmt.Errorf("extend() takes exactly one argument (%d given)", len(args))
			}
			items, err := Collect(args[0])
			if err != nil {
				return NewNone(), err
			}
			o.Elements = append(o.Elements, items...)
			return NewNone(), nil
		}), true
	case "pop":
		return NewNative("list.pop", func(args []Value, kwargs map[string]Value) (Value, error) {
			if err := noKwargs("pop", kwargs); err != nil {
				return NewNone(), err
			}
			if len(o.Elements) == 0 {
				return NewNone(), fmt.Errorf("pop from empty list")
			}
			i := len(o.Elements) - 1
			if len(args) == 1 {
				var err error
				i, err = normIndex(asInt(args[0]), len(o.Elements))
				if err != nil {
					return NewNone(), fmt.Errorf("pop index out of range")
				}
			}
			v := o.Elements[i]
			o.Elements = append(o.Elements[:i], o.Elements[i+1:]...)
			return v, nil
		}), true
	}
	return NewNone(), false
}

func dictMethod(o *ObjDict, name string) (Value, bool) {
	switch name {
	case "get":
		return NewNative("dict.get", func(args []Value, kwargs map[string]Value) (Value, error) {
			if err := noKwargs("get", kwargs); err != nil {
				return NewNone(), err
			}
			if len(args) < 1 || len(args) > 2 {
				return NewNone(), fmt.Errorf("get expected at most 2 arguments, got %d", len(args))
			}
			v, found, err := o.Get(args[0])
			if err != nil {
				return NewNone(), err
			}
			if !found {
				if len(args) == 2 {
					return args[1], nil
				}
				return NewNone(), nil
			}
			return v, nil
		}), true
	case "keys":
		return NewNative("dict.keys", func(args []Value, kwargs map[string]Value) (Value, error) {
			return NewList(o.Keys()), nil
		}), true
	case "values":
		return NewNative("dict.values", func(args []Value, kwargs map[string]Value) (Value, error) {
			return NewList(o.Values()), nil
		}), true
	case "items":
		return NewNative("dict.items", func(args []Value, kwargs map[string]Value) (Value, error) {
			out := make([]Value, 0, o.Len())
			for _, e := range o.Entries() {
				out = append(out, NewTuple([]Value{e.Key, e.Value}))
			}
			return NewList(out), nil
		}), true
	}
	return NewNone(), false
}

func setMethod(o *ObjSet, name string) (Value, bool) {
	switch name {
	case "add":
		return NewNative("set.add", func(args []Value, kwargs map[string]Value) (Value, error) {
			if len(args) != 1 {
				return NewNone(), fmt.Errorf("add() takes exactly one argument (%d given)", len(args))
			}
			return NewNone(), o.Add(args[0])
		}), true
	case "update":
		return NewNative("set.update", func(args []Value, kwargs map[string]Value) (Value, error) {
			for _, arg := range args {
				items, err := Collect(arg)
				if err != nil {
					return NewNone(), err
				}
				for _, it := range items {
					if err := o.Add(it); err != nil {
						return NewNone(), err
					}
				}
			}
			return NewNone(), nil
		}), true
	}
	return NewNone(), false
}

func stringMethod(o string, name string) (Value, bool) {
	switch name {
	case "upper":
		return NewNative("str.upper", func(args []Value, kwargs map[string]Value) (Value, error) {
			return NewString(strings.ToUpper(o)), nil
		}), true
	case "lower":
		return NewNative("str.lower", func(args []Value, kwargs map[string]Value) (Value, error) {
			return NewString(strings.ToLower(o)), nil
		}), true
	case "strip":
		return NewNative("str.strip", func(args []Value, kwargs map[string]Value) (Value, error) {
			return NewString(strings.TrimSpace(o)), nil
		}), true
	case "split":
		return NewNative("str.split", func(args []Value, kwargs map[string]Value) (Value, error) {
			sep := " "
			if len(args) == 1 {
				s, ok := args[0].Obj.(string)
				if args[0].Type != VAL_OBJ || !ok {
					return NewNone(), fmt.Errorf("must be str, not %s", TypeName(args[0]))
				}
				sep = s
			}
			var parts []string
			if len(args) == 0 {
				parts = strings.Fields(o)
			} else {
				parts = strings.Split(o, sep)
			}
			out := make([]Value, len(parts))
			for i, p := range parts {
				out[i] = NewString(p)
			}
			return NewList(out), nil
		}), true
	case "join":
		return NewNative("str.join", func(args []Value, kwargs map[string]Value) (Value, error) {
			if len(args) != 1 {
				return NewNone(), fmt.Errorf("join() takes exactly one argument (%d given)", len(args))
			}
			items, err := Collect(args[0])
			if err != nil {
				return NewNone(), err
			}
			parts := make([]string, len(items))
			for i, it := range items {
				s, ok := it.Obj.(string)
				if it.Type != VAL_OBJ || !ok {
					return NewNone(), fmt.Errorf("sequence item %d: expected str instance, %s found", i, TypeName(it))
				}
				parts[i] = s
			}
			return NewString(strings.Join(parts, o)), nil
		}), true
	case "startswith":
		return NewNative("str.startswith", func(args []Value, kwargs map[string]Value) (Value, error) {
			if len(args) != 1 {
				return NewNone(), fmt.Errorf("startswith() takes exactly one argument (%d given)", len(args))
			}
			prefix, ok := args[0].Obj.(string)
			if args[0].Type != VAL_OBJ || !ok {
				return NewNone(), fmt.Errorf("startswith first arg must be str, not %s", TypeName(args[0]))
			}
			return NewBool(strings.HasPrefix(o, prefix)), nil
		}), true
	}
	return NewNone(), false
}

// Collect drains an iterable into a slice.
func Collect(v Value) ([]Value, error) {
	it, err := Iter(v)
	if err != nil {
		return nil, err
	}
	var out []Value
	for {
		el, more, err := Next(it)
		if err != nil {
			return nil, err
		}
		if !more {
			return out, nil
		}
		out = append(out, el)
	}
}
