package value

import "fmt"

// normIndex converts a possibly negative index, failing when out of range.
func normIndex(i int64, length int) (int, error) {
	if i < 0 {
		i += int64(length)
	}
	if i < 0 || i >= int64(length) {
		return 0, fmt.Errorf("index out of range")
	}
	return int(i), nil
}

// resolveSlice clamps slice bounds against a sequence length.
func resolveSlice(s *ObjSlice, length int) (start, stop, step int, err error) {
	step = 1
	if s.Step.Type != VAL_NONE {
		if !isNumeric(s.Step) || s.Step.Type == VAL_FLOAT {
			return 0, 0, 0, fmt.Errorf("slice indices must be integers or None")
		}
		step = int(asInt(s.Step))
		if step == 0 {
			return 0, 0, 0, fmt.Errorf("slice step cannot be zero")
		}
	}
	clamp := func(v Value, def int) (int, error) {
		if v.Type == VAL_NONE {
			return def, nil
		}
		if !isNumeric(v) || v.Type == VAL_FLOAT {
			return 0, fmt.Errorf("slice indices must be integers or None")
		}
		i := int(asInt(v))
		if i < 0 {
			i += length
		}
		if i < 0 {
			if step > 0 {
				i = 0
			} else {
				i = -1
			}
		}
		if i > length {
			i = length
		}
		if step < 0 && i >= length {
			i = length - 1
		}
		return i, nil
	}
	if step > 0 {
		start, err = clamp(s.Start, 0)
		if err != nil {
			return
		}
		stop, err = clamp(s.Stop, length)
	} else {
		start, err = clamp(s.Start, length-1)
		if err != nil {
			return
		}
		stop, err = clamp(s.Stop, -1)
	}
	return
}

func sliceElements(elements []Value, s *ObjSlice) ([]Value, error) {
	start, stop, step, err := resolveSlice(s, len(elements))
	if err != nil {
		return nil, err
	}
	var out []Value
	if step > 0 {
		for i := start; i < stop; i += step {
			out = append(out, elements[i])
		}
	} else {
		for i := start; i > stop; i += step {
			out = append(out, elements[i])
		}
	}
	return out, nil
}

// Index is the subscript-get capability: container[key].
func Index(container, key Value) (Value, error) {
	if container.Type != VAL_OBJ {
		return NewNone(), fmt.Errorf("'%s' object is not subscriptable", TypeName(container))
	}
	var slice *ObjSlice
	if key.Type == VAL_OBJ {
		if s, ok := key.Obj.(*ObjSlice); ok {
			slice = s
		}
	}
	isSlice := slice != nil
	switch o := container.Obj.(type) {
	case string:
		runes := []rune(o)
		if isSlice {
			out, err := sliceElements(stringsToValues(runes), slice)
			if err != nil {
				return NewNone(), err
			}
			var b []rune
			for _, v := range out {
				b = append(b, []rune(v.Obj.(string))...)
			}
			return NewString(string(b)), nil
		}
		if !isNumeric(key) || key.Type == VAL_FLOAT {
			return NewNone(), fmt.Errorf("string indices must be integers")
		}
		i, err := normIndex(asInt(key), len(runes))
		if err != nil {
			return NewNone(), fmt.Errorf("string index out of range")
		}
		return NewString(string(runes[i])), nil
	case *ObjList:
		if isSlice {
			out, err := sliceElements(o.Elements, slice)
			if err != nil {
				return NewNone(), err
			}
			return NewList(out), nil
		}
		if !isNumeric(key) || key.Type == VAL_FLOAT {
			return NewNone(), fmt.Errorf("list indices must be integers or slices, not %s", TypeName(key))
		}
		i, err := normIndex(asInt(key), len(o.Elements))
		if err != nil {
			return NewNone(), fmt.Errorf("list index out of range")
		}
		return o.Elements[i], nil
	case *ObjTuple:
		if isSlice {
			out, err := sliceElements(o.Elements, slice)
			if err != nil {
				return NewNone(), err
			}
			return NewTuple(out), nil
		}
		if !isNumeric(key) || key.Type == VAL_FLOAT {
			return NewNone(), fmt.Errorf("tuple indices must be integers or slices, not %s", TypeName(key))
		}
		i, err := normIndex(asInt(key), len(o.Elements))
		if err != nil {
			return NewNone(), fmt.Errorf("tuple index out of range")
		}
		return o.Elements[i], nil
	case *ObjDict:
		v, found, err := o.Get(key)
		if err != nil {
			return NewNone(), err
		}
		if !found {
			return NewNone(), fmt.Errorf("KeyError: %s", Repr(key))
		}
		return v, nil
	}
	return NewNone(), fmt.Errorf("'%s' object is not subscriptable", TypeName(container))
}

func stringsToValues(runes []rune) []Value {
	out := make([]Value, len(runes))
	for i, r := range runes {
		out[i] = NewString(string(r))
	}
	return out
}

// SetIndex is the subscript-set capability: container[key] = v.
func SetIndex(container, key, v Value) error {
	if container.Type != VAL_OBJ {
		return fmt.Errorf("'%s' object does not support item assignment", TypeName(container))
	}
	switch o := container.Obj.(type) {
	case *ObjList:
		if !isNumeric(key) || key.Type == VAL_FLOAT {
			return fmt.Errorf("list indices must be integers, not %s", TypeName(key))
		}
		i, err := normIndex(asInt(key), len(o.Elements))
		if err != nil {
			return fmt.Errorf("list assignment index out of range")
		}
		o.Elements[i] = v
		return nil
	case *ObjDict:
		return o.Set(key, v)
	}
	return fmt.Errorf("'%s' object does not support item assignment", TypeName(container))
}

// DelIndex is the subscript-delete capability: del container[key].
func DelIndex(container, key Value) error {
	if container.Type != VAL_OBJ {
		return fmt.Errorf("'%s' object does not support item deletion", TypeName(container))
	}
	switch o := container.Obj.(type) {
	case *ObjList:
		if !isNumeric(key) || key.Type == VAL_FLOAT {
			return fmt.Errorf("list indices must be integers, not %s", TypeName(key))
		}
		i, err := normIndex(asInt(key), len(o.Elements))
		if err != nil {
			return fmt.Errorf("list assignment index out of range")
		}
		o.Elements = append(o.Elements[:i], o.Elements[i+1:]...)
		return nil
	case *ObjDict:
		found, err := o.Delete(key)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("KeyError: %s", Repr(key))
		}
		return nil
	}
	return fmt.Errorf("'%s' object does not support item deletion", TypeName(container))
}
