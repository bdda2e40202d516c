// Package builtins provides the standard namespace available to every
// program: native functions plus the built-in exception types.
package builtins

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"pyvm/internal/value"
)

// New builds a fresh builtins namespace. Output-producing natives write
// to stdout.
func New(stdout io.Writer) map[string]value.Value {
	b := map[string]value.Value{
		"print": value.NewNative("print", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
			sep := " "
			end := "\n"
			if v, ok := kwargs["sep"]; ok {
				sep = value.Str(v)
			}
			if v, ok := kwargs["end"]; ok {
				end = value.Str(v)
			}
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = value.Str(a)
			}
			fmt.Fprint(stdout, strings.Join(parts, sep)+end)
			return value.NewNone(), nil
		}),
		"len": value.NewNative("len", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
			if err := exactly("len", args, kwargs, 1); err != nil {
				return value.NewNone(), err
			}
			n, err := value.Len(args[0])
			if err != nil {
				return value.NewNone(), err
			}
			return value.NewInt(n), nil
		}),
		"range": value.NewNative("range", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
			if len(kwargs) > 0 {
				return value.NewNone(), fmt.Errorf("range() takes no keyword arguments")
			}
			nums := make([]int64, len(args))
			for i, a := range args {
				if a.Type != value.VAL_INT {
					return value.NewNone(), fmt.Errorf("range() argument must be int, not %s", value.TypeName(a))
				}
				nums[i] = a.AsInt
			}
			switch len(args) {
			case 1:
				return value.NewRange(0, nums[0], 1), nil
			case 2:
				return value.NewRange(nums[0], nums[1], 1), nil
			case 3:
				if nums[2] == 0 {
					return value.NewNone(), fmt.Errorf("range() arg 3 must not be zero")
				}
				return value.NewRange(nums[0], nums[1], nums[2]), nil
			}
			return value.NewNone(), fmt.Errorf("range expected 1 to 3 arguments, got %d", len(args))
		}),
		"iter": value.NewNative("iter", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
			if err := exactly("iter", args, kwargs, 1); err != nil {
				return value.NewNone(), err
			}
			return value.Iter(args[0])
		}),
		"next": value.NewNative("next", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
			if len(kwargs) > 0 || len(args) < 1 || len(args) > 2 {
				return value.NewNone(), fmt.Errorf("next expected 1 or 2 arguments, got %d", len(args))
			}
			v, ok, err := value.Next(args[0])
			if err != nil {
				return value.NewNone(), err
			}
			if !ok {
				if len(args) == 2 {
					return args[1], nil
				}
				return value.NewNone(), value.ErrStopIteration
			}
			return v, nil
		}),
		"abs": value.NewNative("abs", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
			if err := exactly("abs", args, kwargs, 1); err != nil {
				return value.NewNone(), err
			}
			switch args[0].Type {
			case value.VAL_INT:
				if args[0].AsInt < 0 {
					return value.NewInt(-args[0].AsInt), nil
				}
				return args[0], nil
			case value.VAL_FLOAT:
				if args[0].AsFloat < 0 {
					return value.NewFloat(-args[0].AsFloat), nil
				}
				return args[0], nil
			case value.VAL_BOOL:
				if args[0].AsBool {
					return value.NewInt(1), nil
				}
				return value.NewInt(0), nil
			}
			return value.NewNone(), fmt.Errorf("bad operand type for abs(): '%s'", value.TypeName(args[0]))
		}),
		"min": value.NewNative("min", extremum("min", func(next, best value.Value) (bool, error) {
			return value.Less(next, best)
		})),
		"max": value.NewNative("max", extremum("max", func(next, best value.Value) (bool, error) {
			return value.Less(best, next)
		})),
		"sum": value.NewNative("sum", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
			if len(kwargs) > 0 || len(args) < 1 || len(args) > 2 {
				return value.NewNone(), fmt.Errorf("sum expected 1 or 2 arguments, got %d", len(args))
			}
			total := value.NewInt(0)
			if len(args) == 2 {
				total = args[1]
			}
			items, err := value.Collect(args[0])
			if err != nil {
				return value.NewNone(), err
			}
			for _, item := range items {
				total, err = value.Add(total, item)
				if err != nil {
					return value.NewNone(), err
				}
			}
			return total, nil
		}),
		"bool": value.NewNative("bool", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
			if len(kwargs) > 0 || len(args) > 1 {
				return value.NewNone(), fmt.Errorf("bool expected at most 1 argument, got %d", len(args))
			}
			if len(args) == 0 {
				return value.NewBool(false), nil
			}
			return value.NewBool(value.Truthy(args[0])), nil
		}),
		"int": value.NewNative("int", convertInt),
		"float": value.NewNative("float", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
			if len(kwargs) > 0 || len(args) > 1 {
				return value.NewNone(), fmt.Errorf("float expected at most 1 argument, got %d", len(args))
			}
			if len(args) == 0 {
				return value.NewFloat(0), nil
			}
			switch args[0].Type {
			case value.VAL_INT:
				return value.NewFloat(float64(args[0].AsInt)), nil
			case value.VAL_FLOAT:
				return args[0], nil
			case value.VAL_BOOL:
				if args[0].AsBool {
					return value.NewFloat(1), nil
				}
				return value.NewFloat(0), nil
			case value.VAL_OBJ:
				if s, ok := args[0].Obj.(string); ok {
					f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
					if err != nil {
						return value.NewNone(), fmt.Errorf("could not convert string to float: %s", value.Repr(args[0]))
					}
					return value.NewFloat(f), nil
				}
			}
			return value.NewNone(), fmt.Errorf("float() argument must be a string or a number, not '%s'", value.TypeName(args[0]))
		}),
		"str": value.NewNative("str", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
			if len(kwargs) > 0 || len(args) > 1 {
				return value.NewNone(), fmt.Errorf("str expected at most 1 argument, got %d", len(args))
			}
			if len(args) == 0 {
				return value.NewString(""), nil
			}
			return value.NewString(value.Str(args[0])), nil
		}),
		"repr": value.NewNative("repr", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
			if err := exactly("repr", args, kwargs, 1); err != nil {
				return value.NewNone(), err
			}
			return value.NewString(value.Repr(args[0])), nil
		}),
		"tuple": value.NewNative("tuple", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
			if len(kwargs) > 0 || len(args) > 1 {
				return value.NewNone(), fmt.Errorf("tuple expected at most 1 argument, got %d", len(args))
			}
			if len(args) == 0 {
				return value.NewTuple(nil), nil
			}
			items, err := value.Collect(args[0])
			if err != nil {
				return value.NewNone(), err
			}
			return value.NewTuple(items), nil
		}),
		"list": value.NewNative("list", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
			if len(kwargs) > 0 || len(args) > 1 {
				return value.NewNone(), fmt.Errorf("list expected at most 1 argument, got %d", len(args))
			}
			if len(args) == 0 {
				return value.NewList(nil), nil
			}
			items, err := value.Collect(args[0])
			if err != nil {
				return value.NewNone(), err
			}
			return value.NewList(items), nil
		}),
		"dict": value.NewNative("dict", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
			if len(args) > 0 {
				return value.NewNone(), fmt.Errorf("dict() positional arguments are not supported")
			}
			d := value.NewDict()
			dict := d.Obj.(*value.ObjDict)
			for k, v := range kwargs {
				if err := dict.Set(value.NewString(k), v); err != nil {
					return value.NewNone(), err
				}
			}
			return d, nil
		}),
		"set": value.NewNative("set", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
			if len(kwargs) > 0 || len(args) > 1 {
				return value.NewNone(), fmt.Errorf("set expected at most 1 argument, got %d", len(args))
			}
			s := value.NewSet()
			if len(args) == 1 {
				items, err := value.Collect(args[0])
				if err != nil {
					return value.NewNone(), err
				}
				set := s.Obj.(*value.ObjSet)
				for _, item := range items {
					if err := set.Add(item); err != nil {
						return value.NewNone(), err
					}
				}
			}
			return s, nil
		}),
	}
	for _, name := range []string{
		"Exception",
		"AssertionError",
		"StopIteration",
		"TypeError",
		"ValueError",
		"KeyError",
		"IndexError",
		"NameError",
		"ZeroDivisionError",
		"RuntimeError",
	} {
		b[name] = value.NewExceptionType(name)
	}
	return b
}

func exactly(name string, args []value.Value, kwargs map[string]value.Value, n int) error {
	if len(kwargs) > 0 {
		return fmt.Errorf("%s() takes no keyword arguments", name)
	}
	if len(args) != n {
		return fmt.Errorf("%s expected %d argument(s), got %d", name, n, len(args))
	}
	return nil
}

// extremum implements min and max: over one iterable, or over two or
// more direct arguments.
func extremum(name string, better func(next, best value.Value) (bool, error)) value.NativeFunc {
	return func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		if len(kwargs) > 0 {
			return value.NewNone(), fmt.Errorf("%s() takes no keyword arguments", name)
		}
		items := args
		if len(args) == 1 {
			var err error
			items, err = value.Collect(args[0])
			if err != nil {
				return value.NewNone(), err
			}
		}
		if len(items) == 0 {
			return value.NewNone(), fmt.Errorf("%s() arg is an empty sequence", name)
		}
		best := items[0]
		for _, item := range items[1:] {
			ok, err := better(item, best)
			if err != nil {
				return value.NewNone(), err
			}
			if ok {
				best = item
			}
		}
		return best, nil
	}
}

func convertInt(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	if len(kwargs) > 0 || len(args) > 1 {
		return value.NewNone(), fmt.Errorf("int expected at most 1 argument, got %d", len(args))
	}
	if len(args) == 0 {
		return value.NewInt(0), nil
	}
	switch args[0].Type {
	case value.VAL_INT:
		return args[0], nil
	case value.VAL_FLOAT:
		// truncation toward zero
		return value.NewInt(int64(args[0].AsFloat)), nil
	case value.VAL_BOOL:
		if args[0].AsBool {
			return value.NewInt(1), nil
		}
		return value.NewInt(0), nil
	case value.VAL_OBJ:
		if s, ok := args[0].Obj.(string); ok {
			n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return value.NewNone(), fmt.Errorf("invalid literal for int() with base 10: %s", value.Repr(args[0]))
			}
			return value.NewInt(n), nil
		}
	}
	return value.NewNone(), fmt.Errorf("int() argument must be a string or a number, not '%s'", value.TypeName(args[0]))
}
