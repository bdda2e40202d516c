package vm

import (
	"fmt"
	"sort"

	"pyvm/internal/code"
	"pyvm/internal/value"
)

// ArityError reports too many positional arguments for a callable with
// no varargs collector.
type ArityError struct {
	Func  string
	Max   int
	Given int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("%s() takes %d positional arguments but %d were given", e.Func, e.Max, e.Given)
}

// MissingArgumentError reports a required parameter with no positional
// value, keyword value, or default.
type MissingArgumentError struct {
	Func string
	Name string
}

func (e *MissingArgumentError) Error() string {
	return fmt.Sprintf("%s() missing required argument: '%s'", e.Func, e.Name)
}

// UnexpectedKeywordError reports a keyword with no matching parameter on
// a callable with no varkwargs collector.
type UnexpectedKeywordError struct {
	Func string
	Name string
}

func (e *UnexpectedKeywordError) Error() string {
	return fmt.Sprintf("%s() got an unexpected keyword argument '%s'", e.Func, e.Name)
}

// makeFunction pops a qualified name, a code object and n default
// values, and produces a function value. The defining frame's locals are
// snapshot-copied; globals and builtins are captured by reference.
func (f *Frame) makeFunction(n int) value.Value {
	name := value.Str(f.stack.Pop())
	codeVal := f.stack.Pop()
	defaults := f.stack.PopN(n)

	snapshot := make(map[string]value.Value, len(f.env.Locals))
	for k, v := range f.env.Locals {
		snapshot[k] = v
	}
	return value.NewFunctionValue(&value.ObjFunction{
		Name:     name,
		Code:     codeVal.Obj,
		Defaults: defaults,
		Snapshot: snapshot,
		Globals:  f.env.Globals,
		Builtins: f.env.Builtins,
	})
}

// call invokes a callable value. Functions run a nested frame to
// completion; the call's result is that frame's return value.
func (f *Frame) call(callee value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	switch o := callee.Obj.(type) {
	case *value.ObjNative:
		return o.Fn(args, kwargs)
	case *value.ObjExceptionType:
		if len(kwargs) > 0 {
			return value.NewNone(), fmt.Errorf("%s() takes no keyword arguments", o.Name)
		}
		return value.NewException(o, args), nil
	case *value.ObjFunction:
		return f.callFunction(o, args, kwargs)
	}
	return value.NewNone(), fmt.Errorf("'%s' object is not callable", value.TypeName(callee))
}

func (f *Frame) callFunction(fn *value.ObjFunction, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	if f.depth+1 >= f.machine.maxCallDepth {
		return value.NewNone(), fmt.Errorf("maximum call depth exceeded calling %s()", fn.Name)
	}
	obj, ok := fn.Code.(*code.Object)
	if !ok {
		return value.NewNone(), fmt.Errorf("%s() has no code object", fn.Name)
	}
	bound, err := bindArguments(fn, obj, args, kwargs)
	if err != nil {
		return value.NewNone(), err
	}

	locals := make(map[string]value.Value, len(fn.Snapshot)+len(bound))
	for k, v := range fn.Snapshot {
		locals[k] = v
	}
	for k, v := range bound {
		locals[k] = v
	}
	env := NewEnvironment(locals, fn.Globals, fn.Builtins)
	frame := newFrame(f.machine, obj, env, f.depth+1)
	return frame.Run()
}

// bindArguments maps call-site arguments onto parameter names. The
// parameter list is partitioned into a positional-only region, a
// positional-or-keyword region and a keyword-only region; defaults are
// right-aligned against the end of the positional-or-keyword region,
// so keyword-only parameters are always required. Keyword values
// override positional ones for the same slot.
func bindArguments(fn *value.ObjFunction, obj *code.Object, args []value.Value, kwargs map[string]value.Value) (map[string]value.Value, error) {
	paramCount := obj.ArgCount + obj.KwOnlyCount
	bound := make(map[string]value.Value, paramCount)

	// defaults first: later steps overwrite them
	defStart := obj.ArgCount - len(fn.Defaults)
	for i, d := range fn.Defaults {
		bound[obj.Varnames[defStart+i]] = d
	}

	// positional values
	if len(args) > obj.ArgCount && !obj.HasVarArgs() {
		return nil, &ArityError{Func: fn.Name, Max: obj.ArgCount, Given: len(args)}
	}
	n := len(args)
	if n > obj.ArgCount {
		n = obj.ArgCount
	}
	for i := 0; i < n; i++ {
		bound[obj.Varnames[i]] = args[i]
	}

	// keyword values; positional-only names are not addressable by
	// keyword and fall through to varkwargs
	keywordSlot := make(map[string]bool, paramCount-obj.PosOnlyCount)
	for _, name := range obj.Varnames[obj.PosOnlyCount:paramCount] {
		keywordSlot[name] = true
	}
	var leftoverKw map[string]value.Value
	for name, v := range kwargs {
		if keywordSlot[name] {
			bound[name] = v
			continue
		}
		if !obj.HasVarKwargs() {
			return nil, &UnexpectedKeywordError{Func: fn.Name, Name: name}
		}
		if leftoverKw == nil {
			leftoverKw = make(map[string]value.Value)
		}
		leftoverKw[name] = v
	}

	// collectors are bound even when empty
	if obj.HasVarArgs() {
		var extra []value.Value
		if len(args) > obj.ArgCount {
			extra = make([]value.Value, len(args)-obj.ArgCount)
			copy(extra, args[obj.ArgCount:])
		}
		bound[obj.VarArgsName()] = value.NewTuple(extra)
	}
	if obj.HasVarKwargs() {
		d := value.NewDict()
		dict := d.Obj.(*value.ObjDict)
		names := make([]string, 0, len(leftoverKw))
		for name := range leftoverKw {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := dict.Set(value.NewString(name), leftoverKw[name]); err != nil {
				return nil, err
			}
		}
		bound[obj.VarKwargsName()] = d
	}

	for _, name := range obj.Varnames[:paramCount] {
		if _, ok := bound[name]; !ok {
			return nil, &MissingArgumentError{Func: fn.Name, Name: name}
		}
	}
	return bound, nil
}
