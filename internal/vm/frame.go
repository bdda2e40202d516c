package vm

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"pyvm/internal/code"
	"pyvm/internal/value"
)

// excState is the frame's recorded last exception triple.
type excState struct {
	excType   value.Value
	val       value.Value
	traceback value.Value
}

// Frame executes one code object over its own operand stack and name
// environment. A nested call runs its frame to completion before the
// calling instruction continues.
type Frame struct {
	machine       *VM
	code          *code.Object
	env           *Environment
	stack         *OperandStack
	ip            int
	pendingJump   int
	returnValue   value.Value
	lastException *excState
	depth         int
	logger        zerolog.Logger
}

func newFrame(m *VM, obj *code.Object, env *Environment, depth int) *Frame {
	return &Frame{
		machine:     m,
		code:        obj,
		env:         env,
		stack:       NewOperandStack(),
		pendingJump: -1,
		returnValue: value.NewNone(),
		depth:       depth,
		logger:      m.logger.With().Str("frame", obj.Name).Int("depth", depth).Logger(),
	}
}

// Run drives the fetch-execute loop. On each step the instruction
// pointer addresses the next instruction; a handler that set pendingJump
// redirects the pointer, otherwise it advances by one. The loop ends
// when the pointer moves past the last instruction.
func (f *Frame) Run() (value.Value, error) {
	n := len(f.code.Instructions)
	for f.ip < n {
		instr := f.code.Instructions[f.ip]
		f.logger.Trace().
			Int("ip", f.ip).
			Str("op", instr.Op.String()).
			Str("arg", value.Repr(instr.Arg)).
			Int("stack", f.stack.Len()).
			Msg("step")
		if err := f.exec(instr); err != nil {
			return value.NewNone(), err
		}
		if f.pendingJump >= 0 {
			f.ip = f.pendingJump
			f.pendingJump = -1
		} else {
			f.ip++
		}
	}
	return f.returnValue, nil
}

func (f *Frame) argInt(instr code.Instruction) int {
	if instr.Arg.Type != value.VAL_INT {
		panic(fmt.Sprintf("%s at %d: expected int argument, got %s", instr.Op, f.ip, value.Repr(instr.Arg)))
	}
	return int(instr.Arg.AsInt)
}

func (f *Frame) argStr(instr code.Instruction) string {
	if instr.Arg.Type == value.VAL_OBJ {
		if s, ok := instr.Arg.Obj.(string); ok {
			return s
		}
	}
	panic(fmt.Sprintf("%s at %d: expected name argument, got %s", instr.Op, f.ip, value.Repr(instr.Arg)))
}

func (f *Frame) exec(instr code.Instruction) error {
	switch instr.Op {
	case code.NOP, code.GEN_START:
		// nothing

	case code.POP_TOP:
		f.stack.Pop()
	case code.DUP_TOP:
		f.stack.Push(f.stack.Peek(0))
	case code.DUP_TOP_TWO:
		a, b := f.stack.Peek(1), f.stack.Peek(0)
		f.stack.Push(a, b)
	case code.ROT_TWO:
		f.stack.RotN(2)
	case code.ROT_THREE:
		f.stack.RotN(3)
	case code.ROT_N:
		f.stack.RotN(f.argInt(instr))

	case code.LOAD_CONST:
		f.stack.Push(instr.Arg)

	case code.LOAD_NAME:
		name := f.argStr(instr)
		v, ok := f.env.LookupName(name)
		if !ok {
			return &NameError{Name: name}
		}
		f.stack.Push(v)
	case code.STORE_NAME:
		f.env.Locals[f.argStr(instr)] = f.stack.Pop()
	case code.DELETE_NAME:
		name := f.argStr(instr)
		if _, ok := f.env.Locals[name]; !ok {
			return &NameError{Name: name}
		}
		delete(f.env.Locals, name)

	case code.LOAD_FAST:
		name := f.argStr(instr)
		v, ok := f.env.LookupLocal(name)
		if !ok {
			return &UnboundLocalError{Name: name}
		}
		f.stack.Push(v)
	case code.STORE_FAST:
		f.env.Locals[f.argStr(instr)] = f.stack.Pop()
	case code.DELETE_FAST:
		name := f.argStr(instr)
		if _, ok := f.env.Locals[name]; !ok {
			return &UnboundLocalError{Name: name}
		}
		delete(f.env.Locals, name)

	case code.LOAD_GLOBAL:
		name := f.argStr(instr)
		v, ok := f.env.LookupGlobal(name)
		if !ok {
			return &NameError{Name: name}
		}
		f.stack.Push(v)
	case code.STORE_GLOBAL:
		f.env.Globals[f.argStr(instr)] = f.stack.Pop()
	case code.DELETE_GLOBAL:
		name := f.argStr(instr)
		if _, ok := f.env.Globals[name]; !ok {
			return &NameError{Name: name}
		}
		delete(f.env.Globals, name)

	case code.LOAD_ATTR, code.LOAD_METHOD:
		obj := f.stack.Pop()
		v, err := value.GetAttr(obj, f.argStr(instr))
		if err != nil {
			return err
		}
		f.stack.Push(v)
	case code.STORE_ATTR:
		obj := f.stack.Pop()
		val := f.stack.Pop()
		if err := value.SetAttr(obj, f.argStr(instr), val); err != nil {
			return err
		}
	case code.DELETE_ATTR:
		obj := f.stack.Pop()
		if err := value.DelAttr(obj, f.argStr(instr)); err != nil {
			return err
		}

	case code.BINARY_SUBSCR:
		key := f.stack.Pop()
		obj := f.stack.Pop()
		v, err := value.Index(obj, key)
		if err != nil {
			return err
		}
		f.stack.Push(v)
	case code.STORE_SUBSCR:
		key := f.stack.Pop()
		obj := f.stack.Pop()
		val := f.stack.Pop()
		if err := value.SetIndex(obj, key, val); err != nil {
			return err
		}
	case code.DELETE_SUBSCR:
		key := f.stack.Pop()
		obj := f.stack.Pop()
		if err := value.DelIndex(obj, key); err != nil {
			return err
		}

	case code.BINARY_ADD, code.INPLACE_ADD:
		return f.binary(value.Add)
	case code.BINARY_SUBTRACT, code.INPLACE_SUBTRACT:
		return f.binary(value.Sub)
	case code.BINARY_MULTIPLY, code.INPLACE_MULTIPLY:
		return f.binary(value.Mul)
	case code.BINARY_TRUE_DIVIDE, code.INPLACE_TRUE_DIVIDE:
		return f.binary(value.TrueDiv)
	case code.BINARY_FLOOR_DIVIDE, code.INPLACE_FLOOR_DIVIDE:
		return f.binary(value.FloorDiv)
	case code.BINARY_MODULO, code.INPLACE_MODULO:
		return f.binary(value.Mod)
	case code.BINARY_POWER, code.INPLACE_POWER:
		return f.binary(value.Pow)
	case code.BINARY_LSHIFT, code.INPLACE_LSHIFT:
		return f.binary(value.LShift)
	case code.BINARY_RSHIFT, code.INPLACE_RSHIFT:
		return f.binary(value.RShift)
	case code.BINARY_AND, code.INPLACE_AND:
		return f.binary(value.BitAnd)
	case code.BINARY_OR, code.INPLACE_OR:
		return f.binary(value.BitOr)
	case code.BINARY_XOR, code.INPLACE_XOR:
		return f.binary(value.BitXor)

	case code.UNARY_POSITIVE:
		return f.unary(value.Pos)
	case code.UNARY_NEGATIVE:
		return f.unary(value.Neg)
	case code.UNARY_INVERT:
		return f.unary(value.Invert)
	case code.UNARY_NOT:
		v := f.stack.Pop()
		f.stack.Push(value.NewBool(!value.Truthy(v)))

	case code.COMPARE_OP:
		op := f.argStr(instr)
		right := f.stack.Pop()
		left := f.stack.Pop()
		res, err := value.Compare(op, left, right)
		if err != nil {
			return err
		}
		f.stack.Push(res)
	case code.CONTAINS_OP:
		invert := f.argInt(instr) != 0
		container := f.stack.Pop()
		item := f.stack.Pop()
		found, err := value.Contains(item, container)
		if err != nil {
			return err
		}
		f.stack.Push(value.NewBool(found != invert))
	case code.IS_OP:
		invert := f.argInt(instr) != 0
		right := f.stack.Pop()
		left := f.stack.Pop()
		f.stack.Push(value.NewBool(value.Is(left, right) != invert))

	case code.POP_JUMP_IF_TRUE:
		if value.Truthy(f.stack.Pop()) {
			f.pendingJump = f.argInt(instr)
		}
	case code.POP_JUMP_IF_FALSE:
		if !value.Truthy(f.stack.Pop()) {
			f.pendingJump = f.argInt(instr)
		}
	case code.JUMP_IF_TRUE_OR_POP:
		if value.Truthy(f.stack.Peek(0)) {
			f.pendingJump = f.argInt(instr)
		} else {
			f.stack.Pop()
		}
	case code.JUMP_IF_FALSE_OR_POP:
		if !value.Truthy(f.stack.Peek(0)) {
			f.pendingJump = f.argInt(instr)
		} else {
			f.stack.Pop()
		}
	case code.JUMP_FORWARD, code.JUMP_ABSOLUTE:
		// targets are decoded to instruction indices ahead of time
		f.pendingJump = f.argInt(instr)

	case code.GET_ITER, code.GET_YIELD_FROM_ITER:
		v := f.stack.Pop()
		it, err := value.Iter(v)
		if err != nil {
			return err
		}
		f.stack.Push(it)
	case code.FOR_ITER:
		v, ok, err := value.Next(f.stack.Peek(0))
		if err != nil {
			return err
		}
		if ok {
			f.stack.Push(v)
		} else {
			f.stack.Pop()
			f.pendingJump = f.argInt(instr)
		}
	case code.YIELD_VALUE:
		// generator suspension is not supported; the yielded value is
		// discarded and execution continues
		f.stack.Pop()

	case code.BUILD_TUPLE:
		f.stack.Push(value.NewTuple(f.stack.PopN(f.argInt(instr))))
	case code.BUILD_LIST:
		f.stack.Push(value.NewList(f.stack.PopN(f.argInt(instr))))
	case code.BUILD_SET:
		items := f.stack.PopN(f.argInt(instr))
		s := value.NewSet()
		set := s.Obj.(*value.ObjSet)
		for _, item := range items {
			if err := set.Add(item); err != nil {
				return err
			}
		}
		f.stack.Push(s)
	case code.BUILD_MAP:
		n := f.argInt(instr)
		flat := f.stack.PopN(2 * n)
		d := value.NewDict()
		dict := d.Obj.(*value.ObjDict)
		for i := 0; i < n; i++ {
			if err := dict.Set(flat[2*i], flat[2*i+1]); err != nil {
				return err
			}
		}
		f.stack.Push(d)
	case code.BUILD_CONST_KEY_MAP:
		n := f.argInt(instr)
		keys := f.stack.Pop()
		tup, ok := keys.Obj.(*value.ObjTuple)
		if !ok || len(tup.Elements) != n {
			return fmt.Errorf("BUILD_CONST_KEY_MAP at %d: bad key tuple %s", f.ip, value.Repr(keys))
		}
		vals := f.stack.PopN(n)
		d := value.NewDict()
		dict := d.Obj.(*value.ObjDict)
		for i := 0; i < n; i++ {
			if err := dict.Set(tup.Elements[i], vals[i]); err != nil {
				return err
			}
		}
		f.stack.Push(d)
	case code.BUILD_STRING:
		parts := f.stack.PopN(f.argInt(instr))
		var sb strings.Builder
		for _, p := range parts {
			sb.WriteString(value.Str(p))
		}
		f.stack.Push(value.NewString(sb.String()))
	case code.BUILD_SLICE:
		n := f.argInt(instr)
		parts := f.stack.PopN(n)
		step := value.NewNone()
		if n == 3 {
			step = parts[2]
		}
		f.stack.Push(value.NewSlice(parts[0], parts[1], step))

	case code.LIST_APPEND:
		v := f.stack.Pop()
		target := f.stack.Peek(f.argInt(instr) - 1)
		lst, ok := target.Obj.(*value.ObjList)
		if !ok {
			return fmt.Errorf("LIST_APPEND at %d: target is %s", f.ip, value.TypeName(target))
		}
		lst.Elements = append(lst.Elements, v)
	case code.LIST_EXTEND:
		src := f.stack.Pop()
		target := f.stack.Peek(f.argInt(instr) - 1)
		lst, ok := target.Obj.(*value.ObjList)
		if !ok {
			return fmt.Errorf("LIST_EXTEND at %d: target is %s", f.ip, value.TypeName(target))
		}
		items, err := value.Collect(src)
		if err != nil {
			return err
		}
		lst.Elements = append(lst.Elements, items...)
	case code.LIST_TO_TUPLE:
		v := f.stack.Pop()
		lst, ok := v.Obj.(*value.ObjList)
		if !ok {
			return fmt.Errorf("LIST_TO_TUPLE at %d: got %s", f.ip, value.TypeName(v))
		}
		elems := make([]value.Value, len(lst.Elements))
		copy(elems, lst.Elements)
		f.stack.Push(value.NewTuple(elems))
	case code.SET_ADD:
		v := f.stack.Pop()
		target := f.stack.Peek(f.argInt(instr) - 1)
		set, ok := target.Obj.(*value.ObjSet)
		if !ok {
			return fmt.Errorf("SET_ADD at %d: target is %s", f.ip, value.TypeName(target))
		}
		if err := set.Add(v); err != nil {
			return err
		}
	case code.SET_UPDATE:
		src := f.stack.Pop()
		target := f.stack.Peek(f.argInt(instr) - 1)
		set, ok := target.Obj.(*value.ObjSet)
		if !ok {
			return fmt.Errorf("SET_UPDATE at %d: target is %s", f.ip, value.TypeName(target))
		}
		items, err := value.Collect(src)
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := set.Add(item); err != nil {
				return err
			}
		}
	case code.MAP_ADD:
		val := f.stack.Pop()
		key := f.stack.Pop()
		target := f.stack.Peek(f.argInt(instr) - 1)
		dict, ok := target.Obj.(*value.ObjDict)
		if !ok {
			return fmt.Errorf("MAP_ADD at %d: target is %s", f.ip, value.TypeName(target))
		}
		if err := dict.Set(key, val); err != nil {
			return err
		}

	case code.UNPACK_SEQUENCE:
		n := f.argInt(instr)
		items, err := value.Collect(f.stack.Pop())
		if err != nil {
			return err
		}
		if len(items) < n {
			return fmt.Errorf("not enough values to unpack (expected %d, got %d)", n, len(items))
		}
		if len(items) > n {
			return fmt.Errorf("too many values to unpack (expected %d)", n)
		}
		// first element ends up on top
		for i := n - 1; i >= 0; i-- {
			f.stack.Push(items[i])
		}
	case code.GET_LEN:
		n, err := value.Len(f.stack.Peek(0))
		if err != nil {
			return err
		}
		f.stack.Push(value.NewInt(n))

	case code.CALL_FUNCTION, code.CALL_METHOD:
		args := f.stack.PopN(f.argInt(instr))
		callee := f.stack.Pop()
		res, err := f.call(callee, args, nil)
		if err != nil {
			return err
		}
		f.stack.Push(res)
	case code.CALL_FUNCTION_KW:
		argc := f.argInt(instr)
		names := f.stack.Pop()
		tup, ok := names.Obj.(*value.ObjTuple)
		if !ok {
			return fmt.Errorf("CALL_FUNCTION_KW at %d: bad name tuple %s", f.ip, value.Repr(names))
		}
		kwvals := f.stack.PopN(len(tup.Elements))
		kwargs := make(map[string]value.Value, len(tup.Elements))
		for i, name := range tup.Elements {
			kwargs[value.Str(name)] = kwvals[i]
		}
		args := f.stack.PopN(argc - len(tup.Elements))
		callee := f.stack.Pop()
		res, err := f.call(callee, args, kwargs)
		if err != nil {
			return err
		}
		f.stack.Push(res)

	case code.MAKE_FUNCTION:
		f.stack.Push(f.makeFunction(f.argInt(instr)))

	case code.RETURN_VALUE:
		f.returnValue = f.stack.Pop()
		f.pendingJump = len(f.code.Instructions)

	case code.RAISE_VARARGS:
		return f.raise(f.argInt(instr))
	case code.LOAD_ASSERTION_ERROR:
		f.stack.Push(f.lookupExcType("AssertionError"))
	case code.LOAD_BUILD_CLASS:
		f.stack.Push(value.NewNative("__build_class__", f.buildClass))

	case code.IMPORT_NAME:
		name := f.argStr(instr)
		f.stack.Pop() // fromlist
		f.stack.Pop() // level
		mod, ok := f.machine.modules[name]
		if !ok {
			return &ImportError{Name: name}
		}
		f.stack.Push(value.NewModule(mod))
	case code.IMPORT_FROM:
		name := f.argStr(instr)
		mod := f.stack.Peek(0)
		v, err := value.GetAttr(mod, name)
		if err != nil {
			return &ImportError{Name: name}
		}
		f.stack.Push(v)
	case code.IMPORT_STAR:
		mod := f.stack.Pop()
		m, ok := mod.Obj.(*value.ObjModule)
		if !ok {
			return fmt.Errorf("IMPORT_STAR at %d: got %s", f.ip, value.TypeName(mod))
		}
		for name, v := range m.Attrs {
			if !strings.HasPrefix(name, "_") {
				f.env.Locals[name] = v
			}
		}

	default:
		panic(fmt.Sprintf("no handler for opcode %s at %d", instr.Op, f.ip))
	}
	return nil
}

func (f *Frame) binary(op func(a, b value.Value) (value.Value, error)) error {
	right := f.stack.Pop()
	left := f.stack.Pop()
	res, err := op(left, right)
	if err != nil {
		return err
	}
	f.stack.Push(res)
	return nil
}

func (f *Frame) unary(op func(v value.Value) (value.Value, error)) error {
	v := f.stack.Pop()
	res, err := op(v)
	if err != nil {
		return err
	}
	f.stack.Push(res)
	return nil
}

func (f *Frame) lookupExcType(name string) value.Value {
	if v, ok := f.env.Builtins[name]; ok {
		return v
	}
	return value.NewExceptionType(name)
}

// raise pops argc operands as (type[, value[, traceback]]), records the
// triple and surfaces it as a Raised error. A bare raise with nothing
// recorded is itself a RuntimeError.
func (f *Frame) raise(argc int) error {
	if argc == 0 {
		if f.lastException == nil {
			excType := f.lookupExcType("RuntimeError")
			val := value.NewException(excType.Obj.(*value.ObjExceptionType),
				[]value.Value{value.NewString("No active exception to re-raise")})
			return &Raised{Kind: "exception", ExcType: excType, Value: val, Traceback: value.NewNone()}
		}
		st := f.lastException
		kind := "exception"
		if st.traceback.Type != value.VAL_NONE {
			kind = "reraise"
		}
		return &Raised{Kind: kind, ExcType: st.excType, Value: st.val, Traceback: st.traceback}
	}
	if argc > 3 {
		return fmt.Errorf("RAISE_VARARGS at %d: bad argument count %d", f.ip, argc)
	}
	traceback := value.NewNone()
	val := value.NewNone()
	if argc == 3 {
		traceback = f.stack.Pop()
	}
	if argc >= 2 {
		val = f.stack.Pop()
	}
	excType := f.stack.Pop()

	switch o := excType.Obj.(type) {
	case *value.ObjException:
		// an instance was raised directly; derive its type
		val = excType
		excType = value.NewObject(o.ExcType)
	case *value.ObjExceptionType:
		if val.Type == value.VAL_NONE {
			val = value.NewException(o, nil)
		} else if _, isInst := val.Obj.(*value.ObjException); !isInst {
			val = value.NewException(o, []value.Value{val})
		}
	default:
		excType = f.lookupExcType("TypeError")
		val = value.NewException(excType.Obj.(*value.ObjExceptionType),
			[]value.Value{value.NewString("exceptions must derive from BaseException")})
		traceback = value.NewNone()
	}

	kind := "exception"
	if traceback.Type != value.VAL_NONE {
		kind = "reraise"
	}
	f.lastException = &excState{excType: excType, val: val, traceback: traceback}
	return &Raised{Kind: kind, ExcType: excType, Value: val, Traceback: traceback}
}

// buildClass runs a class body and returns its namespace as a module
// value. Proper class objects with methods bound to instances are not
// modeled.
func (f *Frame) buildClass(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.NewNone(), fmt.Errorf("__build_class__ expected at least 2 arguments, got %d", len(args))
	}
	body, ok := args[0].Obj.(*value.ObjFunction)
	if !ok {
		return value.NewNone(), fmt.Errorf("__build_class__: body is %s", value.TypeName(args[0]))
	}
	name := value.Str(args[1])
	obj, ok := body.Code.(*code.Object)
	if !ok {
		return value.NewNone(), fmt.Errorf("__build_class__: body has no code")
	}
	locals := make(map[string]value.Value, len(body.Snapshot))
	for k, v := range body.Snapshot {
		locals[k] = v
	}
	env := NewEnvironment(locals, body.Globals, body.Builtins)
	frame := newFrame(f.machine, obj, env, f.depth+1)
	if _, err := frame.Run(); err != nil {
		return value.NewNone(), err
	}
	mod := value.NewModuleObj(name)
	for k, v := range env.Locals {
		mod.Attrs[k] = v
	}
	return value.NewModule(mod), nil
}
