package vm

import (
	"bytes"
	"errors"
	"testing"

	"pyvm/internal/code"
	"pyvm/internal/value"
)

func run(t *testing.T, instrs []code.Instruction) value.Value {
	t.Helper()
	v, err := runErr(instrs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return v
}

func runErr(instrs []code.Instruction) (value.Value, error) {
	m := New(Config{Stdout: &bytes.Buffer{}})
	obj := &code.Object{Name: "<test>", Instructions: instrs}
	return m.Interpret(obj)
}

func wantInt(t *testing.T, v value.Value, want int64) {
	t.Helper()
	if v.Type != value.VAL_INT || v.AsInt != want {
		t.Errorf("got %s, want %d", value.Repr(v), want)
	}
}

func TestLoadConstReturn(t *testing.T) {
	consts := []value.Value{
		value.NewInt(42),
		value.NewFloat(2.5),
		value.NewBool(true),
		value.NewNone(),
		value.NewString("hi"),
	}
	for _, c := range consts {
		v := run(t, []code.Instruction{
			code.Instr(code.LOAD_CONST, c),
			code.Op(code.RETURN_VALUE),
		})
		if !value.Equal(v, c) || v.Type != c.Type {
			t.Errorf("returned %s, want %s", value.Repr(v), value.Repr(c))
		}
	}
}

func TestBinaryOperandOrder(t *testing.T) {
	tests := []struct {
		op   code.Opcode
		a, b int64
		want int64
	}{
		{code.BINARY_ADD, 3, 4, 7},
		{code.BINARY_SUBTRACT, 10, 3, 7},
		{code.BINARY_MULTIPLY, 6, 7, 42},
		{code.BINARY_FLOOR_DIVIDE, 7, 2, 3},
		{code.BINARY_MODULO, 7, 3, 1},
		{code.BINARY_POWER, 2, 10, 1024},
		{code.BINARY_LSHIFT, 1, 4, 16},
		{code.BINARY_RSHIFT, 64, 3, 8},
		{code.BINARY_AND, 6, 3, 2},
		{code.BINARY_OR, 6, 3, 7},
		{code.BINARY_XOR, 6, 3, 5},
	}
	for _, tc := range tests {
		v := run(t, []code.Instruction{
			code.Instr(code.LOAD_CONST, value.NewInt(tc.a)),
			code.Instr(code.LOAD_CONST, value.NewInt(tc.b)),
			code.Op(tc.op),
			code.Op(code.RETURN_VALUE),
		})
		if v.AsInt != tc.want {
			t.Errorf("%s(%d, %d) = %s, want %d", tc.op, tc.a, tc.b, value.Repr(v), tc.want)
		}
	}
}

func TestFloorDivNegative(t *testing.T) {
	v := run(t, []code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewInt(-7)),
		code.Instr(code.LOAD_CONST, value.NewInt(2)),
		code.Op(code.BINARY_FLOOR_DIVIDE),
		code.Op(code.RETURN_VALUE),
	})
	wantInt(t, v, -4)
}

func TestDivisionByZero(t *testing.T) {
	_, err := runErr([]code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewInt(1)),
		code.Instr(code.LOAD_CONST, value.NewInt(0)),
		code.Op(code.BINARY_TRUE_DIVIDE),
		code.Op(code.RETURN_VALUE),
	})
	if err == nil {
		t.Fatal("expected division error")
	}
}

func TestInplaceAliasesBinary(t *testing.T) {
	v := run(t, []code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewInt(10)),
		code.Instr(code.LOAD_CONST, value.NewInt(4)),
		code.Op(code.INPLACE_SUBTRACT),
		code.Op(code.RETURN_VALUE),
	})
	wantInt(t, v, 6)
}

func TestCompareOps(t *testing.T) {
	tests := []struct {
		op   string
		a, b int64
		want bool
	}{
		{"<", 1, 2, true},
		{"<=", 2, 2, true},
		{"==", 2, 2, true},
		{"!=", 2, 2, false},
		{">", 1, 2, false},
		{">=", 3, 2, true},
	}
	for _, tc := range tests {
		v := run(t, []code.Instruction{
			code.Instr(code.LOAD_CONST, value.NewInt(tc.a)),
			code.Instr(code.LOAD_CONST, value.NewInt(tc.b)),
			code.Instr(code.COMPARE_OP, value.NewString(tc.op)),
			code.Op(code.RETURN_VALUE),
		})
		if v.Type != value.VAL_BOOL || v.AsBool != tc.want {
			t.Errorf("%d %s %d = %s, want %v", tc.a, tc.op, tc.b, value.Repr(v), tc.want)
		}
	}
}

func TestContainsAndInvert(t *testing.T) {
	prog := func(invert int64) []code.Instruction {
		return []code.Instruction{
			code.Instr(code.LOAD_CONST, value.NewInt(2)),
			code.Instr(code.LOAD_CONST, value.NewInt(1)),
			code.Instr(code.LOAD_CONST, value.NewInt(2)),
			code.Instr(code.BUILD_LIST, value.NewInt(2)),
			code.Instr(code.CONTAINS_OP, value.NewInt(invert)),
			code.Op(code.RETURN_VALUE),
		}
	}
	if v := run(t, prog(0)); !v.AsBool {
		t.Error("2 in [1, 2] should be True")
	}
	if v := run(t, prog(1)); v.AsBool {
		t.Error("2 not in [1, 2] should be False")
	}
}

func TestIsOp(t *testing.T) {
	v := run(t, []code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewNone()),
		code.Instr(code.LOAD_CONST, value.NewNone()),
		code.Instr(code.IS_OP, value.NewInt(0)),
		code.Op(code.RETURN_VALUE),
	})
	if !v.AsBool {
		t.Error("None is None should be True")
	}
}

func TestUnaryOps(t *testing.T) {
	v := run(t, []code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewInt(5)),
		code.Op(code.UNARY_NEGATIVE),
		code.Op(code.RETURN_VALUE),
	})
	wantInt(t, v, -5)

	v = run(t, []code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewInt(0)),
		code.Op(code.UNARY_NOT),
		code.Op(code.RETURN_VALUE),
	})
	if v.Type != value.VAL_BOOL || !v.AsBool {
		t.Errorf("not 0 = %s", value.Repr(v))
	}
}

func TestNameResolutionOrder(t *testing.T) {
	// x bound in globals (top-level store), then shadowed via a
	// function's local
	v := run(t, []code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewInt(1)),
		code.Instr(code.STORE_NAME, value.NewString("x")),
		code.Instr(code.LOAD_NAME, value.NewString("x")),
		code.Op(code.RETURN_VALUE),
	})
	wantInt(t, v, 1)

	// a name only in builtins resolves there
	v = run(t, []code.Instruction{
		code.Instr(code.LOAD_NAME, value.NewString("len")),
		code.Instr(code.LOAD_CONST, value.NewString("abc")),
		code.Instr(code.CALL_FUNCTION, value.NewInt(1)),
		code.Op(code.RETURN_VALUE),
	})
	wantInt(t, v, 3)
}

func TestUnresolvedNameFails(t *testing.T) {
	_, err := runErr([]code.Instruction{
		code.Instr(code.LOAD_NAME, value.NewString("missing")),
		code.Op(code.RETURN_VALUE),
	})
	var ne *NameError
	if !errors.As(err, &ne) || ne.Name != "missing" {
		t.Fatalf("expected NameError for 'missing', got %v", err)
	}
}

func TestLoadFastUnbound(t *testing.T) {
	_, err := runErr([]code.Instruction{
		code.Instr(code.LOAD_FAST, value.NewString("x")),
		code.Op(code.RETURN_VALUE),
	})
	var ue *UnboundLocalError
	if !errors.As(err, &ue) || ue.Name != "x" {
		t.Fatalf("expected UnboundLocalError for 'x', got %v", err)
	}
}

func TestDeleteName(t *testing.T) {
	_, err := runErr([]code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewInt(1)),
		code.Instr(code.STORE_NAME, value.NewString("x")),
		code.Instr(code.DELETE_NAME, value.NewString("x")),
		code.Instr(code.LOAD_NAME, value.NewString("x")),
		code.Op(code.RETURN_VALUE),
	})
	var ne *NameError
	if !errors.As(err, &ne) {
		t.Fatalf("expected NameError after delete, got %v", err)
	}

	_, err = runErr([]code.Instruction{
		code.Instr(code.DELETE_NAME, value.NewString("never")),
	})
	if !errors.As(err, &ne) {
		t.Fatalf("expected NameError deleting absent name, got %v", err)
	}
}

func TestOrPopJumpStackDepth(t *testing.T) {
	// truthy top: jump taken, value left on the stack
	v := run(t, []code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewInt(7)),
		code.Instr(code.JUMP_IF_TRUE_OR_POP, value.NewInt(3)),
		code.Instr(code.LOAD_CONST, value.NewInt(0)), // skipped
		code.Op(code.RETURN_VALUE),
	})
	wantInt(t, v, 7)

	// falsy top: no jump, value popped
	v = run(t, []code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewInt(0)),
		code.Instr(code.JUMP_IF_TRUE_OR_POP, value.NewInt(4)),
		code.Instr(code.LOAD_CONST, value.NewInt(9)),
		code.Op(code.RETURN_VALUE),
	})
	wantInt(t, v, 9)
}

func TestPopJumpIfFalse(t *testing.T) {
	v := run(t, []code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewBool(false)),
		code.Instr(code.POP_JUMP_IF_FALSE, value.NewInt(4)),
		code.Instr(code.LOAD_CONST, value.NewInt(1)),
		code.Op(code.RETURN_VALUE),
		code.Instr(code.LOAD_CONST, value.NewInt(2)),
		code.Op(code.RETURN_VALUE),
	})
	wantInt(t, v, 2)
}

func TestJumpAbsolute(t *testing.T) {
	v := run(t, []code.Instruction{
		code.Instr(code.JUMP_ABSOLUTE, value.NewInt(3)),
		code.Instr(code.LOAD_CONST, value.NewInt(1)),
		code.Op(code.RETURN_VALUE),
		code.Instr(code.LOAD_CONST, value.NewInt(2)),
		code.Op(code.RETURN_VALUE),
	})
	wantInt(t, v, 2)
}

func TestForIterThreeSteps(t *testing.T) {
	// sum a two-element list with an explicit loop:
	//  0 LOAD_CONST 0       total
	//  1 STORE_NAME total
	//  2 LOAD_CONST 10
	//  3 LOAD_CONST 20
	//  4 BUILD_LIST 2
	//  5 GET_ITER
	//  6 FOR_ITER 13        two pushes, then exhaustion jumps
	//  7 STORE_NAME x
	//  8 LOAD_NAME total
	//  9 LOAD_NAME x
	// 10 BINARY_ADD
	// 11 STORE_NAME total
	// 12 JUMP_ABSOLUTE 6
	// 13 LOAD_NAME total
	// 14 RETURN_VALUE
	v := run(t, []code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewInt(0)),
		code.Instr(code.STORE_NAME, value.NewString("total")),
		code.Instr(code.LOAD_CONST, value.NewInt(10)),
		code.Instr(code.LOAD_CONST, value.NewInt(20)),
		code.Instr(code.BUILD_LIST, value.NewInt(2)),
		code.Op(code.GET_ITER),
		code.Instr(code.FOR_ITER, value.NewInt(13)),
		code.Instr(code.STORE_NAME, value.NewString("x")),
		code.Instr(code.LOAD_NAME, value.NewString("total")),
		code.Instr(code.LOAD_NAME, value.NewString("x")),
		code.Op(code.BINARY_ADD),
		code.Instr(code.STORE_NAME, value.NewString("total")),
		code.Instr(code.JUMP_ABSOLUTE, value.NewInt(6)),
		code.Instr(code.LOAD_NAME, value.NewString("total")),
		code.Op(code.RETURN_VALUE),
	})
	wantInt(t, v, 30)
}

func TestForIterStateTransitions(t *testing.T) {
	m := New(Config{Stdout: &bytes.Buffer{}})
	obj := &code.Object{Name: "<test>", Instructions: []code.Instruction{
		code.Instr(code.FOR_ITER, value.NewInt(9)),
	}}
	f := newFrame(m, obj, NewEnvironment(nil, nil, nil), 0)
	it := value.NewIterator([]value.Value{value.NewInt(1), value.NewInt(2)})
	f.stack.Push(it)

	for i := int64(1); i <= 2; i++ {
		if err := f.exec(obj.Instructions[0]); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if f.pendingJump != -1 {
			t.Fatalf("step %d set pendingJump=%d", i, f.pendingJump)
		}
		wantInt(t, f.stack.Pop(), i)
	}

	if err := f.exec(obj.Instructions[0]); err != nil {
		t.Fatalf("exhaustion step: %v", err)
	}
	if f.pendingJump != 9 {
		t.Errorf("exhaustion pendingJump=%d, want 9", f.pendingJump)
	}
	if f.stack.Len() != 0 {
		t.Errorf("iterator not popped, depth %d", f.stack.Len())
	}
}

func TestBuildListToTuple(t *testing.T) {
	v := run(t, []code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewInt(1)),
		code.Instr(code.LOAD_CONST, value.NewInt(2)),
		code.Instr(code.LOAD_CONST, value.NewInt(3)),
		code.Instr(code.BUILD_LIST, value.NewInt(3)),
		code.Op(code.LIST_TO_TUPLE),
		code.Op(code.RETURN_VALUE),
	})
	tup, ok := v.Obj.(*value.ObjTuple)
	if !ok {
		t.Fatalf("got %s, want tuple", value.TypeName(v))
	}
	for i, want := range []int64{1, 2, 3} {
		wantInt(t, tup.Elements[i], want)
	}
}

func TestBuildMapAndSubscript(t *testing.T) {
	v := run(t, []code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewString("a")),
		code.Instr(code.LOAD_CONST, value.NewInt(1)),
		code.Instr(code.LOAD_CONST, value.NewString("b")),
		code.Instr(code.LOAD_CONST, value.NewInt(2)),
		code.Instr(code.BUILD_MAP, value.NewInt(2)),
		code.Instr(code.LOAD_CONST, value.NewString("b")),
		code.Op(code.BINARY_SUBSCR),
		code.Op(code.RETURN_VALUE),
	})
	wantInt(t, v, 2)
}

func TestBuildConstKeyMap(t *testing.T) {
	keys := value.NewTuple([]value.Value{value.NewString("x"), value.NewString("y")})
	v := run(t, []code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewInt(10)),
		code.Instr(code.LOAD_CONST, value.NewInt(20)),
		code.Instr(code.LOAD_CONST, keys),
		code.Instr(code.BUILD_CONST_KEY_MAP, value.NewInt(2)),
		code.Instr(code.LOAD_CONST, value.NewString("y")),
		code.Op(code.BINARY_SUBSCR),
		code.Op(code.RETURN_VALUE),
	})
	wantInt(t, v, 20)
}

func TestBuildString(t *testing.T) {
	v := run(t, []code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewString("a=")),
		code.Instr(code.LOAD_CONST, value.NewInt(3)),
		code.Instr(code.BUILD_STRING, value.NewInt(2)),
		code.Op(code.RETURN_VALUE),
	})
	if value.Str(v) != "a=3" {
		t.Errorf("BUILD_STRING = %s", value.Repr(v))
	}
}

func TestStoreSubscr(t *testing.T) {
	// lst = [0]; lst[0] = 9; return lst[0]
	v := run(t, []code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewInt(0)),
		code.Instr(code.BUILD_LIST, value.NewInt(1)),
		code.Instr(code.STORE_NAME, value.NewString("lst")),
		code.Instr(code.LOAD_CONST, value.NewInt(9)),
		code.Instr(code.LOAD_NAME, value.NewString("lst")),
		code.Instr(code.LOAD_CONST, value.NewInt(0)),
		code.Op(code.STORE_SUBSCR),
		code.Instr(code.LOAD_NAME, value.NewString("lst")),
		code.Instr(code.LOAD_CONST, value.NewInt(0)),
		code.Op(code.BINARY_SUBSCR),
		code.Op(code.RETURN_VALUE),
	})
	wantInt(t, v, 9)
}

func TestSliceSubscript(t *testing.T) {
	v := run(t, []code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewString("hello")),
		code.Instr(code.LOAD_CONST, value.NewInt(1)),
		code.Instr(code.LOAD_CONST, value.NewInt(4)),
		code.Instr(code.BUILD_SLICE, value.NewInt(2)),
		code.Op(code.BINARY_SUBSCR),
		code.Op(code.RETURN_VALUE),
	})
	if value.Str(v) != "ell" {
		t.Errorf("'hello'[1:4] = %s", value.Repr(v))
	}
}

func TestListAppendBelowTop(t *testing.T) {
	// comprehension shape: the list sits under the loop temporary
	v := run(t, []code.Instruction{
		code.Instr(code.BUILD_LIST, value.NewInt(0)),
		code.Instr(code.LOAD_CONST, value.NewInt(5)), // loop temp
		code.Instr(code.LOAD_CONST, value.NewInt(7)),
		code.Instr(code.LIST_APPEND, value.NewInt(2)),
		code.Op(code.POP_TOP), // drop the temp
		code.Op(code.RETURN_VALUE),
	})
	lst, ok := v.Obj.(*value.ObjList)
	if !ok || len(lst.Elements) != 1 {
		t.Fatalf("got %s", value.Repr(v))
	}
	wantInt(t, lst.Elements[0], 7)
}

func TestMapAddBelowTop(t *testing.T) {
	v := run(t, []code.Instruction{
		code.Instr(code.BUILD_MAP, value.NewInt(0)),
		code.Instr(code.LOAD_CONST, value.NewString("k")),
		code.Instr(code.LOAD_CONST, value.NewInt(3)),
		code.Instr(code.MAP_ADD, value.NewInt(1)),
		code.Instr(code.LOAD_CONST, value.NewString("k")),
		code.Op(code.BINARY_SUBSCR),
		code.Op(code.RETURN_VALUE),
	})
	wantInt(t, v, 3)
}

func TestUnpackSequence(t *testing.T) {
	// a, b = (1, 2); return a
	v := run(t, []code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewTuple([]value.Value{value.NewInt(1), value.NewInt(2)})),
		code.Instr(code.UNPACK_SEQUENCE, value.NewInt(2)),
		code.Instr(code.STORE_NAME, value.NewString("a")),
		code.Instr(code.STORE_NAME, value.NewString("b")),
		code.Instr(code.LOAD_NAME, value.NewString("a")),
		code.Op(code.RETURN_VALUE),
	})
	wantInt(t, v, 1)

	_, err := runErr([]code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewTuple([]value.Value{value.NewInt(1)})),
		code.Instr(code.UNPACK_SEQUENCE, value.NewInt(2)),
	})
	if err == nil {
		t.Error("expected unpack count mismatch error")
	}
}

func TestRotAndDup(t *testing.T) {
	v := run(t, []code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewInt(1)),
		code.Instr(code.LOAD_CONST, value.NewInt(2)),
		code.Op(code.ROT_TWO),
		code.Op(code.RETURN_VALUE),
	})
	wantInt(t, v, 1)

	v = run(t, []code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewInt(4)),
		code.Op(code.DUP_TOP),
		code.Op(code.BINARY_ADD),
		code.Op(code.RETURN_VALUE),
	})
	wantInt(t, v, 8)
}

func TestGetLenPeeks(t *testing.T) {
	v := run(t, []code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewString("abcd")),
		code.Op(code.GET_LEN),
		code.Op(code.RETURN_VALUE),
	})
	wantInt(t, v, 4)
}

func TestRaiseOutcomes(t *testing.T) {
	// fresh raise of a type
	_, err := runErr([]code.Instruction{
		code.Instr(code.LOAD_NAME, value.NewString("ValueError")),
		code.Instr(code.RAISE_VARARGS, value.NewInt(1)),
	})
	var raised *Raised
	if !errors.As(err, &raised) {
		t.Fatalf("expected Raised, got %v", err)
	}
	if raised.Kind != "exception" {
		t.Errorf("Kind = %q, want exception", raised.Kind)
	}
	et, ok := raised.ExcType.Obj.(*value.ObjExceptionType)
	if !ok || et.Name != "ValueError" {
		t.Errorf("ExcType = %s", value.Repr(raised.ExcType))
	}

	// raise with explicit value wraps it into the instance args
	_, err = runErr([]code.Instruction{
		code.Instr(code.LOAD_NAME, value.NewString("ValueError")),
		code.Instr(code.LOAD_CONST, value.NewString("bad input")),
		code.Instr(code.RAISE_VARARGS, value.NewInt(2)),
	})
	if !errors.As(err, &raised) {
		t.Fatalf("expected Raised, got %v", err)
	}
	exc, ok := raised.Value.Obj.(*value.ObjException)
	if !ok || len(exc.Args) != 1 || value.Str(exc.Args[0]) != "bad input" {
		t.Errorf("Value = %s", value.Repr(raised.Value))
	}

	// bare raise with nothing recorded is a RuntimeError
	_, err = runErr([]code.Instruction{
		code.Instr(code.RAISE_VARARGS, value.NewInt(0)),
	})
	if !errors.As(err, &raised) {
		t.Fatalf("expected Raised, got %v", err)
	}
	et, ok = raised.ExcType.Obj.(*value.ObjExceptionType)
	if !ok || et.Name != "RuntimeError" {
		t.Errorf("bare raise ExcType = %s", value.Repr(raised.ExcType))
	}
	if got := raised.Error(); got != "RuntimeError: No active exception to re-raise" {
		t.Errorf("bare raise Error() = %q", got)
	}

	// a non-exception operand raises TypeError
	_, err = runErr([]code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewInt(3)),
		code.Instr(code.RAISE_VARARGS, value.NewInt(1)),
	})
	if !errors.As(err, &raised) {
		t.Fatalf("expected Raised, got %v", err)
	}
	et, ok = raised.ExcType.Obj.(*value.ObjExceptionType)
	if !ok || et.Name != "TypeError" {
		t.Errorf("raise 3 ExcType = %s", value.Repr(raised.ExcType))
	}
}

func TestRaiseWithTracebackIsReraise(t *testing.T) {
	_, err := runErr([]code.Instruction{
		code.Instr(code.LOAD_NAME, value.NewString("ValueError")),
		code.Instr(code.LOAD_CONST, value.NewString("v")),
		code.Instr(code.LOAD_CONST, value.NewString("tb")),
		code.Instr(code.RAISE_VARARGS, value.NewInt(3)),
	})
	var raised *Raised
	if !errors.As(err, &raised) {
		t.Fatalf("expected Raised, got %v", err)
	}
	if raised.Kind != "reraise" {
		t.Errorf("Kind = %q, want reraise", raised.Kind)
	}
	if got := raised.Error(); got != "ValueError: v" {
		t.Errorf("Error() = %q, want %q", got, "ValueError: v")
	}
}

func TestBareReraiseKindTracksStoredTraceback(t *testing.T) {
	m := New(Config{Stdout: &bytes.Buffer{}})
	obj := &code.Object{Name: "<test>"}
	f := newFrame(m, obj, NewEnvironment(nil, nil, nil), 0)

	excType := f.lookupExcType("ValueError")
	val := value.NewException(excType.Obj.(*value.ObjExceptionType), nil)

	f.lastException = &excState{excType: excType, val: val, traceback: value.NewNone()}
	err := f.raise(0)
	var raised *Raised
	if !errors.As(err, &raised) {
		t.Fatalf("expected Raised, got %v", err)
	}
	if raised.Kind != "exception" {
		t.Errorf("Kind without traceback = %q, want exception", raised.Kind)
	}

	f.lastException = &excState{excType: excType, val: val, traceback: value.NewString("tb")}
	err = f.raise(0)
	if !errors.As(err, &raised) {
		t.Fatalf("expected Raised, got %v", err)
	}
	if raised.Kind != "reraise" {
		t.Errorf("Kind with traceback = %q, want reraise", raised.Kind)
	}
}

func TestLoadAssertionError(t *testing.T) {
	v := run(t, []code.Instruction{
		code.Op(code.LOAD_ASSERTION_ERROR),
		code.Op(code.RETURN_VALUE),
	})
	et, ok := v.Obj.(*value.ObjExceptionType)
	if !ok || et.Name != "AssertionError" {
		t.Errorf("got %s", value.Repr(v))
	}
}

func TestRaisePropagatesThroughCalls(t *testing.T) {
	// def f(): raise ValueError
	// f()
	fn := &code.Object{
		Name: "f",
		Instructions: []code.Instruction{
			code.Instr(code.LOAD_GLOBAL, value.NewString("ValueError")),
			code.Instr(code.RAISE_VARARGS, value.NewInt(1)),
		},
	}
	_, err := runErr([]code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewObject(fn)),
		code.Instr(code.LOAD_CONST, value.NewString("f")),
		code.Instr(code.MAKE_FUNCTION, value.NewInt(0)),
		code.Instr(code.CALL_FUNCTION, value.NewInt(0)),
		code.Op(code.RETURN_VALUE),
	})
	var raised *Raised
	if !errors.As(err, &raised) {
		t.Fatalf("expected Raised through the call chain, got %v", err)
	}
}

func TestImportRegisteredModule(t *testing.T) {
	m := New(Config{Stdout: &bytes.Buffer{}})
	mod := value.NewModuleObj("math")
	mod.Attrs["pi"] = value.NewFloat(3.14159)
	m.RegisterModule(mod)

	obj := &code.Object{Name: "<test>", Instructions: []code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewInt(0)),   // level
		code.Instr(code.LOAD_CONST, value.NewNone()),   // fromlist
		code.Instr(code.IMPORT_NAME, value.NewString("math")),
		code.Instr(code.LOAD_ATTR, value.NewString("pi")),
		code.Op(code.RETURN_VALUE),
	}}
	v, err := m.Interpret(obj)
	if err != nil {
		t.Fatalf("interpret: %v", err)
	}
	if v.AsFloat != 3.14159 {
		t.Errorf("math.pi = %s", value.Repr(v))
	}
}

func TestImportMissingModule(t *testing.T) {
	_, err := runErr([]code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewInt(0)),
		code.Instr(code.LOAD_CONST, value.NewNone()),
		code.Instr(code.IMPORT_NAME, value.NewString("nowhere")),
	})
	var ie *ImportError
	if !errors.As(err, &ie) || ie.Name != "nowhere" {
		t.Fatalf("expected ImportError for 'nowhere', got %v", err)
	}
}

func TestImportFromAndStar(t *testing.T) {
	m := New(Config{Stdout: &bytes.Buffer{}})
	mod := value.NewModuleObj("cfg")
	mod.Attrs["limit"] = value.NewInt(10)
	mod.Attrs["_hidden"] = value.NewInt(1)
	m.RegisterModule(mod)

	obj := &code.Object{Name: "<test>", Instructions: []code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewInt(0)),
		code.Instr(code.LOAD_CONST, value.NewNone()),
		code.Instr(code.IMPORT_NAME, value.NewString("cfg")),
		code.Op(code.IMPORT_STAR),
		code.Instr(code.LOAD_NAME, value.NewString("limit")),
		code.Op(code.RETURN_VALUE),
	}}
	v, err := m.Interpret(obj)
	if err != nil {
		t.Fatalf("interpret: %v", err)
	}
	wantInt(t, v, 10)

	obj = &code.Object{Name: "<test>", Instructions: []code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewInt(0)),
		code.Instr(code.LOAD_CONST, value.NewNone()),
		code.Instr(code.IMPORT_NAME, value.NewString("cfg")),
		code.Op(code.IMPORT_STAR),
		code.Instr(code.LOAD_NAME, value.NewString("_hidden")),
		code.Op(code.RETURN_VALUE),
	}}
	if _, err := m.Interpret(obj); err == nil {
		t.Error("underscore names must not be star-imported")
	}
}

func TestYieldValueDiscards(t *testing.T) {
	v := run(t, []code.Instruction{
		code.Op(code.GEN_START),
		code.Instr(code.LOAD_CONST, value.NewInt(1)),
		code.Op(code.YIELD_VALUE),
		code.Instr(code.LOAD_CONST, value.NewInt(2)),
		code.Op(code.RETURN_VALUE),
	})
	wantInt(t, v, 2)
}

func TestPrintWritesToConfiguredStdout(t *testing.T) {
	var out bytes.Buffer
	m := New(Config{Stdout: &out})
	obj := &code.Object{Name: "<test>", Instructions: []code.Instruction{
		code.Instr(code.LOAD_NAME, value.NewString("print")),
		code.Instr(code.LOAD_CONST, value.NewString("hello")),
		code.Instr(code.CALL_FUNCTION, value.NewInt(1)),
		code.Op(code.POP_TOP),
		code.Instr(code.LOAD_CONST, value.NewNone()),
		code.Op(code.RETURN_VALUE),
	}}
	if _, err := m.Interpret(obj); err != nil {
		t.Fatalf("interpret: %v", err)
	}
	if out.String() != "hello\n" {
		t.Errorf("stdout = %q", out.String())
	}
}

func TestReturnDefaultsToNone(t *testing.T) {
	v := run(t, []code.Instruction{
		code.Instr(code.LOAD_CONST, value.NewInt(1)),
		code.Op(code.POP_TOP),
	})
	if v.Type != value.VAL_NONE {
		t.Errorf("fallthrough return = %s", value.Repr(v))
	}
}

func TestUnknownOpcodePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on unknown opcode")
		}
	}()
	_, _ = runErr([]code.Instruction{
		{Op: code.Opcode(250), Arg: value.NewNone()},
	})
}
