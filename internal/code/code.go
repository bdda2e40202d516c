package code

import (
	"fmt"
	"io"

	"pyvm/internal/value"
)

// Opcode is the enumerated instruction tag. Handlers dispatch through a
// dense switch on it rather than by name lookup.
type Opcode uint8

const (
	NOP Opcode = iota
	POP_TOP
	DUP_TOP
	DUP_TOP_TWO
	ROT_TWO
	ROT_THREE
	ROT_N

	LOAD_CONST
	LOAD_NAME
	STORE_NAME
	DELETE_NAME
	LOAD_FAST
	STORE_FAST
	DELETE_FAST
	LOAD_GLOBAL
	STORE_GLOBAL
	DELETE_GLOBAL

	LOAD_ATTR
	STORE_ATTR
	DELETE_ATTR
	LOAD_METHOD
	BINARY_SUBSCR
	STORE_SUBSCR
	DELETE_SUBSCR

	BINARY_ADD
	BINARY_SUBTRACT
	BINARY_MULTIPLY
	BINARY_TRUE_DIVIDE
	BINARY_FLOOR_DIVIDE
	BINARY_MODULO
	BINARY_POWER
	BINARY_LSHIFT
	BINARY_RSHIFT
	BINARY_AND
	BINARY_OR
	BINARY_XOR

	INPLACE_ADD
	INPLACE_SUBTRACT
	INPLACE_MULTIPLY
	INPLACE_TRUE_DIVIDE
	INPLACE_FLOOR_DIVIDE
	INPLACE_MODULO
	INPLACE_POWER
	INPLACE_LSHIFT
	INPLACE_RSHIFT
	INPLACE_AND
	INPLACE_OR
	INPLACE_XOR

	UNARY_POSITIVE
	UNARY_NEGATIVE
	UNARY_INVERT
	UNARY_NOT

	COMPARE_OP
	CONTAINS_OP
	IS_OP

	POP_JUMP_IF_TRUE
	POP_JUMP_IF_FALSE
	JUMP_IF_TRUE_OR_POP
	JUMP_IF_FALSE_OR_POP
	JUMP_FORWARD
	JUMP_ABSOLUTE

	GET_ITER
	FOR_ITER
	GET_YIELD_FROM_ITER
	GEN_START
	YIELD_VALUE

	BUILD_TUPLE
	BUILD_LIST
	BUILD_SET
	BUILD_MAP
	BUILD_CONST_KEY_MAP
	BUILD_STRING
	BUILD_SLICE
	LIST_APPEND
	LIST_EXTEND
	LIST_TO_TUPLE
	SET_ADD
	SET_UPDATE
	MAP_ADD
	UNPACK_SEQUENCE
	GET_LEN

	CALL_FUNCTION
	CALL_FUNCTION_KW
	CALL_METHOD
	MAKE_FUNCTION
	RETURN_VALUE

	RAISE_VARARGS
	LOAD_ASSERTION_ERROR
	LOAD_BUILD_CLASS

	IMPORT_NAME
	IMPORT_FROM
	IMPORT_STAR

	opcodeCount // keep last
)

var opNames = [opcodeCount]string{
	NOP:                  "NOP",
	POP_TOP:              "POP_TOP",
	DUP_TOP:              "DUP_TOP",
	DUP_TOP_TWO:          "DUP_TOP_TWO",
	ROT_TWO:              "ROT_TWO",
	ROT_THREE:            "ROT_THREE",
	ROT_N:                "ROT_N",
	LOAD_CONST:           "LOAD_CONST",
	LOAD_NAME:            "LOAD_NAME",
	STORE_NAME:           "STORE_NAME",
	DELETE_NAME:          "DELETE_NAME",
	LOAD_FAST:            "LOAD_FAST",
	STORE_FAST:           "STORE_FAST",
	DELETE_FAST:          "DELETE_FAST",
	LOAD_GLOBAL:          "LOAD_GLOBAL",
	STORE_GLOBAL:         "STORE_GLOBAL",
	DELETE_GLOBAL:        "DELETE_GLOBAL",
	LOAD_ATTR:            "LOAD_ATTR",
	STORE_ATTR:           "STORE_ATTR",
	DELETE_ATTR:          "DELETE_ATTR",
	LOAD_METHOD:          "LOAD_METHOD",
	BINARY_SUBSCR:        "BINARY_SUBSCR",
	STORE_SUBSCR:         "STORE_SUBSCR",
	DELETE_SUBSCR:        "DELETE_SUBSCR",
	BINARY_ADD:           "BINARY_ADD",
	BINARY_SUBTRACT:      "BINARY_SUBTRACT",
	BINARY_MULTIPLY:      "BINARY_MULTIPLY",
	BINARY_TRUE_DIVIDE:   "BINARY_TRUE_DIVIDE",
	BINARY_FLOOR_DIVIDE:  "BINARY_FLOOR_DIVIDE",
	BINARY_MODULO:        "BINARY_MODULO",
	BINARY_POWER:         "BINARY_POWER",
	BINARY_LSHIFT:        "BINARY_LSHIFT",
	BINARY_RSHIFT:        "BINARY_RSHIFT",
	BINARY_AND:           "BINARY_AND",
	BINARY_OR:            "BINARY_OR",
	BINARY_XOR:           "BINARY_XOR",
	INPLACE_ADD:          "INPLACE_ADD",
	INPLACE_SUBTRACT:     "INPLACE_SUBTRACT",
	INPLACE_MULTIPLY:     "INPLACE_MULTIPLY",
	INPLACE_TRUE_DIVIDE:  "INPLACE_TRUE_DIVIDE",
	INPLACE_FLOOR_DIVIDE: "INPLACE_FLOOR_DIVIDE",
	INPLACE_MODULO:       "INPLACE_MODULO",
	INPLACE_POWER:        "INPLACE_POWER",
	INPLACE_LSHIFT:       "INPLACE_LSHIFT",
	INPLACE_RSHIFT:       "INPLACE_RSHIFT",
	INPLACE_AND:          "INPLACE_AND",
	INPLACE_OR:           "INPLACE_OR",
	INPLACE_XOR:          "INPLACE_XOR",
	UNARY_POSITIVE:       "UNARY_POSITIVE",
	UNARY_NEGATIVE:       "UNARY_NEGATIVE",
	UNARY_INVERT:         "UNARY_INVERT",
	UNARY_NOT:            "UNARY_NOT",
	COMPARE_OP:           "COMPARE_OP",
	CONTAINS_OP:          "CONTAINS_OP",
	IS_OP:                "IS_OP",
	POP_JUMP_IF_TRUE:     "POP_JUMP_IF_TRUE",
	POP_JUMP_IF_FALSE:    "POP_JUMP_IF_FALSE",
	JUMP_IF_TRUE_OR_POP:  "JUMP_IF_TRUE_OR_POP",
	JUMP_IF_FALSE_OR_POP: "JUMP_IF_FALSE_OR_POP",
	JUMP_FORWARD:         "JUMP_FORWARD",
	JUMP_ABSOLUTE:        "JUMP_ABSOLUTE",
	GET_ITER:             "GET_ITER",
	FOR_ITER:             "FOR_ITER",
	GET_YIELD_FROM_ITER:  "GET_YIELD_FROM_ITER",
	GEN_START:            "GEN_START",
	YIELD_VALUE:          "YIELD_VALUE",
	BUILD_TUPLE:          "BUILD_TUPLE",
	BUILD_LIST:           "BUILD_LIST",
	BUILD_SET:            "BUILD_SET",
	BUILD_MAP:            "BUILD_MAP",
	BUILD_CONST_KEY_MAP:  "BUILD_CONST_KEY_MAP",
	BUILD_STRING:         "BUILD_STRING",
	BUILD_SLICE:          "BUILD_SLICE",
	LIST_APPEND:          "LIST_APPEND",
	LIST_EXTEND:          "LIST_EXTEND",
	LIST_TO_TUPLE:        "LIST_TO_TUPLE",
	SET_ADD:              "SET_ADD",
	SET_UPDATE:           "SET_UPDATE",
	MAP_ADD:              "MAP_ADD",
	UNPACK_SEQUENCE:      "UNPACK_SEQUENCE",
	GET_LEN:              "GET_LEN",
	CALL_FUNCTION:        "CALL_FUNCTION",
	CALL_FUNCTION_KW:     "CALL_FUNCTION_KW",
	CALL_METHOD:          "CALL_METHOD",
	MAKE_FUNCTION:        "MAKE_FUNCTION",
	RETURN_VALUE:         "RETURN_VALUE",
	RAISE_VARARGS:        "RAISE_VARARGS",
	LOAD_ASSERTION_ERROR: "LOAD_ASSERTION_ERROR",
	LOAD_BUILD_CLASS:     "LOAD_BUILD_CLASS",
	IMPORT_NAME:          "IMPORT_NAME",
	IMPORT_FROM:          "IMPORT_FROM",
	IMPORT_STAR:          "IMPORT_STAR",
}

func (op Opcode) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("OPCODE_%d", op)
}

// OpcodeByName resolves a symbolic opcode name, as used by the image
// format.
func OpcodeByName(name string) (Opcode, bool) {
	for op, n := range opNames {
		if n == name {
			return Opcode(op), true
		}
	}
	return NOP, false
}

// Instruction is one decoded instruction: opcode plus its decoded
// argument. The argument's meaning is opcode-specific: a constant, a name
// (string value), a jump target (instruction index, never a byte offset)
// or a small count/flag (int value).
type Instruction struct {
	Op  Opcode
	Arg value.Value
}

// Instr builds an instruction with an argument.
func Instr(op Opcode, arg value.Value) Instruction {
	return Instruction{Op: op, Arg: arg}
}

// Op builds an argument-less instruction.
func Op(op Opcode) Instruction {
	return Instruction{Op: op, Arg: value.NewNone()}
}

// code object flags, matching the conventional CO_* bit positions
const (
	FlagVarArgs   uint32 = 0x04
	FlagVarKwargs uint32 = 0x08
)

// Object is an immutable compiled-routine descriptor. Varnames is
// partitioned into regions:
//
//	[0, PosOnlyCount)        positional-only parameters
//	[PosOnlyCount, ArgCount) positional-or-keyword parameters
//	[ArgCount, ArgCount+KwOnlyCount) keyword-only parameters
//	then the varargs name if FlagVarArgs, then the varkwargs name if
//	FlagVarKwargs, then plain local variables.
type Object struct {
	Name         string
	Instructions []Instruction
	Varnames     []string
	PosOnlyCount int
	ArgCount     int // positional-only plus positional-or-keyword
	KwOnlyCount  int
	Flags        uint32
}

func (o *Object) HasVarArgs() bool {
	return o.Flags&FlagVarArgs != 0
}

func (o *Object) HasVarKwargs() bool {
	return o.Flags&FlagVarKwargs != 0
}

// VarArgsName returns the *args collector name.
func (o *Object) VarArgsName() string {
	return o.Varnames[o.ArgCount+o.KwOnlyCount]
}

// VarKwargsName returns the **kwargs collector name.
func (o *Object) VarKwargsName() string {
	i := o.ArgCount + o.KwOnlyCount
	if o.HasVarArgs() {
		i++
	}
	return o.Varnames[i]
}

func (o *Object) String() string {
	return fmt.Sprintf("<code object %s>", o.Name)
}

// Disassemble writes a listing of this object's instructions.
func (o *Object) Disassemble(w io.Writer) {
	fmt.Fprintf(w, "== %s ==\n", o.Name)
	for i, instr := range o.Instructions {
		if instr.Arg.Type == value.VAL_NONE {
			fmt.Fprintf(w, "%04d %s\n", i, instr.Op)
			continue
		}
		fmt.Fprintf(w, "%04d %-20s %s\n", i, instr.Op, value.Repr(instr.Arg))
	}
}

// DisassembleAll writes this object and every code object reachable
// through its constants.
func (o *Object) DisassembleAll(w io.Writer) {
	o.Disassemble(w)
	for _, instr := range o.Instructions {
		if instr.Arg.Type != value.VAL_OBJ {
			continue
		}
		if nested, ok := instr.Arg.Obj.(*Object); ok {
			fmt.Fprintln(w)
			nested.DisassembleAll(w)
		}
	}
}
