// Package image defines the on-disk program format: a small magic header
// followed by a CBOR document describing the top-level code object and
// everything reachable through its constants. Opcodes travel by symbolic
// name so that images stay readable with generic CBOR tooling and survive
// opcode renumbering.
package image

import (
	"bytes"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"pyvm/internal/code"
	"pyvm/internal/value"
)

const (
	// Magic prefixes every image file.
	Magic = "PYVM"
	// Version is the current format revision.
	Version byte = 1
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type codeRec struct {
	Name         string   `cbor:"name"`
	Ops          []opRec  `cbor:"ops"`
	Varnames     []string `cbor:"varnames,omitempty"`
	PosOnlyCount int      `cbor:"posonly,omitempty"`
	ArgCount     int      `cbor:"argcount,omitempty"`
	KwOnlyCount  int      `cbor:"kwonly,omitempty"`
	Flags        uint32   `cbor:"flags,omitempty"`
}

type opRec struct {
	Op  string  `cbor:"op"`
	Arg *valRec `cbor:"arg,omitempty"`
}

// valRec is a tagged union over the constant kinds an image may carry.
type valRec struct {
	Kind  string   `cbor:"kind"`
	Bool  bool     `cbor:"bool,omitempty"`
	Int   int64    `cbor:"int,omitempty"`
	Float float64  `cbor:"float,omitempty"`
	Str   string   `cbor:"str,omitempty"`
	Items []valRec `cbor:"items,omitempty"`
	Code  *codeRec `cbor:"code,omitempty"`
}

// Encode serializes a code object into image bytes.
func Encode(obj *code.Object) ([]byte, error) {
	rec, err := encodeCode(obj)
	if err != nil {
		return nil, err
	}
	body, err := cborEncMode.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("image: marshal: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(Magic)
	buf.WriteByte(Version)
	buf.Write(body)
	return buf.Bytes(), nil
}

// Decode parses image bytes back into a code object.
func Decode(data []byte) (*code.Object, error) {
	if len(data) < len(Magic)+1 || string(data[:len(Magic)]) != Magic {
		return nil, fmt.Errorf("image: bad magic")
	}
	if v := data[len(Magic)]; v != Version {
		return nil, fmt.Errorf("image: unsupported version %d", v)
	}
	var rec codeRec
	if err := cbor.Unmarshal(data[len(Magic)+1:], &rec); err != nil {
		return nil, fmt.Errorf("image: unmarshal: %w", err)
	}
	return decodeCode(&rec)
}

// Load reads and decodes an image file.
func Load(path string) (*code.Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("image: read %s: %w", path, err)
	}
	return Decode(data)
}

// Save encodes a code object and writes it to path.
func Save(path string, obj *code.Object) error {
	data, err := Encode(obj)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("image: write %s: %w", path, err)
	}
	return nil
}

func encodeCode(obj *code.Object) (*codeRec, error) {
	rec := &codeRec{
		Name:         obj.Name,
		Varnames:     obj.Varnames,
		PosOnlyCount: obj.PosOnlyCount,
		ArgCount:     obj.ArgCount,
		KwOnlyCount:  obj.KwOnlyCount,
		Flags:        obj.Flags,
		Ops:          make([]opRec, len(obj.Instructions)),
	}
	for i, instr := range obj.Instructions {
		rec.Ops[i].Op = instr.Op.String()
		if instr.Arg.Type == value.VAL_NONE && !takesNoneArg(instr.Op) {
			continue
		}
		arg, err := encodeValue(instr.Arg)
		if err != nil {
			return nil, fmt.Errorf("image: %s instruction %d: %w", obj.Name, i, err)
		}
		rec.Ops[i].Arg = arg
	}
	return rec, nil
}

// takesNoneArg reports whether op carries None as a real constant rather
// than as the no-argument marker.
func takesNoneArg(op code.Opcode) bool {
	return op == code.LOAD_CONST
}

func decodeCode(rec *codeRec) (*code.Object, error) {
	obj := &code.Object{
		Name:         rec.Name,
		Varnames:     rec.Varnames,
		PosOnlyCount: rec.PosOnlyCount,
		ArgCount:     rec.ArgCount,
		KwOnlyCount:  rec.KwOnlyCount,
		Flags:        rec.Flags,
		Instructions: make([]code.Instruction, len(rec.Ops)),
	}
	for i, op := range rec.Ops {
		opc, ok := code.OpcodeByName(op.Op)
		if !ok {
			return nil, fmt.Errorf("image: %s instruction %d: unknown opcode %q", rec.Name, i, op.Op)
		}
		obj.Instructions[i].Op = opc
		if op.Arg == nil {
			obj.Instructions[i].Arg = value.NewNone()
			continue
		}
		arg, err := decodeValue(op.Arg)
		if err != nil {
			return nil, fmt.Errorf("image: %s instruction %d: %w", rec.Name, i, err)
		}
		obj.Instructions[i].Arg = arg
	}
	return obj, nil
}

func encodeValue(v value.Value) (*valRec, error) {
	switch v.Type {
	case value.VAL_NONE:
		return &valRec{Kind: "none"}, nil
	case value.VAL_BOOL:
		return &valRec{Kind: "bool", Bool: v.AsBool}, nil
	case value.VAL_INT:
		return &valRec{Kind: "int", Int: v.AsInt}, nil
	case value.VAL_FLOAT:
		return &valRec{Kind: "float", Float: v.AsFloat}, nil
	case value.VAL_OBJ:
		switch o := v.Obj.(type) {
		case string:
			return &valRec{Kind: "str", Str: o}, nil
		case *value.ObjTuple:
			items := make([]valRec, len(o.Elements))
			for i, el := range o.Elements {
				rec, err := encodeValue(el)
				if err != nil {
					return nil, err
				}
				items[i] = *rec
			}
			return &valRec{Kind: "tuple", Items: items}, nil
		case *code.Object:
			rec, err := encodeCode(o)
			if err != nil {
				return nil, err
			}
			return &valRec{Kind: "code", Code: rec}, nil
		}
	}
	return nil, fmt.Errorf("unencodable constant %s", value.Repr(v))
}

func decodeValue(rec *valRec) (value.Value, error) {
	switch rec.Kind {
	case "none":
		return value.NewNone(), nil
	case "bool":
		return value.NewBool(rec.Bool), nil
	case "int":
		return value.NewInt(rec.Int), nil
	case "float":
		return value.NewFloat(rec.Float), nil
	case "str":
		return value.NewString(rec.Str), nil
	case "tuple":
		elems := make([]value.Value, len(rec.Items))
		for i := range rec.Items {
			el, err := decodeValue(&rec.Items[i])
			if err != nil {
				return value.NewNone(), err
			}
			elems[i] = el
		}
		return value.NewTuple(elems), nil
	case "code":
		obj, err := decodeCode(rec.Code)
		if err != nil {
			return value.NewNone(), err
		}
		return value.NewObject(obj), nil
	}
	return value.NewNone(), fmt.Errorf("unknown constant kind %q", rec.Kind)
}
