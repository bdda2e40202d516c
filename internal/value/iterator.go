package value

import (
	"errors"
	"fmt"
)

// ErrStopIteration signals an exhausted iterator to callers that asked
// for one more element than it holds.
var ErrStopIteration = errors.New("StopIteration")

// Iterator is the iteration handle produced by Iter. Next returns the next
// element and true, or an arbitrary value and false when exhausted.
type Iterator interface {
	Next() (Value, bool)
}

type seqIterator struct {
	items []Value
	pos   int
}

func (it *seqIterator) Next() (Value, bool) {
	if it.pos >= len(it.items) {
		return NewNone(), false
	}
	v := it.items[it.pos]
	it.pos++
	return v, true
}

type rangeIterator struct {
	cur  int64
	stop int64
	step int64
}

func (it *rangeIterator) Next() (Value, bool) {
	if it.step > 0 && it.cur >= it.stop {
		return NewNone(), false
	}
	if it.step < 0 && it.cur <= it.stop {
		return NewNone(), false
	}
	v := NewInt(it.cur)
	it.cur += it.step
	return v, true
}

type stringIterator struct {
	runes []rune
	pos   int
}

func (it *stringIterator) Next() (Value, bool) {
	if it.pos >= len(it.runes) {
		return NewNone(), false
	}
	v := NewString(string(it.runes[it.pos]))
	it.pos++
	return v, true
}

// NewIterator wraps a pre-built element sequence.
func NewIterator(items []Value) Value {
	return Value{Type: VAL_OBJ, Obj: Iterator(&seqIterator{items: items})}
}

// IsIterator reports whether v is already an iteration handle.
func IsIterator(v Value) bool {
	if v.Type != VAL_OBJ {
		return false
	}
	_, ok := v.Obj.(Iterator)
	return ok
}

// Iter returns the iteration form of v. Iterators pass through unchanged.
func Iter(v Value) (Value, error) {
	if v.Type != VAL_OBJ {
		return NewNone(), fmt.Errorf("'%s' object is not iterable", TypeName(v))
	}
	switch o := v.Obj.(type) {
	case Iterator:
		return v, nil
	case string:
		return Value{Type: VAL_OBJ, Obj: Iterator(&stringIterator{runes: []rune(o)})}, nil
	case *ObjList:
		items := make([]Value, len(o.Elements))
		copy(items, o.Elements)
		return NewIterator(items), nil
	case *ObjTuple:
		return NewIterator(o.Elements), nil
	case *ObjDict:
		return NewIterator(o.Keys()), nil
	case *ObjSet:
		return NewIterator(o.Items()), nil
	case *ObjRange:
		return Value{Type: VAL_OBJ, Obj: Iterator(&rangeIterator{cur: o.Start, stop: o.Stop, step: o.Step})}, nil
	}
	return NewNone(), fmt.Errorf("'%s' object is not iterable", TypeName(v))
}

// Next advances an iteration handle. The second result is false on
// exhaustion.
func Next(v Value) (Value, bool, error) {
	if v.Type == VAL_OBJ {
		if it, ok := v.Obj.(Iterator); ok {
			out, more := it.Next()
			return out, more, nil
		}
	}
	return NewNone(), false, fmt.Errorf("'%s' object is not an iterator", TypeName(v))
}
