package vm

import (
	"fmt"

	"pyvm/internal/value"
)

// OperandStack is a frame's working stack. Underflow means the program
// image is malformed, so the accessors panic rather than return errors.
type OperandStack struct {
	items []value.Value
}

func NewOperandStack() *OperandStack {
	return &OperandStack{items: make([]value.Value, 0, 16)}
}

func (s *OperandStack) Push(vs ...value.Value) {
	s.items = append(s.items, vs...)
}

func (s *OperandStack) Pop() value.Value {
	if len(s.items) == 0 {
		panic("pop from empty operand stack")
	}
	v := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return v
}

// Peek returns the element i slots below the top without removing it:
// Peek(0) is the top, Peek(1) the one beneath it.
func (s *OperandStack) Peek(i int) value.Value {
	idx := len(s.items) - 1 - i
	if idx < 0 {
		panic(fmt.Sprintf("peek(%d) on operand stack of depth %d", i, len(s.items)))
	}
	return s.items[idx]
}

// Set overwrites the element i slots below the top.
func (s *OperandStack) Set(i int, v value.Value) {
	idx := len(s.items) - 1 - i
	if idx < 0 {
		panic(fmt.Sprintf("set(%d) on operand stack of depth %d", i, len(s.items)))
	}
	s.items[idx] = v
}

// PopN removes the top n elements and returns them deepest-first, the
// order they were pushed.
func (s *OperandStack) PopN(n int) []value.Value {
	if n > len(s.items) {
		panic(fmt.Sprintf("pop %d from operand stack of depth %d", n, len(s.items)))
	}
	out := make([]value.Value, n)
	copy(out, s.items[len(s.items)-n:])
	s.items = s.items[:len(s.items)-n]
	return out
}

// RotN moves the top element down n-1 slots, shifting the intervening
// elements up by one.
func (s *OperandStack) RotN(n int) {
	if n < 2 {
		return
	}
	if n > len(s.items) {
		panic(fmt.Sprintf("rot %d on operand stack of depth %d", n, len(s.items)))
	}
	top := len(s.items) - 1
	v := s.items[top]
	copy(s.items[top-n+2:], s.items[top-n+1:top])
	s.items[top-n+1] = v
}

func (s *OperandStack) Len() int {
	return len(s.items)
}
