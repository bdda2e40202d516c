package vm

import (
	"fmt"

	"pyvm/internal/value"
)

// NameError reports a failed name lookup.
type NameError struct {
	Name string
}

func (e *NameError) Error() string {
	return fmt.Sprintf("name '%s' is not defined", e.Name)
}

// UnboundLocalError reports a LOAD_FAST or DELETE_FAST on a local that
// has no binding.
type UnboundLocalError struct {
	Name string
}

func (e *UnboundLocalError) Error() string {
	return fmt.Sprintf("local variable '%s' referenced before assignment", e.Name)
}

// ImportError reports a module name the machine has no registration for.
type ImportError struct {
	Name string
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("no module named '%s'", e.Name)
}

// Raised carries an in-program raise out through the Go error return.
// It crosses frame boundaries unchanged until a host caller inspects it.
type Raised struct {
	// Kind is "reraise" when a traceback was present, "exception"
	// otherwise.
	Kind      string
	ExcType   value.Value
	Value     value.Value
	Traceback value.Value
}

func (r *Raised) Error() string {
	name := "Exception"
	if et, ok := r.ExcType.Obj.(*value.ObjExceptionType); ok {
		name = et.Name
	}
	if exc, ok := r.Value.Obj.(*value.ObjException); ok && len(exc.Args) > 0 {
		if len(exc.Args) == 1 {
			return fmt.Sprintf("%s: %s", name, value.Str(exc.Args[0]))
		}
		return fmt.Sprintf("%s: %s", name, value.Repr(value.NewTuple(exc.Args)))
	}
	return name
}
