package vm

import "pyvm/internal/value"

// Environment is a frame's three-tier name space. Locals belong to the
// frame; Globals and Builtins are shared by reference with the defining
// module, so assignments made through one frame are visible to all
// frames holding the same maps.
type Environment struct {
	Locals   map[string]value.Value
	Globals  map[string]value.Value
	Builtins map[string]value.Value
}

func NewEnvironment(locals, globals, builtins map[string]value.Value) *Environment {
	if locals == nil {
		locals = make(map[string]value.Value)
	}
	if globals == nil {
		globals = make(map[string]value.Value)
	}
	if builtins == nil {
		builtins = make(map[string]value.Value)
	}
	return &Environment{Locals: locals, Globals: globals, Builtins: builtins}
}

// LookupName resolves a name through locals, then globals, then
// builtins.
func (e *Environment) LookupName(name string) (value.Value, bool) {
	if v, ok := e.Locals[name]; ok {
		return v, true
	}
	return e.LookupGlobal(name)
}

// LookupGlobal resolves a name through globals then builtins, skipping
// locals.
func (e *Environment) LookupGlobal(name string) (value.Value, bool) {
	if v, ok := e.Globals[name]; ok {
		return v, true
	}
	if v, ok := e.Builtins[name]; ok {
		return v, true
	}
	return value.NewNone(), false
}

// LookupLocal resolves a name in locals only.
func (e *Environment) LookupLocal(name string) (value.Value, bool) {
	v, ok := e.Locals[name]
	return v, ok
}
