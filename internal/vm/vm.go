// Package vm implements the interpreter: frames running code objects
// over operand stacks, with name environments layered locals over
// globals over builtins.
package vm

import (
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pyvm/internal/builtins"
	"pyvm/internal/code"
	"pyvm/internal/value"
)

const defaultMaxCallDepth = 1000

// Config carries the knobs a host may set before running programs.
type Config struct {
	// MaxCallDepth bounds nested function calls. Zero means the
	// default.
	MaxCallDepth int
	// Logger receives per-instruction trace events. Zero value
	// disables tracing.
	Logger zerolog.Logger
	// Stdout is where output-producing builtins write. Nil means
	// os.Stdout.
	Stdout io.Writer
}

// VM owns the shared execution context: the builtins table, the module
// registry and the trace logger.
type VM struct {
	id           string
	maxCallDepth int
	logger       zerolog.Logger
	builtins     map[string]value.Value
	modules      map[string]*value.ObjModule
}

func New(cfg Config) *VM {
	if cfg.MaxCallDepth <= 0 {
		cfg.MaxCallDepth = defaultMaxCallDepth
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	id := uuid.NewString()
	return &VM{
		id:           id,
		maxCallDepth: cfg.MaxCallDepth,
		logger:       cfg.Logger.With().Str("vm", id).Logger(),
		builtins:     builtins.New(cfg.Stdout),
		modules:      make(map[string]*value.ObjModule),
	}
}

// ID returns the instance identifier carried on trace events.
func (m *VM) ID() string {
	return m.id
}

// RegisterModule makes a module available to import instructions.
func (m *VM) RegisterModule(mod *value.ObjModule) {
	m.modules[mod.Name] = mod
}

// DefineBuiltin adds or replaces an entry in the builtins table.
func (m *VM) DefineBuiltin(name string, v value.Value) {
	m.builtins[name] = v
}

// Interpret runs a top-level code object to completion and returns its
// return value. At top level, locals and globals are the same mapping,
// so module-level definitions are globals to every function defined in
// them.
func (m *VM) Interpret(obj *code.Object) (value.Value, error) {
	globals := make(map[string]value.Value)
	env := &Environment{Locals: globals, Globals: globals, Builtins: m.builtins}
	frame := newFrame(m, obj, env, 0)
	return frame.Run()
}

// InterpretWithGlobals runs a code object against a caller-supplied
// globals mapping, used both as locals and globals of the top frame.
func (m *VM) InterpretWithGlobals(obj *code.Object, globals map[string]value.Value) (value.Value, error) {
	if globals == nil {
		globals = make(map[string]value.Value)
	}
	env := &Environment{Locals: globals, Globals: globals, Builtins: m.builtins}
	frame := newFrame(m, obj, env, 0)
	return frame.Run()
}
