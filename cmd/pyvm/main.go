package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"pyvm/internal/config"
	"pyvm/internal/image"
	"pyvm/internal/value"
	"pyvm/internal/vm"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintln(os.Stderr, "fatal:", r)
			os.Exit(2)
		}
	}()

	trace := flag.Bool("trace", false, "log every executed instruction")
	disasm := flag.Bool("disasm", false, "print the program listing instead of running it")
	cfgPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: pyvm [-trace] [-disasm] [-config file] <program.pyvm>")
		os.Exit(1)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	obj, err := image.Load(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *disasm {
		obj.DisassembleAll(os.Stdout)
		return
	}

	logger := zerolog.Nop()
	level := cfg.Trace.Level
	if *trace {
		level = "trace"
	}
	if level != "" && level != "disabled" {
		lvl, err := zerolog.ParseLevel(level)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad trace level:", err)
			os.Exit(1)
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()
	}

	machine := vm.New(vm.Config{
		MaxCallDepth: cfg.Limits.MaxCallDepth,
		Logger:       logger,
		Stdout:       os.Stdout,
	})
	result, err := machine.Interpret(obj)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if result.Type != value.VAL_NONE {
		fmt.Println(value.Repr(result))
	}
}
