package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/loadwasm/loadwasm"
	"github.com/loadwasm/loadwasm/internal/transpiler"
)

func main() {
	doMain(os.Stdout, os.Stderr, os.Exit)
}

// doMain is separated out for the purpose of unit testing.
func doMain(stdOut, stdErr io.Writer, exit func(code int)) {
	flag.CommandLine.SetOutput(stdErr)

	var help bool
	flag.BoolVar(&help, "h", false, "print usage")

	flag.Parse()

	if help || flag.NArg() == 0 {
		printUsage(stdErr)
		exit(0)
	}

	subCmd := flag.Arg(0)
	switch subCmd {
	case "compile":
		doCompile(flag.Args()[1:], stdOut, stdErr, exit)
	case "instantiate":
		doInstantiate(flag.Args()[1:], stdOut, stdErr, exit)
	default:
		fmt.Fprintln(stdErr, "invalid command")
		printUsage(stdErr)
		exit(1)
	}
}

// loaderFlags are the options shared by every command.
type loaderFlags struct {
	help             bool
	debug            bool
	memoryLimitPages uint64
}

func (f *loaderFlags) register(flags *flag.FlagSet) {
	flags.BoolVar(&f.help, "h", false, "print usage")
	flags.BoolVar(&f.debug, "debug", false,
		"log debug messages to stderr. Per-instruction tracing also needs a build with the loadwasm_debug tag")
	flags.Uint64Var(&f.memoryLimitPages, "memory-limit-pages", 65536, "maximum pages of any memory, at most 65536")
}

func (f *loaderFlags) config(stdErr io.Writer) *loadwasm.LoaderConfig {
	limit := f.memoryLimitPages
	if limit > math.MaxUint32 {
		limit = math.MaxUint32
	}
	c := loadwasm.NewLoaderConfig().WithMemoryLimitPages(uint32(limit))
	if f.debug {
		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.AddSync(stdErr),
			zap.DebugLevel,
		)
		logger := zap.New(core)
		// Only logged to with the loadwasm_debug build tag.
		transpiler.SetLogger(logger)
		c = c.WithLogger(logger)
	}
	return c
}

// compileFile reads and compiles the wasm file named by the first argument, exiting on failure.
func compileFile(flags *flag.FlagSet, config *loadwasm.LoaderConfig, stdErr io.Writer, exit func(code int)) (*loadwasm.Loader, *loadwasm.CompiledModule) {
	if flags.NArg() < 1 {
		fmt.Fprintln(stdErr, "missing path to wasm file")
		printCommandUsage(stdErr, flags)
		exit(1)
	}
	wasmPath := flags.Arg(0)

	wasm, err := os.ReadFile(wasmPath)
	if err != nil {
		fmt.Fprintf(stdErr, "error reading wasm binary: %v\n", err)
		exit(1)
	}

	l := loadwasm.NewLoaderWithConfig(config)
	compiled, err := l.CompileModule(context.Background(), wasm)
	if err != nil {
		fmt.Fprintf(stdErr, "error compiling wasm binary: %v\n", err)
		exit(1)
	}
	return l, compiled
}

func doCompile(args []string, stdOut, stdErr io.Writer, exit func(code int)) {
	flags := flag.NewFlagSet("compile", flag.ExitOnError)
	flags.SetOutput(stdErr)

	var lf loaderFlags
	lf.register(flags)

	var disassemble bool
	flags.BoolVar(&disassemble, "disassemble", false, "print the transpiled body of each function")

	_ = flags.Parse(args)

	if lf.help {
		printCommandUsage(stdErr, flags)
		exit(0)
	}

	_, compiled := compileFile(flags, lf.config(stdErr), stdErr, exit)
	if disassemble {
		for i := 0; i < compiled.FunctionCount(); i++ {
			f, _ := compiled.Function(uint32(i))
			fmt.Fprintf(stdOut, "function[%d] %s:\n", f.Index, f.Type)
			fmt.Fprint(stdOut, transpiler.Format(f.Body))
		}
	}
	exit(0)
}

func doInstantiate(args []string, stdOut, stdErr io.Writer, exit func(code int)) {
	flags := flag.NewFlagSet("instantiate", flag.ExitOnError)
	flags.SetOutput(stdErr)

	var lf loaderFlags
	lf.register(flags)

	var noSegmentGrowth bool
	flags.BoolVar(&noSegmentGrowth, "no-segment-growth", false,
		"fail instead of growing a memory or table that a segment doesn't fit")

	_ = flags.Parse(args)

	if lf.help {
		printCommandUsage(stdErr, flags)
		exit(0)
	}

	config := lf.config(stdErr).WithSegmentGrowth(!noSegmentGrowth)
	l, compiled := compileFile(flags, config, stdErr, exit)

	// Only self-contained modules can be instantiated, as nothing is bound to imports.
	inst, err := l.Instantiate(context.Background(), compiled, loadwasm.NewImports())
	if err != nil {
		fmt.Fprintf(stdErr, "error instantiating wasm binary: %v\n", err)
		exit(1)
	}
	for i := uint32(0); ; i++ {
		mem, ok := inst.Memory(loadwasm.Location{Kind: loadwasm.LocationKindLocal, Position: i})
		if !ok {
			break
		}
		fmt.Fprintf(stdOut, "memory[%d]: %d pages\n", i, mem.Pages())
	}
	for i := uint32(0); ; i++ {
		table, ok := inst.Table(loadwasm.Location{Kind: loadwasm.LocationKindLocal, Position: i})
		if !ok {
			break
		}
		fmt.Fprintf(stdOut, "table[%d]: %d entries\n", i, table.Len())
	}
	for i := uint32(0); ; i++ {
		g, ok := inst.Global(loadwasm.Location{Kind: loadwasm.LocationKindLocal, Position: i})
		if !ok {
			break
		}
		fmt.Fprintf(stdOut, "global[%d]: %s\n", i, g)
	}
	exit(0)
}

func printUsage(stdErr io.Writer) {
	fmt.Fprintln(stdErr, "loadwasm CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  loadwasm <command>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Commands:")
	fmt.Fprintln(stdErr, "  compile\tValidates and transpiles a WebAssembly binary")
	fmt.Fprintln(stdErr, "  instantiate\tInstantiates a WebAssembly binary without imports")
}

func printCommandUsage(stdErr io.Writer, flags *flag.FlagSet) {
	fmt.Fprintln(stdErr, "loadwasm CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintf(stdErr, "Usage:\n  loadwasm %s <options> <path to wasm file>\n", flags.Name())
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Options:")
	flags.PrintDefaults()
}
