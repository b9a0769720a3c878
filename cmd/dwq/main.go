// Command dwq evaluates a dwarfquery program against one or more ELF
// files' DWARF debug info and prints the resulting stacks, one per line.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/tombergan/dwarfquery/dwarfinfo"
	"github.com/tombergan/dwarfquery/engine"
	"github.com/tombergan/dwarfquery/lang"
	"github.com/tombergan/dwarfquery/words"
)

var (
	inlineProgram = flag.String("c", "", "program text to run")
	programFile   = flag.String("e", "", "path to a file containing the program text")
	verbosity     = flag.Int("v", 0, "log verbosity (0=warn, 1=info, 2=debug)")
	useColor      = flag.Bool("color", false, "colorize result stacks")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: dwq -c PROGRAM file... | dwq -e PROGRAM_FILE file...\n")
	flag.PrintDefaults()
	os.Exit(2)
}

// newLogger builds a zap logger whose level tracks -v, following
// mycweb-mycelium's direct-zap-construction style rather than a package
// global: run-level diagnostics (open failures, compile errors,
// per-file summaries) get levels and structured fields, while the
// engine's own tracing keeps using its allocation-free DebugLogf hook.
func newLogger(verbosity int) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	switch {
	case verbosity >= 2:
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case verbosity >= 1:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return cfg.Build()
}

func programText() (string, error) {
	switch {
	case *inlineProgram != "" && *programFile != "":
		return "", fmt.Errorf("only one of -c or -e may be given")
	case *inlineProgram != "":
		return *inlineProgram, nil
	case *programFile != "":
		data, err := os.ReadFile(*programFile)
		if err != nil {
			return "", fmt.Errorf("reading program file %s: %w", *programFile, err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("one of -c or -e is required")
	}
}

// diagLogger adapts a zap logger to engine.Diagnostics, so advisory
// errors (dispatch misses that only drop one stack) surface as warnings
// rather than aborting the run.
type diagLogger struct{ log *zap.Logger }

func (d diagLogger) Report(pos engine.Position, err error) {
	d.log.Warn("advisory", zap.Stringer("pos", pos), zap.Error(err))
}

// wireEngineTracing points engine.DebugLogf at log, following
// heapview/heapcheck's corefile.DebugLogf wiring: level-2 (verbose)
// messages only surface at -v 2, level-1 messages at -v 1 or higher.
func wireEngineTracing(log *zap.Logger, verbosity int) {
	engine.DebugLogf = func(level int, format string, args ...interface{}) {
		if verbosity < level {
			return
		}
		msg := fmt.Sprintf(format, args...)
		if level <= 1 {
			log.Info(msg)
		} else {
			log.Debug(msg)
		}
	}
}

func buildVocabulary() *engine.Vocabulary {
	vocab := engine.NewVocabulary(nil)
	words.Core(vocab)
	words.Dwarf(vocab)
	return vocab
}

// stackString renders a result stack bottom-to-top, tab-separated,
// matching the shape of engine.Debug's own tracing output.
func stackString(s *engine.Stack, color bool) string {
	var sb strings.Builder
	for i := s.Len() - 1; i >= 0; i-- {
		v, _ := s.Top(i)
		if i != s.Len()-1 {
			sb.WriteByte('\t')
		}
		if color {
			sb.WriteString("\x1b[36m")
			sb.WriteString(v.String())
			sb.WriteString("\x1b[0m")
		} else {
			sb.WriteString(v.String())
		}
	}
	return sb.String()
}

func runFile(w io.Writer, log *zap.Logger, query *engine.Query, path string, color bool) (int, error) {
	file, err := dwarfinfo.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	initial := engine.NewStack(engine.NewFrame(0, nil))
	initial.Push(engine.NewOpaque(file))

	count := 0
	err = query.Run(initial).Drain(func(s *engine.Stack) {
		fmt.Fprintln(w, stackString(s, color))
		count++
	})
	if err != nil {
		return count, fmt.Errorf("evaluating %s: %w", path, err)
	}
	return count, nil
}

func main() {
	flag.Usage = usage
	flag.Parse()

	log, err := newLogger(*verbosity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dwq: could not build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	wireEngineTracing(log, *verbosity)

	source, err := programText()
	if err != nil {
		fmt.Fprintf(os.Stderr, "dwq: %v\n", err)
		usage()
	}

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "dwq: at least one file is required")
		usage()
	}

	vocab := buildVocabulary()
	query, err := lang.Compile(source, vocab, diagLogger{log})
	if err != nil {
		log.Fatal("compiling program", zap.Error(err))
	}

	exitCode := 0
	for _, path := range files {
		count, err := runFile(os.Stdout, log, query, path, *useColor)
		if err != nil {
			log.Error("evaluating file", zap.String("file", path), zap.Error(err))
			exitCode = 1
			continue
		}
		log.Info("evaluated file", zap.String("file", path), zap.Int("results", count))
	}
	os.Exit(exitCode)
}
