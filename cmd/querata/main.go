// Command querata evaluates an expression against JSON input.
//
// The expression comes from the first positional argument, -e or -f. The
// input document is read from stdin, or from a file with -i. Results are
// printed as JSON, pretty-printed when stdout is a terminal.
//
//	echo '{"name": "one"}' | querata 'name'
//	querata -f query.qta -i data.json
//	querata -i data.json -a 'threshold=100' 'items[price > $threshold]'
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/querata/querata"
	"github.com/querata/querata/pkg/evaluator"
)

// config holds the YAML configuration file contents. Command-line flags
// override the file.
type config struct {
	Timeout  time.Duration  `yaml:"timeout"`
	MaxDepth int            `yaml:"maxDepth"`
	Pretty   bool           `yaml:"pretty"`
	Debug    bool           `yaml:"debug"`
	Bindings map[string]any `yaml:"bindings"`
}

// bindingFlags collects repeated -a var=value flags. Values parse as JSON
// where possible and fall back to plain strings.
type bindingFlags map[string]any

func (b bindingFlags) String() string {
	parts := make([]string, 0, len(b))
	for k := range b {
		parts = append(parts, k)
	}
	return strings.Join(parts, ",")
}

func (b bindingFlags) Set(s string) error {
	name, value, found := strings.Cut(s, "=")
	if !found || name == "" {
		return fmt.Errorf("binding must have the form var=value: %q", s)
	}
	var parsed any
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		parsed = value
	}
	b[name] = parsed
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "querata:", err)
		os.Exit(1)
	}
}

func run() error {
	bindings := bindingFlags{}
	var (
		exprText   = flag.String("e", "", "expression text")
		exprFile   = flag.String("f", "", "read the expression from a file")
		inputFile  = flag.String("i", "", "read the JSON input from a file instead of stdin")
		configFile = flag.String("c", "", "YAML configuration file")
		pretty     = flag.Bool("p", false, "pretty-print the result")
		timeout    = flag.Duration("t", 0, "evaluation timeout")
		debug      = flag.Bool("d", false, "debug logging")
		version    = flag.Bool("version", false, "print the version and exit")
	)
	flag.Var(bindings, "a", "bind a variable, var=value (repeatable)")
	flag.Parse()

	if *version {
		fmt.Println(querata.Version())
		return nil
	}

	cfg := config{}
	if *configFile != "" {
		raw, err := os.ReadFile(*configFile)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return fmt.Errorf("parsing config %s: %w", *configFile, err)
		}
	}
	if *timeout != 0 {
		cfg.Timeout = *timeout
	}
	if *pretty {
		cfg.Pretty = true
	}
	if *debug {
		cfg.Debug = true
	}
	for name, value := range bindings {
		if cfg.Bindings == nil {
			cfg.Bindings = map[string]any{}
		}
		cfg.Bindings[name] = value
	}

	source, err := expressionSource(*exprText, *exprFile, flag.Args())
	if err != nil {
		return err
	}
	input, err := readInput(*inputFile)
	if err != nil {
		return err
	}

	opts := []evaluator.EvalOption{
		evaluator.WithBindings(cfg.Bindings),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, evaluator.WithTimeout(cfg.Timeout))
	}
	if cfg.MaxDepth > 0 {
		opts = append(opts, evaluator.WithMaxDepth(cfg.MaxDepth))
	}
	if cfg.Debug {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		opts = append(opts, evaluator.WithDebug(true), evaluator.WithLogger(logger))
	}

	result, err := querata.Eval(source, input, opts...)
	if err != nil {
		return err
	}
	return writeResult(os.Stdout, result, cfg.Pretty)
}

func expressionSource(exprText, exprFile string, args []string) (string, error) {
	set := 0
	for _, s := range []string{exprText, exprFile} {
		if s != "" {
			set++
		}
	}
	if len(args) > 0 {
		set++
	}
	if set == 0 {
		return "", errors.New("no expression: pass it as an argument, or use -e or -f")
	}
	if set > 1 {
		return "", errors.New("the expression must come from exactly one of: argument, -e, -f")
	}
	switch {
	case exprText != "":
		return exprText, nil
	case exprFile != "":
		raw, err := os.ReadFile(exprFile)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	return args[0], nil
}

func readInput(inputFile string) (any, error) {
	var raw []byte
	var err error
	if inputFile != "" {
		raw, err = os.ReadFile(inputFile)
	} else {
		raw, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	var input any
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("parsing input: %w", err)
	}
	return input, nil
}

func writeResult(w *os.File, result any, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty || isatty.IsTerminal(w.Fd()) || isatty.IsCygwinTerminal(w.Fd()) {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(result)
}
