// Package evaluator implements the expression evaluation engine.
//
// The evaluator walks the AST produced by the parser and evaluates it
// against JSON-like data (the result of encoding/json unmarshalling into
// any). It supports:
//   - Path navigation, filtering, grouping and sorting
//   - Function calls (built-in, lambdas and partial application)
//   - Variable bindings and tuple streams
//   - Timeout and cancellation via context.Context and runtime bounds
//
// # Example
//
//	ev := evaluator.New(evaluator.WithTimeout(5 * time.Second))
//	result, err := ev.Eval(ctx, expr, data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Each call to Eval runs with its own execution frame and runtime state, so
// a single Evaluator is safe for concurrent use.
package evaluator

import (
	"context"
	"log/slog"
	"time"

	"github.com/querata/querata/pkg/cache"
	"github.com/querata/querata/pkg/parser"
	"github.com/querata/querata/pkg/types"
)

// Evaluator evaluates compiled expressions against data.
type Evaluator struct {
	opts   EvalOptions
	logger *slog.Logger
	cache  *cache.Cache // non-nil when caching is enabled
}

// EvalOptions configures evaluator behavior.
type EvalOptions struct {
	// Caching enables expression compilation caching. When true, compiled
	// expressions are cached by source string with LRU eviction.
	Caching bool
	// CacheSize sets the maximum number of cached expressions. Only used
	// when Caching is true and no explicit Cache is provided. Defaults to
	// 256.
	CacheSize int
	// Cache is a custom expression cache. If non-nil, Caching is
	// implicitly enabled.
	Cache *cache.Cache
	// MaxDepth limits evaluation depth. Zero disables the check.
	MaxDepth int
	// Timeout bounds a single evaluation. Zero disables the check.
	Timeout time.Duration
	// Debug enables debug logging.
	Debug bool
	// Logger for structured logging.
	Logger *slog.Logger
	// Bindings are variables bound for every evaluation.
	Bindings map[string]any
	// Functions are extension functions registered for every evaluation.
	Functions []FunctionDef
}

// FunctionDef declares an extension function: its name, its signature
// definition and its implementation.
type FunctionDef struct {
	Name      string
	Signature string
	Impl      FunctionImpl
}

// EvalOption configures an Evaluator.
type EvalOption func(*EvalOptions)

// WithTimeout bounds each evaluation to d.
func WithTimeout(d time.Duration) EvalOption {
	return func(o *EvalOptions) { o.Timeout = d }
}

// WithMaxDepth bounds the evaluation depth.
func WithMaxDepth(depth int) EvalOption {
	return func(o *EvalOptions) { o.MaxDepth = depth }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EvalOption {
	return func(o *EvalOptions) { o.Logger = logger }
}

// WithDebug enables debug logging.
func WithDebug(debug bool) EvalOption {
	return func(o *EvalOptions) { o.Debug = debug }
}

// WithCaching enables the expression cache.
func WithCaching(caching bool) EvalOption {
	return func(o *EvalOptions) { o.Caching = caching }
}

// WithCacheSize enables the expression cache with the given capacity.
func WithCacheSize(size int) EvalOption {
	return func(o *EvalOptions) {
		o.Caching = true
		o.CacheSize = size
	}
}

// WithCache supplies a custom expression cache.
func WithCache(c *cache.Cache) EvalOption {
	return func(o *EvalOptions) { o.Cache = c }
}

// WithBindings binds variables for every evaluation.
func WithBindings(bindings map[string]any) EvalOption {
	return func(o *EvalOptions) { o.Bindings = bindings }
}

// WithFunction registers an extension function, callable as $name(...).
func WithFunction(name, signature string, impl FunctionImpl) EvalOption {
	return func(o *EvalOptions) {
		o.Functions = append(o.Functions, FunctionDef{Name: name, Signature: signature, Impl: impl})
	}
}

const (
	defaultTimeout  = 30 * time.Second
	defaultMaxDepth = 10000
)

// New creates an Evaluator.
func New(opts ...EvalOption) *Evaluator {
	options := EvalOptions{
		MaxDepth: defaultMaxDepth,
		Timeout:  defaultTimeout,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	var c *cache.Cache
	if options.Cache != nil {
		c = options.Cache
	} else if options.Caching {
		c = cache.New(options.CacheSize)
	}

	return &Evaluator{
		opts:   options,
		logger: options.Logger,
		cache:  c,
	}
}

// Compile parses source, consulting the expression cache when enabled.
// Compile options bypass the cache, since the cache key is the source alone.
func (e *Evaluator) Compile(source string, opts ...parser.CompileOption) (*types.Expression, error) {
	if e.cache != nil && len(opts) == 0 {
		return e.cache.GetOrCompile(source, func() (*types.Expression, error) {
			return parser.Parse(source)
		})
	}
	return parser.Parse(source, opts...)
}

// Eval evaluates a compiled expression against input.
func (e *Evaluator) Eval(ctx context.Context, expr *types.Expression, input any) (any, error) {
	return e.EvalWithBindings(ctx, expr, input, nil)
}

// EvalWithBindings evaluates a compiled expression with additional variable
// bindings in scope.
func (e *Evaluator) EvalWithBindings(ctx context.Context, expr *types.Expression, input any, bindings map[string]any) (any, error) {
	if expr == nil || expr.AST() == nil {
		return nil, types.NewError(types.ErrSyntaxError, "no expression to evaluate", 0)
	}
	if e.opts.Debug {
		e.logger.Debug("evaluating expression", "source", expr.Source())
	}

	env := NewFrame(baseEnvironment())
	for _, def := range e.opts.Functions {
		RegisterFunction(env, def.Name, def.Signature, def.Impl)
	}
	for name, value := range e.opts.Bindings {
		env.Bind(name, value)
	}
	for name, value := range bindings {
		env.Bind(name, value)
	}

	// a top-level array input travels inside a wrapper so that it reads
	// as a single item
	if types.IsArray(input) && !types.IsSequence(input) {
		seq := types.SequenceFrom(input)
		seq.OuterWrapper = true
		input = seq
	}
	env.Bind("$", input)

	if e.opts.Timeout > 0 || e.opts.MaxDepth > 0 {
		env.SetRuntimeBounds(e.opts.Timeout, e.opts.MaxDepth)
	}
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	rt := &Runtime{ev: e, ctx: ctx, env: env, timestamp: time.Now()}
	result, err := rt.eval(expr.AST(), input, env)
	if err != nil {
		if e.opts.Debug {
			e.logger.Debug("evaluation failed", "source", expr.Source(), "error", err)
		}
		return nil, err
	}
	return types.ConvertNulls(result), nil
}

// EvalString compiles source (via the cache when enabled) and evaluates it
// against input.
func (e *Evaluator) EvalString(ctx context.Context, source string, input any) (any, error) {
	expr, err := e.Compile(source)
	if err != nil {
		return nil, err
	}
	return e.Eval(ctx, expr, input)
}
