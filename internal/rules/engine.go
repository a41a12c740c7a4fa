package rules

import (
	"io"
	"log/slog"

	"github.com/kaannakiin/decisionkeeper/internal/types"
)

// Engine binds a domain Registry to validation and evaluation for the
// service layer. Stateless beyond the registry; safe for concurrent use.
type Engine struct {
	registry *Registry
	logger   *slog.Logger
}

// NewEngine creates an engine over registry. A nil logger discards output.
func NewEngine(registry *Registry, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{registry: registry, logger: logger}
}

// Registry returns the registry the engine resolves domains from.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Compile resolves domain and compiles tree against it.
func (e *Engine) Compile(domain string, tree *types.DecisionTree) (*CompiledTree, error) {
	d, err := e.registry.Domain(domain)
	if err != nil {
		return nil, err
	}

	compiled, err := Compile(tree, d)
	if err != nil {
		e.logger.Debug("tree rejected",
			"domain", domain,
			"problems", len(Errors(err)))
		return nil, err
	}
	return compiled, nil
}

// Validate resolves domain and validates tree against it.
func (e *Engine) Validate(domain string, tree *types.DecisionTree) error {
	_, err := e.Compile(domain, tree)
	return err
}

// Evaluate compiles tree and evaluates it against ctx. Validation errors are
// returned as-is; a valid tree never fails to evaluate.
func (e *Engine) Evaluate(domain string, tree *types.DecisionTree, ctx Context) (Result, error) {
	compiled, err := e.Compile(domain, tree)
	if err != nil {
		return Result{}, err
	}

	result := Evaluate(compiled, ctx)
	if result.Matched {
		e.logger.Debug("tree matched",
			"domain", domain,
			"node", result.NodeID,
			"steps", len(result.Trace))
	} else {
		e.logger.Debug("tree did not match",
			"domain", domain,
			"steps", len(result.Trace))
	}
	return result, nil
}
