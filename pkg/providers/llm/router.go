package llm

import (
	"context"
	"fmt"
	"strings"
)

// Router dispatches to a named backend, falling back to a default name
// when the caller leaves the engine unspecified.
type Router[T any] struct {
	backends map[string]T
	fallback string
}

// NewRouter creates a router over backends with fallback as the engine
// name used when Route is called with an empty string.
func NewRouter[T any](backends map[string]T, fallback string) *Router[T] {
	return &Router[T]{backends: backends, fallback: fallback}
}

// Route resolves engine to a backend, using the router's fallback when
// engine is empty.
func (r *Router[T]) Route(engine string) (T, error) {
	if engine == "" {
		engine = r.fallback
	}
	backend, ok := r.backends[engine]
	if !ok {
		var zero T
		return zero, fmt.Errorf("llm: no backend registered for engine %q", engine)
	}
	return backend, nil
}

// GeneratorRouter dispatches streaming generation to the configured
// engine, except that any model name prefixed "groq/" always routes to
// the groq backend, with the prefix stripped and system messages
// coalesced, per the groq/OpenAI multiplexing contract.
type GeneratorRouter struct {
	*Router[Provider]
	Groq Provider
}

// NewGeneratorRouter builds a GeneratorRouter over backends, with groq
// singled out for prefix-based multiplexing regardless of the selected
// engine.
func NewGeneratorRouter(backends map[string]Provider, fallback string, groq Provider) *GeneratorRouter {
	return &GeneratorRouter{Router: NewRouter(backends, fallback), Groq: groq}
}

// Generate routes by engine, unless req.Model carries the "groq/"
// prefix, in which case it always goes to the Groq backend with the
// prefix stripped and system messages coalesced.
func (g *GeneratorRouter) Generate(ctx context.Context, engine string, req GenerateRequest, onToken TokenCallback) (*GenResult, error) {
	if strings.HasPrefix(req.Model, groqPrefix) && g.Groq != nil {
		req.Model = strings.TrimPrefix(req.Model, groqPrefix)
		req = coalesceSystemMessages(req)
		return g.Groq.Generate(ctx, req, onToken)
	}

	backend, err := g.Route(engine)
	if err != nil {
		return nil, err
	}
	return backend.Generate(ctx, req, onToken)
}
