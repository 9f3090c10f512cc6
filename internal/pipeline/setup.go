package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ppiankov/claimcheck/internal/cache"
	"github.com/ppiankov/claimcheck/internal/embed"
	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/store"
)

// Runtime is a pipeline together with the resources it owns
type Runtime struct {
	*Pipeline
	Store store.Store

	closers []io.Closer
}

// Close releases every owned resource
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i].Close())
	}
	return errors.Join(errs...)
}

// NewFromConfig opens the configured store, embedding service and analysis
// service and builds a pipeline over them.
func NewFromConfig(ctx context.Context, cfg *model.Config) (*Runtime, error) {
	rt := &Runtime{}
	fail := func(err error) (*Runtime, error) {
		_ = rt.Close()
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fail(fmt.Errorf("open store: %w", err))
	}
	rt.Store = st
	rt.closers = append(rt.closers, st)

	c, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		return fail(fmt.Errorf("open cache: %w", err))
	}
	if closer, ok := c.(io.Closer); ok {
		rt.closers = append(rt.closers, closer)
	}

	embedder, err := embed.New(ctx, embed.ConfigFromModel(cfg.Embedding, cfg.LLM))
	if err != nil {
		return fail(fmt.Errorf("init embedding service: %w", err))
	}
	if closer, ok := embedder.(io.Closer); ok {
		rt.closers = append(rt.closers, closer)
	}

	provider, err := llm.NewProvider(ctx, llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return fail(fmt.Errorf("init analysis service: %w", err))
	}
	if closer, ok := provider.(io.Closer); ok {
		rt.closers = append(rt.closers, closer)
	}

	rt.Pipeline = New(st,
		embed.NewCached(embedder, c, 0),
		llm.NewGuarded(provider, cfg.Breaker, cfg.RateLimiting),
		Options{
			InsurerMatch: cfg.Resolver.InsurerMatch,
			MaxTokens:    cfg.LLM.MaxTokens,
		})
	return rt, nil
}
