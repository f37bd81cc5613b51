package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/order-convert/internal/company"
	"github.com/sells-group/order-convert/internal/normalize"
	"github.com/sells-group/order-convert/internal/pipeline"
	"github.com/sells-group/order-convert/internal/resolution"
)

// registryPath returns the registry location, searching parent directories
// when configured to.
func registryPath() string {
	if !cfg.Registry.SearchParents {
		return cfg.Registry.Path
	}
	wd, err := os.Getwd()
	if err != nil {
		return cfg.Registry.Path
	}
	return company.ResolvePath(wd, cfg.Registry.Path)
}

// openRegistry loads the company registry. A registry that exists but
// cannot be read is a hard failure.
func openRegistry() (*company.Registry, error) {
	path := registryPath()
	reg, err := company.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open registry")
	}
	zap.L().Info("registry loaded", zap.String("path", path), zap.Int("records", reg.Len()))
	return reg, nil
}

// newResolutionService wires the reconciliation service over reg. The
// returned store must be closed by the caller.
func newResolutionService(ctx context.Context, reg *company.Registry, prompter resolution.Prompter) (*resolution.Service, resolution.Store, error) {
	store, err := resolution.OpenStore(ctx, cfg.Decisions.Driver, cfg.Decisions.Path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "open decision store")
	}
	zap.L().Debug("decision store opened",
		zap.String("driver", cfg.Decisions.Driver),
		zap.Int("decisions", store.Len()),
	)
	return resolution.NewService(reg, store, prompter), store, nil
}

// loadDictionary reads the procedure dictionary. A dictionary that cannot be
// read only disables procedure mapping.
func loadDictionary(ctx context.Context) *normalize.Dictionary {
	dict, err := normalize.LoadDictionary(ctx, cfg.Dictionary.Path, cfg.Source.Encoding)
	if err != nil {
		zap.L().Warn("procedure dictionary unreadable, continuing without it",
			zap.String("path", cfg.Dictionary.Path),
			zap.Error(err),
		)
		return normalize.NewDictionary(nil)
	}
	return dict
}

// runPhase runs fn as a background pipeline phase and logs its progress
// until it finishes.
func runPhase[T any](ctx context.Context, phase string, fn func(opts pipeline.Options) (T, error)) (T, error) {
	job := pipeline.Run(ctx, phase, func(report pipeline.ProgressFunc) (T, error) {
		return fn(pipeline.Options{ReportEvery: cfg.Pipeline.ProgressEvery, Progress: report})
	})
	for p := range job.Events() {
		zap.L().Info("progress",
			zap.String("phase", p.Phase),
			zap.Int("done", p.Done),
			zap.Int("total", p.Total),
		)
	}
	return job.Wait()
}
