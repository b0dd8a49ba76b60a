package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JaimeStill/verdict/internal/classifier"
	"github.com/JaimeStill/verdict/internal/config"
	"github.com/JaimeStill/verdict/internal/controller"
	"github.com/JaimeStill/verdict/internal/evaluation"
	"github.com/JaimeStill/verdict/internal/executor"
	"github.com/JaimeStill/verdict/internal/infrastructure"
	"github.com/JaimeStill/verdict/internal/lock"
	"github.com/JaimeStill/verdict/internal/progress"
	"github.com/JaimeStill/verdict/internal/store"
)

// app is the wired engine for one command invocation.
type app struct {
	cfg    *config.Config
	infra  *infrastructure.Infrastructure
	logger *slog.Logger
	store  *store.Store
	ctrl   *controller.Controller
}

type appOptions struct {
	engine     *config.EngineConfig
	aggregator evaluation.Aggregator
}

// newApp loads configuration, starts infrastructure, and migrates the store.
// Infrastructure is detached from ctx so an interrupt cannot close the
// database under a batch that is still flushing.
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if opts.engine != nil {
		if err := cfg.Engine.Override(opts.engine); err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
	}

	infra, err := infrastructure.New(context.WithoutCancel(ctx), cfg)
	if err != nil {
		return nil, err
	}
	if err := infra.Start(); err != nil {
		infra.Lifecycle.Shutdown(cfg.ShutdownTimeoutDuration())
		return nil, err
	}

	logger := infra.Logger
	s := store.New(infra.Database, logger, store.WithPageSize(cfg.Engine.PageSize))
	if err := s.EnsureSchema(ctx); err != nil {
		infra.Lifecycle.Shutdown(cfg.ShutdownTimeoutDuration())
		return nil, err
	}

	locks, err := lock.New(cfg.Lock.Dir, logger)
	if err != nil {
		infra.Lifecycle.Shutdown(cfg.ShutdownTimeoutDuration())
		return nil, err
	}

	tracker := progress.New(s, logger, progress.WithRecorder(infra.Telemetry))
	exec := executor.New(s, tracker, logger, executor.Options{
		CommitInterval: cfg.Engine.CommitInterval,
		Concurrency:    cfg.Engine.Concurrency,
		ItemTimeout:    cfg.Engine.ItemTimeoutDuration(),
	})

	var ctrlOpts []controller.Option
	if opts.aggregator != nil {
		ctrlOpts = append(ctrlOpts, controller.WithAggregator(opts.aggregator))
	}

	logger.Debug("verdict started", "version", cfg.Version, "env", cfg.Env(), "driver", cfg.Database.Driver)

	return &app{
		cfg:    cfg,
		infra:  infra,
		logger: logger,
		store:  s,
		ctrl:   controller.New(s, locks, exec, tracker, logger, ctrlOpts...),
	}, nil
}

func (a *app) Close() {
	if err := a.infra.Lifecycle.Shutdown(a.cfg.ShutdownTimeoutDuration()); err != nil {
		a.logger.Error("shutdown failed", "error", err)
	}
}

// classifier builds the provider named by cfg wrapped in the configured
// retry and rate limit middleware.
func (a *app) classifier(ctx context.Context, cfg classifier.Config) (classifier.Provider, classifier.Classifier, error) {
	p, err := classifier.NewProvider(ctx, cfg, classifier.Credentials{
		AnthropicAPIKey: a.cfg.Providers.AnthropicAPIKey,
		GeminiAPIKey:    a.cfg.Providers.GeminiAPIKey,
		OpenAIAPIKey:    a.cfg.Providers.OpenAIAPIKey,
		OpenAIBaseURL:   a.cfg.Providers.OpenAIBaseURL,
	})
	if err != nil {
		return nil, nil, err
	}

	c := classifier.Wrap(p, classifier.Options{
		RatePerMinute: a.cfg.Engine.RatePerMinute,
		MaxAttempts:   a.cfg.Engine.MaxAttempts,
	}, a.logger)
	return p, c, nil
}

// execute runs rc with a freshly built classifier and prints the outcome.
func (a *app) execute(ctx context.Context, w io.Writer, rc *controller.RunContext) error {
	provider, cls, err := a.classifier(ctx, rc.Config)
	if err != nil {
		return err
	}
	defer provider.Close()

	report, err := a.ctrl.Execute(ctx, rc, cls)
	printReport(w, report)
	return err
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
