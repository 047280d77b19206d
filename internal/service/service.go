// Package service wires the record store, evaluator, notifier, scheduler,
// chat handler and HTTP surface into one object with an explicit lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mesh-intelligence/cakeday/internal/chat"
	"github.com/mesh-intelligence/cakeday/internal/daymatch"
	"github.com/mesh-intelligence/cakeday/internal/memstore"
	"github.com/mesh-intelligence/cakeday/internal/metrics"
	"github.com/mesh-intelligence/cakeday/internal/notify"
	"github.com/mesh-intelligence/cakeday/internal/schedule"
	"github.com/mesh-intelligence/cakeday/internal/server"
	"github.com/mesh-intelligence/cakeday/internal/sqlite"
	"github.com/mesh-intelligence/cakeday/internal/transport"
	"github.com/mesh-intelligence/cakeday/pkg/types"
)

// Service owns every long-lived component.
type Service struct {
	cfg      types.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	store    types.RecordStore
	eval     *daymatch.Evaluator
	notifier *notify.Notifier
	sched    *schedule.Scheduler
	chat     *chat.Handler
	server   *server.Server
}

type options struct {
	logger *slog.Logger
	out    io.Writer
	clock  func() time.Time
}

// Option configures New.
type Option func(*options)

// WithLogger sets the logger shared by all components.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithOutput sets where the stdout transport writes.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithClock overrides time.Now for day matching.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// New builds the service from cfg. Storage, transport and scheduler
// failures are returned; nothing is left open on error.
func New(ctx context.Context, cfg types.Config, opts ...Option) (*Service, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	s := &Service{cfg: cfg, logger: o.logger, metrics: metrics.New()}

	tr, err := transport.New(cfg.Transport, o.out)
	if err != nil {
		return nil, fmt.Errorf("building transport: %w", err)
	}

	s.store, err = openStore(cfg, o.logger)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	evalOpts := []daymatch.Option{
		daymatch.WithLocation(loc),
		daymatch.WithLeapDayPolicy(daymatch.LeapDayPolicy(cfg.Schedule.LeapDay)),
	}
	if o.clock != nil {
		evalOpts = append(evalOpts, daymatch.WithClock(o.clock))
	}
	s.eval = daymatch.New(s.store, evalOpts...)

	s.notifier = notify.New(s.eval, tr,
		notify.WithLogger(o.logger.With("component", "notify")),
		notify.WithMetrics(s.metrics))

	s.sched, err = schedule.New(cfg.Schedule.At, s.sweep,
		schedule.WithLocation(loc),
		schedule.WithLogger(o.logger.With("component", "schedule")),
		schedule.WithMetrics(s.metrics))
	if err != nil {
		s.store.Close()
		return nil, err
	}

	s.chat = chat.NewHandler(s.store, s.eval,
		chat.WithLogger(o.logger.With("component", "chat")),
		chat.WithMetrics(s.metrics))

	if cfg.Server.Listen != "" {
		s.server = server.New(cfg.Server, s.chat, s.sched,
			server.WithLogger(o.logger.With("component", "server")),
			server.WithMetrics(s.metrics))
	}

	o.logger.InfoContext(ctx, "service ready",
		"storage", cfg.Storage.Driver,
		"transport", cfg.Transport.Driver,
		"sweep_at", cfg.Schedule.At,
		"timezone", loc.String(),
		"next_sweep", s.sched.Next())
	return s, nil
}

func openStore(cfg types.Config, logger *slog.Logger) (types.RecordStore, error) {
	switch cfg.Storage.Driver {
	case types.StorageMemory:
		return memstore.New(), nil
	case types.StorageSQLite, "":
		return sqlite.Open(cfg, sqlite.WithLogger(logger.With("component", "sqlite")))
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrStorageDriverUnknown, cfg.Storage.Driver)
	}
}

func (s *Service) sweep(ctx context.Context) error {
	_, err := s.notifier.Sweep(ctx)
	return err
}

// Chat returns the chat handler.
func (s *Service) Chat() *chat.Handler { return s.chat }

// Scheduler returns the sweep scheduler.
func (s *Service) Scheduler() *schedule.Scheduler { return s.sched }

// Store returns the record store.
func (s *Service) Store() types.RecordStore { return s.store }

// Addr returns the HTTP listen address once started, or "".
func (s *Service) Addr() string {
	if s.server == nil {
		return ""
	}
	return s.server.Addr()
}

// Start launches the scheduler and, when configured, the HTTP server.
func (s *Service) Start() error {
	if s.server != nil {
		if err := s.server.Start(); err != nil {
			return fmt.Errorf("starting http server: %w", err)
		}
	}
	s.sched.Start()
	return nil
}

// Run starts the service and blocks until ctx is done or the HTTP server
// fails, then shuts down within the configured timeout.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		s.store.Close()
		return err
	}

	var serveErr error
	var serverErrs <-chan error
	if s.server != nil {
		serverErrs = s.server.Err()
	}
	select {
	case <-ctx.Done():
		s.logger.Info("shutting down")
	case err, ok := <-serverErrs:
		if ok {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = types.DefaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return errors.Join(serveErr, s.Shutdown(shutdownCtx))
}

// Shutdown stops the scheduler, waiting for an in-flight sweep until ctx
// ends, then stops the HTTP server and closes the store. An abandoned sweep
// is logged, not returned.
func (s *Service) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.sched.Stop(ctx); err != nil {
		s.logger.Warn("in-flight sweep abandoned", "error", err)
	}
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping http server: %w", err))
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing store: %w", err))
	}
	return errors.Join(errs...)
}
