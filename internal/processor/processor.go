package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"connectoralert/internal/alerts"
	"connectoralert/internal/config"
	"connectoralert/internal/handlers"
	"connectoralert/internal/kafka"
	"connectoralert/internal/logger"
	"connectoralert/internal/metrics"
	"connectoralert/internal/middleware"
	"connectoralert/internal/monitor"
	"connectoralert/internal/notifier"
	"connectoralert/internal/storage"
	"connectoralert/internal/worker"
)

// Processor wires the store, the evaluator schedule and the HTTP surface
// together and owns their lifecycle.
type Processor struct {
	cfg *config.Config

	store     storage.Store
	extra     []notifier.Notifier
	producer  *kafka.Producer
	evaluator *monitor.Evaluator
	scheduler *worker.Scheduler
	dispatch  *notifier.Dispatcher

	httpServer *http.Server
	listener   net.Listener

	readyOnce sync.Once
	ready     chan struct{}
}

// Option customizes a Processor.
type Option func(*Processor)

// WithStore uses store instead of opening one from configuration. Run
// closes it on exit.
func WithStore(store storage.Store) Option {
	return func(p *Processor) {
		p.store = store
	}
}

// WithNotifiers registers notifiers in addition to the configured channels.
func WithNotifiers(n ...notifier.Notifier) Option {
	return func(p *Processor) {
		p.extra = append(p.extra, n...)
	}
}

// New constructs a Processor with given config.
func New(cfg *config.Config, opts ...Option) *Processor {
	p := &Processor{
		cfg:   cfg,
		ready: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ready is closed once the HTTP listener is bound.
func (p *Processor) Ready() <-chan struct{} {
	return p.ready
}

// Addr returns the bound HTTP address. Valid after Ready is closed.
func (p *Processor) Addr() string {
	if p.listener == nil {
		return ""
	}
	return p.listener.Addr().String()
}

// Run starts the scheduler and HTTP servers and blocks until ctx is
// cancelled or a server fails.
func (p *Processor) Run(ctx context.Context) error {
	log := logger.WithComponent("processor")
	log.Info().Msg("processor starting")

	if err := p.initStore(ctx); err != nil {
		log.Error().Err(err).Msg("failed to initialize store")
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer p.store.Close()

	if err := p.initDispatcher(); err != nil {
		log.Error().Err(err).Msg("failed to initialize notifiers")
		return fmt.Errorf("failed to initialize notifiers: %w", err)
	}
	defer p.dispatch.Close()

	if err := p.initScheduler(); err != nil {
		log.Error().Err(err).Msg("failed to initialize scheduler")
		return fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	if err := p.initHTTPServer(); err != nil {
		log.Error().Err(err).Msg("failed to initialize HTTP server")
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}
	p.readyOnce.Do(func() { close(p.ready) })

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", p.Addr()).Msg("starting HTTP server")
		if err := p.httpServer.Serve(p.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	var metricsServer *metrics.Server
	if p.cfg.Metrics.Addr != "" {
		metricsServer = metrics.NewServer(p.cfg.Metrics.Addr)
		g.Go(metricsServer.Start)
	}

	g.Go(func() error {
		return p.scheduler.Run(gctx)
	})

	g.Go(func() error {
		p.reportStats(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutdown signal received")
		p.shutdown(metricsServer)
		return nil
	})

	err := g.Wait()
	if err != nil {
		log.Error().Err(err).Msg("processor stopped with error")
		return err
	}

	log.Info().Msg("processor stopped gracefully")
	return nil
}

// initStore opens the configured store unless one was injected. An
// unreachable store is only warned about; every cycle retries.
func (p *Processor) initStore(ctx context.Context) error {
	log := logger.WithComponent("processor")

	if p.store == nil {
		store, err := storage.Open(ctx, p.cfg.Database, predicateFromConfig(p.cfg))
		if err != nil {
			return err
		}
		p.store = store
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.store.Ping(pingCtx); err != nil {
		log.Warn().Err(err).Str("backend", p.store.Backend()).Msg("store not reachable yet")
	}

	log.Info().
		Str("backend", p.store.Backend()).
		Str("table", p.cfg.Database.Table).
		Msg("store initialized")
	return nil
}

func predicateFromConfig(cfg *config.Config) storage.Predicate {
	return storage.Predicate{
		Table:          cfg.Database.Table,
		PendingStateID: cfg.Monitor.PendingStateID,
		MaxAttempts:    cfg.Monitor.MaxAttempts,
	}
}

// initDispatcher registers every enabled channel plus injected notifiers.
func (p *Processor) initDispatcher() error {
	log := logger.WithComponent("processor")

	p.dispatch = notifier.NewDispatcher(notifier.DispatcherConfig{
		SendTimeout:   p.cfg.Notify.SendTimeout,
		RatePerMinute: p.cfg.Notify.RateLimit.PerMinute,
		Burst:         p.cfg.Notify.RateLimit.Burst,
	})

	if p.cfg.Email.Enabled {
		email, err := notifier.NewEmailNotifier(p.cfg.Email)
		if err != nil {
			return err
		}
		p.dispatch.Register(email)
	}

	if p.cfg.Webhook.Enabled {
		webhook, err := notifier.NewWebhookNotifier(p.cfg.Webhook)
		if err != nil {
			return err
		}
		p.dispatch.Register(webhook)
	}

	if p.cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(p.cfg.Kafka.Brokers, p.cfg.Kafka.Topic, p.cfg.Kafka.Producer)
		if err != nil {
			return err
		}
		p.producer = producer
		p.dispatch.Register(notifier.NewKafkaNotifier(producer, nodeID()))
		log.Info().
			Strs("brokers", p.cfg.Kafka.Brokers).
			Str("topic", p.cfg.Kafka.Topic).
			Msg("kafka producer initialized")
	}

	for _, n := range p.extra {
		p.dispatch.Register(n)
	}

	names := p.dispatch.Names()
	if len(names) == 0 {
		log.Warn().Msg("no notification channel configured, alerts will only be logged")
	} else {
		log.Info().Strs("channels", names).Msg("notifiers initialized")
	}
	return nil
}

func nodeID() string {
	host, _ := os.Hostname()
	if host == "" {
		return "unknown"
	}
	return host
}

// initScheduler builds the evaluator and its fixed-delay schedule.
func (p *Processor) initScheduler() error {
	rule, err := alerts.RuleFromConfig(p.cfg.Monitor)
	if err != nil {
		return err
	}

	p.evaluator, err = monitor.NewEvaluator(monitor.Config{
		Reader: p.store,
		Sender: p.dispatch,
		Rule:   rule,
		Table:  p.cfg.Database.Table,
	})
	if err != nil {
		return err
	}

	p.scheduler, err = worker.NewScheduler(worker.Config{
		Name:     rule.Name,
		Task:     p.evaluator,
		Interval: p.cfg.Monitor.PollInterval,
	})
	return err
}

// initHTTPServer binds the listener and builds the router.
func (p *Processor) initHTTPServer() error {
	r := chi.NewRouter()
	r.Use(middleware.Recovery, middleware.Logging)

	r.Route("/api/v1", func(r chi.Router) {
		r.Handle("/count", handlers.NewCountHandler(p.store))
	})
	r.Method(http.MethodGet, "/health", handlers.NewHealthHandler(p.store))
	r.Get("/stats", p.statsHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	ln, err := net.Listen("tcp", p.cfg.Server.Addr)
	if err != nil {
		return err
	}
	p.listener = ln

	p.httpServer = &http.Server{
		Handler:      r,
		ReadTimeout:  p.cfg.Server.ReadTimeout,
		WriteTimeout: p.cfg.Server.WriteTimeout,
		IdleTimeout:  p.cfg.Server.IdleTimeout,
	}
	return nil
}

// shutdown drains the HTTP servers. The scheduler stops on its own when
// the run context is cancelled.
func (p *Processor) shutdown(metricsServer *metrics.Server) {
	log := logger.WithComponent("processor")
	log.Info().Msg("initiating graceful shutdown")

	timeout := p.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Info().Msg("stopping HTTP server")
	if err := p.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("metrics server shutdown error")
		}
	}
}

// reportStats periodically logs statistics
func (p *Processor) reportStats(ctx context.Context) {
	log := logger.WithComponent("processor")
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			schedulerStats := p.scheduler.Stats()
			evaluatorStats := p.evaluator.Stats()
			dispatchStats := p.dispatch.Stats()

			ev := log.Info().
				Uint64("runs", schedulerStats.Runs).
				Uint64("failures", schedulerStats.Failures).
				Uint64("panics", schedulerStats.Panics).
				Uint64("breaches", evaluatorStats.Breaches).
				Uint64("alerts_sent", dispatchStats.Sent).
				Uint64("alerts_failed", dispatchStats.Failed).
				Uint64("alerts_rate_limited", dispatchStats.RateLimited)
			if evaluatorStats.LastCount != nil {
				ev = ev.Int64("last_count", *evaluatorStats.LastCount)
			}
			ev.Msg("stats")
		}
	}
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Scheduler worker.Stats         `json:"scheduler"`
	Monitor   monitor.Stats        `json:"monitor"`
	Notifier  notifier.Stats       `json:"notifier"`
	Producer  *kafka.ProducerStats `json:"producer,omitempty"`
}

// statsHandler returns current statistics
func (p *Processor) statsHandler(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Scheduler: p.scheduler.Stats(),
		Monitor:   p.evaluator.Stats(),
		Notifier:  p.dispatch.Stats(),
	}
	if p.producer != nil {
		stats := p.producer.Stats()
		resp.Producer = &stats
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
