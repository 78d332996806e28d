package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/telekom/frontdesk/pkg/api"
	"github.com/telekom/frontdesk/pkg/audit"
	"github.com/telekom/frontdesk/pkg/callback"
	"github.com/telekom/frontdesk/pkg/cli"
	"github.com/telekom/frontdesk/pkg/config"
	"github.com/telekom/frontdesk/pkg/escalation"
	"github.com/telekom/frontdesk/pkg/mail"
	"github.com/telekom/frontdesk/pkg/notify"
	"github.com/telekom/frontdesk/pkg/store"
	"github.com/telekom/frontdesk/pkg/store/memory"
	"github.com/telekom/frontdesk/pkg/store/redis"
	"github.com/telekom/frontdesk/pkg/store/sqlite"
	"github.com/telekom/frontdesk/pkg/system"
	"github.com/telekom/frontdesk/pkg/telemetry"
	"github.com/telekom/frontdesk/pkg/version"
)

func main() {
	cliConfig, err := cli.Parse()
	if err != nil {
		stdlog.Fatalf("parsing flags: %v", err)
	}

	zl, err := system.NewLogger(cliConfig.Debug)
	if err != nil {
		stdlog.Fatalf("failed to set up logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	log := zl.Sugar()

	if err := run(cliConfig, zl); err != nil {
		log.Errorw("frontdesk terminated", "error", err)
		_ = zl.Sync()
		os.Exit(1)
	}
}

func run(cliConfig *cli.Config, zl *zap.Logger) error {
	log := zl.Sugar()
	log.With("version", version.GetBuildInfo().String()).Info("Starting frontdesk")
	cliConfig.Print(log)

	cfg, err := config.Load(cliConfig.ConfigPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading config: %w", err)
		}
		log.Warnw("No configuration file found, using defaults", "path", cliConfig.ConfigPath)
		cfg = config.Defaults()
	}
	cliConfig.Apply(&cfg, log)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Server.Debug {
		log.Debugf("%#v", cfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res := &resources{log: log}
	abort := func(err error) error {
		releaseCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GetShutdownTimeout())
		defer cancel()
		res.release(releaseCtx)
		return err
	}

	tp, shutdownTracing, err := telemetry.Init(ctx, telemetry.OptionsFromConfig(cfg.Telemetry, version.Version, log))
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	res.add("tracing", shutdownTracing)

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return abort(fmt.Errorf("opening %s store: %w", cfg.Store.Type, err))
	}
	res.add("store", func(context.Context) error { return st.Close() })
	log.Infow("Store ready", "type", cfg.Store.Type)

	auditor, err := audit.New(cfg.Audit, zl.Named("audit"))
	if err != nil {
		return abort(err)
	}
	res.add("audit sinks", func(context.Context) error { return auditor.Close() })

	mailService := mail.NewService(cfg.Mail, log)
	mailService.Start()
	res.add("mail queue", mailService.Stop)

	customer, err := callback.New(cfg.Escalation.CallbackTemplate, callback.WithLogger(log.Named("callback")))
	if err != nil {
		return abort(err)
	}

	hub := notify.NewHub(log.Named("hub"))
	res.add("notification hub", func(context.Context) error { hub.Close(); return nil })

	var knowledgeObservers []escalation.KnowledgeObserver
	var observers []escalation.Observer
	if auditor != nil {
		observers = append(observers, auditor)
		knowledgeObservers = append(knowledgeObservers, auditor)
	}
	if mailService.IsEnabled() {
		observers = append(observers, mail.NewAlerter(mailService, cfg.Mail.Operators, cfg.Mail.DashboardURL, log))
	}

	kb := escalation.NewKnowledgeBase(st, hub,
		escalation.WithKnowledgeLogger(log),
		escalation.WithKnowledgeObservers(knowledgeObservers...),
	)
	manager := escalation.NewManager(st, hub,
		escalation.WithLogger(log),
		escalation.WithTimeout(cfg.EscalationTimeout(escalation.DefaultTimeout)),
		escalation.WithKnowledge(kb),
		escalation.WithCustomerNotifier(customer),
		escalation.WithObservers(observers...),
		escalation.WithTracer(tp.Tracer("github.com/telekom/frontdesk/pkg/escalation")),
	)

	if cfg.Knowledge.SeedInitial {
		if _, err := kb.Seed(ctx, escalation.DefaultSeed()); err != nil {
			log.Warnw("Seeding knowledge base failed", "error", err)
		}
	}

	monitor := escalation.NewTimeoutMonitor(manager,
		escalation.WithMonitorLogger(log),
		escalation.WithSweepInterval(cfg.SweepInterval(escalation.DefaultSweepInterval)),
		escalation.WithRetryInterval(cfg.RetryInterval(escalation.DefaultRetryInterval)),
	)
	if cliConfig.EnableMonitor {
		if err := monitor.Start(); err != nil {
			return abort(fmt.Errorf("starting timeout monitor: %w", err))
		}
		res.add("timeout monitor", func(context.Context) error { monitor.Stop(); return nil })
	} else {
		log.Info("Timeout monitor disabled")
	}

	server := api.NewServer(zl, cfg, api.Dependencies{
		Manager:   manager,
		Knowledge: kb,
		Hub:       hub,
		Store:     st,
		Callbacks: customer,
	})
	if err := server.RegisterDefaults(); err != nil {
		return abort(fmt.Errorf("registering controllers: %w", err))
	}

	auditor.SystemEvent(ctx, audit.EventSystemStartup, map[string]interface{}{"version": version.Version})

	listenErr := make(chan error, 1)
	go func() { listenErr <- server.Listen() }()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err = <-listenErr:
		if err != nil {
			log.Errorw("HTTP server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GetShutdownTimeout())
	defer cancel()

	if serr := server.Shutdown(shutdownCtx); serr != nil {
		log.Warnw("HTTP server shutdown", "error", serr)
	}
	auditor.SystemEvent(shutdownCtx, audit.EventSystemShutdown, nil)
	res.release(shutdownCtx)
	log.Info("frontdesk stopped")
	return err
}

type closer struct {
	name  string
	close func(context.Context) error
}

// resources releases what run has started, most recent first.
type resources struct {
	log     *zap.SugaredLogger
	closers []closer
}

func (r *resources) add(name string, fn func(context.Context) error) {
	r.closers = append(r.closers, closer{name: name, close: fn})
}

// release runs every closer once, even when earlier ones fail, and returns the failures.
func (r *resources) release(ctx context.Context) []error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		c := r.closers[i]
		if err := c.close(ctx); err != nil {
			r.log.Warnw("Releasing "+c.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	r.closers = nil
	return errs
}

func openStore(ctx context.Context, cfg config.Store) (store.Store, error) {
	switch cfg.Type {
	case config.StoreMemory:
		return memory.New(), nil
	case config.StoreRedis:
		rc := redis.DefaultConfig()
		rc.Address = cfg.Redis.Addr
		rc.Password = cfg.Redis.Password
		rc.Database = cfg.Redis.DB
		if cfg.Redis.KeyPrefix != "" {
			rc.KeyPrefix = cfg.Redis.KeyPrefix
		}
		return redis.New(ctx, rc)
	default:
		return sqlite.Open(ctx, cfg.SQLite.Path)
	}
}
