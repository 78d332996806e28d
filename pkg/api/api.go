package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/frontdesk/pkg/callback"
	"github.com/telekom/frontdesk/pkg/config"
	"github.com/telekom/frontdesk/pkg/escalation"
	"github.com/telekom/frontdesk/pkg/metrics"
	"github.com/telekom/frontdesk/pkg/notify"
	"github.com/telekom/frontdesk/pkg/ratelimit"
	"github.com/telekom/frontdesk/pkg/system"
)

type APIController interface {
	BasePath() string
	Register(rg *gin.RouterGroup) error
	Handlers() []gin.HandlerFunc
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the services the HTTP surface talks to.
// CallbackOutbox lists the customer messages sent most recently.
type CallbackOutbox interface {
	Recent() []callback.Message
}

type Dependencies struct {
	Manager   *escalation.Manager
	Knowledge *escalation.KnowledgeBase
	Hub       *notify.Hub
	Store     Pinger
	Callbacks CallbackOutbox
}

type Server struct {
	gin        *gin.Engine
	config     config.Config
	log        *zap.SugaredLogger
	deps       Dependencies
	limiter    *ratelimit.IPRateLimiter
	httpServer *http.Server
	// ctx is cancelled on Shutdown so websocket handlers return.
	ctx    context.Context
	cancel context.CancelFunc
}

// unlimitedPrefixes are never rate limited: long-lived sockets and probes.
var unlimitedPrefixes = []string{"/ws/", "/metrics", "/healthz"}

func NewServer(log *zap.Logger, cfg config.Config, deps Dependencies) *Server {
	debug := cfg.Server.Debug
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(log, time.RFC3339, true),
		ginzap.RecoveryWithZap(log, true),
	)
	if len(cfg.Server.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
			log.Warn("Ignoring invalid trusted proxies", zap.Strings("trustedProxies", cfg.Server.TrustedProxies), zap.Error(err))
		}
	}

	if debug {
		engine.Use(
			cors.New(cors.Config{
				AllowOrigins: []string{"http://localhost:5173", "http://127.0.0.1:8080"},
				AllowMethods: []string{"GET", "PUT", "POST", "OPTIONS"},
				AllowHeaders: []string{"Origin", "Content-Type", system.RequestIDHeader},
				MaxAge:       12 * time.Hour,
			}),
		)
	}

	sugar := log.Sugar()
	limiter := ratelimit.New(ratelimit.Config{
		Rate:  cfg.RateLimit.Rate,
		Burst: cfg.RateLimit.Burst,
	})
	engine.Use(
		system.RequestLogger(sugar),
		instrument(),
		limiter.MiddlewareWithExclusions(unlimitedPrefixes),
	)

	if cfg.Server.FrontendDir != "" {
		engine.NoRoute(ServeSPA("/", cfg.Server.FrontendDir))
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		gin:     engine,
		config:  cfg,
		log:     sugar,
		deps:    deps,
		limiter: limiter,
		ctx:     ctx,
		cancel:  cancel,
	}
	timeouts := cfg.Server.GetServerTimeouts()
	s.httpServer = &http.Server{
		Addr:              cfg.Server.ListenAddress,
		Handler:           engine,
		ReadTimeout:       timeouts.GetReadTimeout(),
		ReadHeaderTimeout: timeouts.GetReadHeaderTimeout(),
		WriteTimeout:      timeouts.GetWriteTimeout(),
		IdleTimeout:       timeouts.GetIdleTimeout(),
		MaxHeaderBytes:    timeouts.GetMaxHeaderBytes(),
	}

	engine.GET("healthz", s.handleHealth)
	engine.GET("metrics", gin.WrapH(metrics.MetricsHandler()))
	engine.GET("api/version", s.handleVersion)
	engine.GET("api/config", s.getConfig)
	if deps.Hub != nil {
		engine.GET("ws/supervisor", s.handleSupervisorSocket)
	}
	if deps.Callbacks != nil {
		engine.GET("api/callbacks", s.handleCallbacks)
	}

	return s
}

// RegisterAll mounts every controller below /api.
func (s *Server) RegisterAll(controllers []APIController) error {
	r := s.gin.Group("api")
	for _, c := range controllers {
		if err := c.Register(r.Group(c.BasePath(), c.Handlers()...)); err != nil {
			return err
		}
	}
	return nil
}

// RegisterDefaults mounts the help request and knowledge base controllers
// backed by the server's dependencies.
func (s *Server) RegisterDefaults() error {
	var controllers []APIController
	if s.deps.Manager != nil {
		hc := NewHelpRequestController(s.log, s.deps.Manager)
		controllers = append(controllers, hc)
		s.gin.GET("api/stats", hc.HandleStats)
	}
	if s.deps.Knowledge != nil {
		controllers = append(controllers, NewKnowledgeController(s.log, s.deps.Knowledge))
	}
	return s.RegisterAll(controllers)
}

// Handler returns the underlying http.Handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Listen serves until Shutdown is called. It returns nil after a graceful shutdown.
func (s *Server) Listen() error {
	s.log.Infow("Starting HTTP server", "address", s.config.Server.ListenAddress)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, closes open operator sockets and waits
// for in-flight requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	defer s.Close()
	return s.httpServer.Shutdown(ctx)
}

// Close releases background resources. Safe to call more than once.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

type FrontendConfig struct {
	TimeoutSeconds int64  `json:"timeoutSeconds"`
	Debug          bool   `json:"debug"`
	SocketPath     string `json:"socketPath"`
}

func (s *Server) getConfig(c *gin.Context) {
	timeout := escalation.DefaultTimeout
	if s.deps.Manager != nil {
		timeout = s.deps.Manager.Timeout()
	}
	c.JSON(http.StatusOK, FrontendConfig{
		TimeoutSeconds: int64(timeout / time.Second),
		Debug:          s.config.Server.Debug,
		SocketPath:     "/ws/supervisor",
	})
}
