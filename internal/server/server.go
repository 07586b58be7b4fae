package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/sentinelkit/logscrub/internal/audit"
	"github.com/sentinelkit/logscrub/internal/cache"
	"github.com/sentinelkit/logscrub/internal/config"
	"github.com/sentinelkit/logscrub/internal/events"
	"github.com/sentinelkit/logscrub/internal/logger"
	"github.com/sentinelkit/logscrub/internal/rules"
	"github.com/sentinelkit/logscrub/internal/scrub"
	"github.com/sentinelkit/logscrub/internal/web"
)

// Server exposes the scrubbing engine over HTTP.
type Server struct {
	config *config.Config
	logger *logger.Logger
	router *mux.Router
	server *http.Server
	hub    *events.Hub

	cache   *cache.ResultCache // nil unless enabled
	store   *audit.Store       // nil unless enabled
	limiter *ipRateLimiter     // nil unless enabled

	// Active rule set, swapped on reload
	mu       sync.RWMutex
	ruleSet  *rules.Set
	scrubCfg scrub.Config

	startTime     time.Time
	totalRequests atomic.Int64
	totalScrubs   atomic.Int64
	totalFileJobs atomic.Int64

	cancel context.CancelFunc
}

// New creates a new API server instance
func New(cfg *config.Config, log *logger.Logger) (*Server, error) {
	set, err := loadRules(cfg.Rules.File)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	// With events disabled the hub never runs, so broadcasts must not queue
	hub := events.NewHub(&events.HubConfig{
		BroadcastScrubResults: cfg.Events.Enabled && cfg.Events.Broadcast.ScrubResults,
		BroadcastFileJobs:     cfg.Events.Enabled && cfg.Events.Broadcast.FileJobs,
		BroadcastSystem:       cfg.Events.Enabled && cfg.Events.Broadcast.System,
		BroadcastConnections:  cfg.Events.Enabled && cfg.Events.Broadcast.Connections,
		Username:              cfg.Events.Username,
		Password:              cfg.Events.Password,
		AllowedOrigins:        cfg.Events.AllowedOrigins,
		MaxConnections:        cfg.Events.MaxConnections,
	}, log)

	server := &Server{
		config:    cfg,
		logger:    log.WithComponent("server"),
		router:    mux.NewRouter(),
		hub:       hub,
		ruleSet:   set,
		scrubCfg:  cfg.Scrub,
		startTime: time.Now(),
	}

	if cfg.Cache.Enabled {
		resultCache, err := cache.New(&cache.Config{
			RedisURL:   cfg.Cache.RedisURL,
			DefaultTTL: cfg.Cache.TTL,
			KeyPrefix:  cfg.Cache.KeyPrefix,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create result cache: %w", err)
		}
		server.cache = resultCache
	}

	if cfg.Audit.Enabled {
		store, err := audit.NewStore(&audit.Config{
			DatabaseURL: cfg.Audit.DatabaseURL,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create audit store: %w", err)
		}
		server.store = store
	}

	if cfg.RateLimit.Enabled {
		server.limiter = newIPRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	}

	server.setupRoutes()

	server.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return server, nil
}

// loadRules compiles the configured pack, or the built-in defaults when no
// pack file is set.
func loadRules(path string) (*rules.Set, error) {
	if path == "" {
		return rules.Compile(rules.Defaults())
	}
	loaded, err := rules.Load(path)
	if err != nil {
		return nil, err
	}
	return rules.Compile(loaded)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Info endpoint
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	// Stats endpoint
	s.router.HandleFunc("/stats", s.handleStats).Methods("GET")

	// Dashboard endpoint - embedded HTML
	s.router.HandleFunc("/", web.ServeDashboard).Methods("GET")
	s.router.HandleFunc("/dashboard", web.ServeDashboard).Methods("GET")

	// WebSocket endpoint for the dashboard
	if s.config.Events.Enabled {
		s.router.HandleFunc(s.config.Events.Path, s.handleWebSocket).Methods("GET")
	}

	// Scrubbing API
	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)
	api.HandleFunc("/scrub", s.handleScrub).Methods("POST")
	api.HandleFunc("/scrub/batch", s.handleScrubBatch).Methods("POST")
	api.HandleFunc("/scrub/file", s.handleScrubFile).Methods("POST")
	api.HandleFunc("/rules", s.handleRules).Methods("GET")
	api.HandleFunc("/rules/reload", s.handleRulesReload).Methods("POST")
	api.HandleFunc("/runs", s.handleRuns).Methods("GET")
	api.HandleFunc("/cache/clear", s.handleCacheClear).Methods("POST")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.mu.RLock()
	ruleCount := s.ruleSet.Len()
	fingerprint := s.ruleSet.Fingerprint()
	s.mu.RUnlock()

	s.logger.Info("starting logscrub API server",
		zap.Int("port", s.config.Server.Port),
		zap.Int("rules", ruleCount),
		zap.String("rules_fingerprint", fingerprint),
		zap.Bool("cache", s.cache != nil),
		zap.Bool("audit", s.store != nil),
	)

	if s.config.Events.Enabled {
		go s.hub.Run(ctx)
		go s.statusLoop(ctx)
	}
	if s.limiter != nil {
		s.limiter.startCleanupRoutine(ctx)
	}

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping logscrub API server")

	if s.cancel != nil {
		s.cancel()
	}

	err := s.server.Shutdown(ctx)

	if s.cache != nil {
		if cerr := s.cache.Close(); cerr != nil {
			s.logger.Warn("failed to close result cache", zap.Error(cerr))
		}
	}
	if s.store != nil {
		if cerr := s.store.Close(); cerr != nil {
			s.logger.Warn("failed to close audit store", zap.Error(cerr))
		}
	}

	return err
}

// ReloadRules re-reads the rule pack and swaps the active set
func (s *Server) ReloadRules() error {
	s.mu.RLock()
	path := s.config.Rules.File
	s.mu.RUnlock()

	set, err := loadRules(path)
	if err != nil {
		return fmt.Errorf("failed to reload rules: %w", err)
	}

	s.mu.Lock()
	old := s.ruleSet
	s.ruleSet = set
	s.mu.Unlock()

	s.logger.Info("rule set reloaded",
		zap.Int("rules", set.Len()),
		zap.String("fingerprint", set.Fingerprint()),
		zap.String("previous_fingerprint", old.Fingerprint()),
	)
	return nil
}

// ApplyConfig absorbs a configuration reload. Engine settings take effect
// immediately; listener settings need a restart.
func (s *Server) ApplyConfig(cfg *config.Config) {
	s.mu.Lock()
	s.scrubCfg = cfg.Scrub
	rulesFileChanged := s.config.Rules.File != cfg.Rules.File
	s.config.Rules = cfg.Rules
	s.config.Scrub = cfg.Scrub
	s.mu.Unlock()

	if rulesFileChanged {
		if err := s.ReloadRules(); err != nil {
			s.logger.Error("failed to apply new rule pack", zap.Error(err))
		}
	}

	s.logger.Info("configuration updated",
		zap.Int("workers", cfg.Scrub.Workers),
		zap.Int("chunk_bytes", cfg.Scrub.ChunkBytes),
	)
}

// Hub returns the event hub for broadcasting
func (s *Server) Hub() *events.Hub {
	return s.hub
}

// activeRules returns the current rule set
func (s *Server) activeRules() *rules.Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ruleSet
}

// engineConfig returns the current engine settings
func (s *Server) engineConfig() scrub.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scrubCfg
}

// statusLoop periodically broadcasts system status to dashboard clients
func (s *Server) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			hubStats := s.hub.GetStats()
			s.hub.BroadcastEvent(events.Event{
				Type:      events.EventTypeSystemStatus,
				Timestamp: time.Now(),
				Data: events.SystemStatusEvent{
					Status:           "healthy",
					Uptime:           time.Since(s.startTime).Round(time.Second).String(),
					TotalRequests:    s.totalRequests.Load(),
					TotalScrubs:      s.totalScrubs.Load(),
					ActiveRules:      s.activeRules().Len(),
					ConnectedClients: int(hubStats.ActiveConnections),
					MemoryUsage:      memoryUsage(),
				},
			})
		case <-ctx.Done():
			return
		}
	}
}

// memoryUsage formats the current heap allocation
func memoryUsage() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return fmt.Sprintf("%d MB", m.Alloc/1024/1024)
}
