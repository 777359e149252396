package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	_ "time/tzdata"

	"voice-platform/internal/audit"
	"voice-platform/internal/auth"
	"voice-platform/internal/business"
	"voice-platform/internal/config"
	"voice-platform/internal/dialer"
	"voice-platform/internal/events"
	"voice-platform/internal/gateway"
	"voice-platform/internal/httpapi"
	"voice-platform/internal/metrics"
	"voice-platform/internal/routing"
	"voice-platform/internal/store"
	"voice-platform/internal/telephony"
	"voice-platform/internal/tts"
	"voice-platform/internal/voiceagent"
	"voice-platform/pkg/logger"
	"voice-platform/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, cfg.App.LogLevel)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	schema := append(append(append([]string{}, business.Schema...), audit.Schema...), store.Schema...)
	if err := utils.ApplySchema(rootCtx, db, schema...); err != nil {
		log.Error("schema apply failed", "err", err)
		os.Exit(1)
	}

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	m := metrics.New("voice-platform")

	// Events: services publish to redis; every instance relays into its own hub.
	hub := events.NewHub(log, m)
	go hub.Run(rootCtx)
	publisher := events.NewRedisPublisher(rdb, log)
	go publisher.Relay(rootCtx, hub)

	state := openStore(cfg, db, rdb)

	directory := business.NewPostgresSource(db)
	businesses, err := business.NewCachedSource(directory, 0, business.WithCacheLogger(log))
	if err != nil {
		log.Error("business cache init failed", "err", err)
		os.Exit(1)
	}

	auditSvc := audit.NewService(audit.NewPostgresRepo(db))

	carriers := telephony.NewCarriers(cfg.CarrierConfigs(), log)
	if len(carriers) == 0 {
		log.Warn("no carriers configured; outbound calls will fail")
	}
	gw := gateway.New(gateway.Config{
		Failover:       cfg.Carriers.Failover,
		Primary:        telephony.Provider(cfg.Carriers.Primary),
		HealthInterval: cfg.Carriers.HealthInterval,
	}, carriers, gateway.WithLogger(log), gateway.WithMetrics(m))
	gw.Start(rootCtx)

	var agent routing.AgentConnector = routing.AcceptAllAgent{}
	dialerOpts := []dialer.Option{
		dialer.WithLogger(log),
		dialer.WithConfigSource(businesses),
		dialer.WithDNC(directory),
		dialer.WithPublisher(publisher),
		dialer.WithMetrics(m),
		dialer.WithCallWait(cfg.Dialer.CallWait),
		dialer.WithStore(state),
	}
	if cfg.Voice.AgentURL != "" {
		va := voiceagent.New(cfg.Voice.AgentURL, cfg.Voice.APIKey, nil, log)
		agent = va
		speech, err := newSpeech(cfg, va, log)
		if err != nil {
			log.Error("tts init failed", "err", err)
			os.Exit(1)
		}
		dialerOpts = append(dialerOpts, dialer.WithRenderer(speech))
	} else {
		log.Warn("voice agent not configured; inbound calls are accepted without an agent session")
	}

	switch cfg.Dialer.Backend {
	case "redis":
		dialerOpts = append(dialerOpts,
			dialer.WithRateLimiter(dialer.NewRedisRateLimiter(rdb, cfg.Dialer.RateLimit, time.Now)),
			dialer.WithConcurrencyLimiter(dialer.NewRedisConcurrency(rdb)),
		)
	default:
		dialerOpts = append(dialerOpts,
			dialer.WithRateLimiter(dialer.NewMemoryRateLimiter(cfg.Dialer.RateLimit, time.Now)),
			dialer.WithConcurrencyLimiter(dialer.NewMemoryConcurrency()),
		)
	}
	sched := dialer.NewTimerScheduler()
	go sched.Run(rootCtx)
	dialerOpts = append(dialerOpts, dialer.WithScheduler(sched))
	outbound := dialer.New(gw, dialerOpts...)

	inbound := routing.NewRouter(businesses,
		routing.WithLogger(log),
		routing.WithAgent(agent),
		routing.WithTransferer(gw),
		routing.WithAudit(routing.AuditAdapter{Audit: auditSvc}),
		routing.WithPublisher(publisher),
		routing.WithMetrics(m),
		routing.WithStore(state),
	)

	webhooks := telephony.WebhookHandler{
		Parser:   gw,
		Inbound:  inbound,
		Outbound: outbound,
		// Outbound sessions claim their events first; the rest are inbound calls.
		Events: []telephony.CallEventHandler{outbound, inbound},
		BusinessResolver: func(c *gin.Context, toNumber string) (string, error) {
			return directory.ResolveNumber(c.Request.Context(), toNumber)
		},
	}

	h := httpapi.Handlers{
		Auth:       authManager,
		Gateway:    gw,
		Router:     inbound,
		Dialer:     outbound,
		Hub:        hub,
		Audit:      auditSvc,
		Rules:      directory,
		DNC:        directory,
		Invalidate: businesses.Invalidate,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		handlers: h,
		webhooks: webhooks,
		metrics:  m.Handler(),
		authMW:   auth.RequireAccessToken(authManager),
		socketMW: auth.RequireSocketToken(authManager),
		ready: func(ctx context.Context) error {
			if err := utils.HealthCheck(ctx, db, 2*time.Second); err != nil {
				return err
			}
			return rdb.Ping(ctx).Err()
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Websocket connections outlive WriteTimeout; the hub sets its own write deadlines.
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "carriers", len(carriers))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	log.Info("shutdown complete")
}

// openStore picks where calls, sessions, campaigns and callbacks are kept.
func openStore(cfg config.Config, db *sql.DB, rdb redis.UniversalClient) store.Store {
	switch cfg.App.StoreBackend {
	case "redis":
		return store.NewRedisStore(rdb, "voice", 7*24*time.Hour)
	case "postgres":
		return store.NewPostgresStore(db)
	default:
		return store.NewMemoryStore()
	}
}

func newSpeech(cfg config.Config, synth tts.Synthesizer, log *slog.Logger) (*tts.Service, error) {
	var objects tts.ObjectStore
	if cfg.Storage.Enabled() {
		ms, err := tts.NewMinioStore(tts.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		objects = ms
	}
	cache, err := tts.NewCache(0, objects, log, nil)
	if err != nil {
		return nil, err
	}
	return tts.NewService(synth, cache, "", log), nil
}
