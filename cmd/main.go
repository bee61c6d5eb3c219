package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/vehicle-signal/vis-server/internal/codec"
	"github.com/vehicle-signal/vis-server/internal/config"
	"github.com/vehicle-signal/vis-server/internal/engine"
	"github.com/vehicle-signal/vis-server/internal/errorset"
	"github.com/vehicle-signal/vis-server/internal/logger"
	"github.com/vehicle-signal/vis-server/internal/middleware"
	"github.com/vehicle-signal/vis-server/internal/producer"
	"github.com/vehicle-signal/vis-server/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// demoSetPath is a settable signal wired at startup so that a running
// server actually accepts at least one `set` request end-to-end, rather
// than leaving every path to fall through the set-handler registry's
// invalid_path branch. Mirrors the reference implementation's own example
// server, which registers a print-and-accept consumer against
// Private.Example.Print.Set.
const demoSetPath = "Private.Example.Print.Set"

// registerDemoSetHandler installs the print-and-accept consumer: it logs
// the incoming value and feeds it back through UpdateSignal so the set
// value is immediately visible to get and subscribe on the same path.
func registerDemoSetHandler(eng *engine.Engine, log *zerolog.Logger) {
	path := codec.NewPath(demoSetPath)
	eng.RegisterHandler(path, func(requestID codec.RequestID, value codec.Value) *errorset.AppError {
		log.Info().Str("path", demoSetPath).Str("requestId", requestID.String()).RawJSON("value", value.Raw()).Msg("received set")
		eng.UpdateSignal(path, value)
		return nil
	})
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger.Initialize(cfg.LogLevel, cfg.LogPretty)
	log := logger.GetLogger()

	log.Info().Str("addr", cfg.ListenAddr).Msg("starting vis-server")

	eng := engine.New()
	go eng.Run()
	defer eng.Stop()

	registerDemoSetHandler(eng, log)

	pushProducer := producer.NewPushProducer(producer.PushConfig{
		URL:     cfg.NATSURL,
		Subject: cfg.NATSSubject,
	}, eng)
	if err := pushProducer.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start push-stream producer")
	}
	defer pushProducer.Close()

	var periodicProducer *producer.PeriodicProducer
	if cfg.ProducerManifest != "" {
		manifest, err := producer.LoadManifest(cfg.ProducerManifest)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load producer manifest")
		}
		periodicProducer = producer.NewPeriodicProducer(manifest.Tasks, eng)
		if err := periodicProducer.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start periodic producer")
		}
		defer periodicProducer.Close()
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(errorset.Recovery())
	router.Use(middleware.StructuredLoggerWithConfigFunc(middleware.DefaultStructuredLoggerConfig()))
	router.Use(middleware.AllowedHTTPMethods())
	router.Use(middleware.SecurityHeaders())
	router.Use(errorset.ErrorHandler())

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	router.Use(limiter.Middleware())

	// Compression, body-size limiting, and the request timeout only make
	// sense for the ordinary HTTP routes; the WebSocket upgrade at "/"
	// hijacks the connection and must never see them.
	debug := router.Group("/")
	debug.Use(middleware.Timeout(middleware.DefaultTimeoutConfig()))
	debug.Use(middleware.RequestSizeLimiter(cfg.MaxRequestBytes))
	debug.Use(middleware.Gzip(middleware.BestSpeed))

	debug.GET("/healthz", func(c *gin.Context) {
		signalCount, subscriptionCount := eng.Stats()
		c.JSON(http.StatusOK, gin.H{
			"status":        "ok",
			"signals":       signalCount,
			"subscriptions": subscriptionCount,
		})
	})

	debug.GET("/api/v1/signals", func(c *gin.Context) {
		c.JSON(http.StatusOK, eng.Snapshot())
	})

	router.GET("/", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		sessionID := codec.NewRequestID().String()
		sess := session.New(sessionID, conn, eng)
		sess.Serve()
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http server forced to shutdown")
	} else {
		log.Info().Msg("http server stopped gracefully")
	}
}
