package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"signal-enginev1/config"
	"signal-enginev1/internal/fetch"
	"signal-enginev1/internal/gateway"
	"signal-enginev1/internal/indicator"
	"signal-enginev1/internal/logger"
	"signal-enginev1/internal/metrics"
	"signal-enginev1/internal/model"
	"signal-enginev1/internal/notify"
	"signal-enginev1/internal/session"
	sig "signal-enginev1/internal/signal"
	"signal-enginev1/internal/source/sim"
	"signal-enginev1/internal/source/sqlite"
	redisstore "signal-enginev1/internal/store/redis"
)

var processStart = time.Now()

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	cfg := config.Load()

	slogger := logger.Init("signalserver", slog.LevelInfo)
	slogger.Info("starting", slog.String("source", cfg.Source), slog.String("addr", cfg.ListenAddr))

	m := metrics.New()
	health := metrics.NewHealthStatus()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bar source: deterministic simulator or a SQLite bar archive.
	var (
		raw     model.BarSource
		symbols []string
		barDB   *sql.DB
	)
	switch cfg.Source {
	case "sqlite":
		src, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("[signalserver] sqlite open: %v", err)
		}
		defer src.Close()
		if syms, err := src.Symbols(ctx); err == nil {
			symbols = syms
		}
		barDB = src.DB()
		raw = src
	default:
		src := sim.New()
		symbols = src.Symbols()
		raw = src
	}

	fetcher := fetch.NewRetrying(raw, fetch.Policy{
		MaxAttempts: cfg.FetchRetries,
		BackoffBase: cfg.FetchBackoffBase,
		BackoffCap:  cfg.FetchBackoffCap,
	})
	fetcher.OnAttempt = func(symbol string) {
		m.FetchAttempts.Inc()
	}
	fetcher.OnRetry = func(symbol string, attempt int, err error) {
		m.FetchRetries.Inc()
	}

	// Optional sinks fan out next to the per-client WebSocket stream.
	var (
		extra model.MultiBroadcaster
		rdb   *goredis.Client
	)

	if cfg.RedisAddr != "" {
		pub, err := redisstore.NewPublisher(redisstore.PublisherConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Fatalf("[signalserver] redis: %v", err)
		}
		defer pub.Close()
		pub.OnDrop = func() { m.CacheDrops.Inc() }
		pub.Breaker().OnStateChange = func(from, to redisstore.BreakerState) {
			m.BreakerState.Set(float64(to))
			if to == redisstore.BreakerOpen {
				m.BreakerTrips.Inc()
			}
		}
		rdb = pub.Client()
		extra = append(extra, pub)
	}

	if cfg.WebhookURL != "" {
		extra = append(extra, notify.NewSignalAlerter(notify.NewWebhookNotifier(cfg.WebhookURL)))
	}

	if rdb != nil || barDB != nil {
		health.StartLivenessChecker(ctx, rdb, barDB, 15*time.Second)
	}

	hub := gateway.NewHub()

	sessionCfg := session.Config{
		PollInterval: cfg.PollInterval,
		Indicators: indicator.Config{
			SMAPeriod:  cfg.SMAPeriod,
			RSIPeriod:  cfg.RSIPeriod,
			MACDFast:   cfg.MACDFast,
			MACDSlow:   cfg.MACDSlow,
			MACDSignal: cfg.MACDSignal,
		},
		Thresholds: sig.DefaultThresholds(),
	}

	var extraSink model.Broadcaster
	if len(extra) > 0 {
		extraSink = extra
	}

	mux := http.NewServeMux()
	gateway.RegisterRoutes(mux, gateway.Deps{
		Hub:            hub,
		Source:         fetcher,
		Sessions:       sessionCfg,
		DefaultNumBars: cfg.DefaultNumBars,
		Extra:          extraSink,
		Symbols:        symbols,
		Log:            slogger,
		Start:          processStart,
		OnSessionStart: func() {
			m.SessionsActive.Inc()
			m.WSClients.Set(float64(hub.ClientCount()))
		},
		OnSessionEnd: func(err error) {
			m.SessionsActive.Dec()
			outcome := "closed"
			if err != nil {
				outcome = "failed"
			}
			m.SessionsTotal.WithLabelValues(outcome).Inc()
		},
		OnEmit: func(update model.StreamUpdate) {
			health.SetLastEmitTime(time.Now())
			for _, rec := range update.Signals {
				if rec.Signal != nil {
					m.BarsProcessed.Inc()
					m.SignalsTotal.WithLabelValues(string(rec.Signal.Final)).Inc()
					if lat := time.Since(rec.Signal.TS); lat > 0 {
						m.EmitLatency.Observe(lat.Seconds())
					}
				} else {
					m.FetchFailures.WithLabelValues("exhausted").Inc()
				}
			}
		},
		OnBarDrop: func(symbol string) {
			m.BarsDropped.Inc()
		},
	})

	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("[signalserver] serving at http://localhost%s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[signalserver] server error: %v", err)
		}
	}()

	<-sigCh
	log.Println("[signalserver] shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
}
