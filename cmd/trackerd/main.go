package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akshitha1024/traceback/api"
	"github.com/akshitha1024/traceback/claim"
	"github.com/akshitha1024/traceback/config"
	"github.com/akshitha1024/traceback/db"
	"github.com/akshitha1024/traceback/embedding"
	"github.com/akshitha1024/traceback/jobs"
	"github.com/akshitha1024/traceback/matching"
	"github.com/akshitha1024/traceback/metrics"
	"github.com/akshitha1024/traceback/notify"
	"github.com/akshitha1024/traceback/privacy"
	"github.com/akshitha1024/traceback/report"
	"github.com/akshitha1024/traceback/settlement"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("trackerd: load .env: %v", err)
	}

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("trackerd: connect database: %v", err)
	}
	defer pool.Close()

	var embedder embedding.Client = embedding.NewHTTPClient(cfg.EmbedServiceURL)
	if cfg.RedisURL != "" {
		cache, err := embedding.NewCache(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("trackerd: connect redis: %v", err)
		}
		defer cache.Close()
		embedder = embedding.NewCachedClient(embedder, cache)
	}

	// Image comparison capability is decided once at startup.
	var comparator matching.ImageComparator = matching.Unavailable{}
	if cfg.VisionServiceURL != "" {
		comparator = matching.NewHTTPComparator(cfg.VisionServiceURL)
		log.Printf("trackerd: image comparison enabled via %s", cfg.VisionServiceURL)
	} else {
		log.Printf("trackerd: image comparison unavailable, using five-signal scoring")
	}

	reports := report.NewRepository(pool)
	catalog := matching.NewCatalog(pool)
	scorer := matching.NewScorer(embedder, comparator)
	notifier := notify.LogNotifier{}
	deliveries := notify.NewLedger(pool)
	tokens := privacy.NewTokenIssuer(cfg.RevealTokenSecret, cfg.RevealTokenTTL)

	scheduler := matching.NewScheduler(pool, reports, catalog, scorer, notifier,
		cfg.MatchMinScore, cfg.MatchTopK, cfg.MatchWorkers)
	sweeper := privacy.NewSweeper(privacy.NewStore(pool), reports, deliveries, notifier)
	settle := settlement.NewService(pool, settlement.NewRepository(pool),
		cfg.DecisionWindow, cfg.ClaimedRetention, cfg.FoundRetention, cfg.LostRetention)

	matches := matching.NewService(catalog, cfg.MatchTopK)
	claims := claim.NewService(claim.NewLedger(pool), reports, tokens)
	views := privacy.NewManager(tokens)

	metrics.Register()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.Printf("trackerd: metrics listening on %s", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			log.Printf("trackerd: metrics server: %v", err)
		}
	}()

	router := api.NewRouter(reports, views, matches, claims, settle, cfg.PrivacyWindow)
	server := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		log.Printf("trackerd: api listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("trackerd: api server: %v", err)
		}
	}()

	runner := jobs.NewRunner(scheduler, sweeper, settle, cfg.MatchInterval, cfg.PurgeInterval)
	runner.Start(ctx)
	log.Printf("trackerd: running, match interval %s, purge interval %s", cfg.MatchInterval, cfg.PurgeInterval)

	<-ctx.Done()
	log.Printf("trackerd: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("trackerd: shutdown api server: %v", err)
	}
	runner.Stop()
}
