package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"cinerec/internal/auth"
	"cinerec/internal/dna"
	"cinerec/internal/limiter"
	"cinerec/internal/memcache"
	"cinerec/internal/populator"
	"cinerec/internal/recommend"
	"cinerec/internal/semantic"
	"cinerec/internal/server"
	"cinerec/internal/store"
	"cinerec/internal/tmdb"
)

func main() {
	dbPath := envOr("DB_PATH", "./data/cinerec.db")
	listenAddr := envOr("LISTEN_ADDR", ":7940")
	migrationsDir := envOr("MIGRATIONS_DIR", "./migrations")
	corsOrigin := os.Getenv("CORS_ORIGIN")

	apiKey := os.Getenv("TMDB_API_KEY")
	if apiKey == "" {
		log.Fatal("TMDB_API_KEY is required")
	}

	requestConcurrency := envOrInt("REQUEST_LIMITER_CONCURRENCY", 5)
	populatorConcurrency := envOrInt("POPULATOR_LIMITER_CONCURRENCY", 8)
	populatorGapMS := envOrInt("POPULATOR_MIN_GAP_MS", 250)
	maxCandidates := envOrInt("MAX_CANDIDATES", recommend.DefaultMaxCandidates)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		log.Fatal(err)
	}

	s, err := store.New(dbPath)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer s.Close()

	if err := s.Migrate(migrationsDir); err != nil {
		log.Fatalf("running migrations: %v", err)
	}

	// One metadata cache per process; request path and populator get their
	// own limiters so population never starves live traffic.
	cache := memcache.New()
	requestClient := tmdb.New(apiKey, limiter.New(requestConcurrency), cache)
	populatorClient := tmdb.New(apiKey,
		limiter.NewWithMinGap(populatorConcurrency, time.Duration(populatorGapMS)*time.Millisecond),
		cache)

	discoverer := recommend.NewDiscoverer(requestClient)
	discoverer.SetMaxCandidates(maxCandidates)
	pipeline := recommend.NewPipeline(
		s,
		discoverer,
		recommend.NewEnricher(requestClient),
		recommend.NewScorer(semantic.NewScorer()),
		dna.NewAnalyzer(requestClient),
	)

	pop := populator.New(populatorClient, s)
	if err := pop.Start(); err != nil {
		log.Fatalf("starting populator: %v", err)
	}
	defer pop.Stop()

	var verifier auth.Verifier = auth.AllowAll{}
	if hash := os.Getenv("API_TOKEN_HASH"); hash != "" {
		verifier = auth.NewStaticVerifier(hash)
	} else {
		log.Println("API_TOKEN_HASH not set — authentication disabled")
	}

	var opts []server.Option
	if corsOrigin != "" {
		opts = append(opts, server.WithCORSOrigin(corsOrigin))
	}
	opts = append(opts, server.WithVerifier(verifier))
	srv := server.NewServer(pipeline, opts...)

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("cinerec listening on %s", listenAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return n
}
