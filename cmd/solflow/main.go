package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmittakarin8/solflow/internal/dedup"
	"github.com/dmittakarin8/solflow/internal/enrich"
	"github.com/dmittakarin8/solflow/internal/extractor"
	"github.com/dmittakarin8/solflow/internal/observability"
	"github.com/dmittakarin8/solflow/internal/pipeline"
	"github.com/dmittakarin8/solflow/internal/rolling"
	"github.com/dmittakarin8/solflow/internal/storage/sqlite"
	"github.com/dmittakarin8/solflow/internal/stream"
	"github.com/dmittakarin8/solflow/internal/writer"
)

func main() {
	dbPath := flag.String("db-path", os.Getenv("SOLFLOW_DB_PATH"), "SQLite database path (env SOLFLOW_DB_PATH)")
	endpoint := flag.String("stream-endpoint", os.Getenv("GEYSER_URL"), "Upstream decoder stream endpoint (env GEYSER_URL)")
	xToken := flag.String("x-token", os.Getenv("X_TOKEN"), "Stream authentication token (env X_TOKEN)")
	metadataURL := flag.String("metadata-url", os.Getenv("SOLFLOW_METADATA_URL"), "Token metadata source base URL (empty to disable enrichment)")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")
	queueCap := flag.Int("queue-cap", 1000, "Write queue capacity")
	dedupCap := flag.Int("dedup-cap", dedup.DefaultCapacity, "Signature dedup set ceiling")
	dropDegraded := flag.Bool("drop-degraded", false, "Drop trades whose SOL amount fell back to an instruction bound")

	flag.Parse()

	logger := log.New(os.Stdout, "[solflow] ", log.LstdFlags|log.Lshortfile)

	if *dbPath == "" {
		logger.Fatal("--db-path (or SOLFLOW_DB_PATH) is required")
	}
	if *endpoint == "" {
		logger.Fatal("--stream-endpoint (or GEYSER_URL) is required")
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err := run(ctx, logger, *dbPath, *endpoint, *xToken, *metadataURL, *queueCap, *dedupCap, *dropDegraded)
	close(done)
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// run owns the process lifecycle: open the store, apply migrations, spawn the
// writer, consume the stream, then drain and close in reverse order.
func run(ctx context.Context, logger *log.Logger, dbPath, endpoint, xToken, metadataURL string, queueCap, dedupCap int, dropDegraded bool) error {
	db, err := sqlite.Open(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()
	logger.Printf("Opened store at %s", dbPath)

	w := writer.New(writer.Options{
		Store:         sqlite.NewStore(db),
		QueueCapacity: queueCap,
		Logger:        log.New(os.Stdout, "[writer] ", log.LstdFlags),
	})

	// The writer outlives stream cancellation so the queue drains fully;
	// it stops when the queue is closed below.
	writerErr := make(chan error, 1)
	go func() {
		writerErr <- w.Run(context.Background())
	}()

	rollingStore := rolling.NewStore(rolling.NewClassifier(rolling.DefaultClassifierConfig()))

	var firstSeen chan<- string
	if metadataURL != "" {
		enricher := enrich.NewEnricher(
			enrich.NewFetcher(metadataURL, nil),
			w,
			log.New(os.Stdout, "[enrich] ", log.LstdFlags),
		)
		firstSeen = enricher.Mints()
		go enricher.Run(ctx)
	}

	processor := pipeline.NewProcessor(pipeline.ProcessorOptions{
		Signatures: dedup.NewSignatureSet(dedupCap),
		Extractor: extractor.New(extractor.Options{
			DropDegraded: dropDegraded,
			Logger:       logger,
		}),
		Rolling:   rollingStore,
		Writer:    w,
		Logger:    logger,
		FirstSeen: firstSeen,
	})

	source := stream.NewWSSource(endpoint, xToken, nil, logger)
	defer source.Close()

	runner := pipeline.NewRunner(pipeline.RunnerOptions{
		Source:    source,
		Processor: processor,
		Rolling:   rollingStore,
		Logger:    logger,
	})

	logger.Printf("Consuming stream at %s", endpoint)
	runErr := runner.Run(ctx)

	// Stream is stopped and in-flight events are done: drain the queue.
	w.Close()
	if err := <-writerErr; err != nil {
		return fmt.Errorf("writer: %w", err)
	}

	return runErr
}
