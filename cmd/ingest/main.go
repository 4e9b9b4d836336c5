// Command ingest publishes document events to the ingest topic.
//
// Input is JSON lines, one event per line:
//
//	{"op":"add","id":1,"text":"white cat and fancy collar","status":"ACTUAL","ratings":[8,-3]}
//	{"op":"remove","id":1}
//
// Usage:
//
//	go run ./cmd/ingest [-config configs/development.yaml] [-file events.jsonl] [-batch 100]
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/search-server/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	file := flag.String("file", "-", "JSON-lines input, - for stdin")
	batchSize := flag.Int("batch", 100, "events per Kafka write")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	var in io.Reader = os.Stdin
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			slog.Error("failed to open input", "file", *file, "error", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest)
	defer producer.Close()

	published, err := publish(ctx, in, producer, *batchSize)
	if err != nil {
		slog.Error("ingest failed", "published", published, "error", err)
		os.Exit(1)
	}
	slog.Info("ingest complete", "published", published, "topic", cfg.Kafka.Topics.DocumentIngest)
}

type publisher interface {
	PublishBatch(ctx context.Context, records []kafka.Record) error
}

// publish reads events from in and sends them in batches. It stops at the
// first malformed line.
func publish(ctx context.Context, in io.Reader, p publisher, batchSize int) (int, error) {
	if batchSize < 1 {
		batchSize = 1
	}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	published := 0
	batch := make([]kafka.Record, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.PublishBatch(ctx, batch); err != nil {
			return err
		}
		published += len(batch)
		batch = batch[:0]
		return nil
	}

	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var event consumer.IngestEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			return published, fmt.Errorf("line %d: %w", line, err)
		}
		if err := event.Validate(); err != nil {
			return published, fmt.Errorf("line %d: %w", line, err)
		}
		batch = append(batch, event)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return published, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return published, fmt.Errorf("reading input: %w", err)
	}
	return published, flush()
}
