// Package consumer applies document ingest events from Kafka to the engine.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/search-server/internal/execution"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-server/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/kafka"
)

type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
)

// IngestEvent is the JSON payload on the ingest topic. Status defaults to
// ACTUAL when omitted.
type IngestEvent struct {
	Op      Op           `json:"op"`
	ID      int          `json:"id"`
	Text    string       `json:"text,omitempty"`
	Status  index.Status `json:"status"`
	Ratings []int        `json:"ratings,omitempty"`
}

// Key is the partition key for the event, keeping all events of one
// document on one partition.
func (e IngestEvent) Key() string {
	return strconv.Itoa(e.ID)
}

// Kind is the event's op, sent as a message header.
func (e IngestEvent) Kind() string {
	return string(e.Op)
}

// Validate rejects events no engine could apply: unknown ops and ids out of
// range. Text is validated by the engine itself.
func (e IngestEvent) Validate() error {
	if e.Op != OpAdd && e.Op != OpRemove {
		return apperrors.InvalidArgument("unknown op %q", e.Op)
	}
	if e.ID < 0 || uint64(e.ID) > indexer.MaxDocumentID {
		return apperrors.InvalidArgument("document id %d is out of range", e.ID)
	}
	return nil
}

// Invalidator is notified after every applied mutation.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessage returns a MessageHandler applying each event to engine.
// Events the engine rejects as invalid are logged and skipped, since
// redelivery cannot fix them. inv may be nil.
func HandleMessage(engine *indexer.Engine, policy execution.Policy, inv Invalidator) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[IngestEvent](value)
		if err != nil {
			logger.Error("failed to decode ingest event",
				"error", err,
				"key", string(key),
			)
			return nil
		}

		switch event.Op {
		case OpAdd:
			err = engine.AddDocument(event.ID, event.Text, event.Status, event.Ratings)
		case OpRemove:
			err = engine.RemoveDocument(policy, event.ID)
		default:
			logger.Error("unknown ingest op", "op", event.Op, "doc_id", event.ID)
			return nil
		}
		if err != nil {
			if isPermanent(err) {
				logger.Warn("ingest event rejected",
					"op", event.Op,
					"doc_id", event.ID,
					"error", err,
				)
				return nil
			}
			return fmt.Errorf("applying %s of document %d: %w", event.Op, event.ID, err)
		}

		if inv != nil {
			if err := inv.Invalidate(ctx); err != nil {
				logger.Error("cache invalidation failed", "doc_id", event.ID, "error", err)
			}
		}
		logger.Info("ingest event applied", "op", event.Op, "doc_id", event.ID)
		return nil
	}
}

func isPermanent(err error) bool {
	return errors.Is(err, apperrors.ErrInvalidArgument) ||
		errors.Is(err, apperrors.ErrInvalidWord) ||
		errors.Is(err, apperrors.ErrDocumentNotFound)
}
