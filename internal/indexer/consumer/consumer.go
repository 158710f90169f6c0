// Package consumer rebuilds collection indexes when the application
// announces, over Kafka, that a collection's records changed.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kikaihonyaku/cocosumo-sub004/internal/indexer"
	apperrors "github.com/kikaihonyaku/cocosumo-sub004/pkg/errors"
	"github.com/kikaihonyaku/cocosumo-sub004/pkg/kafka"
	"github.com/kikaihonyaku/cocosumo-sub004/pkg/resilience"
)

var rebuildRetry = resilience.RetryConfig{
	MaxAttempts:  4,
	InitialDelay: time.Second,
	MaxDelay:     15 * time.Second,
}

// ChangeEvent announces that records of a collection were created,
// updated or deleted. The message key is the collection name as well.
type ChangeEvent struct {
	Collection string   `json:"collection"`
	Action     string   `json:"action,omitempty"`
	IDs        []string `json:"ids,omitempty"`
}

// Rebuilder is the part of the engine the consumer drives.
type Rebuilder interface {
	Rebuild(ctx context.Context, name string) (*indexer.Snapshot, error)
}

// HandleChange returns a MessageHandler that rebuilds the announced
// collection, retrying failed rebuilds with backoff. Undecodable events and
// unknown collections are logged and acknowledged. When every attempt fails
// the error is returned and the event is lost: the reader has already moved
// past it, so the collection keeps its previous index until the next change
// event or a manual rebuild.
func HandleChange(engine Rebuilder) kafka.MessageHandler {
	logger := slog.Default().With("component", "change-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ChangeEvent](value)
		if err != nil {
			logger.Error("failed to decode change event", "key", string(key), "error", err)
			return nil
		}
		if event.Collection == "" {
			event.Collection = string(key)
		}
		if event.Collection == "" {
			logger.Warn("change event without collection, ignoring")
			return nil
		}

		var snap *indexer.Snapshot
		err = resilience.Retry(ctx, "reindex "+event.Collection, rebuildRetry, func(ctx context.Context) error {
			s, err := engine.Rebuild(ctx, event.Collection)
			if errors.Is(err, apperrors.ErrUnknownCollection) {
				return resilience.Permanent(err)
			}
			snap = s
			return err
		})
		if err != nil {
			if errors.Is(err, apperrors.ErrUnknownCollection) {
				logger.Warn("change event for unknown collection", "collection", event.Collection)
				return nil
			}
			return fmt.Errorf("rebuilding %s after %s: %w", event.Collection, event.Action, err)
		}
		logger.Info("collection reindexed after change",
			"collection", event.Collection,
			"action", event.Action,
			"changed_ids", len(event.IDs),
			"version", snap.Version,
		)
		return nil
	}
}
