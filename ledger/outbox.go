/*
outbox.go - Durable event propagation for transaction_created

PURPOSE:
  Decouples event publishing from the synchronous write path without
  losing events. The applier writes an outbox row in the same storage
  transaction as the ledger append; the Relay reads unpublished rows and
  hands them to the transport. Delivery is at-least-once: a crash between
  publish and MarkPublished redelivers, so consumers dedupe by
  transaction id.

RELAY:
  Background goroutine with a ticker and a stop channel. Publish failures
  are logged and retried on the next tick; they never affect the
  already-committed transaction.

SEE ALSO:
  - applier.go: writes outbox rows inside WithTx
  - store.go: OutboxStore interface
*/
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TopicTransactionCreated is the only topic the core emits.
const TopicTransactionCreated = "transaction_created"

type OutboxID string

func NewOutboxID() OutboxID { return OutboxID(uuid.NewString()) }

// TransactionCreated is the event payload contract. External
// materializers consume exactly this shape.
type TransactionCreated struct {
	UserID        UserID          `json:"userId"`
	TransactionID TransactionID   `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Type          TransactionType `json:"type"`
	AccountID     AccountID       `json:"accountId,omitempty"`
	CategoryID    CategoryID      `json:"categoryId,omitempty"`
}

// OutboxRecord is one durable, to-be-published event.
type OutboxRecord struct {
	ID          OutboxID
	Topic       string
	Payload     []byte
	CreatedAt   time.Time
	PublishedAt *time.Time // nil until the relay hands it to the transport
}

// NewOutboxRecord wraps a payload for the transaction_created topic.
func NewOutboxRecord(event TransactionCreated) *OutboxRecord {
	payload, _ := json.Marshal(event)
	return &OutboxRecord{
		ID:        NewOutboxID(),
		Topic:     TopicTransactionCreated,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

// =============================================================================
// PUBLISHER - The outbound transport contract
// =============================================================================

// Publisher hands an event to the external durable transport. The
// transport owns persistence and redelivery from here on.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, topic string, payload []byte) error

func (f PublisherFunc) Publish(ctx context.Context, topic string, payload []byte) error {
	return f(ctx, topic, payload)
}

// =============================================================================
// RELAY - Background outbox drain
// =============================================================================

// Relay polls the outbox and publishes pending records.
type Relay struct {
	Store     OutboxStore
	Publisher Publisher
	Interval  time.Duration
	BatchSize int
	Logger    *slog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewRelay(store OutboxStore, publisher Publisher, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		Store:     store,
		Publisher: publisher,
		Interval:  time.Second,
		BatchSize: 100,
		Logger:    logger,
		stop:      make(chan struct{}),
	}
}

// Start begins draining the outbox in the background.
func (r *Relay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ticker = time.NewTicker(r.Interval)
	r.wg.Add(1)
	go r.run()

	r.Logger.Info("outbox relay started", "interval", r.Interval)
}

// Stop drains one final time and waits for the relay goroutine to exit.
func (r *Relay) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ticker != nil {
		r.ticker.Stop()
		close(r.stop)
		r.wg.Wait()
		r.Logger.Info("outbox relay stopped")
	}
}

func (r *Relay) run() {
	defer r.wg.Done()

	// Drain immediately on start to clear anything left by a previous run.
	r.Drain(context.Background())

	for {
		select {
		case <-r.ticker.C:
			r.Drain(context.Background())
		case <-r.stop:
			r.Drain(context.Background())
			return
		}
	}
}

// Drain publishes one batch of pending records. Failed records stay
// queued for the next pass; a record is only marked published after the
// transport accepts it, so duplicates are possible but loss is not.
func (r *Relay) Drain(ctx context.Context) {
	records, err := r.Store.UnpublishedOutbox(ctx, r.BatchSize)
	if err != nil {
		r.Logger.Error("outbox read failed", "error", err)
		return
	}

	for _, rec := range records {
		if err := r.Publisher.Publish(ctx, rec.Topic, rec.Payload); err != nil {
			r.Logger.Warn("publish failed, will retry", "outbox_id", rec.ID, "error", err)
			continue
		}
		if err := r.Store.MarkPublished(ctx, rec.ID, time.Now().UTC()); err != nil {
			r.Logger.Error("mark published failed", "outbox_id", rec.ID, "error", err)
		}
	}
}

// =============================================================================
// CONSUMER - Idempotent application of transaction_created events
// =============================================================================

// EventHandler applies one transaction_created event to a read model.
// Returning an error signals the transport to requeue.
type EventHandler func(ctx context.Context, event TransactionCreated) error

// Consumer wraps an EventHandler with dedupe-by-transaction-id, the
// idempotency the at-least-once channel requires. Ack only after Handle
// returns nil; nack and requeue otherwise.
type Consumer struct {
	Handler EventHandler

	mu   sync.Mutex
	seen map[TransactionID]bool
}

func NewConsumer(handler EventHandler) *Consumer {
	return &Consumer{Handler: handler, seen: make(map[TransactionID]bool)}
}

// Handle decodes and applies one delivery. Redeliveries of an already
// applied transaction are acknowledged without reapplying.
func (c *Consumer) Handle(ctx context.Context, payload []byte) error {
	var event TransactionCreated
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decode transaction_created: %w", err)
	}

	c.mu.Lock()
	if c.seen[event.TransactionID] {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.Handler(ctx, event); err != nil {
		return err
	}

	c.mu.Lock()
	c.seen[event.TransactionID] = true
	c.mu.Unlock()
	return nil
}
