// Package worker provides async transaction ingestion from the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/scoring"
)

// Scorer runs the decisioning pipeline for one transaction. Satisfied
// by scoring.Service.
type Scorer interface {
	Score(ctx context.Context, tx *domain.Transaction) (*scoring.Result, error)
}

// TransactionStore persists ingested transactions. Satisfied by
// domain.Repository.
type TransactionStore interface {
	SaveTransaction(ctx context.Context, tx *domain.Transaction) error
}

// Worker consumes ingested transactions from the EventBus and pushes
// them through the scoring pipeline.
type Worker struct {
	bus    domain.EventBus
	store  TransactionStore
	scorer Scorer

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async ingestion worker.
func NewWorker(bus domain.EventBus, store TransactionStore, scorer Scorer) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		store:  store,
		scorer: scorer,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the ingestion topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicTransactionIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("ingestion worker started", "topic", domain.TopicTransactionIngested)
	return nil
}

// TransactionMessage is the payload published on the ingestion topic.
type TransactionMessage struct {
	TxID       string  `json:"txId,omitempty"`
	CustomerID string  `json:"customerId"`
	MerchantID string  `json:"merchantId,omitempty"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	Channel    string  `json:"channel"`

	OccurredAt time.Time `json:"occurredAt,omitempty"`

	DeviceID  string `json:"deviceId,omitempty"`
	IPAddress string `json:"ipAddress,omitempty"`
	Country   string `json:"country,omitempty"`
}

// handleMessage processes one ingested transaction.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var txMsg TransactionMessage
	if err := json.Unmarshal(msg.Payload, &txMsg); err != nil {
		slog.Error("failed to parse transaction message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	tx := toTransaction(&txMsg)
	if err := tx.Validate(); err != nil {
		slog.Error("rejected invalid transaction",
			"message_id", msg.ID,
			"customer_id", txMsg.CustomerID,
			"error", err,
		)
		return err
	}

	if err := w.store.SaveTransaction(ctx, tx); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Redelivery of an already ingested transaction.
			slog.Warn("skipping duplicate transaction", "tx_id", tx.ID)
			return nil
		}
		slog.Error("failed to save transaction", "tx_id", tx.ID, "error", err)
		return err
	}

	result, err := w.scorer.Score(ctx, tx)
	if err != nil {
		slog.Error("scoring failed", "tx_id", tx.ID, "error", err)
		return err
	}

	slog.Info("transaction ingested",
		"tx_id", tx.ID,
		"customer_id", tx.CustomerID,
		"action", result.Action,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// toTransaction builds a domain transaction from the message, minting
// an ID and timestamps when the producer omitted them.
func toTransaction(msg *TransactionMessage) *domain.Transaction {
	now := time.Now().UTC()

	tx := &domain.Transaction{
		ID:         msg.TxID,
		CustomerID: msg.CustomerID,
		MerchantID: msg.MerchantID,
		Amount:     msg.Amount,
		Currency:   msg.Currency,
		Channel:    domain.Channel(msg.Channel),
		OccurredAt: msg.OccurredAt,
		CreatedAt:  now,
		DeviceID:   msg.DeviceID,
		IPAddress:  msg.IPAddress,
		Country:    msg.Country,
	}
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.OccurredAt.IsZero() {
		tx.OccurredAt = now
	}

	return tx
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("ingestion worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
