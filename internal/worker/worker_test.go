package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/scoring"
)

type fakeStore struct {
	mu    sync.Mutex
	saved []*domain.Transaction
	err   error
}

func (f *fakeStore) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, tx)
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

type fakeScorer struct {
	mu     sync.Mutex
	scored []*domain.Transaction
}

func (f *fakeScorer) Score(ctx context.Context, tx *domain.Transaction) (*scoring.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scored = append(f.scored, tx)
	return &scoring.Result{Action: domain.ActionApprove, MLScore: 0.1, FinalScore: 0.1}, nil
}

func (f *fakeScorer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scored)
}

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	t.Run("StartAndStop", func(t *testing.T) {
		w := NewWorker(eventBus, &fakeStore{}, &fakeScorer{})

		if err := w.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := w.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
		}
		if len(stats.Topics) != 1 || stats.Topics[0] != domain.TopicTransactionIngested {
			t.Errorf("unexpected topics: %v", stats.Topics)
		}

		if err := w.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}

		stats = w.GetStats()
		if stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("IngestAndScore", func(t *testing.T) {
		store := &fakeStore{}
		scorer := &fakeScorer{}
		w := NewWorker(eventBus, store, scorer)
		w.Start()
		defer w.Stop()

		time.Sleep(50 * time.Millisecond)

		txMsg := TransactionMessage{
			CustomerID: "cust-001",
			MerchantID: "merch-001",
			Amount:     500.0,
			Currency:   "USD",
			Channel:    "ECOM",
			Country:    "EC",
		}

		payload, _ := json.Marshal(txMsg)
		if err := eventBus.Publish(context.Background(), domain.TopicTransactionIngested, payload); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		time.Sleep(100 * time.Millisecond)

		if store.count() != 1 {
			t.Fatalf("expected 1 saved transaction, got %d", store.count())
		}
		if scorer.count() != 1 {
			t.Fatalf("expected 1 scored transaction, got %d", scorer.count())
		}

		saved := store.saved[0]
		if saved.ID == "" {
			t.Error("expected a minted transaction id")
		}
		if saved.CustomerID != "cust-001" || saved.Country != "EC" {
			t.Errorf("transaction fields lost: %+v", saved)
		}
		if saved.OccurredAt.IsZero() {
			t.Error("expected occurred_at to be defaulted")
		}
	})

	t.Run("RejectsInvalidTransaction", func(t *testing.T) {
		store := &fakeStore{}
		scorer := &fakeScorer{}
		w := NewWorker(eventBus, store, scorer)
		w.Start()
		defer w.Stop()

		time.Sleep(50 * time.Millisecond)

		// Negative amount fails validation before any persistence.
		txMsg := TransactionMessage{
			CustomerID: "cust-001",
			Amount:     -5,
			Currency:   "USD",
			Channel:    "ECOM",
		}

		payload, _ := json.Marshal(txMsg)
		eventBus.Publish(context.Background(), domain.TopicTransactionIngested, payload)

		time.Sleep(100 * time.Millisecond)

		if store.count() != 0 {
			t.Errorf("invalid transaction must not be saved, got %d", store.count())
		}
		if scorer.count() != 0 {
			t.Errorf("invalid transaction must not be scored, got %d", scorer.count())
		}
	})

	t.Run("SkipsDuplicates", func(t *testing.T) {
		store := &fakeStore{err: domain.ErrAlreadyExists}
		scorer := &fakeScorer{}
		w := NewWorker(eventBus, store, scorer)
		w.Start()
		defer w.Stop()

		time.Sleep(50 * time.Millisecond)

		txMsg := TransactionMessage{
			TxID:       "tx-dup",
			CustomerID: "cust-001",
			Amount:     50,
			Currency:   "USD",
			Channel:    "POS",
		}

		payload, _ := json.Marshal(txMsg)
		eventBus.Publish(context.Background(), domain.TopicTransactionIngested, payload)

		time.Sleep(100 * time.Millisecond)

		if scorer.count() != 0 {
			t.Errorf("duplicate transaction must not be scored again, got %d", scorer.count())
		}
	})

	t.Run("HighLoad", func(t *testing.T) {
		store := &fakeStore{}
		scorer := &fakeScorer{}
		w := NewWorker(eventBus, store, scorer)
		w.Start()
		defer w.Stop()

		time.Sleep(50 * time.Millisecond)

		const messageCount = 50
		for i := 0; i < messageCount; i++ {
			payload, _ := json.Marshal(TransactionMessage{
				CustomerID: "cust-load",
				Amount:     10,
				Currency:   "USD",
				Channel:    "ECOM",
			})
			eventBus.Publish(context.Background(), domain.TopicTransactionIngested, payload)
		}

		deadline := time.Now().Add(5 * time.Second)
		for scorer.count() < messageCount && time.Now().Before(deadline) {
			time.Sleep(20 * time.Millisecond)
		}

		if got := scorer.count(); got != messageCount {
			t.Errorf("expected %d scored transactions, got %d", messageCount, got)
		}
	})
}

func TestTransactionMessageParsing(t *testing.T) {
	msg := TransactionMessage{
		TxID:       "tx-123",
		CustomerID: "cust-001",
		MerchantID: "merch-001",
		Amount:     1234.56,
		Currency:   "USD",
		Channel:    "POS",
		DeviceID:   "dev-9",
		IPAddress:  "10.1.2.3",
		Country:    "EC",
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var parsed TransactionMessage
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if parsed.TxID != msg.TxID || parsed.Amount != msg.Amount || parsed.Country != msg.Country {
		t.Errorf("round trip mismatch: %+v", parsed)
	}

	tx := toTransaction(&parsed)
	if tx.ID != "tx-123" {
		t.Errorf("expected supplied id to be kept, got %s", tx.ID)
	}
	if tx.Channel != domain.ChannelPOS {
		t.Errorf("expected channel POS, got %s", tx.Channel)
	}
}
