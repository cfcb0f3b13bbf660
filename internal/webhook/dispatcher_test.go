package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vizion-pay/vizion_core/internal/logging"
	"github.com/vizion-pay/vizion_core/internal/transaction"
)

func sampleTxn() transaction.Transaction {
	now := time.Now().UTC()
	return transaction.Transaction{
		ID:            "txn-1",
		Amount:        decimal.RequireFromString("100.50"),
		Currency:      "XCD",
		Kind:          transaction.KindCharge,
		Status:        transaction.StatusCompleted,
		Method:        transaction.MethodCard,
		SourceID:      "payer",
		DestinationID: "merchant",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func registerEndpoint(t *testing.T, repo Repository, businessID, url string, events []string) Endpoint {
	t.Helper()
	endpoint := Endpoint{
		ID:         "ep-1",
		BusinessID: businessID,
		URL:        url,
		Secret:     "whsec_test",
		Events:     events,
		CreatedAt:  time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), endpoint); err != nil {
		t.Fatalf("create endpoint: %v", err)
	}
	return endpoint
}

func TestDispatchDeliversSignedPayload(t *testing.T) {
	type received struct {
		signature string
		event     string
		body      []byte
	}
	got := make(chan received, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- received{
			signature: r.Header.Get("X-Vizion-Signature"),
			event:     r.Header.Get("X-Vizion-Event"),
			body:      body,
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	repo := NewMemoryRepository()
	endpoint := registerEndpoint(t, repo, "merchant", srv.URL, nil)

	d := NewDispatcher(repo, logging.Discard(), 2*time.Second, 3, 10*time.Millisecond)
	d.Dispatch(context.Background(), EventPaymentSucceeded, "merchant", sampleTxn())
	d.Wait()

	select {
	case r := <-got:
		if r.event != "payment.succeeded" {
			t.Fatalf("expected event header payment.succeeded, got %q", r.event)
		}
		if !VerifySignature(r.body, r.signature, endpoint.Secret) {
			t.Fatal("delivered payload signature did not verify")
		}

		var payload Payload
		if err := json.Unmarshal(r.body, &payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload.TransactionID != "txn-1" || payload.Amount != "100.50" {
			t.Fatalf("unexpected payload: %+v", payload)
		}
		if payload.Event != "payment.succeeded" {
			t.Fatalf("payload event mismatch: %q", payload.Event)
		}
	default:
		t.Fatal("no delivery received")
	}
}

func TestPayloadAmountKeepsCurrencyScale(t *testing.T) {
	cases := map[string]string{
		"100.50": "100.50",
		"100.5":  "100.50",
		"100":    "100.00",
		"0.1":    "0.10",
	}
	for in, want := range cases {
		txn := sampleTxn()
		txn.Amount = decimal.RequireFromString(in)
		payload := buildPayload(EventPaymentSucceeded, txn)
		if payload.Amount != want {
			t.Fatalf("amount %s rendered as %q, want %q", in, payload.Amount, want)
		}
	}
}

func TestDispatchRetriesUntilSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	repo := NewMemoryRepository()
	registerEndpoint(t, repo, "merchant", srv.URL, nil)

	d := NewDispatcher(repo, logging.Discard(), 2*time.Second, 3, time.Millisecond)
	d.Dispatch(context.Background(), EventPaymentSucceeded, "merchant", sampleTxn())
	d.Wait()

	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
}

func TestDispatchGivesUpAfterAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	repo := NewMemoryRepository()
	registerEndpoint(t, repo, "merchant", srv.URL, nil)

	d := NewDispatcher(repo, logging.Discard(), 2*time.Second, 3, time.Millisecond)
	d.Dispatch(context.Background(), EventPaymentSucceeded, "merchant", sampleTxn())
	d.Wait()

	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", n)
	}
}

func TestDispatchSkipsUnsubscribedEvent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	repo := NewMemoryRepository()
	registerEndpoint(t, repo, "merchant", srv.URL, []string{"refund.processed"})

	d := NewDispatcher(repo, logging.Discard(), 2*time.Second, 3, time.Millisecond)
	d.Dispatch(context.Background(), EventPaymentSucceeded, "merchant", sampleTxn())
	d.Wait()

	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Fatalf("unsubscribed event must not be delivered, got %d calls", n)
	}
}

func TestDispatchNoEndpointIsSilent(t *testing.T) {
	repo := NewMemoryRepository()
	d := NewDispatcher(repo, logging.Discard(), time.Second, 1, time.Millisecond)

	// Must not panic or block.
	d.Dispatch(context.Background(), EventPaymentSucceeded, "nobody", sampleTxn())
	d.Wait()
}
