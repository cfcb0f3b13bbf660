package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/vizion-pay/vizion_core/internal/transaction"
)

// Event names the taxonomy delivered to subscribers.
type Event string

const (
	EventPaymentSucceeded Event = "payment.succeeded"
	EventPaymentFailed    Event = "payment.failed"
	EventRefundProcessed  Event = "refund.processed"
	EventRefundFailed     Event = "refund.failed"
	EventDisputeCreated   Event = "dispute.created"
	EventDisputeResolved  Event = "dispute.resolved"
)

const (
	headerSignature = "X-Vizion-Signature"
	headerEvent     = "X-Vizion-Event"
)

// Payload is the canonical body posted to subscriber endpoints. Amount is a
// decimal-as-string to avoid floating point drift on the receiving side.
type Payload struct {
	Event             string            `json:"event"`
	Timestamp         time.Time         `json:"timestamp"`
	TransactionID     string            `json:"transaction_id"`
	Amount            string            `json:"amount"`
	Currency          string            `json:"currency"`
	Status            string            `json:"status"`
	Type              string            `json:"type"`
	Method            string            `json:"method"`
	SourceID          string            `json:"source_id"`
	DestinationID     string            `json:"destination_id"`
	ProviderReference string            `json:"provider_reference"`
	ErrorMessage      string            `json:"error_message"`
	Metadata          map[string]string `json:"metadata"`
}

// Dispatcher signs event payloads and posts them to registered endpoints.
// Delivery is fire-and-forget for the caller: each dispatch runs on its own
// goroutine and a terminal delivery failure is logged, never surfaced.
type Dispatcher struct {
	endpoints Repository
	client    *http.Client
	logger    *slog.Logger
	attempts  int
	backoff   time.Duration
	wg        sync.WaitGroup
}

// NewDispatcher constructs a dispatcher with the given retry policy.
func NewDispatcher(endpoints Repository, logger *slog.Logger, timeout time.Duration, attempts int, backoff time.Duration) *Dispatcher {
	if attempts < 1 {
		attempts = 1
	}
	return &Dispatcher{
		endpoints: endpoints,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
		attempts:  attempts,
		backoff:   backoff,
	}
}

// Dispatch delivers the event describing the transaction to the business's
// endpoint asynchronously. A business without an endpoint, or one not
// subscribed to the event, is skipped silently.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event, businessID string, txn transaction.Transaction) {
	endpoint, err := d.endpoints.GetByBusiness(ctx, businessID)
	if err != nil {
		if !errors.Is(err, ErrEndpointNotFound) {
			d.logger.Error("webhook endpoint lookup failed", "business_id", businessID, "error", err)
		}
		return
	}
	if !endpoint.SubscribedTo(event) {
		return
	}

	payload := buildPayload(event, txn)
	body, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("webhook payload encode failed", "event", string(event), "error", err)
		return
	}
	signature := Sign(body, endpoint.Secret)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.deliver(endpoint, event, body, signature); err != nil {
			d.logger.Error("webhook delivery abandoned",
				"event", string(event),
				"business_id", businessID,
				"transaction_id", txn.ID,
				"url", endpoint.URL,
				"error", err)
		}
	}()
}

// Wait blocks until every in-flight delivery finishes. Used by tests and
// graceful shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(endpoint Endpoint, event Event, body []byte, signature string) error {
	backoff := d.backoff
	var lastErr error

	for attempt := 1; attempt <= d.attempts; attempt++ {
		if attempt > 1 {
			time.Sleep(backoff)
			backoff *= 2
		}

		req, err := http.NewRequest(http.MethodPost, endpoint.URL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(headerSignature, signature)
		req.Header.Set(headerEvent, string(event))

		resp, err := d.client.Do(req)
		if err != nil {
			lastErr = err
			d.logger.Warn("webhook attempt failed", "event", string(event), "attempt", attempt, "error", err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			d.logger.Info("webhook delivered", "event", string(event), "url", endpoint.URL, "attempt", attempt)
			return nil
		}
		lastErr = fmt.Errorf("endpoint returned status %d", resp.StatusCode)
		d.logger.Warn("webhook attempt rejected", "event", string(event), "attempt", attempt, "status", resp.StatusCode)
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrDeliveryFailed, d.attempts, lastErr)
}

func buildPayload(event Event, txn transaction.Transaction) Payload {
	meta := txn.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	return Payload{
		Event:             string(event),
		Timestamp:         time.Now().UTC(),
		TransactionID:     txn.ID,
		// Two decimal places always; String() would drop trailing zeros
		// and turn 100.50 into "100.5" on the wire.
		Amount:            txn.Amount.StringFixed(2),
		Currency:          txn.Currency,
		Status:            string(txn.Status),
		Type:              string(txn.Kind),
		Method:            string(txn.Method),
		SourceID:          txn.SourceID,
		DestinationID:     txn.DestinationID,
		ProviderReference: txn.ProviderReference,
		ErrorMessage:      txn.ErrorMessage,
		Metadata:          meta,
	}
}
