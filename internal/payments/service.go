package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vizion-pay/vizion_core/internal/ledger"
	"github.com/vizion-pay/vizion_core/internal/provider"
	"github.com/vizion-pay/vizion_core/internal/transaction"
	"github.com/vizion-pay/vizion_core/internal/wallet"
	"github.com/vizion-pay/vizion_core/internal/webhook"
)

var (
	// ErrInvalidAmount occurs when the requested amount is not positive, or a
	// refund exceeds the original charge.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidCurrency occurs when the currency is not supported.
	ErrInvalidCurrency = errors.New("invalid currency")

	// ErrRefundNotAllowed occurs when the original transaction is not in
	// completed status. Rejected before any side effect.
	ErrRefundNotAllowed = errors.New("refund not allowed")
)

// Options carries the rates and limits in force when the service is built.
// Transactions snapshot the rates at creation; changing Options later never
// alters existing records.
type Options struct {
	SupportedCurrencies []string
	FeePct              decimal.Decimal
	PlatformFeePct      decimal.Decimal
	ProviderTimeout     time.Duration
}

// Service is the transaction orchestrator. It creates transaction records,
// drives them through the state machine, delegates execution to the provider
// router, applies the ledger on completion and notifies subscribers.
type Service struct {
	opts       Options
	txns       transaction.Repository
	wallets    wallet.Repository
	ledger     ledger.Ledger
	router     *provider.Router
	dispatcher *webhook.Dispatcher
	logger     *slog.Logger
}

// NewService constructs the orchestrator.
func NewService(opts Options, txns transaction.Repository, wallets wallet.Repository, led ledger.Ledger, router *provider.Router, dispatcher *webhook.Dispatcher, logger *slog.Logger) *Service {
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = 30 * time.Second
	}
	return &Service{
		opts:       opts,
		txns:       txns,
		wallets:    wallets,
		ledger:     led,
		router:     router,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// ProcessInput captures a payment request. Kind defaults to charge; the
// withdrawal flow sets it to payout and wallet-to-wallet moves to transfer.
type ProcessInput struct {
	Amount        decimal.Decimal
	Currency      string
	Method        transaction.Method
	Kind          transaction.Kind
	SourceID      string
	DestinationID string
	Metadata      map[string]string
}

// Result describes the outcome of a payment or refund.
type Result struct {
	TransactionID     string
	Status            transaction.Status
	ProviderReference string
	ErrorMessage      string
	Metadata          map[string]string
}

// ProcessPayment validates the request, runs the transaction through the
// state machine and the routed adapter, and applies the ledger on completion.
func (s *Service) ProcessPayment(ctx context.Context, input ProcessInput) (Result, error) {
	if !input.Amount.IsPositive() {
		return Result{}, ErrInvalidAmount
	}
	if !s.supportedCurrency(input.Currency) {
		return Result{}, ErrInvalidCurrency
	}
	adapter, err := s.router.Route(input.Method)
	if err != nil {
		return Result{}, err
	}

	// The destination wallet's reserve percentage feeds the amount split, so
	// it must exist before anything is persisted.
	dest, err := s.wallets.GetByOwner(ctx, input.DestinationID)
	if err != nil {
		return Result{}, err
	}

	kind := input.Kind
	if kind == "" {
		kind = transaction.KindCharge
	}
	// Refunds have their own entry point; everything else ValidKind accepts
	// flows through here.
	if kind == transaction.KindRefund || !transaction.ValidKind(kind) {
		return Result{}, fmt.Errorf("unsupported transaction kind %q", kind)
	}
	txn := s.newTransaction(kind, input, dest.ReservePct)
	if err := s.txns.Create(ctx, txn); err != nil {
		return Result{}, err
	}

	return s.drive(ctx, txn, adapter.ProcessPayment)
}

// RefundPayment reverses a completed charge, fully or partially. The refund
// is its own transaction with source and destination swapped; the original
// flips to refunded only once the refund completes.
func (s *Service) RefundPayment(ctx context.Context, transactionID string, amount *decimal.Decimal) (Result, error) {
	original, err := s.txns.Get(ctx, transactionID)
	if err != nil {
		return Result{}, err
	}
	if original.Status != transaction.StatusCompleted {
		return Result{}, ErrRefundNotAllowed
	}

	refundAmount := original.Amount
	if amount != nil {
		refundAmount = *amount
	}
	if !refundAmount.IsPositive() || refundAmount.GreaterThan(original.Amount) {
		return Result{}, ErrInvalidAmount
	}

	adapter, err := s.router.Route(original.Method)
	if err != nil {
		return Result{}, err
	}

	now := time.Now().UTC()
	refund := transaction.Transaction{
		ID:            uuid.NewString(),
		Amount:        refundAmount,
		Currency:      original.Currency,
		Kind:          transaction.KindRefund,
		Status:        transaction.StatusPending,
		Method:        original.Method,
		SourceID:      original.DestinationID,
		DestinationID: original.SourceID,
		// Refunds carry no fee or reserve; the full amount moves back.
		Fee:           decimal.Zero,
		PlatformFee:   decimal.Zero,
		ReserveAmount: decimal.Zero,
		NetAmount:     refundAmount,
		Metadata: map[string]string{
			transaction.MetadataOriginalTransaction: original.ID,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.txns.Create(ctx, refund); err != nil {
		return Result{}, err
	}

	result, err := s.drive(ctx, refund, adapter.RefundPayment)
	if err != nil {
		return result, err
	}

	if result.Status == transaction.StatusCompleted {
		if flipErr := original.Transition(transaction.StatusRefunded); flipErr == nil {
			if updateErr := s.txns.Update(ctx, original); updateErr != nil {
				s.logger.Error("refund status flip persist failed",
					"transaction_id", original.ID, "error", updateErr)
			}
		}
	}
	return result, nil
}

// Verify asks the responsible adapter for the current provider-side state of
// a transaction.
func (s *Service) Verify(ctx context.Context, transactionID string) (provider.Result, error) {
	txn, err := s.txns.Get(ctx, transactionID)
	if err != nil {
		return provider.Result{}, err
	}
	adapter, err := s.router.Route(txn.Method)
	if err != nil {
		return provider.Result{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
	defer cancel()
	return adapter.VerifyPayment(ctx, txn.ProviderReference)
}

// ListTransactions exposes filtered, creation-ordered transaction queries.
func (s *Service) ListTransactions(ctx context.Context, filter transaction.Filter) ([]transaction.Transaction, bool, error) {
	return s.txns.List(ctx, filter)
}

// GetTransaction returns a single transaction record.
func (s *Service) GetTransaction(ctx context.Context, id string) (transaction.Transaction, error) {
	return s.txns.Get(ctx, id)
}

type adapterCall func(ctx context.Context, req provider.Request) (provider.Result, error)

// drive moves a pending transaction through processing to a terminal state.
// A webhook describing the outcome fires regardless of success or failure.
func (s *Service) drive(ctx context.Context, txn transaction.Transaction, call adapterCall) (Result, error) {
	if err := txn.Transition(transaction.StatusProcessing); err != nil {
		return Result{}, err
	}
	if err := s.txns.Update(ctx, txn); err != nil {
		return Result{}, err
	}

	// A stuck network call must not leave the transaction in processing
	// forever; the deadline turns it into a failure.
	callCtx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
	defer cancel()

	res, err := call(callCtx, provider.Request{
		TransactionID: txn.ID,
		Amount:        txn.Amount,
		Currency:      txn.Currency,
		SourceID:      txn.SourceID,
		DestinationID: txn.DestinationID,
		Metadata:      txn.Metadata,
	})
	if err != nil {
		s.fail(ctx, &txn, err.Error())
		return resultFrom(txn), err
	}

	mergeMetadata(&txn, res.Metadata)
	txn.ProviderReference = res.ProviderReference
	txn.ErrorMessage = res.ErrorMessage

	if res.Status != transaction.StatusCompleted {
		s.fail(ctx, &txn, res.ErrorMessage)
		return resultFrom(txn), nil
	}

	processing := txn
	if err := txn.Transition(transaction.StatusCompleted); err != nil {
		return Result{}, err
	}
	if err := s.ledger.ApplyCompleted(ctx, txn); err != nil {
		// The completion never became durable; the record fails instead.
		txn = processing
		s.fail(ctx, &txn, err.Error())
		return resultFrom(txn), err
	}

	s.logger.Info("transaction completed",
		"transaction_id", txn.ID,
		"kind", string(txn.Kind),
		"amount", txn.Amount.String(),
		"currency", txn.Currency)
	s.notify(ctx, txn)
	return resultFrom(txn), nil
}

// fail marks the transaction failed, persists it best-effort and notifies.
func (s *Service) fail(ctx context.Context, txn *transaction.Transaction, message string) {
	txn.ErrorMessage = message
	if err := txn.Transition(transaction.StatusFailed); err != nil {
		s.logger.Error("failure transition rejected", "transaction_id", txn.ID, "error", err)
		return
	}
	if err := s.txns.Update(ctx, *txn); err != nil {
		s.logger.Error("failure persist failed", "transaction_id", txn.ID, "error", err)
	}
	s.notify(ctx, *txn)
}

// notify picks the taxonomy event for the outcome and dispatches it to the
// merchant side of the movement. Delivery never blocks the payment response.
func (s *Service) notify(ctx context.Context, txn transaction.Transaction) {
	if s.dispatcher == nil {
		return
	}

	var event webhook.Event
	succeeded := txn.Status == transaction.StatusCompleted
	if txn.Kind == transaction.KindRefund {
		event = webhook.EventRefundProcessed
		if !succeeded {
			event = webhook.EventRefundFailed
		}
	} else {
		event = webhook.EventPaymentSucceeded
		if !succeeded {
			event = webhook.EventPaymentFailed
		}
	}

	businessID := txn.DestinationID
	if txn.Kind == transaction.KindRefund {
		businessID = txn.SourceID
	}
	s.dispatcher.Dispatch(ctx, event, businessID, txn)
}

// newTransaction splits the amount with the rates in force right now. The
// split is never recomputed.
func (s *Service) newTransaction(kind transaction.Kind, input ProcessInput, reservePct decimal.Decimal) transaction.Transaction {
	fee := input.Amount.Mul(s.opts.FeePct).Round(2)
	platformFee := input.Amount.Mul(s.opts.PlatformFeePct).Round(2)
	reserve := input.Amount.Mul(reservePct).Round(2)
	net := input.Amount.Sub(fee).Sub(platformFee).Sub(reserve)

	now := time.Now().UTC()
	meta := make(map[string]string, len(input.Metadata))
	for k, v := range input.Metadata {
		meta[k] = v
	}
	return transaction.Transaction{
		ID:            uuid.NewString(),
		Amount:        input.Amount,
		Currency:      input.Currency,
		Kind:          kind,
		Status:        transaction.StatusPending,
		Method:        input.Method,
		SourceID:      input.SourceID,
		DestinationID: input.DestinationID,
		Fee:           fee,
		PlatformFee:   platformFee,
		ReserveAmount: reserve,
		NetAmount:     net,
		Metadata:      meta,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (s *Service) supportedCurrency(code string) bool {
	for _, cur := range s.opts.SupportedCurrencies {
		if cur == code {
			return true
		}
	}
	return false
}

func mergeMetadata(txn *transaction.Transaction, extra map[string]string) {
	if len(extra) == 0 {
		return
	}
	if txn.Metadata == nil {
		txn.Metadata = map[string]string{}
	}
	for k, v := range extra {
		txn.Metadata[k] = v
	}
}

func resultFrom(txn transaction.Transaction) Result {
	return Result{
		TransactionID:     txn.ID,
		Status:            txn.Status,
		ProviderReference: txn.ProviderReference,
		ErrorMessage:      txn.ErrorMessage,
		Metadata:          txn.Metadata,
	}
}
