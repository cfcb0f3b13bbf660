package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vizion-pay/vizion_core/internal/ledger"
	"github.com/vizion-pay/vizion_core/internal/logging"
	"github.com/vizion-pay/vizion_core/internal/provider"
	"github.com/vizion-pay/vizion_core/internal/transaction"
	"github.com/vizion-pay/vizion_core/internal/wallet"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

type fixture struct {
	svc     *Service
	txns    transaction.Repository
	wallets wallet.Repository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	txns := transaction.NewMemoryRepository()
	wallets := wallet.NewMemoryRepository()
	led := ledger.NewInMemory(wallets, txns)

	svc := NewService(Options{
		SupportedCurrencies: []string{"XCD", "USD"},
		FeePct:              dec(t, "0.029"),
		PlatformFeePct:      dec(t, "0.005"),
		ProviderTimeout:     5 * time.Second,
	}, txns, wallets, led, provider.DefaultRouter(), nil, logging.Discard())

	return fixture{svc: svc, txns: txns, wallets: wallets}
}

func (f fixture) seedWallet(t *testing.T, ownerID, balance string, reservePct string) wallet.Wallet {
	t.Helper()
	ctx := context.Background()

	pct := decimal.Zero
	if reservePct != "" {
		pct = dec(t, reservePct)
	}
	w, err := wallet.NewService(f.wallets).Create(ctx, wallet.CreateInput{
		OwnerID:    ownerID,
		OwnerKind:  wallet.OwnerMerchant,
		ReservePct: pct,
	})
	if err != nil {
		t.Fatalf("create wallet %s: %v", ownerID, err)
	}
	if balance != "" {
		w.Balances["XCD"] = dec(t, balance)
		if err := f.wallets.Update(ctx, w); err != nil {
			t.Fatalf("seed balance %s: %v", ownerID, err)
		}
	}
	return w
}

func TestProcessPaymentHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedWallet(t, "payer", "500.00", "")
	f.seedWallet(t, "merchant", "", "0.1")

	res, err := f.svc.ProcessPayment(ctx, ProcessInput{
		Amount:        dec(t, "100.50"),
		Currency:      "XCD",
		Method:        transaction.MethodCard,
		SourceID:      "payer",
		DestinationID: "merchant",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Status != transaction.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", res.Status, res.ErrorMessage)
	}
	if res.ProviderReference == "" {
		t.Fatal("expected a provider reference")
	}

	txn, err := f.txns.Get(ctx, res.TransactionID)
	if err != nil {
		t.Fatalf("get txn: %v", err)
	}

	// 100.50 * 0.029 = 2.91, * 0.005 = 0.50, * 0.1 = 10.05 -> net 87.04.
	if !txn.Fee.Equal(dec(t, "2.91")) {
		t.Fatalf("fee: expected 2.91, got %s", txn.Fee)
	}
	if !txn.PlatformFee.Equal(dec(t, "0.50")) {
		t.Fatalf("platform fee: expected 0.50, got %s", txn.PlatformFee)
	}
	if !txn.ReserveAmount.Equal(dec(t, "10.05")) {
		t.Fatalf("reserve: expected 10.05, got %s", txn.ReserveAmount)
	}
	if !txn.NetAmount.Equal(dec(t, "87.04")) {
		t.Fatalf("net: expected 87.04, got %s", txn.NetAmount)
	}
	if txn.CompletedAt == nil {
		t.Fatal("expected completed timestamp")
	}

	merchant, _ := f.wallets.GetByOwner(ctx, "merchant")
	if got := merchant.Balance("XCD"); !got.Equal(dec(t, "87.04")) {
		t.Fatalf("merchant balance: expected 87.04, got %s", got)
	}
	if got := merchant.Reserved("XCD"); !got.Equal(dec(t, "10.05")) {
		t.Fatalf("merchant reserve: expected 10.05, got %s", got)
	}
}

func TestProcessPaymentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.ProcessPayment(ctx, ProcessInput{
		Amount:   dec(t, "-5"),
		Currency: "XCD",
		Method:   transaction.MethodCard,
	}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	if _, err := f.svc.ProcessPayment(ctx, ProcessInput{
		Amount:   dec(t, "5"),
		Currency: "GBP",
		Method:   transaction.MethodCard,
	}); !errors.Is(err, ErrInvalidCurrency) {
		t.Fatalf("expected ErrInvalidCurrency, got %v", err)
	}

	if _, err := f.svc.ProcessPayment(ctx, ProcessInput{
		Amount:   dec(t, "5"),
		Currency: "XCD",
		Method:   "crypto",
	}); !errors.Is(err, provider.ErrInvalidPaymentMethod) {
		t.Fatalf("expected ErrInvalidPaymentMethod, got %v", err)
	}

	// No transaction record exists for rejected requests.
	rows, _, err := f.txns.List(ctx, transaction.Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("validation failures must not create records, found %d", len(rows))
	}
}

func TestProcessPaymentProviderDecline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedWallet(t, "payer", "500.00", "")
	f.seedWallet(t, "merchant", "", "")

	res, err := f.svc.ProcessPayment(ctx, ProcessInput{
		Amount:        dec(t, "10.00"),
		Currency:      "XCD",
		Method:        transaction.MethodCard,
		SourceID:      "payer",
		DestinationID: "merchant",
		Metadata:      map[string]string{provider.MetadataSimulate: provider.SimulateFailure},
	})
	if err == nil {
		t.Fatal("expected provider error")
	}
	var provErr *provider.Error
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *provider.Error, got %T", err)
	}
	if res.Status != transaction.StatusFailed {
		t.Fatalf("expected failed record, got %s", res.Status)
	}

	// The failure is durable and no money moved.
	txn, getErr := f.txns.Get(ctx, res.TransactionID)
	if getErr != nil {
		t.Fatalf("get txn: %v", getErr)
	}
	if txn.Status != transaction.StatusFailed || txn.ErrorMessage == "" {
		t.Fatalf("expected persisted failure with message, got %+v", txn)
	}
	merchant, _ := f.wallets.GetByOwner(ctx, "merchant")
	if !merchant.Balance("XCD").IsZero() {
		t.Fatal("declined payment must not credit the merchant")
	}
}

func TestProcessPaymentInsufficientFundsFailsRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedWallet(t, "payer", "1.00", "")
	f.seedWallet(t, "merchant", "", "")

	res, err := f.svc.ProcessPayment(ctx, ProcessInput{
		Amount:        dec(t, "50.00"),
		Currency:      "XCD",
		Method:        transaction.MethodCard,
		SourceID:      "payer",
		DestinationID: "merchant",
	})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if res.Status != transaction.StatusFailed {
		t.Fatalf("expected failed record, got %s", res.Status)
	}

	txn, getErr := f.txns.Get(ctx, res.TransactionID)
	if getErr != nil {
		t.Fatalf("get txn: %v", getErr)
	}
	if txn.Status != transaction.StatusFailed {
		t.Fatalf("ledger rejection must fail the record, got %s", txn.Status)
	}
	if txn.CompletedAt != nil {
		t.Fatal("failed transaction must not carry a completed timestamp")
	}
}

func TestRefundFullAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedWallet(t, "payer", "500.00", "")
	f.seedWallet(t, "merchant", "200.00", "")

	charge, err := f.svc.ProcessPayment(ctx, ProcessInput{
		Amount:        dec(t, "50.25"),
		Currency:      "XCD",
		Method:        transaction.MethodCard,
		SourceID:      "payer",
		DestinationID: "merchant",
	})
	if err != nil {
		t.Fatalf("charge: %v", err)
	}

	refund, err := f.svc.RefundPayment(ctx, charge.TransactionID, nil)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refund.Status != transaction.StatusCompleted {
		t.Fatalf("expected completed refund, got %s", refund.Status)
	}

	refundTxn, err := f.txns.Get(ctx, refund.TransactionID)
	if err != nil {
		t.Fatalf("get refund: %v", err)
	}
	if refundTxn.Kind != transaction.KindRefund {
		t.Fatalf("expected refund kind, got %s", refundTxn.Kind)
	}
	if refundTxn.SourceID != "merchant" || refundTxn.DestinationID != "payer" {
		t.Fatal("refund must swap source and destination")
	}
	if !refundTxn.NetAmount.Equal(refundTxn.Amount) {
		t.Fatalf("refund must carry no fees, net=%s amount=%s", refundTxn.NetAmount, refundTxn.Amount)
	}
	if refundTxn.Metadata[transaction.MetadataOriginalTransaction] != charge.TransactionID {
		t.Fatal("refund must link back to the original transaction")
	}

	original, err := f.txns.Get(ctx, charge.TransactionID)
	if err != nil {
		t.Fatalf("get original: %v", err)
	}
	if original.Status != transaction.StatusRefunded {
		t.Fatalf("original must flip to refunded, got %s", original.Status)
	}
}

func TestRefundGating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedWallet(t, "payer", "500.00", "")
	f.seedWallet(t, "merchant", "500.00", "")

	// A failed charge cannot be refunded.
	failed, _ := f.svc.ProcessPayment(ctx, ProcessInput{
		Amount:        dec(t, "10.00"),
		Currency:      "XCD",
		Method:        transaction.MethodCard,
		SourceID:      "payer",
		DestinationID: "merchant",
		Metadata:      map[string]string{provider.MetadataSimulate: provider.SimulateFailure},
	})
	if _, err := f.svc.RefundPayment(ctx, failed.TransactionID, nil); !errors.Is(err, ErrRefundNotAllowed) {
		t.Fatalf("expected ErrRefundNotAllowed for failed charge, got %v", err)
	}

	charge, err := f.svc.ProcessPayment(ctx, ProcessInput{
		Amount:        dec(t, "20.00"),
		Currency:      "XCD",
		Method:        transaction.MethodCard,
		SourceID:      "payer",
		DestinationID: "merchant",
	})
	if err != nil {
		t.Fatalf("charge: %v", err)
	}

	over := dec(t, "25.00")
	if _, err := f.svc.RefundPayment(ctx, charge.TransactionID, &over); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for over-refund, got %v", err)
	}

	if _, err := f.svc.RefundPayment(ctx, "missing", nil); !errors.Is(err, transaction.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// First refund succeeds, second is rejected because the original is now refunded.
	if _, err := f.svc.RefundPayment(ctx, charge.TransactionID, nil); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if _, err := f.svc.RefundPayment(ctx, charge.TransactionID, nil); !errors.Is(err, ErrRefundNotAllowed) {
		t.Fatalf("expected ErrRefundNotAllowed for double refund, got %v", err)
	}
}

func TestPartialRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedWallet(t, "payer", "500.00", "")
	f.seedWallet(t, "merchant", "500.00", "")

	charge, err := f.svc.ProcessPayment(ctx, ProcessInput{
		Amount:        dec(t, "100.00"),
		Currency:      "XCD",
		Method:        transaction.MethodBankTransfer,
		SourceID:      "payer",
		DestinationID: "merchant",
	})
	if err != nil {
		t.Fatalf("charge: %v", err)
	}

	partial := dec(t, "40.00")
	refund, err := f.svc.RefundPayment(ctx, charge.TransactionID, &partial)
	if err != nil {
		t.Fatalf("partial refund: %v", err)
	}

	refundTxn, _ := f.txns.Get(ctx, refund.TransactionID)
	if !refundTxn.Amount.Equal(partial) {
		t.Fatalf("expected refund of 40.00, got %s", refundTxn.Amount)
	}

	original, _ := f.txns.Get(ctx, charge.TransactionID)
	if original.Status != transaction.StatusRefunded {
		t.Fatalf("original must flip to refunded after partial refund, got %s", original.Status)
	}
}

func TestFeeSnapshotSurvivesRateChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedWallet(t, "payer", "500.00", "")
	f.seedWallet(t, "merchant", "", "")

	first, err := f.svc.ProcessPayment(ctx, ProcessInput{
		Amount:        dec(t, "100.00"),
		Currency:      "XCD",
		Method:        transaction.MethodCard,
		SourceID:      "payer",
		DestinationID: "merchant",
	})
	if err != nil {
		t.Fatalf("first charge: %v", err)
	}
	firstTxn, _ := f.txns.Get(ctx, first.TransactionID)

	// A new service with doubled rates stands in for a rate change. The
	// existing record keeps its original split.
	raised := NewService(Options{
		SupportedCurrencies: []string{"XCD"},
		FeePct:              dec(t, "0.058"),
		PlatformFeePct:      dec(t, "0.01"),
		ProviderTimeout:     5 * time.Second,
	}, f.txns, f.wallets, ledger.NewInMemory(f.wallets, f.txns), provider.DefaultRouter(), nil, logging.Discard())

	second, err := raised.ProcessPayment(ctx, ProcessInput{
		Amount:        dec(t, "100.00"),
		Currency:      "XCD",
		Method:        transaction.MethodCard,
		SourceID:      "payer",
		DestinationID: "merchant",
	})
	if err != nil {
		t.Fatalf("second charge: %v", err)
	}
	secondTxn, _ := f.txns.Get(ctx, second.TransactionID)

	if !firstTxn.Fee.Equal(dec(t, "2.90")) {
		t.Fatalf("first fee: expected 2.90, got %s", firstTxn.Fee)
	}
	if !secondTxn.Fee.Equal(dec(t, "5.80")) {
		t.Fatalf("second fee: expected 5.80, got %s", secondTxn.Fee)
	}
	// Re-reading the first record after the change shows the old split.
	reread, _ := f.txns.Get(ctx, first.TransactionID)
	if !reread.Fee.Equal(dec(t, "2.90")) {
		t.Fatalf("historical fee drifted to %s", reread.Fee)
	}
}

func TestVerifyUnknownTransaction(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Verify(context.Background(), "missing"); !errors.Is(err, transaction.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUnsupportedKindRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedWallet(t, "payer", "100.00", "")
	f.seedWallet(t, "merchant", "", "")

	_, err := f.svc.ProcessPayment(ctx, ProcessInput{
		Amount:        dec(t, "10.00"),
		Currency:      "XCD",
		Method:        transaction.MethodCard,
		Kind:          transaction.KindRefund,
		SourceID:      "payer",
		DestinationID: "merchant",
	})
	if err == nil {
		t.Fatal("refund kind must go through RefundPayment, not ProcessPayment")
	}
}
