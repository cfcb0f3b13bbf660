package provider

import (
	"context"

	"github.com/google/uuid"

	"github.com/vizion-pay/vizion_core/internal/transaction"
)

// MetadataSimulate forces a simulated adapter outcome. Setting it to
// SimulateFailure makes the adapter decline; anything else approves.
const (
	MetadataSimulate = "simulate"
	SimulateFailure  = "fail"
)

// simulatedAdapter approves every operation with a synthetic reference. It
// stands in for real acquirer/bank/telco integrations the same way across all
// three built-in methods, differing only in the reference prefix.
type simulatedAdapter struct {
	prefix string
}

// NewCardAdapter returns the simulated card acquirer connector.
func NewCardAdapter() Adapter { return &simulatedAdapter{prefix: "card"} }

// NewBankTransferAdapter returns the simulated bank rails connector.
func NewBankTransferAdapter() Adapter { return &simulatedAdapter{prefix: "bank"} }

// NewMobileMoneyAdapter returns the simulated mobile money connector.
func NewMobileMoneyAdapter() Adapter { return &simulatedAdapter{prefix: "momo"} }

func (a *simulatedAdapter) ProcessPayment(ctx context.Context, req Request) (Result, error) {
	return a.execute(ctx, req)
}

func (a *simulatedAdapter) RefundPayment(ctx context.Context, req Request) (Result, error) {
	return a.execute(ctx, req)
}

func (a *simulatedAdapter) VerifyPayment(ctx context.Context, providerReference string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, &Error{Message: err.Error()}
	}
	return Result{
		Status:            transaction.StatusCompleted,
		ProviderReference: providerReference,
	}, nil
}

func (a *simulatedAdapter) execute(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, &Error{Message: err.Error()}
	}
	if req.Metadata[MetadataSimulate] == SimulateFailure {
		return Result{}, &Error{Message: a.prefix + " network declined the operation"}
	}
	return Result{
		Status:            transaction.StatusCompleted,
		TransactionID:     req.TransactionID,
		ProviderReference: a.prefix + "_" + uuid.NewString(),
	}, nil
}
