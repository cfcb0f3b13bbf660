package provider

import (
	"errors"

	"github.com/vizion-pay/vizion_core/internal/transaction"
)

// ErrInvalidPaymentMethod occurs when no adapter is registered for a method.
// The router fails closed.
var ErrInvalidPaymentMethod = errors.New("invalid payment method")

// Router maps payment methods to the adapter responsible for them. The table
// is populated at startup and read-only afterwards.
type Router struct {
	adapters map[transaction.Method]Adapter
}

// NewRouter constructs an empty router.
func NewRouter() *Router {
	return &Router{adapters: make(map[transaction.Method]Adapter)}
}

// Register binds a payment method to an adapter.
func (r *Router) Register(method transaction.Method, adapter Adapter) {
	r.adapters[method] = adapter
}

// Route returns the adapter for the method.
func (r *Router) Route(method transaction.Method) (Adapter, error) {
	adapter, ok := r.adapters[method]
	if !ok {
		return nil, ErrInvalidPaymentMethod
	}
	return adapter, nil
}

// DefaultRouter wires the built-in simulated adapters for every supported
// method.
func DefaultRouter() *Router {
	r := NewRouter()
	r.Register(transaction.MethodCard, NewCardAdapter())
	r.Register(transaction.MethodBankTransfer, NewBankTransferAdapter())
	r.Register(transaction.MethodMobileMoney, NewMobileMoneyAdapter())
	return r
}
