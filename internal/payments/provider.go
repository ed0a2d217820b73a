package payments

import (
	"context"
	"errors"
)

// CheckoutSession is the provider-side view of an intent-to-pay. ID is the key
// the PaymentSession record is stored under.
type CheckoutSession struct {
	ID              string `json:"id"`
	URL             string `json:"url"`
	PaymentIntentID string `json:"paymentIntentId"`
	AmountDue       int64  `json:"amountDue"`
	Paid            bool   `json:"paid"`
}

type CreateSessionRequest struct {
	Amount      int64
	Currency    string
	Description string
	// reconciliation keys carried through the provider round-trip
	ContestID  string
	UserEmail  string
	SuccessURL string
	CancelURL  string
}

var ErrSessionNotFound = errors.New("checkout session not found")

// Provider is the hosted-checkout gateway. The platform never sees card data;
// it creates a session, redirects the user, and later asks the provider
// whether the session was paid.
type Provider interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (CheckoutSession, error)
	GetSession(ctx context.Context, id string) (CheckoutSession, error)
}
