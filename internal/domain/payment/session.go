package payment

import (
	"errors"
	"time"
)

const (
	StatusPending = "pending"
	StatusPaid    = "paid"
)

// Session tracks an external checkout intent for one contest entry. Keyed by the
// provider-issued session id, it transitions pending -> paid exactly once.
type Session struct {
	SessionID       string     `json:"sessionId"`
	UserEmail       string     `json:"userEmail"`
	ContestID       string     `json:"contestId"`
	Amount          int64      `json:"amount"`
	Status          string     `json:"status"`
	PaymentIntentID *string    `json:"paymentIntentId,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	PaidAt          *time.Time `json:"paidAt,omitempty"`
}

var ErrNotFound = errors.New("payment session not found")

type CreateCheckoutRequest struct {
	ContestID string `json:"contestId" binding:"required,uuid"`
}

type ConfirmRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
}
