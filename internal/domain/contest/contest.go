package contest

import (
	"errors"
	"time"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// ValidStatus reports whether status is one of the three moderation states.
func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

type Contest struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Image           string     `json:"image,omitempty"`
	Description     string     `json:"description,omitempty"`
	TaskInstruction string     `json:"taskInstruction,omitempty"`
	ContestType     string     `json:"contestType,omitempty"`
	// Price and PrizeMoney are stored in the smallest currency unit (cents).
	Price            int64      `json:"price"`
	PrizeMoney       int64      `json:"prizeMoney"`
	Deadline         time.Time  `json:"deadline"`
	CreatorEmail     string     `json:"creatorEmail"`
	CreatorName      string     `json:"creatorName,omitempty"`
	Status           string     `json:"status"`
	ParticipantCount int        `json:"participantCount"`
	WinnerEmail      *string    `json:"winnerEmail,omitempty"`
	WinnerName       *string    `json:"winnerName,omitempty"`
	WinnerImage      *string    `json:"winnerImage,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

type Participant struct {
	ContestID       string     `json:"contestId"`
	Email           string     `json:"email"`
	PaymentStatus   *string    `json:"paymentStatus,omitempty"`
	PaymentIntentID *string    `json:"paymentIntentId,omitempty"`
	PaidAt          *time.Time `json:"paidAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

type Submission struct {
	ContestID   string    `json:"contestId"`
	Email       string    `json:"email"`
	Name        string    `json:"name,omitempty"`
	Image       string    `json:"image,omitempty"`
	TaskLink    string    `json:"taskLink"`
	SubmittedAt time.Time `json:"submittedAt"`
}

var ErrNotFound = errors.New("contest not found")
var ErrNotOwner = errors.New("actor does not own this contest")
var ErrNotEditable = errors.New("contest is no longer pending")
var ErrAlreadyRegistered = errors.New("already registered for this contest")
var ErrNotRegistered = errors.New("not registered for this contest")
var ErrAlreadySubmitted = errors.New("submission already exists for this contest")
var ErrWinnerNotParticipant = errors.New("winner is not a participant")

type CreateContestRequest struct {
	Title           string    `json:"title" binding:"required,min=3,max=160"`
	Image           string    `json:"image" binding:"omitempty,url"`
	Description     string    `json:"description" binding:"omitempty,max=5000"`
	TaskInstruction string    `json:"taskInstruction" binding:"omitempty,max=5000"`
	ContestType     string    `json:"contestType" binding:"omitempty,max=80"`
	Price           int64     `json:"price" binding:"omitempty,min=0"`
	PrizeMoney      int64     `json:"prizeMoney" binding:"omitempty,min=0"`
	Deadline        time.Time `json:"deadline" binding:"required"`
}

// A partial update; nil fields are left untouched.
type UpdateContestRequest struct {
	Title           *string    `json:"title" binding:"omitempty,min=3,max=160"`
	Image           *string    `json:"image" binding:"omitempty,url"`
	Description     *string    `json:"description" binding:"omitempty,max=5000"`
	TaskInstruction *string    `json:"taskInstruction" binding:"omitempty,max=5000"`
	ContestType     *string    `json:"contestType" binding:"omitempty,max=80"`
	Price           *int64     `json:"price" binding:"omitempty,min=0"`
	PrizeMoney      *int64     `json:"prizeMoney" binding:"omitempty,min=0"`
	Deadline        *time.Time `json:"deadline"`
}

type SubmitTaskRequest struct {
	TaskLink string `json:"taskLink" binding:"required,url"`
	Image    string `json:"image" binding:"omitempty,url"`
}

type DeclareWinnerRequest struct {
	WinnerEmail string `json:"winnerEmail" binding:"required,email"`
}

type SetStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending approved rejected"`
}
