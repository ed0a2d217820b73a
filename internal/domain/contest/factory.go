package contest

import (
	"time"

	"github.com/google/uuid"
)

// NewFromCreateRequest builds a pending Contest from the incoming DTO. Creator
// identity always comes from the verified principal, never from the payload.
func NewFromCreateRequest(req CreateContestRequest, creatorEmail, creatorName string) Contest {
	now := time.Now().UTC()

	return Contest{
		ID:              uuid.NewString(),
		Title:           req.Title,
		Image:           req.Image,
		Description:     req.Description,
		TaskInstruction: req.TaskInstruction,
		ContestType:     req.ContestType,
		Price:           req.Price,
		PrizeMoney:      req.PrizeMoney,
		Deadline:        req.Deadline,
		CreatorEmail:    creatorEmail,
		CreatorName:     creatorName,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
