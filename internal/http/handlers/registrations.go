package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/artify/contesthub/internal/cache"
	"github.com/artify/contesthub/internal/config"
	"github.com/artify/contesthub/internal/domain/contest"
	"github.com/artify/contesthub/internal/domain/user"
	"github.com/artify/contesthub/internal/http/middlewares"
	"github.com/artify/contesthub/internal/utils"
	"github.com/gin-gonic/gin"
)

type RegistrationEngine interface {
	Register(ctx context.Context, contestID, email string) (contest.Participant, error)
	SubmitTask(ctx context.Context, contestID, email, name, image, taskLink string) (contest.Submission, error)
	DeclareWinner(ctx context.Context, contestID, creatorEmail, winnerEmail string) (contest.Contest, error)
	ListSubmissions(ctx context.Context, contestID string) ([]contest.Submission, error)
	ListParticipants(ctx context.Context, contestID string) ([]contest.Participant, error)
	ListParticipatedFor(ctx context.Context, email string) ([]contest.Contest, error)
	ListWonFor(ctx context.Context, email string) ([]contest.Contest, error)
}

type ContestReader interface {
	GetByID(ctx context.Context, id string) (contest.Contest, error)
}

type RegistrationsHandler struct {
	repo     RegistrationEngine
	contests ContestReader
	roles    middlewares.RoleReader
	popular  *cache.RedisCache // nil when redis is not configured
}

func NewRegistrationsHandler(repo RegistrationEngine, contests ContestReader, roles middlewares.RoleReader, popular *cache.RedisCache) *RegistrationsHandler {
	return &RegistrationsHandler{
		repo:     repo,
		contests: contests,
		roles:    roles,
		popular:  popular,
	}
}

// Register admits the principal to the contest. Duplicate registration is a
// conflict regardless of interleaving; the append is conditional at the store.
func (h *RegistrationsHandler) Register(ctx *gin.Context) {
	contestID := ctx.Param("id")

	if !utils.IsUUID(contestID) {
		RespondBadRequest(ctx, "contest id must be a valid UUID", nil)
		return
	}

	principal, ok := middlewares.PrincipalFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	p, err := h.repo.Register(cctx, contestID, principal.Email)

	if err != nil {
		switch {
		case errors.Is(err, contest.ErrNotFound):
			RespondNotFound(ctx, "Contest not found")
		case errors.Is(err, contest.ErrAlreadyRegistered):
			RespondConflict(ctx, "already_registered", "You are already registered for this contest")
		default:
			RespondInternal(ctx, "Could not register for contest")
		}
		return
	}

	if h.popular != nil {
		// ranking depends on participant counts
		_ = h.popular.Delete(cctx, popularCacheKey)
	}

	ctx.JSON(http.StatusCreated, p)
}

// SubmitTask records the principal's single deliverable for a contest.
func (h *RegistrationsHandler) SubmitTask(ctx *gin.Context) {
	contestID := ctx.Param("id")

	if !utils.IsUUID(contestID) {
		RespondBadRequest(ctx, "contest id must be a valid UUID", nil)
		return
	}

	principal, ok := middlewares.PrincipalFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	var req contest.SubmitTaskRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	sub, err := h.repo.SubmitTask(cctx, contestID, principal.Email, principal.Name, req.Image, req.TaskLink)

	if err != nil {
		switch {
		case errors.Is(err, contest.ErrNotFound):
			RespondNotFound(ctx, "Contest not found")
		case errors.Is(err, contest.ErrNotRegistered):
			RespondForbidden(ctx, "Register for the contest before submitting")
		case errors.Is(err, contest.ErrAlreadySubmitted):
			RespondConflict(ctx, "already_submitted", "You have already submitted for this contest")
		default:
			RespondInternal(ctx, "Could not submit task")
		}
		return
	}

	ctx.JSON(http.StatusCreated, sub)
}

// DeclareWinner is restricted to the contest's creator, and the winner must be
// a registered participant. Contest status is untouched.
func (h *RegistrationsHandler) DeclareWinner(ctx *gin.Context) {
	contestID := ctx.Param("id")

	if !utils.IsUUID(contestID) {
		RespondBadRequest(ctx, "contest id must be a valid UUID", nil)
		return
	}

	principal, ok := middlewares.PrincipalFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	var req contest.DeclareWinnerRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	updated, err := h.repo.DeclareWinner(cctx, contestID, principal.Email, req.WinnerEmail)

	if err != nil {
		switch {
		case errors.Is(err, contest.ErrNotFound):
			RespondNotFound(ctx, "Contest not found")
		case errors.Is(err, contest.ErrNotOwner):
			RespondForbidden(ctx, "Only the contest creator can declare a winner")
		case errors.Is(err, contest.ErrWinnerNotParticipant):
			RespondBadRequest(ctx, "Winner must be a registered participant", nil)
		default:
			RespondInternal(ctx, "Could not declare winner")
		}
		return
	}

	ctx.JSON(http.StatusOK, updated)
}

// ListSubmissions is readable by the contest's creator or an admin.
func (h *RegistrationsHandler) ListSubmissions(ctx *gin.Context) {
	contestID := ctx.Param("id")

	if !utils.IsUUID(contestID) {
		RespondBadRequest(ctx, "contest id must be a valid UUID", nil)
		return
	}

	principal, ok := middlewares.PrincipalFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	c, err := h.contests.GetByID(cctx, contestID)

	if err != nil {
		if errors.Is(err, contest.ErrNotFound) {
			RespondNotFound(ctx, "Contest not found")
			return
		}

		RespondInternal(ctx, "Could not list submissions")
		return
	}

	if c.CreatorEmail != principal.Email {
		role, roleErr := h.roles.RoleByEmail(cctx, principal.Email)

		if roleErr != nil || role != user.RoleAdmin {
			RespondForbidden(ctx, "Only the contest creator can view submissions")
			return
		}
	}

	subs, err := h.repo.ListSubmissions(cctx, contestID)

	if err != nil {
		RespondInternal(ctx, "Could not list submissions")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"contestId":   contestID,
		"count":       len(subs),
		"submissions": subs,
	})
}

// ListParticipants is readable by the contest's creator or an admin, same
// audience as the submissions listing.
func (h *RegistrationsHandler) ListParticipants(ctx *gin.Context) {
	contestID := ctx.Param("id")

	if !utils.IsUUID(contestID) {
		RespondBadRequest(ctx, "contest id must be a valid UUID", nil)
		return
	}

	principal, ok := middlewares.PrincipalFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	c, err := h.contests.GetByID(cctx, contestID)

	if err != nil {
		if errors.Is(err, contest.ErrNotFound) {
			RespondNotFound(ctx, "Contest not found")
			return
		}

		RespondInternal(ctx, "Could not list participants")
		return
	}

	if c.CreatorEmail != principal.Email {
		role, roleErr := h.roles.RoleByEmail(cctx, principal.Email)

		if roleErr != nil || role != user.RoleAdmin {
			RespondForbidden(ctx, "Only the contest creator can view participants")
			return
		}
	}

	participants, err := h.repo.ListParticipants(cctx, contestID)

	if err != nil {
		RespondInternal(ctx, "Could not list participants")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"contestId":    contestID,
		"count":        len(participants),
		"participants": participants,
	})
}

// ListParticipated projects the contests the principal has entered.
// Self-only: enforced here at the gate, not in the query.
func (h *RegistrationsHandler) ListParticipated(ctx *gin.Context) {
	email, ok := h.selfOnlyEmail(ctx)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	items, err := h.repo.ListParticipatedFor(cctx, email)

	if err != nil {
		RespondInternal(ctx, "Could not list participated contests")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// ListWinning projects the contests the principal has won.
func (h *RegistrationsHandler) ListWinning(ctx *gin.Context) {
	email, ok := h.selfOnlyEmail(ctx)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	items, err := h.repo.ListWonFor(cctx, email)

	if err != nil {
		RespondInternal(ctx, "Could not list winning contests")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *RegistrationsHandler) selfOnlyEmail(ctx *gin.Context) (string, bool) {
	email := ctx.Param("email")

	principal, ok := middlewares.PrincipalFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return "", false
	}

	if principal.Email != email {
		RespondForbidden(ctx, "You can only view your own contests")
		return "", false
	}

	return email, true
}
