package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/artify/contesthub/internal/config"
	"github.com/artify/contesthub/internal/domain/contest"
	"github.com/artify/contesthub/internal/domain/user"
	"github.com/artify/contesthub/internal/utils"
	"github.com/gin-gonic/gin"
)

type AdminContestStore interface {
	ListAll(ctx context.Context) ([]contest.Contest, error)
	SetStatus(ctx context.Context, id, status string) (contest.Contest, error)
	AdminDelete(ctx context.Context, id string) error
}

type AdminUserStore interface {
	List(ctx context.Context) ([]user.User, error)
	SetRole(ctx context.Context, id, role string) (user.User, error)
}

// AdminHandler hosts the moderation surface. Every route here is admin-gated
// by the role policy table.
type AdminHandler struct {
	contests   AdminContestStore
	users      AdminUserStore
	invalidate func(context.Context) // drops cached public listings, may be nil
}

func NewAdminHandler(contests AdminContestStore, users AdminUserStore, invalidate func(context.Context)) *AdminHandler {
	return &AdminHandler{
		contests:   contests,
		users:      users,
		invalidate: invalidate,
	}
}

func (h *AdminHandler) invalidateListings(ctx context.Context) {
	if h.invalidate != nil {
		h.invalidate(ctx)
	}
}

func (h *AdminHandler) ListContests(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	items, err := h.contests.ListAll(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not list contests")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// SetContestStatus moves a contest through moderation. The status value is
// validated against the three allowed states.
func (h *AdminHandler) SetContestStatus(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "contest id must be a valid UUID", nil)
		return
	}

	var req contest.SetStatusRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	updated, err := h.contests.SetStatus(cctx, id, req.Status)

	if err != nil {
		if errors.Is(err, contest.ErrNotFound) {
			RespondNotFound(ctx, "Contest not found")
			return
		}

		RespondInternal(ctx, "Could not update contest status")
		return
	}

	// an approval or rejection changes the public listings immediately
	h.invalidateListings(cctx)

	ctx.JSON(http.StatusOK, updated)
}

func (h *AdminHandler) DeleteContest(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "contest id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	err := h.contests.AdminDelete(cctx, id)

	if err != nil {
		if errors.Is(err, contest.ErrNotFound) {
			RespondNotFound(ctx, "Contest not found")
			return
		}

		RespondInternal(ctx, "Could not delete contest")
		return
	}

	h.invalidateListings(cctx)

	ctx.Status(http.StatusNoContent)
}

func (h *AdminHandler) ListUsers(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	items, err := h.users.List(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not list users")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// SetUserRole overwrites a user's role. Role values outside the enum are
// rejected at bind time.
func (h *AdminHandler) SetUserRole(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "user id must be a valid UUID", nil)
		return
	}

	var req user.SetRoleRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	updated, err := h.users.SetRole(cctx, id, req.Role)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Could not update user role")
		return
	}

	ctx.JSON(http.StatusOK, updated)
}
