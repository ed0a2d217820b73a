package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/artify/contesthub/internal/cache"
	"github.com/artify/contesthub/internal/config"
	"github.com/artify/contesthub/internal/domain/contest"
	"github.com/artify/contesthub/internal/http/middlewares"
	"github.com/artify/contesthub/internal/utils"
	"github.com/gin-gonic/gin"
)

const (
	defaultListLimit = 20
	maxListLimit     = 50
	popularLimit     = 5

	popularCacheKey = "contests:popular:v1"
	popularCacheTTL = 30 * time.Second
	listCacheKey    = "contests:approved:first_page:v1"
)

type ContestStore interface {
	Create(ctx context.Context, c contest.Contest) (contest.Contest, error)
	GetByID(ctx context.Context, id string) (contest.Contest, error)
	ListApprovedCursor(ctx context.Context, limit int, afterCreatedAt time.Time, afterID string) ([]contest.Contest, *string, bool, error)
	ListPopular(ctx context.Context, limit int) ([]contest.Contest, error)
	SearchByType(ctx context.Context, typeSubstring string) ([]contest.Contest, error)
	ListByCreator(ctx context.Context, creatorEmail string) ([]contest.Contest, error)
	Update(ctx context.Context, id, actorEmail string, req contest.UpdateContestRequest) (contest.Contest, error)
	DeleteByCreator(ctx context.Context, id, actorEmail string) error
}

type contestListPage struct {
	Items      []contest.Contest `json:"items"`
	Count      int               `json:"count"`
	NextCursor *string           `json:"nextCursor,omitempty"`
	HasMore    bool              `json:"hasMore"`
}

type ContestsHandler struct {
	repo      ContestStore
	listCache *cache.Cache[contestListPage]
	popular   *cache.RedisCache // nil when redis is not configured
}

func NewContestsHandler(repo ContestStore, listTTL time.Duration, popular *cache.RedisCache) *ContestsHandler {
	return &ContestsHandler{
		repo:      repo,
		listCache: cache.New[contestListPage](listTTL),
		popular:   popular,
	}
}

// CreateContest stores a pending contest. Creator identity comes from the
// verified principal; any creator fields in the payload are ignored.
func (h *ContestsHandler) CreateContest(ctx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	var req contest.CreateContestRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	created, err := h.repo.Create(cctx, contest.NewFromCreateRequest(req, principal.Email, principal.Name))

	if err != nil {
		RespondInternal(ctx, "Could not create contest")
		return
	}

	ctx.JSON(http.StatusCreated, created)
}

// ListApproved is the public listing: approved contests, newest first, cursor
// paginated. The first page is cached briefly since it takes most of the reads.
func (h *ContestsHandler) ListApproved(ctx *gin.Context) {
	limit := parseLimit(ctx.Query("limit"))

	var afterCreatedAt time.Time
	var afterID string

	rawCursor := ctx.Query("cursor")

	if rawCursor != "" {
		cur, err := utils.DecodeContestCursor(rawCursor)

		if err != nil {
			RespondBadRequest(ctx, "Invalid cursor", nil)
			return
		}

		afterCreatedAt = cur.CreatedAt
		afterID = cur.ID
	}

	firstPage := rawCursor == "" && limit == defaultListLimit

	if firstPage && h.listCache != nil {
		if page, ok := h.listCache.Get(listCacheKey); ok {
			RespondJSONWithETag(ctx, http.StatusOK, page)
			return
		}
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	items, nextCursor, hasMore, err := h.repo.ListApprovedCursor(cctx, limit, afterCreatedAt, afterID)

	if err != nil {
		RespondInternal(ctx, "Could not list contests")
		return
	}

	page := contestListPage{
		Items:      items,
		Count:      len(items),
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}

	if firstPage && h.listCache != nil {
		h.listCache.Set(listCacheKey, page)
	}

	RespondJSONWithETag(ctx, http.StatusOK, page)
}

// ListPopular orders by admitted-participant count. Served read-through from
// redis when configured so every instance shares one ranking.
func (h *ContestsHandler) ListPopular(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	if h.popular != nil {
		var cached []contest.Contest

		hit, err := h.popular.GetJSON(cctx, popularCacheKey, &cached)

		if err == nil && hit {
			ctx.JSON(http.StatusOK, gin.H{"items": cached, "count": len(cached)})
			return
		}
		// redis trouble falls through to the store
	}

	items, err := h.repo.ListPopular(cctx, popularLimit)

	if err != nil {
		RespondInternal(ctx, "Could not list popular contests")
		return
	}

	if h.popular != nil {
		_ = h.popular.SetJSON(cctx, popularCacheKey, items, popularCacheTTL)
	}

	ctx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *ContestsHandler) Search(ctx *gin.Context) {
	q := ctx.Query("type")

	if q == "" {
		RespondBadRequest(ctx, "Missing type query parameter", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	items, err := h.repo.SearchByType(cctx, q)

	if err != nil {
		RespondInternal(ctx, "Could not search contests")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *ContestsHandler) GetByID(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "contest id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	c, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, contest.ErrNotFound) {
			RespondNotFound(ctx, "Contest not found")
			return
		}

		RespondInternal(ctx, "Could not fetch contest")
		return
	}

	ctx.JSON(http.StatusOK, c)
}

// ListByCreator returns the principal's own contests. The route is
// creator-gated by policy; the email param must match the principal.
func (h *ContestsHandler) ListByCreator(ctx *gin.Context) {
	email := ctx.Param("email")

	principal, ok := middlewares.PrincipalFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	if principal.Email != email {
		RespondForbidden(ctx, "You can only list your own contests")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	items, err := h.repo.ListByCreator(cctx, email)

	if err != nil {
		RespondInternal(ctx, "Could not list contests")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *ContestsHandler) EditContest(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "contest id must be a valid UUID", nil)
		return
	}

	principal, ok := middlewares.PrincipalFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	var req contest.UpdateContestRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	updated, err := h.repo.Update(cctx, id, principal.Email, req)

	if err != nil {
		h.respondLifecycleError(ctx, err, "Could not update contest")
		return
	}

	h.InvalidateListings(cctx)

	ctx.JSON(http.StatusOK, updated)
}

func (h *ContestsHandler) DeleteContest(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
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

	err := h.repo.DeleteByCreator(cctx, id, principal.Email)

	if err != nil {
		h.respondLifecycleError(ctx, err, "Could not delete contest")
		return
	}

	h.InvalidateListings(cctx)

	ctx.Status(http.StatusNoContent)
}

func (h *ContestsHandler) respondLifecycleError(ctx *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, contest.ErrNotFound):
		RespondNotFound(ctx, "Contest not found")
	case errors.Is(err, contest.ErrNotOwner):
		RespondForbidden(ctx, "You do not own this contest")
	case errors.Is(err, contest.ErrNotEditable):
		RespondConflict(ctx, "not_pending", "Contest can only be changed while pending")
	default:
		RespondInternal(ctx, fallback)
	}
}

// InvalidateListings drops the cached listings. Called after any mutation that
// changes what the public lists show, including moderation decisions.
func (h *ContestsHandler) InvalidateListings(ctx context.Context) {
	if h.listCache != nil {
		h.listCache.Delete(listCacheKey)
	}

	if h.popular != nil {
		_ = h.popular.Delete(ctx, popularCacheKey)
	}
}

func parseLimit(raw string) int {
	if raw == "" {
		return defaultListLimit
	}

	n, err := strconv.Atoi(raw)

	if err != nil || n <= 0 {
		return defaultListLimit
	}

	if n > maxListLimit {
		return maxListLimit
	}

	return n
}
