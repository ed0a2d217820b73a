package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/artify/contesthub/internal/config"
	"github.com/artify/contesthub/internal/domain/user"
	"github.com/artify/contesthub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type UserDirectory interface {
	CreateIfAbsent(ctx context.Context, req user.CreateUserRequest) (user.User, bool, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	UpdateProfile(ctx context.Context, email string, req user.UpdateProfileRequest) (user.User, error)
}

type UsersHandler struct {
	repo UserDirectory
}

func NewUsersHandler(repo UserDirectory) *UsersHandler {
	return &UsersHandler{repo: repo}
}

// CreateUser is idempotent per email: the second call with a known email
// reports the existing record and mutates nothing.
func (h *UsersHandler) CreateUser(ctx *gin.Context) {
	var req user.CreateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, created, err := h.repo.CreateIfAbsent(cctx, req)

	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	if !created {
		ctx.JSON(http.StatusOK, gin.H{
			"message": "User already exists",
			"user":    u,
		})
		return
	}

	ctx.JSON(http.StatusCreated, u)
}

func (h *UsersHandler) GetUser(ctx *gin.Context) {
	email := ctx.Param("email")

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.repo.GetByEmail(cctx, email)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Could not fetch user")
		return
	}

	ctx.JSON(http.StatusOK, u)
}

// UpdateProfile lets a principal edit their own record only.
func (h *UsersHandler) UpdateProfile(ctx *gin.Context) {
	email := ctx.Param("email")

	principal, ok := middlewares.PrincipalFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	if principal.Email != email {
		RespondForbidden(ctx, "You can only update your own profile")
		return
	}

	var req user.UpdateProfileRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.repo.UpdateProfile(cctx, email, req)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Could not update profile")
		return
	}

	ctx.JSON(http.StatusOK, u)
}
