package handlers_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/artify/contesthub/internal/domain/contest"
	"github.com/artify/contesthub/internal/domain/user"
	"github.com/artify/contesthub/internal/http/handlers"
)

type fakeAdminContests struct {
	listAllFn   func(ctx context.Context) ([]contest.Contest, error)
	setStatusFn func(ctx context.Context, id, status string) (contest.Contest, error)
	deleteFn    func(ctx context.Context, id string) error
}

func (f *fakeAdminContests) ListAll(ctx context.Context) ([]contest.Contest, error) {
	if f.listAllFn != nil {
		return f.listAllFn(ctx)
	}
	return []contest.Contest{}, nil
}

func (f *fakeAdminContests) SetStatus(ctx context.Context, id, status string) (contest.Contest, error) {
	if f.setStatusFn != nil {
		return f.setStatusFn(ctx, id, status)
	}
	return contest.Contest{}, nil
}

func (f *fakeAdminContests) AdminDelete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

type fakeAdminUsers struct {
	listFn    func(ctx context.Context) ([]user.User, error)
	setRoleFn func(ctx context.Context, id, role string) (user.User, error)
}

func (f *fakeAdminUsers) List(ctx context.Context) ([]user.User, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return []user.User{}, nil
}

func (f *fakeAdminUsers) SetRole(ctx context.Context, id, role string) (user.User, error) {
	if f.setRoleFn != nil {
		return f.setRoleFn(ctx, id, role)
	}
	return user.User{}, nil
}

// Moderation: status transitions are free-form between the three states, but
// the value itself must be one of them.

func TestSetContestStatusHandler(t *testing.T) {
	id := newUUID()

	tests := []struct {
		name           string
		contestID      string
		body           string
		setStatusErr   error
		wantStatusCode int
	}{
		{name: "approve", contestID: id, body: `{"status": "approved"}`, wantStatusCode: http.StatusOK},
		{name: "reject", contestID: id, body: `{"status": "rejected"}`, wantStatusCode: http.StatusOK},
		{name: "back_to_pending", contestID: id, body: `{"status": "pending"}`, wantStatusCode: http.StatusOK},
		{name: "invalid_status", contestID: id, body: `{"status": "archived"}`, wantStatusCode: http.StatusBadRequest},
		{name: "missing_status", contestID: id, body: `{}`, wantStatusCode: http.StatusBadRequest},
		{name: "unknown_contest", contestID: id, body: `{"status": "approved"}`, setStatusErr: contest.ErrNotFound, wantStatusCode: http.StatusNotFound},
		{name: "not_a_uuid", contestID: "nope", body: `{"status": "approved"}`, wantStatusCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			contests := &fakeAdminContests{
				setStatusFn: func(ctx context.Context, gotID, status string) (contest.Contest, error) {
					if tt.setStatusErr != nil {
						return contest.Contest{}, tt.setStatusErr
					}
					if !contest.ValidStatus(status) {
						return contest.Contest{}, errors.New("invalid status reached the store")
					}
					return contest.Contest{ID: gotID, Status: status}, nil
				},
			}

			h := handlers.NewAdminHandler(contests, &fakeAdminUsers{}, nil)
			r := setupRouter(http.MethodPatch, "/admin/contests/:id", h.SetContestStatus)

			req := httptest.NewRequest(http.MethodPatch, "/admin/contests/"+tt.contestID, bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestAdminDeleteContestHandler(t *testing.T) {
	id := newUUID()

	tests := []struct {
		name           string
		deleteErr      error
		wantStatusCode int
	}{
		{name: "success", wantStatusCode: http.StatusNoContent},
		{name: "unknown", deleteErr: contest.ErrNotFound, wantStatusCode: http.StatusNotFound},
		{name: "repo_error", deleteErr: errors.New("db error"), wantStatusCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			contests := &fakeAdminContests{
				deleteFn: func(ctx context.Context, gotID string) error {
					return tt.deleteErr
				},
			}

			h := handlers.NewAdminHandler(contests, &fakeAdminUsers{}, nil)
			r := setupRouter(http.MethodDelete, "/admin/contests/:id", h.DeleteContest)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/admin/contests/"+id, nil))

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

// Moderation decisions must show up in the public listings right away, not
// after the cache TTL runs out.

func TestModerationInvalidatesListings(t *testing.T) {
	id := newUUID()

	tests := []struct {
		name            string
		run             func(t *testing.T, h *handlers.AdminHandler) *httptest.ResponseRecorder
		storeErr        error
		wantInvalidated bool
	}{
		{
			name: "approve_invalidates",
			run: func(t *testing.T, h *handlers.AdminHandler) *httptest.ResponseRecorder {
				r := setupRouter(http.MethodPatch, "/admin/contests/:id", h.SetContestStatus)
				req := httptest.NewRequest(http.MethodPatch, "/admin/contests/"+id, bytes.NewBufferString(`{"status": "approved"}`))
				req.Header.Set("Content-Type", "application/json")
				w := httptest.NewRecorder()
				r.ServeHTTP(w, req)
				return w
			},
			wantInvalidated: true,
		},
		{
			name: "delete_invalidates",
			run: func(t *testing.T, h *handlers.AdminHandler) *httptest.ResponseRecorder {
				r := setupRouter(http.MethodDelete, "/admin/contests/:id", h.DeleteContest)
				w := httptest.NewRecorder()
				r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/admin/contests/"+id, nil))
				return w
			},
			wantInvalidated: true,
		},
		{
			name: "failed_update_keeps_cache",
			run: func(t *testing.T, h *handlers.AdminHandler) *httptest.ResponseRecorder {
				r := setupRouter(http.MethodPatch, "/admin/contests/:id", h.SetContestStatus)
				req := httptest.NewRequest(http.MethodPatch, "/admin/contests/"+id, bytes.NewBufferString(`{"status": "approved"}`))
				req.Header.Set("Content-Type", "application/json")
				w := httptest.NewRecorder()
				r.ServeHTTP(w, req)
				return w
			},
			storeErr:        contest.ErrNotFound,
			wantInvalidated: false,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			contests := &fakeAdminContests{
				setStatusFn: func(ctx context.Context, gotID, status string) (contest.Contest, error) {
					if tt.storeErr != nil {
						return contest.Contest{}, tt.storeErr
					}
					return contest.Contest{ID: gotID, Status: status}, nil
				},
				deleteFn: func(ctx context.Context, gotID string) error {
					return tt.storeErr
				},
			}

			invalidations := 0
			h := handlers.NewAdminHandler(contests, &fakeAdminUsers{}, func(context.Context) {
				invalidations++
			})

			tt.run(t, h)

			if tt.wantInvalidated && invalidations != 1 {
				t.Fatalf("got %d invalidations, want 1", invalidations)
			}
			if !tt.wantInvalidated && invalidations != 0 {
				t.Fatalf("got %d invalidations, want 0", invalidations)
			}
		})
	}
}

func TestSetUserRoleHandler(t *testing.T) {
	id := newUUID()

	tests := []struct {
		name           string
		body           string
		setRoleErr     error
		wantStatusCode int
	}{
		{name: "promote_to_creator", body: `{"role": "creator"}`, wantStatusCode: http.StatusOK},
		{name: "invalid_role", body: `{"role": "superuser"}`, wantStatusCode: http.StatusBadRequest},
		{name: "unknown_user", body: `{"role": "creator"}`, setRoleErr: user.ErrNotFound, wantStatusCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			users := &fakeAdminUsers{
				setRoleFn: func(ctx context.Context, gotID, role string) (user.User, error) {
					if tt.setRoleErr != nil {
						return user.User{}, tt.setRoleErr
					}
					return user.User{ID: gotID, Role: role}, nil
				},
			}

			h := handlers.NewAdminHandler(&fakeAdminContests{}, users, nil)
			r := setupRouter(http.MethodPatch, "/admin/users/role/:id", h.SetUserRole)

			req := httptest.NewRequest(http.MethodPatch, "/admin/users/role/"+id, bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}
