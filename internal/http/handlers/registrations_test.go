package handlers_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/artify/contesthub/internal/domain/contest"
	"github.com/artify/contesthub/internal/domain/user"
	"github.com/artify/contesthub/internal/http/handlers"
	"github.com/artify/contesthub/internal/http/middlewares"
)

// Fake engine implementation of the handlers.RegistrationEngine interface

type fakeRegistrationsRepo struct {
	registerFn         func(ctx context.Context, contestID, email string) (contest.Participant, error)
	submitFn           func(ctx context.Context, contestID, email, name, image, taskLink string) (contest.Submission, error)
	declareWinnerFn    func(ctx context.Context, contestID, creatorEmail, winnerEmail string) (contest.Contest, error)
	listSubmissionsFn  func(ctx context.Context, contestID string) ([]contest.Submission, error)
	listParticipantsFn func(ctx context.Context, contestID string) ([]contest.Participant, error)
	listParticipatedFn func(ctx context.Context, email string) ([]contest.Contest, error)
	listWonFn          func(ctx context.Context, email string) ([]contest.Contest, error)
}

func (f *fakeRegistrationsRepo) Register(ctx context.Context, contestID, email string) (contest.Participant, error) {
	if f.registerFn != nil {
		return f.registerFn(ctx, contestID, email)
	}
	return contest.Participant{}, nil
}

func (f *fakeRegistrationsRepo) SubmitTask(ctx context.Context, contestID, email, name, image, taskLink string) (contest.Submission, error) {
	if f.submitFn != nil {
		return f.submitFn(ctx, contestID, email, name, image, taskLink)
	}
	return contest.Submission{}, nil
}

func (f *fakeRegistrationsRepo) DeclareWinner(ctx context.Context, contestID, creatorEmail, winnerEmail string) (contest.Contest, error) {
	if f.declareWinnerFn != nil {
		return f.declareWinnerFn(ctx, contestID, creatorEmail, winnerEmail)
	}
	return contest.Contest{}, nil
}

func (f *fakeRegistrationsRepo) ListSubmissions(ctx context.Context, contestID string) ([]contest.Submission, error) {
	if f.listSubmissionsFn != nil {
		return f.listSubmissionsFn(ctx, contestID)
	}
	return []contest.Submission{}, nil
}

func (f *fakeRegistrationsRepo) ListParticipants(ctx context.Context, contestID string) ([]contest.Participant, error) {
	if f.listParticipantsFn != nil {
		return f.listParticipantsFn(ctx, contestID)
	}
	return []contest.Participant{}, nil
}

func (f *fakeRegistrationsRepo) ListParticipatedFor(ctx context.Context, email string) ([]contest.Contest, error) {
	if f.listParticipatedFn != nil {
		return f.listParticipatedFn(ctx, email)
	}
	return []contest.Contest{}, nil
}

func (f *fakeRegistrationsRepo) ListWonFor(ctx context.Context, email string) ([]contest.Contest, error) {
	if f.listWonFn != nil {
		return f.listWonFn(ctx, email)
	}
	return []contest.Contest{}, nil
}

// fake role lookup for the admin bypass on submissions listing

type fakeRoleReader struct {
	roles map[string]string
}

func (f *fakeRoleReader) RoleByEmail(ctx context.Context, email string) (string, error) {
	role, ok := f.roles[email]
	if !ok {
		return "", user.ErrNotFound
	}
	return role, nil
}

// Register tests

func TestRegisterHandler(t *testing.T) {
	principal := middlewares.Principal{Email: "fan@example.com", Name: "Fan"}
	id := newUUID()

	tests := []struct {
		name           string
		contestID      string
		registerErr    error
		wantStatusCode int
	}{
		{name: "success", contestID: id, registerErr: nil, wantStatusCode: http.StatusCreated},
		{name: "unknown_contest", contestID: id, registerErr: contest.ErrNotFound, wantStatusCode: http.StatusNotFound},
		{name: "duplicate", contestID: id, registerErr: contest.ErrAlreadyRegistered, wantStatusCode: http.StatusConflict},
		{name: "not_a_uuid", contestID: "nope", wantStatusCode: http.StatusBadRequest},
		{name: "repo_error", contestID: id, registerErr: errors.New("db error"), wantStatusCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRegistrationsRepo{
				registerFn: func(ctx context.Context, contestID, email string) (contest.Participant, error) {
					if tt.registerErr != nil {
						return contest.Participant{}, tt.registerErr
					}
					if email != principal.Email {
						return contest.Participant{}, errors.New("email not taken from principal")
					}
					return contest.Participant{ContestID: contestID, Email: email, CreatedAt: time.Now().UTC()}, nil
				},
			}

			h := handlers.NewRegistrationsHandler(repo, &fakeContestsRepo{}, &fakeRoleReader{}, nil)
			r := setupRouterWithPrincipal(http.MethodPatch, "/contests/register/:id", principal, h.Register)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/contests/register/"+tt.contestID, nil))

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

// Submit task tests

func TestSubmitTaskHandler(t *testing.T) {
	principal := middlewares.Principal{Email: "fan@example.com", Name: "Fan"}
	id := newUUID()

	tests := []struct {
		name           string
		body           string
		submitErr      error
		wantStatusCode int
	}{
		{
			name:           "success",
			body:           `{"taskLink": "https://github.com/fan/entry"}`,
			wantStatusCode: http.StatusCreated,
		},
		{
			name:           "empty_task_link",
			body:           `{"taskLink": ""}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "not_registered",
			body:           `{"taskLink": "https://github.com/fan/entry"}`,
			submitErr:      contest.ErrNotRegistered,
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:           "already_submitted",
			body:           `{"taskLink": "https://github.com/fan/entry"}`,
			submitErr:      contest.ErrAlreadySubmitted,
			wantStatusCode: http.StatusConflict,
		},
		{
			name:           "unknown_contest",
			body:           `{"taskLink": "https://github.com/fan/entry"}`,
			submitErr:      contest.ErrNotFound,
			wantStatusCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRegistrationsRepo{
				submitFn: func(ctx context.Context, contestID, email, name, image, taskLink string) (contest.Submission, error) {
					if tt.submitErr != nil {
						return contest.Submission{}, tt.submitErr
					}
					return contest.Submission{ContestID: contestID, Email: email, TaskLink: taskLink, SubmittedAt: time.Now().UTC()}, nil
				},
			}

			h := handlers.NewRegistrationsHandler(repo, &fakeContestsRepo{}, &fakeRoleReader{}, nil)
			r := setupRouterWithPrincipal(http.MethodPost, "/contests/:id/submit-task", principal, h.SubmitTask)

			req := httptest.NewRequest(http.MethodPost, "/contests/"+id+"/submit-task", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

// Declare winner tests

func TestDeclareWinnerHandler(t *testing.T) {
	creator := middlewares.Principal{Email: "creator@example.com", Name: "Creator"}
	id := newUUID()

	tests := []struct {
		name           string
		body           string
		declareErr     error
		wantStatusCode int
	}{
		{
			name:           "success",
			body:           `{"winnerEmail": "fan@example.com"}`,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "missing_winner_email",
			body:           `{}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "not_owner",
			body:           `{"winnerEmail": "fan@example.com"}`,
			declareErr:     contest.ErrNotOwner,
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:           "winner_not_participant",
			body:           `{"winnerEmail": "stranger@example.com"}`,
			declareErr:     contest.ErrWinnerNotParticipant,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "unknown_contest",
			body:           `{"winnerEmail": "fan@example.com"}`,
			declareErr:     contest.ErrNotFound,
			wantStatusCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRegistrationsRepo{
				declareWinnerFn: func(ctx context.Context, contestID, creatorEmail, winnerEmail string) (contest.Contest, error) {
					if tt.declareErr != nil {
						return contest.Contest{}, tt.declareErr
					}
					if creatorEmail != creator.Email {
						return contest.Contest{}, errors.New("creator not taken from principal")
					}
					return contest.Contest{ID: contestID, WinnerEmail: &winnerEmail, Status: contest.StatusApproved}, nil
				},
			}

			h := handlers.NewRegistrationsHandler(repo, &fakeContestsRepo{}, &fakeRoleReader{}, nil)
			r := setupRouterWithPrincipal(http.MethodPatch, "/contests/declare-winner/:id", creator, h.DeclareWinner)

			req := httptest.NewRequest(http.MethodPatch, "/contests/declare-winner/"+id, bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

// Only the contest creator or an admin may read submissions.

func TestListSubmissionsAccess(t *testing.T) {
	id := newUUID()

	contests := &fakeContestsRepo{
		getFn: func(ctx context.Context, gotID string) (contest.Contest, error) {
			return contest.Contest{ID: gotID, CreatorEmail: "creator@example.com"}, nil
		},
	}

	repo := &fakeRegistrationsRepo{
		listSubmissionsFn: func(ctx context.Context, contestID string) ([]contest.Submission, error) {
			return []contest.Submission{{ContestID: contestID, Email: "fan@example.com", TaskLink: "https://github.com/fan/entry"}}, nil
		},
	}

	roles := &fakeRoleReader{roles: map[string]string{
		"admin@example.com": user.RoleAdmin,
		"fan@example.com":   user.RoleUser,
	}}

	tests := []struct {
		name           string
		principal      middlewares.Principal
		wantStatusCode int
	}{
		{name: "creator", principal: middlewares.Principal{Email: "creator@example.com"}, wantStatusCode: http.StatusOK},
		{name: "admin", principal: middlewares.Principal{Email: "admin@example.com"}, wantStatusCode: http.StatusOK},
		{name: "stranger", principal: middlewares.Principal{Email: "fan@example.com"}, wantStatusCode: http.StatusForbidden},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewRegistrationsHandler(repo, contests, roles, nil)
			r := setupRouterWithPrincipal(http.MethodGet, "/contests/submissions/:id", tt.principal, h.ListSubmissions)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/contests/submissions/"+id, nil))

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

// The participant roster shares the submissions audience: creator or admin.

func TestListParticipantsAccess(t *testing.T) {
	id := newUUID()

	contests := &fakeContestsRepo{
		getFn: func(ctx context.Context, gotID string) (contest.Contest, error) {
			return contest.Contest{ID: gotID, CreatorEmail: "creator@example.com"}, nil
		},
	}

	repo := &fakeRegistrationsRepo{
		listParticipantsFn: func(ctx context.Context, contestID string) ([]contest.Participant, error) {
			return []contest.Participant{{ContestID: contestID, Email: "fan@example.com"}}, nil
		},
	}

	roles := &fakeRoleReader{roles: map[string]string{
		"admin@example.com": user.RoleAdmin,
		"fan@example.com":   user.RoleUser,
	}}

	tests := []struct {
		name           string
		principal      middlewares.Principal
		wantStatusCode int
	}{
		{name: "creator", principal: middlewares.Principal{Email: "creator@example.com"}, wantStatusCode: http.StatusOK},
		{name: "admin", principal: middlewares.Principal{Email: "admin@example.com"}, wantStatusCode: http.StatusOK},
		{name: "stranger", principal: middlewares.Principal{Email: "fan@example.com"}, wantStatusCode: http.StatusForbidden},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewRegistrationsHandler(repo, contests, roles, nil)
			r := setupRouterWithPrincipal(http.MethodGet, "/contests/participants/:id", tt.principal, h.ListParticipants)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/contests/participants/"+id, nil))

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

// Participation history is self-only.

func TestListParticipatedSelfOnly(t *testing.T) {
	principal := middlewares.Principal{Email: "fan@example.com"}

	repo := &fakeRegistrationsRepo{
		listParticipatedFn: func(ctx context.Context, email string) ([]contest.Contest, error) {
			return []contest.Contest{{ID: newUUID(), Status: contest.StatusApproved}}, nil
		},
	}

	h := handlers.NewRegistrationsHandler(repo, &fakeContestsRepo{}, &fakeRoleReader{}, nil)
	r := setupRouterWithPrincipal(http.MethodGet, "/participated-contests/:email", principal, h.ListParticipated)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/participated-contests/fan@example.com", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("own history: got status %d, body=%s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/participated-contests/other@example.com", nil))

	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign history: got status %d, want 403", w.Code)
	}
}
