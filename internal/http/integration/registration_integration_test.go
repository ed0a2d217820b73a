package integration__test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/artify/contesthub/internal/domain/contest"
	"github.com/google/uuid"
)

func TestRegistrationIntegration_DuplicateCollapses(t *testing.T) {
	router, pool := setupSuite(t)
	resetDB(t, pool)
	defer resetDB(t, pool)

	addr := "203.0.113.10:40000"
	token, _ := signupAndGetToken(t, router, addr, "fan@example.com", "Fan Smith")

	contestID := seedContest(t, pool, "creator@example.com", contest.StatusApproved, 0)

	register := func() *httptest.ResponseRecorder {
		req := newJSONRequest(http.MethodPatch, "/contests/register/"+contestID, "", addr)
		req.Header.Set("Authorization", "Bearer "+token)

		w, _ := send(router, req)
		return w
	}

	if w := register(); w.Code != http.StatusCreated {
		t.Fatalf("first register got %d, body=%s", w.Code, w.Body.String())
	}

	w := register()

	if w.Code != http.StatusConflict {
		t.Fatalf("second register got %d, want %d, body=%s", w.Code, http.StatusConflict, w.Body.String())
	}

	var resp apiErrorResponse
	mustReadJSON(t, w, &resp)

	if resp.Error.Code != "already_registered" {
		t.Fatalf("expected already_registered, got %q", resp.Error.Code)
	}

	if n := countRows(t, pool, `SELECT COUNT(*) FROM participants WHERE contest_id = $1`, contestID); n != 1 {
		t.Fatalf("expected 1 participant row, got %d", n)
	}

	if n := countRows(t, pool, `SELECT participant_count FROM contests WHERE id = $1`, contestID); n != 1 {
		t.Fatalf("expected participant_count 1, got %d", n)
	}
}

// Two racing admissions for the same (contest, email) must land on the primary
// key: exactly one row, exactly one counter bump.
func TestRegistrationIntegration_ConcurrentDuplicateAdmitsOnce(t *testing.T) {
	router, pool := setupSuite(t)
	resetDB(t, pool)
	defer resetDB(t, pool)

	addr := "203.0.113.11:40000"
	token, _ := signupAndGetToken(t, router, addr, "fan@example.com", "Fan Smith")

	contestID := seedContest(t, pool, "creator@example.com", contest.StatusApproved, 0)

	codes := make(chan int, 2)

	var wg sync.WaitGroup

	for i := 0; i < 2; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			req := newJSONRequest(http.MethodPatch, "/contests/register/"+contestID, "", addr)
			req.Header.Set("Authorization", "Bearer "+token)

			w, _ := send(router, req)
			codes <- w.Code
		}()
	}

	wg.Wait()
	close(codes)

	created, conflicted := 0, 0

	for code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicted++
		default:
			t.Fatalf("unexpected status %d", code)
		}
	}

	if created != 1 || conflicted != 1 {
		t.Fatalf("got %d created / %d conflicted, want 1 / 1", created, conflicted)
	}

	if n := countRows(t, pool, `SELECT COUNT(*) FROM participants WHERE contest_id = $1`, contestID); n != 1 {
		t.Fatalf("expected 1 participant row, got %d", n)
	}

	if n := countRows(t, pool, `SELECT participant_count FROM contests WHERE id = $1`, contestID); n != 1 {
		t.Fatalf("expected participant_count 1, got %d", n)
	}
}

func TestRegistrationIntegration_CountTracksEachAdmission(t *testing.T) {
	router, pool := setupSuite(t)
	resetDB(t, pool)
	defer resetDB(t, pool)

	contestID := seedContest(t, pool, "creator@example.com", contest.StatusApproved, 0)

	for i, email := range []string{"first@example.com", "second@example.com"} {
		addr := fmt.Sprintf("203.0.113.12:%d", 40000+i)
		token, _ := signupAndGetToken(t, router, addr, email, "Entrant")

		req := newJSONRequest(http.MethodPatch, "/contests/register/"+contestID, "", addr)
		req.Header.Set("Authorization", "Bearer "+token)

		if w, _ := send(router, req); w.Code != http.StatusCreated {
			t.Fatalf("register %s got %d, body=%s", email, w.Code, w.Body.String())
		}
	}

	if n := countRows(t, pool, `SELECT participant_count FROM contests WHERE id = $1`, contestID); n != 2 {
		t.Fatalf("expected participant_count 2, got %d", n)
	}
}

func TestRegistrationIntegration_UnknownContest(t *testing.T) {
	router, pool := setupSuite(t)
	resetDB(t, pool)
	defer resetDB(t, pool)

	addr := "203.0.113.13:40000"
	token, _ := signupAndGetToken(t, router, addr, "fan@example.com", "Fan Smith")

	req := newJSONRequest(http.MethodPatch, "/contests/register/"+uuid.NewString(), "", addr)
	req.Header.Set("Authorization", "Bearer "+token)

	w, _ := send(router, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("got %d, want %d, body=%s", w.Code, http.StatusNotFound, w.Body.String())
	}
}

func TestDeclareWinnerIntegration_ResolvesIdentity(t *testing.T) {
	router, pool := setupSuite(t)
	resetDB(t, pool)
	defer resetDB(t, pool)

	creatorAddr := "203.0.113.14:40000"
	creatorToken, _ := signupAndGetToken(t, router, creatorAddr, "creator@example.com", "Casey")
	promoteToCreator(t, pool, "creator@example.com")

	fanAddr := "203.0.113.15:40000"
	fanToken, _ := signupAndGetToken(t, router, fanAddr, "fan@example.com", "Fan Smith")

	contestID := seedContest(t, pool, "creator@example.com", contest.StatusApproved, 0)

	req := newJSONRequest(http.MethodPatch, "/contests/register/"+contestID, "", fanAddr)
	req.Header.Set("Authorization", "Bearer "+fanToken)

	if w, _ := send(router, req); w.Code != http.StatusCreated {
		t.Fatalf("register got %d, body=%s", w.Code, w.Body.String())
	}

	declare := func(id, winnerEmail string) (*httptest.ResponseRecorder, contest.Contest) {
		req := newJSONRequest(http.MethodPatch, "/contests/declare-winner/"+id,
			`{"winnerEmail":"`+winnerEmail+`"}`, creatorAddr)
		req.Header.Set("Authorization", "Bearer "+creatorToken)

		w, _ := send(router, req)

		var c contest.Contest
		if w.Code == http.StatusOK {
			mustReadJSON(t, w, &c)
		}

		return w, c
	}

	w, updated := declare(contestID, "fan@example.com")

	if w.Code != http.StatusOK {
		t.Fatalf("declare got %d, body=%s", w.Code, w.Body.String())
	}

	if updated.WinnerName == nil || *updated.WinnerName != "Fan Smith" {
		t.Fatalf("winner name not resolved from account, got %+v", updated.WinnerName)
	}

	// A participant admitted outside the signup flow has no account and no
	// submission; the display name falls back instead of failing.
	second := seedContest(t, pool, "creator@example.com", contest.StatusApproved, 0)

	_, err := pool.Exec(context.Background(),
		`INSERT INTO participants (contest_id, email) VALUES ($1,$2)`, second, "ghost@example.com")

	if err != nil {
		t.Fatalf("seed participant: %v", err)
	}

	w, updated = declare(second, "ghost@example.com")

	if w.Code != http.StatusOK {
		t.Fatalf("declare(ghost) got %d, body=%s", w.Code, w.Body.String())
	}

	if updated.WinnerName == nil || *updated.WinnerName != "Unknown" {
		t.Fatalf("expected fallback winner name, got %+v", updated.WinnerName)
	}
}
