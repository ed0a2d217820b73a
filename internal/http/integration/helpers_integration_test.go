package integration__test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/artify/contesthub/internal/config"
	"github.com/artify/contesthub/internal/db"
	apphttp "github.com/artify/contesthub/internal/http"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// One router and pool for the whole package. The metrics registry is
// process-global, so a second router would collide with the first.
var (
	setupOnce    sync.Once
	setupErr     error
	sharedRouter *gin.Engine
	sharedPool   *pgxpool.Pool

	providerMu      sync.Mutex
	providerHandler http.HandlerFunc
)

const testWebhookSecret = "whsec_test"

func setupSuite(t *testing.T) (*gin.Engine, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")

	if dsn == "" {
		t.Skip("TEST_DB_DSN not set; skipping store-backed tests")
	}

	setupOnce.Do(func() {
		gin.SetMode(gin.TestMode)

		ctx := context.Background()

		pool, err := pgxpool.New(ctx, dsn)

		if err != nil {
			setupErr = err
			return
		}

		if err := db.Migrate(ctx, pool); err != nil {
			setupErr = err
			return
		}

		// stand-in for the hosted checkout provider; tests install a
		// handler per scenario
		provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			providerMu.Lock()
			h := providerHandler
			providerMu.Unlock()

			if h == nil {
				http.NotFound(w, r)
				return
			}

			h(w, r)
		}))

		cfg := config.Config{
			Env:                  "test",
			JWTSecret:            "test-secret-key",
			JWTAccessTTLMinutes:  60,
			JWTRefreshTTLDays:    7,
			PaymentAPIBase:       provider.URL,
			PaymentSecretKey:     "sk_test_key",
			PaymentWebhookSecret: testWebhookSecret,
			PaymentSuccessURL:    "http://localhost/payment/success",
			PaymentCancelURL:     "http://localhost/payment/cancel",
		}

		logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

		sharedRouter = apphttp.NewRouter(logger, cfg, pool, nil)
		sharedPool = pool
	})

	if setupErr != nil {
		t.Fatalf("suite setup: %v", setupErr)
	}

	return sharedRouter, sharedPool
}

func setProviderHandler(t *testing.T, h http.HandlerFunc) {
	t.Helper()

	providerMu.Lock()
	providerHandler = h
	providerMu.Unlock()

	t.Cleanup(func() {
		providerMu.Lock()
		providerHandler = nil
		providerMu.Unlock()
	})
}

func resetDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(), `
		TRUNCATE payment_sessions, submissions, participants, refresh_tokens, contests, users
		RESTART IDENTITY CASCADE
	`)

	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

func seedContest(t *testing.T, pool *pgxpool.Pool, creatorEmail, status string, price int64) string {
	t.Helper()

	id := uuid.NewString()

	_, err := pool.Exec(context.Background(), `
		INSERT INTO contests (id, title, contest_type, price, deadline, creator_email, creator_name, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		id, "Poster sprint", "design", price, time.Now().UTC().Add(72*time.Hour), creatorEmail, "Casey", status,
	)

	if err != nil {
		t.Fatalf("seed contest: %v", err)
	}

	return id
}

type apiErrorResponse struct {
	Error struct {
		Code      string          `json:"code"`
		Message   string          `json:"message"`
		RequestID string          `json:"requestId"`
		Details   json.RawMessage `json:"details"`
	} `json:"error"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// newJSONRequest pins a per-test client address so the IP-keyed rate limiter
// never couples independent tests.
func newJSONRequest(method, path, body, clientAddr string) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	req.RemoteAddr = clientAddr

	return req
}

func send(router http.Handler, req *http.Request) (*httptest.ResponseRecorder, *http.Response) {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w, w.Result()
}

func mustReadJSON[T any](t *testing.T, w *httptest.ResponseRecorder, out *T) {
	t.Helper()

	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("unmarshal: %v, body=%s", err, w.Body.String())
	}
}

func refreshCookie(t *testing.T, res *http.Response) *http.Cookie {
	t.Helper()

	for _, c := range res.Cookies() {
		if c.Name == "refresh_token" {
			return c
		}
	}

	t.Fatalf("refresh_token cookie not set")

	return nil
}

func signupAndGetToken(t *testing.T, router http.Handler, clientAddr, email, name string) (string, *http.Cookie) {
	t.Helper()

	body := `{"email":"` + email + `","password":"password-123","name":"` + name + `"}`

	w, res := send(router, newJSONRequest(http.MethodPost, "/auth/signup", body, clientAddr))

	if w.Code != http.StatusCreated {
		t.Fatalf("signup got %d, body=%s", w.Code, w.Body.String())
	}

	var tok tokenResponse
	mustReadJSON(t, w, &tok)

	if tok.AccessToken == "" {
		t.Fatalf("signup returned empty accessToken")
	}

	return tok.AccessToken, refreshCookie(t, res)
}

// promoteToCreator flips the persisted role. The policy gate re-reads roles per
// request, so existing tokens pick this up immediately.
func promoteToCreator(t *testing.T, pool *pgxpool.Pool, email string) {
	t.Helper()

	_, err := pool.Exec(context.Background(), `UPDATE users SET role = 'creator' WHERE email = $1`, email)

	if err != nil {
		t.Fatalf("promote: %v", err)
	}
}

func countRows(t *testing.T, pool *pgxpool.Pool, query string, args ...any) int {
	t.Helper()

	var n int

	if err := pool.QueryRow(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("count query: %v", err)
	}

	return n
}
