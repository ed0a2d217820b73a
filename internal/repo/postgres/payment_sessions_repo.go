package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/artify/contesthub/internal/domain/contest"
	"github.com/artify/contesthub/internal/domain/payment"
	"github.com/artify/contesthub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentSessionsRepo struct {
	pool          *pgxpool.Pool
	prom          *observability.Prom
	registrations *RegistrationsRepo
}

func NewPaymentSessionsRepo(pool *pgxpool.Pool, prom *observability.Prom, registrations *RegistrationsRepo) *PaymentSessionsRepo {
	return &PaymentSessionsRepo{
		pool:          pool,
		prom:          prom,
		registrations: registrations,
	}
}

func (r *PaymentSessionsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const sessionColumns = `session_id, user_email, contest_id, amount, status, payment_intent_id, created_at, paid_at`

func scanSession(row pgx.Row) (payment.Session, error) {
	var s payment.Session

	err := row.Scan(
		&s.SessionID,
		&s.UserEmail,
		&s.ContestID,
		&s.Amount,
		&s.Status,
		&s.PaymentIntentID,
		&s.CreatedAt,
		&s.PaidAt,
	)

	return s, err
}

// Upsert records a pending session keyed by the provider session id. A replayed
// id is a no-op, never a duplicate row.
func (r *PaymentSessionsRepo) Upsert(ctx context.Context, s payment.Session) error {
	return r.observe("payment_sessions.upsert", func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO payment_sessions (session_id, user_email, contest_id, amount, status, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (session_id) DO NOTHING`,
			s.SessionID, s.UserEmail, s.ContestID, s.Amount, s.Status, s.CreatedAt,
		)
		return err
	})
}

func (r *PaymentSessionsRepo) GetBySessionID(ctx context.Context, sessionID string) (payment.Session, error) {
	var s payment.Session

	err := r.observe("payment_sessions.get", func() error {
		var scanErr error
		s, scanErr = scanSession(r.pool.QueryRow(ctx,
			`SELECT `+sessionColumns+` FROM payment_sessions WHERE session_id = $1`, sessionID))
		return scanErr
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payment.Session{}, payment.ErrNotFound
		}

		return payment.Session{}, err
	}

	return s, nil
}

// Confirm reconciles an externally paid session: mark the session paid and
// admit the payer, both inside one transaction and both conditioned on current
// absence. Replaying the same session id changes nothing.
func (r *PaymentSessionsRepo) Confirm(ctx context.Context, sessionID, paymentIntentID string) (s payment.Session, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() { _ = tx.Rollback(ctx) }()

	err = r.observe("payment_sessions.confirm.lock", func() error {
		var scanErr error
		s, scanErr = scanSession(tx.QueryRow(ctx,
			`SELECT `+sessionColumns+` FROM payment_sessions WHERE session_id = $1 FOR UPDATE`,
			sessionID))
		return scanErr
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = payment.ErrNotFound
		}

		return
	}

	now := time.Now().UTC()

	if s.Status == payment.StatusPending {
		err = r.observe("payment_sessions.confirm.mark_paid", func() error {
			var scanErr error
			s, scanErr = scanSession(tx.QueryRow(ctx, `
				UPDATE payment_sessions
				SET status = $2,
				    payment_intent_id = $3,
				    paid_at = $4
				WHERE session_id = $1
				RETURNING `+sessionColumns,
				sessionID, payment.StatusPaid, paymentIntentID, now,
			))
			return scanErr
		})

		if err != nil {
			return
		}
	}

	_, admitErr := r.registrations.AdmitPaidTx(ctx, tx, s.ContestID, s.UserEmail, paymentIntentID, now)

	if admitErr != nil && !errors.Is(admitErr, contest.ErrAlreadyRegistered) {
		err = admitErr
		return
	}

	err = tx.Commit(ctx)
	return
}
