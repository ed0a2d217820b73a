package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/artify/contesthub/internal/domain/contest"
	"github.com/artify/contesthub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RegistrationsRepo owns the participant and submission sets of a contest.
// Appends are conditional statements so concurrent duplicates collapse onto the
// (contest_id, email) primary key instead of racing a read-then-write.
type RegistrationsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewRegistrationsRepo(pool *pgxpool.Pool, prom *observability.Prom) *RegistrationsRepo {
	return &RegistrationsRepo{
		pool: pool,
		prom: prom,
	}
}

func (repo *RegistrationsRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {
		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

// Register admits email to the contest. Runs in one transaction: existence
// check, conditional insert, counter bump.
func (repo *RegistrationsRepo) Register(ctx context.Context, contestID, email string) (p contest.Participant, err error) {
	tx, err := repo.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() { _ = tx.Rollback(ctx) }()

	err = repo.ensureContestExists(ctx, tx, contestID)
	if err != nil {
		return
	}

	p, err = repo.admitTx(ctx, tx, contestID, email, nil, nil)
	if err != nil {
		return
	}

	err = tx.Commit(ctx)
	return
}

// admitTx appends a participant if absent and keeps participant_count in step.
// paymentIntentID/paidAt are set for paid admissions only.
func (repo *RegistrationsRepo) admitTx(ctx context.Context, tx pgx.Tx, contestID, email string, paymentIntentID *string, paidAt *time.Time) (contest.Participant, error) {
	p := contest.Participant{
		ContestID: contestID,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}

	if paidAt != nil {
		paid := "paid"
		p.PaymentStatus = &paid
		p.PaymentIntentID = paymentIntentID
		p.PaidAt = paidAt
	}

	var inserted bool

	err := repo.observe("registrations.admit", func() error {
		return tx.QueryRow(ctx, `
			INSERT INTO participants (contest_id, email, payment_status, payment_intent_id, paid_at, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (contest_id, email) DO NOTHING
			RETURNING true`,
			p.ContestID, p.Email, p.PaymentStatus, p.PaymentIntentID, p.PaidAt, p.CreatedAt,
		).Scan(&inserted)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return contest.Participant{}, contest.ErrAlreadyRegistered
		}

		return contest.Participant{}, err
	}

	err = repo.observe("registrations.bump_count", func() error {
		_, execErr := tx.Exec(ctx,
			`UPDATE contests SET participant_count = participant_count + 1 WHERE id = $1`,
			contestID)
		return execErr
	})

	if err != nil {
		return contest.Participant{}, err
	}

	return p, nil
}

// AdmitPaidTx appends a paid participant inside the caller's transaction.
// Returns contest.ErrAlreadyRegistered when the email is already admitted.
func (repo *RegistrationsRepo) AdmitPaidTx(ctx context.Context, tx pgx.Tx, contestID, email, paymentIntentID string, paidAt time.Time) (contest.Participant, error) {
	return repo.admitTx(ctx, tx, contestID, email, &paymentIntentID, &paidAt)
}

func (repo *RegistrationsRepo) ensureContestExists(ctx context.Context, tx pgx.Tx, contestID string) error {
	var dummy string

	err := repo.observe("registrations.check_contest", func() error {
		return tx.QueryRow(ctx, `SELECT id FROM contests WHERE id = $1 FOR UPDATE`, contestID).Scan(&dummy)
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return contest.ErrNotFound
	}

	return err
}

// IsRegistered reports whether email is already a participant.
func (repo *RegistrationsRepo) IsRegistered(ctx context.Context, contestID, email string) (bool, error) {
	var registered bool

	err := repo.observe("registrations.is_registered", func() error {
		return repo.pool.QueryRow(ctx, `SELECT EXISTS(
			SELECT 1 FROM participants
			WHERE contest_id = $1 AND email = $2
		)`, contestID, email).Scan(&registered)
	})

	return registered, err
}

// SubmitTask records one submission per registered participant.
func (repo *RegistrationsRepo) SubmitTask(ctx context.Context, contestID, email, name, image, taskLink string) (sub contest.Submission, err error) {
	tx, err := repo.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() { _ = tx.Rollback(ctx) }()

	err = repo.ensureContestExists(ctx, tx, contestID)
	if err != nil {
		return
	}

	var registered bool

	err = repo.observe("registrations.submit.registered_check", func() error {
		return tx.QueryRow(ctx, `SELECT EXISTS(
			SELECT 1 FROM participants
			WHERE contest_id = $1 AND email = $2
		)`, contestID, email).Scan(&registered)
	})

	if err != nil {
		return
	}

	if !registered {
		err = contest.ErrNotRegistered
		return
	}

	sub = contest.Submission{
		ContestID:   contestID,
		Email:       email,
		Name:        name,
		Image:       image,
		TaskLink:    taskLink,
		SubmittedAt: time.Now().UTC(),
	}

	var inserted bool

	err = repo.observe("registrations.submit.insert", func() error {
		return tx.QueryRow(ctx, `
			INSERT INTO submissions (contest_id, email, name, image, task_link, submitted_at)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (contest_id, email) DO NOTHING
			RETURNING true`,
			sub.ContestID, sub.Email, sub.Name, sub.Image, sub.TaskLink, sub.SubmittedAt,
		).Scan(&inserted)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = contest.ErrAlreadySubmitted
		}

		return
	}

	err = tx.Commit(ctx)
	return
}

// DeclareWinner sets the winner fields. The winner must already be a
// participant; display name and image resolve from the users table first, then
// the matching submission, then fall back to "Unknown"/null. Contest status is
// left alone.
func (repo *RegistrationsRepo) DeclareWinner(ctx context.Context, contestID, creatorEmail, winnerEmail string) (updated contest.Contest, err error) {
	tx, err := repo.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() { _ = tx.Rollback(ctx) }()

	var ownerEmail string

	err = repo.observe("registrations.winner.lock_contest", func() error {
		return tx.QueryRow(ctx,
			`SELECT creator_email FROM contests WHERE id = $1 FOR UPDATE`, contestID,
		).Scan(&ownerEmail)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = contest.ErrNotFound
		}

		return
	}

	if ownerEmail != creatorEmail {
		err = contest.ErrNotOwner
		return
	}

	var isParticipant bool

	err = repo.observe("registrations.winner.participant_check", func() error {
		return tx.QueryRow(ctx, `SELECT EXISTS(
			SELECT 1 FROM participants
			WHERE contest_id = $1 AND email = $2
		)`, contestID, winnerEmail).Scan(&isParticipant)
	})

	if err != nil {
		return
	}

	if !isParticipant {
		err = contest.ErrWinnerNotParticipant
		return
	}

	winnerName, winnerImage, err := repo.resolveWinnerIdentity(ctx, tx, contestID, winnerEmail)
	if err != nil {
		return
	}

	err = repo.observe("registrations.winner.update", func() error {
		var scanErr error
		updated, scanErr = scanContest(tx.QueryRow(ctx, `
			UPDATE contests
			SET winner_email = $2,
			    winner_name = $3,
			    winner_image = $4,
			    updated_at = NOW()
			WHERE id = $1
			RETURNING `+contestColumns,
			contestID, winnerEmail, winnerName, winnerImage,
		))
		return scanErr
	})

	if err != nil {
		return
	}

	err = tx.Commit(ctx)
	return
}

// resolveWinnerIdentity falls through users -> submission -> "Unknown" on
// missing rows only; any other store error fails the declaration.
func (repo *RegistrationsRepo) resolveWinnerIdentity(ctx context.Context, tx pgx.Tx, contestID, winnerEmail string) (string, *string, error) {
	var name, photo string

	err := repo.observe("registrations.winner.resolve_user", func() error {
		return tx.QueryRow(ctx,
			`SELECT name, photo_url FROM users WHERE email = $1`, winnerEmail,
		).Scan(&name, &photo)
	})

	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return "", nil, err
	}

	if err == nil && name != "" {
		return name, nilIfEmpty(photo), nil
	}

	err = repo.observe("registrations.winner.resolve_submission", func() error {
		return tx.QueryRow(ctx,
			`SELECT name, image FROM submissions WHERE contest_id = $1 AND email = $2`,
			contestID, winnerEmail,
		).Scan(&name, &photo)
	})

	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return "", nil, err
	}

	if err == nil && name != "" {
		return name, nilIfEmpty(photo), nil
	}

	return "Unknown", nil, nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (repo *RegistrationsRepo) ListSubmissions(ctx context.Context, contestID string) ([]contest.Submission, error) {
	var rows pgx.Rows
	var err error

	err = repo.observe("registrations.list_submissions", func() error {
		rows, err = repo.pool.Query(ctx, `
			SELECT contest_id, email, name, image, task_link, submitted_at
			FROM submissions
			WHERE contest_id = $1
			ORDER BY submitted_at ASC, email ASC`,
			contestID,
		)
		return err
	})

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	subs := make([]contest.Submission, 0)

	for rows.Next() {
		var s contest.Submission

		if scanErr := rows.Scan(&s.ContestID, &s.Email, &s.Name, &s.Image, &s.TaskLink, &s.SubmittedAt); scanErr != nil {
			return nil, scanErr
		}

		subs = append(subs, s)
	}

	return subs, rows.Err()
}

func (repo *RegistrationsRepo) ListParticipants(ctx context.Context, contestID string) ([]contest.Participant, error) {
	var rows pgx.Rows
	var err error

	err = repo.observe("registrations.list_participants", func() error {
		rows, err = repo.pool.Query(ctx, `
			SELECT contest_id, email, payment_status, payment_intent_id, paid_at, created_at
			FROM participants
			WHERE contest_id = $1
			ORDER BY created_at ASC, email ASC`,
			contestID,
		)
		return err
	})

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	out := make([]contest.Participant, 0)

	for rows.Next() {
		var p contest.Participant

		if scanErr := rows.Scan(&p.ContestID, &p.Email, &p.PaymentStatus, &p.PaymentIntentID, &p.PaidAt, &p.CreatedAt); scanErr != nil {
			return nil, scanErr
		}

		out = append(out, p)
	}

	return out, rows.Err()
}

// ListParticipatedFor projects contests the email is registered in.
func (repo *RegistrationsRepo) ListParticipatedFor(ctx context.Context, email string) ([]contest.Contest, error) {
	var rows pgx.Rows
	var err error

	err = repo.observe("registrations.list_participated", func() error {
		rows, err = repo.pool.Query(ctx, `
			SELECT `+prefixedContestColumns("c")+`
			FROM contests c
			JOIN participants p ON p.contest_id = c.id
			WHERE p.email = $1
			ORDER BY p.created_at DESC, c.id ASC`,
			email,
		)
		return err
	})

	if err != nil {
		return nil, err
	}

	return collectContests(rows)
}

// ListWonFor projects contests the email has won.
func (repo *RegistrationsRepo) ListWonFor(ctx context.Context, email string) ([]contest.Contest, error) {
	var rows pgx.Rows
	var err error

	err = repo.observe("registrations.list_won", func() error {
		rows, err = repo.pool.Query(ctx, `
			SELECT `+contestColumns+`
			FROM contests
			WHERE winner_email = $1
			ORDER BY updated_at DESC, id ASC`,
			email,
		)
		return err
	})

	if err != nil {
		return nil, err
	}

	return collectContests(rows)
}

func collectContests(rows pgx.Rows) ([]contest.Contest, error) {
	defer rows.Close()

	out := make([]contest.Contest, 0)

	for rows.Next() {
		c, err := scanContest(rows)

		if err != nil {
			return nil, err
		}

		out = append(out, c)
	}

	return out, rows.Err()
}
