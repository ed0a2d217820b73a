package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artify/contesthub/internal/domain/contest"
	"github.com/artify/contesthub/internal/observability"
	"github.com/artify/contesthub/internal/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ContestsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewContestsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ContestsRepo {
	return &ContestsRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *ContestsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const contestColumns = `id, title, image, description, task_instruction, contest_type,
	price, prize_money, deadline, creator_email, creator_name, status,
	participant_count, winner_email, winner_name, winner_image, created_at, updated_at`

// prefixedContestColumns qualifies every contest column with a table alias for
// join queries.
func prefixedContestColumns(alias string) string {
	cols := strings.Split(contestColumns, ",")
	out := make([]string, len(cols))

	for i, c := range cols {
		out[i] = alias + "." + strings.TrimSpace(c)
	}

	return strings.Join(out, ", ")
}

func scanContest(row pgx.Row) (contest.Contest, error) {
	var c contest.Contest

	err := row.Scan(
		&c.ID,
		&c.Title,
		&c.Image,
		&c.Description,
		&c.TaskInstruction,
		&c.ContestType,
		&c.Price,
		&c.PrizeMoney,
		&c.Deadline,
		&c.CreatorEmail,
		&c.CreatorName,
		&c.Status,
		&c.ParticipantCount,
		&c.WinnerEmail,
		&c.WinnerName,
		&c.WinnerImage,
		&c.CreatedAt,
		&c.UpdatedAt,
	)

	return c, err
}

func (r *ContestsRepo) collect(rows pgx.Rows) ([]contest.Contest, error) {
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

func (r *ContestsRepo) Create(ctx context.Context, c contest.Contest) (contest.Contest, error) {
	err := r.observe("contests.create", func() error {
		_, execErr := r.pool.Exec(ctx, `
			INSERT INTO contests (id, title, image, description, task_instruction, contest_type,
				price, prize_money, deadline, creator_email, creator_name, status,
				participant_count, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,0,$13,$14)`,
			c.ID, c.Title, c.Image, c.Description, c.TaskInstruction, c.ContestType,
			c.Price, c.PrizeMoney, c.Deadline, c.CreatorEmail, c.CreatorName, c.Status,
			c.CreatedAt, c.UpdatedAt,
		)
		return execErr
	})

	if err != nil {
		return contest.Contest{}, err
	}

	return c, nil
}

func (r *ContestsRepo) GetByID(ctx context.Context, id string) (contest.Contest, error) {
	var c contest.Contest

	err := r.observe("contests.get_by_id", func() error {
		var scanErr error
		c, scanErr = scanContest(r.pool.QueryRow(ctx,
			`SELECT `+contestColumns+` FROM contests WHERE id = $1`, id))
		return scanErr
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return contest.Contest{}, contest.ErrNotFound
		}

		return contest.Contest{}, err
	}

	return c, nil
}

// ListApprovedCursor returns approved contests newest first. The cursor encodes
// (createdAt, id) of the last seen row; limit+1 detects whether more remain.
func (r *ContestsRepo) ListApprovedCursor(ctx context.Context, limit int, afterCreatedAt time.Time, afterID string) (items []contest.Contest, nextCursor *string, hasMore bool, err error) {
	op := "contests.list_approved_cursor"

	q := `
		SELECT ` + contestColumns + `
		FROM contests
		WHERE status = $1
	`
	args := []interface{}{contest.StatusApproved}

	if afterID != "" {
		q += ` AND (created_at, id) < ($2, $3)`
		args = append(args, afterCreatedAt, afterID)
	}

	q += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit+1)

	var rows pgx.Rows
	err = r.observe(op, func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx, q, args...)
		return qerr
	})
	if err != nil {
		return nil, nil, false, err
	}

	out, err := r.collect(rows)
	if err != nil {
		return nil, nil, false, err
	}

	if len(out) > limit {
		hasMore = true
		out = out[:limit]
		last := out[len(out)-1]
		cur, encErr := utils.EncodeContestCursor(last.CreatedAt, last.ID)
		if encErr != nil {
			return nil, nil, false, encErr
		}
		nextCursor = &cur
	}

	return out, nextCursor, hasMore, nil
}

// ListPopular orders approved contests by admitted-participant count, ties
// broken by newest creation time then id.
func (r *ContestsRepo) ListPopular(ctx context.Context, limit int) ([]contest.Contest, error) {
	var rows pgx.Rows
	var err error

	err = r.observe("contests.list_popular", func() error {
		rows, err = r.pool.Query(ctx, `
			SELECT `+contestColumns+`
			FROM contests
			WHERE status = $1
			ORDER BY participant_count DESC, created_at DESC, id ASC
			LIMIT $2`,
			contest.StatusApproved, limit,
		)
		return err
	})

	if err != nil {
		return nil, err
	}

	return r.collect(rows)
}

// SearchByType matches contest_type case-insensitively as a substring.
// Only approved contests are searchable.
func (r *ContestsRepo) SearchByType(ctx context.Context, typeSubstring string) ([]contest.Contest, error) {
	pattern := "%" + escapeLike(typeSubstring) + "%"

	var rows pgx.Rows
	var err error

	err = r.observe("contests.search_by_type", func() error {
		rows, err = r.pool.Query(ctx, `
			SELECT `+contestColumns+`
			FROM contests
			WHERE status = $1 AND contest_type ILIKE $2
			ORDER BY created_at DESC, id ASC`,
			contest.StatusApproved, pattern,
		)
		return err
	})

	if err != nil {
		return nil, err
	}

	return r.collect(rows)
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func (r *ContestsRepo) ListByCreator(ctx context.Context, creatorEmail string) ([]contest.Contest, error) {
	var rows pgx.Rows
	var err error

	err = r.observe("contests.list_by_creator", func() error {
		rows, err = r.pool.Query(ctx, `
			SELECT `+contestColumns+`
			FROM contests
			WHERE creator_email = $1
			ORDER BY created_at DESC, id ASC`,
			creatorEmail,
		)
		return err
	})

	if err != nil {
		return nil, err
	}

	return r.collect(rows)
}

func (r *ContestsRepo) ListAll(ctx context.Context) ([]contest.Contest, error) {
	var rows pgx.Rows
	var err error

	err = r.observe("contests.list_all", func() error {
		rows, err = r.pool.Query(ctx,
			`SELECT `+contestColumns+` FROM contests ORDER BY created_at DESC, id ASC`)
		return err
	})

	if err != nil {
		return nil, err
	}

	return r.collect(rows)
}

// Update applies a creator edit. The row is locked first so the ownership and
// pending-status guards hold for the duration of the write.
func (r *ContestsRepo) Update(ctx context.Context, id, actorEmail string, req contest.UpdateContestRequest) (updated contest.Contest, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() { _ = tx.Rollback(ctx) }()

	current, err := r.lockContest(ctx, tx, id)
	if err != nil {
		return
	}

	if current.CreatorEmail != actorEmail {
		err = contest.ErrNotOwner
		return
	}

	if current.Status != contest.StatusPending {
		err = contest.ErrNotEditable
		return
	}

	merged := mergeUpdate(current, req)

	err = r.observe("contests.update", func() error {
		var scanErr error
		updated, scanErr = scanContest(tx.QueryRow(ctx, `
			UPDATE contests
			SET title = $2,
			    image = $3,
			    description = $4,
			    task_instruction = $5,
			    contest_type = $6,
			    price = $7,
			    prize_money = $8,
			    deadline = $9,
			    updated_at = NOW()
			WHERE id = $1
			RETURNING `+contestColumns,
			id, merged.Title, merged.Image, merged.Description, merged.TaskInstruction,
			merged.ContestType, merged.Price, merged.PrizeMoney, merged.Deadline,
		))
		return scanErr
	})

	if err != nil {
		return
	}

	err = tx.Commit(ctx)
	return
}

func mergeUpdate(c contest.Contest, req contest.UpdateContestRequest) contest.Contest {
	if req.Title != nil {
		c.Title = *req.Title
	}
	if req.Image != nil {
		c.Image = *req.Image
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	if req.TaskInstruction != nil {
		c.TaskInstruction = *req.TaskInstruction
	}
	if req.ContestType != nil {
		c.ContestType = *req.ContestType
	}
	if req.Price != nil {
		c.Price = *req.Price
	}
	if req.PrizeMoney != nil {
		c.PrizeMoney = *req.PrizeMoney
	}
	if req.Deadline != nil {
		c.Deadline = *req.Deadline
	}
	return c
}

// DeleteByCreator enforces the same ownership/pending guards as Update.
func (r *ContestsRepo) DeleteByCreator(ctx context.Context, id, actorEmail string) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() { _ = tx.Rollback(ctx) }()

	current, err := r.lockContest(ctx, tx, id)
	if err != nil {
		return
	}

	if current.CreatorEmail != actorEmail {
		err = contest.ErrNotOwner
		return
	}

	if current.Status != contest.StatusPending {
		err = contest.ErrNotEditable
		return
	}

	err = r.observe("contests.delete", func() error {
		_, execErr := tx.Exec(ctx, `DELETE FROM contests WHERE id = $1`, id)
		return execErr
	})

	if err != nil {
		return
	}

	err = tx.Commit(ctx)
	return
}

func (r *ContestsRepo) SetStatus(ctx context.Context, id, status string) (contest.Contest, error) {
	var c contest.Contest

	err := r.observe("contests.set_status", func() error {
		var scanErr error
		c, scanErr = scanContest(r.pool.QueryRow(ctx, `
			UPDATE contests
			SET status = $2,
			    updated_at = NOW()
			WHERE id = $1
			RETURNING `+contestColumns,
			id, status,
		))
		return scanErr
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return contest.Contest{}, contest.ErrNotFound
		}

		return contest.Contest{}, err
	}

	return c, nil
}

func (r *ContestsRepo) AdminDelete(ctx context.Context, id string) error {
	var tag int64

	err := r.observe("contests.admin_delete", func() error {
		res, execErr := r.pool.Exec(ctx, `DELETE FROM contests WHERE id = $1`, id)
		tag = res.RowsAffected()
		return execErr
	})

	if err != nil {
		return err
	}

	if tag == 0 {
		return contest.ErrNotFound
	}

	return nil
}

func (r *ContestsRepo) lockContest(ctx context.Context, tx pgx.Tx, id string) (contest.Contest, error) {
	var c contest.Contest

	err := r.observe("contests.lock", func() error {
		var scanErr error
		c, scanErr = scanContest(tx.QueryRow(ctx,
			`SELECT `+contestColumns+` FROM contests WHERE id = $1 FOR UPDATE`, id))
		return scanErr
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return contest.Contest{}, contest.ErrNotFound
		}

		return contest.Contest{}, err
	}

	return c, nil
}
