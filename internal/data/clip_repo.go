package data

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"time"

	"clipstash/internal/domain"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Compile-time interface check
var _ domain.ClipRepository = (*clipRepo)(nil)

const pqUniqueViolation = "23505"

// clipRepo implements domain.ClipRepository with ent's SQL builders.
type clipRepo struct {
	data *Data
	log  *log.Helper
}

// NewClipRepo creates the clip repository, cached when redis is configured.
func NewClipRepo(data *Data, cache ClipCache, logger log.Logger) domain.ClipRepository {
	repo := &clipRepo{
		data: data,
		log:  log.NewHelper(log.With(logger, "module", "data/clip")),
	}
	return NewCachedClipRepository(repo, cache)
}

// conn returns the transaction if in one, otherwise the driver.
func (r *clipRepo) conn(ctx context.Context) dialect.ExecQuerier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.data.db
}

func (r *clipRepo) builder() *sql.DialectBuilder {
	return sql.Dialect(r.data.db.Dialect())
}

// Save inserts a new clip or updates the mutable fields of a stored one.
func (r *clipRepo) Save(ctx context.Context, c *domain.Clip) error {
	conn := r.conn(ctx)

	if c.ID() == "" {
		c.AssignID()
		query, args := r.builder().Insert(clipsTableName).
			Columns(clipColumnNames...).
			Values(
				c.ID(),
				c.ShortCode().String(),
				c.Content(),
				c.Title(),
				c.Posted(),
				timeArg(c.Expires()),
				c.Password(),
				int64(c.Hits()),
			).
			Query()
		if err := conn.Exec(ctx, query, args, nil); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", domain.ErrShortCodeExists, c.ShortCode())
			}
			return err
		}
		return nil
	}

	update := r.builder().Update(clipsTableName).
		Set(columnContent, c.Content()).
		Set(columnTitle, c.Title()).
		Set(columnPassword, c.Password()).
		Where(sql.EQ(columnID, c.ID()))
	if expires := c.Expires(); expires != nil {
		update.Set(columnExpires, *expires)
	} else {
		update.SetNull(columnExpires)
	}
	query, args := update.Query()
	return execOne(ctx, conn, query, args)
}

// FindByShortCode retrieves a clip by its short code.
func (r *clipRepo) FindByShortCode(ctx context.Context, code domain.ShortCode) (*domain.Clip, error) {
	query, args := r.builder().Select(clipColumnNames...).
		From(sql.Table(clipsTableName)).
		Where(sql.EQ(columnShortCode, code.String())).
		Query()

	rows := &sql.Rows{}
	if err := r.conn(ctx).Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, domain.ErrClipNotFound
	}
	return scanClip(rows)
}

// IncrementHits adds delta to the hit count of code. Inside a transaction
// the update runs under a savepoint, so a failure rolls back this key only
// and leaves the transaction usable for the remaining keys.
func (r *clipRepo) IncrementHits(ctx context.Context, code domain.ShortCode, delta uint64) error {
	if delta == 0 {
		return nil
	}

	query, args := r.builder().Update(clipsTableName).
		Add(columnHits, int64(delta)).
		Where(sql.EQ(columnShortCode, code.String())).
		Query()

	tx := TxFromContext(ctx)
	if tx == nil {
		return execOne(ctx, r.data.db, query, args)
	}
	return savepoint(ctx, tx, "increment_hits", func() error {
		return execOne(ctx, tx, query, args)
	})
}

// DeleteExpired removes every clip with expires at or before now.
func (r *clipRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	_, n, err := r.deleteExpired(ctx, now)
	return n, err
}

// deleteExpired also returns the codes it removed, so the cache can drop
// them. A single DELETE ... RETURNING keeps the two in step with concurrent
// writers.
func (r *clipRepo) deleteExpired(ctx context.Context, now time.Time) ([]domain.ShortCode, int64, error) {
	query, args := r.builder().Delete(clipsTableName).
		Where(sql.And(sql.NotNull(columnExpires), sql.LTE(columnExpires, now.UTC()))).
		Query()
	query += " RETURNING " + columnShortCode

	rows := &sql.Rows{}
	if err := r.conn(ctx).Query(ctx, query, args, rows); err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		codes []domain.ShortCode
		n     int64
	)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, 0, err
		}
		n++
		if sc, err := domain.NewShortCode(code); err == nil {
			codes = append(codes, sc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return codes, n, nil
}

func scanClip(rows *sql.Rows) (*domain.Clip, error) {
	var (
		id, code, content, title, password string
		posted                             time.Time
		expires                            stdsql.NullTime
		hits                               int64
	)
	if err := rows.Scan(&id, &code, &content, &title, &posted, &expires, &password, &hits); err != nil {
		return nil, err
	}

	shortCode, err := domain.NewShortCode(code)
	if err != nil {
		return nil, fmt.Errorf("stored clip %s: %w", id, err)
	}
	var expiresAt *time.Time
	if expires.Valid {
		expiresAt = &expires.Time
	}
	return domain.ReconstructClip(id, shortCode, content, title, posted, expiresAt, password, uint64(hits)), nil
}

// execOne runs query and reports ErrClipNotFound when it touched no row.
func execOne(ctx context.Context, conn dialect.ExecQuerier, query string, args []any) error {
	var res stdsql.Result
	if err := conn.Exec(ctx, query, args, &res); err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrClipNotFound
	}
	return nil
}

func savepoint(ctx context.Context, conn dialect.ExecQuerier, name string, fn func() error) error {
	if err := conn.Exec(ctx, "SAVEPOINT "+name, []any{}, nil); err != nil {
		return err
	}
	if err := fn(); err != nil {
		if rbErr := conn.Exec(ctx, "ROLLBACK TO SAVEPOINT "+name, []any{}, nil); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		_ = conn.Exec(ctx, "RELEASE SAVEPOINT "+name, []any{}, nil)
		return err
	}
	return conn.Exec(ctx, "RELEASE SAVEPOINT "+name, []any{}, nil)
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	return false
}
