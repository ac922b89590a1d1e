package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arklim/maintenance-service/internal/core/domain"
	"github.com/arklim/maintenance-service/internal/core/port"
	"github.com/arklim/maintenance-service/internal/repository"
)

const schema = "maintenance"

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// table describes how a resource maps onto its PostgreSQL table.
type table[T any] struct {
	name    string
	columns []string
	// patchable lists the columns an update may touch.
	patchable map[string]struct{}
	scan      func(row pgx.Row, dst *T) error
	values    func(src *T) map[string]any
	orderBy   string
	// guardUpdate may add derived columns to set and return a condition the row must still meet.
	// A row that exists but fails the condition yields guardErr.
	guardUpdate func(set map[string]any) squirrel.Sqlizer
	guardErr    error
}

func (t table[T]) qualified() string {
	return schema + "." + t.name
}

// ResourceRepository is a squirrel/pgx implementation of port.ResourceRepository for one table.
type ResourceRepository[T any] struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	table   table[T]
}

func newResourceRepository[T any](exec pgExecutor, tbl table[T]) *ResourceRepository[T] {
	return &ResourceRepository[T]{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		table:   tbl,
	}
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *ResourceRepository[T]) WithTx(tx pgx.Tx) *ResourceRepository[T] {
	if tx == nil {
		return r
	}
	return &ResourceRepository[T]{exec: tx, builder: r.builder, table: r.table}
}

// FindByID loads a single row.
func (r *ResourceRepository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	stmt, args, err := r.builder.Select(r.table.columns...).
		From(r.table.qualified()).
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select %s sql: %w", r.table.name, err)
	}

	var item T
	if err := r.table.scan(r.exec.QueryRow(ctx, stmt, args...), &item); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan %s: %w", r.table.name, err)
	}

	return &item, nil
}

// FindAllByOwner lists rows owned by ownerID. Served by the owner_id index.
func (r *ResourceRepository[T]) FindAllByOwner(ctx context.Context, ownerID string) ([]T, error) {
	return r.list(ctx, squirrel.Eq{"owner_id": ownerID})
}

// FindAll lists every row regardless of owner.
func (r *ResourceRepository[T]) FindAll(ctx context.Context) ([]T, error) {
	return r.list(ctx, nil)
}

// Insert stores payload. Timestamps are assigned by the database.
func (r *ResourceRepository[T]) Insert(ctx context.Context, payload *T) error {
	stmt, args, err := r.builder.Insert(r.table.qualified()).
		SetMap(r.table.values(payload)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert %s sql: %w", r.table.name, err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert %s: %w", r.table.name, err)
	}

	return nil
}

// Update applies patch. Columns outside the table's patchable set fail with domain.ErrInvalidPatch.
// Tables with an update guard only touch rows still meeting it.
func (r *ResourceRepository[T]) Update(ctx context.Context, id string, patch domain.Patch) error {
	if len(patch) == 0 {
		return fmt.Errorf("update %s: %w: empty patch", r.table.name, domain.ErrInvalidPatch)
	}

	var rejected []string
	set := make(map[string]any, len(patch)+1)
	for column, value := range patch {
		if _, ok := r.table.patchable[column]; !ok {
			rejected = append(rejected, column)
			continue
		}
		set[column] = value
	}
	if len(rejected) > 0 {
		sort.Strings(rejected)
		return fmt.Errorf("update %s: %w: %s", r.table.name, domain.ErrInvalidPatch, strings.Join(rejected, ", "))
	}
	set["updated_at"] = squirrel.Expr("NOW()")

	var guard squirrel.Sqlizer
	if r.table.guardUpdate != nil {
		guard = r.table.guardUpdate(set)
	}

	query := r.builder.Update(r.table.qualified()).
		SetMap(set).
		Where(squirrel.Eq{"id": id})
	if guard != nil {
		query = query.Where(guard)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build update %s sql: %w", r.table.name, err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", r.table.name, err)
	}
	if tag.RowsAffected() == 0 {
		if guard == nil {
			return repository.ErrNotFound
		}
		return r.missOrRefused(ctx, id, r.table.guardErr)
	}

	return nil
}

// missOrRefused explains a conditional write that touched no row.
func (r *ResourceRepository[T]) missOrRefused(ctx context.Context, id string, refused error) error {
	stmt, args, err := r.builder.Select("1").
		From(r.table.qualified()).
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return fmt.Errorf("build select %s exists sql: %w", r.table.name, err)
	}

	var one int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("check %s exists: %w", r.table.name, err)
	}
	return fmt.Errorf("%s %s: %w", r.table.name, id, refused)
}

// Delete removes the row.
func (r *ResourceRepository[T]) Delete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Delete(r.table.qualified()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete %s sql: %w", r.table.name, err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", r.table.name, err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// OwnerOf resolves the owner of an existing row.
func (r *ResourceRepository[T]) OwnerOf(ctx context.Context, id string) (string, error) {
	stmt, args, err := r.builder.Select("owner_id").
		From(r.table.qualified()).
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build select %s owner sql: %w", r.table.name, err)
	}

	var owner string
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&owner); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("scan %s owner: %w", r.table.name, err)
	}

	return owner, nil
}

func (r *ResourceRepository[T]) list(ctx context.Context, where squirrel.Sqlizer) ([]T, error) {
	query := r.builder.Select(r.table.columns...).From(r.table.qualified())
	if where != nil {
		query = query.Where(where)
	}
	if r.table.orderBy != "" {
		query = query.OrderBy(r.table.orderBy)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list %s sql: %w", r.table.name, err)
	}

	return r.collect(ctx, stmt, args)
}

func (r *ResourceRepository[T]) collect(ctx context.Context, stmt string, args []any) ([]T, error) {
	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.table.name, err)
	}
	defer rows.Close()

	items := make([]T, 0)
	for rows.Next() {
		var item T
		if err := r.table.scan(rows, &item); err != nil {
			return nil, fmt.Errorf("scan %s: %w", r.table.name, err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", r.table.name, err)
	}

	return items, nil
}

func columnSet(columns ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(columns))
	for _, column := range columns {
		set[column] = struct{}{}
	}
	return set
}

var _ port.ResourceRepository[domain.Client] = (*ResourceRepository[domain.Client])(nil)
