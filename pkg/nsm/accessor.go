package nsm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the read surface shared by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Select describes a read query. Table expressions may use the "table::"
// prefix placeholder. Empty Children and Middle default to Parent.
type Select struct {
	Args     pgx.NamedArgs
	Columns  string
	Parent   string
	Children string
	Middle   string
	// Filter is appended to the generated statement.
	Filter string
}

// Filter is an extra condition on a maintenance statement.
type Filter struct {
	Args pgx.NamedArgs
	Cond string
}

// InsertFunc writes the new row at the given boundaries and returns its id.
type InsertFunc func(ctx context.Context, tx pgx.Tx, lft, rgt int64) (int64, error)

// Option configures an Accessor.
type Option func(*Accessor)

// WithPrefix sets the string substituted for "table::".
func WithPrefix(prefix string) Option {
	return func(a *Accessor) {
		a.prefix = prefix
	}
}

// WithLogger sets the logger for maintenance statements.
func WithLogger(l *slog.Logger) Option {
	return func(a *Accessor) {
		if l != nil {
			a.logger = l
		}
	}
}

// Accessor runs the nested set query family against PostgreSQL.
// It holds no tree state; every call reads from the store.
type Accessor struct {
	logger *slog.Logger
	prefix string
}

// New creates an accessor.
func New(opts ...Option) *Accessor {
	a := &Accessor{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Expand substitutes the table prefix placeholder in sql.
func (a *Accessor) Expand(sql string) string {
	return strings.ReplaceAll(sql, TablePrefix, a.prefix)
}

// Table returns the quoted, prefixed name of a table.
func (a *Accessor) Table(name string) string {
	return pgx.Identifier{a.prefix + name}.Sanitize()
}

// Descendants returns every node strictly inside the parent rows.
func (a *Accessor) Descendants(ctx context.Context, q Querier, s Select) (pgx.Rows, error) {
	return a.query(ctx, q, DescendantsSQL(s.Columns, s.Parent, s.Children, pad(s.Filter)), s.Args)
}

// Children returns the direct children of the parent rows.
func (a *Accessor) Children(ctx context.Context, q Querier, s Select) (pgx.Rows, error) {
	filters := " AND " + ChildAlias + ".id IS NOT NULL" + pad(s.Filter)
	return a.query(ctx, q, ChildrenSQL(s.Columns, s.Parent, s.Middle, s.Children, filters), s.Args)
}

// Roots returns the child-side rows that no parent-side row contains.
func (a *Accessor) Roots(ctx context.Context, q Querier, s Select) (pgx.Rows, error) {
	return a.query(ctx, q, RootSQL(s.Columns, s.Parent, s.Children)+pad(s.Filter), s.Args)
}

// Parent returns the id of the immediate parent of the single child row.
// ok is false when the child is a root.
func (a *Accessor) Parent(ctx context.Context, q Querier, s Select) (id int64, ok bool, err error) {
	var parent *int64
	err = q.QueryRow(ctx, a.Expand(ParentSQL(s.Parent, s.Children)), args(s.Args)...).Scan(&parent)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, ErrNodeNotFound
	}
	if err != nil {
		return 0, false, errors.Join(ErrQueryFailed, err)
	}
	if parent == nil {
		return 0, false, nil
	}
	return *parent, true, nil
}

// Parents returns the ancestors of childID, root first. A non-nil
// lowerBound drops ancestors with lft below it.
func (a *Accessor) Parents(ctx context.Context, q Querier, s Select, childID int64, lowerBound *int64) (pgx.Rows, error) {
	named := merge(s.Args, pgx.NamedArgs{"child_id": childID})
	if lowerBound != nil {
		named["lower_bound"] = *lowerBound
	}
	return a.query(ctx, q, ParentsSQL(s.Columns, s.Parent, s.Children, lowerBound != nil), named)
}

// Position returns the insertion boundary of the single parent row.
func (a *Accessor) Position(ctx context.Context, q Querier, s Select) (Position, error) {
	var p Position
	err := q.QueryRow(ctx, a.Expand(PositionSQL(s.Parent, s.Children)), args(s.Args)...).Scan(&p.Lft, &p.Rgt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Position{}, ErrNodeNotFound
	}
	if err != nil {
		return Position{}, errors.Join(ErrQueryFailed, err)
	}
	return p, nil
}

// Count returns the number of direct children keyed by parent id.
func (a *Accessor) Count(ctx context.Context, q Querier, s Select) (map[int64]int64, error) {
	rows, err := a.query(ctx, q, CountSQL(s.Parent, s.Children), s.Args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int64]int64)
	for rows.Next() {
		var id, cnt int64
		if err := rows.Scan(&id, &cnt); err != nil {
			return nil, errors.Join(ErrQueryFailed, err)
		}
		counts[id] = cnt
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}
	return counts, nil
}

// Path returns the nodes from topID down to bottomID in root-to-leaf order.
// Parent is the top expression, Middle and Children the middle and bottom.
func (a *Accessor) Path(ctx context.Context, q Querier, s Select, topID, bottomID int64) (pgx.Rows, error) {
	named := merge(s.Args, pgx.NamedArgs{"top_id": topID, "bottom_id": bottomID})
	return a.query(ctx, q, PathSQL(s.Columns, s.Parent, s.Middle, s.Children), named)
}

// Nodes loads the structure of a table ordered by lft.
func (a *Accessor) Nodes(ctx context.Context, q Querier, table string, where Filter) ([]Node, error) {
	sql := "SELECT id, lft, rgt FROM " + a.Table(table) + pad(whereClause(where.Cond)) + " ORDER BY lft"
	return Collect[Node](a.query(ctx, q, sql, where.Args))
}

// Node loads a single node by id.
func (a *Accessor) Node(ctx context.Context, q Querier, table string, id int64) (Node, error) {
	n := Node{ID: id}
	err := q.QueryRow(ctx, "SELECT lft, rgt FROM "+a.Table(table)+" WHERE id = @id", pgx.NamedArgs{"id": id}).Scan(&n.Lft, &n.Rgt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Node{}, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	if err != nil {
		return Node{}, errors.Join(ErrQueryFailed, err)
	}
	return n, nil
}

// BeforeInsertChild makes room for a subtree of width offset at parentRgt.
// It must run in the same transaction as, and before, the row insert.
func (a *Accessor) BeforeInsertChild(ctx context.Context, tx pgx.Tx, table string, parentRgt, offset int64, option Filter) (int64, error) {
	if tx == nil {
		return 0, ErrTxRequired
	}
	named := merge(option.Args, pgx.NamedArgs{"parent_rgt": parentRgt, "offset": offset})
	tag, err := tx.Exec(ctx, BeforeInsertChildSQL(a.Table(table), andClause(option.Cond)), named)
	if err != nil {
		return 0, errors.Join(ErrShiftFailed, err)
	}
	a.logger.DebugContext(ctx, "nsm boundaries shifted",
		slog.String("table", table),
		slog.Int64("parent_rgt", parentRgt),
		slog.Int64("offset", offset),
		slog.Int64("rows", tag.RowsAffected()))
	return tag.RowsAffected(), nil
}

// Cleanup renumbers the rows selected by where to a dense 1..2n sequence.
// It is idempotent and locks the table like InsertChild.
func (a *Accessor) Cleanup(ctx context.Context, tx pgx.Tx, table string, where Filter) (int64, error) {
	if tx == nil {
		return 0, ErrTxRequired
	}
	if err := a.Lock(ctx, tx, table); err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, CleanupSQL(a.Table(table), whereClause(where.Cond)), args(where.Args)...)
	if err != nil {
		return 0, errors.Join(ErrCleanupFailed, err)
	}
	a.logger.DebugContext(ctx, "nsm boundaries renumbered",
		slog.String("table", table),
		slog.Int64("rows", tag.RowsAffected()))
	return tag.RowsAffected(), nil
}

// InsertChild adds a leaf as the last child of parentID. The table is
// locked against concurrent writers until tx ends.
func (a *Accessor) InsertChild(ctx context.Context, tx pgx.Tx, table string, parentID int64, option Filter, insert InsertFunc) (Node, error) {
	if tx == nil {
		return Node{}, ErrTxRequired
	}
	if err := a.Lock(ctx, tx, table); err != nil {
		return Node{}, err
	}

	parent, err := a.Node(ctx, tx, table, parentID)
	if err != nil {
		return Node{}, err
	}

	if _, err := a.BeforeInsertChild(ctx, tx, table, parent.Rgt, 2, option); err != nil {
		return Node{}, err
	}

	n := Node{Lft: parent.Rgt, Rgt: parent.Rgt + 1}
	if n.ID, err = insert(ctx, tx, n.Lft, n.Rgt); err != nil {
		return Node{}, errors.Join(ErrInsertFailed, err)
	}
	return n, nil
}

// Remove deletes id and its subtree within the rows selected by where, then
// renumbers them. It returns the number of deleted rows.
func (a *Accessor) Remove(ctx context.Context, tx pgx.Tx, table string, id int64, where Filter) (int64, error) {
	if tx == nil {
		return 0, ErrTxRequired
	}
	if err := a.Lock(ctx, tx, table); err != nil {
		return 0, err
	}

	n, err := a.Node(ctx, tx, table, id)
	if err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, RemoveSQL(a.Table(table), andClause(where.Cond)),
		merge(where.Args, pgx.NamedArgs{"lft": n.Lft, "rgt": n.Rgt}))
	if err != nil {
		return 0, errors.Join(ErrDeleteFailed, err)
	}

	if _, err := a.Cleanup(ctx, tx, table, where); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Lock blocks other tree writers on table until tx ends. Readers are not
// blocked.
func (a *Accessor) Lock(ctx context.Context, tx pgx.Tx, table string) error {
	if tx == nil {
		return ErrTxRequired
	}
	if _, err := tx.Exec(ctx, "LOCK TABLE "+a.Table(table)+" IN SHARE ROW EXCLUSIVE MODE"); err != nil {
		return errors.Join(ErrLockFailed, err)
	}
	return nil
}

func (a *Accessor) query(ctx context.Context, q Querier, sql string, named pgx.NamedArgs) (pgx.Rows, error) {
	rows, err := q.Query(ctx, a.Expand(sql), args(named)...)
	if err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}
	return rows, nil
}

// Collect scans rows into structs by column name. It accepts the results of
// the row-returning accessor methods directly:
//
//	users, err := nsm.Collect[User](acc.Descendants(ctx, pool, sel))
func Collect[T any](rows pgx.Rows, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[T])
	if err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}
	return out, nil
}

func merge(base, extra pgx.NamedArgs) pgx.NamedArgs {
	out := make(pgx.NamedArgs, len(base)+len(extra))
	maps.Copy(out, base)
	maps.Copy(out, extra)
	return out
}

func args(named pgx.NamedArgs) []any {
	if len(named) == 0 {
		return nil
	}
	return []any{named}
}
