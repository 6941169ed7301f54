// Package users keeps the user hierarchy in a nested set table.
package users

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/canopyhq/canopy/internal"
	"github.com/canopyhq/canopy/pkg/cache"
	"github.com/canopyhq/canopy/pkg/db"
	"github.com/canopyhq/canopy/pkg/nsm"
)

// Table is the nested set table holding users.
const Table = "users"

const (
	columns       = "id, uname, fullname, email, note, admin, lft, rgt, created_at"
	uniqueViolate = "23505"
)

// inTree selects the rows that take part in the tree.
var inTree = nsm.Filter{Cond: "lft IS NOT NULL"}

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	nsm.Querier
	db.Beginner
}

// Store reads and writes users.
type Store struct {
	db       DB
	acc      *nsm.Accessor
	perms    cache.Cache[Permissions]
	logger   *slog.Logger
	permTTL  time.Duration
	hashCost int

	// dummy is compared against when the user name is unknown so both
	// paths cost one bcrypt comparison.
	dummy []byte
}

// Option configures a Store.
type Option func(*Store)

// WithPermissionCache caches permission sets for ttl.
func WithPermissionCache(c cache.Cache[Permissions], ttl time.Duration) Option {
	return func(s *Store) {
		s.perms = c
		s.permTTL = ttl
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHashCost sets the bcrypt cost for new passwords.
func WithHashCost(cost int) Option {
	return func(s *Store) {
		s.hashCost = cost
	}
}

// New creates a store over the users table.
func New(db DB, acc *nsm.Accessor, opts ...Option) *Store {
	s := &Store{
		db:       db,
		acc:      acc,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		hashCost: bcrypt.DefaultCost,
		permTTL:  time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.perms == nil {
		s.perms = cache.NewMemory[Permissions](cache.WithTTL(s.permTTL))
	}
	s.dummy, _ = bcrypt.GenerateFromPassword([]byte("canopy"), s.hashCost)
	return s
}

// Authenticate checks a user name and password and returns the user id.
func (s *Store) Authenticate(ctx context.Context, uname, upass string) (string, error) {
	var (
		id   int64
		hash string
	)
	err := s.db.QueryRow(ctx,
		s.acc.Expand("SELECT id, upass FROM table::users WHERE uname = @uname AND lft IS NOT NULL"),
		pgx.NamedArgs{"uname": strings.TrimSpace(uname)},
	).Scan(&id, &hash)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		_ = bcrypt.CompareHashAndPassword(s.dummy, []byte(upass))
		return "", internal.ErrInvalidCredentials
	case err != nil:
		return "", errors.Join(ErrQueryFailed, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(upass)); err != nil {
		return "", internal.ErrInvalidCredentials
	}
	return strconv.FormatInt(id, 10), nil
}

// Get loads one user.
func (s *Store) Get(ctx context.Context, id int64) (User, error) {
	rows, err := s.db.Query(ctx,
		s.acc.Expand("SELECT "+columns+" FROM table::users WHERE id = @id AND lft IS NOT NULL"),
		pgx.NamedArgs{"id": id})
	if err != nil {
		return User{}, errors.Join(ErrQueryFailed, err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[User])
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return User{}, errors.Join(ErrQueryFailed, err)
	}
	return u, nil
}

// GetByName loads one user by user name.
func (s *Store) GetByName(ctx context.Context, uname string) (User, error) {
	var id int64
	err := s.db.QueryRow(ctx,
		s.acc.Expand("SELECT id FROM table::users WHERE uname = @uname"),
		pgx.NamedArgs{"uname": uname}).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, fmt.Errorf("%w: %s", ErrNotFound, uname)
	}
	if err != nil {
		return User{}, errors.Join(ErrQueryFailed, err)
	}
	return s.Get(ctx, id)
}

// Descendants lists every user below id, in tree order.
func (s *Store) Descendants(ctx context.Context, id int64) ([]User, error) {
	return nsm.Collect[User](s.acc.Descendants(ctx, s.db, nsm.Select{
		Columns:  prefixed("children"),
		Parent:   "(SELECT * FROM table::users WHERE id = @id)",
		Children: "(SELECT * FROM table::users WHERE lft IS NOT NULL)",
		Filter:   "ORDER BY children.lft",
		Args:     pgx.NamedArgs{"id": id},
	}))
}

// Children lists the direct children of id, in tree order.
func (s *Store) Children(ctx context.Context, id int64) ([]User, error) {
	all := "(SELECT * FROM table::users WHERE lft IS NOT NULL)"
	return nsm.Collect[User](s.acc.Children(ctx, s.db, nsm.Select{
		Columns:  prefixed("children"),
		Parent:   "(SELECT * FROM table::users WHERE id = @id)",
		Children: all,
		Middle:   all,
		Filter:   "ORDER BY children.lft",
		Args:     pgx.NamedArgs{"id": id},
	}))
}

// ChildCounts returns the number of direct children of id and of each of
// its descendants, keyed by user id.
func (s *Store) ChildCounts(ctx context.Context, id int64) (map[int64]int64, error) {
	return s.acc.Count(ctx, s.db, nsm.Select{
		Parent: "(SELECT u.* FROM table::users u, table::users top" +
			" WHERE top.id = @id AND u.lft BETWEEN top.lft AND top.rgt)",
		Children: "(SELECT * FROM table::users WHERE lft IS NOT NULL)",
		Args:     pgx.NamedArgs{"id": id},
	})
}

// Ancestors lists the users above id, root first. A non-nil floor stops
// at that user.
func (s *Store) Ancestors(ctx context.Context, id int64, floor *User) ([]User, error) {
	var bound *int64
	if floor != nil {
		bound = &floor.Lft
	}
	return nsm.Collect[User](s.acc.Parents(ctx, s.db, nsm.Select{
		Columns: prefixed("parent"),
		Parent:  "(SELECT * FROM table::users WHERE lft IS NOT NULL)",
	}, id, bound))
}

// Path lists the users from top down to bottom, both included. It is
// empty when bottom is not in the subtree of top.
func (s *Store) Path(ctx context.Context, top, bottom int64) ([]User, error) {
	return nsm.Collect[User](s.acc.Path(ctx, s.db, nsm.Select{
		Columns: prefixed("middle"),
		Parent:  "(SELECT * FROM table::users WHERE lft IS NOT NULL)",
	}, top, bottom))
}

// Subtree loads id and everything below it as a nested tree.
func (s *Store) Subtree(ctx context.Context, id int64) (*Tree, error) {
	rows, err := s.db.Query(ctx, s.acc.Expand(
		"SELECT "+prefixed("u")+" FROM table::users u, table::users top"+
			" WHERE top.id = @id AND u.lft BETWEEN top.lft AND top.rgt ORDER BY u.lft"),
		pgx.NamedArgs{"id": id})
	list, err := nsm.Collect[User](rows, err)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	byID := make(map[int64]User, len(list))
	nodes := make([]nsm.Node, 0, len(list))
	for _, u := range list {
		byID[u.ID] = u
		nodes = append(nodes, u.Node())
	}
	if err := nsm.Validate(nodes); err != nil {
		return nil, err
	}
	return attach(nsm.Build(nodes)[0], byID), nil
}

func attach(t *nsm.Tree, byID map[int64]User) *Tree {
	out := &Tree{User: byID[t.ID]}
	for _, c := range t.Children {
		out.Children = append(out.Children, attach(c, byID))
	}
	return out
}

// IsParent reports whether parentID is the immediate parent of childID.
func (s *Store) IsParent(ctx context.Context, parentID, childID int64) (bool, error) {
	id, ok, err := s.acc.Parent(ctx, s.db, nsm.Select{
		Parent:   "(SELECT * FROM table::users WHERE lft IS NOT NULL)",
		Children: "(SELECT * FROM table::users WHERE id = @id)",
		Args:     pgx.NamedArgs{"id": childID},
	})
	if errors.Is(err, nsm.ErrNodeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ok && id == parentID, nil
}

// Contains reports whether id is ancestor itself or lies in its subtree.
func (s *Store) Contains(ctx context.Context, ancestor User, id int64) (bool, error) {
	if ancestor.ID == id {
		return true, nil
	}
	n, err := s.acc.Node(ctx, s.db, Table, id)
	if errors.Is(err, nsm.ErrNodeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return nsm.IsDescendant(n, ancestor.Node()), nil
}

// CreateRoot inserts the root of an empty tree.
func (s *Store) CreateRoot(ctx context.Context, in Input) (User, error) {
	in = in.Clean()
	if err := in.Validate(true); err != nil {
		return User{}, err
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return User{}, err
	}

	var id int64
	err = db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := s.acc.Lock(ctx, tx, Table); err != nil {
			return err
		}
		roots, err := nsm.Collect[nsm.Node](s.acc.Roots(ctx, tx, nsm.Select{
			Columns: "children.id, children.lft, children.rgt",
			Parent:  "(SELECT * FROM table::users WHERE lft IS NOT NULL)",
		}))
		if err != nil {
			return err
		}
		if len(roots) > 0 {
			return ErrRootExists
		}
		if id, err = s.insert(ctx, tx, in, hash, 1, 2); err != nil {
			return err
		}
		return s.writePermissions(ctx, tx, id, in.Permissions)
	})
	if err != nil {
		return User{}, err
	}
	s.logger.InfoContext(ctx, "root user created", slog.Int64("user_id", id))
	return s.Get(ctx, id)
}

// Create adds a user as the last child of parentID.
func (s *Store) Create(ctx context.Context, parentID int64, in Input) (User, error) {
	in = in.Clean()
	if err := in.Validate(true); err != nil {
		return User{}, err
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return User{}, err
	}

	var node nsm.Node
	err = db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		node, err = s.acc.InsertChild(ctx, tx, Table, parentID, inTree,
			func(ctx context.Context, tx pgx.Tx, lft, rgt int64) (int64, error) {
				return s.insert(ctx, tx, in, hash, lft, rgt)
			})
		if err != nil {
			return err
		}
		return s.writePermissions(ctx, tx, node.ID, in.Permissions)
	})
	if errors.Is(err, nsm.ErrNodeNotFound) {
		return User{}, fmt.Errorf("%w: parent %d", ErrNotFound, parentID)
	}
	if err != nil {
		return User{}, err
	}
	s.logger.InfoContext(ctx, "user created",
		slog.Int64("user_id", node.ID),
		slog.Int64("parent_id", parentID))
	return s.Get(ctx, node.ID)
}

func (s *Store) insert(ctx context.Context, tx pgx.Tx, in Input, hash string, lft, rgt int64) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, s.acc.Expand(
		"INSERT INTO table::users (uname, upass, fullname, email, note, admin, lft, rgt)"+
			" VALUES (@uname, @upass, @fullname, @email, @note, @admin, @lft, @rgt) RETURNING id"),
		pgx.NamedArgs{
			"uname":    in.Uname,
			"upass":    hash,
			"fullname": in.Fullname,
			"email":    in.Email,
			"note":     in.Note,
			"admin":    in.Admin,
			"lft":      lft,
			"rgt":      rgt,
		}).Scan(&id)
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("%w: %s", ErrUnameTaken, in.Uname)
	}
	return id, err
}

// Update rewrites the editable fields of id. An empty password keeps the
// current one. Permissions are replaced when non-nil.
func (s *Store) Update(ctx context.Context, id int64, in Input) (User, error) {
	in = in.Clean()
	if err := in.Validate(false); err != nil {
		return User{}, err
	}

	var hash *string
	if in.Password != "" {
		h, err := s.hash(in.Password)
		if err != nil {
			return User{}, err
		}
		hash = &h
	}

	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, s.acc.Expand(
			"UPDATE table::users SET uname = @uname, fullname = @fullname, email = @email,"+
				" note = @note, admin = @admin, upass = COALESCE(@upass, upass), updated_at = now()"+
				" WHERE id = @id AND lft IS NOT NULL"),
			pgx.NamedArgs{
				"id":       id,
				"uname":    in.Uname,
				"fullname": in.Fullname,
				"email":    in.Email,
				"note":     in.Note,
				"admin":    in.Admin,
				"upass":    hash,
			})
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrUnameTaken, in.Uname)
		}
		if err != nil {
			return errors.Join(ErrQueryFailed, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		if in.Permissions == nil {
			return nil
		}
		if _, err := tx.Exec(ctx, s.acc.Expand("DELETE FROM table::permissions WHERE user_id = @id"),
			pgx.NamedArgs{"id": id}); err != nil {
			return errors.Join(ErrQueryFailed, err)
		}
		return s.writePermissions(ctx, tx, id, in.Permissions)
	})
	if err != nil {
		return User{}, err
	}

	s.forget(ctx, id)
	return s.Get(ctx, id)
}

// Remove deletes id with its subtree and closes the gap. It returns the
// number of users removed.
func (s *Store) Remove(ctx context.Context, id int64) (int64, error) {
	var removed int64
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		removed, err = s.acc.Remove(ctx, tx, Table, id, inTree)
		return err
	})
	if errors.Is(err, nsm.ErrNodeNotFound) {
		return 0, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return 0, err
	}

	s.forget(ctx, id)
	s.logger.InfoContext(ctx, "user removed",
		slog.Int64("user_id", id),
		slog.Int64("rows", removed))
	return removed, nil
}

// Permissions returns the stored permission set of id.
func (s *Store) Permissions(ctx context.Context, id int64) (Permissions, error) {
	return cache.GetOrSet(ctx, s.perms, strconv.FormatInt(id, 10), s.permTTL,
		func(ctx context.Context) (Permissions, error) {
			rows, err := s.db.Query(ctx,
				s.acc.Expand("SELECT permission, granted FROM table::permissions WHERE user_id = @id"),
				pgx.NamedArgs{"id": id})
			if err != nil {
				return nil, errors.Join(ErrQueryFailed, err)
			}
			defer rows.Close()

			perms := make(Permissions)
			for rows.Next() {
				var (
					key     string
					granted bool
				)
				if err := rows.Scan(&key, &granted); err != nil {
					return nil, errors.Join(ErrQueryFailed, err)
				}
				perms[key] = granted
			}
			if err := rows.Err(); err != nil {
				return nil, errors.Join(ErrQueryFailed, err)
			}
			return perms, nil
		})
}

// Can decides key for u.
func (s *Store) Can(ctx context.Context, u User, key string) (bool, error) {
	if key == PermRoot || (key != PermGrant && u.Admin) {
		return Allowed(u, nil, key), nil
	}
	perms, err := s.Permissions(ctx, u.ID)
	if err != nil {
		return false, err
	}
	return Allowed(u, perms, key), nil
}

// RequestReminder stamps a password reminder on uname. The token it
// returns resets the password once, within ReminderTTL.
func (s *Store) RequestReminder(ctx context.Context, uname string) (Reminder, error) {
	token := uuid.New()
	var id int64
	err := s.db.QueryRow(ctx, s.acc.Expand(
		"UPDATE table::users SET reminder_token = @token, reminder_requested_at = now()"+
			" WHERE uname = @uname AND lft IS NOT NULL RETURNING id"),
		pgx.NamedArgs{"token": token, "uname": uname}).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reminder{}, fmt.Errorf("%w: %s", ErrNotFound, uname)
	}
	if err != nil {
		return Reminder{}, errors.Join(ErrQueryFailed, err)
	}

	u, err := s.Get(ctx, id)
	if err != nil {
		return Reminder{}, err
	}
	return Reminder{User: u, Token: token, ExpiresAt: time.Now().Add(ReminderTTL)}, nil
}

// ResetPassword sets a new password for the holder of a live reminder
// token and spends the token.
func (s *Store) ResetPassword(ctx context.Context, token uuid.UUID, password string) (User, error) {
	password = strings.TrimSpace(password)
	if len(password) < minPasswordLength {
		return User{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	hash, err := s.hash(password)
	if err != nil {
		return User{}, err
	}

	var id int64
	err = s.db.QueryRow(ctx, s.acc.Expand(
		"UPDATE table::users SET upass = @upass, reminder_token = NULL, reminder_requested_at = NULL,"+
			" updated_at = now()"+
			" WHERE reminder_token = @token AND reminder_requested_at > @since AND lft IS NOT NULL"+
			" RETURNING id"),
		pgx.NamedArgs{"upass": hash, "token": token, "since": time.Now().Add(-ReminderTTL)}).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrReminderInvalid
	}
	if err != nil {
		return User{}, errors.Join(ErrQueryFailed, err)
	}
	s.logger.InfoContext(ctx, "password reset", slog.Int64("user_id", id))
	return s.Get(ctx, id)
}

// Nodes loads the tree structure for checks.
func (s *Store) Nodes(ctx context.Context) ([]nsm.Node, error) {
	return s.acc.Nodes(ctx, s.db, Table, inTree)
}

// Cleanup renumbers the tree to dense boundaries.
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	var rows int64
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		rows, err = s.acc.Cleanup(ctx, tx, Table, inTree)
		return err
	})
	return rows, err
}

func (s *Store) writePermissions(ctx context.Context, tx pgx.Tx, id int64, perms Permissions) error {
	for key, granted := range perms {
		if _, err := tx.Exec(ctx, s.acc.Expand(
			"INSERT INTO table::permissions (user_id, permission, granted) VALUES (@id, @key, @granted)"),
			pgx.NamedArgs{"id": id, "key": key, "granted": granted}); err != nil {
			return errors.Join(ErrQueryFailed, err)
		}
	}
	return nil
}

func (s *Store) forget(ctx context.Context, id int64) {
	if err := s.perms.Delete(ctx, strconv.FormatInt(id, 10)); err != nil {
		s.logger.WarnContext(ctx, "permission cache delete failed",
			slog.Int64("user_id", id),
			slog.Any("error", err))
	}
}

func (s *Store) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return string(h), nil
}

func prefixed(alias string) string {
	cols := strings.Split(columns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolate
}
