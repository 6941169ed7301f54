package units_test

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/canopyhq/canopy/internal"
	"github.com/canopyhq/canopy/internal/users"
	"github.com/canopyhq/canopy/pkg/nsm"
)

// memDirectory keeps the user tree in memory on top of the nsm model.
type memDirectory struct {
	users    map[int64]users.User
	perms    map[int64]users.Permissions
	password map[string]string
	tokens   map[uuid.UUID]int64
	next     int64
	mu       sync.Mutex
}

// newMemDirectory seeds:
//
//	root (admin) ─┬─ alice (user.create) ─── carol
//	              └─ bob
func newMemDirectory() *memDirectory {
	d := &memDirectory{
		users:    map[int64]users.User{1: {ID: 1, Uname: "root", Lft: 1, Rgt: 2, Admin: true}},
		perms:    map[int64]users.Permissions{},
		password: map[string]string{"root": "root-password"},
		tokens:   map[uuid.UUID]int64{},
		next:     2,
	}
	ctx := context.Background()
	alice, _ := d.Create(ctx, 1, users.Input{Uname: "alice", Password: "alice-password",
		Permissions: users.Permissions{users.PermCreate: true}})
	_, _ = d.Create(ctx, 1, users.Input{Uname: "bob", Password: "bob-password"})
	_, _ = d.Create(ctx, alice.ID, users.Input{Uname: "carol", Password: "carol-password"})
	return d
}

func (d *memDirectory) nodes() []nsm.Node {
	out := make([]nsm.Node, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u.Node())
	}
	return out
}

func (d *memDirectory) apply(nodes []nsm.Node) {
	for _, n := range nodes {
		u := d.users[n.ID]
		u.Lft, u.Rgt = n.Lft, n.Rgt
		d.users[n.ID] = u
	}
}

func (d *memDirectory) sorted(keep func(users.User) bool) []users.User {
	var out []users.User
	for _, u := range d.users {
		if keep(u) {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b users.User) int { return cmp.Compare(a.Lft, b.Lft) })
	return out
}

func (d *memDirectory) parentOf(u users.User) (users.User, bool) {
	above := d.sorted(func(a users.User) bool { return nsm.IsDescendant(u.Node(), a.Node()) })
	if len(above) == 0 {
		return users.User{}, false
	}
	return above[len(above)-1], true
}

func (d *memDirectory) get(id int64) (users.User, error) {
	u, ok := d.users[id]
	if !ok {
		return users.User{}, fmt.Errorf("%w: %d", users.ErrNotFound, id)
	}
	return u, nil
}

func (d *memDirectory) Authenticate(_ context.Context, uname, upass string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.Uname == uname && d.password[uname] == upass {
			return strconv.FormatInt(u.ID, 10), nil
		}
	}
	return "", internal.ErrInvalidCredentials
}

func (d *memDirectory) Get(_ context.Context, id int64) (users.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.get(id)
}

func (d *memDirectory) Descendants(_ context.Context, id int64) ([]users.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	top, err := d.get(id)
	if err != nil {
		return nil, nil
	}
	return d.sorted(func(u users.User) bool { return nsm.IsDescendant(u.Node(), top.Node()) }), nil
}

func (d *memDirectory) Children(_ context.Context, id int64) ([]users.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sorted(func(u users.User) bool {
		p, ok := d.parentOf(u)
		return ok && p.ID == id
	}), nil
}

func (d *memDirectory) ChildCounts(_ context.Context, id int64) (map[int64]int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	top, err := d.get(id)
	if err != nil {
		return map[int64]int64{}, nil
	}
	counts := map[int64]int64{}
	for _, u := range d.users {
		if u.ID == id || nsm.IsDescendant(u.Node(), top.Node()) {
			counts[u.ID] += 0
			if p, ok := d.parentOf(u); ok {
				counts[p.ID]++
			}
		}
	}
	return counts, nil
}

func (d *memDirectory) Ancestors(_ context.Context, id int64, floor *users.User) ([]users.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, err := d.get(id)
	if err != nil {
		return nil, nil
	}
	return d.sorted(func(a users.User) bool {
		return nsm.IsDescendant(u.Node(), a.Node()) && (floor == nil || a.Lft >= floor.Lft)
	}), nil
}

func (d *memDirectory) Path(_ context.Context, top, bottom int64) ([]users.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.get(top)
	if err != nil {
		return nil, nil
	}
	b, err := d.get(bottom)
	if err != nil || (top != bottom && !nsm.IsDescendant(b.Node(), t.Node())) {
		return nil, nil
	}
	return d.sorted(func(m users.User) bool {
		return t.Lft <= m.Lft && m.Lft <= t.Rgt && m.Lft <= b.Lft && b.Lft <= m.Rgt
	}), nil
}

func (d *memDirectory) Subtree(_ context.Context, id int64) (*users.Tree, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	top, err := d.get(id)
	if err != nil {
		return nil, err
	}
	var nodes []nsm.Node
	for _, u := range d.users {
		if u.ID == id || nsm.IsDescendant(u.Node(), top.Node()) {
			nodes = append(nodes, u.Node())
		}
	}
	var attach func(*nsm.Tree) *users.Tree
	attach = func(t *nsm.Tree) *users.Tree {
		out := &users.Tree{User: d.users[t.ID]}
		for _, c := range t.Children {
			out.Children = append(out.Children, attach(c))
		}
		return out
	}
	return attach(nsm.Build(nodes)[0]), nil
}

func (d *memDirectory) IsParent(_ context.Context, parentID, childID int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	child, err := d.get(childID)
	if err != nil {
		return false, nil
	}
	p, ok := d.parentOf(child)
	return ok && p.ID == parentID, nil
}

func (d *memDirectory) Contains(_ context.Context, ancestor users.User, id int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ancestor.ID == id {
		return true, nil
	}
	u, err := d.get(id)
	if err != nil {
		return false, nil
	}
	return nsm.IsDescendant(u.Node(), ancestor.Node()), nil
}

func (d *memDirectory) Create(_ context.Context, parentID int64, in users.Input) (users.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	in = in.Clean()
	if err := in.Validate(true); err != nil {
		return users.User{}, err
	}
	if _, taken := d.password[in.Uname]; taken {
		return users.User{}, users.ErrUnameTaken
	}
	nodes, n, err := nsm.Insert(d.nodes(), parentID, d.next)
	if err != nil {
		return users.User{}, fmt.Errorf("%w: parent %d", users.ErrNotFound, parentID)
	}
	d.next++
	d.apply(nodes)

	u := users.User{ID: n.ID, Lft: n.Lft, Rgt: n.Rgt, Uname: in.Uname, Fullname: in.Fullname,
		Email: in.Email, Note: in.Note, Admin: in.Admin}
	d.users[u.ID] = u
	d.password[u.Uname] = in.Password
	if in.Permissions != nil {
		d.perms[u.ID] = in.Permissions
	}
	return u, nil
}

func (d *memDirectory) Update(_ context.Context, id int64, in users.Input) (users.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	in = in.Clean()
	if err := in.Validate(false); err != nil {
		return users.User{}, err
	}
	u, err := d.get(id)
	if err != nil {
		return users.User{}, err
	}
	pass := d.password[u.Uname]
	if in.Password != "" {
		pass = in.Password
	}
	delete(d.password, u.Uname)
	u.Uname, u.Fullname, u.Email, u.Note, u.Admin = in.Uname, in.Fullname, in.Email, in.Note, in.Admin
	d.users[id] = u
	d.password[u.Uname] = pass
	if in.Permissions != nil {
		d.perms[id] = in.Permissions
	}
	return u, nil
}

func (d *memDirectory) Remove(_ context.Context, id int64) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	before := len(d.users)
	nodes, err := nsm.Delete(d.nodes(), id)
	if err != nil {
		return 0, fmt.Errorf("%w: %d", users.ErrNotFound, id)
	}
	keep := make(map[int64]bool, len(nodes))
	for _, n := range nodes {
		keep[n.ID] = true
	}
	for uid := range d.users {
		if !keep[uid] {
			delete(d.users, uid)
		}
	}
	d.apply(nsm.Renumber(nodes))
	return int64(before - len(d.users)), nil
}

func (d *memDirectory) Can(_ context.Context, u users.User, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return users.Allowed(u, d.perms[u.ID], key), nil
}

// issue stands in for the reminder job and hands out a reset token.
func (d *memDirectory) issue(uname string) uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.Uname == uname {
			token := uuid.New()
			d.tokens[token] = u.ID
			return token
		}
	}
	return uuid.Nil
}

func (d *memDirectory) ResetPassword(_ context.Context, token uuid.UUID, password string) (users.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(password) < 8 {
		return users.User{}, fmt.Errorf("%w: password is too short", users.ErrInvalidInput)
	}
	id, ok := d.tokens[token]
	if !ok {
		return users.User{}, users.ErrReminderInvalid
	}
	delete(d.tokens, token)
	u, err := d.get(id)
	if err != nil {
		return users.User{}, users.ErrReminderInvalid
	}
	d.password[u.Uname] = password
	return u, nil
}
