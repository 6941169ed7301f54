package jobs_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopyhq/canopy/internal/jobs"
	"github.com/canopyhq/canopy/internal/users"
	"github.com/canopyhq/canopy/pkg/job"
	"github.com/canopyhq/canopy/pkg/mailer"
	"github.com/canopyhq/canopy/pkg/nsm"
)

type fakeReminders struct {
	known     map[string]users.User
	requested []string
}

func (f *fakeReminders) RequestReminder(_ context.Context, uname string) (users.Reminder, error) {
	u, ok := f.known[uname]
	if !ok {
		return users.Reminder{}, fmt.Errorf("%w: %s", users.ErrNotFound, uname)
	}
	f.requested = append(f.requested, uname)
	return users.Reminder{User: u, Token: uuid.New(), ExpiresAt: time.Now().Add(users.ReminderTTL)}, nil
}

func TestReminder(t *testing.T) {
	t.Parallel()

	store := &fakeReminders{known: map[string]users.User{"alice": {Uname: "alice"}}}
	task := jobs.NewReminder(store, nil)
	ctx := context.Background()

	assert.Equal(t, jobs.ReminderTask, task.Name())
	require.NoError(t, task.Handle(ctx, jobs.ReminderPayload{Uname: "alice"}))
	require.NoError(t, task.Handle(ctx, jobs.ReminderPayload{Uname: "mallory"}))
	require.NoError(t, task.Handle(ctx, jobs.ReminderPayload{}))
	assert.Equal(t, []string{"alice"}, store.requested)
}

type captureSender struct{ sent []*mailer.Email }

func (c *captureSender) Send(_ context.Context, e *mailer.Email) error {
	c.sent = append(c.sent, e)
	return nil
}

func TestReminder_Mail(t *testing.T) {
	t.Parallel()

	store := &fakeReminders{known: map[string]users.User{
		"alice": {Uname: "alice", Fullname: "Alice Liddell", Email: "alice@canopy.test"},
		"bob":   {Uname: "bob"},
	}}
	sender := &captureSender{}
	m := mailer.New(sender, mailer.NewRenderer(jobs.Templates()), mailer.Config{Layout: "base.html"})
	task := jobs.NewReminder(store, nil, jobs.WithMailer(m, "https://canopy.test"))
	ctx := context.Background()

	require.NoError(t, task.Handle(ctx, jobs.ReminderPayload{Uname: "alice"}))
	require.NoError(t, task.Handle(ctx, jobs.ReminderPayload{Uname: "bob"}), "no address, nothing to send")
	require.NoError(t, task.Handle(ctx, jobs.ReminderPayload{Uname: "mallory"}))
	assert.Equal(t, []string{"alice", "bob"}, store.requested)

	require.Len(t, sender.sent, 1)
	e := sender.sent[0]
	assert.Equal(t, []string{"Alice Liddell <alice@canopy.test>"}, e.To)
	assert.Equal(t, "Reset your canopy password", e.Subject)
	assert.Contains(t, e.Text, "Hello Alice Liddell")
	assert.Contains(t, e.Text, "https://canopy.test/?mode=user.unauth%3Areset&token=")
	assert.Contains(t, e.HTML, "<strong>alice</strong>")
}

type fakeTree struct {
	nodes    []nsm.Node
	cleanups int
}

func (f *fakeTree) Nodes(context.Context) ([]nsm.Node, error) { return f.nodes, nil }

func (f *fakeTree) Cleanup(context.Context) (int64, error) {
	f.cleanups++
	f.nodes = nsm.Renumber(f.nodes)
	return int64(len(f.nodes)), nil
}

type treeObservation struct {
	table string
	nodes int
	dense bool
}

type recordingTree struct{ seen []treeObservation }

func (r *recordingTree) ObserveTree(table string, nodes int, dense bool) {
	r.seen = append(r.seen, treeObservation{table, nodes, dense})
}

func TestTreeCheck(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("renumbers gaps", func(t *testing.T) {
		t.Parallel()

		tree := &fakeTree{nodes: []nsm.Node{{ID: 1, Lft: 1, Rgt: 8}, {ID: 2, Lft: 4, Rgt: 5}}}
		obs := &recordingTree{}
		task := jobs.NewTreeCheck(tree, obs, nil)

		assert.Equal(t, jobs.TreeCheckTask, task.Name())
		_, err := job.ParseSchedule(task.Schedule())
		require.NoError(t, err)

		require.NoError(t, task.Handle(ctx))
		assert.Equal(t, 1, tree.cleanups)
		assert.True(t, nsm.Dense(tree.nodes))
		assert.Equal(t, []treeObservation{{users.Table, 2, true}}, obs.seen)

		report, err := task.Run(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, jobs.TreeReport{Nodes: 2, Dense: true}, report)
		assert.Equal(t, 1, tree.cleanups, "dense tree is left alone")
	})

	t.Run("check only", func(t *testing.T) {
		t.Parallel()

		tree := &fakeTree{nodes: []nsm.Node{{ID: 1, Lft: 1, Rgt: 6}}}
		report, err := jobs.NewTreeCheck(tree, nil, nil).Run(ctx, false)
		require.NoError(t, err)
		assert.False(t, report.Dense)
		assert.Zero(t, tree.cleanups)
	})

	t.Run("corrupt", func(t *testing.T) {
		t.Parallel()

		tree := &fakeTree{nodes: []nsm.Node{{ID: 1, Lft: 1, Rgt: 4}, {ID: 2, Lft: 2, Rgt: 6}}}
		_, err := jobs.NewTreeCheck(tree, nil, nil).Run(ctx, true)
		assert.ErrorIs(t, err, nsm.ErrCorruptTree)
		assert.Zero(t, tree.cleanups)
	})
}
