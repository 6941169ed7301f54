package job

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Uname string `json:"uname"`
}

type recordingTask struct {
	err error
	got []payload
}

func (*recordingTask) Name() string { return "user_reminder" }

func (r *recordingTask) Handle(_ context.Context, p payload) error {
	r.got = append(r.got, p)
	return r.err
}

type nightly struct{ runs int }

func (*nightly) Name() string     { return "tree_check" }
func (*nightly) Schedule() string { return "0 3 * * *" }

func (n *nightly) Handle(context.Context) error {
	n.runs++
	return nil
}

func TestWithTask_Execute(t *testing.T) {
	t.Parallel()

	task := &recordingTask{}
	cfg := &config{registry: newRegistry(), queues: map[string]int{}}
	WithTask[payload](task)(cfg)

	e, ok := cfg.registry.get("user_reminder")
	require.True(t, ok)

	require.NoError(t, e.Execute(context.Background(), json.RawMessage(`{"uname":"bob"}`)))
	require.NoError(t, e.Execute(context.Background(), nil))
	assert.Equal(t, []payload{{Uname: "bob"}, {}}, task.got)

	err := e.Execute(context.Background(), json.RawMessage(`{"uname":`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	task.err = assert.AnError
	assert.ErrorIs(t, e.Execute(context.Background(), nil), assert.AnError)
}

func TestWithScheduledTask(t *testing.T) {
	t.Parallel()

	n := &nightly{}
	cfg := &config{registry: newRegistry(), queues: map[string]int{}}
	WithScheduledTask(n)(cfg)

	require.Len(t, cfg.schedules, 1)
	assert.Equal(t, "tree_check", cfg.schedules[0].name)
	assert.Equal(t, "0 3 * * *", cfg.schedules[0].cron)

	require.NoError(t, cfg.schedules[0].handler.Execute(context.Background(), json.RawMessage(`ignored`)))
	assert.Equal(t, 1, n.runs)
}

func TestOptions(t *testing.T) {
	t.Parallel()

	cfg := &config{registry: newRegistry(), queues: map[string]int{}, maxWorkers: defaultMaxWorkers}
	WithQueue("mail", 5)(cfg)
	WithQueue("", 5)(cfg)
	WithQueue("zero", 0)(cfg)
	WithMaxWorkers(0)(cfg)
	WithLogger(nil)(cfg)

	assert.Equal(t, map[string]int{"mail": 5}, cfg.queues)
	assert.Equal(t, defaultMaxWorkers, cfg.maxWorkers)
	assert.Nil(t, cfg.logger)
}

func TestRegistry_Names(t *testing.T) {
	t.Parallel()

	r := newRegistry()
	assert.Empty(t, r.names())
	r.register("b", scheduledTask(func(context.Context) error { return nil }))
	r.register("a", scheduledTask(func(context.Context) error { return nil }))
	assert.Equal(t, []string{"a", "b"}, r.names())
}

func TestBuildArgs(t *testing.T) {
	t.Parallel()

	args, ins, err := buildArgs("user_reminder", nil)
	require.NoError(t, err)
	assert.Equal(t, "user_reminder", args.TaskName)
	assert.Empty(t, args.Payload)
	assert.Equal(t, "canopy:task", args.Kind())
	assert.Empty(t, ins.Queue)
	assert.True(t, ins.ScheduledAt.IsZero())

	before := time.Now()
	args, ins, err = buildArgs("user_reminder", payload{Uname: "bob"},
		InQueue("mail"),
		ScheduledIn(time.Hour),
		MaxAttempts(3),
		Priority(2),
		UniqueFor(time.Hour, "bob"),
	)
	require.NoError(t, err)
	assert.JSONEq(t, `{"uname":"bob"}`, string(args.Payload))
	assert.Equal(t, "bob", args.UniqueKey)
	assert.Equal(t, "mail", ins.Queue)
	assert.Equal(t, 3, ins.MaxAttempts)
	assert.Equal(t, 2, ins.Priority)
	assert.Equal(t, time.Hour, ins.UniqueOpts.ByPeriod)
	assert.True(t, ins.ScheduledAt.After(before.Add(59*time.Minute)))

	_, _, err = buildArgs("x", make(chan int))
	assert.Error(t, err)
}

func TestParseSchedule(t *testing.T) {
	t.Parallel()

	s, err := ParseSchedule("0 3 * * *")
	require.NoError(t, err)
	from := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC), s.Next(from))

	_, err = ParseSchedule("every night")
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	_, err = ParseSchedule("0 0 3 * * *")
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestNewManager_RequiresPool(t *testing.T) {
	t.Parallel()

	_, err := NewManager(nil)
	assert.ErrorIs(t, err, ErrPoolRequired)

	_, err = Migrate(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrPoolRequired)
}

func TestHealthcheck_NilManager(t *testing.T) {
	t.Parallel()

	err := Healthcheck(nil)(context.Background())
	assert.ErrorIs(t, err, ErrHealthcheckFailed)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
