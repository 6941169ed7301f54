package job

import (
	"context"
	"log/slog"
)

type config struct {
	registry   *registry
	queues     map[string]int
	logger     *slog.Logger
	schedules  []schedule
	maxWorkers int
}

type schedule struct {
	handler scheduledTask
	name    string
	cron    string
}

// Option configures the Manager.
type Option func(*config)

// WithTask registers a task. P is the payload type Handle decodes into:
//
//	type Reminder struct{ users *users.Store }
//
//	func (*Reminder) Name() string { return "user_reminder" }
//	func (r *Reminder) Handle(ctx context.Context, p ReminderPayload) error { ... }
//
//	job.WithTask[ReminderPayload](&Reminder{users: store})
func WithTask[P any, T interface {
	Name() string
	Handle(context.Context, P) error
}](task T) Option {
	return func(c *config) {
		c.registry.register(task.Name(), typedTask[P, T]{task: task})
	}
}

// WithScheduledTask registers a periodic task. Schedule returns a five
// field cron expression.
func WithScheduledTask[T interface {
	Name() string
	Schedule() string
	Handle(context.Context) error
}](task T) Option {
	return func(c *config) {
		c.schedules = append(c.schedules, schedule{
			name:    task.Name(),
			cron:    task.Schedule(),
			handler: task.Handle,
		})
	}
}

// WithQueue adds a named queue with its own worker count.
func WithQueue(name string, workers int) Option {
	return func(c *config) {
		if name != "" && workers > 0 {
			c.queues[name] = workers
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMaxWorkers sets the worker count of the default queue. Default 100.
func WithMaxWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxWorkers = n
		}
	}
}
