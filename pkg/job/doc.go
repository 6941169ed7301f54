// Package job runs canopy's background tasks on River, a Postgres-backed
// queue.
//
// A task is any type with Name and Handle. The payload type comes from the
// Handle signature and travels as JSON:
//
//	type Reminder struct{ users *users.Store }
//
//	func (*Reminder) Name() string { return "user_reminder" }
//	func (r *Reminder) Handle(ctx context.Context, p ReminderPayload) error {
//		return r.users.StampReminder(ctx, p.Uname)
//	}
//
//	m, err := job.NewManager(pool,
//		job.WithTask[ReminderPayload](&Reminder{users: store}),
//		job.WithScheduledTask(&TreeCheck{users: store}),
//	)
//	err = m.Enqueue(ctx, "user_reminder", ReminderPayload{Uname: "bob"},
//		job.UniqueFor(time.Hour, "bob"))
//
// Every task runs under one River job kind, "canopy:task", and is looked up
// by name when worked. Scheduled tasks take a five field cron expression.
// Migrate installs River's tables and is run by "canopy migrate".
package job
