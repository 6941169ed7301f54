package main

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/canopyhq/canopy"
	"github.com/canopyhq/canopy/internal/config"
	"github.com/canopyhq/canopy/internal/jobs"
	"github.com/canopyhq/canopy/middlewares"
	"github.com/canopyhq/canopy/pkg/cookie"
	"github.com/canopyhq/canopy/pkg/db"
	"github.com/canopyhq/canopy/pkg/job"
	"github.com/canopyhq/canopy/pkg/mailer"
	"github.com/canopyhq/canopy/pkg/mailer/resend"
	"github.com/canopyhq/canopy/pkg/redis"
	"github.com/canopyhq/canopy/pkg/session"
	"github.com/canopyhq/canopy/pkg/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and job workers",
	Long: `Serves every mode at the site root, runs the password reminder and
nightly tree check jobs, and exposes /health/live, /health/ready and the
Prometheus metrics endpoint.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := open(cmd)
		if err != nil {
			return err
		}
		defer s.close()
		return serve(cmd.Context(), s)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, s *stack) error {
	cfg := s.cfg

	_, d, err := mount(cfg, s.users,
		canopy.WithAuthenticator(s.users),
		canopy.WithLoginDelay(cfg.Application.LoginDelay),
		canopy.WithDispatchObserver(s.metrics),
	)
	if err != nil {
		return err
	}

	var remind []jobs.ReminderOption
	if cfg.Mail.Enabled() {
		m, err := newMailer(cfg.Mail, s.log)
		if err != nil {
			return err
		}
		remind = append(remind, jobs.WithMailer(m, cfg.Application.BaseURL))
	} else {
		s.log.Warn("mail is disabled, reminders are recorded but not sent")
	}

	workers, err := job.NewManager(s.pool,
		job.WithLogger(s.log),
		job.WithTask[jobs.ReminderPayload](jobs.NewReminder(s.users, s.log, remind...)),
		job.WithScheduledTask(jobs.NewTreeCheck(s.users, s.metrics, s.log)),
	)
	if err != nil {
		return err
	}

	jar, err := sessionCookies(cfg.Session)
	if err != nil {
		return err
	}

	checks := []canopy.HealthOption{
		canopy.WithReadinessCheck("db", db.Healthcheck(s.pool)),
		canopy.WithReadinessCheck("jobs", job.Healthcheck(workers)),
	}
	if s.redis != nil {
		checks = append(checks, canopy.WithReadinessCheck("redis", redis.Healthcheck(s.redis)))
	}

	opts := []canopy.Option{
		canopy.WithLogger(s.log),
		canopy.WithMiddleware(
			middlewares.RequestID(),
			middlewares.AccessLog(),
			middlewares.Recover(),
		),
		canopy.WithSession(sessionStore(cfg, s.redis),
			canopy.WithSessionCookieName(cfg.Session.CookieName),
			canopy.WithSessionMaxAge(cfg.Session.MaxAge),
			canopy.WithSessionCookies(jar),
		),
		canopy.WithJobs(workers),
		canopy.WithMetrics(s.metrics, cfg.Server.MetricsPath),
		canopy.WithHandlers(d),
	}
	if cfg.Storage.Enabled() {
		files, err := storage.New(cfg.Storage)
		if err != nil {
			return err
		}
		opts = append(opts, canopy.WithStorage(files))
		checks = append(checks, canopy.WithReadinessCheck("storage", storage.Healthcheck(files)))
	} else {
		s.log.Warn("storage is not configured, the file manager is disabled")
	}
	opts = append(opts, canopy.WithHealthChecks(checks...))

	s.log.Info("starting canopy",
		slog.String("version", version),
		slog.String("addr", cfg.Server.Addr),
		slog.String("namespace", cfg.Application.Namespace),
		slog.Any("plugins", cfg.Plugins.Enabled),
	)
	return canopy.New(opts...).Run(cfg.Server.Addr,
		canopy.Logger(s.log),
		canopy.ShutdownTimeout(cfg.Server.ShutdownTimeout),
		canopy.WithContext(ctx),
	)
}

func newMailer(cfg mailer.Config, l *slog.Logger) (*mailer.Mailer, error) {
	var sender mailer.Sender
	switch cfg.Provider {
	case mailer.ProviderLog:
		sender = mailer.NewLogSender(l)
	case mailer.ProviderResend:
		sender = resend.New(cfg.APIKey, cfg.From)
	default:
		return nil, fmt.Errorf("%w: %q", mailer.ErrUnknownProvider, cfg.Provider)
	}
	return mailer.New(sender, mailer.NewRenderer(jobs.Templates()), cfg), nil
}

func sessionStore(cfg *config.Config, client goredis.UniversalClient) session.Store {
	if cfg.Session.Store == config.StoreRedis && client != nil {
		return session.NewRedisStore(client, session.WithRedisPrefix(cfg.Application.Namespace+":session:"))
	}
	return session.NewMemoryStore()
}

func sessionCookies(cfg config.Session) (*cookie.Jar, error) {
	opts := []cookie.Option{
		cookie.WithDomain(cfg.Domain),
		cookie.WithSecure(cfg.Secure),
	}
	if cfg.Secret != "" {
		opts = append(opts, cookie.WithSecret(cfg.Secret))
	}
	return cookie.New(opts...)
}
