package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/canopyhq/canopy"
	"github.com/canopyhq/canopy/internal/config"
	"github.com/canopyhq/canopy/internal/plugins/hello"
	"github.com/canopyhq/canopy/internal/units"
	"github.com/canopyhq/canopy/internal/users"
	"github.com/canopyhq/canopy/pkg/cache"
	"github.com/canopyhq/canopy/pkg/db"
	"github.com/canopyhq/canopy/pkg/logger"
	"github.com/canopyhq/canopy/pkg/metrics"
	"github.com/canopyhq/canopy/pkg/mode"
	"github.com/canopyhq/canopy/pkg/nsm"
	"github.com/canopyhq/canopy/pkg/redis"
)

const closeTimeout = 10 * time.Second

var errUnknownPlugin = errors.New("canopy: unknown plugin")

// plugins maps a namespace in plugins.enabled to its registration.
var plugins = map[string]func(*canopy.Registry, *canopy.Dispatcher) error{
	hello.Namespace: hello.Register,
}

// stack holds what one command opened. close releases it in reverse.
type stack struct {
	cfg     *config.Config
	log     *slog.Logger
	pool    *pgxpool.Pool
	redis   goredis.UniversalClient
	users   *users.Store
	metrics *metrics.Recorder
	closers []func(context.Context) error
}

func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(cfg.Log, logger.RequestIDExtractor(), logger.ModeExtractor()), nil
}

// open connects to PostgreSQL and, when configured, Redis.
func open(cmd *cobra.Command) (*stack, error) {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()

	pool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	s := &stack{
		cfg:     cfg,
		log:     log,
		pool:    pool,
		metrics: metrics.New(metrics.WithRuntimeCollectors()),
		closers: []func(context.Context) error{db.Shutdown(pool)},
	}

	var perms cache.Cache[users.Permissions]
	if cfg.Redis.Enabled() {
		client, err := redis.Open(ctx, cfg.Redis)
		if err != nil {
			s.close()
			return nil, err
		}
		s.redis = client
		s.closers = append(s.closers, redis.Shutdown(client))
		perms = cache.NewRedis[users.Permissions](client, cfg.Application.Namespace+":perms:", cfg.Cache.TTL, nil)
	}

	acc := nsm.New(nsm.WithPrefix(cfg.Database.Prefix), nsm.WithLogger(log))
	s.users = users.New(pool, acc,
		users.WithPermissionCache(perms, cfg.Cache.TTL),
		users.WithLogger(log),
	)
	return s, nil
}

func (s *stack) close() {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			s.log.Error("close failed", slog.Any("error", err))
		}
	}
}

// mount builds the unit registry and the dispatcher over it. dir may be
// nil when only the unit table is wanted.
func mount(cfg *config.Config, dir units.Directory, opts ...canopy.DispatcherOption) (*canopy.Registry, *canopy.Dispatcher, error) {
	app := cfg.Application

	reg := canopy.NewRegistry(app.Namespace)
	if err := units.Register(reg, units.Deps{
		Users:     dir,
		Version:   version,
		URLExpiry: cfg.Storage.URLExpiry,
	}); err != nil {
		return nil, nil, err
	}

	// An unset list leaves every registered namespace reachable.
	var allow []string
	if len(app.Namespaces) > 0 {
		allow = append([]string{app.Namespace}, app.Namespaces...)
		allow = append(allow, cfg.Plugins.Enabled...)
	}

	opts = append([]canopy.DispatcherOption{canopy.WithDispatchConfig(canopy.DispatchConfig{
		DefaultMode:          app.DefaultMode,
		ModeFilter:           app.ModeFilter,
		AuthenticationFailed: app.AuthenticationFailed,
		AllowGuest:           app.AllowGuest(),
	})}, opts...)
	d := canopy.NewDispatcher(mode.NewResolver(reg, mode.WithAllowList(allow)), opts...)

	for _, name := range cfg.Plugins.Enabled {
		register, ok := plugins[name]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", errUnknownPlugin, name)
		}
		if err := register(reg, d); err != nil {
			return nil, nil, err
		}
	}
	return reg, d, reg.Validate()
}
