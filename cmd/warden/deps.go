package main

import (
	"context"
	"os"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/layer-3/warden/adapters/events"
	"github.com/layer-3/warden/adapters/hasher"
	"github.com/layer-3/warden/adapters/ledger"
	"github.com/layer-3/warden/adapters/mail"
	"github.com/layer-3/warden/adapters/postgres"
	"github.com/layer-3/warden/adapters/tokenizer"
	"github.com/layer-3/warden/adapters/users"
	"github.com/layer-3/warden/config"
	"github.com/layer-3/warden/logger"
	"github.com/layer-3/warden/metrics"
	"github.com/layer-3/warden/ports"
	"github.com/layer-3/warden/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/samber/oops"
)

// deps holds every long-lived resource a command needs
type deps struct {
	cfg     *config.Config
	log     zerolog.Logger
	metrics *metrics.Metrics

	pool  *pgxpool.Pool
	redis *redis.Client

	ledger ports.Ledger
	users  ports.UserStore
	mailer ports.MailSender
	events ports.EventPublisher

	closers []func() error
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, zerolog.Nop(), oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return cfg, logger.New(cfg.LogLevel, cfg.LogFormat, os.Stdout), nil
}

// buildDeps opens the stores selected by cfg. Close must be called even
// when an error is returned.
func buildDeps(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*deps, error) {
	d := &deps{cfg: cfg, log: log, metrics: metrics.New()}

	if cfg.DatabaseURL != "" {
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return d, err
		}
		d.pool = pool
		d.closers = append(d.closers, func() error { pool.Close(); return nil })
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return d, oops.Code("CONFIG_INVALID").With("operation", "parse redis url").Wrap(err)
		}
		d.redis = redis.NewClient(opts)
		d.closers = append(d.closers, d.redis.Close)
		if err := d.redis.Ping(ctx).Err(); err != nil {
			return d, oops.Code("REDIS_CONNECT_FAILED").Wrap(err)
		}
	}

	switch cfg.LedgerBackend {
	case config.BackendMemory:
		log.Warn().Msg("using in-memory ledger; credentials do not survive a restart")
		d.ledger = ledger.NewMemoryLedger()
	case config.BackendRedis:
		d.ledger = ledger.NewRedisLedger(d.redis)
	case config.BackendPostgres:
		d.ledger = ledger.NewPostgresLedger(d.pool)
	}

	if d.pool != nil {
		d.users = users.NewPostgresStore(d.pool)
	} else {
		log.Warn().Msg("DATABASE_URL not set; using in-memory user store")
		d.users = users.NewMemoryStore(nil)
	}

	if d.redis != nil {
		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: d.redis},
			logger.NewWatermillAdapter(log),
		)
		if err != nil {
			return d, oops.Code("PUBLISHER_CREATE_FAILED").Wrap(err)
		}
		d.closers = append(d.closers, publisher.Close)
		d.events = events.NewWatermillPublisher(publisher)

		if cfg.MailTransport == config.MailRedisStream {
			d.mailer = mail.NewWatermillSender(publisher, cfg.MailFrom)
		}
	}

	switch cfg.MailTransport {
	case config.MailAMQP:
		conn, ch, err := mail.DialAMQP(cfg.AMQPURL)
		if err != nil {
			return d, err
		}
		d.closers = append(d.closers, ch.Close, conn.Close)
		d.mailer = mail.NewAMQPSender(ch, cfg.MailFrom)
	case config.MailLog:
		d.mailer = mail.NewLogSender(log)
	}

	return d, nil
}

// authService wires the authenticator from cfg and the opened stores
func (d *deps) authService() *service.AuthService {
	svc := service.NewAuthService(
		tokenizer.NewJWTTokenizer(d.cfg.SigningKey, nil),
		d.ledger,
		d.users,
		hasher.NewBcrypt(d.cfg.BcryptCost),
		d.mailer,
		service.Lifetimes{
			Access:        d.cfg.AccessTokenTTL,
			Renewal:       d.cfg.RenewalTokenTTL,
			ResetPassword: d.cfg.ResetTokenTTL,
			VerifyEmail:   d.cfg.VerifyTokenTTL,
		},
	).
		WithLogger(d.log).
		WithMetrics(d.metrics).
		WithLinks(service.Links{
			ResetPassword: d.cfg.ResetURLBase,
			VerifyEmail:   d.cfg.VerifyURLBase,
		}).
		WithSessionRevocationOnReset(d.cfg.RevokeSessionsOnReset)

	if d.events != nil {
		svc.WithEvents(d.events)
	}
	return svc
}

// Close releases resources in reverse order of acquisition
func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.log.Warn().Err(err).Msg("close failed")
		}
	}
}
