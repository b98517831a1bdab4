package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/noc-backend/internal/clients/influx"
	redisclient "github.com/yungbote/noc-backend/internal/clients/redis"
	"github.com/yungbote/noc-backend/internal/clients/sendgrid"
	"github.com/yungbote/noc-backend/internal/clients/twilio"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
	"github.com/yungbote/noc-backend/internal/realtime/bus"
	"github.com/yungbote/noc-backend/internal/temporalx"
)

// Clients holds outbound connections. Every field except Locker may be nil
// when its backend is not configured.
type Clients struct {
	Redis    *goredis.Client
	Bus      bus.Bus
	Locker   redisclient.Locker
	Influx   influx.RollupWriter
	Email    sendgrid.Client
	SMS      twilio.Client
	Temporal temporalsdkclient.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	var out Clients

	if cfg.Redis.Addr != "" {
		rdb, err := redisclient.NewClient(ctx, cfg.Redis)
		if err != nil {
			return out, fmt.Errorf("init redis: %w", err)
		}
		out.Redis = rdb
		out.Locker = redisclient.NewLocker(rdb, cfg.LockKey)
		b, err := bus.NewRedisBus(log, rdb, cfg.RedisBus)
		if err != nil {
			out.Close()
			return out, fmt.Errorf("init realtime bus: %w", err)
		}
		out.Bus = b
	} else {
		log.Warn("REDIS_ADDR not set; using in-process locks and realtime fan-out")
		out.Locker = redisclient.NewLocalLocker()
	}

	if cfg.Influx.Enabled() {
		w, err := influx.NewRollupWriter(cfg.Influx)
		if err != nil {
			out.Close()
			return out, err
		}
		out.Influx = w
	}

	if email, err := sendgrid.New(log, sendgrid.ConfigFromEnv()); err == nil {
		out.Email = email
	} else {
		log.Info("SendGrid disabled", "reason", err)
	}
	if sms, err := twilio.New(log, twilio.ConfigFromEnv()); err == nil {
		out.SMS = sms
	} else {
		log.Info("Twilio disabled", "reason", err)
	}

	if cfg.WorkerMode == WorkerModeTemporal {
		if !cfg.Temporal.Enabled() {
			out.Close()
			return out, fmt.Errorf("WORKER_MODE=temporal requires TEMPORAL_ADDRESS")
		}
		tc, err := temporalx.NewClient(log, cfg.Temporal)
		if err != nil {
			out.Close()
			return out, fmt.Errorf("init temporal: %w", err)
		}
		out.Temporal = tc
	}
	return out, nil
}

func (c *Clients) Close() {
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Influx != nil {
		c.Influx.Close()
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
