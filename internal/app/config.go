package app

import (
	"strings"
	"time"

	"github.com/yungbote/noc-backend/internal/clients/influx"
	redisclient "github.com/yungbote/noc-backend/internal/clients/redis"
	"github.com/yungbote/noc-backend/internal/data/db"
	"github.com/yungbote/noc-backend/internal/domain/noc"
	"github.com/yungbote/noc-backend/internal/observability"
	"github.com/yungbote/noc-backend/internal/pkg/envutil"
	"github.com/yungbote/noc-backend/internal/services"
	"github.com/yungbote/noc-backend/internal/temporalx"
)

const (
	WorkerModePoll     = "poll"
	WorkerModeTemporal = "temporal"
)

type Config struct {
	Port           string
	JWTSecretKey   string
	AccessTokenTTL time.Duration
	CORSOrigins    []string

	DB       db.Config
	Redis    redisclient.Config
	RedisBus string
	LockKey  string
	Temporal temporalx.Config
	Influx   influx.Config

	NOC           services.NOCConfig
	PlaybooksFile string
	PriorityModel string
	IngestRPS     float64
	IngestBurst   int

	WorkerConcurrency int
	WorkerMode        string
	PollInterval      time.Duration

	MetricsEnabled bool
	Otel           observability.OtelConfig
}

func LoadConfig() Config {
	cfg := Config{
		Port:           envutil.String("PORT", "8080"),
		JWTSecretKey:   envutil.String("JWT_SECRET_KEY", "defaultsecret"),
		AccessTokenTTL: envutil.Duration("ACCESS_TOKEN_TTL", time.Hour, time.Second),
		CORSOrigins:    splitList(envutil.String("CORS_ALLOWED_ORIGINS", "")),

		DB: db.Config{
			Driver:     envutil.String("DB_DRIVER", db.DriverPostgres),
			DSN:        envutil.String("DATABASE_DSN", ""),
			Host:       envutil.String("POSTGRES_HOST", "localhost"),
			Port:       envutil.String("POSTGRES_PORT", "5432"),
			User:       envutil.String("POSTGRES_USER", "postgres"),
			Password:   envutil.String("POSTGRES_PASSWORD", ""),
			Name:       envutil.String("POSTGRES_NAME", "noc"),
			SQLitePath: envutil.String("SQLITE_PATH", "noc.db"),
		},
		Redis: redisclient.Config{
			Addr:     envutil.String("REDIS_ADDR", ""),
			Password: envutil.String("REDIS_PASSWORD", ""),
			DB:       envutil.Int("REDIS_DB", 0),
		},
		RedisBus: envutil.String("REDIS_CHANNEL", "noc-realtime"),
		LockKey:  envutil.String("REDIS_LOCK_PREFIX", "noc:lock:"),
		Temporal: temporalx.LoadConfig(),
		Influx: influx.Config{
			URL:    envutil.String("INFLUXDB_URL", ""),
			Token:  envutil.String("INFLUXDB_TOKEN", ""),
			Org:    envutil.String("INFLUXDB_ORG", ""),
			Bucket: envutil.String("INFLUXDB_BUCKET", ""),
		},

		NOC: services.NOCConfig{
			DedupWindow:          envutil.Duration("NOC_DEDUP_WINDOW", 60*time.Minute, time.Minute),
			CorrelationWindow:    envutil.Duration("NOC_CORRELATION_WINDOW", 15*time.Minute, time.Minute),
			CorrelationThreshold: envutil.Float("NOC_CORRELATION_THRESHOLD", 0.6),
			SnapshotInterval:     envutil.Duration("NOC_SNAPSHOT_INTERVAL", time.Minute, time.Second),
			RollupGrace:          envutil.Duration("NOC_ROLLUP_GRACE", time.Minute, time.Second),
			RollupConcurrency:    envutil.Int("NOC_ROLLUP_CONCURRENCY", 4),
			Retention: map[noc.Resolution]time.Duration{
				noc.ResolutionRaw: envutil.Duration("NOC_RETENTION_RAW", 0, 24*time.Hour),
				noc.Resolution5m:  envutil.Duration("NOC_RETENTION_5M", 0, 24*time.Hour),
				noc.Resolution1h:  envutil.Duration("NOC_RETENTION_1H", 0, 24*time.Hour),
				noc.Resolution1d:  envutil.Duration("NOC_RETENTION_1D", 0, 24*time.Hour),
			},
		},
		PlaybooksFile: envutil.String("NOC_PLAYBOOKS_FILE", ""),
		PriorityModel: envutil.String("NOC_PRIORITY_MODEL_FILE", ""),
		IngestRPS:     envutil.Float("NOC_INGEST_RPS", 50),
		IngestBurst:   envutil.Int("NOC_INGEST_BURST", 100),

		WorkerConcurrency: envutil.Int("WORKER_CONCURRENCY", 4),
		WorkerMode:        strings.ToLower(envutil.String("WORKER_MODE", WorkerModePoll)),
		PollInterval:      envutil.Duration("WORKER_POLL_INTERVAL", time.Second, time.Millisecond),

		MetricsEnabled: envutil.Bool("METRICS_ENABLED", true),
		Otel: observability.OtelConfig{
			Enabled:     envutil.Bool("OTEL_ENABLED", false),
			ServiceName: envutil.String("OTEL_SERVICE_NAME", "noc-backend"),
			Environment: envutil.String("OTEL_ENVIRONMENT", envutil.String("LOG_MODE", "development")),
			Version:     envutil.String("OTEL_SERVICE_VERSION", ""),
			Endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:     observability.ParseHeaders(envutil.String("OTEL_EXPORTER_OTLP_HEADERS", "")),
			Insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
			SampleRatio: envutil.Float("OTEL_SAMPLER_RATIO", 1),
		},
	}
	if cfg.WorkerMode != WorkerModeTemporal {
		cfg.WorkerMode = WorkerModePoll
	}
	cfg.NOC = cfg.NOC.WithDefaults()
	return cfg
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
