package temporalx

import (
	"time"

	"github.com/yungbote/noc-backend/internal/pkg/envutil"
)

type Config struct {
	Address   string
	Namespace string
	TaskQueue string

	ClientCertPath string
	ClientKeyPath  string
	ClientCAPath   string

	DialTimeout       time.Duration
	DialMaxWait       time.Duration
	AutoRegister      bool
	NamespaceRetained time.Duration
}

// Enabled reports whether a Temporal address is configured.
func (c Config) Enabled() bool { return c.Address != "" }

func (c Config) mTLS() bool {
	return c.ClientCertPath != "" || c.ClientKeyPath != "" || c.ClientCAPath != ""
}

func LoadConfig() Config {
	return Config{
		Address:   envutil.String("TEMPORAL_ADDRESS", ""),
		Namespace: envutil.String("TEMPORAL_NAMESPACE", "noc"),
		TaskQueue: envutil.String("TEMPORAL_TASK_QUEUE", "noc"),

		ClientCertPath: envutil.String("TEMPORAL_CLIENT_CERT_PATH", ""),
		ClientKeyPath:  envutil.String("TEMPORAL_CLIENT_KEY_PATH", ""),
		ClientCAPath:   envutil.String("TEMPORAL_CLIENT_CA_PATH", ""),

		DialTimeout:       envutil.Duration("TEMPORAL_DIAL_TIMEOUT", 5*time.Second, time.Second),
		DialMaxWait:       envutil.Duration("TEMPORAL_DIAL_MAX_WAIT", time.Minute, time.Second),
		AutoRegister:      envutil.Bool("TEMPORAL_AUTO_REGISTER_NAMESPACE", false),
		NamespaceRetained: envutil.Duration("TEMPORAL_NAMESPACE_RETENTION", 7*24*time.Hour, 24*time.Hour),
	}
}
