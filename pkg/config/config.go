package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

type Server struct {
	ListenAddress string `yaml:"listenAddress"`
	// FrontendDir optionally serves the operator UI from this directory.
	FrontendDir    string   `yaml:"frontendDir"`
	Debug          bool     `yaml:"debug"`
	TrustedProxies []string `yaml:"trustedProxies"` // IPs/CIDRS to trust for X-Forwarded-For headers
	// ShutdownTimeout bounds graceful shutdown of the HTTP server (e.g. "15s").
	ShutdownTimeout string `yaml:"shutdownTimeout"`
	// Timeouts tunes the HTTP server. Nil uses the defaults.
	Timeouts *ServerTimeouts `yaml:"timeouts,omitempty"`
}

type Escalation struct {
	// Timeout is how long an escalation stays pending before it times out (e.g. "2h").
	Timeout string `yaml:"timeout"`
	// SweepInterval controls how often pending escalations are checked for timeout (e.g. "5m").
	SweepInterval string `yaml:"sweepInterval"`
	// RetryInterval is the shorter wait after the first failed sweep (e.g. "1m").
	RetryInterval string `yaml:"retryInterval"`
	// CallbackTemplate overrides the customer callback message. Go text/template with sprig functions.
	// +optional
	CallbackTemplate string `yaml:"callbackTemplate"`
}

type SQLite struct {
	Path string `yaml:"path"`
}

type Redis struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix"`
}

type Store struct {
	// Type is one of memory, sqlite or redis.
	Type   string `yaml:"type"`
	SQLite SQLite `yaml:"sqlite"`
	Redis  Redis  `yaml:"redis"`
}

type Knowledge struct {
	// SeedInitial inserts the salon's initial facts when the knowledge base is empty.
	SeedInitial bool `yaml:"seedInitial"`
}

type Mail struct {
	Disabled           bool     `yaml:"disabled"`
	Host               string   `yaml:"host"`
	Port               int      `yaml:"port"`
	User               string   `yaml:"user"`
	Password           string   `yaml:"password"`
	From               string   `yaml:"from"`
	InsecureSkipVerify bool     `yaml:"insecureSkipVerify"`
	Operators          []string `yaml:"operators"`
	// DashboardURL is linked from alert mails.
	DashboardURL string `yaml:"dashboardURL"`
	// QueueSize is the number of alert mails buffered before new ones are dropped.
	QueueSize int `yaml:"queueSize"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type Audit struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhookURL"`
	Kafka      Kafka  `yaml:"kafka"`
}

type Telemetry struct {
	Enabled      bool    `yaml:"enabled"`
	Endpoint     string  `yaml:"endpoint"`
	Insecure     bool    `yaml:"insecure"`
	SamplingRate float64 `yaml:"samplingRate"`
}

type RateLimit struct {
	// Rate is the sustained number of requests per second allowed per client IP. 0 disables limiting.
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
}

type Config struct {
	Server     Server
	Escalation Escalation
	Store      Store
	Knowledge  Knowledge
	Mail       Mail
	Audit      Audit
	Telemetry  Telemetry
	RateLimit  RateLimit `yaml:"rateLimit"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() Config {
	return Config{
		Server: Server{
			ListenAddress:   ":8080",
			ShutdownTimeout: "15s",
		},
		Escalation: Escalation{
			Timeout:       "2h",
			SweepInterval: "5m",
			RetryInterval: "1m",
		},
		Store: Store{
			Type:   StoreSQLite,
			SQLite: SQLite{Path: "./frontdesk.db"},
			Redis:  Redis{Addr: "localhost:6379", KeyPrefix: "frontdesk:"},
		},
		Knowledge: Knowledge{SeedInitial: true},
		Mail: Mail{
			Disabled:  true,
			Port:      587,
			QueueSize: 100,
		},
		Audit: Audit{Kafka: Kafka{Topic: "frontdesk-audit"}},
		Telemetry: Telemetry{
			Endpoint:     "localhost:4318",
			SamplingRate: 1.0,
		},
		RateLimit: RateLimit{Rate: 20, Burst: 40},
	}
}

// Load reads the frontdesk configuration from a file path on top of Defaults.
// If configPath is empty, defaults to "./config.yaml".
func Load(configPath ...string) (Config, error) {
	path := "./config.yaml"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	config := Defaults()

	content, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("trying to open frontdesk config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(content, &config); err != nil {
		return config, fmt.Errorf("error unmarshaling YAML %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("invalid frontdesk config %s: %w", path, err)
	}
	return config, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	for _, f := range []struct{ name, value string }{
		{"escalation.timeout", c.Escalation.Timeout},
		{"escalation.sweepInterval", c.Escalation.SweepInterval},
		{"escalation.retryInterval", c.Escalation.RetryInterval},
		{"server.shutdownTimeout", c.Server.ShutdownTimeout},
	} {
		if f.value == "" {
			continue
		}
		if d, err := time.ParseDuration(f.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.name, err))
		} else if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", f.name, f.value))
		}
	}

	switch c.Store.Type {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.SQLite.Path == "" {
			errs = append(errs, errors.New("store.sqlite.path is required for the sqlite store"))
		}
	case StoreRedis:
		if c.Store.Redis.Addr == "" {
			errs = append(errs, errors.New("store.redis.addr is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.type %q is not one of memory, sqlite, redis", c.Store.Type))
	}

	if !c.Mail.Disabled {
		if c.Mail.Host == "" {
			errs = append(errs, errors.New("mail.host is required when mail is enabled"))
		}
		if len(c.Mail.Operators) == 0 {
			errs = append(errs, errors.New("mail.operators must list at least one recipient when mail is enabled"))
		}
	}

	if c.Audit.Enabled && len(c.Audit.Kafka.Brokers) > 0 && c.Audit.Kafka.Topic == "" {
		errs = append(errs, errors.New("audit.kafka.topic is required when brokers are set"))
	}
	if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
		errs = append(errs, fmt.Errorf("telemetry.samplingRate must be within [0,1], got %v", c.Telemetry.SamplingRate))
	}
	if c.RateLimit.Rate < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rateLimit.rate and rateLimit.burst must not be negative"))
	}
	return errors.Join(errs...)
}

// EscalationTimeout returns the parsed escalation timeout, or def when unset.
func (c Config) EscalationTimeout(def time.Duration) time.Duration {
	return parseDurationOrDefault(c.Escalation.Timeout, def)
}

// SweepInterval returns the parsed sweep interval, or def when unset.
func (c Config) SweepInterval(def time.Duration) time.Duration {
	return parseDurationOrDefault(c.Escalation.SweepInterval, def)
}

// RetryInterval returns the parsed sweep retry interval, or def when unset.
func (c Config) RetryInterval(def time.Duration) time.Duration {
	return parseDurationOrDefault(c.Escalation.RetryInterval, def)
}

func parseDurationOrDefault(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
