package cli

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/frontdesk/pkg/config"
)

type Config struct {
	// Application flags
	Debug bool

	// Configuration flags
	ConfigPath string

	// Overrides for values from the configuration file. Empty means "use the file".
	ListenAddress     string
	StoreType         string
	EscalationTimeout string
	SweepInterval     string

	// Component enable flags
	EnableMonitor bool
	DisableEmail  bool
}

// Parse reads the process flags with environment variable fallbacks.
func Parse() (*Config, error) {
	return ParseArgs(os.Args[1:])
}

func ParseArgs(args []string) (*Config, error) {
	c := &Config{}
	fs := flag.NewFlagSet("frontdesk", flag.ContinueOnError)
	// The pattern: fs.XxxVar(&variable, "flag-name", defaultValueOrEnvValue, "help text")
	fs.BoolVar(&c.Debug, "debug", getEnvBool("FRONTDESK_DEBUG", false), "Enable debug level logging")

	fs.StringVar(&c.ConfigPath, "config", getEnvString("FRONTDESK_CONFIG", "./config.yaml"),
		"Path to the frontdesk configuration file")
	fs.StringVar(&c.ListenAddress, "listen", getEnvString("FRONTDESK_LISTEN", ""),
		"The address the HTTP server binds to (host:port). Overrides server.listenAddress")
	fs.StringVar(&c.StoreType, "store", getEnvString("FRONTDESK_STORE", ""),
		"Store backend: memory, sqlite or redis. Overrides store.type")

	fs.StringVar(&c.EscalationTimeout, "escalation-timeout", getEnvString("FRONTDESK_ESCALATION_TIMEOUT", ""),
		"How long an escalation stays pending before it times out (e.g., '2h'). Overrides escalation.timeout")
	fs.StringVar(&c.SweepInterval, "sweep-interval", getEnvString("FRONTDESK_SWEEP_INTERVAL", ""),
		"Interval between timeout sweeps (e.g., '5m'). Overrides escalation.sweepInterval")

	fs.BoolVar(&c.EnableMonitor, "enable-monitor", getEnvBool("FRONTDESK_ENABLE_MONITOR", true),
		"Run the background timeout monitor. Use false when another instance sweeps the shared store")
	fs.BoolVar(&c.DisableEmail, "disable-email", getEnvBool("FRONTDESK_DISABLE_EMAIL", false),
		"Disable operator alert mails regardless of the configuration file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return c, nil
}

// Apply copies the flag overrides onto the file configuration. Invalid durations
// keep the file value and are logged.
func (c *Config) Apply(cfg *config.Config, log *zap.SugaredLogger) {
	if c.Debug {
		cfg.Server.Debug = true
	}
	if c.ListenAddress != "" {
		cfg.Server.ListenAddress = c.ListenAddress
	}
	if c.StoreType != "" {
		cfg.Store.Type = c.StoreType
	}
	if c.DisableEmail {
		cfg.Mail.Disabled = true
	}
	if c.EscalationTimeout != "" {
		if _, err := parseDuration("escalation-timeout", c.EscalationTimeout, 0); err != nil {
			log.Warn(err)
		} else {
			cfg.Escalation.Timeout = c.EscalationTimeout
		}
	}
	if c.SweepInterval != "" {
		if _, err := parseDuration("sweep-interval", c.SweepInterval, 0); err != nil {
			log.Warn(err)
		} else {
			cfg.Escalation.SweepInterval = c.SweepInterval
		}
	}
}

func (c *Config) Print(log *zap.SugaredLogger) {
	log.Infow("CLI Configuration",
		"debug", c.Debug,
		"config_path", c.ConfigPath,
		"listen_address", c.ListenAddress,
		"store", c.StoreType,
		"escalation_timeout", c.EscalationTimeout,
		"sweep_interval", c.SweepInterval,
		"enable_monitor", c.EnableMonitor,
		"disable_email", c.DisableEmail,
	)
}

func parseDuration(name, value string, def time.Duration) (time.Duration, error) {
	duration := def
	if value != "" {
		d, err := time.ParseDuration(value)
		if err != nil {
			return duration, fmt.Errorf("invalid %s %q; using default %s: %w", name, value, def.String(), err)
		}
		if d <= 0 {
			return duration, fmt.Errorf("invalid %s %q; using default %s: must be positive", name, value, def.String())
		}
		duration = d
	}

	return duration, nil
}

// getEnvString returns the value of an environment variable, or the provided default if not set.
func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvBool returns the value of an environment variable as a bool, or the provided default if not set.
// Valid true values are "true", "1", "yes" (case-insensitive).
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(val) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultVal
}
