package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/telekom/frontdesk/pkg/fdctl/client"
	"github.com/telekom/frontdesk/pkg/fdctl/output"
)

const (
	keyServer  = "server"
	keyOutput  = "output"
	keyTimeout = "timeout"
	keyVerbose = "verbose"

	defaultServer = "http://localhost:8080"
)

type Config struct {
	// ConfigPath points at the fdctl config file. Empty searches the user config directory.
	ConfigPath   string
	OutputWriter io.Writer
	ErrorWriter  io.Writer
}

type runtimeState struct {
	configPath string
	v          *viper.Viper
	writer     io.Writer
	errWriter  io.Writer
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		OutputWriter: os.Stdout,
		ErrorWriter:  os.Stderr,
	}
}

// DefaultConfigPath is where fdctl looks for its config file when --config is not given.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "fdctl.yaml")
	}
	return filepath.Join(dir, "fdctl", "config.yaml")
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{
		configPath: cfg.ConfigPath,
		v:          viper.New(),
		writer:     cfg.OutputWriter,
		errWriter:  cfg.ErrorWriter,
	}

	root := &cobra.Command{
		Use:           "fdctl",
		Short:         "Frontdesk operator CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "completion" {
				return nil
			}
			return rt.load()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&rt.configPath, "config", rt.configPath, "Path to config file (default "+DefaultConfigPath()+")")
	flags.StringP(keyServer, "s", defaultServer, "Frontdesk server URL")
	flags.StringP(keyOutput, "o", string(output.FormatTable), "Output format: table, wide, json, yaml")
	flags.Duration(keyTimeout, 30*time.Second, "Request timeout")
	flags.BoolP(keyVerbose, "v", false, "Log every request with its request id to stderr")
	for _, key := range []string{keyServer, keyOutput, keyTimeout, keyVerbose} {
		_ = rt.v.BindPFlag(key, flags.Lookup(key))
	}

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		NewRequestsCommand(),
		NewStatsCommand(),
		NewKnowledgeCommand(),
		NewWatchCommand(),
		NewCompletionCommand(),
		NewVersionCommand(),
	)
	return root
}

// load merges the config file and FDCTL_* environment below the command line flags.
func (rt *runtimeState) load() error {
	rt.v.SetEnvPrefix("FDCTL")
	rt.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	rt.v.AutomaticEnv()
	rt.v.SetConfigType("yaml")

	if rt.configPath != "" {
		rt.v.SetConfigFile(rt.configPath)
		if err := rt.v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading fdctl config %s: %w", rt.configPath, err)
		}
		return nil
	}

	rt.v.SetConfigName("config")
	rt.v.AddConfigPath(filepath.Dir(DefaultConfigPath()))
	if err := rt.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading fdctl config: %w", err)
	}
	return nil
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func (rt *runtimeState) ErrWriter() io.Writer {
	if rt.errWriter != nil {
		return rt.errWriter
	}
	return os.Stderr
}

func (rt *runtimeState) OutputFormat() (output.Format, error) {
	return output.ParseFormat(rt.v.GetString(keyOutput))
}

func (rt *runtimeState) Server() string {
	return rt.v.GetString(keyServer)
}

func buildClient(rt *runtimeState) (*client.Client, error) {
	opts := []client.Option{
		client.WithServer(rt.Server()),
		client.WithTimeout(rt.v.GetDuration(keyTimeout)),
	}
	if rt.v.GetBool(keyVerbose) {
		opts = append(opts, client.WithVerbose(func(format string, args ...any) {
			_, _ = fmt.Fprintf(rt.ErrWriter(), "[DEBUG] "+format+"\n", args...)
		}))
	}
	return client.New(opts...)
}

// render writes obj as json/yaml, or calls table for the tabular formats.
func render(rt *runtimeState, obj any, table func(w io.Writer, wide bool)) error {
	format, err := rt.OutputFormat()
	if err != nil {
		return err
	}
	switch format {
	case output.FormatJSON, output.FormatYAML:
		return output.WriteObject(rt.Writer(), format, obj)
	default:
		table(rt.Writer(), format == output.FormatWide)
		return nil
	}
}
