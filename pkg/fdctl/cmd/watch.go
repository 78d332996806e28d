package cmd

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/telekom/frontdesk/pkg/fdctl/client"
	"github.com/telekom/frontdesk/pkg/fdctl/output"
	"github.com/telekom/frontdesk/pkg/notify"
)

func NewWatchCommand() *cobra.Command {
	var keepalive time.Duration
	var limit int
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream live operator events until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			format, err := rt.OutputFormat()
			if err != nil {
				return err
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			_, _ = fmt.Fprintf(rt.ErrWriter(), "Watching %s (Ctrl-C to stop)\n", apiClient.Server())
			seen := 0
			return apiClient.Watch(ctx, client.WatchOptions{Keepalive: keepalive}, func(env notify.Envelope) error {
				if err := writeEnvelope(rt, format, env); err != nil {
					return err
				}
				seen++
				if limit > 0 && seen >= limit {
					return client.ErrStopWatch
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&keepalive, "keepalive", 30*time.Second, "Interval between keepalive pings")
	cmd.Flags().IntVar(&limit, "limit", 0, "Exit after this many events (0 = unlimited)")
	return cmd
}

func writeEnvelope(rt *runtimeState, format output.Format, env notify.Envelope) error {
	switch format {
	case output.FormatJSON:
		data, err := json.Marshal(env)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(rt.Writer(), string(data))
		return err
	case output.FormatYAML:
		return output.WriteObject(rt.Writer(), format, env)
	default:
		_, err := fmt.Fprintf(rt.Writer(), "%s\t%s\t%s\n", env.Timestamp.Format(time.RFC3339), env.Type, string(env.Data))
		return err
	}
}
