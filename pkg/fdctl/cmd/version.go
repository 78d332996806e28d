package cmd

import (
	"github.com/spf13/cobra"

	"github.com/telekom/frontdesk/pkg/fdctl/output"
	"github.com/telekom/frontdesk/pkg/version"
)

type versionReport struct {
	Client version.BuildInfo  `json:"client"`
	Server *version.BuildInfo `json:"server,omitempty"`
}

func NewVersionCommand() *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show fdctl version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			report := versionReport{Client: version.GetBuildInfo()}
			if remote {
				apiClient, err := buildClient(rt)
				if err != nil {
					return err
				}
				if report.Server, err = apiClient.ServerVersion(cmd.Context()); err != nil {
					return err
				}
			}

			format, err := rt.OutputFormat()
			if err != nil {
				return err
			}
			switch format {
			case output.FormatJSON, output.FormatYAML:
				return output.WriteObject(rt.Writer(), format, report)
			}
			cmd.SetOut(rt.Writer())
			cmd.Printf("fdctl %s\n", report.Client)
			if report.Server != nil {
				cmd.Printf("server %s\n", report.Server)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "Also query the server version")
	return cmd
}
