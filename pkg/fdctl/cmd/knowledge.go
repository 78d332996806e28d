package cmd

import (
	"errors"
	"io"

	"github.com/spf13/cobra"

	frontdeskv1 "github.com/telekom/frontdesk/api/v1"
	"github.com/telekom/frontdesk/pkg/fdctl/output"
)

func NewKnowledgeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "knowledge",
		Aliases: []string{"kb"},
		Short:   "Manage the knowledge base",
	}
	cmd.AddCommand(
		newKnowledgeListCommand(),
		newKnowledgeAddCommand(),
		newKnowledgeExportCommand(),
		newKnowledgeUseCommand(),
	)
	return cmd
}

func newKnowledgeListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List knowledge entries, most recently updated first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}
			entries, err := apiClient.Knowledge().List(cmd.Context())
			if err != nil {
				return err
			}
			return render(rt, entries, func(w io.Writer, _ bool) {
				output.WriteKnowledgeTable(w, entries)
			})
		},
	}
}

func newKnowledgeAddCommand() *cobra.Command {
	var question, answer string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a manual knowledge entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if question == "" || answer == "" {
				return errors.New("--question and --answer are required")
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}
			k, err := apiClient.Knowledge().Add(cmd.Context(), question, answer)
			if err != nil {
				return err
			}
			return render(rt, k, func(w io.Writer, _ bool) {
				output.WriteKnowledgeTable(w, []frontdeskv1.KnowledgeEntry{*k})
			})
		},
	}
	cmd.Flags().StringVarP(&question, "question", "q", "", "Question")
	cmd.Flags().StringVarP(&answer, "answer", "a", "", "Answer")
	return cmd
}

func newKnowledgeExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export the knowledge base as the agent sees it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}
			m, err := apiClient.Knowledge().Export(cmd.Context())
			if err != nil {
				return err
			}
			return render(rt, m, func(w io.Writer, _ bool) {
				output.WriteExportTable(w, m)
			})
		},
	}
}

func newKnowledgeUseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "use ID",
		Short: "Record that an entry was used to answer a caller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}
			k, err := apiClient.Knowledge().Use(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(rt, k, func(w io.Writer, _ bool) {
				output.WriteKnowledgeTable(w, []frontdeskv1.KnowledgeEntry{*k})
			})
		},
	}
}
