package cmd

import (
	"errors"
	"io"

	"github.com/spf13/cobra"

	frontdeskv1 "github.com/telekom/frontdesk/api/v1"
	"github.com/telekom/frontdesk/pkg/fdctl/client"
	"github.com/telekom/frontdesk/pkg/fdctl/output"
)

func NewRequestsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "requests",
		Aliases: []string{"request", "req"},
		Short:   "Inspect and answer help requests",
	}
	cmd.AddCommand(
		newRequestsListCommand(),
		newRequestsGetCommand(),
		newRequestsCreateCommand(),
		newRequestsResolveCommand(),
	)
	return cmd
}

func newRequestsListCommand() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List help requests, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			var filter frontdeskv1.EscalationStatus
			if status != "" {
				if filter, err = frontdeskv1.ParseEscalationStatus(status); err != nil {
					return err
				}
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}
			list, err := apiClient.Requests().List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return render(rt, list, func(w io.Writer, wide bool) {
				if wide {
					output.WriteRequestTableWide(w, list)
					return
				}
				output.WriteRequestTable(w, list)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only show requests in this state: pending, resolved, timeout")
	return cmd
}

func newRequestsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one help request",
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
			e, err := apiClient.Requests().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(rt, e, func(w io.Writer, _ bool) {
				output.WriteRequestTableWide(w, []frontdeskv1.Escalation{*e})
			})
		},
	}
}

func newRequestsCreateCommand() *cobra.Command {
	var req client.CreateRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Escalate a question to the operators",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if req.Question == "" {
				return errors.New("--question is required")
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}
			e, err := apiClient.Requests().Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			return render(rt, e, func(w io.Writer, _ bool) {
				output.WriteRequestTable(w, []frontdeskv1.Escalation{*e})
			})
		},
	}
	cmd.Flags().StringVarP(&req.Question, "question", "q", "", "The customer's question")
	cmd.Flags().StringVar(&req.CallerInfo, "caller", "", "Caller name or phone number")
	cmd.Flags().StringVar(&req.SessionID, "session", "", "Originating session id")
	return cmd
}

func newRequestsResolveCommand() *cobra.Command {
	var answer, answeredBy string
	cmd := &cobra.Command{
		Use:     "resolve ID",
		Aliases: []string{"answer"},
		Short:   "Answer a pending help request",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if answer == "" || answeredBy == "" {
				return errors.New("--answer and --by are required")
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}
			e, err := apiClient.Requests().Resolve(cmd.Context(), args[0], answer, answeredBy)
			if err != nil {
				return err
			}
			return render(rt, e, func(w io.Writer, _ bool) {
				output.WriteRequestTableWide(w, []frontdeskv1.Escalation{*e})
			})
		},
	}
	cmd.Flags().StringVarP(&answer, "answer", "a", "", "The answer to relay to the customer")
	cmd.Flags().StringVar(&answeredBy, "by", "", "Name of the answering operator")
	return cmd
}

func NewStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show help request counts by status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}
			st, err := apiClient.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return render(rt, st, func(w io.Writer, _ bool) {
				output.WriteStatsTable(w, *st)
			})
		},
	}
}
