package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	frontdeskv1 "github.com/telekom/frontdesk/api/v1"
)

const questionWidth = 48

func WriteRequestTable(w io.Writer, requests []frontdeskv1.Escalation) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSTATUS\tCALLER\tQUESTION\tCREATED\tTIMEOUT")
	for _, e := range requests {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Status, e.CallerInfo, truncate(e.Question, questionWidth), formatTime(e.CreatedAt), formatTime(e.TimeoutAt))
	}
	_ = tw.Flush()
}

// WriteRequestTableWide adds the resolution columns.
func WriteRequestTableWide(w io.Writer, requests []frontdeskv1.Escalation) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSTATUS\tCALLER\tSESSION\tQUESTION\tCREATED\tTIMEOUT\tRESOLVED\tANSWERED_BY\tANSWER")
	for _, e := range requests {
		resolved := "-"
		if e.ResolvedAt != nil {
			resolved = formatTime(*e.ResolvedAt)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Status, e.CallerInfo, dash(e.SessionID), e.Question, formatTime(e.CreatedAt),
			formatTime(e.TimeoutAt), resolved, dash(e.AnsweredBy), dash(e.Answer))
	}
	_ = tw.Flush()
}

func WriteKnowledgeTable(w io.Writer, entries []frontdeskv1.KnowledgeEntry) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSOURCE\tUSES\tQUESTION\tANSWER\tUPDATED")
	for _, k := range entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			k.ID, k.Source, k.UseCount, truncate(k.Question, questionWidth), truncate(k.Answer, questionWidth), formatTime(k.UpdatedAt))
	}
	_ = tw.Flush()
}

func WriteStatsTable(w io.Writer, st frontdeskv1.Stats) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PENDING\tRESOLVED\tTIMEOUT\tTOTAL")
	_, _ = fmt.Fprintf(tw, "%d\t%d\t%d\t%d\n", st.Pending, st.Resolved, st.Timeout, st.Total)
	_ = tw.Flush()
}

// WriteExportTable prints an exported knowledge map sorted by key.
func WriteExportTable(w io.Writer, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "KEY\tANSWER")
	for _, k := range keys {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", k, m[k])
	}
	_ = tw.Flush()
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}
