package mail

import (
	"bytes"
	_ "embed"
	"html/template"
	"time"

	"github.com/Masterminds/sprig/v3"
)

// EscalationMailParams is the data rendered into operator alert mails.
type EscalationMailParams struct {
	ID         string
	Question   string
	CallerInfo string
	SessionID  string
	TimeoutAt  time.Time
	// Remaining is the time left to answer, rounded for display.
	Remaining string
	// Waited is how long the caller waited before the request timed out.
	Waited string
	URL    string
}

var (
	//go:embed templates/escalation_created.html
	createdTemplateRaw string
	//go:embed templates/escalation_timeout.html
	timeoutTemplateRaw string

	createdTemplate = template.Must(template.New("escalationCreated").Funcs(sprig.FuncMap()).Parse(createdTemplateRaw))
	timeoutTemplate = template.Must(template.New("escalationTimeout").Funcs(sprig.FuncMap()).Parse(timeoutTemplateRaw))
)

func render(t *template.Template, p any) (string, error) {
	var b bytes.Buffer
	err := t.Execute(&b, p)
	return b.String(), err
}

func RenderEscalationCreated(p EscalationMailParams) (string, error) {
	return render(createdTemplate, p)
}

func RenderEscalationTimeout(p EscalationMailParams) (string, error) {
	return render(timeoutTemplate, p)
}
