package notifier

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"connectoralert/internal/models"
)

// DefaultSubject is used when no subject template is configured.
const DefaultSubject = "[{{.Severity}}] {{.RuleName}}: {{.Count}} pending packages"

// DefaultBody is used when no body template is configured.
const DefaultBody = `Connector alert: {{.RuleName}}

{{.Message}}

Table:      {{.Table}}
Count:      {{.Count}}
Threshold:  {{.Threshold}}
Severity:   {{.Severity}}
Observed:   {{timestamp .ObservedAt}}
Alert ID:   {{.ID}}
`

// Templates renders the subject and body of an alert message.
type Templates struct {
	subject *template.Template
	body    *template.Template
}

// ParseTemplates compiles subject and body, falling back to the defaults for
// empty sources.
func ParseTemplates(subject, body string) (*Templates, error) {
	if strings.TrimSpace(subject) == "" {
		subject = DefaultSubject
	}
	if strings.TrimSpace(body) == "" {
		body = DefaultBody
	}

	funcs := template.FuncMap{
		"upper":     strings.ToUpper,
		"lower":     strings.ToLower,
		"timestamp": formatTimestamp,
	}

	subjectTmpl, err := template.New("subject").Funcs(funcs).Parse(subject)
	if err != nil {
		return nil, fmt.Errorf("parse subject template: %w", err)
	}

	bodyTmpl, err := template.New("body").Funcs(funcs).Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse body template: %w", err)
	}

	return &Templates{subject: subjectTmpl, body: bodyTmpl}, nil
}

// Render executes both templates. Line breaks are removed from the subject
// since it becomes a mail header.
func (t *Templates) Render(alert *models.Alert) (subject, body string, err error) {
	var buf bytes.Buffer
	if err := t.subject.Execute(&buf, alert); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	subject = strings.Join(strings.Fields(buf.String()), " ")

	buf.Reset()
	if err := t.body.Execute(&buf, alert); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}

	return subject, buf.String(), nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}
