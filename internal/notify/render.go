package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/Zachkp/portfolio/internal/contact"
)

var htmlBody = htmltemplate.Must(htmltemplate.New("contact-html").Parse(`<h2>New Contact Form Submission</h2>
<p><strong>Name:</strong> {{.Name}}</p>
<p><strong>Email:</strong> {{.Email}}</p>
<p><strong>Message:</strong></p>
<p>{{.Message}}</p>
<p><small>Received {{.SubmittedAt.Format "2006-01-02 15:04:05 MST"}}</small></p>
`))

var textBody = texttemplate.Must(texttemplate.New("contact-text").Parse(`
New contact form submission from your portfolio:

Name: {{.Name}}
Email: {{.Email}}
Message:
{{.Message}}

---
Received {{.SubmittedAt.Format "2006-01-02 15:04:05 MST"}}
`))

func subject(sub contact.Submission) string {
	return "Portfolio Contact from " + headerSafe(sub.Name)
}

func renderHTML(sub contact.Submission) (string, error) {
	var buf bytes.Buffer
	if err := htmlBody.Execute(&buf, sub); err != nil {
		return "", fmt.Errorf("failed to render html body: %w", err)
	}
	return buf.String(), nil
}

func renderText(sub contact.Submission) (string, error) {
	var buf bytes.Buffer
	if err := textBody.Execute(&buf, sub); err != nil {
		return "", fmt.Errorf("failed to render text body: %w", err)
	}
	return buf.String(), nil
}

// headerSafe collapses line breaks so visitor text can't inject headers.
func headerSafe(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
