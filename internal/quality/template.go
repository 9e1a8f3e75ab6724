package quality

import (
	"bytes"
	"text/template"
)

// DefaultTemplate is used when no custom template is configured.
const DefaultTemplate = `[fit quality] sample {{.SampleName}}
analysis: {{.AnalysisID}}
recording: {{.RecordingID}}
rule: {{.Rule}}
fitted reactors: {{.FittedCount}}/{{.ReactorCount}}
worst R2: {{printf "%.4f" .MinRSquared}} (threshold {{printf "%.4f" .Threshold}})`

// TemplateData carries the fields available to alert templates.
type TemplateData struct {
	SampleName   string
	AnalysisID   string
	RecordingID  string
	Rule         string
	FittedCount  int
	ReactorCount int
	MinRSquared  float64
	Threshold    float64
}

// Template renders alert messages from a text/template body.
type Template struct {
	tmpl *template.Template
}

// NewTemplate parses body, falling back to DefaultTemplate when empty.
func NewTemplate(body string) (*Template, error) {
	if body == "" {
		body = DefaultTemplate
	}
	tmpl, err := template.New("quality_alert").Parse(body)
	if err != nil {
		return nil, err
	}
	return &Template{tmpl: tmpl}, nil
}

// Render executes the template with data.
func (t *Template) Render(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
