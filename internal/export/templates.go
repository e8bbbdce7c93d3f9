package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var workTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/work.html")
	if err != nil {
		// Fallback to built-in template if file not found
		workTemplate = template.Must(template.New("work").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	workTemplate = template.Must(template.New("work").Funcs(funcMap).Parse(string(templateContent)))
}

// TemplateData holds data for work template rendering
type TemplateData struct {
	Title       string
	WorkType    string
	Number      string
	Year        int
	Status      string
	CitationURI string
	UpdatedAt   time.Time
	Sections    []TemplateSection
}

// TemplateSection is one document node prepared for rendering
type TemplateSection struct {
	NodeType string
	Number   string
	Heading  string
	Content  string
	Depth    int
}

// RenderWorkHTML renders the work template with provided data
func RenderWorkHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := workTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html lang="id">
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.7; max-width: 800px; margin: 2rem auto; }
    h1 { text-align: center; font-size: 1.3em; text-transform: uppercase; }
    .meta { text-align: center; color: #555; font-size: 0.9em; margin-bottom: 2.5rem; }
    .section { margin: 1.2rem 0; }
    .section .label { font-weight: bold; text-align: center; }
    .bab .label { text-transform: uppercase; margin-top: 2rem; }
    .status { border: 1px solid #999; padding: 0.2em 0.6em; font-size: 0.8em; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">
    {{.WorkType}} Nomor {{.Number}} Tahun {{.Year}}
    <span class="status">{{.Status}}</span><br>
    Diperbarui {{.UpdatedAt.Format "2 Jan 2006"}}
  </div>
  {{range .Sections}}
  <div class="section {{.NodeType | lower}}">
    {{if .Number}}<div class="label">{{.Number}}</div>{{end}}
    {{if .Heading}}<div class="label">{{.Heading}}</div>{{end}}
    <p>{{.Content}}</p>
  </div>
  {{end}}
</body>
</html>`
