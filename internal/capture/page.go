package capture

import (
	"bytes"
	"html/template"
	"time"

	"minibridge/internal/model"
)

// The layout is a plain table so the screenshot stays readable when pasted
// into a mail or a chat.
var previewTemplate = template.Must(template.New("preview").Funcs(template.FuncMap{
	"when": formatWhen,
}).Parse(`<!DOCTYPE html>
<html lang="fr">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 24px; color: #222; }
h1 { font-size: 20px; margin: 0 0 4px; }
p.count { margin: 0 0 16px; color: #555; }
table { border-collapse: collapse; width: 100%; font-size: 13px; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; vertical-align: top; }
th { background: #f2f2f2; }
td.tags { white-space: nowrap; color: #555; }
</style>
</head>
<body>
<main data-ready="true">
<h1>{{.Title}}</h1>
<p class="count">{{len .Rows}} événement(s)</p>
{{- if .Rows}}
<table>
<thead><tr><th>Début</th><th>Fin</th><th>Intitulé</th><th>Enseignants</th><th>Fichier</th><th>Tags</th></tr></thead>
<tbody>
{{- range .Rows}}
<tr><td>{{when .Start}}</td><td>{{when .End}}</td><td>{{.Summary}}</td><td>{{.Teachers}}</td><td>{{.Filename}}</td><td class="tags">{{.Promo}} {{.Class}}{{range .Groups}} {{.}}{{end}}</td></tr>
{{- end}}
</tbody>
</table>
{{- end}}
</main>
</body>
</html>
`))

// RenderPreviewHTML renders rows as a standalone HTML page. Values are
// escaped by html/template.
func RenderPreviewHTML(title string, rows []model.PreviewRow) ([]byte, error) {
	var buf bytes.Buffer
	err := previewTemplate.Execute(&buf, struct {
		Title string
		Rows  []model.PreviewRow
	}{title, rows})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatWhen(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
