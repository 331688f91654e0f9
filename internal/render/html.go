package render

import (
	"html/template"
	"io"
)

var tableTmpl = template.Must(template.New("queue").Parse(`<table class="queue">
<thead><tr><th>File</th><th>Status</th><th>Result</th></tr></thead>
<tbody>
{{- range .}}
<tr data-file="{{.FileName}}">
<td class="file">{{.FileName}}</td>
<td class="status{{if .Category}} status-{{.Category}}{{end}}">{{.Status}}{{if .Secondary}} <span class="position">{{.Secondary}}</span>{{end}}</td>
<td class="result">{{with .Download}}<a class="download" href="{{.Href}}" download="{{.Label}}">{{.Label}}</a>{{end}}</td>
</tr>
{{- end}}
</tbody>
</table>
`))

// HTML writes rows as a table. Status cells carry a status-<category> class.
func HTML(w io.Writer, rows []Row) error {
	return tableTmpl.Execute(w, rows)
}
