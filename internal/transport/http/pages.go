package http

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/cuetime/reservations/internal/domain"
)

const (
	toneSuccess = "success"
	toneWarning = "warning"
	toneError   = "error"
)

type pageData struct {
	Title         string
	Heading       string
	Tone          string
	Message       string
	ReservationID string
	Reservation   *domain.Reservation
	Note          string
	NoteTone      string
	Details       string
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Arial, sans-serif; }
.page { padding: 20px; max-width: 600px; margin: 0 auto; }
.success { color: #2ecc71; }
.warning { color: #e67e22; }
.error { color: #e74c3c; }
</style>
</head>
<body>
<div class="page">
<h2 class="{{.Tone}}">{{.Heading}}</h2>
{{- if .Message}}
<p>{{.Message}}</p>
{{- end}}
{{- if .ReservationID}}
<p>Reservation ID: <strong>{{.ReservationID}}</strong></p>
{{- end}}
{{- with .Reservation}}
<p>User: <strong>{{.Name}} ({{.Email}})</strong></p>
<p>Date/Time: <strong>{{.Date}} at {{.Time}}</strong></p>
<p>Duration: <strong>{{.Duration}}</strong></p>
{{- end}}
{{- if .Note}}
<p class="{{.NoteTone}}">{{.Note}}</p>
{{- end}}
{{- if .Details}}
<pre>{{.Details}}</pre>
{{- end}}
</div>
</body>
</html>
`))

func writePage(w http.ResponseWriter, status int, data pageData) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
