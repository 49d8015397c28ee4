package handler

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

const credentialFormTemplate = "credential_form.html"

// Templates returns the HTML templates rendered by the OAuth handler.
func Templates() *template.Template {
	return template.Must(template.ParseFS(templateFS, "templates/*.html"))
}
