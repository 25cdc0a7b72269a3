package api

import (
	"embed"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"
)

const formTemplate = "form.html"

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// TemplateRenderer renders the embedded html templates for echo.
type TemplateRenderer struct {
	templates *template.Template
}

func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{templates: templates}
}

func (r *TemplateRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

type formData struct {
	Error string
}

func renderForm(c echo.Context, status int, errMsg string) error {
	return c.Render(status, formTemplate, formData{Error: errMsg})
}
