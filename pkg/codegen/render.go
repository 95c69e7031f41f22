package codegen

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

//go:embed templates/*.py.tpl
var templateFS embed.FS

//nolint:gochecknoglobals // parsed once at startup
var scriptTemplates = template.Must(
	template.New("codegen").Funcs(template.FuncMap{
		"pystr":   PyString,
		"pyfloat": pyFloat,
	}).ParseFS(templateFS, "templates/*.py.tpl"),
)

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := scriptTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}
