// Package template renders the text templates behind generation prompts and
// workflow explanations.
package template

import (
	"fmt"
	"strings"
	"text/template"
)

// Funcs are available to every template.
var Funcs = template.FuncMap{
	"join":  strings.Join,
	"upper": strings.ToUpper,
	"bullets": func(items []string) string {
		if len(items) == 0 {
			return "  - none"
		}

		lines := make([]string, 0, len(items))
		for _, item := range items {
			lines = append(lines, "  - "+item)
		}

		return strings.Join(lines, "\n")
	},
	"default": func(fallback string, value any) string {
		s := strings.TrimSpace(fmt.Sprint(value))
		if value == nil || s == "" || s == "<nil>" {
			return fallback
		}

		return s
	},
	"indent": func(spaces int, text string) string {
		pad := strings.Repeat(" ", spaces)

		return pad + strings.ReplaceAll(strings.TrimRight(text, "\n"), "\n", "\n"+pad)
	},
}

// Parse compiles a named template with Funcs installed.
func Parse(name, templateStr string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(Funcs).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", name, err)
	}

	return tmpl, nil
}

// Must is Parse for templates compiled at package init.
func Must(name, templateStr string) *template.Template {
	tmpl, err := Parse(name, templateStr)
	if err != nil {
		panic(err)
	}

	return tmpl
}

func Execute(tmpl *template.Template, data any) (string, error) {
	var buf strings.Builder

	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", tmpl.Name(), err)
	}

	return buf.String(), nil
}

// Render parses and executes templateStr in one step.
func Render(templateStr string, data any) (string, error) {
	tmpl, err := Parse("inline", templateStr)
	if err != nil {
		return "", err
	}

	return Execute(tmpl, data)
}
