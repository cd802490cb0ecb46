package template

import (
	"log/slog"
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// Render substitutes {{ name }} placeholders in text with the matching
// variable. Unresolved placeholders stay verbatim in the output.
func Render(text string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(text, func(m string) string {
		key := strings.TrimSpace(m[2 : len(m)-2])
		if v, ok := vars[key]; ok {
			return v
		}
		slog.Warn("template variable not found", "variable", key)
		return m
	})
}

// Rendered is a template resolved against a set of variables, ready to send.
type Rendered struct {
	Title             string
	Body              string
	Data              map[string]any
	PlatformOverrides map[string]any
}

// RenderNotification renders title and body templates and every string-valued
// entry of the default data map. Non-string values pass through unchanged.
func RenderNotification(titleTmpl, bodyTmpl string, defaultData, overrides map[string]any, vars map[string]string) Rendered {
	data := make(map[string]any, len(defaultData))
	for k, v := range defaultData {
		if s, ok := v.(string); ok {
			data[k] = Render(s, vars)
		} else {
			data[k] = v
		}
	}
	return Rendered{
		Title:             Render(titleTmpl, vars),
		Body:              Render(bodyTmpl, vars),
		Data:              data,
		PlatformOverrides: overrides,
	}
}
