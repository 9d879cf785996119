package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	texttemplate "text/template"
)

// RenderError reports malformed template syntax or a failed execution.
// It is recorded against the affected channel, never retried.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("template render: %v", e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Renderer turns a template string plus context into text.
// Implementations must treat the context as read-only.
type Renderer interface {
	Render(templateStr string, ctx Context) (string, error)
}

// GoRenderer renders with text/template. The `je` function escapes a value
// for embedding inside a JSON string literal (used by card templates).
type GoRenderer struct{}

// NewRenderer returns the default renderer.
func NewRenderer() Renderer {
	return GoRenderer{}
}

func (GoRenderer) Render(templateStr string, ctx Context) (string, error) {
	if templateStr == "" {
		return "", nil
	}
	tmpl, err := texttemplate.New("notification").Funcs(texttemplate.FuncMap{
		"je": jsonEscape,
	}).Parse(templateStr)
	if err != nil {
		return "", &RenderError{Err: err}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", &RenderError{Err: err}
	}
	return buf.String(), nil
}

// jsonEscape escapes a value for safe use inside a JSON string literal.
func jsonEscape(value any) string {
	if value == nil {
		return ""
	}
	encoded, err := json.Marshal(fmt.Sprintf("%v", value))
	if err != nil {
		return ""
	}
	return string(encoded[1 : len(encoded)-1])
}
