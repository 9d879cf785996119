// Package source normalizes raw webhook payloads into ticket fields.
// Parsers are pure: malformed input falls back to defaults, never errors.
package source

import "strings"

// Default values applied when a payload does not carry the field.
const (
	DefaultTitle    = "Unknown"
	DefaultSeverity = "warning"

	// StatusFiring and StatusResolved are the recognized top-level states.
	StatusFiring   = "firing"
	StatusResolved = "resolved"
)

// Fields are the normalized values extracted from a payload.
type Fields struct {
	Title       string
	Severity    string
	Description string
	Summary     string
	Labels      map[string]string
	Status      string
}

// Resolved signals that the caller should run the resolution path instead
// of creating a ticket.
func (f Fields) Resolved() bool {
	return f.Status == StatusResolved
}

// Parser maps one source's payload shape to normalized fields plus an
// opaque structured blob preserved for template rendering.
type Parser interface {
	Name() string
	Parse(payload map[string]any) (Fields, map[string]any)
}

var parsers = map[string]Parser{
	"grafana": grafanaParser{},
}

// Parse normalizes a payload for the given source tag. Unknown sources use
// the generic fallback; the raw payload is always preserved by the caller.
func Parse(sourceTag string, payload map[string]any) (Fields, map[string]any) {
	if parser, ok := parsers[strings.ToLower(sourceTag)]; ok {
		return parser.Parse(payload)
	}
	return fallbackParse(payload)
}

// fallbackParse extracts common top-level keys for custom or unrecognized
// sources. Extra fields survive untouched in the raw payload.
func fallbackParse(payload map[string]any) (Fields, map[string]any) {
	fields := Fields{
		Title:       firstString(payload, "title", "alertname", "name"),
		Description: firstString(payload, "message", "description"),
		Severity:    firstString(payload, "severity", "level"),
		Summary:     firstString(payload, "summary"),
		Labels:      stringMap(payload["labels"]),
		Status:      firstString(payload, "status"),
	}
	applyDefaults(&fields)
	return fields, nil
}

func applyDefaults(fields *Fields) {
	if fields.Title == "" {
		fields.Title = DefaultTitle
	}
	if fields.Severity == "" {
		fields.Severity = DefaultSeverity
	}
	if fields.Status == "" {
		fields.Status = StatusFiring
	}
	if fields.Labels == nil {
		fields.Labels = map[string]string{}
	}
}

func firstString(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := payload[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}

func stringMap(value any) map[string]string {
	raw, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	result := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			result[k] = s
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
