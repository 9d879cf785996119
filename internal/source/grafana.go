package source

// grafanaParser understands the Grafana alerting webhook shape:
//
//	{
//	  "status": "firing"|"resolved",
//	  "commonLabels": {...},
//	  "alerts": [
//	    {"labels": {"alertname": ..., "severity": ...},
//	     "annotations": {"summary": ..., "description": ...},
//	     "generatorURL": ...}
//	  ]
//	}
//
// Fields come from the first alert; absent fields fall back to defaults.
type grafanaParser struct{}

func (grafanaParser) Name() string { return "grafana" }

func (grafanaParser) Parse(payload map[string]any) (Fields, map[string]any) {
	fields := Fields{
		Status: firstString(payload, "status"),
		Labels: stringMap(payload["commonLabels"]),
	}

	structured := map[string]any{
		"status": fields.Status,
	}

	if alerts, ok := payload["alerts"].([]any); ok && len(alerts) > 0 {
		structured["alerts"] = alerts
		if first, ok := alerts[0].(map[string]any); ok {
			labels := stringMap(first["labels"])
			annotations := stringMap(first["annotations"])

			fields.Title = labels["alertname"]
			if fields.Title == "" {
				fields.Title = annotations["summary"]
			}
			fields.Severity = labels["severity"]
			fields.Description = annotations["description"]
			fields.Summary = annotations["summary"]
			fields.Labels = mergeLabels(fields.Labels, labels)
		}
	}

	applyDefaults(&fields)
	structured["status"] = fields.Status
	return fields, structured
}

func mergeLabels(common, alert map[string]string) map[string]string {
	if common == nil && alert == nil {
		return nil
	}
	merged := make(map[string]string, len(common)+len(alert))
	for k, v := range common {
		merged[k] = v
	}
	for k, v := range alert {
		merged[k] = v
	}
	return merged
}
