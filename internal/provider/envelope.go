package provider

import (
	"encoding/json"
	"strings"
)

// ExtractEnvelope unwraps answers that arrive as JSON-encoded payloads. Some
// gateways return a retrieval envelope serialized into the answer string:
// the text decodes to a JSON string, which itself decodes to an object with
// a "matches" list of retrieved documents. The chain degrades gracefully and
// never fails; text that does not parse at any step is returned as it stood
// at that step.
func ExtractEnvelope(text string) string {
	var obj any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &obj); err != nil {
		return text
	}

	// A JSON string payload gets one more decode attempt.
	if s, ok := obj.(string); ok {
		var inner any
		if err := json.Unmarshal([]byte(s), &inner); err != nil {
			return s
		}
		obj = inner
	}

	// A retrieval envelope: join the top documents into the answer text.
	if m, ok := obj.(map[string]any); ok {
		if matches, ok := m["matches"].([]any); ok {
			if len(matches) > 5 {
				matches = matches[:5]
			}
			var docs []string
			for _, match := range matches {
				mm, ok := match.(map[string]any)
				if !ok {
					continue
				}
				if doc, ok := mm["document"].(string); ok && strings.TrimSpace(doc) != "" {
					docs = append(docs, doc)
				}
			}
			if len(docs) > 0 {
				return strings.Join(docs, "\n\n")
			}
		}
	}

	pretty, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return text
	}
	return string(pretty)
}
