package config

import (
	"encoding/json"
	"testing"
)

func TestJSONSchema(t *testing.T) {
	data, err := JSONSchema()
	if err != nil {
		t.Fatalf("JSONSchema failed: %v", err)
	}

	var schema struct {
		Title      string                     `json:"title"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(data, &schema); err != nil {
		t.Fatalf("Schema is not valid JSON: %v", err)
	}

	if schema.Title != "dittofiles configuration" {
		t.Errorf("title = %q", schema.Title)
	}
	for _, key := range []string{"logging", "server", "http", "auth", "session", "metadata", "content", "queue", "thumbnails", "gc"} {
		if _, ok := schema.Properties[key]; !ok {
			t.Errorf("schema missing property %q", key)
		}
	}

	var queue struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(schema.Properties["queue"], &queue); err != nil {
		t.Fatalf("queue property is not an object schema: %v", err)
	}
	if _, ok := queue.Properties["max_attempts"]; !ok {
		t.Errorf("queue schema does not inline the retry policy: %v", queue.Properties)
	}
}
