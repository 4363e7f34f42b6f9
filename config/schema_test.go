package config

import (
	"encoding/json"
	"testing"

	"github.com/grovetools/renderwatch/schema"
)

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	if err != nil {
		t.Fatalf("GenerateSchema failed: %v", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}

	if doc["$schema"] != "http://json-schema.org/draft-07/schema#" {
		t.Errorf("expected JSON Schema draft-07, got %v", doc["$schema"])
	}
	if doc["type"] != "object" {
		t.Errorf("expected root type to be object, got %v", doc["type"])
	}

	props, ok := doc["properties"].(map[string]interface{})
	if !ok {
		t.Fatal("expected properties to be defined")
	}
	for _, key := range []string{"version", "watch", "dispatch", "metrics", "pidfile"} {
		if _, ok := props[key]; !ok {
			t.Errorf("expected property %q", key)
		}
	}
	if _, ok := props["Extensions"]; ok {
		t.Error("Extensions must not appear in the schema")
	}
}

func TestGeneratedSchemaValidatesConfig(t *testing.T) {
	data, err := GenerateSchema()
	if err != nil {
		t.Fatal(err)
	}
	v, err := schema.NewValidator(data)
	if err != nil {
		t.Fatalf("generated schema does not compile: %v", err)
	}

	good := &Config{Dispatch: DispatchConfig{StopSignal: "term"}}
	if err := v.Validate(good); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}

	bad := &Config{Dispatch: DispatchConfig{StopSignal: "hup"}}
	if err := v.Validate(bad); err == nil {
		t.Error("expected unsupported stop signal to fail schema validation")
	}
}
