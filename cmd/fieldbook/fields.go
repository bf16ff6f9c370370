package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/fieldbook/pkg/core"
)

// parseFields builds record fields from repeated k=v pairs and an optional
// JSON object. Pair values that parse as JSON keep their type; anything else
// is a string. Pairs override keys of the JSON object.
func parseFields(pairs []string, raw string) (core.Fields, error) {
	fields := core.Fields{}
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return nil, fmt.Errorf("invalid --json: %w", err)
		}
		if fields == nil {
			fields = core.Fields{}
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field %q, want key=value", pair)
		}
		fields[key] = parseValue(value)
	}
	return fields, nil
}

func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}
