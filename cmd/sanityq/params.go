package main

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseParams turns repeated name=value flags into GROQ parameters. Values are decoded as JSON;
// anything that is not valid JSON is passed as a plain string.
func parseParams(raw []string) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(raw))
	for _, item := range raw {
		name, value, ok := strings.Cut(item, "=")
		name = strings.TrimPrefix(strings.TrimSpace(name), "$")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid param %q (expected name=value)", item)
		}
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("param %q given more than once", name)
		}

		var v any
		if err := json.Unmarshal([]byte(value), &v); err != nil {
			v = value
		}
		out[name] = v
	}
	return out, nil
}
