package tools

import (
	"github.com/toolbridge/toolbridge/internal/protocol"
)

// ValidateArguments checks decoded tool-call arguments against the tool's
// input schema and returns the map the implementation will actually see:
// required keys present, declared types checked, unknown keys dropped,
// missing optional keys filled from declared defaults.
//
// The function is pure; implementations never observe raw caller input.
func ValidateArguments(raw interface{}, schema map[string]interface{}) (map[string]interface{}, error) {
	if raw == nil {
		raw = map[string]interface{}{}
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, protocol.Failf(protocol.KindMalformedArguments, "arguments must be a JSON object")
	}

	props := propertyMap(schema)
	out := make(map[string]interface{}, len(props))

	for name, rawSpec := range props {
		spec, _ := rawSpec.(map[string]interface{})
		v, present := obj[name]
		if !present {
			if def, hasDefault := spec["default"]; hasDefault {
				out[name] = def
			}
			continue
		}
		declared, _ := spec["type"].(string)
		if !typeMatches(v, declared) {
			return nil, protocol.Failf(protocol.KindValidationError, "field %q: expected %s", name, declared)
		}
		if !enumAllows(v, spec["enum"]) {
			return nil, protocol.Failf(protocol.KindValidationError, "field %q: value not in allowed set", name)
		}
		out[name] = v
	}

	for _, name := range requiredKeys(schema) {
		if _, ok := out[name]; !ok {
			return nil, protocol.Failf(protocol.KindValidationError, "field %q: required but missing", name)
		}
	}

	return out, nil
}

func propertyMap(schema map[string]interface{}) map[string]interface{} {
	if props, ok := schema["properties"].(map[string]interface{}); ok {
		return props
	}
	return nil
}

// requiredKeys handles both schemas built in Go ([]string) and schemas
// decoded from caller JSON ([]interface{}).
func requiredKeys(schema map[string]interface{}) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []interface{}:
		out := make([]string, 0, len(req))
		for _, v := range req {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// typeMatches checks a decoded JSON value against a declared parameter type.
// Unknown declared types are tolerated for forward compatibility.
func typeMatches(v interface{}, declared string) bool {
	switch declared {
	case "string":
		_, ok := v.(string)
		return ok
	case "number", "integer":
		switch v.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "array":
		_, ok := v.([]interface{})
		return ok
	case "object":
		_, ok := v.(map[string]interface{})
		return ok
	}
	return true
}

func enumAllows(v interface{}, enum interface{}) bool {
	switch allowed := enum.(type) {
	case []interface{}:
		for _, a := range allowed {
			if a == v {
				return true
			}
		}
		return len(allowed) == 0
	case []string:
		s, ok := v.(string)
		if !ok {
			return false
		}
		for _, a := range allowed {
			if a == s {
				return true
			}
		}
		return len(allowed) == 0
	}
	return true
}
