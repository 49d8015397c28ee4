package mcpserver

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/domain"
)

// Tool arguments arrive as decoded JSON, so numbers are float64 and arrays
// are []any. Clients occasionally send numbers as strings; both are accepted.

func optionalInt(args map[string]any, key string) (*int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	var n int
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return nil, domain.NewValidationError(key, "must be an integer")
		}
		n = int(v)
	case int:
		n = v
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return nil, domain.NewValidationError(key, "must be an integer")
		}
		n = int(i)
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, domain.NewValidationError(key, "must be an integer")
		}
		n = i
	default:
		return nil, domain.NewValidationError(key, "must be an integer")
	}
	return &n, nil
}

func requiredInt(args map[string]any, key string) (int, error) {
	v, err := optionalInt(args, key)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, domain.NewValidationError(key, "is required")
	}
	return *v, nil
}

func requiredFloat(args map[string]any, key string) (float64, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, domain.NewValidationError(key, "is required")
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, domain.NewValidationError(key, "must be a number")
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, domain.NewValidationError(key, "must be a number")
		}
		return f, nil
	default:
		return 0, domain.NewValidationError(key, "must be a number")
	}
}

func stringArg(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", domain.NewValidationError(key, "must be a string")
	}
	return s, nil
}

// userIDArg accepts the impersonation target as a string or a number.
func userIDArg(args map[string]any) (*string, error) {
	raw, ok := args["user_id"]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case string:
		return &v, nil
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		return &s, nil
	default:
		return nil, domain.NewValidationError("user_id", fmt.Sprintf("unsupported type %T", raw))
	}
}

// stringList accepts a JSON array of strings or a comma separated string.
func stringList(args map[string]any, key string) ([]string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case string:
		return strings.Split(v, ","), nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, domain.NewValidationError(key, "must be a list of strings")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, domain.NewValidationError(key, "must be a list of strings")
	}
}
