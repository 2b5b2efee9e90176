package tools

import (
	"context"
	"encoding/json"
	"time"
)

// CurrentTimeTool reports the process wall clock. No inputs.
func CurrentTimeTool() Tool {
	return Tool{
		Name:        "get_current_time",
		Description: "Get the current time, unix timestamp and timezone.",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
			"required":   []string{},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			now := time.Now()
			zone, _ := now.Zone()
			out := map[string]interface{}{
				"current_time": now.Format("2006-01-02 15:04:05"),
				"timestamp":    now.Unix(),
				"timezone":     zone,
			}
			b, _ := json.Marshal(out)
			return string(b), nil
		},
	}
}
