package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestCurrentTime(t *testing.T) {
	tool := CurrentTimeTool()
	out, err := tool.Execute(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed struct {
		CurrentTime string  `json:"current_time"`
		Timestamp   float64 `json:"timestamp"`
		Timezone    string  `json:"timezone"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := time.Parse("2006-01-02 15:04:05", parsed.CurrentTime); err != nil {
		t.Errorf("current_time format: %v", err)
	}
	if parsed.Timestamp == 0 {
		t.Error("timestamp should be set")
	}
}

// Calling the clock repeatedly within one process never fails.
func TestCurrentTimeRepeatable(t *testing.T) {
	tool := CurrentTimeTool()
	for i := 0; i < 3; i++ {
		if _, err := tool.Execute(context.Background(), map[string]interface{}{}); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
}
