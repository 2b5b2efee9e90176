package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/toolbridge/toolbridge/internal/protocol"
)

type fakeTranslator struct {
	reply string
	err   error
}

func (f *fakeTranslator) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	return f.reply, f.err
}

func decodeTranslation(t *testing.T, out string) map[string]interface{} {
	t.Helper()
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return parsed
}

func TestTranslateOfflinePhrase(t *testing.T) {
	tool := TranslateTool(nil, "en")
	out, err := tool.Execute(context.Background(), map[string]interface{}{"text": "你好"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed := decodeTranslation(t, out)
	if parsed["translated"] != "Hello" {
		t.Errorf("translated = %v, want Hello", parsed["translated"])
	}
	if parsed["target_language"] != "en" {
		t.Errorf("target_language = %v, want en", parsed["target_language"])
	}
}

func TestTranslateOfflinePassthroughMarked(t *testing.T) {
	tool := TranslateTool(nil, "en")
	out, err := tool.Execute(context.Background(), map[string]interface{}{"text": "unknown phrase"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed := decodeTranslation(t, out)
	if parsed["translated"] != "[unknown phrase] (offline translation)" {
		t.Errorf("passthrough not marked: %v", parsed["translated"])
	}
}

func TestTranslateBackendSuccess(t *testing.T) {
	tool := TranslateTool(&fakeTranslator{reply: "Bonjour\n"}, "en")
	out, err := tool.Execute(context.Background(), map[string]interface{}{
		"text":        "Hello",
		"target_lang": "fr",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed := decodeTranslation(t, out)
	if parsed["translated"] != "Bonjour" {
		t.Errorf("translated = %v, want Bonjour", parsed["translated"])
	}
	if parsed["target_language"] != "fr" {
		t.Errorf("target_language = %v, want fr", parsed["target_language"])
	}
}

func TestTranslateBackendUnavailable(t *testing.T) {
	tool := TranslateTool(&fakeTranslator{err: errors.New("connection refused")}, "en")
	_, err := tool.Execute(context.Background(), map[string]interface{}{"text": "Hello"})
	if err == nil {
		t.Fatal("expected upstream error")
	}
	if kind := protocol.KindOf(err); kind != protocol.KindUpstreamError {
		t.Errorf("expected upstream_error, got %s", kind)
	}
}
