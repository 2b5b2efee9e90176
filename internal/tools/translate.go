package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/toolbridge/toolbridge/internal/protocol"
	"github.com/toolbridge/toolbridge/internal/upstream"
)

// Translator produces a translation of text into a target language.
type Translator interface {
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
}

var _ Translator = (*upstream.Client)(nil)

// offlinePhrases is the deterministic fallback table used when no backend is
// configured, mirroring the service's original canned dictionary.
var offlinePhrases = map[string]string{
	"你好": "Hello",
	"谢谢": "Thank you",
	"再见": "Goodbye",
}

// TranslateTool translates text. With a configured backend an unreachable
// call fails as upstream_error; without one the offline table answers, with
// a marked passthrough for unknown phrases.
func TranslateTool(backend Translator, defaultLang string) Tool {
	if defaultLang == "" {
		defaultLang = "en"
	}
	return Tool{
		Name:        "translate_text",
		Description: "Translate text into a target language.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Text to translate",
				},
				"target_lang": map[string]interface{}{
					"type":        "string",
					"description": "Target language code",
					"default":     defaultLang,
				},
			},
			"required": []string{"text"},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			text, _ := input["text"].(string)
			lang, _ := input["target_lang"].(string)
			if lang == "" {
				lang = defaultLang
			}

			var translated string
			if backend != nil {
				prompt := fmt.Sprintf("Translate the following text into %s. Reply with the translation only.\n\n%s", lang, text)
				out, err := backend.Complete(ctx, "You are a translation engine.", prompt, 300)
				if err != nil {
					return "", protocol.Failf(protocol.KindUpstreamError, "translation backend: %v", err)
				}
				translated = strings.TrimSpace(out)
			} else if hit, ok := offlinePhrases[text]; ok {
				translated = hit
			} else {
				translated = fmt.Sprintf("[%s] (offline translation)", text)
			}

			out := map[string]interface{}{
				"original":        text,
				"translated":      translated,
				"target_language": lang,
			}
			b, _ := json.Marshal(out)
			return string(b), nil
		},
	}
}
