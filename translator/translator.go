// Package translator renders recognized source-language text into the
// target language through a chat-completion model, feeding recent
// segment pairs back as conversation history so terminology stays
// consistent across segments.
package translator

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"lingocap/pipeline"
)

type Config struct {
	Source string // ISO 639-1 code of the spoken language
	Target string // ISO 639-1 code of the caption language
}

// New picks a provider from the environment. OLLAMA_URL selects a
// local model and wins so an offline setup never leaks audio-derived
// text to a hosted API by accident.
func New(cfg Config, logger zerolog.Logger) (pipeline.Translator, error) {
	if url := os.Getenv("OLLAMA_URL"); url != "" {
		return NewOllama(url, os.Getenv("OLLAMA_MODEL"), cfg, logger), nil
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return NewOpenAI(key, cfg, logger), nil
	}
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		return NewGroqChat(key, cfg, logger), nil
	}
	return nil, fmt.Errorf("set OPENAI_API_KEY, GROQ_API_KEY or OLLAMA_URL environment variable")
}

var languageNames = map[string]string{
	"ar": "Arabic",
	"de": "German",
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"it": "Italian",
	"ja": "Japanese",
	"ko": "Korean",
	"nl": "Dutch",
	"pl": "Polish",
	"pt": "Portuguese",
	"ru": "Russian",
	"tr": "Turkish",
	"uk": "Ukrainian",
	"zh": "Chinese",
}

// LanguageName returns the English name of an ISO 639-1 code, or the
// code itself when unknown.
func LanguageName(code string) string {
	if name, ok := languageNames[strings.ToLower(code)]; ok {
		return name
	}
	return code
}

func systemPrompt(cfg Config) string {
	return fmt.Sprintf("You are a professional translator. "+
		"Translate the following %s text into %s. "+
		"Return only a valid JSON object with exactly one key: 'translation', "+
		"whose value is the translated text. Do not include any extra text or keys. "+
		"Use any previous conversation context to maintain consistency.",
		LanguageName(cfg.Source), LanguageName(cfg.Target))
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// buildMessages lays out the conversation: system prompt, then one
// user/assistant pair per history entry oldest first, then the text to
// translate.
func buildMessages(cfg Config, text string, history []pipeline.ContextEntry) []chatMessage {
	msgs := make([]chatMessage, 0, 2*len(history)+2)
	msgs = append(msgs, chatMessage{Role: "system", Content: systemPrompt(cfg)})
	for _, e := range history {
		msgs = append(msgs,
			chatMessage{Role: "user", Content: e.SourceText},
			chatMessage{Role: "assistant", Content: e.Translated},
		)
	}
	return append(msgs, chatMessage{Role: "user", Content: text})
}

func parseTranslation(content string) (string, error) {
	var obj struct {
		Translation string `json:"translation"`
	}
	if err := unmarshalLoose(content, &obj); err != nil {
		return "", fmt.Errorf("translation response parse error: %w", err)
	}
	if obj.Translation == "" {
		return "", fmt.Errorf("translation response missing 'translation' key")
	}
	return obj.Translation, nil
}

// unmarshalLoose tolerates the markdown fencing local models wrap
// around JSON output despite instructions not to.
func unmarshalLoose(content string, v any) error {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return json.Unmarshal([]byte(s), v)
}
