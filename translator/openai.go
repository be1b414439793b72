package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"lingocap/pipeline"
)

// chatTranslator speaks the OpenAI chat-completions wire format, which
// Groq also serves. Temperature is pinned to 0 and the response is
// constrained to a single-key JSON object so a chatty model cannot
// inject prose into the captions.
type chatTranslator struct {
	apiURL string
	apiKey string
	model  string
	name   string
	schema bool // provider supports json_schema response_format
	cfg    Config
	client *http.Client
	log    zerolog.Logger
}

func NewOpenAI(apiKey string, cfg Config, logger zerolog.Logger) pipeline.Translator {
	return &chatTranslator{
		apiURL: "https://api.openai.com/v1/chat/completions",
		apiKey: apiKey,
		model:  "gpt-4o-mini",
		name:   "openai",
		schema: true,
		cfg:    cfg,
		client: &http.Client{},
		log:    logger,
	}
}

func NewGroqChat(apiKey string, cfg Config, logger zerolog.Logger) pipeline.Translator {
	return &chatTranslator{
		apiURL: "https://api.groq.com/openai/v1/chat/completions",
		apiKey: apiKey,
		model:  "llama-3.3-70b-versatile",
		name:   "groq",
		cfg:    cfg,
		client: &http.Client{},
		log:    logger,
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat any           `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *chatTranslator) responseFormat() any {
	if !c.schema {
		return map[string]string{"type": "json_object"}
	}
	return map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"name": "trans_response",
			"schema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"translation": map[string]any{
						"type":        "string",
						"description": "The translated text.",
					},
				},
				"required":             []string{"translation"},
				"additionalProperties": false,
			},
		},
	}
}

func (c *chatTranslator) Translate(ctx context.Context, text string, history []pipeline.ContextEntry) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:          c.model,
		Messages:       buildMessages(c.cfg, text, history),
		Temperature:    0,
		ResponseFormat: c.responseFormat(),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		return "", fmt.Errorf("%s API error %d: %s", c.name, resp.StatusCode, buf.String())
	}

	var cResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", fmt.Errorf("%s response parse error: %w", c.name, err)
	}
	if len(cResp.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", c.name)
	}

	translated, err := parseTranslation(cResp.Choices[0].Message.Content)
	if err != nil {
		return "", err
	}

	c.log.Debug().
		Str("provider", c.name).
		Int("history", len(history)).
		Dur("total", time.Since(start)).
		Msg("translate_request")

	return translated, nil
}
