package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"lingocap/pipeline"
)

type OpenAI struct {
	base
}

func NewOpenAI(apiKey string, cfg Config, logger zerolog.Logger) (*OpenAI, error) {
	b, err := newBase("https://api.openai.com/v1/audio/transcriptions", apiKey, cfg, logger)
	if err != nil {
		return nil, err
	}
	o := &OpenAI{base: b}
	go o.client.Warm()
	return o, nil
}

func (o *OpenAI) Name() string { return "openai" }

// Recognize uploads a segment to gpt-4o-transcribe. The API returns no
// per-segment stats, so confidence is always 1 and the low-confidence
// flag never fires for this provider.
func (o *OpenAI) Recognize(ctx context.Context, samples []float32) (pipeline.Transcription, error) {
	payload, err := o.enc.Encode(samples)
	if err != nil {
		return pipeline.Transcription{}, fmt.Errorf("encoding segment: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio."+o.enc.Ext())
	if err != nil {
		return pipeline.Transcription{}, err
	}
	if _, err := part.Write(payload); err != nil {
		return pipeline.Transcription{}, err
	}

	writer.WriteField("model", "gpt-4o-transcribe")
	writer.WriteField("response_format", "json")
	if o.lang != "" {
		writer.WriteField("language", o.lang)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, "POST", o.apiURL, &body)
	if err != nil {
		return pipeline.Transcription{}, err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := o.client.Do(req)
	if err != nil {
		return pipeline.Transcription{}, err
	}
	if resp.StatusCode != 200 {
		return pipeline.Transcription{}, fmt.Errorf("openai API error %d: %s", resp.StatusCode, string(resp.Body))
	}

	var oResp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(resp.Body, &oResp); err != nil {
		return pipeline.Transcription{}, fmt.Errorf("openai response parse error: %w", err)
	}

	o.log.Debug().
		Str("provider", "openai").
		Int("payload_bytes", len(payload)).
		Dur("total", resp.Metrics.Total).
		Bool("conn_reused", resp.Metrics.ConnReused).
		Msg("recognize_request")

	return pipeline.Transcription{
		Text:       strings.TrimSpace(oResp.Text),
		Confidence: 1,
	}, nil
}
