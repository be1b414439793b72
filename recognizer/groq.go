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

type Groq struct {
	base
}

func NewGroq(apiKey string, cfg Config, logger zerolog.Logger) (*Groq, error) {
	b, err := newBase("https://api.groq.com/openai/v1/audio/transcriptions", apiKey, cfg, logger)
	if err != nil {
		return nil, err
	}
	g := &Groq{base: b}
	go g.client.Warm()
	return g, nil
}

func (g *Groq) Name() string { return "groq" }

type groqResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text         string  `json:"text"`
		NoSpeechProb float64 `json:"no_speech_prob"`
		AvgLogProb   float64 `json:"avg_logprob"`
	} `json:"segments"`
}

func (g *Groq) Recognize(ctx context.Context, samples []float32) (pipeline.Transcription, error) {
	payload, err := g.enc.Encode(samples)
	if err != nil {
		return pipeline.Transcription{}, fmt.Errorf("encoding segment: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio."+g.enc.Ext())
	if err != nil {
		return pipeline.Transcription{}, err
	}
	if _, err := part.Write(payload); err != nil {
		return pipeline.Transcription{}, err
	}

	writer.WriteField("model", "whisper-large-v3-turbo")
	writer.WriteField("response_format", "verbose_json")
	if g.lang != "" {
		writer.WriteField("language", g.lang)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, "POST", g.apiURL, &body)
	if err != nil {
		return pipeline.Transcription{}, err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := g.client.Do(req)
	if err != nil {
		return pipeline.Transcription{}, err
	}
	if resp.StatusCode != 200 {
		return pipeline.Transcription{}, fmt.Errorf("groq API error %d: %s", resp.StatusCode, string(resp.Body))
	}

	var gResp groqResponse
	if err := json.Unmarshal(resp.Body, &gResp); err != nil {
		return pipeline.Transcription{}, fmt.Errorf("groq response parse error: %w", err)
	}

	conf := 1.0
	if len(gResp.Segments) > 0 {
		var logProbSum, noSpeech float64
		for _, seg := range gResp.Segments {
			logProbSum += seg.AvgLogProb
			if seg.NoSpeechProb > noSpeech {
				noSpeech = seg.NoSpeechProb
			}
		}
		conf = confidenceFrom(logProbSum/float64(len(gResp.Segments)), noSpeech)
	}

	g.log.Debug().
		Str("provider", "groq").
		Int("payload_bytes", len(payload)).
		Dur("total", resp.Metrics.Total).
		Bool("conn_reused", resp.Metrics.ConnReused).
		Str("rate_limit", firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests")+"/"+
			firstNonEmpty(resp.Header, "x-ratelimit-limit-requests")).
		Msg("recognize_request")

	return pipeline.Transcription{
		Text:       strings.TrimSpace(gResp.Text),
		Confidence: conf,
	}, nil
}
