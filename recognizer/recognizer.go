// Package recognizer sends captured audio segments to a hosted
// speech-to-text API and reports transcripts with a confidence score.
package recognizer

import (
	"fmt"
	"math"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"lingocap/encoder"
	"lingocap/pipeline"
)

type Config struct {
	Language string // ISO 639-1 hint for the source speech, e.g. "ru"
	Format   string // upload payload format, "wav" or "flac"
}

// New picks a provider from the environment: GROQ_API_KEY wins over
// OPENAI_API_KEY, matching the cheaper-first preference for a call
// that fires every few seconds.
func New(cfg Config, logger zerolog.Logger) (pipeline.Recognizer, error) {
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		return NewGroq(key, cfg, logger)
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return NewOpenAI(key, cfg, logger)
	}
	return nil, fmt.Errorf("set GROQ_API_KEY or OPENAI_API_KEY environment variable")
}

type base struct {
	client *TracedClient
	apiURL string
	apiKey string
	lang   string
	enc    encoder.Encoder
	log    zerolog.Logger
}

func newBase(apiURL, apiKey string, cfg Config, logger zerolog.Logger) (base, error) {
	enc, err := encoder.New(cfg.Format)
	if err != nil {
		return base{}, err
	}
	return base{
		client: NewTracedClient(apiURL),
		apiURL: apiURL,
		apiKey: apiKey,
		lang:   cfg.Language,
		enc:    enc,
		log:    logger,
	}, nil
}

// confidenceFrom condenses whisper segment stats into one score.
// avg_logprob is the mean token log probability; no_speech_prob is the
// model's belief the audio holds no speech at all.
func confidenceFrom(avgLogProb, noSpeechProb float64) float64 {
	conf := math.Exp(avgLogProb) * (1 - noSpeechProb)
	if conf < 0 {
		return 0
	}
	if conf > 1 {
		return 1
	}
	return conf
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}
