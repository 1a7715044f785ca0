// CLAUDE:SUMMARY Analysis bridge: sends a frame pair to an OpenAI-compatible vision model, returns short bullet observations.
// Package vision wraps the external vision-language analysis of a frame
// pair. The model receives both screenshots and a fixed instruction to answer
// in a handful of short single-line bullets; the reply is opaque text to the
// rest of the engine.
//
// Failures never propagate as run errors: every transport problem, timeout,
// or empty reply surfaces as ErrUnavailable so the orchestrator can record
// the frame pair without analysis text.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrUnavailable is returned when analysis could not be produced. Callers
// degrade to an absent analysis field rather than failing the record.
var ErrUnavailable = errors.New("vision: analysis unavailable")

// Analyzer produces a short textual comparison of two PNG-encoded frames.
type Analyzer interface {
	Analyze(ctx context.Context, pngA, pngB []byte) (string, error)
}

// Soft output contract: the model is asked for bullets, not forced into a
// schema. Downstream consumers must not assume any structure.
const comparePrompt = `Compare these two website screenshots and provide a CONCISE analysis in bullet point format.
Each bullet point should be ONE LINE ONLY (maximum 100 characters).
Focus on the most important differences or similarities.

Format your response as:
- [Brief observation 1]
- [Brief observation 2]
- [Brief observation 3]

Keep it to 3-5 bullet points maximum. Be specific but concise.
The first image is the reference page, the second is the candidate page.`

// Options configures the vision client.
type Options struct {
	// APIKey for the vision endpoint. Empty defers to the SDK's environment
	// lookup (OPENAI_API_KEY).
	APIKey string
	// BaseURL overrides the API endpoint for OpenAI-compatible backends.
	BaseURL string
	// Model is the vision-capable chat model. Default: gpt-4o-mini.
	Model string
	// Timeout bounds one analysis call. Default: 45s.
	Timeout time.Duration
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Model == "" {
		o.Model = "gpt-4o-mini"
	}
	if o.Timeout <= 0 {
		o.Timeout = 45 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Client implements Analyzer against an OpenAI-compatible chat completions
// API with image input support.
type Client struct {
	api  openai.Client
	opts Options
}

// New creates a vision Client.
func New(opts Options) *Client {
	opts.defaults()

	var reqOpts []option.RequestOption
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	reqOpts = append(reqOpts, option.WithRequestTimeout(opts.Timeout))

	return &Client{api: openai.NewClient(reqOpts...), opts: opts}
}

// Analyze sends both frames to the model and returns its bullet summary.
func (c *Client) Analyze(ctx context.Context, pngA, pngB []byte) (string, error) {
	log := c.opts.Logger

	if len(pngA) == 0 || len(pngB) == 0 {
		return "", fmt.Errorf("%w: empty frame", ErrUnavailable)
	}

	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(comparePrompt),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: dataURL(pngA),
		}),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: dataURL(pngB),
		}),
	}

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.opts.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
	})
	if err != nil {
		log.Warn("vision: analysis call failed", "model", c.opts.Model, "error", err)
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ErrUnavailable)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	return text, nil
}

func dataURL(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
