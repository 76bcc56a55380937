// Package plangen asks a chat completion model for a raw training plan.
package plangen

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/myrjola/runplan/internal/errors"
	"github.com/myrjola/runplan/internal/schedule"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// ErrMalformedResponse is returned when the model does not answer with a JSON plan.
var ErrMalformedResponse = errors.NewSentinel("malformed plan response")

const systemPrompt = `Ты тренер по бегу. Составь план тренировок и ответь только JSON без пояснений.
Формат: {"weeks": [{"days": [ровно 7 дней с понедельника по воскресенье]}]}.
Каждый день: {"type": "rest|easy|long|tempo|interval|fartlek|race|control|other|sbu|free", ...}.
Простые пробежки: "distance_km", "pace" в формате "M:SS".
Интервалы: "warmup_km", "reps", "interval_m", "rest_m", "rest_type" (jog|walk|rest), "cooldown_km".
Фартлек: "warmup_km", "segments": [{"reps", "distance_m", "recovery_m", "pace"}], "cooldown_km".
ОФП и СБУ: "exercises": [{"name", "sets", "reps", "weight_kg", "distance_m", "duration_sec"}].
Дополнительно можно указать "notes" и "is_key_workout".`

// Config configures the model endpoint.
type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint. Empty means the OpenAI default.
	BaseURL    string
	MaxRetries int
}

// Client generates raw plans with a chat completion model.
type Client struct {
	client openai.Client
	model  string
	logger *slog.Logger
}

// New creates a plan generation client.
func New(cfg Config, logger *slog.Logger) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		logger: logger,
	}
}

// Generate asks the model for a plan matching prompt and decodes the answer. The plan is not validated beyond
// being a JSON object.
func (c *Client) Generate(ctx context.Context, prompt string) (schedule.RawPlan, error) {
	start := time.Now()
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{ //nolint:exhaustruct // defaults
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{ //nolint:exhaustruct // one variant
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "chat completion", slog.String("model", c.model))
	}
	if len(completion.Choices) == 0 {
		return nil, errors.Wrap(ErrMalformedResponse, "no choices")
	}

	c.logger.LogAttrs(ctx, slog.LevelInfo, "generated plan",
		slog.String("model", c.model),
		slog.Int64("prompt_tokens", completion.Usage.PromptTokens),
		slog.Int64("completion_tokens", completion.Usage.CompletionTokens),
		slog.Duration("duration", time.Since(start)))

	return decodePlan(completion.Choices[0].Message.Content)
}

func decodePlan(content string) (schedule.RawPlan, error) {
	var plan schedule.RawPlan
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &plan); err != nil {
		return nil, errors.Join(errors.Wrap(ErrMalformedResponse, "decode plan"), err)
	}
	if plan == nil {
		return nil, errors.Wrap(ErrMalformedResponse, "null plan")
	}
	return plan, nil
}

// stripCodeFence removes a surrounding markdown code fence such as ```json ... ```.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
