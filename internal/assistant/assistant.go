package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"resumeBuilder/internal/metrics"
)

var (
	ErrEmptySeed   = errors.New("please enter some text first to generate suggestions")
	ErrInvalidMode = errors.New("unknown suggestion mode")
	// ErrBlocked 表示模型因安全策略拒绝生成。
	ErrBlocked = errors.New("suggestion blocked by provider")
)

// Mode 决定生成的文案类型。
type Mode string

const (
	ModeProject    Mode = "project"
	ModeExperience Mode = "experience"
	ModeImprove    Mode = "improve"
)

func ParseMode(value string) (Mode, error) {
	switch m := Mode(strings.TrimSpace(value)); m {
	case ModeProject, ModeExperience, ModeImprove:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, value)
	}
}

// Generator 调用文本生成模型。
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Suggestion 是一次建议的结果。Fallback 为 true 时 Notice 说明原因，调用方应提示用户。
type Suggestion struct {
	Text     string `json:"text"`
	Mode     Mode   `json:"mode"`
	Fallback bool   `json:"fallback"`
	Notice   string `json:"notice,omitempty"`
}

// Assistant 生成项目描述、工作经历描述或润色文本。
type Assistant struct {
	generator Generator
	limiter   *rate.Limiter
	timeout   time.Duration
	logger    *slog.Logger
}

// Options 控制模型调用。RatePerMinute 为 0 表示不限速。
type Options struct {
	Timeout       time.Duration
	RatePerMinute int
}

// New 构造 Assistant。generator 为 nil 时始终返回兜底文案。
func New(generator Generator, opts Options, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	a := &Assistant{generator: generator, timeout: opts.Timeout, logger: logger}
	if opts.RatePerMinute > 0 {
		a.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMinute)), opts.RatePerMinute)
	}
	return a
}

// Suggest 生成一条建议。模型不可用、超时、限速或被拦截时返回兜底文案而不是错误；
// 只有空输入和未知模式会返回错误。
func (a *Assistant) Suggest(ctx context.Context, seed string, mode Mode) (Suggestion, error) {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return Suggestion{}, ErrEmptySeed
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return Suggestion{}, err
	}

	if a.generator == nil {
		return a.fallback(mode, seed, "AI suggestions are offline; showing a sample suggestion"), nil
	}
	if a.limiter != nil && !a.limiter.Allow() {
		a.logger.Warn("assistant rate limited", slog.String("mode", string(mode)))
		return a.fallback(mode, seed, "AI suggestions are busy; showing a sample suggestion"), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	text, err := a.generator.Generate(callCtx, buildPrompt(mode, seed))
	if err == nil {
		text = strings.TrimSpace(text)
		if text == "" {
			err = errors.New("empty completion")
		}
	}
	if err != nil {
		notice := "AI suggestion failed; showing a sample suggestion"
		switch {
		case errors.Is(err, ErrBlocked):
			notice = "AI suggestion was blocked; showing a sample suggestion"
		case errors.Is(err, context.DeadlineExceeded):
			notice = "AI suggestion timed out; showing a sample suggestion"
		}
		a.logger.Warn("assistant generation failed, using fallback",
			slog.String("mode", string(mode)),
			slog.Any("error", err),
		)
		return a.fallback(mode, seed, notice), nil
	}

	metrics.AssistantSuggestion(string(mode), "model")
	return Suggestion{Text: text, Mode: mode}, nil
}

func (a *Assistant) fallback(mode Mode, seed, notice string) Suggestion {
	metrics.AssistantSuggestion(string(mode), "fallback")
	return Suggestion{
		Text:     Fallback(mode, seed),
		Mode:     mode,
		Fallback: true,
		Notice:   notice,
	}
}

func buildPrompt(mode Mode, seed string) string {
	switch mode {
	case ModeProject:
		return "Write a concise, professional resume project description (2-3 sentences, no bullet points, no preamble) for this project: " + seed
	case ModeExperience:
		return "Write a concise, professional resume work experience description (2-3 sentences, first person implied, no preamble) for this role: " + seed
	default:
		return "Rewrite the following resume text to be clearer and more professional. Keep the meaning, return only the rewritten text:\n\n" + seed
	}
}
