// Package insight turns a month of spending into a short piece of financial
// advice produced by a language model, with fixed fallbacks when no model
// is available.
package insight

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gastos/internal/cache"
	"gastos/internal/core"
	"gastos/internal/ports"
)

const (
	MissingKeyMessage    = "Configura tu API_KEY para recibir consejos inteligentes de ahorro."
	EmptyResponseMessage = "No se pudo generar el consejo en este momento."
	NoExpensesMessage    = "Añade algunos gastos para que la IA pueda analizar tu comportamiento financiero."
)

// Source tells where the text of an Insight came from.
type Source string

const (
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
	SourceEmpty    Source = "empty"
)

// Provider is a text completion backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// Generator implements ports.InsightGenerator on top of a Provider.
type Generator struct {
	provider Provider
}

func NewGenerator(p Provider) *Generator {
	return &Generator{provider: p}
}

func (g *Generator) GenerateInsight(ctx context.Context, req ports.InsightRequest) (string, error) {
	text, err := g.provider.Complete(ctx, BuildPrompt(req))
	if err != nil {
		return "", fmt.Errorf("%s: %w", g.provider.Name(), err)
	}
	return strings.TrimSpace(text), nil
}

// Insight is the advice shown for one owner and month.
type Insight struct {
	Text        string             `json:"text"`
	Source      Source             `json:"source"`
	Month       core.MonthSelector `json:"-"`
	GeneratedAt time.Time          `json:"generated_at"`
	Cached      bool               `json:"cached"`
}

// Key identifies a cached insight. The revision changes on every write to
// the owner's ledger, so stale advice is never served after an edit.
func Key(ownerID string, sel core.MonthSelector, revision int64) string {
	return fmt.Sprintf("%s|%s|%d", ownerID, sel, revision)
}

// Advisor wraps a generator with caching and the fixed fallback messages.
// A nil generator always yields MissingKeyMessage.
type Advisor struct {
	gen    ports.InsightGenerator
	store  cache.Store[Insight]
	logger *slog.Logger
	now    func() time.Time
}

func NewAdvisor(gen ports.InsightGenerator, store cache.Store[Insight], logger *slog.Logger) *Advisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Advisor{gen: gen, store: store, logger: logger, now: time.Now}
}

// Enabled reports whether a generator is configured.
func (a *Advisor) Enabled() bool { return a.gen != nil }

// Advise returns the insight for req. With refresh set the cache is
// bypassed and overwritten on success. Only model answers are cached.
func (a *Advisor) Advise(ctx context.Context, ownerID string, revision int64, req ports.InsightRequest, refresh bool) (Insight, error) {
	if err := ctx.Err(); err != nil {
		return Insight{}, err
	}

	out := Insight{Month: req.Month, GeneratedAt: a.now()}
	if len(req.ByCategory) == 0 {
		out.Text = NoExpensesMessage
		out.Source = SourceEmpty
		return out, nil
	}

	key := Key(ownerID, req.Month, revision)
	if !refresh && a.store != nil {
		if cached, ok := a.store.Get(ctx, key); ok {
			cached.Cached = true
			cached.Month = req.Month
			return cached, nil
		}
	}

	if a.gen == nil {
		out.Text = MissingKeyMessage
		out.Source = SourceFallback
		return out, nil
	}

	text, err := a.gen.GenerateInsight(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return Insight{}, ctx.Err()
		}
		a.logger.WarnContext(ctx, "Insight generation failed",
			"owner_id", ownerID,
			"month", req.Month.String(),
			"error", err)
		out.Text = MissingKeyMessage
		out.Source = SourceFallback
		return out, nil
	}
	if text == "" {
		out.Text = EmptyResponseMessage
		out.Source = SourceFallback
		return out, nil
	}

	out.Text = text
	out.Source = SourceAI
	if a.store != nil {
		a.store.Set(ctx, key, out)
	}
	return out, nil
}

// ProviderConfig selects and configures the insight backend.
type ProviderConfig struct {
	Provider        string
	GeminiAPIKey    string
	GeminiModel     string
	AnthropicAPIKey string
	AnthropicModel  string
}

// NewProviderFromConfig builds the configured provider. It returns a nil
// provider when insights are disabled or the key for the chosen backend
// is missing.
func NewProviderFromConfig(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, nil
		}
		p, err := NewGeminiProvider(ctx, GeminiConfig{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel})
		if err != nil {
			return nil, err
		}
		return p, nil
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, nil
		}
		p, err := NewAnthropicProvider(AnthropicConfig{APIKey: cfg.AnthropicAPIKey, Model: cfg.AnthropicModel})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown insight provider %q", cfg.Provider)
	}
}
