package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/edgard/botfriend/internal/bot"
	"github.com/edgard/botfriend/internal/config"
	"github.com/edgard/botfriend/internal/gemini"
)

// geminiState is the state of a gemini bot: its latest outputs, newest last.
type geminiState struct {
	Recent []string `json:"recent"`
}

// Gemini writes posts by prompting the Gemini API.
type Gemini struct {
	client    gemini.Client
	prompt    string
	maxLength int
	remember  int
}

func newGeminiGenerator(ctx context.Context, cfg *config.BotConfig, deps Deps) (bot.ContentGenerator, error) {
	prompt, err := cfg.Options.Require("prompt")
	if err != nil {
		return nil, err
	}
	if deps.NewGemini == nil {
		return nil, errors.New("no gemini client available")
	}
	client, err := deps.NewGemini(ctx)
	if err != nil {
		return nil, err
	}
	return NewGemini(client, prompt, cfg.Options.Int("max_length", 280), cfg.Options.Int("remember", 5)), nil
}

// NewGemini returns a generator using client.
func NewGemini(client gemini.Client, prompt string, maxLength, remember int) *Gemini {
	if remember < 0 {
		remember = 0
	}
	return &Gemini{client: client, prompt: prompt, maxLength: maxLength, remember: remember}
}

func (g *Gemini) NewPost(ctx context.Context, b *bot.Bot) (any, error) {
	var state geminiState
	if _, err := b.JSONState(&state); err != nil {
		b.Logger().WarnContext(ctx, "Ignoring unreadable gemini state", "error", err)
	}

	text, err := g.client.GeneratePost(ctx, gemini.PostRequest{
		Prompt:    g.prompt,
		Recent:    state.Recent,
		MaxLength: g.maxLength,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	if text == "" {
		return nil, nil
	}

	if g.remember > 0 {
		state.Recent = append(state.Recent, text)
		if extra := len(state.Recent) - g.remember; extra > 0 {
			state.Recent = state.Recent[extra:]
		}
		if err := b.SetJSONState(ctx, state); err != nil {
			return nil, err
		}
	}
	return text, nil
}

// StressTest asks for rounds of posts without saving them.
func (g *Gemini) StressTest(ctx context.Context, _ *bot.Bot, rounds int) ([]string, error) {
	out := make([]string, 0, rounds)
	for range rounds {
		text, err := g.client.GeneratePost(ctx, gemini.PostRequest{Prompt: g.prompt, MaxLength: g.maxLength, Recent: out})
		if err != nil {
			return out, err
		}
		out = append(out, text)
	}
	return out, nil
}
