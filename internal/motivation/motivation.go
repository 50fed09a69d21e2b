// Package motivation produces the short encouragement sent after a completion.
package motivation

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"google.golang.org/genai"
)

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

type Service struct {
	gen     Generator
	cache   *lru.Cache
	timeout time.Duration
}

// NewService caches up to cacheSize messages keyed by challenge title and
// progress. A nil generator always yields the canned message.
func NewService(gen Generator, cacheSize int) (*Service, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{gen: gen, cache: cache, timeout: 8 * time.Second}, nil
}

func Fallback(title string, percent int) string {
	return fmt.Sprintf("Keep going! You're %d%% through %q. You can do it!", percent, title)
}

func prompt(title, description string, percent int) string {
	return fmt.Sprintf(
		"Write one short, upbeat sentence (max 25 words) to motivate someone who is %d%% through "+
			"a habit challenge called %q (%s). No hashtags, no quotes.",
		percent, title, description)
}

// Message never fails: generator errors and empty replies fall back to the canned text.
func (s *Service) Message(ctx context.Context, title, description string, percent int) string {
	key := fmt.Sprintf("%s|%d", title, percent)
	if v, ok := s.cache.Get(key); ok {
		return v.(string)
	}
	if s.gen == nil {
		return Fallback(title, percent)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.gen.Generate(ctx, prompt(title, description, percent))
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		return Fallback(title, percent)
	}
	s.cache.Add(key, text)
	return text
}
