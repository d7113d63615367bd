package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// GeminiClient adapts the Gemini API to Client. The underlying genai client
// is created on first use so construction never touches the network.
type GeminiClient struct {
	APIKey  string
	Model   string
	BaseURL string // tests point this at a fake server

	once   sync.Once
	client *genai.Client
	err    error
}

func NewGeminiClient(apiKey, model string) *GeminiClient {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiClient{APIKey: apiKey, Model: model}
}

func (g *GeminiClient) conn(ctx context.Context) (*genai.Client, error) {
	if g.APIKey == "" {
		return nil, ErrMissingKey
	}
	g.once.Do(func() {
		cfg := &genai.ClientConfig{APIKey: g.APIKey, Backend: genai.BackendGeminiAPI}
		if g.BaseURL != "" {
			cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.BaseURL}
		}
		g.client, g.err = genai.NewClient(ctx, cfg)
		if g.err != nil {
			g.err = fmt.Errorf("creating gemini client: %w", g.err)
		}
	})
	return g.client, g.err
}

// toContents splits system messages out into the system instruction.
func toContents(msgs []Message) ([]*genai.Content, *genai.Content) {
	var system []string
	var contents []*genai.Content
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(system) == 0 {
		return contents, nil
	}
	return contents, genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
}

func (g *GeminiClient) config(msgs []Message, opts Options) ([]*genai.Content, *genai.GenerateContentConfig) {
	contents, system := toContents(msgs)
	cfg := &genai.GenerateContentConfig{SystemInstruction: system}
	if opts.Temperature > 0 {
		t := opts.Temperature
		cfg.Temperature = &t
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	return contents, cfg
}

func (g *GeminiClient) Complete(ctx context.Context, msgs []Message, opts Options) (string, error) {
	client, err := g.conn(ctx)
	if err != nil {
		return "", err
	}
	contents, cfg := g.config(msgs, opts)
	res, err := client.Models.GenerateContent(ctx, g.Model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	return strings.TrimSpace(res.Text()), nil
}

func (g *GeminiClient) Stream(ctx context.Context, msgs []Message, opts Options, onDelta func(string) error) (string, error) {
	client, err := g.conn(ctx)
	if err != nil {
		return "", err
	}
	contents, cfg := g.config(msgs, opts)
	var out strings.Builder
	for res, err := range client.Models.GenerateContentStream(ctx, g.Model, contents, cfg) {
		if err != nil {
			return out.String(), fmt.Errorf("gemini stream: %w", err)
		}
		delta := res.Text()
		if delta == "" {
			continue
		}
		out.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return out.String(), err
			}
		}
	}
	return out.String(), nil
}
