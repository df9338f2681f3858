package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultModel = "gemini-1.5-flash"

// Client summarizes article text with a Gemini model. It satisfies summary.Provider.
type Client struct {
	client *genai.Client
	model  string
}

func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{client: client, model: model}, nil
}

func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) Summarize(ctx context.Context, text string, maxTokens int) (string, error) {
	model := c.client.GenerativeModel(c.model)
	model.SetMaxOutputTokens(int32(maxTokens))
	model.SetTemperature(0.2)

	resp, err := model.GenerateContent(ctx, genai.Text(Prompt(text)))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response from Gemini")
	}

	return textOf(resp.Candidates[0].Content.Parts), nil
}

// Prompt builds the summarization request for one article.
func Prompt(text string) string {
	return fmt.Sprintf(`Summarize this crypto news article in two or three plain sentences.
Do not add headings, lists, links or emoji. Keep names of coins, companies and people as written.

ARTICLE:
%s`, strings.TrimSpace(text))
}

func textOf(parts []genai.Part) string {
	var sb strings.Builder
	for _, p := range parts {
		if t, ok := p.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return strings.TrimSpace(sb.String())
}
