// Package critique asks a chat-completion model for a marketing conversion
// critique of a page's copy. Prompt text lives in prompts.yaml.
package critique

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/siteanalyzer/backend/textscan"
)

const (
	defaultModel   = "gpt-4-turbo-preview"
	defaultTimeout = 90 * time.Second
)

// Config configures the completion client.
type Config struct {
	APIKey string
	// BaseURL overrides the API endpoint, e.g. for a compatible proxy.
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Prompts    *Prompts
}

// Input is the page copy the critique is based on.
type Input struct {
	Headline        string   `json:"headline"`
	Subheadline     string   `json:"subheadline"`
	CTAs            []string `json:"ctas"`
	BodyText        string   `json:"bodyText"`
	HasTestimonials bool     `json:"hasTestimonials"`
	HasTrustBadges  bool     `json:"hasTrustBadges"`
	HasVideo        bool     `json:"hasVideo"`
}

// Scores are the numbers pulled out of each section's text. A nil score
// means the model did not state one.
type Scores struct {
	Headline *int `json:"headline"`
	CTA      *int `json:"cta"`
	Trust    *int `json:"trust"`
	Copy     *int `json:"copy"`
	Value    *int `json:"value"`
	Overall  *int `json:"overall"`
}

// Sections holds the raw text returned for each section prompt.
type Sections struct {
	Headline string `json:"headline"`
	CTA      string `json:"cta"`
	Trust    string `json:"trust"`
	Copy     string `json:"copy"`
	Value    string `json:"value"`
}

func (s Sections) all() []string {
	return []string{s.Headline, s.CTA, s.Trust, s.Copy, s.Value}
}

// Analysis is a complete critique.
type Analysis struct {
	URL             string    `json:"url"`
	Timestamp       time.Time `json:"timestamp"`
	Scores          Scores    `json:"scores"`
	Sections        Sections  `json:"analysis"`
	Recommendations string    `json:"recommendations"`
	QuickWins       []string  `json:"quickWins"`
	PriorityActions []string  `json:"priorityActions"`
}

// Client runs critiques against an OpenAI-compatible API.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	prompts Prompts
	enabled bool
}

// New builds a client. Without an API key the client is disabled and
// Critique returns ErrDisabled.
func New(cfg Config) (*Client, error) {
	prompts := cfg.Prompts
	if prompts == nil {
		p, err := DefaultPrompts()
		if err != nil {
			return nil, err
		}
		prompts = &p
	}

	c := &Client{
		model:   cfg.Model,
		timeout: cfg.Timeout,
		prompts: *prompts,
		enabled: cfg.APIKey != "",
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		apiCfg.HTTPClient = cfg.HTTPClient
	}
	c.api = openai.NewClientWithConfig(apiCfg)
	return c, nil
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.enabled
}

// Critique runs the five section prompts in parallel, then the overall prompt
// over their combined output.
func (c *Client) Critique(ctx context.Context, url string, in Input) (*Analysis, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var sections Sections
	headlineContent := strings.TrimSpace(in.Headline + " " + in.Subheadline)
	jobs := []struct {
		prompt  Prompt
		content string
		out     *string
	}{
		{c.prompts.Headline, headlineContent, &sections.Headline},
		{c.prompts.CTA, strings.Join(in.CTAs, ", "), &sections.CTA},
		{c.prompts.Trust, fmt.Sprintf("Testimonials: %t, Trust badges: %t, Video: %t", in.HasTestimonials, in.HasTrustBadges, in.HasVideo), &sections.Trust},
		{c.prompts.Copy, in.BodyText, &sections.Copy},
		{c.prompts.Value, strings.TrimSpace(in.Headline + " " + in.BodyText), &sections.Value},
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, job := range jobs {
		job := job
		wg.Add(1)
		go func() {
			defer wg.Done()
			text, err := c.complete(ctx, job.prompt, job.content)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				mu.Unlock()
				return
			}
			*job.out = text
		}()
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	combined, err := json.MarshalIndent(struct {
		Headline string `json:"headline"`
		CTAs     string `json:"ctas"`
		Trust    string `json:"trust"`
		Copy     string `json:"copy"`
		Value    string `json:"value"`
		URL      string `json:"url"`
	}{sections.Headline, sections.CTA, sections.Trust, sections.Copy, sections.Value, url}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode sections: %w", err)
	}

	overall, err := c.complete(ctx, c.prompts.Overall, string(combined))
	if err != nil {
		return nil, err
	}

	return &Analysis{
		URL:       url,
		Timestamp: time.Now().UTC(),
		Scores: Scores{
			Headline: scoreOf(sections.Headline),
			CTA:      scoreOf(sections.CTA),
			Trust:    scoreOf(sections.Trust),
			Copy:     scoreOf(sections.Copy),
			Value:    scoreOf(sections.Value),
			Overall:  scoreOf(overall),
		},
		Sections:        sections,
		Recommendations: overall,
		QuickWins:       textscan.ExtractQuickWins(sections.all()),
		PriorityActions: textscan.ExtractPriorityActions(overall),
	}, nil
}

func (c *Client) complete(ctx context.Context, p Prompt, content string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.Render(content)},
		},
		Temperature: c.prompts.Temperature,
		MaxTokens:   p.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompletion, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrCompletion)
	}
	return resp.Choices[0].Message.Content, nil
}

func scoreOf(text string) *int {
	n, ok := textscan.ExtractScore(text)
	if !ok {
		return nil
	}
	return &n
}
