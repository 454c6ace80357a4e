// Package research fetches external retention intelligence from the Brave
// web search API. Results feed the generation model as an optional context
// block for high-risk customers.
package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.search.brave.com/res/v1"

type Config struct {
	APIKey      string        `split_words:"true" required:"true"`
	BaseURL     string        `split_words:"true"`
	ResultCount int           `split_words:"true" default:"5"`
	Timeout     time.Duration `split_words:"true" default:"10s"`
}

type Client struct {
	baseURL     string
	apiKey      string
	resultCount int
	httpClient  *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("brave api key is required")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}

	resultCount := cfg.ResultCount
	if resultCount <= 0 {
		resultCount = 5
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		resultCount: resultCount,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

type searchResponse struct {
	Web struct {
		Results []searchResult `json:"results"`
	} `json:"web"`
}

type searchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Research runs a web search for the topic hint and renders the top results
// as a plain-text block. An empty result set returns an empty string with no
// error.
func (c *Client) Research(ctx context.Context, topicHint string) (string, error) {
	topicHint = strings.TrimSpace(topicHint)
	if topicHint == "" {
		return "", errors.New("research topic is empty")
	}

	endpoint := fmt.Sprintf("%s/web/search?q=%s&count=%d", c.baseURL, url.QueryEscape(topicHint), c.resultCount)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("brave search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("brave search status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode brave search response: %w", err)
	}

	return renderResults(parsed.Web.Results), nil
}

func renderResults(results []searchResult) string {
	if len(results) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Relevant retention research:\n")
	for _, r := range results {
		title := strings.TrimSpace(r.Title)
		if title == "" {
			continue
		}
		fmt.Fprintf(&sb, "- %s", title)
		if desc := strings.TrimSpace(r.Description); desc != "" {
			fmt.Fprintf(&sb, ": %s", desc)
		}
		if r.URL != "" {
			fmt.Fprintf(&sb, " (%s)", r.URL)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
