// Package meme builds memegen image URLs and fetches memes from the
// public meme APIs. Both services are unauthenticated JSON over HTTP.
package meme

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

const (
	defaultMemegenBaseURL = "https://api.memegen.link"
	defaultMemeAPIBaseURL = "https://meme-api.com"
)

// Template is one entry of the memegen template catalog.
type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Example string `json:"example"`
}

// RandomMeme is a random meme returned by the meme API.
type RandomMeme struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	PostLink  string `json:"postLink"`
	Subreddit string `json:"subreddit"`
	Author    string `json:"author"`
}

// Client talks to the memegen and meme API services. The template catalog
// is cached in memory after the first successful fetch and never evicted.
type Client struct {
	httpClient *http.Client
	memegenURL string
	memeAPIURL string
	logger     *slog.Logger

	mu        sync.Mutex
	templates []Template
}

// NewClient creates a client against the public meme services.
func NewClient(logger *slog.Logger) *Client {
	return newClient(defaultMemegenBaseURL, defaultMemeAPIBaseURL, logger)
}

func newClient(memegenURL, memeAPIURL string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{},
		memegenURL: memegenURL,
		memeAPIURL: memeAPIURL,
		logger:     logger,
	}
}

// EncodeText escapes text for use in a memegen image URL. Replacements
// run in this exact order so separators introduced by earlier steps are
// not re-escaped. Empty text becomes the "_" placeholder.
func EncodeText(text string) string {
	if text == "" {
		return "_"
	}

	replacements := [][2]string{
		{"_", "__"},
		{"-", "--"},
		{" ", "_"},
		{"?", "~q"},
		{"#", "~h"},
		{"/", "~s"},
		{`"`, "''"},
		{"\n", "~n"},
	}
	for _, r := range replacements {
		text = strings.ReplaceAll(text, r[0], r[1])
	}
	return text
}

// BuildURL composes a memegen image URL for the template and text.
func (c *Client) BuildURL(templateID, top, bottom string) string {
	encodedBottom := "_"
	if bottom != "" {
		encodedBottom = EncodeText(bottom)
	}
	return fmt.Sprintf("%s/images/%s/%s/%s.png", c.memegenURL, templateID, EncodeText(top), encodedBottom)
}

// Templates returns the memegen template catalog, fetching it on first
// call or when forceRefresh is set. A non-OK response yields an empty
// slice, not an error.
func (c *Client) Templates(ctx context.Context, forceRefresh bool) ([]Template, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.templates != nil && !forceRefresh {
		return c.templates, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.memegenURL+"/templates", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build templates request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch meme templates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("meme template fetch returned non-OK status", "status", resp.StatusCode)
		return []Template{}, nil
	}

	var templates []Template
	if err := json.NewDecoder(resp.Body).Decode(&templates); err != nil {
		return nil, fmt.Errorf("failed to decode meme templates: %w", err)
	}

	c.templates = templates
	return templates, nil
}

// SearchTemplates returns templates whose name contains the query,
// case-insensitively.
func (c *Client) SearchTemplates(ctx context.Context, query string) ([]Template, error) {
	templates, err := c.Templates(ctx, false)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	var matches []Template
	for _, t := range templates {
		if strings.Contains(strings.ToLower(t.Name), query) {
			matches = append(matches, t)
		}
	}
	return matches, nil
}

// RandomMeme fetches a random meme, optionally scoped to a subreddit. A
// non-OK response yields nil, not an error.
func (c *Client) RandomMeme(ctx context.Context, subreddit string) (*RandomMeme, error) {
	url := c.memeAPIURL + "/gimme"
	if subreddit != "" {
		url += "/" + subreddit
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build random meme request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch random meme: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("random meme fetch returned non-OK status", "status", resp.StatusCode)
		return nil, nil
	}

	var result RandomMeme
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode random meme: %w", err)
	}
	return &result, nil
}
