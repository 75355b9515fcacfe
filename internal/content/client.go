// Package content fetches editorial content (blog posts, static pages) from a
// WordPress REST API. The storefront never writes content.
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
)

const maxResponseSize = 5 * 1024 * 1024

// Client reads from a WordPress site's wp/v2 namespace.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// New builds a Client for the WordPress installation at baseURL (the site
// root, without the /wp-json suffix).
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// rendered is WordPress's {"rendered": "<html>"} wrapper.
type rendered struct {
	Rendered string `json:"rendered"`
}

type wirePost struct {
	ID      int64    `json:"id"`
	Slug    string   `json:"slug"`
	Date    string   `json:"date_gmt"`
	Title   rendered `json:"title"`
	Excerpt rendered `json:"excerpt"`
	Content rendered `json:"content"`
}

func (p *wirePost) toPost() domain.Post {
	published, _ := time.Parse("2006-01-02T15:04:05", p.Date)
	return domain.Post{
		ID:          p.ID,
		Slug:        p.Slug,
		Title:       p.Title.Rendered,
		Excerpt:     p.Excerpt.Rendered,
		Content:     p.Content.Rendered,
		PublishedAt: published,
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + "/wp-json/wp/v2" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("content: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("content request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("content: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("content: unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("content: read response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("content: decode response: %w", err)
	}
	return nil
}

// Posts lists published blog posts, newest first.
func (c *Client) Posts(ctx context.Context, page, perPage int) ([]domain.Post, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(perPage))

	var wire []wirePost
	if err := c.get(ctx, "/posts", query, &wire); err != nil {
		return nil, err
	}
	out := make([]domain.Post, 0, len(wire))
	for i := range wire {
		out = append(out, wire[i].toPost())
	}
	return out, nil
}

// PostBySlug fetches one post, or domain.ErrNotFound.
func (c *Client) PostBySlug(ctx context.Context, slug string) (*domain.Post, error) {
	query := url.Values{}
	query.Set("slug", slug)

	var wire []wirePost
	if err := c.get(ctx, "/posts", query, &wire); err != nil {
		return nil, err
	}
	if len(wire) == 0 {
		return nil, domain.ErrNotFound
	}
	post := wire[0].toPost()
	return &post, nil
}

// PageBySlug fetches one static page, or domain.ErrNotFound.
func (c *Client) PageBySlug(ctx context.Context, slug string) (*domain.Page, error) {
	query := url.Values{}
	query.Set("slug", slug)

	var wire []wirePost
	if err := c.get(ctx, "/pages", query, &wire); err != nil {
		return nil, err
	}
	if len(wire) == 0 {
		return nil, domain.ErrNotFound
	}
	return &domain.Page{
		ID:      wire[0].ID,
		Slug:    wire[0].Slug,
		Title:   wire[0].Title.Rendered,
		Content: wire[0].Content.Rendered,
	}, nil
}
