package scrapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
	"github.com/custodia-labs/scrapbox-rag/internal/core/ports/driven"
	"github.com/custodia-labs/scrapbox-rag/internal/logger"
)

// Ensure Crawler implements the interface.
var _ driven.ProjectSource = (*Crawler)(nil)

const (
	// DefaultBaseURL is the public Scrapbox host.
	DefaultBaseURL = "https://scrapbox.io"

	// DefaultPageLimit is the page list size requested per call.
	// The API caps it at 1000.
	DefaultPageLimit = 1000

	// DefaultRate is requests per second sent to the API.
	DefaultRate = 2.0

	// SessionCookie is the cookie that authenticates private projects.
	SessionCookie = "connect.sid"

	defaultTimeout = 30 * time.Second
)

// CrawlerConfig holds the settings for a Scrapbox API crawl.
type CrawlerConfig struct {
	BaseURL    string
	Project    string
	ConnectSID string
	// Rate is requests per second; zero uses DefaultRate, negative disables throttling.
	Rate       float64
	PageLimit  int
	HTTPClient *http.Client
}

// Crawler fetches every page of a project through the REST API.
type Crawler struct {
	baseURL    string
	project    string
	connectSID string
	pageLimit  int
	limiter    *rate.Limiter
	client     *http.Client
}

// NewCrawler creates a crawler for one project.
func NewCrawler(cfg CrawlerConfig) (*Crawler, error) {
	if cfg.Project == "" {
		return nil, ErrProjectRequired
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PageLimit <= 0 || cfg.PageLimit > DefaultPageLimit {
		cfg.PageLimit = DefaultPageLimit
	}
	if cfg.Rate == 0 {
		cfg.Rate = DefaultRate
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Crawler{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		project:    cfg.Project,
		connectSID: cfg.ConnectSID,
		pageLimit:  cfg.PageLimit,
		limiter:    limiter,
		client:     client,
	}, nil
}

// pageList is the /api/pages/{project} response.
type pageList struct {
	ProjectName string        `json:"projectName"`
	Skip        int           `json:"skip"`
	Limit       int           `json:"limit"`
	Count       int           `json:"count"`
	Pages       []PageSummary `json:"pages"`
}

// PageSummary is one entry of the page list.
type PageSummary struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Updated int64  `json:"updated"`
	Pin     int    `json:"pin"`
}

// pageDetail is the /api/pages/{project}/{title} response.
type pageDetail struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Updated int64  `json:"updated"`
	Pin     int    `json:"pin"`
	Lines   []struct {
		Text string `json:"text"`
	} `json:"lines"`
}

// Fetch lists all pages, then fetches each page's lines.
// A page that disappears between listing and fetching is skipped.
func (c *Crawler) Fetch(ctx context.Context) (*domain.Project, error) {
	summaries, err := c.ListPages(ctx)
	if err != nil {
		return nil, err
	}

	project := &domain.Project{
		Name:        c.project,
		DisplayName: c.project,
		Pages:       make([]domain.Page, 0, len(summaries)),
	}
	for i, s := range summaries {
		page, err := c.FetchPage(ctx, s.Title)
		if IsNotFound(err) {
			logger.Warn("scrapbox: page %q vanished during crawl, skipping", s.Title)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fetch page %q: %w", s.Title, err)
		}
		project.Pages = append(project.Pages, *page)
		if (i+1)%100 == 0 {
			logger.Info("scrapbox: fetched %d/%d pages", i+1, len(summaries))
		}
	}
	return project, nil
}

// ListPages pages through the project's page list.
func (c *Crawler) ListPages(ctx context.Context) ([]PageSummary, error) {
	var all []PageSummary
	for skip := 0; ; {
		q := url.Values{}
		q.Set("skip", strconv.Itoa(skip))
		q.Set("limit", strconv.Itoa(c.pageLimit))
		endpoint := fmt.Sprintf("%s/api/pages/%s?%s", c.baseURL, url.PathEscape(c.project), q.Encode())

		var list pageList
		if err := c.get(ctx, endpoint, &list); err != nil {
			if IsNotFound(err) {
				return nil, ErrProjectNotFound
			}
			return nil, fmt.Errorf("list pages: %w", err)
		}
		all = append(all, list.Pages...)
		skip += len(list.Pages)
		if len(list.Pages) == 0 || skip >= list.Count {
			return all, nil
		}
	}
}

// FetchPage fetches one page by title.
func (c *Crawler) FetchPage(ctx context.Context, title string) (*domain.Page, error) {
	endpoint := fmt.Sprintf("%s/api/pages/%s/%s", c.baseURL, url.PathEscape(c.project), url.PathEscape(title))
	var detail pageDetail
	if err := c.get(ctx, endpoint, &detail); err != nil {
		return nil, err
	}
	page := &domain.Page{
		ID:      detail.ID,
		Title:   detail.Title,
		Updated: detail.Updated,
		Pin:     detail.Pin,
		Lines:   make([]string, len(detail.Lines)),
	}
	for i, l := range detail.Lines {
		page.Lines[i] = l.Text
	}
	return page, nil
}

func (c *Crawler) get(ctx context.Context, endpoint string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.connectSID != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: c.connectSID})
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{StatusCode: resp.StatusCode, Message: domain.Excerpt(strings.TrimSpace(string(body)), 200), URL: endpoint}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}
