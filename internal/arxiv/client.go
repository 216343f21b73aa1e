// Package arxiv implements the external paper source client. It crawls
// arXiv listing pages, extracts paper metadata, and shields the pipeline
// from transport flakiness with retry and a circuit breaker.
package arxiv

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/paper"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/config"
	apperrors "github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/errors"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/resilience"
)

const sourceName = "arxiv"

var dateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)

// SearchQuery is a bounded query against the paper source.
type SearchQuery struct {
	// Terms are arXiv category identifiers, e.g. "cs.AI".
	Terms  []string
	Limit  int
	SortBy string
}

// Client retrieves papers from an external source.
type Client interface {
	Search(ctx context.Context, q SearchQuery) ([]paper.Paper, error)
}

// HTTPClient is the production Client crawling arXiv listing pages.
type HTTPClient struct {
	baseURL  string
	http     *http.Client
	pageSize int
	retries  int
	breaker  *resilience.CircuitBreaker
	logger   *slog.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client from config. A nil http.Client gets a
// default with the configured request timeout.
func NewHTTPClient(cfg config.ArxivConfig, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	return &HTTPClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     httpClient,
		pageSize: pageSize,
		retries:  cfg.MaxRetries,
		breaker:  resilience.NewCircuitBreaker("arxiv", resilience.CircuitBreakerConfig{}),
		logger:   slog.Default().With("component", "arxiv-client"),
	}
}

// Search walks the listing page of each category until the limit is
// reached. Transport errors surface as ErrSourceUnavailable.
func (c *HTTPClient) Search(ctx context.Context, q SearchQuery) ([]paper.Paper, error) {
	if len(q.Terms) == 0 {
		return nil, apperrors.New(apperrors.ErrSourceUnavailable, "no query terms provided")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = c.pageSize
	}

	results := make([]paper.Paper, 0, limit)
	seen := map[string]struct{}{}

	for _, term := range q.Terms {
		skip := 0
		for len(results) < limit {
			pageURL, err := c.buildPageURL(term, skip, c.pageSize)
			if err != nil {
				return nil, apperrors.Newf(apperrors.ErrSourceUnavailable, "category %s: %v", term, err)
			}

			doc, err := c.fetchDocument(ctx, pageURL)
			if err != nil {
				return nil, err
			}

			pageResults := extractPapers(doc)
			for _, p := range pageResults {
				if _, ok := seen[p.ArxivID]; ok {
					continue
				}
				seen[p.ArxivID] = struct{}{}
				results = append(results, p)
				if len(results) >= limit {
					break
				}
			}

			if len(pageResults) < c.pageSize {
				break
			}
			skip += c.pageSize
		}
		if len(results) >= limit {
			break
		}
	}

	c.logger.Debug("search completed", "terms", q.Terms, "papers", len(results))
	return results, nil
}

func (c *HTTPClient) buildPageURL(category string, skip, show int) (string, error) {
	u, err := url.Parse(fmt.Sprintf("%s/list/%s/recent", c.baseURL, category))
	if err != nil {
		return "", fmt.Errorf("parse listing url: %w", err)
	}
	query := u.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(show))
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// fetchDocument retrieves and parses one listing page, retrying transient
// failures behind the circuit breaker.
func (c *HTTPClient) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	var doc *goquery.Document
	err := c.breaker.Execute(func() error {
		return resilience.Retry(ctx, "arxiv-fetch", resilience.RetryConfig{MaxAttempts: c.retries}, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
			if err != nil {
				return fmt.Errorf("build request: %w", err)
			}
			req.Header.Set("User-Agent", "research-copilot/1.0")

			resp, err := c.http.Do(req)
			if err != nil {
				return fmt.Errorf("request listing: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("arxiv returned %s", resp.Status)
			}

			parsed, err := goquery.NewDocumentFromReader(resp.Body)
			if err != nil {
				return fmt.Errorf("parse listing: %w", err)
			}
			doc = parsed
			return nil
		})
	})
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrSourceUnavailable, "fetching %s: %v", pageURL, err)
	}
	return doc, nil
}

// extractPapers pulls paper entries out of an arXiv listing document. The
// listing interleaves <dt> (identifier) and <dd> (metadata) nodes.
func extractPapers(doc *goquery.Document) []paper.Paper {
	var papers []paper.Paper

	doc.Find("dl > dt").Each(func(_ int, dt *goquery.Selection) {
		dd := dt.Next()
		if !dd.Is("dd") {
			return
		}

		link, ok := dt.Find("a[href^='/abs/']").Attr("href")
		if !ok {
			return
		}
		arxivID := strings.TrimPrefix(link, "/abs/")
		if arxivID == "" {
			return
		}

		title := cleanField(dd.Find("div.list-title").Text(), "Title:")
		abstract := strings.TrimSpace(dd.Find("p.mathjax").Text())
		abstract = strings.TrimSpace(strings.TrimPrefix(abstract, "Abstract:"))

		var authors []string
		dd.Find("div.list-authors a").Each(func(_ int, a *goquery.Selection) {
			if name := strings.TrimSpace(a.Text()); name != "" {
				authors = append(authors, name)
			}
		})

		var categories []string
		subjects := cleanField(dd.Find("div.list-subjects").Text(), "Subjects:")
		for _, s := range strings.Split(subjects, ";") {
			if s = strings.TrimSpace(s); s != "" {
				categories = append(categories, s)
			}
		}

		published := parseListingDate(dd.Find("div.list-date").Text())

		papers = append(papers, paper.Paper{
			ArxivID:    arxivID,
			Title:      title,
			Authors:    authors,
			Abstract:   abstract,
			Categories: categories,
			Published:  published,
			PDFURL:     fmt.Sprintf("https://arxiv.org/pdf/%s", arxivID),
			Source:     sourceName,
		})
	})

	return papers
}

func cleanField(text, prefix string) string {
	text = strings.TrimSpace(text)
	return strings.TrimSpace(strings.TrimPrefix(text, prefix))
}

func parseListingDate(text string) time.Time {
	match := dateExpr.FindString(text)
	if match == "" {
		return time.Time{}
	}
	t, err := time.Parse("2 Jan 2006", match)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
