package arxiv

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/config"
	apperrors "github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/errors"
)

const listingPage = `<!DOCTYPE html>
<html><body>
<dl>
<dt>
  <a href="/abs/2501.01234" title="Abstract">arXiv:2501.01234</a>
</dt>
<dd>
  <div class="list-title">Title: Attention Is Not Enough</div>
  <div class="list-authors">
    <a href="/a/doe_j_1">Jane Doe</a>,
    <a href="/a/smith_a_1">Alex Smith</a>
  </div>
  <div class="list-subjects">Subjects: Computation and Language (cs.CL); Machine Learning (cs.LG)</div>
  <div class="list-date">Announced: 14 Jan 2026</div>
  <p class="mathjax">Abstract: We revisit attention mechanisms in long-context settings.</p>
</dd>
<dt>
  <a href="/abs/2501.05678" title="Abstract">arXiv:2501.05678</a>
</dt>
<dd>
  <div class="list-title">Title: Retrieval for Scientific Corpora</div>
  <div class="list-authors">
    <a href="/a/lee_k_1">Kim Lee</a>
  </div>
  <div class="list-subjects">Subjects: Information Retrieval (cs.IR)</div>
  <div class="list-date">Announced: 15 Jan 2026</div>
  <p class="mathjax">Abstract: A study of dense retrieval over research papers.</p>
</dd>
</dl>
</body></html>`

func testClient(baseURL string) *HTTPClient {
	return NewHTTPClient(config.ArxivConfig{
		BaseURL:        baseURL,
		RequestTimeout: 2 * time.Second,
		MaxRetries:     1,
		PageSize:       25,
	}, nil)
}

func TestSearchParsesListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/list/cs.CL/recent")
		fmt.Fprint(w, listingPage)
	}))
	defer srv.Close()

	papers, err := testClient(srv.URL).Search(context.Background(), SearchQuery{
		Terms: []string{"cs.CL"},
		Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, papers, 2)

	first := papers[0]
	assert.Equal(t, "2501.01234", first.ArxivID)
	assert.Equal(t, "Attention Is Not Enough", first.Title)
	assert.Equal(t, []string{"Jane Doe", "Alex Smith"}, first.Authors)
	assert.Equal(t, "We revisit attention mechanisms in long-context settings.", first.Abstract)
	assert.Contains(t, first.Categories, "Computation and Language (cs.CL)")
	assert.Equal(t, time.Date(2026, 1, 14, 0, 0, 0, 0, time.UTC), first.Published)
	assert.Equal(t, "https://arxiv.org/pdf/2501.01234", first.PDFURL)
	assert.Equal(t, "arxiv", first.Source)
}

func TestSearchHonorsLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, listingPage)
	}))
	defer srv.Close()

	papers, err := testClient(srv.URL).Search(context.Background(), SearchQuery{
		Terms: []string{"cs.CL"},
		Limit: 1,
	})
	require.NoError(t, err)
	assert.Len(t, papers, 1)
}

func TestSearchDeduplicatesAcrossCategories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, listingPage)
	}))
	defer srv.Close()

	papers, err := testClient(srv.URL).Search(context.Background(), SearchQuery{
		Terms: []string{"cs.CL", "cs.LG"},
		Limit: 10,
	})
	require.NoError(t, err)
	assert.Len(t, papers, 2, "the same IDs served under both categories must appear once")
}

func TestSearchServerErrorIsSourceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Search(context.Background(), SearchQuery{
		Terms: []string{"cs.CL"},
		Limit: 5,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrSourceUnavailable))
}

func TestSearchRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, listingPage)
	}))
	defer srv.Close()

	c := NewHTTPClient(config.ArxivConfig{
		BaseURL:        srv.URL,
		RequestTimeout: 2 * time.Second,
		MaxRetries:     3,
		PageSize:       25,
	}, nil)

	papers, err := c.Search(context.Background(), SearchQuery{Terms: []string{"cs.CL"}, Limit: 5})
	require.NoError(t, err)
	assert.Len(t, papers, 2)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestSearchNoTermsFails(t *testing.T) {
	_, err := testClient("http://localhost:0").Search(context.Background(), SearchQuery{Limit: 5})
	assert.Error(t, err)
}

func TestParseListingDateMalformed(t *testing.T) {
	assert.True(t, parseListingDate("not a date").IsZero())
	assert.True(t, parseListingDate("").IsZero())
}
