package fetch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/arxiv"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/org"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/paper"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/pipeline"
	apperrors "github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/errors"
)

// stubSource serves a fixed number of papers per query and can be told to
// fail, panic, or hang for specific calls.
type stubSource struct {
	mu       sync.Mutex
	calls    int
	papers   int
	failFrom int // 1-based call number that fails; 0 disables
	panicky  bool
	hang     bool
}

func (s *stubSource) Search(ctx context.Context, q arxiv.SearchQuery) ([]paper.Paper, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()

	if s.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.panicky {
		panic("stub source exploded")
	}
	if s.failFrom > 0 && call >= s.failFrom {
		return nil, apperrors.New(apperrors.ErrSourceUnavailable, "listing page unreachable")
	}

	n := s.papers
	if q.Limit < n {
		n = q.Limit
	}
	out := make([]paper.Paper, n)
	for i := 0; i < n; i++ {
		out[i] = paper.Paper{
			ArxivID: fmt.Sprintf("2501.%03d%03d", call, i),
			Title:   fmt.Sprintf("paper %d-%d", call, i),
		}
	}
	return out, nil
}

type memorySeen struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemorySeen() *memorySeen { return &memorySeen{seen: make(map[string]bool)} }

func (m *memorySeen) Seen(_ context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[id]
}

func (m *memorySeen) MarkSeen(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[id] = true
	return nil
}

func testOrgs(n int) []org.Organization {
	orgs := make([]org.Organization, n)
	for i := 0; i < n; i++ {
		orgs[i] = org.Organization{
			ID:               fmt.Sprintf("org-%d", i),
			MaxUsers:         20,
			IsActive:         true,
			IngestionAllowed: true,
		}
	}
	return orgs
}

func TestFetchAllOrganizationsSucceed(t *testing.T) {
	source := &stubSource{papers: 3}
	c := New(source, nil, nil, Options{Workers: 2, StageTimeout: 5 * time.Second})

	result, papers := c.Run(context.Background(), testOrgs(3), 3)

	assert.Equal(t, pipeline.StatusSuccess, result.Status)
	assert.Len(t, papers, 9)
	require.Len(t, result.PerOrg, 3)
	for id, o := range result.PerOrg {
		assert.Equal(t, pipeline.StatusSuccess, o.Status, "org %s", id)
		assert.Equal(t, 3, o.Processed)
	}
	assert.Equal(t, float64(9), result.Metrics["papers_fetched"])
}

func TestFetchTagsPapersWithOwner(t *testing.T) {
	source := &stubSource{papers: 2}
	c := New(source, nil, nil, Options{Workers: 1, StageTimeout: 5 * time.Second})

	_, papers := c.Run(context.Background(), testOrgs(1), 2)
	require.Len(t, papers, 2)
	for _, p := range papers {
		assert.Equal(t, "org-0", p.OrganizationID)
	}
}

func TestFetchFailureDoesNotAbortSiblings(t *testing.T) {
	// One task fails with SourceUnavailable while the others succeed: the
	// stage stays successful and only that organization is marked failed.
	source := &stubSource{papers: 2, failFrom: 3}
	c := New(source, nil, nil, Options{Workers: 1, StageTimeout: 5 * time.Second})

	result, papers := c.Run(context.Background(), testOrgs(3), 2)

	assert.Equal(t, pipeline.StatusSuccess, result.Status, "stage status reflects pool health, not task outcomes")
	succeeded, failed := result.OrgCounts()
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 1, failed)
	assert.Len(t, papers, 4, "failed org contributes no papers")

	for _, o := range result.PerOrg {
		if o.Status == pipeline.StatusFailed {
			require.NotEmpty(t, o.Errors)
			assert.Contains(t, o.Errors[0], "unavailable")
		}
	}
}

func TestFetchPanicIsContained(t *testing.T) {
	source := &stubSource{panicky: true}
	c := New(source, nil, nil, Options{Workers: 2, StageTimeout: 5 * time.Second})

	result, papers := c.Run(context.Background(), testOrgs(2), 2)

	assert.Equal(t, pipeline.StatusSuccess, result.Status)
	assert.Empty(t, papers)
	for _, o := range result.PerOrg {
		assert.Equal(t, pipeline.StatusFailed, o.Status)
		require.NotEmpty(t, o.Errors)
		assert.Contains(t, o.Errors[0], "panic")
	}
}

func TestFetchStageTimeoutMarksStragglers(t *testing.T) {
	source := &stubSource{hang: true}
	c := New(source, nil, nil, Options{Workers: 2, StageTimeout: 100 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, papers := c.Run(ctx, testOrgs(2), 2)

	assert.Empty(t, papers)
	for id, o := range result.PerOrg {
		assert.Equal(t, pipeline.StatusFailed, o.Status, "org %s", id)
		require.NotEmpty(t, o.Errors, "org %s", id)
		assert.Contains(t, o.Errors[0], "timed out")
	}
}

func TestFetchSkipsSeenPapers(t *testing.T) {
	source := &stubSource{papers: 3}
	seen := newMemorySeen()
	c := New(source, seen, nil, Options{Workers: 1, StageTimeout: 5 * time.Second})

	// Marking happens after indexing, so simulate a previous run by
	// pre-marking one ID the source will serve again.
	_, first := c.Run(context.Background(), testOrgs(1), 3)
	require.Len(t, first, 3)
	require.NoError(t, seen.MarkSeen(context.Background(), first[0].ArxivID))

	// A fresh stub reproduces the same IDs; the marked one is skipped.
	source2 := &stubSource{papers: 3}
	c2 := New(source2, seen, nil, Options{Workers: 1, StageTimeout: 5 * time.Second})
	result, second := c2.Run(context.Background(), testOrgs(1), 3)

	assert.Len(t, second, 2)
	for _, p := range second {
		assert.NotEqual(t, first[0].ArxivID, p.ArxivID)
	}
	assert.Equal(t, 2, result.PerOrg["org-0"].Processed)
}

func TestFetchRespectsPerOrgLimit(t *testing.T) {
	source := &stubSource{papers: 100}
	c := New(source, nil, nil, Options{Workers: 1, StageTimeout: 5 * time.Second})

	// IngestionLimit is 10 (MaxUsers 20 / 2) but perOrgLimit is tighter.
	_, papers := c.Run(context.Background(), testOrgs(1), 4)
	assert.Len(t, papers, 4)
}

func TestFetchEmptyOrganizationList(t *testing.T) {
	c := New(&stubSource{}, nil, nil, Options{Workers: 1, StageTimeout: time.Second})
	result, papers := c.Run(context.Background(), nil, 5)
	assert.Equal(t, pipeline.StatusSuccess, result.Status)
	assert.Empty(t, papers)
	assert.Empty(t, result.PerOrg)
}
