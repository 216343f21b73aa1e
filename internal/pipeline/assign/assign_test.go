package assign

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/org"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/paper"
)

// orgWithLimit builds an organization whose derived ingestion limit equals
// the given value (limit = MaxUsers/2).
func orgWithLimit(id string, limit int) org.Organization {
	return org.Organization{
		ID:               id,
		Name:             "org " + id,
		MaxUsers:         limit * 2,
		IsActive:         true,
		IngestionAllowed: true,
	}
}

func makePapers(n int) []paper.Paper {
	papers := make([]paper.Paper, n)
	for i := 0; i < n; i++ {
		papers[i] = paper.Paper{
			ArxivID: fmt.Sprintf("2501.%05d", i),
			Title:   fmt.Sprintf("paper %d", i),
		}
	}
	return papers
}

func TestAssignConservation(t *testing.T) {
	cases := []struct {
		name   string
		limits []int
		papers int
	}{
		{"under capacity", []int{5, 5, 5}, 7},
		{"exact capacity", []int{2, 3}, 5},
		{"over capacity", []int{1, 2}, 10},
		{"single org", []int{4}, 9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orgs := make([]org.Organization, len(tc.limits))
			for i, l := range tc.limits {
				orgs[i] = orgWithLimit(fmt.Sprintf("org-%d", i), l)
			}
			a := Assign(orgs, makePapers(tc.papers), 0)

			assert.Equal(t, tc.papers, a.TotalAssigned()+a.Unassigned,
				"every paper must be assigned or counted unassigned")
			for id, oa := range a.PerOrg {
				assert.GreaterOrEqual(t, oa.RemainingCapacity, 0, "org %s capacity went negative", id)
				assert.Equal(t, oa.Organization.IngestionLimit(0), oa.AssignedCount+oa.RemainingCapacity,
					"org %s assigned+remaining must equal its limit", id)
				assert.Len(t, oa.Papers, oa.AssignedCount)
			}
		})
	}
}

func TestAssignDeterministic(t *testing.T) {
	orgs := []org.Organization{
		orgWithLimit("a", 3),
		orgWithLimit("b", 4),
		orgWithLimit("c", 2),
	}
	papers := makePapers(12)

	first := Assign(orgs, papers, 0)
	for i := 0; i < 10; i++ {
		again := Assign(orgs, papers, 0)
		require.Equal(t, first.Unassigned, again.Unassigned)
		require.Equal(t, first.Order, again.Order)
		for id := range first.PerOrg {
			require.Equal(t, first.PerOrg[id].AssignedCount, again.PerOrg[id].AssignedCount, "org %s", id)
			require.Equal(t, first.PerOrg[id].Papers, again.PerOrg[id].Papers, "org %s", id)
		}
	}
}

func TestAssignTenPapersAcrossThreeOrgs(t *testing.T) {
	orgs := []org.Organization{
		orgWithLimit("large", 5),
		orgWithLimit("medium", 3),
		orgWithLimit("small", 2),
	}
	a := Assign(orgs, makePapers(10), 0)

	assert.Equal(t, 5, a.PerOrg["large"].AssignedCount)
	assert.Equal(t, 3, a.PerOrg["medium"].AssignedCount)
	assert.Equal(t, 2, a.PerOrg["small"].AssignedCount)
	assert.Zero(t, a.Unassigned)
}

func TestAssignOverflowCountsUnassigned(t *testing.T) {
	orgs := []org.Organization{
		orgWithLimit("a", 1),
		orgWithLimit("b", 1),
	}
	a := Assign(orgs, makePapers(5), 0)

	assert.Equal(t, 1, a.PerOrg["a"].AssignedCount)
	assert.Equal(t, 1, a.PerOrg["b"].AssignedCount)
	assert.Equal(t, 3, a.Unassigned)
}

func TestAssignNoOrganizations(t *testing.T) {
	a := Assign(nil, makePapers(4), 0)
	assert.Zero(t, a.TotalAssigned())
	assert.Equal(t, 4, a.Unassigned)
}

func TestAssignTagsPapersWithOwner(t *testing.T) {
	orgs := []org.Organization{orgWithLimit("tenant-1", 3)}
	a := Assign(orgs, makePapers(3), 0)

	for _, p := range a.PerOrg["tenant-1"].Papers {
		assert.Equal(t, "tenant-1", p.OrganizationID)
	}
}

func TestAssignHonorsCeiling(t *testing.T) {
	orgs := []org.Organization{orgWithLimit("a", 50)}
	a := Assign(orgs, makePapers(30), 10)

	assert.Equal(t, 10, a.PerOrg["a"].AssignedCount)
	assert.Equal(t, 20, a.Unassigned)
}
