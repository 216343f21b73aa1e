package index

import (
	"context"
	"sync"
)

// Memory is an in-process Client used in tests and local development. It
// honors the same identity and replacement semantics as the HTTP client.
type Memory struct {
	mu sync.RWMutex
	// docs is organization -> paper -> chunks.
	docs map[string]map[string][]Document
}

var _ Client = (*Memory)(nil)

// NewMemory creates an empty in-memory index.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string][]Document)}
}

// UpsertBatch stores the documents under their organization.
func (m *Memory) UpsertBatch(_ context.Context, docs []Document, organizationID string, replaceExisting bool) (UpsertStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byOrg := m.docs[organizationID]
	if byOrg == nil {
		byOrg = make(map[string][]Document)
		m.docs[organizationID] = byOrg
	}

	papers := make(map[string][]Document)
	for _, doc := range docs {
		doc.OrganizationID = organizationID
		papers[doc.PaperID] = append(papers[doc.PaperID], doc)
	}

	indexed := 0
	for paperID, chunks := range papers {
		if replaceExisting {
			byOrg[paperID] = chunks
		} else {
			byOrg[paperID] = append(byOrg[paperID], chunks...)
		}
		indexed += len(chunks)
	}
	return UpsertStats{Processed: len(papers), ChunksIndexed: indexed}, nil
}

// Health always reports green.
func (m *Memory) Health(context.Context) (Health, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Health{Status: "green", ShardCounts: map[string]int{"active": 1}}, nil
}

// ChunkCount returns the number of chunks stored for one paper in one
// organization.
func (m *Memory) ChunkCount(organizationID, paperID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs[organizationID][paperID])
}

// OrganizationDocs returns a copy of every chunk stored for one
// organization, across papers.
func (m *Memory) OrganizationDocs(organizationID string) []Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Document
	for _, chunks := range m.docs[organizationID] {
		out = append(out, chunks...)
	}
	return out
}
