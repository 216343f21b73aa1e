// Package paper defines the fetched-item model shared by all pipeline
// stages. A Paper is immutable once produced by the fetch stage.
package paper

import "time"

// Paper is one external document fetched for ingestion.
type Paper struct {
	ArxivID        string
	Title          string
	Authors        []string
	Abstract       string
	Categories     []string
	Published      time.Time
	PDFURL         string
	Source         string
	OrganizationID string
}

// WithOrganization returns a copy of the paper tagged with its owning
// organization. The receiver is left untouched.
func (p Paper) WithOrganization(orgID string) Paper {
	p.OrganizationID = orgID
	return p
}
