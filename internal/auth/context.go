// Package auth carries the validated security context of a pipeline run.
// The account subsystem that issues it is external; the pipeline only
// consumes the outcome of its validation.
package auth

import "github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/org"

// Context is the security context under which a pipeline run executes.
// When the upstream validation already resolved the caller's organization
// list, Organizations is populated and the directory can reuse it without
// a second repository round trip.
type Context struct {
	Subject       string
	Validated     bool
	Organizations []org.Organization
}

// IsValidated reports whether upstream validation succeeded.
func (c *Context) IsValidated() bool { return c.Validated }

// ResolvedOrganizations returns the organization list attached by upstream
// validation, if any.
func (c *Context) ResolvedOrganizations() []org.Organization { return c.Organizations }

// System returns a pre-validated context for scheduler-driven runs that
// act on behalf of the whole deployment.
func System() *Context {
	return &Context{Subject: "system", Validated: true}
}
