// Package directory talks to the people-search and contact-lookup provider.
package directory

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Lookup when the provider has no match.
var ErrNotFound = errors.New("directory: no match")

type SearchRequest struct {
	CompanyName   string   `json:"company_name"`
	CompanyDomain string   `json:"company_domain,omitempty"`
	Titles        []string `json:"titles"`
	Country       string   `json:"country,omitempty"`
	Limit         int      `json:"limit"`
}

type Person struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Location    string `json:"location,omitempty"`
	LinkedInURL string `json:"linkedin_url,omitempty"`
}

type LookupRequest struct {
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	LinkedInURL string `json:"linkedin_url,omitempty"`
	Domain      string `json:"domain"`
}

// Contact holds whatever the provider knows; nil fields are unknown.
type Contact struct {
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

type Searcher interface {
	Search(ctx context.Context, req SearchRequest) ([]Person, error)
}

type Lookuper interface {
	Lookup(ctx context.Context, req LookupRequest) (Contact, error)
}
