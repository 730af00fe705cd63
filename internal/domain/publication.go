package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Service is one backend source available for listing and searching.
type Service struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Search bool   `json:"search"`
}

// ID is a publication identifier. Backends disagree on whether ids are JSON
// strings or numbers, so both decode to the string form.
type ID string

func (i *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*i = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("publication id: %w", err)
	}
	*i = ID(n.String())
	return nil
}

func (i ID) String() string { return string(i) }

// PageRef describes the page set of a publication: how many pages it has and
// the image URL template, with a %d placeholder for the 1-based page index.
type PageRef struct {
	Count int    `json:"count"`
	URL   string `json:"url"`
}

// Publication is one multi-page document known to the backend.
type Publication struct {
	ID          ID       `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Username    string   `json:"username,omitempty"`
	Publisher   string   `json:"publisher,omitempty"`
	URL         string   `json:"url,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Pages       PageRef  `json:"pages"`
}

// PageURL resolves the image URL for a 1-based page index.
func (p Publication) PageURL(page int) string {
	return strings.Replace(p.Pages.URL, "%d", strconv.Itoa(page), 1)
}

// Author returns the metadata author: publisher when present, else username.
func (p Publication) Author() string {
	if p.Publisher != "" {
		return p.Publisher
	}
	return p.Username
}

// Keywords joins the tag list with spaces, dropping path separators.
func (p Publication) Keywords() string {
	if len(p.Tags) == 0 {
		return ""
	}
	cleaned := make([]string, 0, len(p.Tags))
	for _, tag := range p.Tags {
		tag = strings.ReplaceAll(tag, "\\", "")
		tag = strings.ReplaceAll(tag, "/", "")
		cleaned = append(cleaned, tag)
	}
	return strings.Join(cleaned, " ")
}

// Listing is one page of results from the listing/search API. Username and
// Publisher, when present, apply to every publication that does not carry
// its own.
type Listing struct {
	Publications []Publication `json:"publications"`
	Total        int           `json:"total,omitempty"`
	Username     string        `json:"username,omitempty"`
	Publisher    string        `json:"publisher,omitempty"`
}

// DownloadRequest identifies what one download operation should produce.
type DownloadRequest struct {
	SourceURL string
	Term      string
	IsSearch  bool
	AllowList []string
	DenyList  []string
}
