// Package news holds the transient values that flow through one polling cycle.
package news

import "time"

// Entry is one item of a parsed feed.
type Entry struct {
	Title       string
	Link        string
	PublishedAt *time.Time
	Source      string // feed URL the entry came from
}

// Article is the extracted content behind an entry's link.
type Article struct {
	URL       string
	Title     string
	Text      string
	LeadImage string // empty when the page has no representative image
}

// HasImage reports whether the article carries a lead image.
func (a Article) HasImage() bool {
	return a.LeadImage != ""
}

// Post is what gets handed to the publisher.
type Post struct {
	Title     string
	Link      string
	Summary   string
	LeadImage string
}
