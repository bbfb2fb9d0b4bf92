// Package normalize turns parsed listings into canonical job records and
// tracks identity keys for deduplication.
package normalize

import (
	"time"

	"github.com/amishk599/jobradar/internal/model"
)

// Record converts a raw listing into a JobRecord scraped at now. It is a pure
// function: the same listing always yields the same identity key.
func Record(raw model.RawListing, source string, now time.Time) model.JobRecord {
	title := collapse(raw.Title)
	company := collapse(raw.Company)
	location, remote := Location(raw.Location)
	description := collapse(raw.Description)

	rec := model.JobRecord{
		Key:         IdentityKey(source, title, company, location, raw.URL),
		Title:       title,
		Company:     company,
		Location:    location,
		Remote:      remote || IsRemote(title),
		SalaryText:  collapse(raw.Salary),
		Source:      source,
		ScrapedAt:   now.UTC(),
		PostedText:  collapse(raw.Posted),
		Description: description,
		Language:    DetectLanguage(title, description),
	}
	if u, ok := CanonicalURL(raw.URL); ok {
		rec.URL = u
	}
	if rec.SalaryText != "" {
		rec.Salary = ParseSalary(rec.SalaryText)
	}
	if rec.PostedText != "" {
		rec.PostedAt = ParsePosted(rec.PostedText, now)
	}
	return rec
}

// Deduper remembers identity keys seen during one run. First seen wins.
// A Deduper is not safe for concurrent use.
type Deduper struct {
	seen map[string]struct{}
}

// NewDeduper returns an empty Deduper.
func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[string]struct{})}
}

// Add records key and reports whether it was new.
func (d *Deduper) Add(key string) bool {
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

// Seen reports whether key was already added.
func (d *Deduper) Seen(key string) bool {
	_, ok := d.seen[key]
	return ok
}

// Len returns the number of distinct keys.
func (d *Deduper) Len() int { return len(d.seen) }
