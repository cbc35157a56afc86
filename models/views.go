package models

import "time"

// SubstitutionMapping replaces extracted source text before it is sent to
// the translation collaborator. Keyed by Original; maintained by
// administrators, never evicted automatically.
type SubstitutionMapping struct {
	Original    string
	Replacement string
	UpdatedAt   time.Time
}

// AggregateView is a derived projection grouping cache entries by
// (document, language). Computed on read, never stored.
type AggregateView struct {
	Document       string
	Language       string
	PageCount      int
	FirstPage      int
	LastPage       int
	SizeBytes      int64
	LastAccessedAt time.Time
}

// Filter narrows entry listings on the admin surface. Zero values match
// everything.
type Filter struct {
	Document string      // exact document match
	Language string      // exact language match
	Status   EntryStatus // exact status match
	Search   string      // substring match on document id
}

// Page is one page of a paginated listing. PageIndex is zero-based.
type Page[T any] struct {
	Items     []T
	Total     int
	PageIndex int
	PageSize  int
}

// Stats summarizes cache contents for the admin surface. HitRate is an
// approximation derived from persisted access counters.
type Stats struct {
	Entries      int
	TotalBytes   int64
	TotalAccess  int64
	HitRate      float64
	TierEntries  map[string]int
	StaleEntries int
}
