package types

import (
	"encoding/json"
	"time"
)

// SourceType classifies the provenance of a data source.
type SourceType string

const (
	SourcePrimary      SourceType = "primary"      // Company website, official docs
	SourceSecondary    SourceType = "secondary"    // News articles, research reports
	SourceTertiary     SourceType = "tertiary"     // Third-party databases, aggregators
	SourceVerification SourceType = "verification" // Fact-checking services
)

// DefaultReliability returns the default reliability score for a source type.
func (t SourceType) DefaultReliability() float64 {
	switch t {
	case SourcePrimary:
		return 1.0
	case SourceSecondary:
		return 0.8
	case SourceTertiary:
		return 0.6
	case SourceVerification:
		return 0.9
	}
	return 0.8
}

// ParseSourceType maps a string onto a SourceType, defaulting to secondary.
func ParseSourceType(s string) SourceType {
	switch SourceType(s) {
	case SourcePrimary, SourceSecondary, SourceTertiary, SourceVerification:
		return SourceType(s)
	}
	return SourceSecondary
}

// Source is a provenance record for a fact.
type Source struct {
	URL              string     `json:"url"`
	SourceType       SourceType `json:"source_type"`
	SourceName       string     `json:"source_name"`
	DateAccessed     time.Time  `json:"date_accessed"`
	DatePublished    *time.Time `json:"date_published,omitempty"`
	ReliabilityScore float64    `json:"reliability_score"`
}

// ConflictSeverity grades how contested a claim is.
type ConflictSeverity string

const (
	SeverityMinor    ConflictSeverity = "minor"    // one conflicting value
	SeverityModerate ConflictSeverity = "moderate" // two conflicting values
	SeverityCritical ConflictSeverity = "critical" // three or more
)

// Conflict records disagreement between sources over a claim.
type Conflict struct {
	Claim             string           `json:"claim"`
	ConflictingValues []string         `json:"conflicting_values"`
	Sources           []Source         `json:"sources"`
	Severity          ConflictSeverity `json:"severity"`
	Resolution        string           `json:"resolution,omitempty"`
}

// ConfidenceLevel is the human-readable bucketing of a confidence score.
type ConfidenceLevel string

const (
	ConfidenceVeryHigh ConfidenceLevel = "very_high" // 0.90-1.00
	ConfidenceHigh     ConfidenceLevel = "high"      // 0.75-0.89
	ConfidenceMedium   ConfidenceLevel = "medium"    // 0.50-0.74
	ConfidenceLow      ConfidenceLevel = "low"       // 0.25-0.49
	ConfidenceVeryLow  ConfidenceLevel = "very_low"  // 0.00-0.24
)

// LevelForConfidence buckets a confidence score.
func LevelForConfidence(c float64) ConfidenceLevel {
	switch {
	case c >= 0.90:
		return ConfidenceVeryHigh
	case c >= 0.75:
		return ConfidenceHigh
	case c >= 0.50:
		return ConfidenceMedium
	case c >= 0.25:
		return ConfidenceLow
	}
	return ConfidenceVeryLow
}

// VerifiedFact is a claim reconciled across sources. Every fact carries its
// source attribution; a claim with no supporting source is kept but marked
// unverified rather than dropped.
type VerifiedFact struct {
	Claim        string          `json:"claim"`
	Value        json.RawMessage `json:"value"`
	Verified     bool            `json:"verified"`
	Confidence   float64         `json:"confidence"`
	Sources      []Source        `json:"sources"`
	Conflicts    []Conflict      `json:"conflicts,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	LastVerified time.Time       `json:"last_verified"`
}

// ConfidenceLevel returns the bucketed confidence of the fact.
func (f *VerifiedFact) ConfidenceLevel() ConfidenceLevel {
	return LevelForConfidence(f.Confidence)
}

// HasConflicts reports whether any conflicting values were recorded.
func (f *VerifiedFact) HasConflicts() bool {
	return len(f.Conflicts) > 0
}

// VerifiedDataset is a collection of verified facts about one entity, with
// aggregate statistics derived at construction.
type VerifiedDataset struct {
	EntityName        string         `json:"entity_name"`
	EntityType        string         `json:"entity_type"`
	Facts             []VerifiedFact `json:"facts"`
	OverallConfidence float64        `json:"overall_confidence"`
	TotalSources      int            `json:"total_sources"`
	VerifiedCount     int            `json:"verified_count"`
	UnverifiedCount   int            `json:"unverified_count"`
	ConflictCount     int            `json:"conflict_count"`
	CreatedAt         time.Time      `json:"created_at"`
}

// DatasetFromFacts builds a VerifiedDataset, computing the aggregate counters:
// overall confidence is the mean over verified facts (0 when none verified),
// total sources counts unique (url, source name) pairs across all facts.
func DatasetFromFacts(entityName, entityType string, facts []VerifiedFact) VerifiedDataset {
	ds := VerifiedDataset{
		EntityName: entityName,
		EntityType: entityType,
		Facts:      facts,
		CreatedAt:  time.Now().UTC(),
	}

	type sourceKey struct{ url, name string }
	unique := make(map[sourceKey]struct{})

	var confSum float64
	for i := range facts {
		f := &facts[i]
		if f.Verified {
			ds.VerifiedCount++
			confSum += f.Confidence
		} else {
			ds.UnverifiedCount++
		}
		if f.HasConflicts() {
			ds.ConflictCount++
		}
		for _, s := range f.Sources {
			unique[sourceKey{s.URL, s.SourceName}] = struct{}{}
		}
	}

	if ds.VerifiedCount > 0 {
		ds.OverallConfidence = confSum / float64(ds.VerifiedCount)
	}
	ds.TotalSources = len(unique)
	return ds
}
