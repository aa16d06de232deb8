// Package truth implements multi-source verification: cross-referencing
// claims across independent data sources, scoring confidence from source
// agreement and reliability, and recording conflicts with full provenance.
//
// Every fact must be traceable to at least one source. Claims with no
// supporting evidence stay in the dataset, explicitly unverified.
package truth

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"bizlens/internal/logging"
	"bizlens/internal/types"
)

// Mode selects the verification predicate.
type Mode string

const (
	// ModePermissive verifies any claim with at least one supporting source
	// and confidence >= 0.2; conflicts reduce confidence but never disqualify.
	ModePermissive Mode = "permissive"

	// ModeStrict requires confidence >= 0.5 and zero conflicts.
	ModeStrict Mode = "strict"
)

const (
	permissiveMinConfidence = 0.2
	strictMinConfidence     = 0.5

	permissiveConflictPenalty = 0.02
	strictConflictPenalty     = 0.10

	keyMatchThreshold   = 0.8
	valueMatchThreshold = 0.9
)

// Config configures an Engine.
type Config struct {
	Mode Mode
	// MinConfidence overrides the mode default when > 0.
	MinConfidence float64
	// Reliability overrides the default per-type source reliability.
	Reliability map[types.SourceType]float64
}

// Engine is the multi-source verification engine. It is pure: no shared
// state beyond its configuration, safe for concurrent use.
type Engine struct {
	mode            Mode
	minConfidence   float64
	conflictPenalty float64
	reliability     map[types.SourceType]float64
}

// SourceData is one provider's contribution: attribution plus a flat map of
// claims extracted from that source.
type SourceData struct {
	URL              string         `json:"url"`
	SourceType       string         `json:"source_type"`
	SourceName       string         `json:"source_name"`
	DatePublished    *time.Time     `json:"date_published,omitempty"`
	ReliabilityScore float64        `json:"reliability_score,omitempty"`
	Data             map[string]any `json:"data"`
}

// NewEngine creates a verification engine. Zero-value config gives the
// permissive engine.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		mode:            cfg.Mode,
		minConfidence:   cfg.MinConfidence,
		conflictPenalty: permissiveConflictPenalty,
		reliability: map[types.SourceType]float64{
			types.SourcePrimary:      1.0,
			types.SourceSecondary:    0.8,
			types.SourceTertiary:     0.6,
			types.SourceVerification: 0.9,
		},
	}
	if e.mode == "" {
		e.mode = ModePermissive
	}
	if e.mode == ModeStrict {
		e.conflictPenalty = strictConflictPenalty
	}
	if e.minConfidence <= 0 {
		if e.mode == ModeStrict {
			e.minConfidence = strictMinConfidence
		} else {
			e.minConfidence = permissiveMinConfidence
		}
	}
	for st, score := range cfg.Reliability {
		e.reliability[st] = score
	}
	return e
}

// MinConfidence returns the active verification threshold.
func (e *Engine) MinConfidence() float64 { return e.minConfidence }

// VerifyClaim verifies a single claim against the given sources and returns
// a VerifiedFact with confidence score and full source attribution.
func (e *Engine) VerifyClaim(claim string, value any, sourcesData []SourceData) types.VerifiedFact {
	logging.TruthDebug("Verifying claim: %s", claim)

	sources := make([]types.Source, 0, len(sourcesData))
	supporting := make([]types.Source, 0, len(sourcesData))
	type altEntry struct {
		value  any
		source types.Source
	}
	var conflicting []altEntry

	for _, sd := range sourcesData {
		source := e.buildSource(sd)
		sources = append(sources, source)

		if e.sourceSupports(sd, claim, value) {
			supporting = append(supporting, source)
			continue
		}
		if alt, ok := extractValue(sd, claim); ok && !equalValues(alt, value) {
			conflicting = append(conflicting, altEntry{value: alt, source: source})
		}
	}

	confidence := e.calculateConfidence(supporting, len(sources), len(conflicting))

	var conflicts []types.Conflict
	if len(conflicting) > 0 {
		values := []string{Stringify(value)}
		conflictSources := make([]types.Source, 0, len(conflicting))
		for _, c := range conflicting {
			values = append(values, Stringify(c.value))
			conflictSources = append(conflictSources, c.source)
		}
		conflicts = append(conflicts, types.Conflict{
			Claim:             claim,
			ConflictingValues: values,
			Sources:           conflictSources,
			Severity:          severityFor(len(conflicting)),
		})
	}

	verified := len(supporting) > 0 && confidence >= e.minConfidence
	if e.mode == ModeStrict && len(conflicts) > 0 {
		verified = false
	}

	attributed := supporting
	if len(attributed) == 0 {
		attributed = sources
	}

	raw, err := json.Marshal(value)
	if err != nil {
		raw = json.RawMessage(fmt.Sprintf("%q", Stringify(value)))
	}

	return types.VerifiedFact{
		Claim:        claim,
		Value:        raw,
		Verified:     verified,
		Confidence:   confidence,
		Sources:      attributed,
		Conflicts:    conflicts,
		Notes:        verificationNotes(supporting, len(conflicting)),
		LastVerified: time.Now().UTC(),
	}
}

// CrossReference extracts the union of claims across datasets, merges values
// preferring the more informative one, and verifies each merged claim.
func (e *Engine) CrossReference(datasets []SourceData, entityName, entityType string) types.VerifiedDataset {
	timer := logging.StartTimer(logging.CategoryTruth, "CrossReference")
	defer timer.Stop()
	logging.Truth("Cross-referencing %d datasets for %s", len(datasets), entityName)

	type claimInfo struct {
		claim   string
		value   any
		sources []SourceData
	}
	claims := make(map[string]*claimInfo)
	order := make([]string, 0)

	for _, ds := range datasets {
		keys := make([]string, 0, len(ds.Data))
		for k := range ds.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			claimKey := NormalizeKey(key)
			info, ok := claims[claimKey]
			if !ok {
				info = &claimInfo{claim: key, value: ds.Data[key]}
				claims[claimKey] = info
				order = append(order, claimKey)
			} else {
				info.value = BetterValue(info.value, ds.Data[key])
			}
			info.sources = append(info.sources, ds)
		}
	}

	facts := make([]types.VerifiedFact, 0, len(order))
	for _, claimKey := range order {
		info := claims[claimKey]
		facts = append(facts, e.VerifyClaim(info.claim, info.value, info.sources))
	}

	dataset := types.DatasetFromFacts(entityName, entityType, facts)
	logging.Truth("Verification complete for %s: %d verified, %d unverified, %d conflicts",
		entityName, dataset.VerifiedCount, dataset.UnverifiedCount, dataset.ConflictCount)
	return dataset
}

// buildSource converts raw source attribution into a Source record, applying
// per-type reliability defaults.
func (e *Engine) buildSource(sd SourceData) types.Source {
	st := types.ParseSourceType(strings.ToLower(sd.SourceType))
	reliability := sd.ReliabilityScore
	if reliability == 0 {
		reliability = e.reliability[st]
	}
	name := sd.SourceName
	if name == "" {
		name = "Unknown Source"
	}
	url := sd.URL
	if url == "" {
		url = "unknown"
	}
	return types.Source{
		URL:              url,
		SourceType:       st,
		SourceName:       name,
		DateAccessed:     time.Now().UTC(),
		DatePublished:    sd.DatePublished,
		ReliabilityScore: reliability,
	}
}

// sourceSupports checks whether a source's data agrees with the claimed
// value, using normalized-key lookup with a fuzzy fallback.
func (e *Engine) sourceSupports(sd SourceData, claim string, value any) bool {
	claimKey := NormalizeKey(claim)

	if v, ok := lookupNormalized(sd.Data, claimKey); ok {
		return ValuesMatch(value, v, valueMatchThreshold)
	}

	for key, v := range sd.Data {
		if KeysSimilar(claimKey, NormalizeKey(key)) && ValuesMatch(value, v, valueMatchThreshold) {
			return true
		}
	}
	return false
}

// extractValue pulls the source's value for a claim even when it disagrees.
func extractValue(sd SourceData, claim string) (any, bool) {
	claimKey := NormalizeKey(claim)
	if v, ok := lookupNormalized(sd.Data, claimKey); ok {
		return v, true
	}
	keys := make([]string, 0, len(sd.Data))
	for k := range sd.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if KeysSimilar(claimKey, NormalizeKey(key)) {
			return sd.Data[key], true
		}
	}
	return nil, false
}

func lookupNormalized(data map[string]any, claimKey string) (any, bool) {
	for key, v := range data {
		if NormalizeKey(key) == claimKey {
			return v, true
		}
	}
	return nil, false
}

// calculateConfidence scores agreement: base ratio of supporting sources,
// weighted by their mean reliability, boosted 10% when a primary source
// agrees and 5% at three-plus supporters, with a per-conflict penalty.
// Clamped to [0,1].
func (e *Engine) calculateConfidence(supporting []types.Source, totalSources, conflictCount int) float64 {
	if len(supporting) == 0 {
		return 0.0
	}

	total := totalSources
	if total < 1 {
		total = 1
	}
	confidence := float64(len(supporting)) / float64(total)

	var reliabilitySum float64
	hasPrimary := false
	for _, s := range supporting {
		reliabilitySum += s.ReliabilityScore
		if s.SourceType == types.SourcePrimary {
			hasPrimary = true
		}
	}
	confidence *= reliabilitySum / float64(len(supporting))

	if hasPrimary {
		confidence *= 1.10
	}
	confidence -= float64(conflictCount) * e.conflictPenalty
	if len(supporting) >= 3 {
		confidence *= 1.05
	}

	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

func severityFor(conflictCount int) types.ConflictSeverity {
	switch {
	case conflictCount <= 1:
		return types.SeverityMinor
	case conflictCount == 2:
		return types.SeverityModerate
	}
	return types.SeverityCritical
}

// verificationNotes summarizes the verification outcome for humans.
func verificationNotes(supporting []types.Source, conflictCount int) string {
	var notes []string

	if len(supporting) == 0 {
		notes = append(notes, "No sources found supporting this claim.")
	}
	if len(supporting) == 1 {
		notes = append(notes, "Verified by single source only - confidence limited.")
	}
	if conflictCount > 0 {
		notes = append(notes, fmt.Sprintf("Found %d conflicting value(s) in other sources.", conflictCount))
	}
	primaryCount := 0
	for _, s := range supporting {
		if s.SourceType == types.SourcePrimary {
			primaryCount++
		}
	}
	if primaryCount > 0 {
		notes = append(notes, fmt.Sprintf("Confirmed by %d primary source(s).", primaryCount))
	}

	return strings.Join(notes, " ")
}
