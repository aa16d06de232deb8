package truth

import (
	"strings"
	"testing"

	"bizlens/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func secondarySource(name string, data map[string]any) SourceData {
	return SourceData{
		URL:        "https://" + name + ".test",
		SourceType: "secondary",
		SourceName: name,
		Data:       data,
	}
}

func TestNormalizeKey(t *testing.T) {
	cases := map[string]string{
		"Annual Revenue":     "annual_revenue",
		"annual-revenue":     "annualrevenue",
		"  Market   Share %": "market_share",
		"CEO":                "ceo",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeKey(in), "input %q", in)
	}
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("", ""))
	assert.Equal(t, 1.0, Ratio("revenue", "revenue"))
	assert.Equal(t, 0.0, Ratio("abc", "xyz"))
	// "abcd" vs "bcde": longest block "bcd" -> 2*3/8
	assert.InDelta(t, 0.75, Ratio("abcd", "bcde"), 1e-9)
}

func TestValuesMatchFuzzyStrings(t *testing.T) {
	// Property: string pairs at similarity >= 0.9 must match.
	pairs := [][2]string{
		{"$100 million", "$100 Million"},
		{"cloud infrastructure", "cloud infrastructures"},
		{"Patrick Collison", "patrick collison"},
	}
	for _, p := range pairs {
		require.GreaterOrEqual(t, Ratio(strings.ToLower(p[0]), strings.ToLower(p[1])), 0.9)
		assert.True(t, ValuesMatch(p[0], p[1], 0.9), "%q vs %q", p[0], p[1])
	}

	assert.False(t, ValuesMatch("$100M", "$500M", 0.9))
}

func TestValuesMatchLists(t *testing.T) {
	a := []any{"payments", "billing"}
	b := []any{"Payments", "Billing"}
	assert.True(t, ValuesMatch(a, b, 0.9))
	assert.False(t, ValuesMatch(a, []any{"payments"}, 0.9))
}

func TestValuesMatchNumbers(t *testing.T) {
	assert.True(t, ValuesMatch(float64(7000), 7000, 0.9))
	assert.False(t, ValuesMatch(float64(7000), float64(8000), 0.9))
}

func TestBetterValue(t *testing.T) {
	assert.Equal(t, "SaaS", BetterValue(nil, "SaaS"))
	assert.Equal(t, "SaaS", BetterValue("SaaS", nil))
	assert.Equal(t, "SaaS", BetterValue("unknown", "SaaS"))
	assert.Equal(t, "SaaS", BetterValue("SaaS", "fintech"), "first known value wins")

	full := []any{"a", "b"}
	assert.Equal(t, full, BetterValue([]any{}, full))

	richer := map[string]any{"ceo": "Jane", "founded": float64(2010)}
	poorer := map[string]any{"ceo": "unknown"}
	assert.Equal(t, richer, BetterValue(poorer, richer))

	// Equal real-entry counts merge field-wise, preserving real values.
	left := map[string]any{"ceo": "Jane", "hq": "unknown"}
	right := map[string]any{"hq": "Berlin", "ceo": "unknown"}
	merged := BetterValue(left, right).(map[string]any)
	assert.Equal(t, "Jane", merged["ceo"])
	assert.Equal(t, "Berlin", merged["hq"])
}

func TestVerifyClaimThreeAgreeingSecondarySources(t *testing.T) {
	// Spec scenario: three secondary sources (reliability 0.8) agree, no
	// conflicts: confidence = (3/3) * 0.8 * 1.05 = 0.840.
	engine := NewEngine(Config{})
	data := map[string]any{"revenue": "$100M"}
	sources := []SourceData{
		secondarySource("alpha", data),
		secondarySource("beta", data),
		secondarySource("gamma", data),
	}

	fact := engine.VerifyClaim("revenue", "$100M", sources)

	assert.InDelta(t, 0.840, fact.Confidence, 1e-9)
	assert.True(t, fact.Verified)
	assert.Equal(t, types.ConfidenceHigh, fact.ConfidenceLevel())
	assert.Len(t, fact.Sources, 3)
	assert.Empty(t, fact.Conflicts)
}

func TestVerifyClaimUnsupported(t *testing.T) {
	engine := NewEngine(Config{})
	fact := engine.VerifyClaim("revenue", "$100M", []SourceData{
		secondarySource("alpha", map[string]any{"employees": float64(500)}),
	})

	assert.False(t, fact.Verified)
	assert.Zero(t, fact.Confidence)
	// Unsupported claims keep full attribution of the consulted sources.
	assert.Len(t, fact.Sources, 1)
	assert.Contains(t, fact.Notes, "No sources found")
}

func TestVerifyClaimVerifiedPropertyHolds(t *testing.T) {
	// Property: verified implies at least one source and confidence >= min.
	engine := NewEngine(Config{})
	claims := []struct {
		value   any
		sources []SourceData
	}{
		{"$100M", []SourceData{secondarySource("a", map[string]any{"revenue": "$100M"})}},
		{"$100M", []SourceData{secondarySource("a", map[string]any{"revenue": "$250M"})}},
		{"$100M", nil},
	}
	for _, c := range claims {
		fact := engine.VerifyClaim("revenue", c.value, c.sources)
		if fact.Verified {
			require.NotEmpty(t, fact.Sources)
			require.GreaterOrEqual(t, fact.Confidence, engine.MinConfidence())
		}
	}
}

func TestVerifyClaimConflictDetection(t *testing.T) {
	engine := NewEngine(Config{})
	sources := []SourceData{
		secondarySource("alpha", map[string]any{"revenue": "$100M"}),
		secondarySource("beta", map[string]any{"revenue": "$900M"}),
	}

	fact := engine.VerifyClaim("revenue", "$100M", sources)

	require.Len(t, fact.Conflicts, 1)
	conflict := fact.Conflicts[0]
	assert.Equal(t, types.SeverityMinor, conflict.Severity)
	assert.Equal(t, []string{"$100M", "$900M"}, conflict.ConflictingValues)
	// Permissive mode: conflicts penalize but do not disqualify.
	assert.True(t, fact.Verified)
	assert.InDelta(t, (1.0/2.0)*0.8-0.02, fact.Confidence, 1e-9)
}

func TestStrictModeConflictsDisqualify(t *testing.T) {
	engine := NewEngine(Config{Mode: ModeStrict})
	sources := []SourceData{
		secondarySource("alpha", map[string]any{"revenue": "$100M"}),
		secondarySource("beta", map[string]any{"revenue": "$900M"}),
	}

	fact := engine.VerifyClaim("revenue", "$100M", sources)
	assert.False(t, fact.Verified)
}

func TestPrimaryBoost(t *testing.T) {
	engine := NewEngine(Config{})
	fact := engine.VerifyClaim("ceo", "Jane Doe", []SourceData{
		{
			URL:        "https://acme.test/about",
			SourceType: "primary",
			SourceName: "acme.test",
			Data:       map[string]any{"ceo": "Jane Doe"},
		},
	})

	// (1/1) * 1.0 reliability * 1.10 primary boost, clamped to 1.0.
	assert.Equal(t, 1.0, fact.Confidence)
	assert.Equal(t, types.ConfidenceVeryHigh, fact.ConfidenceLevel())
}

func TestFuzzyKeyLookup(t *testing.T) {
	engine := NewEngine(Config{})
	fact := engine.VerifyClaim("Annual Revenue", "$100M", []SourceData{
		secondarySource("alpha", map[string]any{"Annual Revenues": "$100M"}),
	})
	assert.True(t, fact.Verified)
}

func TestCrossReference(t *testing.T) {
	engine := NewEngine(Config{})
	datasets := []SourceData{
		secondarySource("alpha", map[string]any{
			"revenue":   "$100M",
			"employees": float64(500),
		}),
		secondarySource("beta", map[string]any{
			"revenue": "$100M",
			"ceo":     "Jane Doe",
		}),
	}

	ds := engine.CrossReference(datasets, "Acme", "company")

	assert.Equal(t, "Acme", ds.EntityName)
	assert.Len(t, ds.Facts, 3)
	assert.Equal(t, 2, ds.TotalSources)

	byClaim := make(map[string]types.VerifiedFact)
	for _, f := range ds.Facts {
		byClaim[NormalizeKey(f.Claim)] = f
	}
	assert.True(t, byClaim["revenue"].Verified)
	assert.Len(t, byClaim["revenue"].Sources, 2)
}

func TestCrossReferenceMergesBetterValues(t *testing.T) {
	engine := NewEngine(Config{})
	datasets := []SourceData{
		secondarySource("alpha", map[string]any{"ceo": "unknown"}),
		secondarySource("beta", map[string]any{"ceo": "Jane Doe"}),
	}

	ds := engine.CrossReference(datasets, "Acme", "company")
	require.Len(t, ds.Facts, 1)
	assert.Contains(t, string(ds.Facts[0].Value), "Jane Doe")
}

func TestDatasetAggregates(t *testing.T) {
	facts := []types.VerifiedFact{
		{Claim: "a", Verified: true, Confidence: 0.8, Sources: []types.Source{{URL: "u1", SourceName: "s1"}}},
		{Claim: "b", Verified: true, Confidence: 0.6, Sources: []types.Source{{URL: "u1", SourceName: "s1"}, {URL: "u2", SourceName: "s2"}}},
		{Claim: "c", Verified: false, Confidence: 0.1, Conflicts: []types.Conflict{{Claim: "c"}}},
	}
	ds := types.DatasetFromFacts("Acme", "company", facts)

	assert.InDelta(t, 0.7, ds.OverallConfidence, 1e-9)
	assert.Equal(t, 2, ds.TotalSources)
	assert.Equal(t, 2, ds.VerifiedCount)
	assert.Equal(t, 1, ds.UnverifiedCount)
	assert.Equal(t, 1, ds.ConflictCount)
}

func TestDatasetNoVerifiedFacts(t *testing.T) {
	ds := types.DatasetFromFacts("Acme", "company", []types.VerifiedFact{
		{Claim: "a", Verified: false, Confidence: 0.1},
	})
	assert.Zero(t, ds.OverallConfidence)
}
