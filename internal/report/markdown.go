// Package report renders a result envelope into a markdown document: company
// header, per-slot sections, run summary and a source appendix. Rendering is
// file-format generation only; how the document is displayed is the
// consumer's concern.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"bizlens/internal/types"
)

// sectionTitles maps context slots to their report headings.
var sectionTitles = map[string]string{
	"company_intelligence":    "Company Intelligence",
	"business_model_canvas":   "Business Model Canvas",
	"value_chain":             "Value Chain Analysis",
	"org_structure":           "Organizational Structure",
	"market_intelligence":     "Market Intelligence",
	"competitor_intelligence": "Competitor Intelligence",
	"swot":                    "SWOT Analysis",
	"porters_five_forces":     "Porter's Five Forces",
	"pestel":                  "PESTEL Analysis",
	"bcg_matrix":              "BCG Matrix",
	"blue_ocean":              "Blue Ocean Strategy",
	"competitive_strategy":    "Competitive Strategy",
	"sales_intelligence":      "Sales Intelligence",
}

// Render converts a result envelope to markdown.
func Render(env types.ResultEnvelope) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Business Context Analysis: %s\n\n", env.Company)
	fmt.Fprintf(&sb, "*Generated %s — analysis type: %s*\n\n", time.Now().Format("2006-01-02 15:04"), env.AnalysisType)

	if env.Error != "" {
		fmt.Fprintf(&sb, "> **Run error:** %s\n\n", env.Error)
	}

	writeSummary(&sb, env.Summary)

	if len(env.Phase1) > 0 {
		sb.WriteString("## Phase 1 — Foundation\n\n")
		writePhase(&sb, env.Phase1)
	}
	if len(env.Phase2) > 0 {
		sb.WriteString("## Phase 2 — Strategic Frameworks\n\n")
		writePhase(&sb, env.Phase2)
	}

	writeSourceAppendix(&sb, env)

	return sb.String()
}

// Write renders the envelope and writes it to path.
func Write(env types.ResultEnvelope, path string) error {
	return os.WriteFile(path, []byte(Render(env)), 0o644)
}

func writeSummary(sb *strings.Builder, s types.Summary) {
	sb.WriteString("## Run Summary\n\n")
	sb.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(sb, "| Company | %s |\n", s.Company)
	fmt.Fprintf(sb, "| Phase | %s |\n", s.CurrentPhase)
	fmt.Fprintf(sb, "| Tasks | %d total, %d completed, %d failed, %d pending |\n",
		s.Tasks.Total, s.Tasks.Completed, s.Tasks.Failed, s.Tasks.Pending)
	if s.StartedAt != "" {
		fmt.Fprintf(sb, "| Started | %s |\n", s.StartedAt)
	}
	sb.WriteString("\n")
}

func writePhase(sb *strings.Builder, phase map[string]json.RawMessage) {
	slots := make([]string, 0, len(phase))
	for slot := range phase {
		slots = append(slots, slot)
	}
	sort.Strings(slots)

	for _, slot := range slots {
		title, ok := sectionTitles[slot]
		if !ok {
			title = titleize(slot)
		}
		fmt.Fprintf(sb, "### %s\n\n", title)
		writeValue(sb, phase[slot], 0)
		sb.WriteString("\n")
	}
}

// writeValue renders a JSON payload as nested markdown lists.
func writeValue(sb *strings.Builder, raw json.RawMessage, depth int) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		sb.WriteString("```\n" + string(raw) + "\n```\n")
		return
	}
	renderValue(sb, value, depth)
}

func renderValue(sb *strings.Builder, value any, depth int) {
	indent := strings.Repeat("  ", depth)
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if strings.HasPrefix(k, "_") {
				continue
			}
			switch child := v[k].(type) {
			case map[string]any, []any:
				fmt.Fprintf(sb, "%s- **%s:**\n", indent, titleize(k))
				renderValue(sb, child, depth+1)
			default:
				fmt.Fprintf(sb, "%s- **%s:** %v\n", indent, titleize(k), child)
			}
		}
	case []any:
		for _, item := range v {
			switch child := item.(type) {
			case map[string]any, []any:
				fmt.Fprintf(sb, "%s-\n", indent)
				renderValue(sb, child, depth+1)
			default:
				fmt.Fprintf(sb, "%s- %v\n", indent, child)
			}
		}
	default:
		fmt.Fprintf(sb, "%s%v\n", indent, v)
	}
}

// writeSourceAppendix collects unique source URLs from any verified datasets
// in the envelope.
func writeSourceAppendix(sb *strings.Builder, env types.ResultEnvelope) {
	seen := make(map[string]string)
	collect := func(phase map[string]json.RawMessage) {
		for _, raw := range phase {
			var dataset types.VerifiedDataset
			if err := json.Unmarshal(raw, &dataset); err != nil || len(dataset.Facts) == 0 {
				continue
			}
			for _, fact := range dataset.Facts {
				for _, s := range fact.Sources {
					seen[s.URL] = s.SourceName
				}
			}
		}
	}
	collect(env.Phase1)
	collect(env.Phase2)

	if len(seen) == 0 {
		return
	}

	urls := make([]string, 0, len(seen))
	for url := range seen {
		urls = append(urls, url)
	}
	sort.Strings(urls)

	sb.WriteString("## Sources\n\n")
	for _, url := range urls {
		fmt.Fprintf(sb, "- %s (%s)\n", url, seen[url])
	}
	sb.WriteString("\n")
}

func titleize(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
