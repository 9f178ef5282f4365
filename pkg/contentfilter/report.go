package contentfilter

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Ingenimax/agent-harness-go/pkg/agent"
)

// Outcome is how one prompt fared against one variant
type Outcome string

const (
	OutcomeCompleted = Outcome(agent.OutcomeCompleted)
	OutcomeFiltered  = Outcome(agent.OutcomeFiltered)
	OutcomeFailed    = Outcome(agent.OutcomeFailed)
	// OutcomeError means the harness could not get a verdict, e.g. the
	// service was unreachable or the wait timed out
	OutcomeError Outcome = "error"
)

// Result is one prompt × variant pair
type Result struct {
	ID        string    `json:"id" yaml:"id"`
	HarnessID string    `json:"harness_id" yaml:"harness_id"`
	CaseID    string    `json:"case_id" yaml:"case_id"`
	Category  string    `json:"category,omitempty" yaml:"category,omitempty"`
	Variant   string    `json:"variant" yaml:"variant"`
	Outcome   Outcome   `json:"outcome" yaml:"outcome"`
	Detail    string    `json:"detail,omitempty" yaml:"detail,omitempty"`
	RunID     string    `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Text      string    `json:"text,omitempty" yaml:"text,omitempty"`
	ToolCalls int       `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`
	LatencyMS int64     `json:"latency_ms" yaml:"latency_ms"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
}

// Latency returns the pair's wall time
func (r Result) Latency() time.Duration {
	return time.Duration(r.LatencyMS) * time.Millisecond
}

// VariantSummary counts outcomes for one variant
type VariantSummary struct {
	Variant       string `json:"variant" yaml:"variant"`
	Completed     int    `json:"completed" yaml:"completed"`
	Filtered      int    `json:"filtered" yaml:"filtered"`
	Failed        int    `json:"failed" yaml:"failed"`
	Errors        int    `json:"errors" yaml:"errors"`
	MeanLatencyMS int64  `json:"mean_latency_ms" yaml:"mean_latency_ms"`
}

// Divergence is a case on which the variants did not all agree
type Divergence struct {
	CaseID   string             `json:"case_id" yaml:"case_id"`
	Category string             `json:"category,omitempty" yaml:"category,omitempty"`
	Outcomes map[string]Outcome `json:"outcomes" yaml:"outcomes"`
}

// Report aggregates a harness run
type Report struct {
	HarnessID   string           `json:"harness_id" yaml:"harness_id"`
	Suite       string           `json:"suite,omitempty" yaml:"suite,omitempty"`
	StartedAt   time.Time        `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time        `json:"finished_at" yaml:"finished_at"`
	Variants    []string         `json:"variants" yaml:"variants"`
	Summary     []VariantSummary `json:"summary" yaml:"summary"`
	Divergences []Divergence     `json:"divergences" yaml:"divergences"`
	Results     []Result         `json:"results" yaml:"results"`
}

// NewReport aggregates results. variants fixes the summary order; variants
// without results still get an empty summary row.
func NewReport(harnessID, suite string, variants []string, results []Result) *Report {
	r := &Report{
		HarnessID: harnessID,
		Suite:     suite,
		Variants:  append([]string(nil), variants...),
		Results:   results,
	}

	byVariant := make(map[string]*VariantSummary, len(variants))
	latency := make(map[string]int64, len(variants))
	for _, name := range variants {
		r.Summary = append(r.Summary, VariantSummary{Variant: name})
	}
	for i := range r.Summary {
		byVariant[r.Summary[i].Variant] = &r.Summary[i]
	}

	type caseOutcomes struct {
		category string
		outcomes map[string]Outcome
	}
	cases := map[string]*caseOutcomes{}
	var caseOrder []string

	for _, res := range results {
		if r.StartedAt.IsZero() || res.StartedAt.Before(r.StartedAt) {
			r.StartedAt = res.StartedAt
		}
		if end := res.StartedAt.Add(res.Latency()); end.After(r.FinishedAt) {
			r.FinishedAt = end
		}

		sum, ok := byVariant[res.Variant]
		if !ok {
			r.Summary = append(r.Summary, VariantSummary{Variant: res.Variant})
			r.Variants = append(r.Variants, res.Variant)
			for i := range r.Summary {
				byVariant[r.Summary[i].Variant] = &r.Summary[i]
			}
			sum = byVariant[res.Variant]
		}
		switch res.Outcome {
		case OutcomeCompleted:
			sum.Completed++
		case OutcomeFiltered:
			sum.Filtered++
		case OutcomeFailed:
			sum.Failed++
		default:
			sum.Errors++
		}
		latency[res.Variant] += res.LatencyMS

		c, ok := cases[res.CaseID]
		if !ok {
			c = &caseOutcomes{category: res.Category, outcomes: map[string]Outcome{}}
			cases[res.CaseID] = c
			caseOrder = append(caseOrder, res.CaseID)
		}
		c.outcomes[res.Variant] = res.Outcome
	}

	for i := range r.Summary {
		s := &r.Summary[i]
		if n := s.Completed + s.Filtered + s.Failed + s.Errors; n > 0 {
			s.MeanLatencyMS = latency[s.Variant] / int64(n)
		}
	}

	for _, id := range caseOrder {
		c := cases[id]
		if diverges(c.outcomes, len(r.Variants)) {
			r.Divergences = append(r.Divergences, Divergence{CaseID: id, Category: c.category, Outcomes: c.outcomes})
		}
	}
	return r
}

// diverges reports whether a case has differing outcomes, or is missing a
// verdict from some variant
func diverges(outcomes map[string]Outcome, variants int) bool {
	if len(outcomes) < variants {
		return true
	}
	var first Outcome
	for _, o := range outcomes {
		if first == "" {
			first = o
			continue
		}
		if o != first {
			return true
		}
	}
	return false
}

// Render encodes the report as "yaml" or "json"
func (r *Report) Render(format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "yaml", "yml", "":
		return yaml.Marshal(r)
	case "json":
		return json.MarshalIndent(r, "", "  ")
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
}

// ParseReport decodes a JSON report
func ParseReport(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &r, nil
}

// Matrix returns one row per case with the outcome of every variant, in
// report variant order, for tabular display
func (r *Report) Matrix() (header []string, rows [][]string) {
	header = append([]string{"case"}, r.Variants...)

	outcomes := map[string]map[string]Outcome{}
	var order []string
	for _, res := range r.Results {
		if _, ok := outcomes[res.CaseID]; !ok {
			outcomes[res.CaseID] = map[string]Outcome{}
			order = append(order, res.CaseID)
		}
		outcomes[res.CaseID][res.Variant] = res.Outcome
	}

	for _, id := range order {
		row := []string{id}
		for _, v := range r.Variants {
			o, ok := outcomes[id][v]
			if !ok {
				o = "-"
			}
			row = append(row, string(o))
		}
		rows = append(rows, row)
	}
	return header, rows
}

// DivergentCaseIDs returns the ids of diverging cases, sorted
func (r *Report) DivergentCaseIDs() []string {
	ids := make([]string, len(r.Divergences))
	for i, d := range r.Divergences {
		ids[i] = d.CaseID
	}
	sort.Strings(ids)
	return ids
}
