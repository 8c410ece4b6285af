// Package report aggregates enriched result rows into KPI groups and renders
// them as a single self-contained HTML document. Every aggregate tolerates
// rows with absent fields; a group with no qualifying rows reports nil values
// or marks itself unavailable instead of dividing by zero.
package report

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/relialab/evalpipe/internal/result"
)

// EmbeddingKPIs summarize similarity scores and their pass rate.
type EmbeddingKPIs struct {
	Avg      *float64
	P95      *float64
	Max      *float64
	PassRate *float64
	Scored   int
}

// LatencyKPIs summarize generation and embedding wall clock, in ms.
type LatencyKPIs struct {
	AvgGen *float64
	P95Gen *float64
	MaxGen *float64
	AvgEmb *float64
	P95Emb *float64
	MaxEmb *float64
}

// BehaviorKPIs are heuristic rates over answered rows. A row may count as
// both clarifying and deflecting.
type BehaviorKPIs struct {
	Scored         int
	ClarifyingRate *float64
	DeflectionRate *float64
}

// JudgeKPIs summarize the LLM judge scores. Available is false when no row
// carries a judge score or verdict.
type JudgeKPIs struct {
	Available bool
	Avg       *float64
	P95       *float64
	Max       *float64
	PassRate  *float64
	Scored    int
}

// GroundingKPIs summarize the grounding verdicts. Available is false when no
// row carries either verdict as a boolean.
type GroundingKPIs struct {
	Available           bool
	HallucinationRate   *float64
	TraceabilityRate    *float64
	HallucinationScored int
	TraceabilityScored  int
}

// Summary is the full aggregation over one result collection.
type Summary struct {
	Embedding EmbeddingKPIs
	Latency   LatencyKPIs
	Behavior  BehaviorKPIs
	Judge     JudgeKPIs
	Grounding GroundingKPIs
	Worst     []result.Result
	Total     int
}

// Aggregate computes all KPI groups plus the worst-ten row selection.
func Aggregate(rows []result.Result) *Summary {
	return &Summary{
		Embedding: embeddingKPIs(rows),
		Latency:   latencyKPIs(rows),
		Behavior:  behaviorKPIs(rows),
		Judge:     judgeKPIs(rows),
		Grounding: groundingKPIs(rows),
		Worst:     worstRows(rows, 10),
		Total:     len(rows),
	}
}

func embeddingKPIs(rows []result.Result) EmbeddingKPIs {
	var sims []float64
	passed, denom := 0, 0
	for i := range rows {
		if rows[i].Similarity != nil {
			sims = append(sims, *rows[i].Similarity)
		}
		if rows[i].Passed != nil {
			denom++
			if *rows[i].Passed {
				passed++
			}
		}
	}
	return EmbeddingKPIs{
		Avg:      mean(sims),
		P95:      p95(sims),
		Max:      maxOf(sims),
		PassRate: rate(passed, denom),
		Scored:   len(sims),
	}
}

func latencyKPIs(rows []result.Result) LatencyKPIs {
	var gen, emb []float64
	for i := range rows {
		if v := rows[i].GenerationLatency(); v != nil {
			gen = append(gen, *v)
		}
		if v := rows[i].EmbeddingLatency(); v != nil {
			emb = append(emb, *v)
		}
	}
	return LatencyKPIs{
		AvgGen: mean(gen),
		P95Gen: p95(gen),
		MaxGen: maxOf(gen),
		AvgEmb: mean(emb),
		P95Emb: p95(emb),
		MaxEmb: maxOf(emb),
	}
}

var clarifyingCues = []string{
	"could you", "can you", "which", "what",
	"please clarify", "do you mean", "to confirm",
}

var deflectionCues = []string{
	"i can’t help", "i can't help", "i cannot help",
	"i’m not able", "i'm not able", "unable to",
	"i can’t assist", "i can't assist", "i cannot assist",
	"as an ai", "i don't have access", "i do not have access",
	"i cannot provide", "i can't provide",
}

func looksClarifying(answer string) bool {
	a := strings.ToLower(strings.TrimSpace(answer))
	if a == "" || !strings.Contains(a, "?") {
		return false
	}
	for _, cue := range clarifyingCues {
		if strings.Contains(a, cue) {
			return true
		}
	}
	return false
}

func looksDeflecting(answer string) bool {
	a := strings.ToLower(strings.TrimSpace(answer))
	if a == "" {
		return false
	}
	for _, cue := range deflectionCues {
		if strings.Contains(a, cue) {
			return true
		}
	}
	return false
}

func behaviorKPIs(rows []result.Result) BehaviorKPIs {
	scored, clar, defl := 0, 0, 0
	for i := range rows {
		if strings.TrimSpace(rows[i].Answer) == "" {
			continue
		}
		scored++
		if looksClarifying(rows[i].Answer) {
			clar++
		}
		if looksDeflecting(rows[i].Answer) {
			defl++
		}
	}
	return BehaviorKPIs{
		Scored:         scored,
		ClarifyingRate: rate(clar, scored),
		DeflectionRate: rate(defl, scored),
	}
}

func judgeKPIs(rows []result.Result) JudgeKPIs {
	var scores []float64
	passed, denom := 0, 0
	for i := range rows {
		if rows[i].DeepevalScore != nil {
			scores = append(scores, *rows[i].DeepevalScore)
		}
		if rows[i].DeepevalPassed != nil {
			denom++
			if *rows[i].DeepevalPassed {
				passed++
			}
		}
	}
	if len(scores) == 0 && denom == 0 {
		return JudgeKPIs{}
	}
	return JudgeKPIs{
		Available: true,
		Avg:       mean(scores),
		P95:       p95(scores),
		Max:       maxOf(scores),
		PassRate:  rate(passed, denom),
		Scored:    len(scores),
	}
}

func groundingKPIs(rows []result.Result) GroundingKPIs {
	hallPass, hallDenom := 0, 0
	tracePass, traceDenom := 0, 0
	for i := range rows {
		if rows[i].HallucinationSuccess != nil {
			hallDenom++
			if *rows[i].HallucinationSuccess {
				hallPass++
			}
		}
		if rows[i].TraceabilitySuccess != nil {
			traceDenom++
			if *rows[i].TraceabilitySuccess {
				tracePass++
			}
		}
	}
	if hallDenom == 0 && traceDenom == 0 {
		return GroundingKPIs{}
	}
	return GroundingKPIs{
		Available:           true,
		HallucinationRate:   rate(hallPass, hallDenom),
		TraceabilityRate:    rate(tracePass, traceDenom),
		HallucinationScored: hallDenom,
		TraceabilityScored:  traceDenom,
	}
}

// worstRows selects the n lowest-similarity rows. Rows without a similarity
// sort as 1.0 so unscored rows are never "worst"; ties keep collection
// order.
func worstRows(rows []result.Result, n int) []result.Result {
	cp := make([]result.Result, len(rows))
	copy(cp, rows)
	slices.SortStableFunc(cp, func(a, b result.Result) int {
		return cmp.Compare(worstKey(a), worstKey(b))
	})
	if len(cp) > n {
		cp = cp[:n]
	}
	return cp
}

func worstKey(r result.Result) float64 {
	if r.Similarity != nil {
		return *r.Similarity
	}
	return 1.0
}

func mean(vals []float64) *float64 {
	if len(vals) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	m := sum / float64(len(vals))
	return &m
}

// p95 is the nearest-rank 95th percentile: the ceil(0.95*n)th smallest
// value, 1-indexed, clamped to the valid range.
func p95(vals []float64) *float64 {
	if len(vals) == 0 {
		return nil
	}
	sorted := slices.Clone(vals)
	slices.Sort(sorted)
	idx := int(math.Ceil(0.95*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	v := sorted[idx]
	return &v
}

func maxOf(vals []float64) *float64 {
	if len(vals) == 0 {
		return nil
	}
	m := slices.Max(vals)
	return &m
}

func rate(trues, denom int) *float64 {
	if denom <= 0 {
		return nil
	}
	r := float64(trues) / float64(denom)
	return &r
}
