package report

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/relialab/evalpipe/internal/result"
)

// view is the fully formatted data handed to the template. All numbers are
// formatted here so the template stays free of logic.
type view struct {
	Title string
	Cards []card
	Worst []worstRow
}

type card struct {
	Title string
	Tiles []tile
	Bars  []bar
	Note  string
}

type tile struct {
	Value string
	Label string
}

type bar struct {
	Label  string
	Value  string
	Height int
}

type worstRow struct {
	ID         string
	Similarity string
	SimIcon    string
	Judge      string
	JudgeIcon  string
	HallIcon   string
	TraceIcon  string
	Prompt     string
	Reference  string
	Answer     string
	Reasons    []reason
}

type reason struct {
	Label string
	Text  string
}

// Render writes the report document for a summary to w.
func Render(w io.Writer, sum *Summary) error {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, buildView(sum)); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteReport renders the report for a summary to path.
func WriteReport(path string, sum *Summary) error {
	var buf bytes.Buffer
	if err := Render(&buf, sum); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func buildView(sum *Summary) view {
	v := view{Title: "AI Evaluation Report (Offline)"}

	emb := sum.Embedding
	v.Cards = append(v.Cards, card{
		Title: "Embedding Similarity KPIs",
		Tiles: []tile{
			{Value: fmt3(emb.Avg), Label: "Avg Similarity"},
			{Value: fmt3(emb.P95), Label: "P95 Similarity"},
			{Value: fmt3(emb.Max), Label: "Max Similarity"},
			{Value: pct(emb.PassRate), Label: "Pass Rate"},
		},
		Bars: rateBars([]string{"Pass Rate"}, []*float64{emb.PassRate}),
		Note: fmt.Sprintf("Scored prompts: %d", emb.Scored),
	})

	beh := sum.Behavior
	v.Cards = append(v.Cards, card{
		Title: "Behavior KPIs",
		Bars: rateBars(
			[]string{"Deflection", "Clarifying Q"},
			[]*float64{beh.DeflectionRate, beh.ClarifyingRate},
		),
		Note: fmt.Sprintf("Scored prompts: %d", beh.Scored),
	})

	lat := sum.Latency
	v.Cards = append(v.Cards, card{
		Title: "Latency KPIs",
		Tiles: []tile{
			{Value: fmtMS(lat.AvgGen), Label: "Avg Gen"},
			{Value: fmtMS(lat.P95Gen), Label: "P95 Gen"},
			{Value: fmtMS(lat.MaxGen), Label: "Max Gen"},
			{Value: fmtMS(lat.AvgEmb), Label: "Avg Emb"},
		},
		Bars: msBars(
			[]string{"Avg Gen", "P95 Gen", "Max Gen"},
			[]*float64{lat.AvgGen, lat.P95Gen, lat.MaxGen},
		),
	})

	if sum.Judge.Available {
		jd := sum.Judge
		v.Cards = append(v.Cards, card{
			Title: "DeepEval KPIs",
			Tiles: []tile{
				{Value: fmt3(jd.Avg), Label: "Avg Score"},
				{Value: fmt3(jd.P95), Label: "P95 Score"},
				{Value: fmt3(jd.Max), Label: "Max Score"},
				{Value: pct(jd.PassRate), Label: "Pass Rate"},
			},
			Bars: rateBars([]string{"Pass Rate"}, []*float64{jd.PassRate}),
			Note: fmt.Sprintf("Scored prompts: %d", jd.Scored),
		})
	}

	if sum.Grounding.Available {
		gr := sum.Grounding
		v.Cards = append(v.Cards, card{
			Title: "Grounding KPIs",
			Bars: rateBars(
				[]string{"Hallucination (No extra claims)", "Traceability (Grounded in expected)"},
				[]*float64{gr.HallucinationRate, gr.TraceabilityRate},
			),
			Note: fmt.Sprintf("Scored: Hallucination %d, Traceability %d",
				gr.HallucinationScored, gr.TraceabilityScored),
		})
	}

	for _, r := range sum.Worst {
		v.Worst = append(v.Worst, worstRowView(r))
	}
	return v
}

func worstRowView(r result.Result) worstRow {
	row := worstRow{
		ID:         r.ID,
		Similarity: fmt3(r.Similarity),
		SimIcon:    icon(r.Passed),
		Judge:      fmt3(r.DeepevalScore),
		JudgeIcon:  icon(r.DeepevalPassed),
		HallIcon:   icon(r.HallucinationSuccess),
		TraceIcon:  icon(r.TraceabilitySuccess),
		Prompt:     r.Prompt,
		Reference:  r.Reference,
		Answer:     r.Answer,
	}
	if r.HallucinationReason != nil && strings.TrimSpace(*r.HallucinationReason) != "" {
		row.Reasons = append(row.Reasons, reason{Label: "Hallucination", Text: *r.HallucinationReason})
	}
	if r.TraceabilityReason != nil && strings.TrimSpace(*r.TraceabilityReason) != "" {
		row.Reasons = append(row.Reasons, reason{Label: "Traceability", Text: *r.TraceabilityReason})
	}
	return row
}

// rateBars formats values in [0,1] as percentage bars.
func rateBars(labels []string, vals []*float64) []bar {
	bars := make([]bar, 0, len(labels))
	for i, lab := range labels {
		val := 0.0
		if vals[i] != nil {
			val = *vals[i]
		}
		bars = append(bars, bar{
			Label:  lab,
			Value:  fmt.Sprintf("%.1f%%", val*100),
			Height: barHeight(val, 1.0),
		})
	}
	return bars
}

// msBars scales millisecond values against the largest of the set.
func msBars(labels []string, vals []*float64) []bar {
	scale := 0.0
	for _, v := range vals {
		if v != nil && *v > scale {
			scale = *v
		}
	}
	if scale == 0 {
		scale = 1.0
	}
	bars := make([]bar, 0, len(labels))
	for i, lab := range labels {
		val := 0.0
		if vals[i] != nil {
			val = *vals[i]
		}
		bars = append(bars, bar{
			Label:  lab,
			Value:  fmt.Sprintf("%d ms", int64(math.Round(val))),
			Height: barHeight(val, scale),
		})
	}
	return bars
}

func barHeight(v, scale float64) int {
	if scale <= 0 {
		return 0
	}
	h := int(math.Round(100 * v / scale))
	return max(0, min(100, h))
}

func fmt3(v *float64) string {
	if v == nil {
		return "—"
	}
	return fmt.Sprintf("%.3f", *v)
}

func fmtMS(v *float64) string {
	if v == nil {
		return "—"
	}
	return fmt.Sprintf("%d ms", int64(math.Round(*v)))
}

func pct(v *float64) string {
	if v == nil {
		return "—"
	}
	return fmt.Sprintf("%.1f%%", *v*100)
}

func icon(b *bool) string {
	switch {
	case b == nil:
		return "—"
	case *b:
		return "✅"
	default:
		return "❌"
	}
}
