package scoring

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/relialab/evalpipe/internal/dataset"
	"github.com/relialab/evalpipe/internal/llm"
	"github.com/relialab/evalpipe/internal/result"
)

// SimilarityScorer turns generated responses into result rows carrying an
// embedding-similarity verdict against each scenario's reference.
type SimilarityScorer struct {
	embedder  llm.Embedder
	threshold float64
}

// NewSimilarityScorer creates a SimilarityScorer. A non-positive threshold
// falls back to DefaultThreshold.
func NewSimilarityScorer(embedder llm.Embedder, threshold float64) *SimilarityScorer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &SimilarityScorer{embedder: embedder, threshold: threshold}
}

// Score joins responses with their scenarios by id and computes cosine
// similarity for every row whose scenario has a reference. Rows without a
// matching scenario or without a reference keep similarity and passed unset;
// the threshold is recorded on every row. An embedding failure is contained
// to its row.
func (s *SimilarityScorer) Score(ctx context.Context, responses []result.Response, scenarios map[string]dataset.Scenario) ([]result.Result, error) {
	slog.Info("scoring similarity", "rows", len(responses), "threshold", s.threshold)

	rows := make([]result.Result, 0, len(responses))
	for _, resp := range responses {
		if err := ctx.Err(); err != nil {
			return rows, err
		}
		rows = append(rows, s.scoreRow(ctx, resp, scenarios))
	}

	scored := 0
	for i := range rows {
		if rows[i].Similarity != nil {
			scored++
		}
	}
	slog.Info("similarity scored", "scored", scored, "total", len(rows))
	return rows, nil
}

func (s *SimilarityScorer) scoreRow(ctx context.Context, resp result.Response, scenarios map[string]dataset.Scenario) result.Result {
	row := result.FromResponse(resp, "")
	if sc, ok := scenarios[resp.ID]; ok {
		row.Prompt = sc.Prompt
		row.Reference = sc.Reference
	}
	threshold := s.threshold
	row.Threshold = &threshold

	if row.Reference == "" {
		return row
	}

	start := time.Now()
	vecs, err := s.embedder.Embed(ctx, []string{row.Answer, row.Reference})
	if err != nil || len(vecs) < 2 {
		slog.Warn("embedding failed, similarity left unset", "id", row.ID, "error", err)
		return row
	}
	elapsed := time.Since(start).Milliseconds()

	sim := cosine(vecs[0], vecs[1])
	passed := sim >= s.threshold
	row.Similarity = &sim
	row.Passed = &passed
	if row.Timing == nil {
		row.Timing = &result.Timing{}
	}
	row.Timing.Embedding = &elapsed
	return row
}

// cosine computes cosine similarity, defined as 0 when either vector has
// zero norm.
func cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	var na, nb float64
	for _, x := range a {
		na += float64(x) * float64(x)
	}
	for _, y := range b {
		nb += float64(y) * float64(y)
	}
	if na == 0 || nb == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
