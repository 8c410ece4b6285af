package scoring

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/relialab/evalpipe/internal/llm"
	"github.com/relialab/evalpipe/internal/result"
)

// GroundingConfig configures the hallucination and traceability judge.
type GroundingConfig struct {
	Model       string
	Concurrency int
}

// GroundingJudge asks a judge model whether each answer stays grounded in
// its reference: no invented claims, and key claims traceable back to the
// reference text.
type GroundingJudge struct {
	client llm.Client
	config GroundingConfig
}

// NewGroundingJudge creates a GroundingJudge, applying defaults for unset
// config values.
func NewGroundingJudge(client llm.Client, config GroundingConfig) *GroundingJudge {
	if config.Model == "" {
		config.Model = DefaultJudgeModel
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	return &GroundingJudge{client: client, config: config}
}

// Score judges every row that has both a reference and a non-empty answer.
// An unparseable verdict leaves all four grounding fields unset; latency and
// model are still recorded for any row that was actually judged.
func (g *GroundingJudge) Score(ctx context.Context, rows []result.Result) error {
	slog.Info("judging grounding",
		"rows", len(rows),
		"model", g.config.Model,
		"concurrency", g.config.Concurrency,
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.config.Concurrency)
	for i := range rows {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			g.judgeRow(ctx, &rows[i])
			return nil
		})
	}
	return eg.Wait()
}

func (g *GroundingJudge) judgeRow(ctx context.Context, row *result.Result) {
	if row.Reference == "" || row.Answer == "" {
		return
	}

	start := time.Now()
	resp, err := g.client.ChatCompletion(ctx, llm.ChatRequest{
		Model:         g.config.Model,
		SystemMessage: GroundingPrompt,
		UserMessage:   groundingPayload(row.Prompt, row.Reference, row.Answer),
		Temperature:   llm.Float64Ptr(0),
	})
	latency := time.Since(start).Milliseconds()
	if err != nil {
		slog.Warn("grounding judge call failed", "id", row.ID, "error", err)
		return
	}

	verdict := extractJSON(resp.Content)
	row.HallucinationSuccess = asBool(verdict["hallucination_success"])
	row.HallucinationReason = trimmedString(verdict["hallucination_reason"])
	row.TraceabilitySuccess = asBool(verdict["traceability_geval_success"])
	row.TraceabilityReason = trimmedString(verdict["traceability_geval_reason"])
	row.JudgeLatencyMS = &latency
	model := g.config.Model
	row.JudgeModel = &model
}

// asBool coerces the spellings judges answer booleans with. Anything
// unrecognized maps to nil, never false.
func asBool(v any) *bool {
	switch x := v.(type) {
	case bool:
		return &x
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "y", "1":
			b := true
			return &b
		case "false", "no", "n", "0":
			b := false
			return &b
		}
	}
	return nil
}

func trimmedString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
