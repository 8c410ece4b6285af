package scoring

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/relialab/evalpipe/internal/llm"
	"github.com/relialab/evalpipe/internal/result"
)

// JudgeConfig configures the LLM judge stage.
type JudgeConfig struct {
	Model       string
	Threshold   float64
	Concurrency int
}

// JudgeScorer enriches result rows with an LLM judge score comparing each
// answer against its expected reference.
type JudgeScorer struct {
	client llm.Client
	config JudgeConfig
}

// NewJudgeScorer creates a JudgeScorer, applying defaults for unset config
// values.
func NewJudgeScorer(client llm.Client, config JudgeConfig) *JudgeScorer {
	if config.Model == "" {
		config.Model = DefaultJudgeModel
	}
	if config.Threshold <= 0 {
		config.Threshold = DefaultThreshold
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	return &JudgeScorer{client: client, config: config}
}

// Score judges every row that carries a reference. Rows are judged
// concurrently but each goroutine writes only its own slice position. A
// failed judge call leaves that row's score unset; the returned error is
// non-nil only when the context is canceled.
func (j *JudgeScorer) Score(ctx context.Context, rows []result.Result) error {
	slog.Info("judging answers",
		"rows", len(rows),
		"model", j.config.Model,
		"concurrency", j.config.Concurrency,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.Concurrency)
	for i := range rows {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			j.judgeRow(ctx, &rows[i])
			return nil
		})
	}
	return g.Wait()
}

func (j *JudgeScorer) judgeRow(ctx context.Context, row *result.Result) {
	threshold := j.config.Threshold
	row.DeepevalThreshold = &threshold
	if row.Reference == "" {
		return
	}

	resp, err := j.client.ChatCompletion(ctx, llm.ChatRequest{
		Model:         j.config.Model,
		SystemMessage: JudgePrompt,
		UserMessage:   judgePayload(row.Prompt, row.Reference, row.Answer),
		Temperature:   llm.Float64Ptr(0),
	})
	if err != nil {
		slog.Warn("judge call failed, score left unset", "id", row.ID, "error", err)
		return
	}

	verdict := extractJSON(resp.Content)
	if verdict == nil {
		slog.Warn("judge returned no parseable JSON", "id", row.ID)
		return
	}
	score := normalizeScore(verdict["score"])
	if score == nil {
		slog.Warn("judge returned no usable score", "id", row.ID)
		return
	}
	passed := *score >= j.config.Threshold
	row.DeepevalScore = score
	row.DeepevalPassed = &passed
}

// normalizeScore maps a raw judge score onto [0,1]. A value above 1 is
// assumed to come from a 0-10 scale and divided down before clamping.
func normalizeScore(v any) *float64 {
	var s float64
	switch x := v.(type) {
	case float64:
		s = x
	case int:
		s = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil
		}
		s = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		s = f
	default:
		return nil
	}
	if s > 1.0 {
		s /= 10.0
	}
	s = math.Max(0.0, math.Min(1.0, s))
	return &s
}
