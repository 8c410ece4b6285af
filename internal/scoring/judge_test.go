package scoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relialab/evalpipe/internal/result"
	"github.com/relialab/evalpipe/internal/testutil"
)

func TestJudgeScore(t *testing.T) {
	rows := []result.Result{
		{ID: "Q_1", Prompt: "p1", Reference: "ref1", Answer: "good answer"},
		{ID: "Q_2", Prompt: "p2", Reference: "ref2", Answer: "weak answer"},
		{ID: "Q_3", Prompt: "p3", Answer: "no reference"},
	}
	client := &testutil.MockLLMClient{
		Responses: map[string]string{
			judgePayload("p1", "ref1", "good answer"): `{"score": 0.92, "reason": "matches the reference"}`,
			judgePayload("p2", "ref2", "weak answer"): `{"score": 0.41, "reason": "partial"}`,
		},
	}

	j := NewJudgeScorer(client, JudgeConfig{Model: "judge-model", Threshold: 0.8})
	require.NoError(t, j.Score(context.Background(), rows))

	require.NotNil(t, rows[0].DeepevalScore)
	assert.InDelta(t, 0.92, *rows[0].DeepevalScore, 1e-9)
	require.NotNil(t, rows[0].DeepevalPassed)
	assert.True(t, *rows[0].DeepevalPassed)

	require.NotNil(t, rows[1].DeepevalScore)
	assert.InDelta(t, 0.41, *rows[1].DeepevalScore, 1e-9)
	require.NotNil(t, rows[1].DeepevalPassed)
	assert.False(t, *rows[1].DeepevalPassed)

	// No reference: threshold recorded, score absent, no judge call made.
	assert.Nil(t, rows[2].DeepevalScore)
	assert.Nil(t, rows[2].DeepevalPassed)
	require.NotNil(t, rows[2].DeepevalThreshold)
	assert.InDelta(t, 0.8, *rows[2].DeepevalThreshold, 1e-9)

	assert.Equal(t, 2, client.Calls)
}

func TestJudgeRequestShape(t *testing.T) {
	rows := []result.Result{{ID: "Q_1", Prompt: "p", Reference: "r", Answer: "a"}}
	client := &testutil.MockLLMClient{DefaultResponse: `{"score": 1.0}`}

	j := NewJudgeScorer(client, JudgeConfig{Model: "judge-model", Concurrency: 1})
	require.NoError(t, j.Score(context.Background(), rows))

	req := client.LastRequest
	assert.Equal(t, "judge-model", req.Model)
	assert.Equal(t, JudgePrompt, req.SystemMessage)
	assert.Contains(t, req.UserMessage, "PROMPT:\np")
	assert.Contains(t, req.UserMessage, "EXPECTED RESPONSE:\nr")
	assert.Contains(t, req.UserMessage, "ACTUAL RESPONSE:\na")
	require.NotNil(t, req.Temperature)
	assert.Zero(t, *req.Temperature)
}

func TestJudgeTenScaleNormalized(t *testing.T) {
	rows := []result.Result{{ID: "Q_1", Prompt: "p", Reference: "r", Answer: "a"}}
	client := &testutil.MockLLMClient{DefaultResponse: `{"score": 8.5, "reason": "scored 0-10"}`}

	require.NoError(t, NewJudgeScorer(client, JudgeConfig{}).Score(context.Background(), rows))

	require.NotNil(t, rows[0].DeepevalScore)
	assert.InDelta(t, 0.85, *rows[0].DeepevalScore, 1e-9)
	require.NotNil(t, rows[0].DeepevalPassed)
	assert.True(t, *rows[0].DeepevalPassed)
}

func TestJudgeCallFailure(t *testing.T) {
	rows := []result.Result{{ID: "Q_1", Prompt: "p", Reference: "r", Answer: "a"}}
	client := &testutil.MockLLMClient{Err: assert.AnError}

	require.NoError(t, NewJudgeScorer(client, JudgeConfig{}).Score(context.Background(), rows))

	assert.Nil(t, rows[0].DeepevalScore)
	assert.Nil(t, rows[0].DeepevalPassed)
	assert.NotNil(t, rows[0].DeepevalThreshold)
}

func TestJudgeUnparseableVerdict(t *testing.T) {
	rows := []result.Result{{ID: "Q_1", Prompt: "p", Reference: "r", Answer: "a"}}
	client := &testutil.MockLLMClient{DefaultResponse: "the answer looks fine to me"}

	require.NoError(t, NewJudgeScorer(client, JudgeConfig{}).Score(context.Background(), rows))

	assert.Nil(t, rows[0].DeepevalScore)
	assert.Nil(t, rows[0].DeepevalPassed)
}

func TestJudgeKeepsEarlierFields(t *testing.T) {
	sim := 0.9
	passed := true
	rows := []result.Result{{
		ID: "Q_1", Prompt: "p", Reference: "r", Answer: "a",
		Similarity: &sim, Passed: &passed,
	}}
	client := &testutil.MockLLMClient{DefaultResponse: `{"score": 0.5, "reason": "partial"}`}

	require.NoError(t, NewJudgeScorer(client, JudgeConfig{}).Score(context.Background(), rows))

	require.NotNil(t, rows[0].Similarity)
	assert.InDelta(t, 0.9, *rows[0].Similarity, 1e-9)
	require.NotNil(t, rows[0].Passed)
	assert.True(t, *rows[0].Passed)
	require.NotNil(t, rows[0].DeepevalScore)
	assert.InDelta(t, 0.5, *rows[0].DeepevalScore, 1e-9)
}

func TestJudgeDefaults(t *testing.T) {
	j := NewJudgeScorer(&testutil.MockLLMClient{}, JudgeConfig{})
	assert.Equal(t, DefaultJudgeModel, j.config.Model)
	assert.Equal(t, DefaultThreshold, j.config.Threshold)
	assert.Equal(t, DefaultConcurrency, j.config.Concurrency)
}

func TestNormalizeScore(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  float64
		unset bool
	}{
		{name: "in range", input: 0.85, want: 0.85},
		{name: "ten scale", input: 8.5, want: 0.85},
		{name: "exactly one", input: 1.0, want: 1.0},
		{name: "ten", input: 10.0, want: 1.0},
		{name: "above ten clamps", input: 15.0, want: 1.0},
		{name: "negative clamps to zero", input: -0.2, want: 0.0},
		{name: "numeric string", input: "0.7", want: 0.7},
		{name: "integer", input: 3, want: 0.3},
		{name: "garbage string", input: "great", unset: true},
		{name: "nil", input: nil, unset: true},
		{name: "bool", input: true, unset: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeScore(tt.input)
			if tt.unset {
				assert.Nil(t, got)
			} else {
				require.NotNil(t, got)
				assert.InDelta(t, tt.want, *got, 1e-9)
			}
		})
	}
}
