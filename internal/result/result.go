// Package result defines the records exchanged between pipeline stages and
// their on-disk JSON forms. A Response is what answer generation produces for
// one scenario; a Result is the same row progressively enriched by the
// scoring, judging and merge stages. Enrichment fields are pointers so that
// "absent" and "zero" stay distinguishable in the serialized output.
package result

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
)

// Timing holds per-row wall clock measurements in milliseconds.
type Timing struct {
	Generation *int64 `json:"generation,omitempty"`
	Embedding  *int64 `json:"embedding,omitempty"`
}

// Response is one generated answer, as written to responses.jsonl.
// Answer may be empty when the provider call failed; the row is kept so
// downstream stages see the full scenario set.
type Response struct {
	ID       string         `json:"id"`
	Prompt   string         `json:"prompt"`
	Answer   string         `json:"answer"`
	Timing   *Timing        `json:"timing_ms,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Result is an enriched evaluation row. Each optional field is owned by
// exactly one stage; stages never clear fields they do not own. Keys that no
// stage of this pipeline produces (externally merged metric columns, flat
// latency overrides) live in Extra and are flattened into the top-level JSON
// object on marshal.
type Result struct {
	ID        string         `json:"id"`
	Prompt    string         `json:"prompt"`
	Reference string         `json:"reference"`
	Answer    string         `json:"answer"`
	Timing    *Timing        `json:"timing_ms,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	// Similarity stage.
	Similarity *float64 `json:"similarity,omitempty"`
	Threshold  *float64 `json:"threshold,omitempty"`
	Passed     *bool    `json:"passed,omitempty"`

	// Judge stage.
	DeepevalScore     *float64 `json:"deepeval_score,omitempty"`
	DeepevalThreshold *float64 `json:"deepeval_threshold,omitempty"`
	DeepevalPassed    *bool    `json:"deepeval_passed,omitempty"`

	// Grounding stage.
	HallucinationSuccess *bool   `json:"hallucination_success,omitempty"`
	HallucinationReason  *string `json:"hallucination_reason,omitempty"`
	TraceabilitySuccess  *bool   `json:"traceability_geval_success,omitempty"`
	TraceabilityReason   *string `json:"traceability_geval_reason,omitempty"`
	JudgeLatencyMS       *int64  `json:"judge_latency_ms,omitempty"`
	JudgeModel           *string `json:"judge_model,omitempty"`

	Extra map[string]any `json:"-"`
}

// knownKeys are the JSON keys claimed by Result's typed fields. Computed once
// so UnmarshalJSON can split typed fields from Extra without hand-maintaining
// a list.
var knownKeys = func() map[string]bool {
	keys := make(map[string]bool)
	t := reflect.TypeOf(Result{})
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		if idx := strings.IndexByte(tag, ','); idx >= 0 {
			tag = tag[:idx]
		}
		keys[tag] = true
	}
	return keys
}()

// MarshalJSON flattens Extra into the top-level object. On key collision the
// Extra value wins, matching the behavior of the merge stage which runs last
// and overwrites in place.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	b, err := json.Marshal(plain(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return b, nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	for k, v := range r.Extra {
		m[k] = v
	}
	return json.Marshal(m)
}

// UnmarshalJSON routes known keys into typed fields and collects the rest
// into Extra, so a round trip preserves externally merged columns.
func (r *Result) UnmarshalJSON(data []byte) error {
	type plain Result
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	for k := range m {
		if knownKeys[k] {
			delete(m, k)
		}
	}
	if len(m) == 0 {
		m = nil
	}
	p.Extra = m
	*r = Result(p)
	return nil
}

// Set stores an arbitrary key/value on the row. Keys claimed by typed fields
// are coerced into them; a value that does not coerce is dropped so it can
// never clear what an earlier stage wrote. Everything else goes to Extra
// verbatim.
func (r *Result) Set(key string, value any) {
	if !knownKeys[key] {
		if r.Extra == nil {
			r.Extra = make(map[string]any)
		}
		r.Extra[key] = value
		return
	}
	switch key {
	case "similarity":
		if f := toFloat(value); f != nil {
			r.Similarity = f
		}
	case "threshold":
		if f := toFloat(value); f != nil {
			r.Threshold = f
		}
	case "passed":
		if b := toBool(value); b != nil {
			r.Passed = b
		}
	case "deepeval_score":
		if f := toFloat(value); f != nil {
			r.DeepevalScore = f
		}
	case "deepeval_threshold":
		if f := toFloat(value); f != nil {
			r.DeepevalThreshold = f
		}
	case "deepeval_passed":
		if b := toBool(value); b != nil {
			r.DeepevalPassed = b
		}
	case "hallucination_success":
		if b := toBool(value); b != nil {
			r.HallucinationSuccess = b
		}
	case "hallucination_reason":
		if s := toString(value); s != nil {
			r.HallucinationReason = s
		}
	case "traceability_geval_success":
		if b := toBool(value); b != nil {
			r.TraceabilitySuccess = b
		}
	case "traceability_geval_reason":
		if s := toString(value); s != nil {
			r.TraceabilityReason = s
		}
	case "judge_model":
		if s := toString(value); s != nil {
			r.JudgeModel = s
		}
	case "id":
		if s := toString(value); s != nil {
			r.ID = *s
		}
	case "prompt":
		if s := toString(value); s != nil {
			r.Prompt = *s
		}
	case "reference":
		if s := toString(value); s != nil {
			r.Reference = *s
		}
	case "answer":
		if s := toString(value); s != nil {
			r.Answer = *s
		}
	case "judge_latency_ms":
		if f := toFloat(value); f != nil {
			ms := int64(*f)
			r.JudgeLatencyMS = &ms
		}
	}
}

// GenerationLatency returns the row's generation latency in ms. A flat
// gen_latency_ms key from an external merge takes precedence over the nested
// timing block.
func (r *Result) GenerationLatency() *float64 {
	if v, ok := r.Extra["gen_latency_ms"]; ok {
		if f := toFloat(v); f != nil {
			return f
		}
	}
	if r.Timing != nil && r.Timing.Generation != nil {
		f := float64(*r.Timing.Generation)
		return &f
	}
	return nil
}

// EmbeddingLatency is the embedding counterpart of GenerationLatency.
func (r *Result) EmbeddingLatency() *float64 {
	if v, ok := r.Extra["emb_latency_ms"]; ok {
		if f := toFloat(v); f != nil {
			return f
		}
	}
	if r.Timing != nil && r.Timing.Embedding != nil {
		f := float64(*r.Timing.Embedding)
		return &f
	}
	return nil
}

func toFloat(v any) *float64 {
	switch x := v.(type) {
	case float64:
		return &x
	case float32:
		f := float64(x)
		return &f
	case int:
		f := float64(x)
		return &f
	case int64:
		f := float64(x)
		return &f
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return &f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return &f
		}
	case *float64:
		return x
	}
	return nil
}

// toBool accepts the spellings booleans arrive in from judges and
// spreadsheets. Unrecognized values map to nil, not false.
func toBool(v any) *bool {
	switch x := v.(type) {
	case bool:
		return &x
	case *bool:
		return x
	case float64:
		b := x != 0
		return &b
	case int:
		b := x != 0
		return &b
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

func toString(v any) *string {
	switch x := v.(type) {
	case string:
		return &x
	case *string:
		return x
	}
	return nil
}

// FromResponse starts a Result row from a generated response, attaching the
// scenario reference when one is known. The timing block is copied so later
// stages can add to it without mutating the response.
func FromResponse(resp Response, reference string) Result {
	r := Result{
		ID:        resp.ID,
		Prompt:    resp.Prompt,
		Reference: reference,
		Answer:    resp.Answer,
		Metadata:  resp.Metadata,
	}
	if resp.Timing != nil {
		t := *resp.Timing
		r.Timing = &t
	}
	return r
}
