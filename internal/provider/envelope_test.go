package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractEnvelope(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain text passes through",
			in:   "The cutoff is 16:30 CET.",
			want: "The cutoff is 16:30 CET.",
		},
		{
			name: "json string without inner json",
			in:   `"just a quoted sentence"`,
			want: "just a quoted sentence",
		},
		{
			name: "matches envelope joins documents",
			in:   `{"matches":[{"document":"doc one"},{"document":"doc two"}]}`,
			want: "doc one\n\ndoc two",
		},
		{
			name: "matches envelope encoded as json string",
			in:   `"{\"matches\":[{\"document\":\"nested doc\"}]}"`,
			want: "nested doc",
		},
		{
			name: "only first five matches considered",
			in: `{"matches":[{"document":"d1"},{"document":"d2"},{"document":"d3"},` +
				`{"document":"d4"},{"document":"d5"},{"document":"d6"}]}`,
			want: "d1\n\nd2\n\nd3\n\nd4\n\nd5",
		},
		{
			name: "matches without documents fall back to pretty json",
			in:   `{"matches":[{"score":0.9}]}`,
			want: "{\n  \"matches\": [\n    {\n      \"score\": 0.9\n    }\n  ]\n}",
		},
		{
			name: "object without matches is pretty printed",
			in:   `{"a":1}`,
			want: "{\n  \"a\": 1\n}",
		},
		{
			name: "empty matches entries skipped",
			in:   `{"matches":[{"document":""},{"document":"kept"}]}`,
			want: "kept",
		},
		{
			name: "json number round trips",
			in:   `42`,
			want: "42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractEnvelope(tt.in))
		})
	}
}
