package kserve

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

func TestBuildInferenceService(t *testing.T) {
	cfg := ModelConfig{
		Name:     "mistral-7b",
		ModelURI: "hf://mistralai/Mistral-7B-Instruct-v0.3",
		Runtime:  "kserve-vllm",
		GPUCount: 1,
	}

	isvc := BuildInferenceService(cfg, "evalpipe")

	assert.Equal(t, apiVersion, isvc.APIVersion)
	assert.Equal(t, kind, isvc.Kind)
	assert.Equal(t, "mistral-7b", isvc.Name)
	assert.Equal(t, "evalpipe", isvc.Namespace)

	labels := isvc.GetLabels()
	assert.Equal(t, managedBy, labels["app.kubernetes.io/managed-by"])
	assert.Equal(t, "mistral-7b", labels["app.kubernetes.io/name"])

	model := isvc.Spec.Predictor.Model
	require.NotNil(t, model)
	require.NotNil(t, model.StorageURI)
	assert.Equal(t, "hf://mistralai/Mistral-7B-Instruct-v0.3", *model.StorageURI)
	require.NotNil(t, model.Runtime)
	assert.Equal(t, "kserve-vllm", *model.Runtime)
	assert.Equal(t, "vLLM", model.ModelFormat.Name)

	gpuReq := model.Resources.Requests["nvidia.com/gpu"]
	assert.Equal(t, "1", gpuReq.String())
}

func TestBuildInferenceServiceWithArgs(t *testing.T) {
	cfg := ModelConfig{
		Name:        "llama-70b",
		ModelURI:    "hf://meta-llama/Llama-3-70B-Instruct",
		Runtime:     "kserve-vllm",
		GPUCount:    4,
		RuntimeArgs: []string{"--max-model-len=4096", "--tensor-parallel-size=4"},
	}

	isvc := BuildInferenceService(cfg, "default")

	require.NotNil(t, isvc.Spec.Predictor.Model)
	assert.Equal(t, cfg.RuntimeArgs, isvc.Spec.Predictor.Model.Args)

	gpuLimit := isvc.Spec.Predictor.Model.Resources.Limits["nvidia.com/gpu"]
	assert.Equal(t, "4", gpuLimit.String())
}

func TestUnstructuredRoundTrip(t *testing.T) {
	cfg := DefaultModelConfig("round-trip", "hf://org/model")
	isvc := BuildInferenceService(cfg, "default")

	obj, err := toUnstructured(isvc)
	require.NoError(t, err)

	storageURI, found, err := unstructured.NestedString(obj.Object, "spec", "predictor", "model", "storageUri")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "hf://org/model", storageURI)

	back, err := fromUnstructured(obj)
	require.NoError(t, err)
	assert.Equal(t, isvc.Name, back.Name)
	require.NotNil(t, back.Spec.Predictor.Model.StorageURI)
	assert.Equal(t, "hf://org/model", *back.Spec.Predictor.Model.StorageURI)
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"mistral-7b", "mistral-7b"},
		{"Mistral-7B", "mistral-7b"},
		{"model/name@version", "model-name-version"},
		{"_starts_with_underscore", "m--starts-with-underscore"},
		{"simple", "simple"},
		{"trailing-dash-after-truncation-" + strings.Repeat("abcdefghij", 6), strings.TrimRight(("trailing-dash-after-truncation-" + strings.Repeat("abcdefghij", 6))[:63], "-")},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestEndpointURL(t *testing.T) {
	url := EndpointURL("mistral-7b", "evalpipe")
	assert.Equal(t, "http://mistral-7b.evalpipe.svc.cluster.local/v1", url)
}

func TestDefaultModelConfig(t *testing.T) {
	cfg := DefaultModelConfig("test-model", "hf://org/model")
	assert.Equal(t, "test-model", cfg.Name)
	assert.Equal(t, "hf://org/model", cfg.ModelURI)
	assert.Equal(t, "kserve-vllm", cfg.Runtime)
	assert.Equal(t, 1, cfg.GPUCount)
}
