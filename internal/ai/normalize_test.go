package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("  {\"a\":1} "))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "ab", truncateRunes("abc", 2))
	assert.Equal(t, "日本", truncateRunes("日本語", 2))
	assert.Equal(t, "abc", truncateRunes("abc", 0))
	assert.Equal(t, "abc", truncateRunes("abc", 10))
}

func TestNormalizeMedical(t *testing.T) {
	obj := map[string]any{
		"testName": "Lipids",
		"results": []any{
			map[string]any{"name": " LDL ", "value": 3.25, "referenceRange": nil, "status": "High"},
			map[string]any{"parameter": "HDL", "value": nil, "status": nil},
			"garbage",
		},
	}
	normalizeMedical(obj)

	assert.Equal(t, "Lipids", obj["testType"])
	assert.NotContains(t, obj, "testName")
	results := obj["results"].([]any)
	assert.Equal(t, map[string]any{"parameter": "LDL", "value": "3.25", "referenceRange": nil, "status": "high"}, results[0])
	assert.Equal(t, map[string]any{"parameter": "HDL", "value": "", "status": "unknown"}, results[1])
}

func TestParseMedicalData_KeepsExistingTestType(t *testing.T) {
	data, err := parseMedicalData(`{"testType":"CBC","testName":"other","results":[],"summary":"ok","recommendations":null}`)
	assert.NoError(t, err)
	assert.Equal(t, "CBC", data.TestType)
	assert.Nil(t, data.Recommendations)
}
