package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"nutrilab/internal/model"
)

// decodeObject parses model output into a generic JSON object. Markdown code
// fences are tolerated even though JSON mode should never produce them.
func decodeObject(content string) (map[string]any, error) {
	content = stripCodeFence(content)
	var v any
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return obj, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

// normalizeMedical rewrites the shapes models commonly get wrong so that
// schema validation only rejects output that is actually unusable.
func normalizeMedical(obj map[string]any) {
	renameKey(obj, "testName", "testType")
	if pi, ok := obj["patientInfo"].(map[string]any); ok {
		for _, k := range []string{"name", "age", "gender"} {
			if v, ok := pi[k]; ok && v != nil {
				pi[k] = scalarString(v)
			}
		}
	}
	results, ok := obj["results"].([]any)
	if !ok {
		return
	}
	for _, item := range results {
		r, ok := item.(map[string]any)
		if !ok {
			continue
		}
		renameKey(r, "name", "parameter")
		if v, ok := r["parameter"]; ok && v != nil {
			r["parameter"] = strings.TrimSpace(scalarString(v))
		}
		r["value"] = scalarString(r["value"])
		for _, k := range []string{"unit", "referenceRange", "notes"} {
			if v, ok := r[k]; ok && v != nil {
				r[k] = scalarString(v)
			}
		}
		status, _ := r["status"].(string)
		r["status"] = string(model.NormalizeStatus(status))
	}
}

var leadingNumber = regexp.MustCompile(`^\s*(-?\d+(?:[.,]\d+)?)`)

func normalizeFood(obj map[string]any) {
	macros, ok := obj["macros"].(map[string]any)
	if !ok {
		return
	}
	for _, k := range []string{"protein", "carbs", "fats", "calories"} {
		s, ok := macros[k].(string)
		if !ok {
			continue
		}
		// "25g", "410 kcal"
		if m := leadingNumber.FindStringSubmatch(s); m != nil {
			if f, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64); err == nil {
				macros[k] = f
			}
		}
	}
}

func renameKey(obj map[string]any, from, to string) {
	if _, ok := obj[to]; ok {
		return
	}
	if v, ok := obj[from]; ok {
		obj[to] = v
		delete(obj, from)
	}
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// parseMedicalData is decode, normalize, validate, then typed decode.
func parseMedicalData(content string) (*model.MedicalData, error) {
	obj, err := decodeObject(content)
	if err != nil {
		return nil, malformed(content, err)
	}
	normalizeMedical(obj)
	if err := medicalSchema.Validate(any(obj)); err != nil {
		return nil, malformed(content, fmt.Errorf("schema: %w", err))
	}
	var out model.MedicalData
	if err := remarshal(obj, &out); err != nil {
		return nil, malformed(content, err)
	}
	if out.Results == nil {
		out.Results = []model.TestResult{}
	}
	return &out, nil
}

func parseFoodAnalysis(content string) (*model.FoodAnalysis, error) {
	obj, err := decodeObject(content)
	if err != nil {
		return nil, malformed(content, err)
	}
	normalizeFood(obj)
	if err := foodSchema.Validate(any(obj)); err != nil {
		return nil, malformed(content, fmt.Errorf("schema: %w", err))
	}
	var out model.FoodAnalysis
	if err := remarshal(obj, &out); err != nil {
		return nil, malformed(content, err)
	}
	return &out, nil
}

func remarshal(src any, dst any) error {
	b, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}
