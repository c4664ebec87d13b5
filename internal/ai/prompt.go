package ai

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const medicalSystemPrompt = `You are a medical laboratory analyst. Extract structured data from the lab report the user provides.
Return ONLY a valid JSON object (no markdown, no explanations) with exactly this structure:
{
  "testType": "name of the test or panel",
  "testDate": "date in YYYY-MM-DD format, empty if unknown",
  "patientInfo": {"name": "", "age": "", "gender": ""},
  "laboratory": "laboratory name if printed",
  "doctorName": "ordering doctor if printed",
  "results": [
    {
      "parameter": "name of the measured parameter",
      "value": "measured value as printed",
      "unit": "unit of measurement",
      "referenceRange": "reference range as printed",
      "status": "normal | high | low | critical | unknown",
      "notes": "optional remark"
    }
  ],
  "summary": "short summary of the key findings",
  "recommendations": ["optional follow-up suggestions"]
}

Derive each status by comparing the value with its reference range. Use "unknown" when there is no range.
Include every parameter found in the report. Omit patientInfo fields that are not present.`

const foodSystemPrompt = `You are a nutrition expert. Analyze the photo of a meal and estimate its nutritional value for the visible portion.
Return ONLY a valid JSON object (no markdown, no explanations) with exactly this structure:
{
  "foodName": "name of the dish",
  "macros": {
    "protein": number (grams),
    "carbs": number (grams),
    "fats": number (grams),
    "calories": number (kcal)
  },
  "summary": "short description of the dish and its composition"
}`

const foodUserPrompt = "Analyze this meal and estimate its nutritional value in the JSON format above."

func medicalUserPrompt(text, hint string, maxChars int) string {
	var sb strings.Builder
	sb.WriteString("Analyze this lab report and extract all parameters in the JSON format above.\n")
	if hint = strings.TrimSpace(hint); hint != "" {
		fmt.Fprintf(&sb, "Test type hint: %s\n", hint)
	}
	sb.WriteString("Report content:\n\n")
	sb.WriteString(truncateRunes(text, maxChars))
	return sb.String()
}

// truncateRunes keeps at most n runes of s. n <= 0 disables truncation.
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for idx := range s {
		if i == n {
			return s[:idx]
		}
		i++
	}
	return s
}
