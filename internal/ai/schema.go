package ai

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const medicalSchemaJSON = `{
  "type": "object",
  "required": ["results", "summary"],
  "properties": {
    "testType": {"type": ["string", "null"]},
    "testDate": {"type": ["string", "null"]},
    "patientInfo": {
      "type": ["object", "null"],
      "properties": {
        "name": {"type": ["string", "null"]},
        "age": {"type": ["string", "null"]},
        "gender": {"type": ["string", "null"]}
      }
    },
    "laboratory": {"type": ["string", "null"]},
    "doctorName": {"type": ["string", "null"]},
    "results": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["parameter", "value", "status"],
        "properties": {
          "parameter": {"type": "string", "minLength": 1},
          "value": {"type": "string"},
          "unit": {"type": ["string", "null"]},
          "referenceRange": {"type": ["string", "null"]},
          "status": {"enum": ["normal", "high", "low", "critical", "unknown"]},
          "notes": {"type": ["string", "null"]}
        }
      }
    },
    "summary": {"type": "string", "minLength": 1},
    "recommendations": {"type": ["array", "null"], "items": {"type": "string"}}
  }
}`

const foodSchemaJSON = `{
  "type": "object",
  "required": ["macros"],
  "properties": {
    "foodName": {"type": ["string", "null"]},
    "macros": {
      "type": "object",
      "required": ["protein", "carbs", "fats", "calories"],
      "properties": {
        "protein": {"type": "number", "minimum": 0},
        "carbs": {"type": "number", "minimum": 0},
        "fats": {"type": "number", "minimum": 0},
        "calories": {"type": "number", "minimum": 0}
      }
    },
    "summary": {"type": ["string", "null"]}
  }
}`

var (
	medicalSchema = mustCompile("medical.json", medicalSchemaJSON)
	foodSchema    = mustCompile("food.json", foodSchemaJSON)
)

func mustCompile(name, src string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(src)); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", name, err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return schema
}
