package grader

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// GradesSchema is the structured output the grader asks for.
var GradesSchema = &Schema{
	Name:        "criterion-grades",
	Description: "Scores for each requested rubric criterion",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"grades": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"criterion_id": map[string]any{
							"type":        "string",
							"description": "ID of the criterion being scored, copied from the request",
						},
						"score": map[string]any{
							"type":        "number",
							"minimum":     1.0,
							"maximum":     5.0,
							"description": "1 emerging, 2 developing, 3 proficient, 4 advanced, 5 mastered",
						},
						"observation": map[string]any{
							"type":        "string",
							"description": "One sentence describing what the work shows for this criterion",
						},
						"strength": map[string]any{
							"type":        "string",
							"description": "Something specific the student did well, or empty",
						},
						"improvement": map[string]any{
							"type":        "string",
							"description": "A concrete next step starting with a verb such as Try, Add or Show, or empty",
						},
						"confidence": map[string]any{
							"type":        "number",
							"minimum":     0.0,
							"maximum":     1.0,
							"description": "How sure you are about the score",
						},
					},
					"required":             []any{"criterion_id", "score", "observation", "strength", "improvement", "confidence"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"grades"},
		"additionalProperties": false,
	},
}

var compiledSchemas sync.Map // name -> *jsonschema.Schema

// validateReply checks raw against schema. A nil schema accepts anything.
func validateReply(schema *Schema, raw json.RawMessage) error {
	if schema == nil {
		return nil
	}
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return &InvalidReplyError{Content: raw, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	compiled, err := compileSchema(schema)
	if err != nil {
		return &InvalidReplyError{Content: raw, Err: fmt.Errorf("compile schema %q: %w", schema.Name, err)}
	}
	if err := compiled.Validate(parsed); err != nil {
		return &InvalidReplyError{Content: raw, Err: fmt.Errorf("schema validation failed: %w", err)}
	}
	return nil
}

func compileSchema(schema *Schema) (*jsonschema.Schema, error) {
	if cached, ok := compiledSchemas.Load(schema.Name); ok {
		return cached.(*jsonschema.Schema), nil
	}
	// jsonschema wants generic JSON values, not Go map literals with
	// typed slices.
	b, err := json.Marshal(schema.Definition)
	if err != nil {
		return nil, fmt.Errorf("marshal schema definition: %w", err)
	}
	var def any
	if err := json.Unmarshal(b, &def); err != nil {
		return nil, fmt.Errorf("parse schema definition: %w", err)
	}

	c := jsonschema.NewCompiler()
	url := fmt.Sprintf("schema://%s.json", schema.Name)
	if err := c.AddResource(url, def); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	compiledSchemas.Store(schema.Name, compiled)
	return compiled, nil
}
