package schema

import "strings"

// PromptSchema is the schema for files under a workspace's prompts/
// directory, matching the Required/Optional keys enumerated in the
// prompt file layout.
var PromptSchema = Schema{
	Name: "prompt",
	Fields: []NamedField{
		{Name: "number", Field: Field{Type: TypeInteger, Required: true}},
		{Name: "title", Field: Field{Type: TypeString, Required: true}},
		{Name: "status", Field: Field{Type: TypeEnum, Required: true, Values: []string{"pending", "in_progress", "done", "blocked"}}},
		{Name: "dependencies", Field: Field{Type: TypeArray, Items: TypeInteger}},
		{Name: "attempts", Field: Field{Type: TypeInteger}},
		{Name: "type", Field: Field{Type: TypeString}},
		{Name: "planning_session", Field: Field{Type: TypeString}},
	},
}

// ForPath selects a schema by path convention. Files under a "prompts/"
// path segment use PromptSchema; everything else has no schema and
// validation passes vacuously (the caller should treat "no schema" as
// allow, per spec).
func ForPath(path string) (Schema, bool) {
	normalized := strings.ReplaceAll(path, "\\", "/")
	if strings.Contains(normalized, "/prompts/") || strings.HasPrefix(normalized, "prompts/") {
		return PromptSchema, true
	}
	return Schema{}, false
}
