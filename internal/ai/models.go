package ai

import (
	"time"

	"github.com/google/generative-ai-go/genai"
)

// Request describes one generation session.
type Request struct {
	// Instructions is the fixed role/tool-usage text bound to the session.
	Instructions string
	// Prompt is the per-call user message.
	Prompt string
	// Tools registered for the session; may be empty.
	Tools []Tool
	// Schema is the response shape. Backends enforce it natively when no tools
	// are registered and otherwise rely on the instructions.
	Schema *Schema
	// ToolTimeout bounds each individual tool call. Zero means no extra bound.
	ToolTimeout time.Duration
	// MaxTurns bounds the number of tool round trips. Zero means DefaultMaxTurns.
	MaxTurns int
}

// DefaultMaxTurns is used when Request.MaxTurns is zero.
const DefaultMaxTurns = 8

func (r Request) maxTurns() int {
	if r.MaxTurns <= 0 {
		return DefaultMaxTurns
	}
	return r.MaxTurns
}

type SchemaType string

const (
	TypeObject  SchemaType = "object"
	TypeArray   SchemaType = "array"
	TypeString  SchemaType = "string"
	TypeNumber  SchemaType = "number"
	TypeInteger SchemaType = "integer"
	TypeBoolean SchemaType = "boolean"
)

// Schema is a provider-neutral subset of JSON Schema.
type Schema struct {
	Type        SchemaType
	Description string
	Properties  map[string]*Schema
	Required    []string
	Items       *Schema
	Enum        []string
	Nullable    bool
}

// JSONSchema renders s as a JSON-Schema document (used for OpenAI tools).
func (s *Schema) JSONSchema() map[string]any {
	if s == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	out := map[string]any{"type": string(s.Type)}
	if s.Nullable {
		out["type"] = []string{string(s.Type), "null"}
	}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		out["enum"] = s.Enum
	}
	if s.Type == TypeObject {
		props := make(map[string]any, len(s.Properties))
		for name, p := range s.Properties {
			props[name] = p.JSONSchema()
		}
		out["properties"] = props
		if len(s.Required) > 0 {
			out["required"] = s.Required
		}
	}
	if s.Items != nil {
		out["items"] = s.Items.JSONSchema()
	}
	return out
}

func (s *Schema) genai() *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genaiType(s.Type),
		Description: s.Description,
		Nullable:    s.Nullable,
		Enum:        s.Enum,
		Required:    s.Required,
		Items:       s.Items.genai(),
	}
	if len(s.Enum) > 0 {
		out.Format = "enum"
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, p := range s.Properties {
			out.Properties[name] = p.genai()
		}
	}
	return out
}

func genaiType(t SchemaType) genai.Type {
	switch t {
	case TypeObject:
		return genai.TypeObject
	case TypeArray:
		return genai.TypeArray
	case TypeString:
		return genai.TypeString
	case TypeNumber:
		return genai.TypeNumber
	case TypeInteger:
		return genai.TypeInteger
	case TypeBoolean:
		return genai.TypeBoolean
	default:
		return genai.TypeUnspecified
	}
}
