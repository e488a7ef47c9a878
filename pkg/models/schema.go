package models

// Schema is a JSON-Schema-ish tool parameter description, kept as a raw
// map rather than a typed AST. Tool authors and the wire format both speak
// plain JSON objects, and the sanitizer (internal/schema) rewrites them with
// targeted key lookups rather than a full schema type system, the same
// shape the house style's tool-schema converters use.
type Schema = map[string]any
