// Package schema normalizes JSON-Schema-ish tool parameter definitions to
// the restricted dialect the Gemini-family provider accepts: no $ref, no
// additionalProperties, no constraint keywords, no sibling type next to
// anyOf/oneOf, no nullable unions.
//
// The walk is grounded on the house style's toolconv package (a recursive
// map[string]any walk producing a provider-specific schema), generalized
// here into a full rewrite pass instead of a straight type/properties copy,
// since the provider's dialect is far more restrictive than what tool
// authors actually write.
package schema

// Sanitize rewrites raw into the provider dialect. It never errors: schemas
// it doesn't understand are passed through with forbidden keys stripped.
func Sanitize(raw map[string]any) map[string]any {
	if raw == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	s := &sanitizer{defs: collectDefs(raw)}
	walked := s.walk(raw, nil)
	return topLevelShape(walked)
}

type sanitizer struct {
	defs map[string]map[string]any
}

var forbiddenKeys = map[string]bool{
	"additionalProperties": true,
	"$schema":              true,
	"$id":                  true,
	"$defs":                true,
	"definitions":          true,
	"examples":             true,
	"default":              true,
	"title":                true,
	"id":                   true,
	"minLength":            true,
	"maxLength":            true,
	"minimum":              true,
	"maximum":              true,
	"multipleOf":           true,
	"pattern":              true,
	"format":               true,
	"minItems":             true,
	"maxItems":             true,
	"uniqueItems":          true,
	"minProperties":        true,
	"maxProperties":        true,
	"if":                   true,
	"then":                 true,
	"else":                 true,
	"not":                  true,
	"dependentRequired":    true,
	"dependentSchemas":     true,
	"patternProperties":    true,
}

// collectDefs flattens $defs and definitions from the root document into a
// single name -> schema lookup table used to resolve local $refs.
func collectDefs(root map[string]any) map[string]map[string]any {
	out := map[string]map[string]any{}
	for _, key := range []string{"$defs", "definitions"} {
		group, ok := root[key].(map[string]any)
		if !ok {
			continue
		}
		for name, v := range group {
			if sub, ok := v.(map[string]any); ok {
				out[name] = sub
			}
		}
	}
	return out
}

func (s *sanitizer) walk(node map[string]any, refPath map[string]bool) map[string]any {
	if node == nil {
		return map[string]any{}
	}
	if ref, ok := node["$ref"].(string); ok {
		return s.resolveRef(node, ref, refPath)
	}

	out := map[string]any{}
	for k, v := range node {
		if forbiddenKeys[k] {
			continue
		}
		switch k {
		case "type", "const", "enum", "properties", "items", "anyOf", "oneOf", "$ref":
			// handled explicitly below
		default:
			out[k] = v
		}
	}

	if cv, hasConst := node["const"]; hasConst {
		out["enum"] = []any{cv}
		if t, ok := node["type"]; ok {
			out["type"] = normalizeType(t)
		}
	} else if t, ok := node["type"]; ok {
		out["type"] = normalizeType(t)
	}
	if enumV, ok := node["enum"]; ok {
		if _, already := out["enum"]; !already {
			out["enum"] = enumV
		}
	}

	if props, ok := node["properties"].(map[string]any); ok {
		newProps := map[string]any{}
		for name, raw := range props {
			if propSchema, ok := raw.(map[string]any); ok {
				newProps[name] = s.walk(propSchema, refPath)
			}
		}
		out["properties"] = newProps
		if req, ok := node["required"]; ok {
			out["required"] = req
		}
	}

	if items, ok := node["items"].(map[string]any); ok {
		out["items"] = s.walk(items, refPath)
	}

	if variants, key, ok := unionVariants(node); ok {
		return s.resolveUnion(out, variants, key, refPath)
	}

	return out
}

func (s *sanitizer) resolveRef(node map[string]any, ref string, refPath map[string]bool) map[string]any {
	name := refLocalName(ref)
	description, hasDescription := node["description"].(string)

	if name == "" {
		return descriptionOnly(description, hasDescription)
	}
	if refPath[name] {
		return descriptionOnly(description, hasDescription)
	}
	target, found := s.defs[name]
	if !found {
		return descriptionOnly(description, hasDescription)
	}

	nextPath := make(map[string]bool, len(refPath)+1)
	for k := range refPath {
		nextPath[k] = true
	}
	nextPath[name] = true

	resolved := s.walk(target, nextPath)
	if hasDescription {
		resolved["description"] = description
	}
	return resolved
}

func descriptionOnly(description string, has bool) map[string]any {
	if !has {
		return map[string]any{}
	}
	return map[string]any{"description": description}
}

// refLocalName extracts "Foo" from "#/$defs/Foo" or "#/definitions/Foo"; it
// returns "" for anything else (non-local or unrecognized refs), which the
// caller treats as unresolvable.
func refLocalName(ref string) string {
	for _, prefix := range []string{"#/$defs/", "#/definitions/"} {
		if len(ref) > len(prefix) && ref[:len(prefix)] == prefix {
			return ref[len(prefix):]
		}
	}
	return ""
}

// normalizeType collapses ["X","null"] to "X" and single-element arrays to
// their scalar, leaving everything else (including already-scalar types)
// untouched.
func normalizeType(t any) any {
	arr, ok := t.([]any)
	if !ok {
		return t
	}
	filtered := make([]any, 0, len(arr))
	for _, v := range arr {
		if v == "null" {
			continue
		}
		filtered = append(filtered, v)
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	if len(filtered) == 0 {
		return t
	}
	return filtered
}

func unionVariants(node map[string]any) ([]any, string, bool) {
	if v, ok := node["anyOf"].([]any); ok {
		return v, "anyOf", true
	}
	if v, ok := node["oneOf"].([]any); ok {
		return v, "oneOf", true
	}
	return nil, "", false
}

func (s *sanitizer) resolveUnion(out map[string]any, rawVariants []any, key string, refPath map[string]bool) map[string]any {
	description, hasDescription := out["description"].(string)

	walked := make([]map[string]any, 0, len(rawVariants))
	for _, rv := range rawVariants {
		vm, ok := rv.(map[string]any)
		if !ok {
			continue
		}
		walked = append(walked, s.walk(vm, refPath))
	}

	nonNull := make([]map[string]any, 0, len(walked))
	for _, v := range walked {
		if !isNullVariant(v) {
			nonNull = append(nonNull, v)
		}
	}

	// Conflict removal: a union node never keeps a sibling "type".
	delete(out, "type")

	if len(nonNull) == 0 {
		return descriptionOnly(description, hasDescription)
	}
	if len(nonNull) == 1 {
		unwrapped := cloneSchema(nonNull[0])
		if hasDescription {
			unwrapped["description"] = description
		}
		return unwrapped
	}

	if flat, ok := flattenLiteralUnion(nonNull); ok {
		if hasDescription {
			flat["description"] = description
		}
		return flat
	}

	variants := make([]any, 0, len(nonNull))
	for _, v := range nonNull {
		variants = append(variants, v)
	}
	out[key] = variants
	return out
}

func isNullVariant(v map[string]any) bool {
	if t, ok := v["type"].(string); ok && t == "null" {
		return true
	}
	if enumV, ok := v["enum"].([]any); ok && len(enumV) == 1 && enumV[0] == nil {
		return true
	}
	return false
}

// flattenLiteralUnion recognizes a union where every variant is a single
// literal value ({type:T, enum:[v]}) sharing a common T, and rewrites it to
// {type:T, enum:[v1, v2, ...]}.
func flattenLiteralUnion(variants []map[string]any) (map[string]any, bool) {
	var commonType any
	values := make([]any, 0, len(variants))
	for _, v := range variants {
		t, hasType := v["type"]
		enumV, hasEnum := v["enum"].([]any)
		if !hasType || !hasEnum || len(enumV) != 1 {
			return nil, false
		}
		if commonType == nil {
			commonType = t
		} else if commonType != t {
			return nil, false
		}
		values = append(values, enumV[0])
	}
	if commonType == nil {
		return nil, false
	}
	return map[string]any{"type": commonType, "enum": values}, true
}

func cloneSchema(s map[string]any) map[string]any {
	out := make(map[string]any, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// topLevelShape enforces that tool parameters end up as
// {type:"object", properties, required?}, merging object-variant unions at
// the root per the "Top-level shape" rule.
func topLevelShape(node map[string]any) map[string]any {
	for _, key := range []string{"anyOf", "oneOf"} {
		if variants, ok := node[key].([]any); ok {
			if merged, ok := mergeObjectVariants(variants); ok {
				return merged
			}
		}
	}

	if t, _ := node["type"].(string); t == "object" {
		if _, ok := node["properties"]; !ok {
			node["properties"] = map[string]any{}
		}
		return node
	}

	// Degenerate input: wrap rather than error, per C1's "never errors"
	// contract.
	wrapped := map[string]any{"type": "object", "properties": map[string]any{}}
	if d, ok := node["description"]; ok {
		wrapped["description"] = d
	}
	return wrapped
}

func mergeObjectVariants(variants []any) (map[string]any, bool) {
	objectVariants := make([]map[string]any, 0, len(variants))
	for _, rv := range variants {
		vm, ok := rv.(map[string]any)
		if !ok {
			return nil, false
		}
		if t, _ := vm["type"].(string); t != "object" {
			return nil, false
		}
		objectVariants = append(objectVariants, vm)
	}
	if len(objectVariants) == 0 {
		return nil, false
	}

	mergedProps := map[string]any{}
	requiredCounts := map[string]int{}
	for _, v := range objectVariants {
		props, _ := v["properties"].(map[string]any)
		for name, ps := range props {
			if existing, ok := mergedProps[name]; ok {
				mergedProps[name] = mergeProperty(existing.(map[string]any), ps.(map[string]any))
			} else {
				mergedProps[name] = ps
			}
		}
		if req, ok := v["required"].([]any); ok {
			for _, r := range req {
				if name, ok := r.(string); ok {
					requiredCounts[name]++
				}
			}
		}
	}

	var required []any
	for name, count := range requiredCounts {
		if count == len(objectVariants) {
			required = append(required, name)
		}
	}

	out := map[string]any{"type": "object", "properties": mergedProps}
	if required != nil {
		out["required"] = required
	}
	return out, true
}

// mergeProperty reconciles the same property appearing in multiple object
// union variants: union enum values when both sides enumerate, otherwise
// keep the first variant's schema when types agree and fall back to it
// (rather than erroring) when they don't.
func mergeProperty(a, b map[string]any) map[string]any {
	aType, _ := a["type"]
	bType, _ := b["type"]
	if aType != bType {
		return a
	}
	out := cloneSchema(a)
	aEnum, aHas := a["enum"].([]any)
	bEnum, bHas := b["enum"].([]any)
	if aHas && bHas {
		seen := map[any]bool{}
		var merged []any
		for _, v := range append(append([]any{}, aEnum...), bEnum...) {
			if !seen[v] {
				seen[v] = true
				merged = append(merged, v)
			}
		}
		out["enum"] = merged
	}
	return out
}
