package contract

import (
	"regexp"
	"strings"
)

// Structural normalization and field extraction for contract definitions.
//
// Definitions are opaque structured-type text. Comparison and field lookup
// are pattern-based best-effort scans, not parses: whitespace, comments and
// trailing separators are irrelevant to identity, an actual field or type
// change is not.

var (
	lineCommentRe  = regexp.MustCompile(`(?m)//.*$`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)

	// fieldRe matches "name: type" field declarations.
	fieldRe = regexp.MustCompile(`(\w+):\s*\w+`)

	// paramRe matches "name:" and "name?:" parameter declarations.
	paramRe = regexp.MustCompile(`(\w+)\s*[?:]`)

	// punctSpaceRe strips spaces adjacent to structural punctuation so that
	// "{ value : number }" and "{value:number}" normalize identically.
	punctSpaceRe = regexp.MustCompile(`\s*([{}:;,()<>])\s*`)
)

// NormalizeDefinition reduces a definition to its structural form: comments
// stripped, whitespace collapsed and removed around punctuation, trailing
// separators dropped. Two definitions that differ only in formatting
// normalize to the same string; a field or type difference survives
// normalization.
func NormalizeDefinition(definition string) string {
	s := lineCommentRe.ReplaceAllString(definition, "")
	s = blockCommentRe.ReplaceAllString(s, "")

	s = strings.ReplaceAll(s, ";", " ")
	s = strings.Join(strings.Fields(s), " ")
	s = punctSpaceRe.ReplaceAllString(s, "$1")
	s = strings.ReplaceAll(s, ",}", "}")

	return strings.TrimSpace(s)
}

// StructurallyEqual reports whether two definitions normalize to the same form.
func StructurallyEqual(a, b string) bool {
	return NormalizeDefinition(a) == NormalizeDefinition(b)
}

// FieldNames extracts the declared field names from a definition using the
// "name: type" pattern. Returns a set for membership checks.
func FieldNames(definition string) map[string]bool {
	fields := make(map[string]bool)
	for _, m := range fieldRe.FindAllStringSubmatch(definition, -1) {
		fields[m[1]] = true
	}
	return fields
}

// ParamNames extracts declared parameter names from a component contract,
// accepting both required ("name:") and optional ("name?:") markers.
func ParamNames(definition string) map[string]bool {
	params := make(map[string]bool)
	for _, m := range paramRe.FindAllStringSubmatch(definition, -1) {
		params[m[1]] = true
	}
	return params
}

// CompressDefinition squeezes a definition for transmission: comments
// removed, whitespace collapsed, spaces dropped around punctuation. Used when
// building handoff payloads so contract text stays inside token ceilings.
func CompressDefinition(definition string) string {
	s := lineCommentRe.ReplaceAllString(definition, "")
	s = blockCommentRe.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")

	replacer := strings.NewReplacer(
		" : ", ":",
		" ; ", ";",
		" { ", "{",
		" } ", "}",
		" , ", ",",
		"( ", "(",
		" )", ")",
	)
	return strings.TrimSpace(replacer.Replace(s))
}
