// Package validation evaluates declarative, ordered field rules for the
// site's contact forms. Failures are data, never errors.
package validation

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"
)

type Kind string

const (
	KindRequired  Kind = "required"
	KindPattern   Kind = "pattern"
	KindMinLength Kind = "minLength"
	KindMaxLength Kind = "maxLength"
	KindCustom    Kind = "custom"
)

// Rule is one check. Only the fields relevant to Kind are read.
type Rule struct {
	Kind    Kind
	Message string
	Pattern *regexp.Regexp
	Length  int
	Custom  func(value string) bool
}

func Required(message string) Rule {
	return Rule{Kind: KindRequired, Message: message}
}

func Pattern(re *regexp.Regexp, message string) Rule {
	return Rule{Kind: KindPattern, Message: message, Pattern: re}
}

func MinLength(n int, message string) Rule {
	return Rule{Kind: KindMinLength, Message: message, Length: n}
}

func MaxLength(n int, message string) Rule {
	return Rule{Kind: KindMaxLength, Message: message, Length: n}
}

func Custom(fn func(string) bool, message string) Rule {
	return Rule{Kind: KindCustom, Message: message, Custom: fn}
}

// fails reports whether value violates the rule. Pattern and minLength skip
// empty input; required-ness is its own rule.
func (r Rule) fails(value string) bool {
	switch r.Kind {
	case KindRequired:
		return strings.TrimSpace(value) == ""
	case KindPattern:
		return value != "" && r.Pattern != nil && !r.Pattern.MatchString(value)
	case KindMinLength:
		return value != "" && utf8.RuneCountInString(value) < r.Length
	case KindMaxLength:
		return utf8.RuneCountInString(value) > r.Length
	case KindCustom:
		return r.Custom != nil && !r.Custom(value)
	}
	return false
}

// MarshalJSON exposes the rule to clients that render hints before submit.
// Custom predicates cannot be serialized, so only their kind and message go out.
func (r Rule) MarshalJSON() ([]byte, error) {
	out := struct {
		Kind    Kind   `json:"kind"`
		Message string `json:"message"`
		Pattern string `json:"pattern,omitempty"`
		Length  int    `json:"length,omitempty"`
	}{Kind: r.Kind, Message: r.Message, Length: r.Length}
	if r.Pattern != nil {
		out.Pattern = r.Pattern.String()
	}
	return json.Marshal(out)
}

// ValidateField returns the message of the first failing rule, or "" and
// false when every rule passes.
func ValidateField(value string, rules []Rule) (string, bool) {
	for _, rule := range rules {
		if rule.fails(value) {
			return rule.Message, true
		}
	}
	return "", false
}

// ValidateFieldPtr treats a nil value as the empty string.
func ValidateFieldPtr(value *string, rules []Rule) (string, bool) {
	if value == nil {
		return ValidateField("", rules)
	}
	return ValidateField(*value, rules)
}

// Schema maps a field name to its ordered rules.
type Schema map[string][]Rule

// FormData is satisfied by url.Values and anything else that yields a single
// value per field, "" when absent.
type FormData interface {
	Get(key string) string
}

// Values adapts a plain map to FormData.
type Values map[string]string

func (v Values) Get(key string) string { return v[key] }

// ValidateForm returns the failing fields only. Fields outside the schema
// are ignored.
func ValidateForm(data FormData, schema Schema) map[string]string {
	errs := map[string]string{}
	for field, rules := range schema {
		value := ""
		if data != nil {
			value = data.Get(field)
		}
		if msg, failed := ValidateField(value, rules); failed {
			errs[field] = msg
		}
	}
	return errs
}
