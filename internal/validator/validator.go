// Package validator checks decoded tool arguments against the rules in their
// `schema` struct tags: required, pattern:<regexp> and enum:<a|b|c>.
package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
)

// fieldRules are the parsed rules for one struct field.
type fieldRules struct {
	index    int
	name     string
	required bool
	pattern  *regexp.Regexp
	enum     []string
}

// Validator checks parameter structs. Rules are parsed once per type.
type Validator struct {
	tagName string
	cache   sync.Map // reflect.Type -> []fieldRules
}

// New creates a new validator
func New() *Validator {
	return &Validator{tagName: "schema"}
}

// Validate returns the first rule violation in s, a struct or a pointer to
// one.
func (v *Validator) Validate(s interface{}) error {
	val := reflect.ValueOf(s)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return fmt.Errorf("expected struct, got nil pointer")
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return fmt.Errorf("expected struct, got %s", val.Kind())
	}

	rules, err := v.rulesFor(val.Type())
	if err != nil {
		return err
	}

	for _, r := range rules {
		if err := r.check(val.Field(r.index)); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) rulesFor(typ reflect.Type) ([]fieldRules, error) {
	if cached, ok := v.cache.Load(typ); ok {
		return cached.([]fieldRules), nil
	}

	var rules []fieldRules
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		jsonTag := sf.Tag.Get("json")
		tag := sf.Tag.Get(v.tagName)
		if !sf.IsExported() || jsonTag == "-" || tag == "" {
			continue
		}

		r := fieldRules{index: i, name: fieldName(sf, jsonTag)}
		for _, part := range strings.Split(tag, ",") {
			part = strings.TrimSpace(part)
			switch {
			case part == "required":
				r.required = true
			case strings.HasPrefix(part, "pattern:"):
				re, err := regexp.Compile(strings.TrimPrefix(part, "pattern:"))
				if err != nil {
					return nil, fmt.Errorf("invalid pattern for field '%s': %w", r.name, err)
				}
				r.pattern = re
			case strings.HasPrefix(part, "enum:"):
				r.enum = strings.Split(strings.TrimPrefix(part, "enum:"), "|")
			}
		}
		rules = append(rules, r)
	}

	v.cache.Store(typ, rules)
	return rules, nil
}

func (r fieldRules) check(value reflect.Value) error {
	if isEmpty(value) {
		if r.required {
			return fmt.Errorf("field '%s' is required", r.name)
		}
		return nil
	}

	if value.Kind() != reflect.String {
		return nil
	}
	s := value.String()

	if r.pattern != nil && !r.pattern.MatchString(s) {
		return fmt.Errorf("field '%s' does not match pattern: %s", r.name, r.pattern)
	}
	if len(r.enum) > 0 {
		for _, allowed := range r.enum {
			if s == allowed {
				return nil
			}
		}
		return fmt.Errorf("field '%s' must be one of: %s", r.name, strings.Join(r.enum, ", "))
	}
	return nil
}

// isEmpty treats blank strings as missing.
func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Array, reflect.Map, reflect.Slice:
		return v.Len() == 0
	case reflect.Interface, reflect.Ptr:
		return v.IsNil()
	}
	return v.IsZero()
}

func fieldName(sf reflect.StructField, jsonTag string) string {
	if name, _, _ := strings.Cut(jsonTag, ","); name != "" {
		return name
	}
	return sf.Name
}

var defaultValidator = New()

// Validate validates s with a shared validator.
func Validate(s interface{}) error {
	return defaultValidator.Validate(s)
}
