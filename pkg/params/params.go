// Package params provides build-parameter substitution for configuration
// strings such as branch names.
package params

import "os"

// Substituter expands build-parameter placeholders in a template string.
// Implementations must return the input unchanged when no parameters apply.
type Substituter interface {
	Substitute(template string) string
}

// Map substitutes ${name} and $name placeholders from a parameter map.
// A nil or empty map leaves every template unchanged; placeholders without
// a matching parameter are preserved in ${name} form.
type Map map[string]string

// Expand applies sub to template, tolerating a nil substituter.
func Expand(sub Substituter, template string) string {
	if sub == nil {
		return template
	}

	return sub.Substitute(template)
}

// Substitute expands placeholders in template.
func (m Map) Substitute(template string) string {
	if len(m) == 0 {
		return template
	}

	return os.Expand(template, func(name string) string {
		value, ok := m[name]
		if !ok {
			return "${" + name + "}"
		}

		return value
	})
}
