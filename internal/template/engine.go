// Package template implements the $-style substitution applied to action
// steps, call parameters, and file bodies.
package template

import (
	"regexp"
	"strings"
)

// reference matches $$, $name, and ${name}. Names start with a letter or
// underscore and continue with letters, digits, or underscores.
var reference = regexp.MustCompile(`\$(?:\$|[_a-zA-Z][_a-zA-Z0-9]*|\{[_a-zA-Z][_a-zA-Z0-9]*\})`)

// Engine substitutes variable references into templated strings. The
// engine's own variables form the outermost scope; Apply layers narrower
// scopes on top of it per call.
type Engine struct {
	global map[string]string
}

// New returns an Engine with the given global scope. A nil map is a valid
// empty scope.
func New(global map[string]string) *Engine {
	return &Engine{global: global}
}

// Apply resolves $name and ${name} references in s. Layers are consulted
// from last to first, then the global scope, so later layers shadow earlier
// ones. Unresolved references stay verbatim; $$ always renders a literal
// dollar sign.
func (e *Engine) Apply(s string, layers ...map[string]string) string {
	if !strings.ContainsRune(s, '$') {
		return s
	}
	return reference.ReplaceAllStringFunc(s, func(ref string) string {
		if ref == "$$" {
			return "$"
		}
		name := strings.TrimPrefix(ref, "$")
		if strings.HasPrefix(name, "{") {
			name = strings.TrimSuffix(strings.TrimPrefix(name, "{"), "}")
		}
		for i := len(layers) - 1; i >= 0; i-- {
			if v, ok := layers[i][name]; ok {
				return v
			}
		}
		if v, ok := e.global[name]; ok {
			return v
		}
		return ref
	})
}
