package enums

import (
	"fmt"
	"slices"
	"strings"
)

// values is the closed set of members of one string enum.
type values[T ~string] []T

func (vs values[T]) has(v T) bool {
	return slices.Contains(vs, v)
}

// parse returns raw as T when it names a member. kind labels the error.
func (vs values[T]) parse(kind, raw string) (T, error) {
	if v := T(raw); vs.has(v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q (want one of %s)", kind, raw, strings.Join(vs.names(), ", "))
}

// names lists the members in declaration order.
func (vs values[T]) names() []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}
