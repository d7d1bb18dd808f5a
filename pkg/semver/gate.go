// Package semver gates incoming events on their message version.
package semver

import (
	"fmt"
	"strings"

	masterminds "github.com/Masterminds/semver/v3"
)

const logPrefix = "semver:gate"

// Gate accepts message versions that satisfy a constraint such as "^1.0".
type Gate struct {
	expr       string
	constraint *masterminds.Constraints
}

// NewGate parses a constraint expression. An empty expression accepts every version.
func NewGate(expr string) (*Gate, error) {
	expr = strings.TrimSpace(expr)
	g := &Gate{expr: expr}
	if expr == "" {
		return g, nil
	}
	c, err := masterminds.NewConstraint(expr)
	if err != nil {
		return nil, fmt.Errorf("%s - invalid version constraint %q: %w", logPrefix, expr, err)
	}
	g.constraint = c
	return g, nil
}

// Accepts reports whether version satisfies the gate. An empty version is accepted;
// an unparsable one is not. Short forms such as "1.0" are read as "1.0.0".
func (g *Gate) Accepts(version string) bool {
	version = strings.TrimSpace(version)
	if version == "" || g.constraint == nil {
		return true
	}
	v, err := masterminds.NewVersion(version)
	if err != nil {
		return false
	}
	return g.constraint.Check(v)
}

// String returns the constraint expression.
func (g *Gate) String() string {
	return g.expr
}
