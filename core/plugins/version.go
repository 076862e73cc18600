package plugins

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/FocuswithJustin/strutils/core/errors"
)

// Version is a MAJOR.MINOR.PATCH version. Missing parts parse as zero.
type Version struct {
	Major int
	Minor int
	Patch int
}

// ParseVersion parses "1", "1.2" or "1.2.3", with an optional "v" prefix.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	if s == "" {
		return Version{}, apperrors.NewValidation("version", "is empty")
	}

	parts := strings.Split(s, ".")
	if len(parts) > 3 {
		return Version{}, apperrors.NewValidation("version", fmt.Sprintf("%q has more than three parts", s))
	}

	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, apperrors.NewValidation("version", fmt.Sprintf("%q: bad component %q", s, p))
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// MustParseVersion is like ParseVersion but panics on error.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or +1 as v sorts before, equal to or after o.
func (v Version) Compare(o Version) int {
	if c := cmp.Compare(v.Major, o.Major); c != 0 {
		return c
	}
	if c := cmp.Compare(v.Minor, o.Minor); c != 0 {
		return c
	}
	return cmp.Compare(v.Patch, o.Patch)
}

// Satisfies reports whether a host at version v can run a plugin that
// needs at least version need: same major, minor not older. Patch is ignored.
func (v Version) Satisfies(need Version) bool {
	return v.Major == need.Major && v.Minor >= need.Minor
}

// Constraint is a single comparison such as ">=1.2".
type Constraint struct {
	Op      string
	Version Version
}

// constraintOps is ordered so two-character operators match first.
var constraintOps = []string{">=", "<=", "!=", ">", "<", "="}

// ParseConstraint parses one constraint. A bare version means "=".
func ParseConstraint(s string) (Constraint, error) {
	s = strings.TrimSpace(s)
	op := "="
	for _, candidate := range constraintOps {
		if strings.HasPrefix(s, candidate) {
			op = candidate
			s = s[len(candidate):]
			break
		}
	}
	v, err := ParseVersion(s)
	if err != nil {
		return Constraint{}, apperrors.Wrapf(err, "constraint %q", op+s)
	}
	return Constraint{Op: op, Version: v}, nil
}

// Allows reports whether v satisfies c.
func (c Constraint) Allows(v Version) bool {
	n := v.Compare(c.Version)
	switch c.Op {
	case ">=":
		return n >= 0
	case "<=":
		return n <= 0
	case ">":
		return n > 0
	case "<":
		return n < 0
	case "!=":
		return n != 0
	default:
		return n == 0
	}
}

func (c Constraint) String() string {
	return c.Op + c.Version.String()
}

// Constraints is a conjunction, written comma separated: ">=1.0,<2".
type Constraints []Constraint

// ParseConstraints parses a comma separated list. An empty string allows
// every version.
func ParseConstraints(s string) (Constraints, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var cs Constraints
	for part := range strings.SplitSeq(s, ",") {
		c, err := ParseConstraint(part)
		if err != nil {
			return nil, err
		}
		cs = append(cs, c)
	}
	return cs, nil
}

// Allows reports whether v satisfies every constraint.
func (cs Constraints) Allows(v Version) bool {
	for _, c := range cs {
		if !c.Allows(v) {
			return false
		}
	}
	return true
}

func (cs Constraints) String() string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}
