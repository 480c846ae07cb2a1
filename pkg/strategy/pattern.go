package strategy

import (
	"errors"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// Pattern matches cache keys. *regexp.Regexp satisfies it.
type Pattern interface {
	MatchString(s string) bool
	String() string
}

// ParsePattern compiles a key pattern.
//
//   - "glob:user:*" is a glob; ':' separates segments, so "*" stays within one
//     segment and "**" spans several
//   - "re:^user:\d+$" and any string without a prefix are regular expressions
func ParsePattern(s string) (Pattern, error) {
	if src, ok := strings.CutPrefix(s, "glob:"); ok {
		g, err := glob.Compile(src, ':')
		if err != nil {
			return nil, errors.Join(ErrInvalidRule, err)
		}
		return globPattern{glob: g, src: s}, nil
	}

	re, err := regexp.Compile(strings.TrimPrefix(s, "re:"))
	if err != nil {
		return nil, errors.Join(ErrInvalidRule, err)
	}
	return re, nil
}

// MustPattern is like ParsePattern but panics on error. Intended for
// package-level rule definitions.
func MustPattern(s string) Pattern {
	p, err := ParsePattern(s)
	if err != nil {
		panic(err)
	}
	return p
}

// validPattern reports whether p can be matched against. A nil
// *regexp.Regexp wrapped in the interface cannot.
func validPattern(p Pattern) bool {
	switch p := p.(type) {
	case nil:
		return false
	case *regexp.Regexp:
		return p != nil
	}
	return true
}

type globPattern struct {
	glob glob.Glob
	src  string
}

func (p globPattern) MatchString(s string) bool { return p.glob.Match(s) }
func (p globPattern) String() string            { return p.src }
