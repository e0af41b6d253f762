package strand

import (
	"maps"
	"net/url"
	"regexp"
	"strings"

	"github.com/dormoron/strand/internal/errs"
)

// PathBinding is the result of binding a path pattern against the part
// of the request path left over by enclosing bindings.
type PathBinding struct {
	boundTo     string
	pastBinding string
	description string
	tokens      map[string]string
}

func rootBinding(u *url.URL) *PathBinding {
	p := strings.TrimPrefix(u.EscapedPath(), "/")
	p = strings.TrimSuffix(p, "/")
	return &PathBinding{pastBinding: p, tokens: map[string]string{}}
}

// BoundTo is the escaped request path consumed so far, without leading
// slash.
func (b *PathBinding) BoundTo() string { return b.boundTo }

// PastBinding is the escaped remainder that nested bindings bind against.
func (b *PathBinding) PastBinding() string { return b.pastBinding }

// Description joins the patterns that produced this binding.
func (b *PathBinding) Description() string { return b.description }

// Tokens returns a copy of the bound tokens, inherited ones included.
func (b *PathBinding) Tokens() map[string]string { return maps.Clone(b.tokens) }

type segmentKind int

const (
	segmentLiteral segmentKind = iota
	segmentToken
	segmentRegex
)

type segment struct {
	kind     segmentKind
	value    string
	re       *regexp.Regexp
	optional bool
}

// PathBinder binds a pattern such as "users/:id:\d+/:tab?" against a
// parent binding.
//
// Segments are separated by "/":
//
//	literal      must equal the segment
//	:name        binds the segment to token name
//	:name?       optional token; only optional tokens may follow
//	:name:regex  binds a segment that fully matches regex
//	::regex      matches a segment by regex without binding it
//
// An exact binder only binds when nothing of the path is left over.
type PathBinder struct {
	pattern  string
	exact    bool
	segments []segment
}

// NewPathBinder compiles pattern. It panics on an invalid pattern, the
// same way route registration does.
func NewPathBinder(pattern string, exact bool) *PathBinder {
	b, err := compilePathBinder(pattern, exact)
	if err != nil {
		panic(err)
	}
	return b
}

func compilePathBinder(pattern string, exact bool) (*PathBinder, error) {
	trimmed := strings.Trim(pattern, "/")
	b := &PathBinder{pattern: trimmed, exact: exact}
	if trimmed == "" {
		return b, nil
	}

	seen := make(map[string]struct{})
	optionalSeen := false
	for _, part := range strings.Split(trimmed, "/") {
		seg, err := parseSegment(part, pattern)
		if err != nil {
			return nil, err
		}
		if seg.kind == segmentToken {
			if _, dup := seen[seg.value]; dup {
				return nil, errs.ErrTokenDuplicate(seg.value, pattern)
			}
			seen[seg.value] = struct{}{}
		}
		if optionalSeen && !seg.optional {
			return nil, errs.ErrOptionalNotLast(pattern)
		}
		optionalSeen = optionalSeen || seg.optional
		b.segments = append(b.segments, seg)
	}
	return b, nil
}

func parseSegment(part, pattern string) (segment, error) {
	switch {
	case strings.HasPrefix(part, "::"):
		re, err := regexp.Compile("^(?:" + part[2:] + ")$")
		if err != nil {
			return segment{}, errs.ErrRegularExpression(err)
		}
		return segment{kind: segmentRegex, re: re}, nil
	case strings.HasPrefix(part, ":"):
		name, expr, hasExpr := strings.Cut(part[1:], ":")
		seg := segment{kind: segmentToken}
		if strings.HasSuffix(name, "?") {
			seg.optional = true
			name = strings.TrimSuffix(name, "?")
		}
		if name == "" {
			return segment{}, errs.ErrTokenNameEmpty(pattern)
		}
		seg.value = name
		if hasExpr {
			re, err := regexp.Compile("^(?:" + expr + ")$")
			if err != nil {
				return segment{}, errs.ErrRegularExpression(err)
			}
			seg.re = re
		}
		return seg, nil
	default:
		return segment{kind: segmentLiteral, value: part}, nil
	}
}

// Bind binds the pattern against parent's past binding.
func (b *PathBinder) Bind(parent *PathBinding) (*PathBinding, bool) {
	var parts []string
	if parent.pastBinding != "" {
		parts = strings.Split(parent.pastBinding, "/")
	}

	tokens := maps.Clone(parent.tokens)
	if tokens == nil {
		tokens = make(map[string]string)
	}
	i := 0
	for _, seg := range b.segments {
		if i >= len(parts) {
			if seg.optional {
				continue
			}
			return nil, false
		}
		val, err := url.PathUnescape(parts[i])
		if err != nil {
			return nil, false
		}
		switch seg.kind {
		case segmentLiteral:
			if val != seg.value {
				return nil, false
			}
		case segmentRegex:
			if !seg.re.MatchString(val) {
				return nil, false
			}
		case segmentToken:
			if seg.re != nil && !seg.re.MatchString(val) {
				if seg.optional {
					continue
				}
				return nil, false
			}
			tokens[seg.value] = val
		}
		i++
	}

	if b.exact && i < len(parts) {
		return nil, false
	}
	return &PathBinding{
		boundTo:     joinPath(parent.boundTo, strings.Join(parts[:i], "/")),
		pastBinding: strings.Join(parts[i:], "/"),
		description: joinPath(parent.description, b.pattern),
		tokens:      tokens,
	}, true
}

func joinPath(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "/" + b
	}
}
