package layers

import (
	"strings"
	"unicode"

	"github.com/pmaojo/hexanorm/internal/hexanorm/domain"
)

const (
	anySegment   = "*"
	anySegments  = "**"
	archUnitGlob = ".."
)

// Pattern is a compiled package glob. It is anchored to the whole package path and matched
// segment by segment: "*" is exactly one segment, "**" is zero or more.
type Pattern struct {
	raw  string
	segs []string
}

// CompilePattern parses a glob such as "**.platform.**". The ArchUnit spelling "..platform.."
// is accepted as an alias.
func CompilePattern(raw string) (Pattern, error) {
	invalid := func(reason string) (Pattern, error) {
		return Pattern{}, &domain.ConfigurationError{Kind: domain.ConfigInvalidPattern, Subject: raw, Reason: reason}
	}

	s := strings.TrimSpace(raw)
	if s == "" {
		return invalid("empty pattern")
	}
	s = expandArchUnit(s)

	segs := strings.Split(s, ".")
	for _, seg := range segs {
		switch {
		case seg == "":
			return invalid("empty segment")
		case seg == anySegment || seg == anySegments:
		case strings.Contains(seg, "*"):
			return invalid("wildcards must span a whole segment")
		case !identifier(seg):
			return invalid("segment " + seg + " is not an identifier")
		}
	}
	return Pattern{raw: raw, segs: segs}, nil
}

func expandArchUnit(s string) string {
	if s == archUnitGlob {
		return anySegments
	}
	if strings.HasPrefix(s, archUnitGlob) {
		s = anySegments + "." + s[len(archUnitGlob):]
	}
	if strings.HasSuffix(s, archUnitGlob) {
		s = s[:len(s)-len(archUnitGlob)] + "." + anySegments
	}
	return strings.ReplaceAll(s, archUnitGlob, "."+anySegments+".")
}

func identifier(seg string) bool {
	for _, r := range seg {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '$' && r != '-' {
			return false
		}
	}
	return true
}

func (p Pattern) String() string { return p.raw }

// Match reports whether pkg, a dotted package path, is matched by the pattern. The default
// package is the empty path.
func (p Pattern) Match(pkg string) bool {
	var path []string
	if pkg != "" {
		path = strings.Split(pkg, ".")
	}
	return matchSegments(p.segs, path)
}

// matchSegments fills dp[i][j] = segs[i:] matches path[j:] from the back, which keeps runs of
// "**" linear instead of exponential.
func matchSegments(segs, path []string) bool {
	dp := make([][]bool, len(segs)+1)
	for i := range dp {
		dp[i] = make([]bool, len(path)+1)
	}
	dp[len(segs)][len(path)] = true

	for i := len(segs) - 1; i >= 0; i-- {
		for j := len(path); j >= 0; j-- {
			switch segs[i] {
			case anySegments:
				dp[i][j] = dp[i+1][j] || (j < len(path) && dp[i][j+1])
			case anySegment:
				dp[i][j] = j < len(path) && dp[i+1][j+1]
			default:
				dp[i][j] = j < len(path) && segs[i] == path[j] && dp[i+1][j+1]
			}
		}
	}
	return dp[0][0]
}
