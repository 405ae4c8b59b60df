package snapshot

import (
	"regexp"
	"strings"
)

// Precompiled regular expressions used in ignore-pattern parsing.
var (
	doubleStarMiddlePattern      = regexp.MustCompile(`/\*\*/`)
	doubleStarTrailingPattern    = regexp.MustCompile(`/\*\*$`)
	doubleStarLeadingPattern     = regexp.MustCompile(`^\*\*/`)
	singleStarReplacementPattern = regexp.MustCompile(`\*`)
	directoryEndPattern          = regexp.MustCompile(`/$`)
	rootRelativePattern          = regexp.MustCompile(`^/`)
)

// escapeSpecialChars escapes regex special characters except for '*', '?', and '/'.
func escapeSpecialChars(pattern string) string {
	const specialChars = `.+()|^$[]{}`
	for _, char := range specialChars {
		pattern = strings.ReplaceAll(pattern, string(char), `\`+string(char))
	}
	return pattern
}

// handleDoubleStarPatterns replaces '**' patterns with appropriate regex.
func handleDoubleStarPatterns(pattern string) string {
	pattern = doubleStarMiddlePattern.ReplaceAllString(pattern, `(/|/.+/)`)
	pattern = doubleStarTrailingPattern.ReplaceAllString(pattern, `(/.*)?`)
	pattern = doubleStarLeadingPattern.ReplaceAllString(pattern, `(.*/)?`)
	return pattern
}

// wildcardToRegex converts wildcard patterns '*' and '?' to regex equivalents.
func wildcardToRegex(pattern string) string {
	pattern = singleStarReplacementPattern.ReplaceAllString(pattern, `[^/]*`)
	pattern = strings.ReplaceAll(pattern, "?", ".")
	return pattern
}

// anchorPattern anchors the regex pattern to match the entire path.
func anchorPattern(pattern string, originalPattern string) string {
	if directoryEndPattern.MatchString(originalPattern) {
		pattern += "(/.*)?$"
	} else {
		pattern += "(|/.*)?$"
	}

	if rootRelativePattern.MatchString(originalPattern) {
		return "^" + strings.TrimPrefix(pattern, "/")
	}
	return "^(|.*/)" + pattern
}

// compilePatternLine turns one ignore-file line into a compiled expression
// and a negation flag. Empty lines and comments yield a nil expression.
func compilePatternLine(line string) (*regexp.Regexp, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil, false
	}

	negate := false
	if strings.HasPrefix(trimmed, "!") {
		negate = true
		trimmed = strings.TrimPrefix(trimmed, "!")
	}

	pattern := escapeSpecialChars(trimmed)
	pattern = handleDoubleStarPatterns(pattern)
	pattern = wildcardToRegex(pattern)
	pattern = anchorPattern(pattern, trimmed)

	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return nil, false
	}
	return compiled, negate
}
