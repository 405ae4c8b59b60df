package snapshot

import (
	"regexp"
	"strings"
	"sync"
)

// commentStyle selects which comment grammar applies to a file, derived
// purely from its extension.
type commentStyle int

const (
	styleNone commentStyle = iota
	styleC
	styleHash
	styleDash
	styleXML
)

// styleForExtension maps a file extension (without dot, any case) to its
// comment style. Unknown extensions map to styleNone and pass through
// unchanged. Note that Rust sources live under styleC, which keeps
// #[attribute] lines safe from the hash grammar.
func styleForExtension(ext string) commentStyle {
	switch strings.ToLower(ext) {
	case "rs", "c", "cpp", "h", "hpp", "js", "ts", "java", "go", "kt", "swift", "css", "cs", "php":
		return styleC
	case "py", "sh", "rb", "yaml", "yml", "toml", "dockerfile", "pl", "ps1":
		return styleHash
	case "sql", "lua", "hs":
		return styleDash
	case "html", "xml", "vue", "svelte":
		return styleXML
	default:
		return styleNone
	}
}

// Each style is one combined expression matching either a quoted string
// literal or a comment. String alternatives come first, so comment-like
// sequences inside literals are matched as strings and preserved; only
// genuine comment matches are replaced with nothing. Compiled lazily once
// and shared read-only afterwards.
var (
	cCommentRegex = sync.OnceValue(func() *regexp.Regexp {
		return regexp.MustCompile(`(?m)"(\\.|[^"\\])*"|'(\\.|[^'\\])*'|/\*[\s\S]*?\*/|//.*$`)
	})
	hashCommentRegex = sync.OnceValue(func() *regexp.Regexp {
		return regexp.MustCompile(`(?m)"(\\.|[^"\\])*"|'(\\.|[^'\\])*'|#.*$`)
	})
	dashCommentRegex = sync.OnceValue(func() *regexp.Regexp {
		return regexp.MustCompile(`(?m)"(\\.|[^"\\])*"|'(\\.|[^'\\])*'|--.*$`)
	})
	xmlCommentRegex = sync.OnceValue(func() *regexp.Regexp {
		return regexp.MustCompile(`(?s)<!--.*?-->`)
	})
)

// stripComments removes comments from content according to the style of the
// given extension. Content with an unmapped extension is returned unchanged.
func stripComments(content, ext string) string {
	switch styleForExtension(ext) {
	case styleC:
		return stripPreservingStrings(cCommentRegex(), content)
	case styleHash:
		return stripPreservingStrings(hashCommentRegex(), content)
	case styleDash:
		return stripPreservingStrings(dashCommentRegex(), content)
	case styleXML:
		return xmlCommentRegex().ReplaceAllString(content, "")
	default:
		return content
	}
}

// stripPreservingStrings drops comment matches and keeps string-literal
// matches. A match starting with a quote can only be the string alternative
// of the combined expression.
func stripPreservingStrings(re *regexp.Regexp, content string) string {
	return re.ReplaceAllStringFunc(content, func(m string) string {
		if m[0] == '"' || m[0] == '\'' {
			return m
		}
		return ""
	})
}
