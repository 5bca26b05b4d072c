package diff

import "strings"

// languageKeywords covers the reserved words of the target languages
// (TS/JS, Python, Go, Rust, Java, Kotlin, C#). A token matching any entry
// is never used as a search query.
var languageKeywords = buildSet(
	// shared / C-family
	"if", "else", "for", "while", "do", "switch", "case", "default",
	"break", "continue", "return", "throw", "try", "catch", "finally",
	"new", "delete", "this", "super", "null", "true", "false", "void",
	"class", "interface", "enum", "extends", "implements", "import",
	"export", "package", "public", "private", "protected", "static",
	"final", "abstract", "const", "let", "var", "function", "typeof",
	"instanceof", "in", "of", "yield", "async", "await", "get", "set",
	// TypeScript
	"type", "namespace", "declare", "readonly", "keyof", "infer",
	"satisfies", "unknown", "any", "never", "string", "number", "boolean",
	"object", "symbol", "bigint", "undefined",
	// Python
	"def", "elif", "except", "raise", "pass", "lambda", "global",
	"nonlocal", "assert", "with", "as", "from", "is", "not", "and", "or",
	"none", "self", "print", "del",
	// Go
	"func", "go", "chan", "defer", "select", "fallthrough", "range",
	"map", "struct", "nil", "iota", "make", "append", "len", "cap",
	"copy", "byte", "rune", "int", "uint", "float64", "float32", "error",
	// Rust
	"fn", "mut", "impl", "trait", "crate", "mod", "use", "pub", "match",
	"loop", "ref", "move", "dyn", "box", "vec", "some",
	// Java / Kotlin / C#
	"synchronized", "volatile", "transient", "throws", "extends",
	"instanceof", "native", "strictfp", "fun", "val", "when", "object",
	"companion", "internal", "override", "open", "sealed", "data",
	"suspend", "using", "virtual", "partial", "out", "params", "base",
	"string", "decimal", "checked", "unchecked", "lock",
)

// stopwords is a compact English stopword list applied to PR-description
// key-term extraction.
var stopwords = buildSet(
	"a", "about", "above", "after", "again", "against", "all", "also",
	"am", "an", "and", "any", "are", "aren't", "as", "at", "be",
	"because", "been", "before", "being", "below", "between", "both",
	"but", "by", "can", "cannot", "could", "couldn't", "did", "didn't",
	"do", "does", "doesn't", "doing", "don't", "down", "during", "each",
	"few", "fix", "fixed", "fixes", "for", "from", "further", "had",
	"hadn't", "has", "hasn't", "have", "haven't", "having", "he", "her",
	"here", "hers", "herself", "him", "himself", "his", "how", "i",
	"if", "in", "into", "is", "isn't", "it", "its", "itself", "just",
	"let's", "me", "more", "most", "mustn't", "my", "myself", "no",
	"nor", "not", "now", "of", "off", "on", "once", "only", "or",
	"other", "ought", "our", "ours", "ourselves", "out", "over", "own",
	"same", "shan't", "she", "should", "shouldn't", "so", "some", "such",
	"than", "that", "that's", "the", "their", "theirs", "them",
	"themselves", "then", "there", "these", "they", "they're", "this",
	"those", "through", "to", "too", "under", "until", "up", "upon",
	"very", "was", "wasn't", "we", "were", "weren't", "what", "when",
	"where", "which", "while", "who", "whom", "why", "will", "with",
	"won't", "would", "wouldn't", "you", "your", "yours", "yourself",
	"yourselves", "add", "added", "adds", "adding", "update", "updated",
	"updates", "updating", "change", "changed", "changes", "changing",
	"remove", "removed", "removes", "removing", "make", "makes", "made",
	"making", "use", "used", "uses", "using", "new", "old", "code",
	"file", "files", "line", "lines", "function", "method", "support",
	"improve", "improved", "improves", "refactor", "refactored", "issue",
	"issues", "bug", "bugs", "pr", "mr", "branch", "merge", "commit",
	"test", "tests", "testing", "ensure", "ensures", "allow", "allows",
	"should", "implement", "implemented", "implements", "implementing",
	"need", "needs", "needed", "instead", "via", "still", "now", "also",
	"like", "small", "minor", "major", "various",
)

func buildSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}

func isLanguageKeyword(token string) bool {
	_, ok := languageKeywords[strings.ToLower(token)]
	return ok
}

func isStopword(token string) bool {
	_, ok := stopwords[strings.ToLower(token)]
	return ok
}
