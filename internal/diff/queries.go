package diff

import (
	"path"
	"regexp"
	"sort"
	"strings"
)

const (
	maxQueries        = 15
	maxRawQueryChars  = 500
	minRawQueryChars  = 50
	maxHunkIdentifiers = 5
)

// Declaration-name patterns across the target languages. Compiled once and
// shared; every pattern captures the declared identifier in group 1.
var declarationPatterns = []*regexp.Regexp{
	// TS/JS
	regexp.MustCompile(`\bfunction\s+(\w+)`),
	regexp.MustCompile(`\b(\w+)\s*[:=]\s*(?:async\s+)?function\b`),
	regexp.MustCompile(`\b(?:const|let|var)\s+(\w+)\s*=\s*(?:async\s*)?\(`),
	regexp.MustCompile(`\bclass\s+(\w+)`),
	regexp.MustCompile(`\binterface\s+(\w+)`),
	regexp.MustCompile(`\btype\s+(\w+)\s*=`),
	regexp.MustCompile(`\benum\s+(\w+)`),
	// Python
	regexp.MustCompile(`\bdef\s+(\w+)`),
	// Go
	regexp.MustCompile(`\bfunc\s+(?:\([^)]*\)\s+)?(\w+)\s*\(`),
	regexp.MustCompile(`\btype\s+(\w+)\s+(?:struct|interface)\b`),
	// Rust
	regexp.MustCompile(`\bfn\s+(\w+)`),
	regexp.MustCompile(`\bstruct\s+(\w+)`),
	regexp.MustCompile(`\btrait\s+(\w+)`),
	regexp.MustCompile(`\bimpl(?:\s*<[^>]*>)?\s+(\w+)`),
	// Java / Kotlin / C#
	regexp.MustCompile(`\b(?:public|private|protected|internal)\s+(?:static\s+)?(?:final\s+)?\w+(?:<[^>]*>)?\s+(\w+)\s*\(`),
	regexp.MustCompile(`\bfun\s+(\w+)`),
	regexp.MustCompile(`\b(?:abstract\s+)?record\s+(\w+)`),
}

// Import-statement patterns. Name groups capture imported identifiers,
// module groups capture the module path to be cleaned.
var importPatterns = []struct {
	re          *regexp.Regexp
	nameGroup   int
	moduleGroup int
	splitNames  bool
}{
	// import { a, b } from 'mod'
	{regexp.MustCompile(`\bimport\s*\{([^}]+)\}\s*from\s*['"]([^'"]+)['"]`), 1, 2, true},
	// import Default from 'mod'
	{regexp.MustCompile(`\bimport\s+(\w+)\s+from\s*['"]([^'"]+)['"]`), 1, 2, false},
	// const { a, b } = require('mod')
	{regexp.MustCompile(`\b(?:const|let|var)\s*\{([^}]+)\}\s*=\s*require\(['"]([^'"]+)['"]\)`), 1, 2, true},
	// const x = require('mod')
	{regexp.MustCompile(`\b(?:const|let|var)\s+(\w+)\s*=\s*require\(['"]([^'"]+)['"]\)`), 1, 2, false},
	// Python: from pkg import a, b
	{regexp.MustCompile(`\bfrom\s+([\w.]+)\s+import\s+([\w,\s]+)`), 2, 1, true},
	// Go: import "path/pkg" (single-line form)
	{regexp.MustCompile(`\bimport\s+(?:\w+\s+)?"([^"]+)"`), 0, 1, false},
	// Rust: use a::b::c
	{regexp.MustCompile(`\buse\s+([\w:]+)`), 0, 1, false},
	// Java: import a.b.C;
	{regexp.MustCompile(`\bimport\s+(?:static\s+)?([\w.]+)\s*;`), 0, 1, false},
}

// Type-annotation patterns; each captures a type name.
var typeAnnotationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`:\s*([A-Z]\w+)(?:<|\b)`),      // x: Name, x: Name<...>
	regexp.MustCompile(`\bPromise<(\w+)`),             // Promise<X>
	regexp.MustCompile(`\bArray<(\w+)`),               // Array<X>
	regexp.MustCompile(`\bMap<\s*\w+\s*,\s*(\w+)`),    // Map<K,V> -> V
	regexp.MustCompile(`\bas\s+([A-Z]\w+)`),           // cast
	regexp.MustCompile(`\bimplements\s+([\w,\s]+)`),   // implements A, B
	regexp.MustCompile(`\bextends\s+([A-Z]\w+)`),      // extends B
	regexp.MustCompile(`->\s*([A-Z]\w+)`),             // Python return annotation
	regexp.MustCompile(`\.\(\*?(\w+)\)`),              // Go type assertion
}

// String-literal identifier patterns: event names, action types, route
// paths, GraphQL operations.
var stringLiteralPatterns = []*regexp.Regexp{
	regexp.MustCompile(`['"]([a-zA-Z]+(?:[:./_-][a-zA-Z0-9]+)+)['"]`),
	regexp.MustCompile(`\b(?:query|mutation|subscription)\s+(\w+)`),
}

var (
	identifierOnlyRegex = regexp.MustCompile(`^\w+$`)
	wordRegex           = regexp.MustCompile(`[A-Za-z_]\w*`)
	singleUpperRegex    = regexp.MustCompile(`^[A-Z]$`)
	numericRegex        = regexp.MustCompile(`^\d+$`)
)

// moduleExtensions are stripped from imported module paths before they
// become query terms.
var moduleExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".py", ".go", ".rs", ".java", ".json"}

// hunk is one @@-delimited block with its changed content, used for
// per-hunk semantic phrase construction.
type hunk struct {
	filename string
	changed  []string // content of +/- lines, prefix stripped
	added    []string // content of + lines only
}

// ExtractQueries mines a unified diff for search queries: declaration
// names, imports, type annotations, string-literal identifiers, per-hunk
// semantic phrases, and a raw added-code query. Output passes the noise
// filter, is deduplicated case-insensitively, ordered identifier-first and
// shortest-first, and capped at 15 entries.
func ExtractQueries(diffContent string) []string {
	hunks := scanHunks(diffContent)

	seen := make(map[string]struct{})
	var identifiers, phrases []string

	addIdentifier := func(token string) {
		token = strings.TrimSpace(token)
		if !passesNoiseFilter(token) {
			return
		}
		key := strings.ToLower(token)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		identifiers = append(identifiers, token)
	}
	addPhrase := func(phrase string) {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" || len(phrase) > 600 {
			return
		}
		key := strings.ToLower(phrase)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		phrases = append(phrases, phrase)
	}

	var addedAggregate strings.Builder
	for _, h := range hunks {
		for _, line := range h.changed {
			extractLineIdentifiers(line, addIdentifier, addPhrase)
		}
		for _, line := range h.added {
			addedAggregate.WriteString(line)
			addedAggregate.WriteString("\n")
		}
		if phrase := hunkPhrase(h); phrase != "" {
			addPhrase(phrase)
		}
	}

	// Raw semantic query over everything that was added.
	raw := strings.TrimSpace(addedAggregate.String())
	if len(raw) > minRawQueryChars {
		if len(raw) > maxRawQueryChars {
			raw = raw[:maxRawQueryChars]
		}
		addPhrase(raw)
	}

	sort.SliceStable(identifiers, func(i, j int) bool {
		return len(identifiers[i]) < len(identifiers[j])
	})
	sort.SliceStable(phrases, func(i, j int) bool {
		return len(phrases[i]) < len(phrases[j])
	})

	queries := append(identifiers, phrases...)
	if len(queries) > maxQueries {
		queries = queries[:maxQueries]
	}
	return queries
}

// IsIdentifierQuery reports whether a query is a bare identifier rather
// than a semantic phrase.
func IsIdentifierQuery(query string) bool {
	return identifierOnlyRegex.MatchString(query)
}

func extractLineIdentifiers(line string, addIdentifier func(string), addPhrase func(string)) {
	for _, re := range declarationPatterns {
		for _, m := range re.FindAllStringSubmatch(line, -1) {
			addIdentifier(m[1])
		}
	}

	for _, ip := range importPatterns {
		for _, m := range ip.re.FindAllStringSubmatch(line, -1) {
			if ip.nameGroup > 0 {
				names := m[ip.nameGroup]
				if ip.splitNames {
					for _, name := range strings.Split(names, ",") {
						name = strings.TrimSpace(name)
						// strip aliases: "x as y" keeps x
						if idx := strings.Index(name, " as "); idx > 0 {
							name = name[:idx]
						}
						addIdentifier(name)
					}
				} else {
					addIdentifier(names)
				}
			}
			if ip.moduleGroup > 0 {
				if cleaned := cleanModulePath(m[ip.moduleGroup]); cleaned != "" {
					if strings.Contains(cleaned, " ") {
						addPhrase(cleaned)
					} else {
						addIdentifier(cleaned)
					}
				}
			}
		}
	}

	for _, re := range typeAnnotationPatterns {
		for _, m := range re.FindAllStringSubmatch(line, -1) {
			for _, name := range strings.Split(m[1], ",") {
				addIdentifier(strings.TrimSpace(name))
			}
		}
	}

	for _, re := range stringLiteralPatterns {
		for _, m := range re.FindAllStringSubmatch(line, -1) {
			addIdentifier(m[1])
		}
	}
}

// cleanModulePath turns an imported module path into query terms: scope
// prefixes, relative markers and known extensions are stripped, separators
// become spaces.
func cleanModulePath(module string) string {
	module = strings.TrimSpace(module)
	module = strings.TrimPrefix(module, "@")
	for strings.HasPrefix(module, "./") || strings.HasPrefix(module, "../") {
		module = strings.TrimPrefix(module, "./")
		module = strings.TrimPrefix(module, "../")
	}
	for _, ext := range moduleExtensions {
		module = strings.TrimSuffix(module, ext)
	}
	module = strings.ReplaceAll(module, "::", "/")
	module = strings.ReplaceAll(module, ".", "/")
	module = strings.ReplaceAll(module, "/", " ")
	return strings.TrimSpace(module)
}

// hunkPhrase combines the file basename with the hunk's leading
// identifiers into one semantic phrase.
func hunkPhrase(h hunk) string {
	base := path.Base(h.filename)
	if dot := strings.LastIndex(base, "."); dot > 0 {
		base = base[:dot]
	}

	var idents []string
	seen := map[string]struct{}{}
	for _, line := range h.changed {
		for _, token := range wordRegex.FindAllString(line, -1) {
			if len(idents) >= maxHunkIdentifiers {
				break
			}
			if !passesNoiseFilter(token) {
				continue
			}
			key := strings.ToLower(token)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			idents = append(idents, token)
		}
		if len(idents) >= maxHunkIdentifiers {
			break
		}
	}
	if len(idents) == 0 {
		return ""
	}
	return base + " " + strings.Join(idents, " ")
}

// passesNoiseFilter rejects tokens that make useless queries: language
// keywords, single uppercase letters (generic parameters), pure numbers,
// and tokens outside the [3, 600] length window.
func passesNoiseFilter(token string) bool {
	if len(token) < 3 || len(token) > 600 {
		return false
	}
	if singleUpperRegex.MatchString(token) || numericRegex.MatchString(token) {
		return false
	}
	if isLanguageKeyword(token) {
		return false
	}
	return true
}

// scanHunks splits a diff into per-hunk changed-line groups.
func scanHunks(diffContent string) []hunk {
	var (
		hunks    []hunk
		current  *hunk
		filename string
	)

	closeCurrent := func() {
		if current != nil && len(current.changed) > 0 {
			hunks = append(hunks, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(diffContent, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			closeCurrent()
			if m := fileHeaderRegex.FindStringSubmatch(line); m != nil {
				filename = m[2]
			}
		case strings.HasPrefix(line, "@@"):
			closeCurrent()
			if filename != "" {
				current = &hunk{filename: filename}
			}
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			// skip
		case current != nil && strings.HasPrefix(line, "+"):
			content := strings.TrimPrefix(line, "+")
			current.changed = append(current.changed, content)
			current.added = append(current.added, content)
		case current != nil && strings.HasPrefix(line, "-"):
			current.changed = append(current.changed, strings.TrimPrefix(line, "-"))
		}
	}
	closeCurrent()
	return hunks
}
