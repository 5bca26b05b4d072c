package diff

import (
	"regexp"
	"strings"
)

const maxSymbols = 20

// symbolPatterns is the narrow battery used for structural lookups:
// declared names only, no annotations or literals. Wider nets produce too
// many false definition lookups.
var symbolPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bfunction\s+(\w+)`),
	regexp.MustCompile(`\bclass\s+(\w+)`),
	regexp.MustCompile(`\binterface\s+(\w+)`),
	regexp.MustCompile(`\bdef\s+(\w+)`),
	regexp.MustCompile(`\bfunc\s+(?:\([^)]*\)\s+)?(\w+)\s*\(`),
	regexp.MustCompile(`\btype\s+(\w+)\s+(?:struct|interface)\b`),
	regexp.MustCompile(`\bfn\s+(\w+)`),
	regexp.MustCompile(`\bstruct\s+(\w+)`),
	regexp.MustCompile(`\btrait\s+(\w+)`),
	regexp.MustCompile(`\bfun\s+(\w+)`),
	regexp.MustCompile(`\b(?:const|let|var)\s+(\w+)\s*=\s*(?:async\s*)?\(`),
	regexp.MustCompile(`\benum\s+(\w+)`),
}

// ExtractSymbols mines changed lines for identifiers worth structural
// lookups (definitions, usages, call graph). Each symbol passes the noise
// filter; at most 20 are returned, in first-seen order.
func ExtractSymbols(diffContent string) []string {
	seen := make(map[string]struct{})
	var symbols []string

	for _, line := range strings.Split(diffContent, "\n") {
		if !strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "-") {
			continue
		}
		if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
			continue
		}
		content := line[1:]

		for _, re := range symbolPatterns {
			for _, m := range re.FindAllStringSubmatch(content, -1) {
				name := strings.TrimSpace(m[1])
				if !passesNoiseFilter(name) {
					continue
				}
				key := strings.ToLower(name)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				symbols = append(symbols, name)
				if len(symbols) >= maxSymbols {
					return symbols
				}
			}
		}
	}
	return symbols
}
