package diff

import (
	"regexp"
	"sort"
	"strings"
)

const (
	maxSummaryChars      = 200
	minSummaryChars      = 20
	maxKeyTerms          = 20
	minKeyTermChars      = 4
	maxMentionedFiles    = 10
	maxConcepts          = 15
	maxDescriptionQueries = 8
)

// Description holds the intent signals extracted from a PR/MR description.
type Description struct {
	Summary        string
	KeyTerms       []string
	MentionedFiles []string
	Concepts       []string
	Queries        []string
}

var (
	markdownHeaderRegex = regexp.MustCompile(`^\s{0,3}#`)
	markdownListRegex   = regexp.MustCompile(`^\s*(?:[-*+]|\d+\.)\s`)
	descWordRegex       = regexp.MustCompile(`[A-Za-z][A-Za-z0-9_'-]*`)

	filePathRegex = regexp.MustCompile(`\b((?:[\w.-]+/)*[\w.-]+\.[A-Za-z]{1,6})\b`)
	dirPathRegex  = regexp.MustCompile(`\b((?:src|lib|pkg|internal|cmd|app|packages|test|tests)/[\w./-]+)\b`)

	conceptPatterns = []*regexp.Regexp{
		regexp.MustCompile("`([^`\n]{2,60})`"),                   // backtick-wrapped
		regexp.MustCompile(`\b([A-Z][a-z0-9]+(?:[A-Z][a-z0-9]+)+)\b`), // PascalCase
		regexp.MustCompile(`\b([a-z][a-z0-9]+(?:[A-Z][a-z0-9]+)+)\b`), // camelCase
		regexp.MustCompile(`\b([a-z][a-z0-9]+(?:_[a-z0-9]+)+)\b`),     // snake_case
		regexp.MustCompile(`\b([A-Z][A-Z0-9]+(?:_[A-Z0-9]+)+)\b`),     // CONSTANT_CASE
		regexp.MustCompile(`\b(\w+(?:Handler|Service|Controller|Manager|Provider|Repository|Factory|Builder|Client|Worker|Middleware))\b`),
	}
)

// ExtractDescription turns a PR description into a summary, key terms,
// mentioned files, technical concepts, and a capped set of intent queries.
// An empty description yields an empty result, never nil.
func ExtractDescription(description string) *Description {
	d := &Description{}
	if strings.TrimSpace(description) == "" {
		return d
	}

	d.Summary = extractSummary(description)
	d.KeyTerms = extractKeyTerms(description)
	d.MentionedFiles = extractMentionedFiles(description)
	d.Concepts = extractConcepts(description)
	d.Queries = buildDescriptionQueries(d)
	return d
}

// extractSummary takes the first paragraph of at least 20 characters that
// is neither a markdown header nor a list item, truncated to 200.
func extractSummary(description string) string {
	for _, para := range strings.Split(description, "\n\n") {
		para = strings.TrimSpace(strings.ReplaceAll(para, "\n", " "))
		if len(para) < minSummaryChars {
			continue
		}
		if markdownHeaderRegex.MatchString(para) || markdownListRegex.MatchString(para) {
			continue
		}
		if len(para) > maxSummaryChars {
			para = para[:maxSummaryChars]
		}
		return para
	}
	return ""
}

func extractKeyTerms(description string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, word := range descWordRegex.FindAllString(description, -1) {
		if len(terms) >= maxKeyTerms {
			break
		}
		if len(word) < minKeyTermChars || isStopword(word) {
			continue
		}
		key := strings.ToLower(word)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		terms = append(terms, word)
	}
	return terms
}

func extractMentionedFiles(description string) []string {
	seen := make(map[string]struct{})
	var files []string
	add := func(p string) {
		if len(files) >= maxMentionedFiles {
			return
		}
		p = strings.Trim(p, "`")
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		files = append(files, p)
	}
	for _, m := range filePathRegex.FindAllString(description, -1) {
		add(m)
	}
	for _, m := range dirPathRegex.FindAllString(description, -1) {
		add(m)
	}
	return files
}

func extractConcepts(description string) []string {
	seen := make(map[string]struct{})
	var concepts []string
	for _, re := range conceptPatterns {
		for _, m := range re.FindAllStringSubmatch(description, -1) {
			if len(concepts) >= maxConcepts {
				return concepts
			}
			concept := strings.TrimSpace(m[1])
			if concept == "" || isStopword(concept) || isLanguageKeyword(concept) {
				continue
			}
			key := strings.ToLower(concept)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			concepts = append(concepts, concept)
		}
	}
	return concepts
}

// buildDescriptionQueries derives at most 8 intent queries, concepts
// first (they name code directly), then key-term pairs.
func buildDescriptionQueries(d *Description) []string {
	seen := make(map[string]struct{})
	var queries []string
	add := func(q string) {
		q = strings.TrimSpace(q)
		if q == "" || len(queries) >= maxDescriptionQueries {
			return
		}
		key := strings.ToLower(q)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		queries = append(queries, q)
	}

	concepts := make([]string, len(d.Concepts))
	copy(concepts, d.Concepts)
	sort.SliceStable(concepts, func(i, j int) bool { return len(concepts[i]) < len(concepts[j]) })
	for _, c := range concepts {
		add(c)
	}
	for i := 0; i+1 < len(d.KeyTerms) && len(queries) < maxDescriptionQueries; i += 2 {
		add(d.KeyTerms[i] + " " + d.KeyTerms[i+1])
	}
	if len(queries) == 0 && d.Summary != "" {
		add(d.Summary)
	}
	return queries
}
