package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wrapDiff(lines ...string) string {
	var b strings.Builder
	b.WriteString("diff --git a/src/handlers.ts b/src/handlers.ts\n")
	b.WriteString("--- a/src/handlers.ts\n+++ b/src/handlers.ts\n")
	b.WriteString("@@ -1,1 +1,10 @@\n")
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	return b.String()
}

func TestExtractQueries_Declarations(t *testing.T) {
	diff := wrapDiff(
		"+function processPayment(amount) {",
		"+class PaymentGateway {",
		"+interface PaymentOptions {",
		"+def validate_payment(amount):",
		"+func HandleRefund(w http.ResponseWriter) {",
	)
	queries := ExtractQueries(diff)

	assert.Contains(t, queries, "processPayment")
	assert.Contains(t, queries, "PaymentGateway")
	assert.Contains(t, queries, "PaymentOptions")
	assert.Contains(t, queries, "validate_payment")
	assert.Contains(t, queries, "HandleRefund")
}

func TestExtractQueries_Imports(t *testing.T) {
	diff := wrapDiff(
		`+import { createClient, RedisOptions } from '@redis/client'`,
		`+import routes from './routes/payment.ts'`,
	)
	queries := ExtractQueries(diff)

	assert.Contains(t, queries, "createClient")
	assert.Contains(t, queries, "RedisOptions")
	assert.Contains(t, queries, "routes")
	// Module paths are cleaned: scope and extension stripped, slashes
	// become spaces.
	assert.Contains(t, queries, "redis client")
	assert.Contains(t, queries, "routes payment")
}

func TestExtractQueries_TypeAnnotations(t *testing.T) {
	diff := wrapDiff(
		"+async function load(): Promise<Invoice> {",
		"+const items: Array<LineItem> = []",
		"+def total(self) -> Decimal:",
	)
	queries := ExtractQueries(diff)

	assert.Contains(t, queries, "Invoice")
	assert.Contains(t, queries, "LineItem")
	assert.Contains(t, queries, "Decimal")
}

func TestExtractQueries_NoiseFilter(t *testing.T) {
	diff := wrapDiff(
		"+function fn(x) {", // "fn" too short and a keyword
		"+const a: T = cast<T>(v)",          // single uppercase generic
		"+const answer = 42",                 // numeric literal
		"+class Dispatcher {}",
	)
	queries := ExtractQueries(diff)

	assert.Contains(t, queries, "Dispatcher")
	for _, q := range queries {
		assert.GreaterOrEqual(t, len(q), 3)
		assert.NotEqual(t, "T", q)
		assert.NotEqual(t, "42", q)
	}
}

func TestExtractQueries_DeduplicatesCaseInsensitive(t *testing.T) {
	diff := wrapDiff(
		"+function parseToken() {",
		"+const parsetoken = parseToken",
	)
	queries := ExtractQueries(diff)

	count := 0
	for _, q := range queries {
		if strings.EqualFold(q, "parseToken") {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestExtractQueries_OrderingAndCap(t *testing.T) {
	lines := []string{
		"+function alpha() {}",
		"+function beta() {}",
		"+function gammaLonger() {}",
		"+function deltaEvenLongerName() {}",
		"+class Aa {}",
		"+class VeryLongClassNameIndeed {}",
	}
	// Add enough declarations to hit the cap.
	for _, n := range []string{"one1x", "two2x", "three3x", "four4x", "five5x", "sixsix", "sevenx", "eightx", "ninex9", "tenten", "elevenx"} {
		lines = append(lines, "+function "+n+"() {}")
	}
	queries := ExtractQueries(wrapDiff(lines...))

	assert.LessOrEqual(t, len(queries), 15)

	// Identifier queries come before phrases, sorted shortest first.
	lastIdentifier := -1
	for i, q := range queries {
		if IsIdentifierQuery(q) {
			if lastIdentifier >= 0 {
				assert.LessOrEqual(t, len(queries[lastIdentifier]), len(q))
			}
			lastIdentifier = i
		}
	}
	require.GreaterOrEqual(t, lastIdentifier, 0)
	for i := lastIdentifier + 1; i < len(queries); i++ {
		assert.False(t, IsIdentifierQuery(queries[i]))
	}
}

func TestExtractQueries_RawAddedCodeQuery(t *testing.T) {
	var lines []string
	for i := 0; i < 6; i++ {
		lines = append(lines, "+retryWithBackoff(client, request, maxAttempts)")
	}
	queries := ExtractQueries(wrapDiff(lines...))

	found := false
	for _, q := range queries {
		if strings.Contains(q, "retryWithBackoff(client, request, maxAttempts)") {
			found = true
			assert.LessOrEqual(t, len(q), 500)
		}
	}
	assert.True(t, found, "expected a raw added-code query")
}

func TestExtractQueries_HunkPhraseIncludesBasename(t *testing.T) {
	queries := ExtractQueries(wrapDiff("+function chargeCustomer() {}"))

	found := false
	for _, q := range queries {
		if strings.HasPrefix(q, "handlers ") {
			found = true
		}
	}
	assert.True(t, found, "expected a per-hunk semantic phrase starting with the basename")
}

func TestExtractQueries_EmptyDiff(t *testing.T) {
	assert.Empty(t, ExtractQueries(""))
}

func TestExtractSymbols(t *testing.T) {
	diff := wrapDiff(
		"+function processOrder() {",
		"+class OrderValidator {",
		"-def legacy_handler(req):",
		" context_line_ignored",
	)
	symbols := ExtractSymbols(diff)

	assert.Contains(t, symbols, "processOrder")
	assert.Contains(t, symbols, "OrderValidator")
	assert.Contains(t, symbols, "legacy_handler")
	assert.NotContains(t, symbols, "context_line_ignored")
	assert.LessOrEqual(t, len(symbols), 20)
}

func TestExtractSymbols_CapAt20(t *testing.T) {
	var lines []string
	for _, prefix := range []string{"aaa", "bbb", "ccc", "ddd", "eee"} {
		for _, suffix := range []string{"One", "Two", "Three", "Four", "Five"} {
			lines = append(lines, "+function "+prefix+suffix+"() {}")
		}
	}
	symbols := ExtractSymbols(wrapDiff(lines...))
	assert.Len(t, symbols, 20)
}
