// Package summary renders a QueryResult into a single chat-sized text block.
//
// Lengths are counted in runes. The budget arithmetic is intentionally loose:
// label text and separators are not fully accounted for, so output may exceed
// maxLength by a small amount. Callers that need a hard ceiling enforce it
// themselves (see package notify).
package summary

import (
	"strings"
	"unicode/utf8"

	"triquery/internal/domain"
)

// DefaultMaxLength is the summary budget used for chat notifications.
const DefaultMaxLength = 1900

const (
	queryPreviewLen = 200
	closingReserve  = 100 // kept free for the truncation notice
	providerMargin  = 50  // per-provider headroom for labels and separators
	ellipsis        = "..."
	truncatedNotice = "*Respuestas truncadas para Discord.*"
)

type label struct {
	icon  string
	title string
}

var labels = map[string]label{
	domain.ProviderGemini:  {"🔷", "Gemini"},
	domain.ProviderCohere:  {"🟠", "Cohere"},
	domain.ProviderMistral: {"🟣", "Mistral"},
}

func labelFor(name string) label {
	if l, ok := labels[name]; ok {
		return l
	}
	return label{"▪️", name}
}

// Header renders the question preview and the comparison heading.
func Header(query string) string {
	var sb strings.Builder
	sb.WriteString("📝 **Pregunta:** ")
	sb.WriteString(Truncate(query, queryPreviewLen))
	sb.WriteString("\n\n")
	sb.WriteString("📊 **Comparación de Respuestas:**\n\n")
	return sb.String()
}

// Budget returns the per-provider character budget for a given header.
// The value may be negative for tiny maxLength values; Format treats that as 0.
func Budget(header string, maxLength int) int {
	available := maxLength - (utf8.RuneCountInString(header) + closingReserve)
	return floorDiv(available, 3) - providerMargin
}

// Format renders result in provider display order. Failed providers show a
// bare error marker; their error detail is not included.
func Format(result *domain.QueryResult, query string, maxLength int) string {
	header := Header(query)
	budget := max(Budget(header, maxLength), 0)

	var sb strings.Builder
	sb.WriteString(header)
	for _, name := range result.Names() {
		res, _ := result.Get(name)
		l := labelFor(name)
		if res.Success {
			sb.WriteString(l.icon + " **" + l.title + ":**\n")
			sb.WriteString(Truncate(res.Text, budget))
			sb.WriteString("\n\n")
		} else {
			sb.WriteString(l.icon + " **" + l.title + ":** ❌ Error\n\n")
		}
	}

	if utf8.RuneCountInString(sb.String()) > maxLength-closingReserve {
		sb.WriteString(truncatedNotice)
	}
	return sb.String()
}

// Truncate keeps the first n runes of s and appends "..." when anything was cut.
func Truncate(s string, n int) string {
	if n < 0 {
		n = 0
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + ellipsis
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
