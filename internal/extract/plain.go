package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/MariusDragic/RailwayRAG/internal/models"
)

// extractPlain returns content as a single page. Invalid UTF-8 sequences are replaced with
// the replacement character and Windows line endings become "\n".
func extractPlain(content []byte) ([]models.Page, error) {
	text := string(content)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return singlePage(normalizeNewlines(text)), nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
