package extract

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/MariusDragic/RailwayRAG/internal/models"
)

// odfContentPath is the main content part of OpenDocument archives.
const odfContentPath = "content.xml"

var (
	odfSlide = regexp.MustCompile(`(?s)<draw:page[ >].*?</draw:page>`)
	odfSheet = regexp.MustCompile(`(?s)<table:table[ >].*?</table:table>`)
	odfBreak = regexp.MustCompile(`</text:(?:p|h)>|<text:line-break\s*/>`)
	odfSpace = regexp.MustCompile(`<text:(?:s|tab)\b[^>]*/>`)
	xmlTag   = regexp.MustCompile(`<[^>]+>`)
)

// extractODP returns one page per presentation slide.
func extractODP(content []byte) ([]models.Page, error) {
	return extractODF(content, "ODP", odfSlide)
}

// extractODS returns one page per spreadsheet table.
func extractODS(content []byte) ([]models.Page, error) {
	return extractODF(content, "ODS", odfSheet)
}

func extractODF(content []byte, format string, part *regexp.Regexp) ([]models.Page, error) {
	zr, err := openZip(content, format)
	if err != nil {
		return nil, err
	}
	data, err := readZipEntry(zr, odfContentPath)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", format, err)
	}
	if data == nil {
		return nil, fmt.Errorf("extract %s: %s not found", format, odfContentPath)
	}
	doc := string(data)
	parts := part.FindAllString(doc, -1)
	if len(parts) == 0 {
		return singlePage(odfText(doc)), nil
	}
	pages := make([]models.Page, 0, len(parts))
	for i, p := range parts {
		pages = append(pages, models.Page{Number: i + 1, Text: odfText(p)})
	}
	return pages, nil
}

// odfText flattens an OpenDocument XML fragment to one line per paragraph or heading.
func odfText(fragment string) string {
	s := odfBreak.ReplaceAllString(fragment, "\n")
	s = odfSpace.ReplaceAllString(s, " ")
	s = html.UnescapeString(xmlTag.ReplaceAllString(s, ""))
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
