package extract

import (
	"fmt"
	"regexp"
)

const openDocumentContentPath = "content.xml"

// odBlock matches <text:h> and <text:p> elements with content, in document order.
var odBlock = regexp.MustCompile(`(?s)<text:(h|p)(?:\s[^>]*[^/>])?>(.*?)</text:(?:h|p)>`)

// extractOpenDocument handles .odt, .odp and .ods, which share the content.xml layout.
// Headings become Title elements and paragraphs NarrativeText.
func extractOpenDocument(content []byte) ([]Element, error) {
	zr, err := openZip(content)
	if err != nil {
		return nil, err
	}
	data, err := readPart(zr, openDocumentContentPath)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("%s not found", openDocumentContentPath)
	}
	var elements []Element
	for _, m := range odBlock.FindAllStringSubmatch(string(data), -1) {
		text := innerText(m[2])
		if text == "" {
			continue
		}
		typ := "NarrativeText"
		if m[1] == "h" {
			typ = "Title"
		}
		elements = append(elements, Element{Type: typ, Text: text})
	}
	return elements, nil
}
