package extract

import (
	"archive/zip"
	"fmt"
	"regexp"
	"strings"
)

const (
	docxDocumentXMLPath = "word/document.xml"
	contentTypesPath    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	// wParagraph matches a non-empty <w:p> element; <w:pPr> and <w:p/> are not paragraph starts.
	wParagraph = regexp.MustCompile(`(?s)<w:p(?:\s[^>]*[^/>])?>(.*?)</w:p>`)
	wtTag      = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	// PartName and ContentType may appear in either order.
	partNameRe  = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)
)

// docxMainPath finds the main document part from [Content_Types].xml, defaulting to word/document.xml.
func docxMainPath(zr *zip.Reader) string {
	data, err := readPart(zr, contentTypesPath)
	if err != nil || data == nil {
		return docxDocumentXMLPath
	}
	for _, re := range []*regexp.Regexp{partNameRe, partNameRe2} {
		if m := re.FindSubmatch(data); len(m) > 1 {
			return strings.TrimPrefix(string(m[1]), "/")
		}
	}
	return docxDocumentXMLPath
}

// extractDOCX returns one element per non-empty paragraph. Runs inside a paragraph are
// concatenated as-is.
func extractDOCX(content []byte) ([]Element, error) {
	zr, err := openZip(content)
	if err != nil {
		return nil, err
	}
	docPath := docxMainPath(zr)
	docXML, err := readPart(zr, docPath)
	if err != nil {
		return nil, err
	}
	if docXML == nil {
		return nil, fmt.Errorf("%s not found", docPath)
	}

	var elements []Element
	for _, p := range wParagraph.FindAllStringSubmatch(string(docXML), -1) {
		var b strings.Builder
		for _, run := range wtTag.FindAllStringSubmatch(p[1], -1) {
			b.WriteString(run[1])
		}
		if text := innerText(b.String()); text != "" {
			elements = append(elements, Element{Type: "NarrativeText", Text: text})
		}
	}
	return elements, nil
}
