package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
)

func openZip(content []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("not a zip: %w", err)
	}
	return zr, nil
}

// readPart returns the named zip entry, or nil when it is absent.
func readPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		return data, nil
	}
	return nil, nil
}

var (
	anyTag = regexp.MustCompile(`<[^>]+>`)
	// Spacing elements inside OpenDocument and OOXML text runs.
	spaceTag = regexp.MustCompile(`<(?:text:s|text:tab|text:line-break|w:tab|w:br|a:br)(?:\s[^>]*)?/>`)
)

// innerText strips markup from an XML fragment and unescapes entities.
func innerText(fragment string) string {
	s := spaceTag.ReplaceAllString(fragment, " ")
	s = anyTag.ReplaceAllString(s, "")
	return strings.TrimSpace(html.UnescapeString(s))
}
