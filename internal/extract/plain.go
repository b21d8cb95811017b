package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/lu4p/cat"
)

// extractPlain returns content as a single element. Invalid UTF-8 sequences are replaced
// with the replacement character.
func extractPlain(content []byte) []Element {
	s := string(content)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\uFFFD")
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return []Element{{Type: "Text", Text: s}}
}

func extractRTF(content []byte) ([]Element, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return nil, err
	}
	return extractPlain([]byte(text)), nil
}
