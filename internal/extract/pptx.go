package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	slidePath  = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	aParagraph = regexp.MustCompile(`(?s)<a:p(?:\s[^>]*[^/>])?>(.*?)</a:p>`)
	atTag      = regexp.MustCompile(`<a:t(?:\s[^>]*)?>([^<]*)</a:t>`)
)

// extractPPTX returns one element per slide, in slide number order, with one line per text paragraph.
func extractPPTX(content []byte) ([]Element, error) {
	zr, err := openZip(content)
	if err != nil {
		return nil, err
	}
	type slide struct {
		n    int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		if m := slidePath.FindStringSubmatch(f.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			slides = append(slides, slide{n: n, name: f.Name})
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	var elements []Element
	for _, s := range slides {
		data, err := readPart(zr, s.name)
		if err != nil {
			return nil, err
		}
		var lines []string
		for _, p := range aParagraph.FindAllStringSubmatch(string(data), -1) {
			var b strings.Builder
			for _, run := range atTag.FindAllStringSubmatch(p[1], -1) {
				b.WriteString(run[1])
			}
			if line := innerText(b.String()); line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) == 0 {
			continue
		}
		elements = append(elements, Element{
			Type:     "Slide",
			Text:     strings.Join(lines, "\n"),
			Metadata: map[string]interface{}{"page_number": s.n},
		})
	}
	return elements, nil
}
