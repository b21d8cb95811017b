package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/kiritori/internal/config"
	"github.com/xuri/excelize/v2"
)

func extractText(t *testing.T, content []byte, filename string) string {
	t.Helper()
	elements, err := NewLocalExtractor(0).Extract(context.Background(), content, filename, nil)
	if err != nil {
		t.Fatalf("Extract(%s): %v", filename, err)
	}
	return JoinText(elements)
}

func TestLocal_plain(t *testing.T) {
	if got := extractText(t, []byte("Hello world\nLine 2"), "a.txt"); got != "Hello world\nLine 2" {
		t.Errorf("got %q", got)
	}
}

func TestLocal_plainUTF8(t *testing.T) {
	if got := extractText(t, []byte("caf\xc3\xa9"), "a.md"); got != "café" {
		t.Errorf("got %q", got)
	}
}

func TestLocal_plainInvalidUTF8(t *testing.T) {
	if got := extractText(t, []byte("hello\x80world"), "a.rst"); got != "hello�world" {
		t.Errorf("got %q", got)
	}
}

func TestLocal_blankPlainHasNoElements(t *testing.T) {
	elements, err := NewLocalExtractor(0).Extract(context.Background(), []byte("  \n "), "a.txt", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(elements) != 0 {
		t.Errorf("expected no elements, got %v", elements)
	}
}

func TestLocal_unknownExtension(t *testing.T) {
	if got := extractText(t, []byte("raw content"), "a.xyz"); got != "raw content" {
		t.Errorf("got %q", got)
	}
}

func TestLocal_excel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Title")
	f.SetCellValue("Sheet1", "A2", "Value 1")
	f.SetCellValue("Sheet1", "B2", "Value 2")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	elements, err := NewLocalExtractor(0).Extract(context.Background(), buf.Bytes(), "book.xlsx", nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(elements) != 1 || elements[0].Type != "Table" {
		t.Fatalf("expected one Table element, got %+v", elements)
	}
	if elements[0].Text != "Title\nValue 1\tValue 2" {
		t.Errorf("got %q", elements[0].Text)
	}
	if elements[0].Metadata["sheet"] != "Sheet1" {
		t.Errorf("sheet metadata = %v", elements[0].Metadata["sheet"])
	}
}

func TestLocal_tooLarge(t *testing.T) {
	_, err := NewLocalExtractor(4).Extract(context.Background(), []byte("12345"), "a.txt", nil)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestLocal_ExtractFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.txt")
	if err := os.WriteFile(path, []byte("File content"), 0600); err != nil {
		t.Fatal(err)
	}
	elements, err := NewLocalExtractor(0).ExtractFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	if got := JoinText(elements); got != "File content" {
		t.Errorf("got %q", got)
	}
	if _, err := NewLocalExtractor(0).ExtractFile(context.Background(), "/nonexistent/path/file.txt"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func zipOf(files map[string]string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range files {
		fw, _ := w.Create(name)
		_, _ = fw.Write([]byte(body))
	}
	_ = w.Close()
	return buf.Bytes()
}

const wordNS = `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

func TestLocal_docxParagraphs(t *testing.T) {
	doc := wordNS +
		`<w:p w:rsidR="00A1"><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Quarterly </w:t></w:r><w:r><w:t xml:space="preserve">report</w:t></w:r></w:p>` +
		`<w:p/>` +
		`<w:p><w:r><w:t>Revenue grew &amp; costs fell.</w:t></w:r></w:p>` +
		`</w:body></w:document>`
	got := extractText(t, zipOf(map[string]string{"word/document.xml": doc}), "r.docx")
	if got != "Quarterly report\n\nRevenue grew & costs fell." {
		t.Errorf("got %q", got)
	}
}

func TestLocal_docxContentTypes(t *testing.T) {
	for _, override := range []string{
		`<Override PartName="/word/document2.xml" ContentType="` + docxMainContentType + `"/>`,
		`<Override ContentType="` + docxMainContentType + `" PartName="/word/document2.xml"/>`,
	} {
		content := zipOf(map[string]string{
			contentTypesPath:     `<Types>` + override + `</Types>`,
			"word/document2.xml": wordNS + `<w:p><w:r><w:t>Content from document2</w:t></w:r></w:p></w:body></w:document>`,
		})
		if got := extractText(t, content, "r.docx"); got != "Content from document2" {
			t.Errorf("got %q", got)
		}
	}
}

func TestLocal_docxMissingDocument(t *testing.T) {
	_, err := NewLocalExtractor(0).Extract(context.Background(), zipOf(map[string]string{"other.xml": ""}), "r.docx", nil)
	if err == nil {
		t.Error("expected error when document.xml missing")
	}
}

func slideXML(texts ...string) string {
	s := `<p:sld><p:cSld><p:spTree><p:sp><p:txBody>`
	for _, t := range texts {
		s += `<a:p><a:r><a:t>` + t + `</a:t></a:r></a:p>`
	}
	return s + `</p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
}

func TestLocal_pptxSlidesInOrder(t *testing.T) {
	content := zipOf(map[string]string{
		"ppt/slides/slide10.xml": slideXML("Tenth slide"),
		"ppt/slides/slide2.xml":  slideXML("Second slide", "More"),
		"ppt/slides/slide1.xml":  slideXML("First slide"),
		"ppt/slides/other.xml":   slideXML("ignored"),
	})
	elements, err := NewLocalExtractor(0).Extract(context.Background(), content, "deck.pptx", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(elements) != 3 {
		t.Fatalf("expected 3 slides, got %d", len(elements))
	}
	want := []string{"First slide", "Second slide\nMore", "Tenth slide"}
	for i, el := range elements {
		if el.Text != want[i] {
			t.Errorf("slide %d: got %q, want %q", i, el.Text, want[i])
		}
	}
	if elements[2].Metadata["page_number"] != 10 {
		t.Errorf("page_number = %v", elements[2].Metadata["page_number"])
	}
}

func TestLocal_pptxEmptyAndInvalid(t *testing.T) {
	if got := extractText(t, zipOf(map[string]string{"docProps/core.xml": ""}), "d.pptx"); got != "" {
		t.Errorf("got %q", got)
	}
	if _, err := NewLocalExtractor(0).Extract(context.Background(), []byte("not a zip"), "d.pptx", nil); err == nil {
		t.Error("expected error for invalid pptx")
	}
}

func TestLocal_openDocument(t *testing.T) {
	tests := []struct {
		name    string
		xml     string
		want    string
		wantTyp string
	}{
		{
			name:    "odt.odt",
			xml:     `<office:document><office:body><office:text><text:h text:outline-level="1">Overview</text:h><text:p text:style-name="P1">Body <text:span>with span</text:span><text:s/>text</text:p><text:p/></office:text></office:body></office:document>`,
			want:    "Overview\n\nBody with span text",
			wantTyp: "Title",
		},
		{
			name:    "pres.odp",
			xml:     `<office:document><office:body><draw:page><draw:text-box><text:p>Searchable odp content</text:p></draw:text-box></draw:page></office:body></office:document>`,
			want:    "Searchable odp content",
			wantTyp: "NarrativeText",
		},
		{
			name:    "sheet.ods",
			xml:     `<office:document><office:body><table:table><table:table-row><table:table-cell><text:p>Cell A</text:p></table:table-cell><table:table-cell><text:p>Cell B</text:p></table:table-cell></table:table-row></table:table></office:body></office:document>`,
			want:    "Cell A\n\nCell B",
			wantTyp: "NarrativeText",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := zipOf(map[string]string{"content.xml": tt.xml})
			elements, err := NewLocalExtractor(0).Extract(context.Background(), content, tt.name, nil)
			if err != nil {
				t.Fatal(err)
			}
			if got := JoinText(elements); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if elements[0].Type != tt.wantTyp {
				t.Errorf("first element type = %q, want %q", elements[0].Type, tt.wantTyp)
			}
		})
	}
}

func TestLocal_openDocumentMissingContent(t *testing.T) {
	for _, name := range []string{"a.odp", "a.ods", "a.odt"} {
		_, err := NewLocalExtractor(0).Extract(context.Background(), zipOf(map[string]string{"other.xml": ""}), name, nil)
		if err == nil {
			t.Errorf("%s: expected error when content.xml missing", name)
		}
	}
}

func TestJoinText(t *testing.T) {
	got := JoinText([]Element{{Text: " one "}, {Text: "  "}, {Text: "two"}})
	if got != "one\n\ntwo" {
		t.Errorf("got %q", got)
	}
	if JoinText(nil) != "" {
		t.Error("expected empty string")
	}
}

func TestExtractMetadata(t *testing.T) {
	now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	defer func() { now = time.Now }()

	md := ExtractMetadata([]byte("hello"), "/tmp/uploads/Report.PDF")
	want := map[string]string{
		"filename":        "Report.PDF",
		"file_size":       "5",
		"file_type":       "pdf",
		"extraction_date": "2024-05-01T12:00:00Z",
	}
	for k, v := range want {
		if md[k] != v {
			t.Errorf("%s = %q, want %q", k, md[k], v)
		}
	}
}

func TestNew(t *testing.T) {
	if _, err := New(config.ExtractionConfig{Backend: "local"}); err != nil {
		t.Errorf("local: %v", err)
	}
	e, err := New(config.ExtractionConfig{Backend: "unstructured", UnstructuredURL: "http://localhost:8000"})
	if err != nil {
		t.Fatalf("unstructured: %v", err)
	}
	if _, ok := e.(*UnstructuredClient); !ok {
		t.Errorf("expected *UnstructuredClient, got %T", e)
	}
	if _, err := New(config.ExtractionConfig{Backend: "tesseract"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
