// Package extract turns uploaded files into plain text for indexing. Each
// supported file type has its own parser; the registry dispatches on the
// file extension.
package extract

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"

	docerr "github.com/smartdocfinder/smartdoc/internal/errors"
)

// Parser extracts plain text from one file type.
type Parser interface {
	Parse(r io.Reader, filename string) (string, error)
	Extensions() []string
}

// Registry maps lowercased extensions to parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry returns a registry with all built-in parsers: plain text,
// markdown, PDF, and DOCX.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	for _, p := range []Parser{
		&PlainTextParser{},
		&MarkdownParser{},
		&PDFParser{},
		&DOCXParser{},
	} {
		for _, ext := range p.Extensions() {
			r.parsers[ext] = p
		}
	}
	return r
}

// Supported reports whether the filename's extension has a parser.
func (r *Registry) Supported(filename string) bool {
	_, ok := r.parsers[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Extensions lists every registered extension.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		exts = append(exts, ext)
	}
	return exts
}

// Extract parses the file content into plain text. Unknown extensions get a
// typed unsupported-type error; parse failures get a corrupt-document error
// so callers can report them per file without aborting a batch.
func (r *Registry) Extract(reader io.Reader, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	parser, ok := r.parsers[ext]
	if !ok {
		return "", docerr.UnsupportedType(filename, ext)
	}

	content, err := parser.Parse(reader, filename)
	if err != nil {
		return "", docerr.CorruptDocument(filename, err)
	}
	return content, nil
}

var reMultiNewlines = regexp.MustCompile(`\n{3,}`)

func collapseNewlines(text string) string {
	return strings.TrimSpace(reMultiNewlines.ReplaceAllString(text, "\n\n"))
}

// PlainTextParser handles raw text files.
type PlainTextParser struct{}

func (p *PlainTextParser) Extensions() []string { return []string{".txt"} }

func (p *PlainTextParser) Parse(r io.Reader, filename string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file is not valid UTF-8 text")
	}
	return strings.TrimSpace(string(data)), nil
}

// MarkdownParser strips formatting markers so the index sees prose, not
// syntax.
type MarkdownParser struct{}

var (
	reMarkdownHeader = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	reMarkdownBold   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reMarkdownItalic = regexp.MustCompile(`\*(.+?)\*`)
	reMarkdownFence  = regexp.MustCompile("```[\\s\\S]*?```")
	reMarkdownInline = regexp.MustCompile("`([^`]+)`")
	reMarkdownImage  = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`)
	reMarkdownLink   = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	reMarkdownHTML   = regexp.MustCompile(`<[^>]+>`)
)

func (p *MarkdownParser) Extensions() []string { return []string{".md", ".markdown"} }

func (p *MarkdownParser) Parse(r io.Reader, filename string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read markdown: %w", err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file is not valid UTF-8 text")
	}

	text := string(data)
	text = reMarkdownFence.ReplaceAllStringFunc(text, func(s string) string {
		s = strings.TrimPrefix(s, "```")
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		return strings.TrimSpace(strings.TrimSuffix(s, "```"))
	})
	text = reMarkdownImage.ReplaceAllString(text, "$1")
	text = reMarkdownLink.ReplaceAllString(text, "$1")
	text = reMarkdownBold.ReplaceAllString(text, "$1")
	text = reMarkdownItalic.ReplaceAllString(text, "$1")
	text = reMarkdownInline.ReplaceAllString(text, "$1")
	text = reMarkdownHeader.ReplaceAllString(text, "")
	text = reMarkdownHTML.ReplaceAllString(text, "")

	return collapseNewlines(text), nil
}

// PDFParser extracts page text. Pages that fail to decode are skipped so one
// bad page does not lose the rest of the document; a PDF with no extractable
// text at all is treated as corrupt.
type PDFParser struct{}

func (p *PDFParser) Extensions() []string { return []string{".pdf"} }

func (p *PDFParser) Parse(r io.Reader, filename string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			sb.WriteString(text)
			sb.WriteString("\n\n")
		}
	}

	content := collapseNewlines(sb.String())
	if content == "" {
		return "", fmt.Errorf("no extractable text in pdf")
	}
	return content, nil
}

// DOCXParser extracts run text from the document body XML.
type DOCXParser struct{}

var reDocxText = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

func (p *DOCXParser) Extensions() []string { return []string{".docx"} }

func (p *DOCXParser) Parse(r io.Reader, filename string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read docx: %w", err)
	}

	reader, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer reader.Close()

	content := docxBodyText(reader.Editable().GetContent())
	if content == "" {
		return "", fmt.Errorf("no extractable text in docx")
	}
	return content, nil
}

// docxBodyText collects the text runs from the document body XML. Run text
// arrives XML-escaped and is unescaped before use.
func docxBodyText(body string) string {
	var sb strings.Builder
	for _, m := range reDocxText.FindAllStringSubmatch(body, -1) {
		if t := m[1]; t != "" {
			sb.WriteString(html.UnescapeString(t))
			sb.WriteString("\n")
		}
	}
	return collapseNewlines(sb.String())
}
