package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	docx "github.com/fumiama/go-docx"
	"github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"github.com/inktime/support-backend/internal/platform/logger"
	"github.com/inktime/support-backend/internal/types"
)

// ErrUnsupportedFormat is returned when a file's extension maps to no known
// extractor. It fires before any processing is enqueued.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Segment is one raw extracted text unit: a PDF page, or a whole text file.
// Source is the file path; Position is the segment's ordinal within it.
type Segment struct {
	Text     string
	Source   string
	Position int
}

// Loader turns files on disk into text segments. A single file's extraction
// failure degrades to a raw UTF-8 read before giving up, and never aborts
// sibling files in a directory load.
type Loader struct {
	log *logger.Logger
}

func NewLoader(log *logger.Logger) *Loader {
	return &Loader{log: log.With("service", "DocumentLoader")}
}

// ResolveType maps a file path's extension to a document type.
func ResolveType(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return types.DocTypePDF, nil
	case ".txt":
		return types.DocTypeText, nil
	case ".md", ".markdown":
		return types.DocTypeMarkdown, nil
	case ".docx":
		return types.DocTypeWord, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// LoadFile extracts the segments of a single file of the declared type.
// Empty files yield zero segments and a warning. When the type-specific
// extractor fails, the raw bytes are reinterpreted as UTF-8 text so a
// slightly malformed file still contributes something to the index.
func (l *Loader) LoadFile(path, fileType string) ([]Segment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		l.log.Warn("Skipping empty file", "path", path)
		return nil, nil
	}

	var segments []Segment
	switch fileType {
	case types.DocTypePDF:
		segments, err = l.loadPDF(path)
	case types.DocTypeText:
		segments, err = l.loadText(path)
	case types.DocTypeMarkdown:
		segments, err = l.loadMarkdown(path)
	case types.DocTypeWord:
		segments, err = l.loadWord(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, fileType)
	}
	if err != nil {
		l.log.Warn("Extractor failed, falling back to raw text read",
			"path", path, "file_type", fileType, "error", err)
		return l.loadRaw(path)
	}
	return segments, nil
}

// LoadDir extracts every supported file directly under dir. Unsupported and
// unreadable files are logged and skipped.
func (l *Loader) LoadDir(dir string) ([]Segment, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var segments []Segment
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		fileType, err := ResolveType(path)
		if err != nil {
			l.log.Warn("Skipping unsupported file", "path", path)
			continue
		}
		segs, err := l.LoadFile(path, fileType)
		if err != nil {
			l.log.Error("Failed to load file, skipping", "path", path, "error", err)
			continue
		}
		segments = append(segments, segs...)
	}
	return segments, nil
}

func (l *Loader) loadText(path string) ([]Segment, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		l.log.Warn("Skipping file with no text content", "path", path)
		return nil, nil
	}
	return []Segment{{Text: text, Source: path, Position: 0}}, nil
}

// loadPDF emits one segment per page, matching the page granularity most PDF
// text is organized around.
func (l *Loader) loadPDF(path string) ([]Segment, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var segments []Segment
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			l.log.Warn("Skipping unreadable pdf page", "path", path, "page", i, "error", err)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{Text: text, Source: path, Position: len(segments)})
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("pdf yielded no text")
	}
	return segments, nil
}

func (l *Loader) loadMarkdown(path string) ([]Segment, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := markdownText(raw)
	if text == "" {
		l.log.Warn("Skipping file with no text content", "path", path)
		return nil, nil
	}
	return []Segment{{Text: text, Source: path, Position: 0}}, nil
}

// markdownText renders a markdown document down to its plain text, block
// boundaries preserved as blank lines so the chunker's structural splitter
// still has paragraphs to work with.
func markdownText(src []byte) string {
	root := goldmark.New().Parser().Parse(gmtext.NewReader(src))
	var b strings.Builder
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			switch t := n.(type) {
			case *ast.Text:
				b.Write(t.Segment.Value(src))
				if t.SoftLineBreak() || t.HardLineBreak() {
					b.WriteByte('\n')
				}
			case *ast.FencedCodeBlock:
				writeCodeLines(&b, src, t)
			case *ast.CodeBlock:
				writeCodeLines(&b, src, t)
			}
			return ast.WalkContinue, nil
		}
		if n.Type() == ast.TypeBlock {
			b.WriteString("\n\n")
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(collapseBlankLines(b.String()))
}

func writeCodeLines(b *strings.Builder, src []byte, n ast.Node) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
}

func collapseBlankLines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}

func (l *Loader) loadWord(path string) ([]Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	doc, err := docx.Parse(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	var parts []string
	for _, item := range doc.Document.Body.Items {
		switch block := item.(type) {
		case *docx.Paragraph:
			if text := strings.TrimSpace(block.String()); text != "" {
				parts = append(parts, text)
			}
		case *docx.Table:
			if text := strings.TrimSpace(block.String()); text != "" {
				parts = append(parts, text)
			}
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("docx yielded no text")
	}
	return []Segment{{Text: strings.Join(parts, "\n\n"), Source: path, Position: 0}}, nil
}

// loadRaw is the last-resort extractor: the file's bytes as UTF-8 text with
// invalid sequences dropped.
func (l *Loader) loadRaw(path string) ([]Segment, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(strings.ToValidUTF8(string(raw), ""))
	if text == "" {
		return nil, fmt.Errorf("no readable text in %s", path)
	}
	return []Segment{{Text: text, Source: path, Position: 0}}, nil
}
