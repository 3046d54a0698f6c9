package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"pdf-rag/internal/models"
)

const defaultPageNumber = 1

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")

	xmlParagraphRe = regexp.MustCompile(`</w:p>`)
	xmlTagRe       = regexp.MustCompile(`<[^>]+>`)
	blankLinesRe   = regexp.MustCompile(`\n{3,}`)
)

// NewLoader picks a loader by file extension. PDF is the primary format;
// DOCX, spreadsheets, Markdown and plain text are accepted for
// single-document ingestion too.
func NewLoader(filePath string) (documentloaders.Loader, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		return NewPDFLoader(filePath), nil
	case ".docx":
		return &DocxLoader{path: filePath}, nil
	case ".xlsx":
		return &XLSXLoader{path: filePath}, nil
	case ".ods":
		return &ODSLoader{path: filePath}, nil
	case ".md", ".markdown":
		return &MarkdownLoader{path: filePath}, nil
	case ".txt":
		return &TextLoader{path: filePath}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// PDFLoader yields one document per non-empty page.
type PDFLoader struct {
	path string
}

var _ documentloaders.Loader = (*PDFLoader)(nil)

func NewPDFLoader(path string) *PDFLoader {
	return &PDFLoader{path: path}
}

func (l *PDFLoader) Load(ctx context.Context) (docs []schema.Document, err error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Get file size for reader initialization
	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	// ledongthuc/pdf panics on some malformed streams
	defer func() {
		if r := recover(); r != nil {
			docs, err = nil, fmt.Errorf("read pdf %s: %v", l.path, r)
		}
	}()

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("read pdf %s: %w", l.path, err)
	}

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		docs = append(docs, newDocument(pageText, l.path, i))
	}
	return docs, nil
}

func (l *PDFLoader) LoadAndSplit(ctx context.Context, splitter textsplitter.TextSplitter) ([]schema.Document, error) {
	return loadAndSplit(ctx, l, splitter)
}

// DocxLoader reads the body text of a Word document as a single page.
type DocxLoader struct {
	path string
}

func (l *DocxLoader) Load(_ context.Context) ([]schema.Document, error) {
	r, err := docx.ReadDocxFile(l.path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	content := docxText(r.Editable().GetContent())
	if content == "" {
		return nil, nil
	}
	return []schema.Document{newDocument(content, l.path, defaultPageNumber)}, nil
}

func (l *DocxLoader) LoadAndSplit(ctx context.Context, splitter textsplitter.TextSplitter) ([]schema.Document, error) {
	return loadAndSplit(ctx, l, splitter)
}

// MarkdownLoader strips Markdown syntax so chunks hold prose only.
type MarkdownLoader struct {
	path string
}

func (l *MarkdownLoader) Load(_ context.Context) ([]schema.Document, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, err
	}
	content := markdownText(data)
	if content == "" {
		return nil, nil
	}
	return []schema.Document{newDocument(content, l.path, defaultPageNumber)}, nil
}

func (l *MarkdownLoader) LoadAndSplit(ctx context.Context, splitter textsplitter.TextSplitter) ([]schema.Document, error) {
	return loadAndSplit(ctx, l, splitter)
}

type TextLoader struct {
	path string
}

func (l *TextLoader) Load(_ context.Context) ([]schema.Document, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	return []schema.Document{newDocument(string(data), l.path, defaultPageNumber)}, nil
}

func (l *TextLoader) LoadAndSplit(ctx context.Context, splitter textsplitter.TextSplitter) ([]schema.Document, error) {
	return loadAndSplit(ctx, l, splitter)
}

func newDocument(content, source string, page int) schema.Document {
	return schema.Document{
		PageContent: content,
		Metadata: map[string]any{
			models.MetaSource: source,
			models.MetaPage:   page,
		},
	}
}

func loadAndSplit(ctx context.Context, l documentloaders.Loader, splitter textsplitter.TextSplitter) ([]schema.Document, error) {
	docs, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}
	return SplitDocuments(splitter, docs)
}

// extract paragraph text from word/document.xml
func docxText(xmlContent string) string {
	content := xmlParagraphRe.ReplaceAllString(xmlContent, "\n")
	content = xmlTagRe.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	return strings.TrimSpace(blankLinesRe.ReplaceAllString(content, "\n\n"))
}

// markdownText walks the goldmark AST and keeps the literal text, separating
// blocks with blank lines.
func markdownText(source []byte) string {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument {
				buf.WriteString("\n\n")
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.AutoLink:
			buf.Write(node.Label(source))
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(source))
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(blankLinesRe.ReplaceAllString(buf.String(), "\n\n"))
}
