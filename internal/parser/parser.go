package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gemini-pinecone-rag/internal/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

var slideName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// ParseFile loads the whole file at filePath as a single document. The
// extension picks the loader; the path is kept as the document source.
func ParseFile(ctx context.Context, filePath string) (*models.Document, error) {
	var (
		content string
		err     error
	)

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".txt", "":
		content, err = parseText(ctx, filePath)
	case ".csv":
		content, err = parseCSV(ctx, filePath)
	case ".md", ".markdown":
		content, err = parseMarkdown(filePath)
	case ".html", ".htm":
		content, err = parseHTML(filePath)
	case ".pdf":
		content, err = parsePDF(filePath)
	case ".docx":
		content, err = parseDOCX(filePath)
	case ".pptx":
		content, err = parsePPTX(filePath)
	case ".xlsx":
		content, err = parseXLSX(filePath)
	case ".ods":
		content, err = parseODS(filePath)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", filePath, err)
	}

	return &models.Document{
		Content: content,
		Source:  filePath,
		Metadata: map[string]any{
			models.MetadataSource: filePath,
		},
	}, nil
}

func parseText(ctx context.Context, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	docs, err := documentloaders.NewText(f).Load(ctx)
	if err != nil {
		return "", err
	}
	return joinPages(docs...), nil
}

func joinPages(docs ...schema.Document) string {
	pages := make([]string, 0, len(docs))
	for _, d := range docs {
		pages = append(pages, d.PageContent)
	}
	return strings.Join(pages, models.ContextSeparator)
}

// one "header: value" line per column, rows separated by a blank line
func parseCSV(ctx context.Context, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	docs, err := documentloaders.NewCSV(f).Load(ctx)
	if err != nil {
		return "", err
	}
	return joinPages(docs...), nil
}

func parseMarkdown(filePath string) (string, error) {
	src, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return markdownToText(src)
}

// markdownToText walks the goldmark AST and keeps only the readable text,
// one block per paragraph.
func markdownToText(src []byte) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(src))

	var buf strings.Builder
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument && n.Kind() != ast.KindList {
				endBlock(&buf)
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(src))
			}
			endBlock(&buf)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func endBlock(buf *strings.Builder) {
	s := buf.String()
	if s == "" || strings.HasSuffix(s, "\n\n") {
		return
	}
	if strings.HasSuffix(s, "\n") {
		buf.WriteByte('\n')
		return
	}
	buf.WriteString("\n\n")
}

func parseHTML(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()
	doc.Find("p, div, li, tr, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	var lines []string
	for _, line := range strings.Split(doc.Find("body").Text(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func parsePDF(filePath string) (string, error) {
	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var pages []string
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(pageText) != "" {
			pages = append(pages, pageText)
		}
	}
	return strings.Join(pages, "\n"), nil
}

func parseDOCX(filePath string) (string, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return "", err
	}
	defer r.Close()

	// GetContent returns the raw word/document.xml
	return extractTextFromXML(r.Editable().GetContent())
}

func parsePPTX(filePath string) (string, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, file := range f.File {
		m := slideName.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: num, file: file})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var parts []string
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return "", err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		slideText, err := extractTextFromXML(string(data))
		if err != nil {
			return "", fmt.Errorf("slide %d: %w", s.num, err)
		}
		if slideText != "" {
			parts = append(parts, slideText)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func parseXLSX(filePath string) (string, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var out strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return "", fmt.Errorf("sheet %s: %w", sheetName, err)
		}
		if out.Len() > 0 {
			out.WriteString("\n")
		}
		out.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))
		for _, row := range rows {
			out.WriteString(strings.Join(row, "\t"))
			out.WriteString("\n")
		}
	}
	return strings.TrimSpace(out.String()), nil
}

// parseODS reads content.xml of an OpenDocument spreadsheet into the same
// layout as parseXLSX. Trailing empty cells and rows are dropped, which also
// keeps huge number-*-repeated runs of blanks from being expanded.
func parseODS(filePath string) (string, error) {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return "", err
	}
	defer zr.Close()

	var content *zip.File
	for _, f := range zr.File {
		if f.Name == "content.xml" {
			content = f
			break
		}
	}
	if content == nil {
		return "", errors.New("content.xml not found")
	}
	rc, err := content.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var (
		out         strings.Builder
		row         []string
		pendingCols int
		pendingRows int
		rowRepeat   int
		cellRepeat  int
		cell        strings.Builder
		inCell      bool
		cellParas   int
	)
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "table":
				if out.Len() > 0 {
					out.WriteString("\n")
				}
				out.WriteString(fmt.Sprintf("Sheet: %s\n", xmlAttr(t, "name")))
				pendingRows = 0
			case "table-row":
				row, pendingCols = row[:0], 0
				rowRepeat = repeatAttr(t, "number-rows-repeated")
			case "table-cell", "covered-table-cell":
				cell.Reset()
				inCell, cellParas = true, 0
				cellRepeat = repeatAttr(t, "number-columns-repeated")
			case "p":
				if inCell && cellParas > 0 {
					cell.WriteByte(' ')
				}
				cellParas++
			case "s":
				if inCell {
					cell.WriteString(strings.Repeat(" ", repeatAttr(t, "c")))
				}
			case "tab", "line-break":
				if inCell {
					cell.WriteByte(' ')
				}
			}
		case xml.CharData:
			if inCell {
				cell.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "table-cell", "covered-table-cell":
				inCell = false
				value := strings.TrimSpace(cell.String())
				if value == "" {
					pendingCols += cellRepeat
					continue
				}
				for ; pendingCols > 0; pendingCols-- {
					row = append(row, "")
				}
				for i := 0; i < cellRepeat; i++ {
					row = append(row, value)
				}
			case "table-row":
				if len(row) == 0 {
					pendingRows += rowRepeat
					continue
				}
				out.WriteString(strings.Repeat("\n", pendingRows))
				pendingRows = 0
				line := strings.Join(row, "\t")
				for i := 0; i < rowRepeat; i++ {
					out.WriteString(line)
					out.WriteString("\n")
				}
			}
		}
	}
	return strings.TrimSpace(out.String()), nil
}

func xmlAttr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// repeatAttr reads a repeat count attribute; missing or invalid means 1.
func repeatAttr(el xml.StartElement, local string) int {
	n, err := strconv.Atoi(xmlAttr(el, local))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// extractTextFromXML collects the character data of OOXML text runs (w:t in
// Word, a:t in PowerPoint) and ends a line at every paragraph.
func extractTextFromXML(xmlContent string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(xmlContent))

	var (
		buf    bytes.Buffer
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				buf.WriteByte('\t')
			case "br":
				buf.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				buf.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				buf.Write(t)
			}
		}
	}

	var lines []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}
