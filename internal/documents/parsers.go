package documents

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	xast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	xtransform "golang.org/x/text/transform"

	"zerorag/internal/apperrors"
)

// parsedDocument is the normalized text plus light structural metadata a
// parser extracts before chunking.
type parsedDocument struct {
	Text        string
	Encoding    string
	HasTables   bool
	HasLinks    bool
	LineCount   int
	ColumnTypes map[string]string
}

// detectAndDecode decodes raw bytes to UTF-8 text, honoring the "Plain
// text: decoded with detected encoding; replacement on decode errors."
// utf8.Valid covers the overwhelming majority of real uploads; anything
// else is assumed windows-1252 (the common legacy fallback) and
// transcoded with the unicode replacement character standing in for
// undecodable bytes.
func detectAndDecode(raw []byte) (string, string) {
	if utf8.Valid(raw) {
		trimmed := stripBOM(raw)
		return string(trimmed), "utf-8"
	}
	decoded, _, err := xtransform.Bytes(charmap.Windows1252.NewDecoder(), raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "�"), "windows-1252 (partial)"
	}
	return string(decoded), "windows-1252"
}

func stripBOM(raw []byte) []byte {
	bomDecoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	decoded, _, err := xtransform.Bytes(bomDecoder, raw)
	if err != nil {
		return raw
	}
	return decoded
}

// parsePlainText is the identity parser: decode, keep as-is.
func parsePlainText(raw []byte) (parsedDocument, error) {
	txt, enc := detectAndDecode(raw)
	return parsedDocument{Text: txt, Encoding: enc, LineCount: strings.Count(txt, "\n") + 1}, nil
}

// parseCSV flattens each row as `col=val` pairs, preserving
// the header for column names and detecting column types for metadata
// only (the detected type never changes how the row is flattened).
func parseCSV(raw []byte) (parsedDocument, error) {
	txt, enc := detectAndDecode(raw)
	reader := csv.NewReader(strings.NewReader(txt))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return parsedDocument{}, apperrors.Validation("csv: %v", err)
	}
	if len(records) == 0 {
		return parsedDocument{Text: "", Encoding: enc}, nil
	}

	header := records[0]
	columnTypes := make(map[string]string, len(header))
	var sb strings.Builder
	for _, row := range records[1:] {
		pairs := make([]string, 0, len(row))
		for i, val := range row {
			col := fmt.Sprintf("col_%d", i)
			if i < len(header) {
				col = header[i]
			}
			pairs = append(pairs, fmt.Sprintf("%s=%s", col, val))
			if _, seen := columnTypes[col]; !seen || columnTypes[col] == "string" {
				columnTypes[col] = detectColumnType(val)
			}
		}
		sb.WriteString(strings.Join(pairs, "; "))
		sb.WriteString("\n")
	}
	return parsedDocument{Text: sb.String(), Encoding: enc, LineCount: len(records) - 1, ColumnTypes: columnTypes}, nil
}

// detectColumnType classifies a CSV column value for metadata purposes
// only; it never influences flattening.
func detectColumnType(value string) string {
	if value == "" {
		return "string"
	}
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return "integer"
	}
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		return "float"
	}
	if _, err := time.Parse(time.RFC3339, value); err == nil {
		return "date"
	}
	if _, err := time.Parse("2006-01-02", value); err == nil {
		return "date"
	}
	return "string"
}

// parseMarkdown walks the goldmark AST and flattens headers, lists,
// tables, and inline code/links to plain text.
func parseMarkdown(raw []byte) (parsedDocument, error) {
	txt, enc := detectAndDecode(raw)
	source := []byte(txt)

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(source))

	var sb strings.Builder
	var hasTables, hasLinks bool

	var walk func(n ast.Node, listDepth int)
	walk = func(n ast.Node, listDepth int) {
		switch node := n.(type) {
		case *ast.Heading:
			sb.WriteString(strings.Repeat("#", node.Level) + " ")
			writeInline(&sb, node, source)
			sb.WriteString("\n\n")
			return
		case *ast.Paragraph:
			writeInline(&sb, node, source)
			sb.WriteString("\n\n")
			return
		case *ast.List:
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				walk(c, listDepth+1)
			}
			return
		case *ast.ListItem:
			sb.WriteString(strings.Repeat("  ", listDepth-1) + "- ")
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				writeInline(&sb, c, source)
			}
			sb.WriteString("\n")
			return
		case *ast.Link:
			hasLinks = true
		case *ast.AutoLink:
			hasLinks = true
		case *xast.Table:
			hasTables = true
			writeTable(&sb, node, source)
			return
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walk(c, listDepth)
		}
	}
	walk(doc, 0)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n.(type) {
		case *ast.Link, *ast.AutoLink:
			hasLinks = true
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})

	return parsedDocument{
		Text:      strings.TrimSpace(sb.String()),
		Encoding:  enc,
		HasTables: hasTables,
		HasLinks:  hasLinks,
		LineCount: strings.Count(txt, "\n") + 1,
	}, nil
}

func writeInline(sb *strings.Builder, n ast.Node, source []byte) {
	switch node := n.(type) {
	case *ast.Text:
		sb.Write(node.Segment.Value(source))
	case *ast.CodeSpan:
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			writeInline(sb, c, source)
		}
	case *ast.Link:
		writeInlineChildren(sb, node, source)
		sb.WriteString(" (" + string(node.Destination) + ")")
	default:
		writeInlineChildren(sb, n, source)
	}
}

func writeInlineChildren(sb *strings.Builder, n ast.Node, source []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		writeInline(sb, c, source)
	}
}

// writeTable serializes a markdown table row-wise with headers.
func writeTable(sb *strings.Builder, table *xast.Table, source []byte) {
	var header []string
	for c := table.FirstChild(); c != nil; c = c.NextSibling() {
		switch row := c.(type) {
		case *xast.TableHeader:
			header = tableCells(row, source)
			sb.WriteString(strings.Join(header, " | ") + "\n")
		case *xast.TableRow:
			cells := tableCells(row, source)
			pairs := make([]string, 0, len(cells))
			for i, val := range cells {
				col := fmt.Sprintf("col_%d", i)
				if i < len(header) {
					col = header[i]
				}
				pairs = append(pairs, col+"="+val)
			}
			sb.WriteString(strings.Join(pairs, "; ") + "\n")
		}
	}
	sb.WriteString("\n")
}

func tableCells(n ast.Node, source []byte) []string {
	var cells []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		var sb strings.Builder
		writeInline(&sb, c, source)
		cells = append(cells, strings.TrimSpace(sb.String()))
	}
	return cells
}
