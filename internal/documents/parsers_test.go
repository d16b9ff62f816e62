package documents

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlainTextDecodesUTF8(t *testing.T) {
	doc, err := parsePlainText([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", doc.Text)
	assert.Equal(t, "utf-8", doc.Encoding)
}

func TestParseCSVFlattensRowsAsColValPairs(t *testing.T) {
	csvData := "name,age\nAlice,30\nBob,25\n"
	doc, err := parseCSV([]byte(csvData))
	require.NoError(t, err)
	assert.Contains(t, doc.Text, "name=Alice; age=30")
	assert.Contains(t, doc.Text, "name=Bob; age=25")
}

func TestParseCSVRecordsColumnTypesInMetadata(t *testing.T) {
	csvData := "name,age,signup\nAlice,30,2024-01-15\nBob,25,2024-02-01\n"
	doc, err := parseCSV([]byte(csvData))
	require.NoError(t, err)
	assert.Equal(t, "string", doc.ColumnTypes["name"])
	assert.Equal(t, "integer", doc.ColumnTypes["age"])
	assert.Equal(t, "date", doc.ColumnTypes["signup"])
}

func TestDetectColumnTypeClassifiesValues(t *testing.T) {
	assert.Equal(t, "integer", detectColumnType("42"))
	assert.Equal(t, "float", detectColumnType("3.14"))
	assert.Equal(t, "date", detectColumnType("2024-01-15"))
	assert.Equal(t, "string", detectColumnType("hello"))
}

func TestParseMarkdownFlattensHeadersAndLists(t *testing.T) {
	md := "# Title\n\nSome text.\n\n- item one\n- item two\n"
	doc, err := parseMarkdown([]byte(md))
	require.NoError(t, err)
	assert.Contains(t, doc.Text, "# Title")
	assert.Contains(t, doc.Text, "- item one")
}

func TestParseMarkdownDetectsLinks(t *testing.T) {
	md := "See [the docs](https://example.com/docs) for details."
	doc, err := parseMarkdown([]byte(md))
	require.NoError(t, err)
	assert.True(t, doc.HasLinks)
	assert.True(t, strings.Contains(doc.Text, "example.com"))
}

func TestParseMarkdownSerializesTables(t *testing.T) {
	md := "| Name | Age |\n| --- | --- |\n| Alice | 30 |\n"
	doc, err := parseMarkdown([]byte(md))
	require.NoError(t, err)
	assert.True(t, doc.HasTables)
	assert.Contains(t, doc.Text, "Name=Alice")
}
