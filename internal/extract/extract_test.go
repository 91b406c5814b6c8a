package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestExtractTextPassthrough(t *testing.T) {
	content := "meeting notes\nsecond line\n"
	path := writeFile(t, "notes.txt", content)

	r := NewRegistry()
	got, err := r.ExtractText(path)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestExtractTextCaseInsensitiveExtension(t *testing.T) {
	path := writeFile(t, "README.MD", "# title\n")

	r := NewRegistry()
	got, err := r.ExtractText(path)
	require.NoError(t, err)
	assert.Equal(t, "# title\n", got)
}

func TestExtractTextUnsupportedFormat(t *testing.T) {
	path := writeFile(t, "data.xyz", "whatever")

	r := NewRegistry()
	_, err := r.ExtractText(path)
	var unsupported *UnsupportedFormatError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "xyz", unsupported.Ext)
}

func TestExtractTextRejectsInvalidUTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.txt")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xfe, 0x41}, 0o600))

	r := NewRegistry()
	_, err := r.ExtractText(path)
	assert.ErrorContains(t, err, "not valid UTF-8")
}

func TestRegisterCustomStrategy(t *testing.T) {
	path := writeFile(t, "report.rst", "restructured")

	r := NewRegistry()
	r.Register(".rst", extractRaw)
	got, err := r.ExtractText(path)
	require.NoError(t, err)
	assert.Equal(t, "restructured", got)
}

func TestExtractCSVRendersAlignedTable(t *testing.T) {
	path := writeFile(t, "data.csv", "name,amount\nalice,10\nbobby,2500\n")

	r := NewRegistry()
	got, err := r.ExtractText(path)
	require.NoError(t, err)
	assert.Equal(t, "name   amount\nalice  10\nbobby  2500", got)
}

func TestDocxXMLToMarkdownHeadingsAndRuns(t *testing.T) {
	content := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:pPr><w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t>Background</w:t></w:r></w:p>` +
		`<w:p><w:r><w:rPr><w:b/></w:rPr><w:t>bold</w:t></w:r><w:r><w:t> and </w:t></w:r>` +
		`<w:r><w:rPr><w:i/><w:u w:val="single"/></w:rPr><w:t>styled</w:t></w:r></w:p>` +
		`<w:p><w:pPr><w:pStyle w:val="ListParagraph"/></w:pPr><w:r><w:t>first item</w:t></w:r></w:p>` +
		`</w:body></w:document>`

	got := docxXMLToMarkdown(content)
	assert.Equal(t, "## Background\n\n**bold** and _*styled*_\n\n- first item", got)
}

func TestDocxXMLToMarkdownIgnoresDisabledRunProps(t *testing.T) {
	content := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:r><w:rPr><w:b w:val="false"/></w:rPr><w:t>plain</w:t></w:r></w:p>` +
		`</w:body></w:document>`

	assert.Equal(t, "plain", docxXMLToMarkdown(content))
}
