package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Dataset {
	return Dataset{
		Title:   "Activity log",
		Headers: []string{"Type", "Title"},
		Rows: []map[string]string{
			{"Type": "STAFF_HIRED", "Title": "New staff member hired"},
			{"Type": "STUDENT_UPDATED", "Title": "Student information, updated"},
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("PDF")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestCSVRender(t *testing.T) {
	out, err := NewCSVRenderer().Render(sample())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Type,Title", lines[0])
	assert.Equal(t, `STUDENT_UPDATED,"Student information, updated"`, lines[2])
}

func TestPDFRender(t *testing.T) {
	out, err := RendererFor(FormatPDF).Render(sample())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVRenderer().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewPDFRenderer().Render(Dataset{})
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("a", 100)
	assert.Len(t, []rune(truncate(long)), maxCellText)
	assert.Equal(t, "short", truncate("short"))
}
