package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePaper() map[string]string {
	return map[string]string{
		"abstract":     "We study things.",
		"introduction": "Things matter.",
		"methodology":  "We measured.",
		"conclusion":   "Things were studied.",
	}
}

func TestMarkdownOrderAndSkips(t *testing.T) {
	out, err := Render("A Study", samplePaper(), FormatMarkdown)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "# A Study\n"))
	assert.Contains(t, out, "## Abstract")
	assert.Contains(t, out, "## Methodology")
	assert.NotContains(t, out, "## Results")
	assert.NotContains(t, out, "## Literature Review")

	// Sections appear in canonical order regardless of map iteration.
	assert.Less(t, strings.Index(out, "## Abstract"), strings.Index(out, "## Introduction"))
	assert.Less(t, strings.Index(out, "## Introduction"), strings.Index(out, "## Methodology"))
	assert.Less(t, strings.Index(out, "## Methodology"), strings.Index(out, "## Conclusion"))
}

func TestTextFormat(t *testing.T) {
	out, err := Render("A Study", samplePaper(), FormatText)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "A Study\n=======\n"))
	assert.Contains(t, out, "Abstract\n--------\n")
	assert.NotContains(t, out, "##")
}

func TestRenderDeterministic(t *testing.T) {
	paper := samplePaper()
	first, err := Render("Title", paper, FormatMarkdown)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Render("Title", paper, FormatMarkdown)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRenderEmptySectionSkipped(t *testing.T) {
	out, err := Render("T", map[string]string{"abstract": "", "results": "data"}, FormatMarkdown)
	require.NoError(t, err)
	assert.NotContains(t, out, "## Abstract")
	assert.Contains(t, out, "## Results")
}

func TestRenderNoTitle(t *testing.T) {
	out, err := Render("", map[string]string{"abstract": "x"}, FormatMarkdown)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "\n## Abstract"))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"":         FormatMarkdown,
		"markdown": FormatMarkdown,
		"md":       FormatMarkdown,
		"text":     FormatText,
		"txt":      FormatText,
		"plain":    FormatText,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, "input %q", in)
	}

	_, err := ParseFormat("docx")
	assert.Error(t, err)
}

func TestFormatMetadata(t *testing.T) {
	assert.Equal(t, "md", FormatMarkdown.Extension())
	assert.Equal(t, "txt", FormatText.Extension())
	assert.Contains(t, FormatMarkdown.ContentType(), "markdown")
	assert.Contains(t, FormatText.ContentType(), "plain")
}
