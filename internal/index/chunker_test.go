package index

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEmpty(t *testing.T) {
	assert.Nil(t, Split("", 100, 20))
	assert.Nil(t, Split("   \n\n  ", 100, 20))
}

func TestSplitShortText(t *testing.T) {
	pieces := Split("just one small piece", 100, 20)
	require.Len(t, pieces, 1)
	assert.Equal(t, "just one small piece", pieces[0].Text)
	assert.Equal(t, 0, pieces[0].Start)
}

func TestSplitOverlap(t *testing.T) {
	text := strings.Repeat("abcdefghij", 30) // 300 runes, no break points
	pieces := Split(text, 100, 20)

	require.Greater(t, len(pieces), 2)
	for i := 1; i < len(pieces); i++ {
		assert.Equal(t, pieces[i-1].End-20, pieces[i].Start,
			"piece %d must start overlap runes before the previous end", i)
	}
}

func TestSplitPrefersParagraphBreak(t *testing.T) {
	para1 := strings.Repeat("x", 85)
	para2 := strings.Repeat("y", 200)
	text := para1 + "\n\n" + para2

	pieces := Split(text, 100, 0)

	require.NotEmpty(t, pieces)
	assert.Equal(t, para1, pieces[0].Text, "first piece should end at the paragraph break")
}

func TestSplitPrefersSentenceBreak(t *testing.T) {
	sentence := strings.Repeat("w", 88) + ". "
	text := sentence + strings.Repeat("z", 200)

	pieces := Split(text, 100, 0)

	require.NotEmpty(t, pieces)
	assert.Equal(t, strings.Repeat("w", 88)+".", pieces[0].Text)
}

func TestSplitHardCutWithoutBreaks(t *testing.T) {
	text := strings.Repeat("k", 250)
	pieces := Split(text, 100, 0)

	require.Len(t, pieces, 3)
	assert.Len(t, pieces[0].Text, 100)
	assert.Len(t, pieces[1].Text, 100)
	assert.Len(t, pieces[2].Text, 50)
}

func TestSplitMakesProgressWithLargeOverlap(t *testing.T) {
	// Overlap >= size would loop forever without the progress guard; the
	// constructor clamps it, but Split itself must also terminate.
	pieces := Split(strings.Repeat("m", 50), 10, 9)
	require.NotEmpty(t, pieces)

	last := -1
	for _, p := range pieces {
		assert.Greater(t, p.Start, last)
		last = p.Start
	}
}

func TestSplitOffsetsDelimitTrimmedText(t *testing.T) {
	text := "  " + strings.Repeat("a", 80) + "\n\n   " + strings.Repeat("b", 120) + "  \n"
	pieces := Split(text, 100, 0)

	require.NotEmpty(t, pieces)
	runes := []rune(text)
	for _, p := range pieces {
		assert.Equal(t, p.Text, string(runes[p.Start:p.End]),
			"offsets must delimit exactly the stored text, not the padded window")
	}
}

func TestSplitUnicodeOffsets(t *testing.T) {
	text := strings.Repeat("日本語テキスト例文あり", 20) // 200 runes
	pieces := Split(text, 90, 10)

	require.Greater(t, len(pieces), 1)
	runes := []rune(text)
	for _, p := range pieces {
		assert.Equal(t, strings.TrimSpace(string(runes[p.Start:p.End])), p.Text,
			"offsets must be rune positions, not byte positions")
	}
}
