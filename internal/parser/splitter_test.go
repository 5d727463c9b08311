package parser_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-chatbot/internal/models"
	"rag-chatbot/internal/parser"
)

const prose = `Retrieval augmented generation pairs a search step with a language model. The search step finds passages related to the question.

The passages are placed into a prompt. The model reads them and writes a short answer. When the passages do not contain the answer, the model should say so instead of guessing.
Each passage is a window of text cut from the source document. Windows overlap a little so that a sentence split across a boundary still appears whole in one of them.

Smaller windows make retrieval more precise, while larger windows give the model more context to work with. A window of a few hundred characters is a common compromise.`

func TestNewSplitterRejectsBadParameters(t *testing.T) {
	for _, p := range [][2]int{{0, 0}, {-5, 0}, {100, -1}, {100, 100}, {100, 150}} {
		_, err := parser.NewSplitter(p[0], p[1])
		assert.ErrorIs(t, err, models.ErrChunk, "size %d overlap %d", p[0], p[1])
	}
}

func TestSplitTextRespectsChunkSize(t *testing.T) {
	for _, p := range [][2]int{{40, 0}, {80, 10}, {120, 30}, {500, 50}, {60, 59}} {
		s, err := parser.NewSplitter(p[0], p[1])
		require.NoError(t, err)

		chunks, err := s.SplitText(prose)
		require.NoError(t, err)
		require.NotEmpty(t, chunks)

		for _, c := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(c), p[0], "size %d overlap %d: %q", p[0], p[1], c)
			assert.NotEmpty(t, c)
		}
	}
}

func TestSplitTextCoversSource(t *testing.T) {
	s, err := parser.NewSplitter(120, 20)
	require.NoError(t, err)

	chunks, err := s.SplitText(prose)
	require.NoError(t, err)

	for _, word := range strings.Fields(prose) {
		word = strings.Trim(word, ".,")
		found := false
		for _, c := range chunks {
			if strings.Contains(c, word) {
				found = true
				break
			}
		}
		assert.True(t, found, "word %q lost during splitting", word)
	}
}

func TestSplitTextCharacterOverlapIsExact(t *testing.T) {
	s, err := parser.NewSplitter(10, 3)
	require.NoError(t, err)

	chunks, err := s.SplitText("abcdefghijklmnopqrstuvwxyz")
	require.NoError(t, err)

	assert.Equal(t, []string{"abcdefghij", "hijklmnopq", "opqrstuvwx", "vwxyz"}, chunks)
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		assert.Equal(t, prev[len(prev)-3:], chunks[i][:3])
	}
}

func TestSplitTextOverlapAtWordLevel(t *testing.T) {
	s, err := parser.NewSplitter(30, 10)
	require.NoError(t, err)

	chunks, err := s.SplitText("one two three four five six seven eight nine ten eleven twelve")
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prevWords := strings.Fields(chunks[i-1])
		head := strings.Fields(chunks[i])[0]
		assert.Contains(t, prevWords, head, "chunk %d should start inside the previous chunk", i)
	}
}

func TestSplitTextShortAndEmpty(t *testing.T) {
	s, err := parser.NewSplitter(500, 50)
	require.NoError(t, err)

	chunks, err := s.SplitText("A short note. Only two sentences.")
	require.NoError(t, err)
	assert.Equal(t, []string{"A short note. Only two sentences."}, chunks)

	chunks, err = s.SplitText("")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplitTextLongWordFallsBackToCharacters(t *testing.T) {
	s, err := parser.NewSplitter(8, 2)
	require.NoError(t, err)

	chunks, err := s.SplitText("tiny supercalifragilistic word")
	require.NoError(t, err)

	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 8, c)
	}
}

func TestSplitPagesKeepsPageMetadata(t *testing.T) {
	s, err := parser.NewSplitter(60, 10)
	require.NoError(t, err)

	doc := &models.Document{
		Source: "cv.pdf",
		Pages: []models.Page{
			{Source: "cv.pdf", Number: 1, Text: "Short first page."},
			{Source: "cv.pdf", Number: 3, Text: "The third page is long enough to be split into more than one chunk of text."},
		},
	}

	chunks, err := s.SplitPages(doc)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2)

	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, "Short first page.", chunks[0].Text)
	ids := map[string]bool{}
	for i, c := range chunks {
		assert.Equal(t, i, c.Seq)
		assert.Equal(t, "cv.pdf", c.Source)
		assert.NotEmpty(t, c.ID)
		assert.False(t, ids[c.ID], "duplicate chunk id")
		ids[c.ID] = true
		if i > 0 {
			assert.Equal(t, 3, c.Page)
		}
	}
}

func TestSplitPagesEmptyDocument(t *testing.T) {
	s, err := parser.NewSplitter(500, 50)
	require.NoError(t, err)

	chunks, err := s.SplitPages(&models.Document{Source: "x.pdf"})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
