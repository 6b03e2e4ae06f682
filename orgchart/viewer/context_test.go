package viewer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindContext_ExactMatchKeepsCase(t *testing.T) {
	t.Parallel()

	tr := Transcript{Text: "Hello there.  We have   a Discovery team of 40.\nThanks", Title: "Intro call"}
	c, ok := FindContext("we have a DISCOVERY team", tr, 5)
	require.True(t, ok)
	assert.Equal(t, "...ere. ", c.Before)
	assert.Equal(t, " of 4...", c.After)
	assert.Equal(t, "Intro call", c.CallTitle)
}

func TestFindContext_SpeakerTagFallback(t *testing.T) {
	t.Parallel()

	tr := Transcript{Text: "[Speaker 123]: We run oncology. [Speaker 456]: Great."}
	c, ok := FindContext("We run oncology. Great.", tr, DefaultContextChars)
	require.True(t, ok)
	assert.Equal(t, "", c.Before)
	assert.Equal(t, "", c.After)
}

func TestFindContext_LongQuoteUsesPrefix(t *testing.T) {
	t.Parallel()

	quote := "x" + strings.Repeat("y", 1100)
	tr := Transcript{Text: quote + " tail"}
	c, ok := FindContext(quote, tr, DefaultContextChars)
	require.True(t, ok)
	assert.Equal(t, "", c.Before)
	assert.Equal(t, strings.Repeat("y", 101)+" tail", c.After)
}

func TestFindContext_Misses(t *testing.T) {
	t.Parallel()

	_, ok := FindContext("not here", Transcript{Text: "something else entirely"}, 10)
	assert.False(t, ok)
	_, ok = FindContext("anything", Transcript{}, 10)
	assert.False(t, ok)
	_, ok = FindContext("  ", Transcript{Text: "text"}, 10)
	assert.False(t, ok)
}

func TestLoadTranscripts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("batch_001.json", `{"calls":[{"call_id":"c1","transcript_text":"old","call_title":"One"},{"call_id":"","transcript_text":"x"}]}`)
	write("batch_002.json", `{"calls":[{"call_id":"c1","transcript_text":"new","call_title":"One again"},{"call_id":"c2","transcript_text":"two"}]}`)
	write("notes.json", `not json`)

	got, err := LoadTranscripts(dir)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, Transcript{Text: "new", Title: "One again"}, got["c1"])
	assert.Equal(t, "two", got["c2"].Text)

	missing, err := LoadTranscripts(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestWriteContextFailures(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "gsk", FailuresFile)

	require.NoError(t, WriteContextFailures(path, ContextStats{}, true))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	stats := ContextStats{Total: 1, Failures: []ContextFailure{{CallID: "c9", Quote: "q"}}}
	require.NoError(t, WriteContextFailures(path, stats, true))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"callId": "c9"`)
}
