package viewer

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart/fileutils"
)

const (
	// DefaultContextChars is how much transcript text is shown on each side of a quote.
	DefaultContextChars = 1000
	// maxSearchChars bounds how much of a quote is used as the search key.
	maxSearchChars = 1000
	// failureQuoteChars bounds the quote preview kept in the failure report.
	failureQuoteChars = 60
	ellipsis          = "..."
)

// Transcript is one call's text as stored in the enriched batch files.
type Transcript struct {
	Text  string
	Title string
}

type transcriptBatch struct {
	Calls []struct {
		CallID         string `json:"call_id"`
		TranscriptText string `json:"transcript_text"`
		CallTitle      string `json:"call_title"`
	} `json:"calls"`
}

// LoadTranscripts reads every batch_*.json in dir, keyed by call id. A missing dir yields an
// empty map.
func LoadTranscripts(dir string) (map[string]Transcript, error) {
	out := make(map[string]Transcript)
	if !fileutils.FileExists(dir) {
		return out, nil
	}
	paths, err := filepath.Glob(filepath.Join(dir, "batch_*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	for _, p := range paths {
		var b transcriptBatch
		if err := fileutils.ReadJSONFile(p, &b); err != nil {
			return nil, fmt.Errorf("read transcripts %s: %w", filepath.Base(p), err)
		}
		for _, c := range b.Calls {
			if c.CallID == "" {
				continue
			}
			out[c.CallID] = Transcript{Text: c.TranscriptText, Title: c.CallTitle}
		}
	}
	return out, nil
}

// Context is the transcript text surrounding a located quote.
type Context struct {
	Before    string
	After     string
	CallTitle string
}

var (
	whitespaceRun   = regexp.MustCompile(`\s+`)
	speakerTagColon = regexp.MustCompile(`\[Speaker \d+\]:\s*`)
	speakerTag      = regexp.MustCompile(`\[Speaker \d+\]`)
)

// FindContext locates quote inside the transcript and returns up to window characters on either
// side. Matching is case-insensitive over whitespace-collapsed text, first against the raw
// transcript and then with speaker tags removed. The window is cut from the collapsed text
// the match was found in. Ellipses mark a side that stops short of the transcript boundary.
func FindContext(quote string, t Transcript, window int) (Context, bool) {
	if t.Text == "" || strings.TrimSpace(quote) == "" {
		return Context{}, false
	}
	if window < 0 {
		window = 0
	}
	key := []rune(strings.ToLower(collapse(strings.TrimSpace(quote))))
	if len(key) > maxSearchChars {
		key = key[:maxSearchChars]
	}
	needle := string(key)

	text, idx := search(collapse(t.Text), needle)
	if idx < 0 {
		stripped := speakerTag.ReplaceAllString(speakerTagColon.ReplaceAllString(t.Text, ""), "")
		text, idx = search(collapse(stripped), needle)
	}
	if idx < 0 {
		return Context{}, false
	}

	runes := []rune(text)
	at := utf8.RuneCountInString(text[:idx])
	end := at + len(key)
	lo := max(0, at-window)
	hi := min(len(runes), end+window)

	c := Context{
		Before:    string(runes[lo:at]),
		After:     string(runes[end:hi]),
		CallTitle: t.Title,
	}
	if lo > 0 {
		c.Before = ellipsis + c.Before
	}
	if hi < len(runes) {
		c.After += ellipsis
	}
	return c, true
}

// search finds needle in a lowercased view of text. The returned string is the one idx
// indexes into: text itself when lowercasing keeps byte offsets, else its lowercased form.
func search(text, needle string) (string, int) {
	lower := strings.ToLower(text)
	idx := strings.Index(lower, needle)
	if len(lower) != len(text) {
		return lower, idx
	}
	return text, idx
}

func collapse(s string) string {
	return whitespaceRun.ReplaceAllString(s, " ")
}

// ContextFailure records a snippet whose quote could not be placed in its transcript.
type ContextFailure struct {
	CallID string `json:"callId"`
	Quote  string `json:"quote"`
	Reason string `json:"reason,omitempty"`
}

// ContextStats tracks context enrichment across one company.
type ContextStats struct {
	Matched  int
	Total    int
	Failures []ContextFailure
}

// Percent returns the matched share as a whole percentage.
func (s ContextStats) Percent() int {
	return 100 * s.Matched / max(s.Total, 1)
}

func (s *ContextStats) enrich(snip *Snippet, transcripts map[string]Transcript) {
	if s == nil || len(transcripts) == 0 || snip.CallID == "" {
		return
	}
	s.Total++
	t, ok := transcripts[snip.CallID]
	if !ok {
		s.Failures = append(s.Failures, ContextFailure{
			CallID: snip.CallID,
			Quote:  fileutils.Prefix(snip.Quote, failureQuoteChars),
			Reason: "call_id not in transcripts",
		})
		return
	}
	c, found := FindContext(snip.Quote, t, DefaultContextChars)
	if !found {
		s.Failures = append(s.Failures, ContextFailure{
			CallID: snip.CallID,
			Quote:  fileutils.Prefix(snip.Quote, failureQuoteChars),
		})
		return
	}
	snip.ContextBefore = c.Before
	snip.ContextAfter = c.After
	snip.CallTitle = c.CallTitle
	s.Matched++
}

// WriteContextFailures writes the failure list for a company when there is one.
func WriteContextFailures(path string, stats ContextStats, pretty bool) error {
	if len(stats.Failures) == 0 {
		return nil
	}
	return fileutils.WriteJSONFileAtomic(path, stats.Failures, pretty)
}
