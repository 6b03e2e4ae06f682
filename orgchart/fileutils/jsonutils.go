package fileutils

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var fencedJSON = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// ExtractFencedJSON returns the body of the first ```json fenced block in s, or s unchanged
// when there is none.
func ExtractFencedJSON(s string) string {
	if m := fencedJSON.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

// DecodeModelJSON unmarshals JSON from a model response. It prefers a ```json fenced block,
// then the whole text, then the outermost {...} span, since models sometimes wrap the
// object in prose.
func DecodeModelJSON(outputText string, v any) error {
	s := strings.TrimSpace(ExtractFencedJSON(outputText))
	if s == "" {
		return io.ErrUnexpectedEOF
	}

	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end <= start {
		return fmt.Errorf("no JSON object found in model output (len=%d)", len(s))
	}

	sub := s[start : end+1]
	if err := json.Unmarshal([]byte(sub), v); err != nil {
		return fmt.Errorf("failed to unmarshal extracted JSON (len=%d): %w", len(sub), err)
	}
	return nil
}
