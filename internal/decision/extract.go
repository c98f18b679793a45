package decision

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const snippetLimit = 200

// markerPattern matches the section marker models are told to put before
// the decision payload, e.g. "DECISION_JSON:" or "DECISION:".
var markerPattern = regexp.MustCompile(`\bDECISION(?:_JSON)?\s*:`)

// Extractor recovers one Decision from free-form model output.
type Extractor struct {
	Validator Validator
}

var defaultExtractor Extractor

// Extract runs the default Extractor over text.
func Extract(text string) (Decision, error) {
	return defaultExtractor.Extract(text)
}

// candidate is one brace-balanced block found in the text
type candidate struct {
	start, end int
	raw        string
	closed     bool
	value      map[string]any
	err        error
}

func (c candidate) wellFormed() bool {
	return c.closed && c.err == nil && c.value != nil
}

// Extract locates the decision payload in text, decodes it and validates it.
//
// Candidate objects are found by brace matching, so nested braces inside
// args or braces inside string literals do not cut a payload short. When a
// DECISION marker is present the last well-formed object after the last
// marker wins; without a marker the text must contain exactly one distinct
// well-formed object. A stray brace in the prose does not swallow the
// objects that follow it.
func (e Extractor) Extract(text string) (Decision, error) {
	cands := collect(text, 0)
	if markerEnd := lastMarkerEnd(text); markerEnd >= 0 && !anyStartsFrom(cands, markerEnd) {
		// a block opened before the marker ran over it
		cands = append(cands, collect(text[markerEnd:], markerEnd)...)
	}
	if len(cands) == 0 {
		return Decision{}, &ExtractionError{Kind: NoJSONFound, Snippet: tail(text)}
	}

	chosen, err := choose(text, cands)
	if err != nil {
		return Decision{}, err
	}
	return e.Validator.Validate(chosen.value)
}

func choose(text string, cands []candidate) (candidate, error) {
	markerEnd := lastMarkerEnd(text)

	var wellFormed []candidate
	for _, c := range cands {
		if c.wellFormed() {
			wellFormed = append(wellFormed, c)
		}
	}

	if len(wellFormed) == 0 {
		preferred := cands[len(cands)-1]
		if markerEnd >= 0 {
			for _, c := range cands {
				if c.start >= markerEnd {
					preferred = c
					break
				}
			}
		}
		return candidate{}, &ExtractionError{
			Kind:       MalformedJSON,
			ParseError: preferred.err,
			Candidates: len(cands),
			Snippet:    snippet(preferred.raw),
		}
	}

	if markerEnd >= 0 {
		for i := len(wellFormed) - 1; i >= 0; i-- {
			if wellFormed[i].start >= markerEnd {
				return wellFormed[i], nil
			}
		}
		// marker without a payload after it: the last object in the text is the answer
		return wellFormed[len(wellFormed)-1], nil
	}

	distinct := make(map[string]struct{}, len(wellFormed))
	for _, c := range wellFormed {
		distinct[strings.TrimSpace(c.raw)] = struct{}{}
	}
	if len(distinct) > 1 {
		return candidate{}, &ExtractionError{
			Kind:       NoMarkerAndAmbiguous,
			Candidates: len(distinct),
			Snippet:    snippet(wellFormed[len(wellFormed)-1].raw),
		}
	}
	return wellFormed[len(wellFormed)-1], nil
}

func (c *candidate) decode() {
	if !c.closed {
		c.err = fmt.Errorf("unterminated JSON object starting at offset %d", c.start)
		return
	}
	var value map[string]any
	if err := json.Unmarshal([]byte(c.raw), &value); err != nil {
		c.err = err
		return
	}
	c.value = value
}

// collect scans text and decodes every candidate. offset is the position
// of text inside the full model output. A broken block that opens like
// prose rather than JSON ("{ but never closes") is rescanned from the
// character after its brace, and the objects found inside replace it.
func collect(text string, offset int) []candidate {
	var out []candidate
	for _, c := range scanObjects(text) {
		c.start += offset
		c.end += offset
		c.decode()
		if !c.wellFormed() && opensLikeProse(c.raw) {
			if nested := collect(c.raw[1:], c.start+1); len(nested) > 0 {
				out = append(out, nested...)
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// opensLikeProse reports whether the first thing after the opening brace
// cannot start a JSON (or single-quoted) key
func opensLikeProse(raw string) bool {
	rest := strings.TrimLeft(raw[1:], " \t\r\n")
	if rest == "" {
		return false
	}
	switch rest[0] {
	case '"', '\'', '}':
		return false
	default:
		return true
	}
}

func anyStartsFrom(cands []candidate, pos int) bool {
	for _, c := range cands {
		if c.start >= pos {
			return true
		}
	}
	return false
}

// scanObjects returns every top-level brace-balanced block in text. String
// literals are tracked only inside a block, so apostrophes and quotes in
// surrounding prose do not confuse the scan. A block still open at the end
// of the text is returned with closed=false.
func scanObjects(text string) []candidate {
	var (
		out      []candidate
		depth    int
		start    int
		inString bool
		escaped  bool
	)
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if depth == 0 {
			if ch == '{' {
				depth = 1
				start = i
				inString = false
				escaped = false
			}
			continue
		}

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				out = append(out, candidate{start: start, end: i + 1, raw: text[start : i+1], closed: true})
			}
		}
	}
	if depth > 0 {
		out = append(out, candidate{start: start, end: len(text), raw: text[start:], closed: false})
	}
	return out
}

func lastMarkerEnd(text string) int {
	locs := markerPattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return -1
	}
	return locs[len(locs)-1][1]
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= snippetLimit {
		return s
	}
	return s[:snippetLimit] + "..."
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= snippetLimit {
		return s
	}
	return "..." + s[len(s)-snippetLimit:]
}
