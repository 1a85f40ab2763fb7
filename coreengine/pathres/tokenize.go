// Package pathres resolves declarative property paths against the host graph.
//
// A path is a sequence of segments separated by dots. Each segment is an
// identifier, a quoted key in brackets, or an integer index in brackets:
//
//	objects['Cube'].modifiers["GeometryNodes"].show_viewport
//	objects['Cube'].location[0]
//	objects['Cube'].material_slots[-1]
//
// The resolver only walks structure. It never evaluates anything, and the
// first segment must name a whitelisted root collection.
package pathres

import (
	"strconv"
	"strings"
)

// SegmentKind classifies a path segment.
type SegmentKind int

const (
	// SegmentAttr is a plain identifier, e.g. location.
	SegmentAttr SegmentKind = iota
	// SegmentKey is a quoted key, e.g. ['Cube'].
	SegmentKey
	// SegmentIndex is an integer index, e.g. [0] or [-1].
	SegmentIndex
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentAttr:
		return "attribute"
	case SegmentKey:
		return "key"
	case SegmentIndex:
		return "index"
	}
	return "unknown"
}

// Segment is one step of a resolved path.
type Segment struct {
	Kind  SegmentKind
	Name  string // identifier or key
	Index int
}

// String renders the segment in path syntax.
func (s Segment) String() string {
	switch s.Kind {
	case SegmentKey:
		if strings.Contains(s.Name, "'") {
			return `["` + s.Name + `"]`
		}
		return "['" + s.Name + "']"
	case SegmentIndex:
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Name
}

// Format renders segments back into a canonical path.
func Format(segs []Segment) string {
	var b strings.Builder
	for i, s := range segs {
		if s.Kind == SegmentAttr && i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.String())
	}
	return b.String()
}

// =============================================================================
// TOKENIZER
// =============================================================================

type scanState int

const (
	stateStart scanState = iota
	stateAfterSegment
	stateAfterDot
)

// Tokenize splits path into segments. Anything outside the grammar fails
// with a *SyntaxError carrying the byte offset of the problem.
func Tokenize(path string) ([]Segment, error) {
	if path == "" {
		return nil, newSyntaxError(path, 0, "empty path")
	}

	segs := make([]Segment, 0, 4)
	state := stateStart
	pos := 0

	for pos < len(path) {
		c := path[pos]
		switch {
		case c == '.':
			if state != stateAfterSegment {
				return nil, newSyntaxError(path, pos, "empty segment")
			}
			state = stateAfterDot
			pos++

		case c == '[':
			if state == stateAfterDot {
				return nil, newSyntaxError(path, pos, "expected identifier after '.'")
			}
			seg, next, err := scanBracket(path, pos)
			if err != nil {
				return nil, err
			}
			segs = append(segs, seg)
			state = stateAfterSegment
			pos = next

		case isIdentStart(c):
			if state == stateAfterSegment {
				return nil, newSyntaxError(path, pos, "expected '.' or '[' between segments")
			}
			end := pos + 1
			for end < len(path) && isIdentPart(path[end]) {
				end++
			}
			segs = append(segs, Segment{Kind: SegmentAttr, Name: path[pos:end]})
			state = stateAfterSegment
			pos = end

		default:
			return nil, newSyntaxError(path, pos, "unexpected character "+strconv.QuoteRune(rune(c)))
		}
	}

	if state == stateAfterDot {
		return nil, newSyntaxError(path, len(path), "trailing '.'")
	}
	return segs, nil
}

// scanBracket parses a bracketed segment starting at path[pos] == '['.
// Returns the segment and the offset just past the closing bracket.
func scanBracket(path string, pos int) (Segment, int, error) {
	i := pos + 1
	if i >= len(path) {
		return Segment{}, 0, newSyntaxError(path, pos, "unterminated bracket")
	}

	if q := path[i]; q == '\'' || q == '"' {
		closing := strings.IndexByte(path[i+1:], q)
		if closing < 0 {
			return Segment{}, 0, newSyntaxError(path, pos, "unterminated string key")
		}
		key := path[i+1 : i+1+closing]
		if key == "" {
			return Segment{}, 0, newSyntaxError(path, i, "empty key")
		}
		end := i + 1 + closing + 1
		if end >= len(path) || path[end] != ']' {
			return Segment{}, 0, newSyntaxError(path, end, "expected ']' after key")
		}
		return Segment{Kind: SegmentKey, Name: key}, end + 1, nil
	}

	start := i
	if path[i] == '-' {
		i++
	}
	digits := i
	for i < len(path) && path[i] >= '0' && path[i] <= '9' {
		i++
	}
	if i == digits {
		return Segment{}, 0, newSyntaxError(path, digits, "expected quoted key or integer index")
	}
	if i >= len(path) || path[i] != ']' {
		return Segment{}, 0, newSyntaxError(path, i, "unterminated bracket")
	}
	n, err := strconv.Atoi(path[start:i])
	if err != nil {
		return Segment{}, 0, newSyntaxError(path, start, "index out of range")
	}
	return Segment{Kind: SegmentIndex, Index: n}, i + 1, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
