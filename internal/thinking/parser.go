// Package thinking extracts the leading <thinking>...</thinking> block that
// some upstreams prepend to assistant text. The parser is incremental: chunks
// arrive in arbitrary pieces and tags may be split across chunk boundaries.
// Only the first block is treated as reasoning; everything after it, and any
// response that does not open with the tag, passes through as plain text.
package thinking

import (
	"strings"
	"unicode"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
)

// SegmentType classifies parsed output.
type SegmentType int

const (
	// SegmentThinking is reasoning content from inside the tag pair.
	SegmentThinking SegmentType = iota
	// SegmentText is ordinary assistant text.
	SegmentText
)

func (t SegmentType) String() string {
	if t == SegmentThinking {
		return "thinking"
	}
	return "text"
}

// Segment is one contiguous run of parsed content.
type Segment struct {
	Type    SegmentType
	Content string
}

type parseState int

const (
	// stateInitial waits for enough bytes to tell whether the response
	// opens with the tag.
	stateInitial parseState = iota
	stateInThinking
	stateAfterThinking
	statePassthrough
)

const (
	openTag  = "<thinking>"
	closeTag = "</thinking>"
)

// quoteRunes marks a close tag as quoted prose rather than a real terminator
// when it immediately precedes the tag.
const quoteRunes = "`\"'“”‘’「」『』"

// StreamParser splits an incremental text stream into thinking and text
// segments. Not safe for concurrent use.
type StreamParser struct {
	buf   string
	state parseState

	extracted bool
	// stripNewlines swallows the newline run that upstreams emit right
	// after the close tag, even when it arrives in a later chunk.
	stripNewlines bool
}

// NewStreamParser returns a parser positioned before the first byte of a
// response.
func NewStreamParser() *StreamParser {
	return &StreamParser{}
}

// Parse consumes the next chunk and returns any segments that became
// unambiguous. A nil result means the parser needs more bytes.
func (p *StreamParser) Parse(chunk string) []Segment {
	if chunk == "" {
		return nil
	}
	p.buf += chunk

	var segments []Segment
	for {
		switch p.state {
		case stateInitial:
			if !p.handleInitial() {
				return segments
			}

		case stateInThinking:
			seg, ok := p.handleInThinking()
			if !ok {
				return segments
			}
			if seg.Content != "" {
				segments = append(segments, seg)
			}

		case stateAfterThinking:
			if p.stripNewlines && p.buf != "" {
				p.buf = strings.TrimLeft(p.buf, "\r\n")
				p.stripNewlines = false
			}
			if p.buf != "" {
				segments = append(segments, Segment{Type: SegmentText, Content: p.buf})
				p.buf = ""
			}
			return segments

		case statePassthrough:
			if p.buf != "" {
				segments = append(segments, Segment{Type: SegmentText, Content: p.buf})
				p.buf = ""
			}
			return segments
		}
	}
}

// Flush drains whatever the parser is still holding once the stream ends. An
// unterminated thinking block is flushed as thinking rather than dropped.
func (p *StreamParser) Flush() []Segment {
	var segments []Segment

	switch p.state {
	case stateInitial:
		if p.buf != "" {
			segments = append(segments, Segment{Type: SegmentText, Content: p.buf})
			p.buf = ""
		}

	case stateInThinking:
		if p.buf != "" {
			log.Warnf("thinking: block not closed, flushing %d bytes as thinking", len(p.buf))
			segments = append(segments, Segment{Type: SegmentThinking, Content: p.buf})
			p.buf = ""
		}

	case stateAfterThinking, statePassthrough:
		if p.stripNewlines && p.buf != "" {
			p.buf = strings.TrimLeft(p.buf, "\r\n")
			p.stripNewlines = false
		}
		if p.buf != "" {
			segments = append(segments, Segment{Type: SegmentText, Content: p.buf})
			p.buf = ""
		}
	}

	return segments
}

// IsThinkingMode reports whether the response opened with the tag.
func (p *StreamParser) IsThinkingMode() bool {
	return p.state == stateInThinking || p.state == stateAfterThinking
}

// HasExtractedThinking reports whether a complete thinking block was emitted.
func (p *StreamParser) HasExtractedThinking() bool {
	return p.extracted
}

// handleInitial decides between thinking mode and passthrough. It returns
// false when the buffer is still too short to tell.
func (p *StreamParser) handleInitial() bool {
	stripped := strings.TrimLeftFunc(p.buf, unicode.IsSpace)

	if len(stripped) < len(openTag) {
		if stripped != "" && strings.HasPrefix(openTag, stripped) {
			return false
		}
		if stripped != "" {
			p.state = statePassthrough
			return true
		}
		// Whitespace only so far. Keep waiting; Flush emits it as text.
		return false
	}

	if strings.HasPrefix(stripped, openTag) {
		// Leading whitespace before the tag is dropped with it.
		p.buf = stripped[len(openTag):]
		p.state = stateInThinking
		log.Debugf("thinking: response opens with %s", openTag)
		return true
	}

	p.state = statePassthrough
	return true
}

// handleInThinking emits thinking content up to the close tag, holding back a
// tail that could still be a split tag. ok is false when nothing can be
// emitted yet.
func (p *StreamParser) handleInThinking() (seg Segment, ok bool) {
	pos, found := p.findRealCloseTag()
	if !found {
		safe := len(p.buf) - len(closeTag) + 1
		for safe > 0 && !utf8.RuneStart(p.buf[safe]) {
			safe--
		}
		if safe > 0 {
			seg = Segment{Type: SegmentThinking, Content: p.buf[:safe]}
			p.buf = p.buf[safe:]
			return seg, true
		}
		return Segment{}, false
	}

	seg = Segment{Type: SegmentThinking, Content: p.buf[:pos]}
	after := p.buf[pos+len(closeTag):]
	// The close tag is normally followed by a blank line before the text
	// body. Swallow it here and flag any remainder split into later chunks.
	p.buf = strings.TrimLeft(after, "\r\n")
	p.stripNewlines = true
	p.state = stateAfterThinking
	p.extracted = true
	return seg, true
}

// findRealCloseTag locates the close tag that actually terminates the block,
// skipping occurrences the model quoted or embedded in code. A real tag is
// followed by a newline; a bare tag close to the buffer end is accepted since
// its newline may not have arrived yet.
func (p *StreamParser) findRealCloseTag() (int, bool) {
	searchStart := 0
	for {
		idx := strings.Index(p.buf[searchStart:], closeTag)
		if idx < 0 {
			return 0, false
		}
		pos := searchStart + idx

		if p.isQuotedTag(pos) {
			searchStart = pos + 1
			continue
		}

		afterPos := pos + len(closeTag)
		if afterPos < len(p.buf) {
			if c := p.buf[afterPos]; c == '\n' || c == '\r' {
				return pos, true
			}
			if len(p.buf)-afterPos > 10 {
				searchStart = pos + 1
				continue
			}
			return pos, true
		}
		return pos, true
	}
}

// isQuotedTag reports whether the tag at pos sits behind a quote character or
// inside an unclosed inline code span.
func (p *StreamParser) isQuotedTag(pos int) bool {
	if pos == 0 {
		return false
	}
	prev, _ := utf8.DecodeLastRuneInString(p.buf[:pos])
	if strings.ContainsRune(quoteRunes, prev) {
		return true
	}
	return strings.Count(p.buf[:pos], "`")%2 == 1
}
