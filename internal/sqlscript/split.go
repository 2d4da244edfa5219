// Package sqlscript splits a SQL script into the individual statements the
// Redshift Data API expects in a batch.
package sqlscript

import (
	"strings"
)

// Split returns the top-level statements of script, trimmed and without the
// terminating semicolon. Comments are removed, empty statements dropped and
// psql meta-commands (lines starting with a backslash, such as
// `\set ON_ERROR_STOP on`) skipped.
func Split(script string) []string {
	s := &splitter{input: script}
	return s.run()
}

type splitter struct {
	input      string
	pos        int
	cur        strings.Builder
	hasContent bool
	out        []string
}

func (s *splitter) run() []string {
	for s.pos < len(s.input) {
		ch := s.input[s.pos]
		switch {
		case ch == '-' && s.peek(1) == '-':
			s.skipLineComment()
		case ch == '/' && s.peek(1) == '*':
			s.skipBlockComment()
		case ch == '\\' && !s.hasContent:
			s.skipLineComment()
		case ch == '\'':
			s.copyQuoted('\'')
		case ch == '"':
			s.copyQuoted('"')
		case ch == '$' && !s.afterIdentifier():
			s.copyDollar()
		case ch == ';':
			s.flush()
			s.pos++
		default:
			s.emit(ch)
			s.pos++
		}
	}
	s.flush()
	return s.out
}

func (s *splitter) peek(offset int) byte {
	if s.pos+offset >= len(s.input) {
		return 0
	}
	return s.input[s.pos+offset]
}

func (s *splitter) emit(ch byte) {
	s.cur.WriteByte(ch)
	if ch != ' ' && ch != '\t' && ch != '\n' && ch != '\r' {
		s.hasContent = true
	}
}

func (s *splitter) emitString(str string) {
	s.cur.WriteString(str)
	s.hasContent = true
}

func (s *splitter) flush() {
	if s.hasContent {
		s.out = append(s.out, strings.TrimSpace(s.cur.String()))
	}
	s.cur.Reset()
	s.hasContent = false
}

// skipLineComment drops everything up to, but not including, the newline.
func (s *splitter) skipLineComment() {
	end := strings.IndexByte(s.input[s.pos:], '\n')
	if end < 0 {
		s.pos = len(s.input)
		return
	}
	s.pos += end
}

// skipBlockComment drops a /* */ comment, honouring nesting. An unterminated
// comment runs to the end of the script.
func (s *splitter) skipBlockComment() {
	depth := 0
	for s.pos < len(s.input) {
		switch {
		case s.input[s.pos] == '/' && s.peek(1) == '*':
			depth++
			s.pos += 2
		case s.input[s.pos] == '*' && s.peek(1) == '/':
			depth--
			s.pos += 2
			if depth == 0 {
				s.cur.WriteByte(' ')
				return
			}
		default:
			s.pos++
		}
	}
}

// afterIdentifier reports whether the last emitted byte belongs to a word, in
// which case a '$' is part of an identifier such as t$a$.
func (s *splitter) afterIdentifier() bool {
	cur := s.cur.String()
	if cur == "" {
		return false
	}
	last := cur[len(cur)-1]
	return isTagChar(last) || last == '$'
}

// copyQuoted copies a quoted literal or identifier verbatim. A doubled quote
// character is an escaped quote; string literals also accept a backslash
// escape such as 'O\'Brien'.
func (s *splitter) copyQuoted(quote byte) {
	start := s.pos
	s.pos++
	for s.pos < len(s.input) {
		if quote == '\'' && s.input[s.pos] == '\\' {
			s.pos += 2
			continue
		}
		if s.input[s.pos] == quote {
			if s.peek(1) == quote {
				s.pos += 2
				continue
			}
			s.pos++
			break
		}
		s.pos++
	}
	if s.pos > len(s.input) {
		s.pos = len(s.input)
	}
	s.emitString(s.input[start:s.pos])
}

// copyDollar copies a $tag$ ... $tag$ body verbatim. A '$' that does not open
// a dollar quote (a positional parameter such as $1) is copied as-is.
func (s *splitter) copyDollar() {
	tagEnd := s.pos + 1
	for tagEnd < len(s.input) && isTagChar(s.input[tagEnd]) {
		tagEnd++
	}
	if tagEnd >= len(s.input) || s.input[tagEnd] != '$' || isDigitTag(s.input[s.pos+1:tagEnd]) {
		s.emit('$')
		s.pos++
		return
	}

	tag := s.input[s.pos : tagEnd+1]
	bodyStart := tagEnd + 1
	closeAt := strings.Index(s.input[bodyStart:], tag)
	end := len(s.input)
	if closeAt >= 0 {
		end = bodyStart + closeAt + len(tag)
	}
	s.emitString(s.input[s.pos:end])
	s.pos = end
}

func isTagChar(ch byte) bool {
	return ch == '_' ||
		(ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9')
}

func isDigitTag(tag string) bool {
	if tag == "" {
		return false
	}
	return tag[0] >= '0' && tag[0] <= '9'
}
