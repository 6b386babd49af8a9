package decode

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SyntaxError reports where the lenient decoder gave up.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("offset %d: %s", e.Offset, e.Msg)
}

// Lenient decodes a literal expression in the loose dialect models emit
// when they miss JSON:
//
//   - strings in single, double or triple quotes, adjacent strings concatenated
//   - True/False/None next to true/false/null
//   - tuples as lists, trailing commas, # line comments
//   - bare identifiers and numbers as object keys
func Lenient(text string) (any, error) {
	p := &literalParser{src: text}
	p.skipSpace()
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, p.errorf("unexpected trailing input %q", p.peekWord())
	}
	return v, nil
}

type literalParser struct {
	src   string
	pos   int
	depth int
}

const maxDepth = 512

func (p *literalParser) errorf(format string, args ...any) error {
	return &SyntaxError{Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *literalParser) eof() bool { return p.pos >= len(p.src) }

func (p *literalParser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *literalParser) skipSpace() {
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			p.pos++
		case c == '#':
			for !p.eof() && p.src[p.pos] != '\n' {
				p.pos++
			}
		default:
			return
		}
	}
}

func (p *literalParser) value() (any, error) {
	if p.eof() {
		return nil, p.errorf("unexpected end of input")
	}
	switch c := p.peek(); {
	case c == '{':
		return p.object()
	case c == '[':
		list, _, err := p.sequence('[', ']')
		return list, err
	case c == '(':
		return p.tuple()
	case c == '"' || c == '\'':
		return p.quoted()
	case c == '-' || c == '+' || c == '.' || isDigit(c):
		return p.number()
	case isIdentStart(c):
		return p.keyword()
	default:
		return nil, p.errorf("unexpected character %q", c)
	}
}

func (p *literalParser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return p.errorf("nesting deeper than %d", maxDepth)
	}
	return nil
}

func (p *literalParser) object() (any, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer func() { p.depth-- }()

	p.pos++ // '{'
	m := NewMapping()
	for {
		p.skipSpace()
		if p.peek() == '}' {
			p.pos++
			return m, nil
		}
		key, err := p.key()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ':' {
			return nil, p.errorf("expected ':' after key %q", key)
		}
		p.pos++
		p.skipSpace()
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		m.Set(key, v)

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return m, nil
		default:
			return nil, p.errorf("expected ',' or '}' in object")
		}
	}
}

// key accepts quoted strings, bare identifiers and numbers.
func (p *literalParser) key() (string, error) {
	c := p.peek()
	switch {
	case c == '"' || c == '\'':
		v, err := p.quoted()
		if err != nil {
			return "", err
		}
		return v.(string), nil
	case isIdentStart(c):
		return p.ident(), nil
	case c == '-' || isDigit(c):
		n, err := p.number()
		if err != nil {
			return "", err
		}
		return n.(json.Number).String(), nil
	}
	return "", p.errorf("invalid object key starting with %q", c)
}

// sequence also reports whether any separator comma was seen.
func (p *literalParser) sequence(open, close byte) ([]any, bool, error) {
	if err := p.enter(); err != nil {
		return nil, false, err
	}
	defer func() { p.depth-- }()

	p.pos++ // open
	list := []any{}
	comma := false
	for {
		p.skipSpace()
		if p.peek() == close {
			p.pos++
			return list, comma, nil
		}
		v, err := p.value()
		if err != nil {
			return nil, false, err
		}
		list = append(list, v)

		p.skipSpace()
		switch p.peek() {
		case ',':
			comma = true
			p.pos++
		case close:
			p.pos++
			return list, comma, nil
		default:
			return nil, false, p.errorf("expected ',' or %q in sequence", close)
		}
	}
}

// tuple decodes (a, b) as a list. A parenthesized single value without a
// trailing comma is just that value.
func (p *literalParser) tuple() (any, error) {
	list, comma, err := p.sequence('(', ')')
	if err != nil {
		return nil, err
	}
	if len(list) == 1 && !comma {
		return list[0], nil
	}
	return list, nil
}

// quoted decodes one string literal and any adjacent ones.
func (p *literalParser) quoted() (any, error) {
	var b strings.Builder
	for {
		s, err := p.stringLiteral()
		if err != nil {
			return nil, err
		}
		b.WriteString(s)

		save := p.pos
		p.skipSpace()
		if c := p.peek(); c != '"' && c != '\'' {
			p.pos = save
			return b.String(), nil
		}
	}
}

func (p *literalParser) stringLiteral() (string, error) {
	quote := p.src[p.pos]
	triple := strings.HasPrefix(p.src[p.pos:], strings.Repeat(string(quote), 3))
	if triple {
		p.pos += 3
	} else {
		p.pos++
	}

	var b strings.Builder
	for {
		if p.eof() {
			return "", p.errorf("unterminated string")
		}
		c := p.src[p.pos]
		switch {
		case triple && strings.HasPrefix(p.src[p.pos:], strings.Repeat(string(quote), 3)):
			p.pos += 3
			return b.String(), nil
		case !triple && c == quote:
			p.pos++
			return b.String(), nil
		case !triple && c == '\n':
			return "", p.errorf("newline in string literal")
		case c == '\\':
			if err := p.escape(&b); err != nil {
				return "", err
			}
		default:
			r, size := utf8.DecodeRuneInString(p.src[p.pos:])
			b.WriteRune(r)
			p.pos += size
		}
	}
}

func (p *literalParser) escape(b *strings.Builder) error {
	p.pos++ // backslash
	if p.eof() {
		return p.errorf("unterminated escape")
	}
	c := p.src[p.pos]
	p.pos++
	switch c {
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case '0':
		b.WriteByte(0)
	case '\\', '\'', '"', '/':
		b.WriteByte(c)
	case '\n':
		// line continuation
	case 'x':
		return p.hexRune(b, 2)
	case 'u':
		return p.hexRune(b, 4)
	case 'U':
		return p.hexRune(b, 8)
	default:
		// Unknown escapes are kept verbatim.
		b.WriteByte('\\')
		b.WriteByte(c)
	}
	return nil
}

func (p *literalParser) hexRune(b *strings.Builder, n int) error {
	if p.pos+n > len(p.src) {
		return p.errorf("truncated \\x/\\u escape")
	}
	v, err := strconv.ParseUint(p.src[p.pos:p.pos+n], 16, 32)
	if err != nil {
		return p.errorf("invalid hex escape %q", p.src[p.pos:p.pos+n])
	}
	p.pos += n
	b.WriteRune(rune(v))
	return nil
}

func (p *literalParser) number() (any, error) {
	start := p.pos
	if c := p.peek(); c == '-' || c == '+' {
		p.pos++
	}
	intStart := p.pos
	for !p.eof() && (isDigit(p.peek()) || p.peek() == '_') {
		p.pos++
	}
	intPart := strings.ReplaceAll(p.src[intStart:p.pos], "_", "")

	fracPart := ""
	if p.peek() == '.' {
		p.pos++
		fs := p.pos
		for !p.eof() && isDigit(p.peek()) {
			p.pos++
		}
		fracPart = p.src[fs:p.pos]
	}
	if intPart == "" && fracPart == "" {
		return nil, p.errorf("invalid number %q", p.src[start:p.pos])
	}

	expPart := ""
	if c := p.peek(); c == 'e' || c == 'E' {
		es := p.pos
		p.pos++
		if c := p.peek(); c == '-' || c == '+' {
			p.pos++
		}
		ds := p.pos
		for !p.eof() && isDigit(p.peek()) {
			p.pos++
		}
		if ds == p.pos {
			return nil, p.errorf("invalid exponent")
		}
		expPart = p.src[es:p.pos]
	}

	var b strings.Builder
	if p.src[start] == '-' {
		b.WriteByte('-')
	}
	if intPart == "" {
		intPart = "0"
	}
	b.WriteString(strings.TrimLeft(intPart, "0"))
	if strings.TrimLeft(intPart, "0") == "" {
		b.WriteByte('0')
	}
	if fracPart != "" {
		b.WriteByte('.')
		b.WriteString(fracPart)
	}
	b.WriteString(expPart)
	return json.Number(b.String()), nil
}

func (p *literalParser) keyword() (any, error) {
	start := p.pos
	word := p.ident()
	switch word {
	case "True", "true":
		return true, nil
	case "False", "false":
		return false, nil
	case "None", "null":
		return nil, nil
	}
	p.pos = start
	return nil, p.errorf("unknown identifier %q", word)
}

func (p *literalParser) ident() string {
	start := p.pos
	for !p.eof() {
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		if r != '_' && r != '-' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		p.pos += size
	}
	return p.src[start:p.pos]
}

func (p *literalParser) peekWord() string {
	end := p.pos + 16
	if end > len(p.src) {
		end = len(p.src)
	}
	return p.src[p.pos:end]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= utf8.RuneSelf
}
