// Package lexer provides a handwritten lexer for the Loom language.
// Lexing aborts on the first error: a bad character or unterminated
// literal means the rest of the stream would be garbage anyway.
package lexer

import (
	"unicode"
	"unicode/utf8"

	"github.com/loom-lang/loom/internal/diag"
	"github.com/loom-lang/loom/internal/token"
)

// Lexer tokenizes Loom source code.
type Lexer struct {
	input    string
	filename string
	pos      int  // byte offset of the current char
	readPos  int  // byte offset after the current char
	ch       rune // current character under examination
	line     int  // line of the current char (1-indexed)
	col      int  // column of the current char (1-indexed, in runes)
}

// New creates a new Lexer for the given input.
func New(input, filename string) *Lexer {
	l := &Lexer{
		input:    input,
		filename: filename,
		line:     1,
	}
	l.readChar()
	return l
}

// position returns the position of the current character.
func (l *Lexer) position() token.Position {
	return token.Position{
		Filename: l.filename,
		Offset:   l.pos,
		Line:     l.line,
		Column:   l.col,
	}
}

// readChar advances to the next character, keeping line and column in
// step with the character now under examination.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = len(l.input)
		l.col++
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// skipWhitespace skips whitespace characters, newlines included. The
// grammar is brace-delimited, so newlines carry no meaning.
func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n' {
		l.readChar()
	}
}

// NextToken returns the next token from the input. The first lex error
// aborts the scan; no recovery is attempted.
func (l *Lexer) NextToken() (token.Token, error) {
	for {
		l.skipWhitespace()

		if l.ch == '/' && l.peekChar() == '/' {
			l.skipLineComment()
			continue
		}
		if l.ch == '/' && l.peekChar() == '*' {
			if err := l.skipBlockComment(); err != nil {
				return token.Token{}, err
			}
			continue
		}
		break
	}

	startPos := l.position()

	var tok token.Token
	tok.Pos = startPos

	switch l.ch {
	case 0:
		tok.Type = token.EOF
		tok.Literal = ""
		tok.End = startPos
		return tok, nil

	case '{':
		return l.punct(token.LBRACE), nil
	case '}':
		return l.punct(token.RBRACE), nil
	case '[':
		return l.punct(token.LBRACKET), nil
	case ']':
		return l.punct(token.RBRACKET), nil
	case '(':
		return l.punct(token.LPAREN), nil
	case ')':
		return l.punct(token.RPAREN), nil
	case ':':
		return l.punct(token.COLON), nil
	case ',':
		return l.punct(token.COMMA), nil
	case '@':
		return l.punct(token.AT), nil
	case '.':
		return l.punct(token.DOT), nil

	case '"', '\'':
		return l.readString(l.ch)

	default:
		if isLetter(l.ch) {
			return l.readIdentifier(), nil
		}
		if isDigit(l.ch) {
			return l.readNumber()
		}
		if l.ch == '-' && isDigit(l.peekChar()) {
			return l.readNumber()
		}
		return token.Token{}, diag.Errorf(startPos, diag.ErrUnexpectedChar,
			"unexpected character %q", l.ch)
	}
}

// punct builds a single-character punctuation token.
func (l *Lexer) punct(t token.Type) token.Token {
	tok := token.Token{
		Type:    t,
		Literal: string(l.ch),
		Pos:     l.position(),
	}
	l.readChar()
	tok.End = l.position()
	return tok
}

// readIdentifier reads an identifier or keyword.
func (l *Lexer) readIdentifier() token.Token {
	startPos := l.position()
	start := l.pos

	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}

	literal := l.input[start:l.pos]

	return token.Token{
		Type:    token.LookupIdent(literal),
		Literal: literal,
		Pos:     startPos,
		End:     l.position(),
	}
}

// readNumber reads an integer or float literal, with an optional
// leading minus sign.
func (l *Lexer) readNumber() (token.Token, error) {
	startPos := l.position()
	start := l.pos
	tokType := token.INT

	if l.ch == '-' {
		l.readChar()
	}
	for isDigit(l.ch) {
		l.readChar()
	}

	if l.ch == '.' {
		if !isDigit(l.peekChar()) {
			return token.Token{}, diag.Errorf(startPos, diag.ErrInvalidNumber,
				"invalid number literal %q", l.input[start:l.pos]+".")
		}
		tokType = token.FLOAT
		l.readChar() // consume '.'
		for isDigit(l.ch) {
			l.readChar()
		}
		if l.ch == '.' {
			return token.Token{}, diag.Errorf(startPos, diag.ErrInvalidNumber,
				"invalid number literal %q", l.input[start:l.pos]+".")
		}
	}

	return token.Token{
		Type:    tokType,
		Literal: l.input[start:l.pos],
		Pos:     startPos,
		End:     l.position(),
	}, nil
}

// readString reads a string literal delimited by quote (double or
// single). A raw newline or EOF inside the literal is an error.
func (l *Lexer) readString(quote rune) (token.Token, error) {
	startPos := l.position()
	l.readChar() // consume opening quote

	var result []rune
	for l.ch != quote {
		if l.ch == 0 || l.ch == '\n' {
			return token.Token{}, diag.Errorf(startPos, diag.ErrUnterminatedString,
				"unterminated string literal")
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				result = append(result, '\n')
			case 't':
				result = append(result, '\t')
			case 'r':
				result = append(result, '\r')
			case '\\':
				result = append(result, '\\')
			case '"':
				result = append(result, '"')
			case '\'':
				result = append(result, '\'')
			default:
				return token.Token{}, diag.Errorf(l.position(), diag.ErrInvalidEscape,
					"invalid escape sequence '\\%c'", l.ch)
			}
		} else {
			result = append(result, l.ch)
		}
		l.readChar()
	}

	l.readChar() // consume closing quote

	return token.Token{
		Type:    token.STRING,
		Literal: string(result),
		Pos:     startPos,
		End:     l.position(),
	}, nil
}

// skipLineComment skips a // comment up to (not including) the newline.
func (l *Lexer) skipLineComment() {
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
}

// skipBlockComment skips a /* */ comment, which may span lines.
func (l *Lexer) skipBlockComment() error {
	startPos := l.position()
	l.readChar() // consume /
	l.readChar() // consume *

	for {
		if l.ch == 0 {
			return diag.Errorf(startPos, diag.ErrUnterminatedComment,
				"unterminated block comment")
		}
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar() // consume *
			l.readChar() // consume /
			return nil
		}
		l.readChar()
	}
}

// isLetter returns true if the rune is a letter or underscore.
func isLetter(ch rune) bool {
	return unicode.IsLetter(ch) || ch == '_'
}

// isDigit returns true if the rune is a digit.
func isDigit(ch rune) bool {
	return unicode.IsDigit(ch)
}

// Tokenize tokenizes the entire input. On success the returned slice
// always ends with an EOF token. On error the token slice is nil: a
// failed scan produces no partial stream.
func Tokenize(input, filename string) ([]token.Token, error) {
	l := New(input, filename)
	var tokens []token.Token

	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == token.EOF {
			return tokens, nil
		}
	}
}
