package compiler

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for Rove source
// ---------------------------------------------------------------------------

// Lexer tokenizes Rove source code.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // current line (1-based)
	col     int  // current column (1-based)
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		l.col++
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	if l.ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	tok := Token{Line: l.line, Col: l.col}

	switch l.ch {
	case 0:
		tok.Type = TokenEOF
		return tok
	case '(':
		if l.peekChar() == ')' {
			l.readChar()
			l.readChar()
			tok.Type = TokenUnit
			tok.Literal = "()"
			return tok
		}
		return l.single(tok, TokenLParen, "(")
	case ')':
		return l.single(tok, TokenRParen, ")")
	case '[':
		return l.single(tok, TokenLBracket, "[")
	case ']':
		return l.single(tok, TokenRBracket, "]")
	case '{':
		return l.single(tok, TokenLBrace, "{")
	case '}':
		return l.single(tok, TokenRBrace, "}")
	case ',':
		return l.single(tok, TokenComma, ",")
	case ':':
		return l.single(tok, TokenColon, ":")
	case ';':
		return l.single(tok, TokenSemicolon, ";")
	case '#':
		if l.peekChar() == '{' {
			l.readChar()
			l.readChar()
			tok.Type = TokenMapStart
			tok.Literal = "#{"
			return tok
		}
		return l.errorToken(tok, "unexpected character '#'")
	case '.':
		if l.peekChar() == '.' {
			l.readChar()
			l.readChar()
			tok.Type = TokenRange
			tok.Literal = ".."
			return tok
		}
		return l.single(tok, TokenDot, ".")
	case '"':
		return l.readString(tok)
	case '\'':
		return l.readCharLiteral(tok)
	case '+', '-', '*', '/', '%':
		op := string(l.ch)
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			tok.Type = TokenAssign
			tok.Literal = op + "="
			return tok
		}
		return l.single(tok, TokenOperator, op)
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			tok.Type = TokenOperator
			tok.Literal = "=="
			return tok
		}
		return l.single(tok, TokenAssign, "=")
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			tok.Type = TokenOperator
			tok.Literal = "!="
			return tok
		}
		return l.single(tok, TokenOperator, "!")
	case '<', '>':
		op := string(l.ch)
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			tok.Type = TokenOperator
			tok.Literal = op + "="
			return tok
		}
		return l.single(tok, TokenOperator, op)
	case '&':
		if l.peekChar() == '&' {
			l.readChar()
			l.readChar()
			tok.Type = TokenOperator
			tok.Literal = "&&"
			return tok
		}
		return l.single(tok, TokenOperator, "&")
	case '|':
		if l.peekChar() == '|' {
			l.readChar()
			l.readChar()
			tok.Type = TokenOperator
			tok.Literal = "||"
			return tok
		}
		return l.single(tok, TokenOperator, "|")
	}

	if isDigit(l.ch) {
		return l.readNumber(tok)
	}
	if isIdentStart(l.ch) {
		return l.readIdentifier(tok)
	}

	return l.errorToken(tok, "unexpected character "+string(l.ch))
}

// single consumes one character and returns a token of the given type.
func (l *Lexer) single(tok Token, t TokenType, lit string) Token {
	l.readChar()
	tok.Type = t
	tok.Literal = lit
	return tok
}

func (l *Lexer) errorToken(tok Token, msg string) Token {
	l.readChar()
	tok.Type = TokenError
	tok.Literal = msg
	return tok
}

// skipWhitespaceAndComments skips whitespace, // line comments and
// /* block comments */.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n':
			l.readChar()
		case l.ch == '/' && l.peekChar() == '/':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			l.readChar()
			l.readChar()
			for l.ch != 0 && !(l.ch == '*' && l.peekChar() == '/') {
				l.readChar()
			}
			if l.ch != 0 {
				l.readChar()
				l.readChar()
			}
		default:
			return
		}
	}
}

// readNumber reads an integer or float literal. Supported forms:
// decimal, 0x hex, 0o octal, 0b binary, and floats with optional
// exponent (1.5, 1e10, 2.5e-3).
func (l *Lexer) readNumber(tok Token) Token {
	start := l.pos

	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'o' || l.peekChar() == 'b') {
		l.readChar()
		l.readChar()
		for isHexDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
		tok.Type = TokenInt
		tok.Literal = l.input[start:l.pos]
		return tok
	}

	for isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}

	isFloat := false
	// A '.' starts a fraction only when followed by a digit; "1..3" is a
	// range, not a float.
	if l.ch == '.' && isDigit(l.peekChar()) {
		isFloat = true
		l.readChar()
		for isDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			isFloat = true
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}

	if isFloat {
		tok.Type = TokenFloat
	} else {
		tok.Type = TokenInt
	}
	tok.Literal = strings.ReplaceAll(l.input[start:l.pos], "_", "")
	return tok
}

// readString reads a double-quoted string literal with escapes.
func (l *Lexer) readString(tok Token) Token {
	l.readChar() // consume opening quote
	var sb strings.Builder
	for l.ch != '"' {
		if l.ch == 0 {
			tok.Type = TokenError
			tok.Literal = "unterminated string literal"
			return tok
		}
		if l.ch == '\\' {
			l.readChar()
			r, ok := unescape(l.ch)
			if !ok {
				tok.Type = TokenError
				tok.Literal = "invalid escape sequence \\" + string(l.ch)
				return tok
			}
			sb.WriteRune(r)
			l.readChar()
			continue
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}
	l.readChar() // consume closing quote
	tok.Type = TokenString
	tok.Literal = sb.String()
	return tok
}

// readCharLiteral reads a single-quoted character literal.
func (l *Lexer) readCharLiteral(tok Token) Token {
	l.readChar() // consume opening quote
	if l.ch == 0 {
		tok.Type = TokenError
		tok.Literal = "unterminated character literal"
		return tok
	}
	var r rune
	if l.ch == '\\' {
		l.readChar()
		esc, ok := unescape(l.ch)
		if !ok {
			tok.Type = TokenError
			tok.Literal = "invalid escape sequence \\" + string(l.ch)
			return tok
		}
		r = esc
	} else {
		r = l.ch
	}
	l.readChar()
	if l.ch != '\'' {
		tok.Type = TokenError
		tok.Literal = "unterminated character literal"
		return tok
	}
	l.readChar() // consume closing quote
	tok.Type = TokenChar
	tok.Literal = string(r)
	return tok
}

// readIdentifier reads an identifier or keyword.
func (l *Lexer) readIdentifier(tok Token) Token {
	start := l.pos
	for isIdentPart(l.ch) {
		l.readChar()
	}
	lit := l.input[start:l.pos]
	if kw, ok := keywords[lit]; ok {
		tok.Type = kw
	} else {
		tok.Type = TokenIdentifier
	}
	tok.Literal = lit
	return tok
}

func unescape(ch rune) (rune, bool) {
	switch ch {
	case 'n':
		return '\n', true
	case 't':
		return '\t', true
	case 'r':
		return '\r', true
	case '0':
		return 0, true
	case '\\':
		return '\\', true
	case '\'':
		return '\'', true
	case '"':
		return '"', true
	default:
		return 0, false
	}
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch rune) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func isIdentStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isIdentPart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch) || unicode.IsDigit(ch)
}
