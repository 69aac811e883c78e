package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the Rove lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenInt        // 42, 0xFF
	TokenFloat      // 3.14, 1.5e10
	TokenString     // "hello"
	TokenChar       // 'a', '\n'
	TokenIdentifier // foo, Bar

	// Keywords
	TokenLet
	TokenConst
	TokenFn
	TokenIf
	TokenElse
	TokenWhile
	TokenLoop
	TokenFor
	TokenIn
	TokenBreak
	TokenContinue
	TokenReturn
	TokenTry
	TokenCatch
	TokenTrue
	TokenFalse
	TokenUnit // ()

	// Operators
	TokenOperator // + - * / % == != < <= > >= && || & | !
	TokenAssign   // = += -= *= /= %=
	TokenRange    // ..

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenLBrace    // {
	TokenRBrace    // }
	TokenMapStart  // #{
	TokenDot       // .
	TokenComma     // ,
	TokenColon     // :
	TokenSemicolon // ;
)

// Token is a single lexical token with its source position.
type Token struct {
	Type    TokenType
	Literal string
	Line    int // 1-based
	Col     int // 1-based
}

var keywords = map[string]TokenType{
	"let":      TokenLet,
	"const":    TokenConst,
	"fn":       TokenFn,
	"if":       TokenIf,
	"else":     TokenElse,
	"while":    TokenWhile,
	"loop":     TokenLoop,
	"for":      TokenFor,
	"in":       TokenIn,
	"break":    TokenBreak,
	"continue": TokenContinue,
	"return":   TokenReturn,
	"try":      TokenTry,
	"catch":    TokenCatch,
	"true":     TokenTrue,
	"false":    TokenFalse,
}

// String returns a readable name for the token type.
func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenError:
		return "error"
	case TokenInt:
		return "integer"
	case TokenFloat:
		return "float"
	case TokenString:
		return "string"
	case TokenChar:
		return "character"
	case TokenIdentifier:
		return "identifier"
	case TokenLet:
		return "'let'"
	case TokenConst:
		return "'const'"
	case TokenFn:
		return "'fn'"
	case TokenIf:
		return "'if'"
	case TokenElse:
		return "'else'"
	case TokenWhile:
		return "'while'"
	case TokenLoop:
		return "'loop'"
	case TokenFor:
		return "'for'"
	case TokenIn:
		return "'in'"
	case TokenBreak:
		return "'break'"
	case TokenContinue:
		return "'continue'"
	case TokenReturn:
		return "'return'"
	case TokenTry:
		return "'try'"
	case TokenCatch:
		return "'catch'"
	case TokenTrue:
		return "'true'"
	case TokenFalse:
		return "'false'"
	case TokenUnit:
		return "'()'"
	case TokenOperator:
		return "operator"
	case TokenAssign:
		return "assignment"
	case TokenRange:
		return "'..'"
	case TokenLParen:
		return "'('"
	case TokenRParen:
		return "')'"
	case TokenLBracket:
		return "'['"
	case TokenRBracket:
		return "']'"
	case TokenLBrace:
		return "'{'"
	case TokenRBrace:
		return "'}'"
	case TokenMapStart:
		return "'#{'"
	case TokenDot:
		return "'.'"
	case TokenComma:
		return "','"
	case TokenColon:
		return "':'"
	case TokenSemicolon:
		return "';'"
	default:
		return fmt.Sprintf("TokenType(%d)", int(t))
	}
}
