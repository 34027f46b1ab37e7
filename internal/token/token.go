// Package token defines the token types for the Loom language.
package token

// Type represents the type of a token.
type Type int

const (
	// Special tokens
	EOF Type = iota

	// Literals
	IDENT  // identifier (e.g., User, email)
	INT    // integer literal
	FLOAT  // float literal
	STRING // string literal
	TRUE   // true
	FALSE  // false

	// Keywords - declarations
	ENTITY
	VIEW
	PAGE
	WORKFLOW
	CONFIG
	ENUM

	// Punctuation
	LBRACE   // {
	RBRACE   // }
	LBRACKET // [
	RBRACKET // ]
	LPAREN   // (
	RPAREN   // )
	COLON    // :
	COMMA    // ,
	AT       // @
	DOT      // .
)

var tokenNames = map[Type]string{
	EOF: "EOF",

	IDENT:  "IDENT",
	INT:    "INT",
	FLOAT:  "FLOAT",
	STRING: "STRING",
	TRUE:   "true",
	FALSE:  "false",

	ENTITY:   "entity",
	VIEW:     "view",
	PAGE:     "page",
	WORKFLOW: "workflow",
	CONFIG:   "config",
	ENUM:     "enum",

	LBRACE:   "{",
	RBRACE:   "}",
	LBRACKET: "[",
	RBRACKET: "]",
	LPAREN:   "(",
	RPAREN:   ")",
	COLON:    ":",
	COMMA:    ",",
	AT:       "@",
	DOT:      ".",
}

// String returns the string representation of the token type.
func (t Type) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// keywords maps keyword strings to their token types.
var keywords = map[string]Type{
	"entity":   ENTITY,
	"view":     VIEW,
	"page":     PAGE,
	"workflow": WORKFLOW,
	"config":   CONFIG,
	"enum":     ENUM,

	"true":  TRUE,
	"false": FALSE,
}

// LookupIdent returns the token type for an identifier.
// If the identifier is a keyword, it returns the keyword token type.
// Otherwise, it returns IDENT.
func LookupIdent(ident string) Type {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// IsKeyword returns true if the token type is a declaration keyword.
func (t Type) IsKeyword() bool {
	return t >= ENTITY && t <= ENUM
}

// IsLiteral returns true if the token type is a literal.
func (t Type) IsLiteral() bool {
	return t >= IDENT && t <= FALSE
}

// Position represents a position in the source code.
type Position struct {
	Filename string
	Offset   int // byte offset
	Line     int // 1-indexed
	Column   int // 1-indexed, counted in runes
}

// Token represents a lexical token.
type Token struct {
	Type    Type
	Literal string
	Pos     Position
	End     Position
}
