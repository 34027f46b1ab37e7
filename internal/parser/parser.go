// Package parser provides a handwritten recursive descent parser for the
// Loom language. It works over the full token slice with one token of
// lookahead and stops at the first syntax error: callers never see a
// partial AST.
package parser

import (
	"strconv"

	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/diag"
	"github.com/loom-lang/loom/internal/lexer"
	"github.com/loom-lang/loom/internal/token"
)

// Parser parses Loom source code into an AST.
type Parser struct {
	tokens   []token.Token
	pos      int
	filename string
}

// New creates a Parser over a token stream produced by lexer.Tokenize.
// The stream must end with an EOF token.
func New(tokens []token.Token, filename string) *Parser {
	return &Parser{tokens: tokens, filename: filename}
}

// cur returns the current token. The cursor never moves past EOF, so
// cur is always valid.
func (p *Parser) cur() token.Token {
	return p.tokens[p.pos]
}

// peek returns the next token without advancing.
func (p *Parser) peek() token.Token {
	if p.pos+1 >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+1]
}

func (p *Parser) advance() {
	if p.cur().Type != token.EOF {
		p.pos++
	}
}

func (p *Parser) curIs(t token.Type) bool {
	return p.cur().Type == t
}

func (p *Parser) peekIs(t token.Type) bool {
	return p.peek().Type == t
}

// expect consumes and returns the current token if it has the given
// type, or fails with a syntax error.
func (p *Parser) expect(t token.Type) (token.Token, error) {
	if p.curIs(t) {
		tok := p.cur()
		p.advance()
		return tok, nil
	}
	return token.Token{}, diag.Errorf(p.cur().Pos, diag.ErrExpectedToken,
		"expected %s, got %s", t, p.cur().Type)
}

// isName reports whether the token can serve as a name: a plain
// identifier, or a keyword used in name position (property keys such
// as "entity" inside a page body).
func isName(tok token.Token) bool {
	return tok.Type == token.IDENT || tok.Type.IsKeyword()
}

// ident builds an Ident from the current token without advancing.
func (p *Parser) ident() *ast.Ident {
	return &ast.Ident{
		Name:     p.cur().Literal,
		StartPos: p.cur().Pos,
		EndPos:   p.cur().End,
	}
}

// expectIdent consumes the current token as a plain identifier.
func (p *Parser) expectIdent(what string) (*ast.Ident, error) {
	if !p.curIs(token.IDENT) {
		return nil, diag.Errorf(p.cur().Pos, diag.ErrExpectedIdent,
			"expected %s, got %s", what, p.cur().Type)
	}
	id := p.ident()
	p.advance()
	return id, nil
}

// expectName consumes the current token as a name, accepting keywords.
func (p *Parser) expectName(what string) (*ast.Ident, error) {
	if !isName(p.cur()) {
		return nil, diag.Errorf(p.cur().Pos, diag.ErrExpectedIdent,
			"expected %s, got %s", what, p.cur().Type)
	}
	id := p.ident()
	p.advance()
	return id, nil
}

// ParseFile parses a complete Loom file.
func (p *Parser) ParseFile() (*ast.SourceFile, error) {
	file := &ast.SourceFile{Filename: p.filename}

	for !p.curIs(token.EOF) {
		decl, err := p.parseDeclaration()
		if err != nil {
			return nil, err
		}
		file.Decls = append(file.Decls, decl)
	}

	return file, nil
}

func (p *Parser) parseDeclaration() (ast.Decl, error) {
	switch p.cur().Type {
	case token.ENTITY:
		return p.parseEntityDecl()
	case token.VIEW:
		return p.parseViewDecl()
	case token.PAGE:
		return p.parsePageDecl()
	case token.WORKFLOW:
		return p.parseWorkflowDecl()
	case token.CONFIG:
		return p.parseConfigDecl()
	case token.ENUM:
		return p.parseEnumDecl()
	default:
		return nil, diag.Errorf(p.cur().Pos, diag.ErrExpectedDecl,
			"expected declaration keyword (entity, view, page, workflow, config, enum), got %s", p.cur().Type)
	}
}

// parseEntityDecl parses: entity Name { fields... }
func (p *Parser) parseEntityDecl() (*ast.EntityDecl, error) {
	decl := &ast.EntityDecl{StartPos: p.cur().Pos}
	p.advance() // consume entity

	name, err := p.expectIdent("entity name")
	if err != nil {
		return nil, err
	}
	decl.Name = name

	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}

	for !p.curIs(token.RBRACE) {
		if p.curIs(token.EOF) {
			return nil, diag.Errorf(p.cur().Pos, diag.ErrExpectedToken,
				"expected } to close entity %s", decl.Name.Name)
		}
		if p.curIs(token.COMMA) {
			p.advance()
			continue
		}
		field, err := p.parseFieldDecl()
		if err != nil {
			return nil, err
		}
		decl.Fields = append(decl.Fields, field)
	}

	rbrace, _ := p.expect(token.RBRACE)
	decl.EndPos = rbrace.End
	return decl, nil
}

// parseFieldDecl parses: name: Type['[]'] attribute*
func (p *Parser) parseFieldDecl() (*ast.FieldDecl, error) {
	field := &ast.FieldDecl{StartPos: p.cur().Pos}

	name, err := p.expectName("field name")
	if err != nil {
		return nil, err
	}
	field.Name = name

	if _, err := p.expect(token.COLON); err != nil {
		return nil, err
	}

	typ, err := p.parseTypeRef()
	if err != nil {
		return nil, err
	}
	field.Type = typ
	field.EndPos = typ.EndPos

	// Attributes run until a separator, the closing brace, or
	// something that looks like the start of the next field: a name
	// immediately followed by a colon.
	for !p.curIs(token.RBRACE) && !p.curIs(token.EOF) && !p.curIs(token.COMMA) {
		if isName(p.cur()) && p.peekIs(token.COLON) {
			break
		}
		attr, err := p.parseAttribute()
		if err != nil {
			return nil, err
		}
		field.Attrs = append(field.Attrs, attr)
		field.EndPos = attr.EndPos
	}

	return field, nil
}

// parseTypeRef parses a type name with an optional [] suffix.
func (p *Parser) parseTypeRef() (*ast.TypeRef, error) {
	ref := &ast.TypeRef{StartPos: p.cur().Pos}

	name, err := p.expectIdent("type name")
	if err != nil {
		return nil, err
	}
	ref.Name = name
	ref.EndPos = name.EndPos

	if p.curIs(token.LBRACKET) {
		p.advance()
		rbracket, err := p.expect(token.RBRACKET)
		if err != nil {
			return nil, err
		}
		ref.IsArray = true
		ref.EndPos = rbracket.End
	}

	return ref, nil
}

// parseAttribute parses a bare flag (unique), a call form
// (default(0)), or an at-form (@relation(name: "X")).
func (p *Parser) parseAttribute() (*ast.Attribute, error) {
	attr := &ast.Attribute{StartPos: p.cur().Pos}

	if p.curIs(token.AT) {
		attr.AtSign = true
		p.advance()
	}

	if !isName(p.cur()) {
		return nil, diag.Errorf(p.cur().Pos, diag.ErrInvalidAttr,
			"expected attribute name, got %s", p.cur().Type)
	}
	attr.Name = p.ident()
	attr.EndPos = p.cur().End
	p.advance()

	if p.curIs(token.LPAREN) {
		args, end, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		attr.Args = args
		attr.EndPos = end
	}

	return attr, nil
}

// parseArgs parses a parenthesized argument list. Arguments are
// positional values or name: value pairs; commas are optional.
func (p *Parser) parseArgs() ([]*ast.Arg, token.Position, error) {
	p.advance() // consume (

	var args []*ast.Arg
	for !p.curIs(token.RPAREN) {
		if p.curIs(token.EOF) {
			return nil, token.Position{}, diag.Errorf(p.cur().Pos, diag.ErrExpectedToken,
				"expected ) to close argument list")
		}
		if p.curIs(token.COMMA) {
			p.advance()
			continue
		}

		arg := &ast.Arg{StartPos: p.cur().Pos}
		if isName(p.cur()) && p.peekIs(token.COLON) {
			arg.Name = p.ident()
			p.advance() // name
			p.advance() // colon
		}

		value, err := p.parseValue()
		if err != nil {
			return nil, token.Position{}, err
		}
		arg.Value = value
		arg.EndPos = value.End()
		args = append(args, arg)
	}

	rparen := p.cur()
	p.advance()
	return args, rparen.End, nil
}

// parseViewDecl parses: view Name { properties... }
func (p *Parser) parseViewDecl() (*ast.ViewDecl, error) {
	decl := &ast.ViewDecl{StartPos: p.cur().Pos}
	p.advance() // consume view

	name, err := p.expectIdent("view name")
	if err != nil {
		return nil, err
	}
	decl.Name = name

	props, end, err := p.parsePropertyBody()
	if err != nil {
		return nil, err
	}
	decl.Properties = props
	decl.EndPos = end
	return decl, nil
}

// parsePageDecl parses: page Name { properties... }
func (p *Parser) parsePageDecl() (*ast.PageDecl, error) {
	decl := &ast.PageDecl{StartPos: p.cur().Pos}
	p.advance() // consume page

	name, err := p.expectIdent("page name")
	if err != nil {
		return nil, err
	}
	decl.Name = name

	props, end, err := p.parsePropertyBody()
	if err != nil {
		return nil, err
	}
	decl.Properties = props
	decl.EndPos = end
	return decl, nil
}

// parseWorkflowDecl parses: workflow Name { properties... }
func (p *Parser) parseWorkflowDecl() (*ast.WorkflowDecl, error) {
	decl := &ast.WorkflowDecl{StartPos: p.cur().Pos}
	p.advance() // consume workflow

	name, err := p.expectIdent("workflow name")
	if err != nil {
		return nil, err
	}
	decl.Name = name

	props, end, err := p.parsePropertyBody()
	if err != nil {
		return nil, err
	}
	decl.Properties = props
	decl.EndPos = end
	return decl, nil
}

// parseConfigDecl parses: config name { properties... }
func (p *Parser) parseConfigDecl() (*ast.ConfigDecl, error) {
	decl := &ast.ConfigDecl{StartPos: p.cur().Pos}
	p.advance() // consume config

	name, err := p.expectIdent("config section name")
	if err != nil {
		return nil, err
	}
	decl.Name = name

	props, end, err := p.parsePropertyBody()
	if err != nil {
		return nil, err
	}
	decl.Properties = props
	decl.EndPos = end
	return decl, nil
}

// parseEnumDecl parses: enum Name { VALUE_ONE VALUE_TWO }
func (p *Parser) parseEnumDecl() (*ast.EnumDecl, error) {
	decl := &ast.EnumDecl{StartPos: p.cur().Pos}
	p.advance() // consume enum

	name, err := p.expectIdent("enum name")
	if err != nil {
		return nil, err
	}
	decl.Name = name

	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}

	for !p.curIs(token.RBRACE) {
		if p.curIs(token.EOF) {
			return nil, diag.Errorf(p.cur().Pos, diag.ErrExpectedToken,
				"expected } to close enum %s", decl.Name.Name)
		}
		if p.curIs(token.COMMA) {
			p.advance()
			continue
		}
		value, err := p.expectIdent("enum value")
		if err != nil {
			return nil, err
		}
		decl.Values = append(decl.Values, value)
	}

	rbrace, _ := p.expect(token.RBRACE)
	decl.EndPos = rbrace.End
	return decl, nil
}

// parsePropertyBody parses { key: value ... } and returns the
// properties plus the position of the closing brace.
func (p *Parser) parsePropertyBody() ([]*ast.Property, token.Position, error) {
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, token.Position{}, err
	}

	props, err := p.parsePropertyList()
	if err != nil {
		return nil, token.Position{}, err
	}

	rbrace, _ := p.expect(token.RBRACE)
	return props, rbrace.End, nil
}

// parsePropertyList parses key: value entries up to (not consuming)
// the closing brace. Keys may be identifiers or keywords; commas are
// optional. A key directly followed by { is sugar for key: { ... }.
func (p *Parser) parsePropertyList() ([]*ast.Property, error) {
	var props []*ast.Property

	for !p.curIs(token.RBRACE) {
		if p.curIs(token.EOF) {
			return nil, diag.Errorf(p.cur().Pos, diag.ErrExpectedToken,
				"expected } to close block")
		}
		if p.curIs(token.COMMA) {
			p.advance()
			continue
		}
		if !isName(p.cur()) {
			return nil, diag.Errorf(p.cur().Pos, diag.ErrUnexpectedToken,
				"expected property key, got %s", p.cur().Type)
		}

		prop := &ast.Property{StartPos: p.cur().Pos}
		prop.Key = p.ident()
		p.advance()

		if p.curIs(token.LBRACE) {
			value, err := p.parseObjectLit()
			if err != nil {
				return nil, err
			}
			prop.Value = value
		} else {
			if _, err := p.expect(token.COLON); err != nil {
				return nil, err
			}
			value, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			prop.Value = value
		}

		prop.EndPos = prop.Value.End()
		props = append(props, prop)
	}

	return props, nil
}

// Value parsing. The language has no operators, so a single switch on
// the current token is enough; there is no precedence to climb.

func (p *Parser) parseValue() (ast.Expr, error) {
	switch p.cur().Type {
	case token.STRING:
		lit := &ast.StringLit{
			Value:    p.cur().Literal,
			StartPos: p.cur().Pos,
			EndPos:   p.cur().End,
		}
		p.advance()
		return lit, nil

	case token.INT:
		value, err := strconv.ParseInt(p.cur().Literal, 10, 64)
		if err != nil {
			return nil, diag.Errorf(p.cur().Pos, diag.ErrInvalidNumber,
				"invalid integer literal %q", p.cur().Literal)
		}
		lit := &ast.IntLit{
			Value:    value,
			StartPos: p.cur().Pos,
			EndPos:   p.cur().End,
		}
		p.advance()
		return lit, nil

	case token.FLOAT:
		value, err := strconv.ParseFloat(p.cur().Literal, 64)
		if err != nil {
			return nil, diag.Errorf(p.cur().Pos, diag.ErrInvalidNumber,
				"invalid float literal %q", p.cur().Literal)
		}
		lit := &ast.FloatLit{
			Value:    value,
			StartPos: p.cur().Pos,
			EndPos:   p.cur().End,
		}
		p.advance()
		return lit, nil

	case token.TRUE, token.FALSE:
		lit := &ast.BoolLit{
			Value:    p.curIs(token.TRUE),
			StartPos: p.cur().Pos,
			EndPos:   p.cur().End,
		}
		p.advance()
		return lit, nil

	case token.IDENT:
		return p.parseIdentValue()

	case token.LBRACKET:
		return p.parseArrayLit()

	case token.LBRACE:
		return p.parseObjectLit()

	default:
		return nil, diag.Errorf(p.cur().Pos, diag.ErrExpectedValue,
			"expected value, got %s", p.cur().Type)
	}
}

// parseIdentValue parses an identifier and whatever it leads into: a
// function call (env("X")), a qualified identifier (admin.User), or a
// plain identifier.
func (p *Parser) parseIdentValue() (ast.Expr, error) {
	id := p.ident()
	p.advance()

	if p.curIs(token.LPAREN) {
		call := &ast.CallExpr{Func: id, StartPos: id.StartPos}
		args, end, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		call.Args = args
		call.EndPos = end
		return call, nil
	}

	if p.curIs(token.DOT) {
		path := &ast.PathExpr{
			Parts:    []*ast.Ident{id},
			StartPos: id.StartPos,
		}
		for p.curIs(token.DOT) {
			p.advance()
			part, err := p.expectIdent("identifier after '.'")
			if err != nil {
				return nil, err
			}
			path.Parts = append(path.Parts, part)
		}
		path.EndPos = path.Parts[len(path.Parts)-1].EndPos
		return path, nil
	}

	return id, nil
}

// parseArrayLit parses [elem, elem, ...]. Separating commas are
// optional, so newline-separated and trailing-comma forms both work.
func (p *Parser) parseArrayLit() (*ast.ArrayLit, error) {
	arr := &ast.ArrayLit{StartPos: p.cur().Pos}
	p.advance() // consume [

	for !p.curIs(token.RBRACKET) {
		if p.curIs(token.EOF) {
			return nil, diag.Errorf(p.cur().Pos, diag.ErrExpectedToken,
				"expected ] to close array")
		}
		if p.curIs(token.COMMA) {
			p.advance()
			continue
		}
		elem, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		arr.Elems = append(arr.Elems, elem)
	}

	arr.EndPos = p.cur().End
	p.advance() // consume ]
	return arr, nil
}

// parseObjectLit parses { key: value ... }.
func (p *Parser) parseObjectLit() (*ast.ObjectLit, error) {
	obj := &ast.ObjectLit{StartPos: p.cur().Pos}
	p.advance() // consume {

	entries, err := p.parsePropertyList()
	if err != nil {
		return nil, err
	}
	obj.Entries = entries

	obj.EndPos = p.cur().End
	p.advance() // consume }
	return obj, nil
}

// Parse is a convenience function that tokenizes and parses input in
// one step.
func Parse(input, filename string) (*ast.SourceFile, error) {
	tokens, err := lexer.Tokenize(input, filename)
	if err != nil {
		return nil, err
	}
	return New(tokens, filename).ParseFile()
}
