// Package ast defines the Abstract Syntax Tree for the Loom language.
package ast

import "github.com/loom-lang/loom/internal/token"

// Node is the interface implemented by all AST nodes.
type Node interface {
	node()
	Pos() token.Position
	End() token.Position
}

// Decl is the interface implemented by all declaration nodes.
type Decl interface {
	Node
	decl()
	DeclName() *Ident
}

// Expr is the interface implemented by all expression nodes.
type Expr interface {
	Node
	expr()
}

// SourceFile represents a Loom source file. Declarations are kept in
// source order so diagnostics can be reported in the order they appear.
type SourceFile struct {
	Filename string
	Decls    []Decl
}

func (f *SourceFile) node() {}
func (f *SourceFile) Pos() token.Position {
	if len(f.Decls) > 0 {
		return f.Decls[0].Pos()
	}
	return token.Position{Filename: f.Filename, Line: 1, Column: 1}
}
func (f *SourceFile) End() token.Position {
	if len(f.Decls) > 0 {
		return f.Decls[len(f.Decls)-1].End()
	}
	return token.Position{Filename: f.Filename, Line: 1, Column: 1}
}

// EntityDecl represents an entity declaration.
type EntityDecl struct {
	Name     *Ident
	Fields   []*FieldDecl
	StartPos token.Position
	EndPos   token.Position
}

func (d *EntityDecl) node()               {}
func (d *EntityDecl) decl()               {}
func (d *EntityDecl) DeclName() *Ident    { return d.Name }
func (d *EntityDecl) Pos() token.Position { return d.StartPos }
func (d *EntityDecl) End() token.Position { return d.EndPos }

// FieldDecl represents a field declaration within an entity.
type FieldDecl struct {
	Name     *Ident
	Type     *TypeRef
	Attrs    []*Attribute
	StartPos token.Position
	EndPos   token.Position
}

func (d *FieldDecl) node()               {}
func (d *FieldDecl) Pos() token.Position { return d.StartPos }
func (d *FieldDecl) End() token.Position { return d.EndPos }

// Attr returns the field's attribute with the given name, or nil.
func (d *FieldDecl) Attr(name string) *Attribute {
	for _, a := range d.Attrs {
		if a.Name.Name == name {
			return a
		}
	}
	return nil
}

// HasAttr reports whether the field carries the named attribute.
func (d *FieldDecl) HasAttr(name string) bool {
	return d.Attr(name) != nil
}

// TypeRef represents a reference to a named type, e.g. String or Post[].
type TypeRef struct {
	Name     *Ident
	IsArray  bool
	StartPos token.Position
	EndPos   token.Position
}

func (t *TypeRef) node()               {}
func (t *TypeRef) Pos() token.Position { return t.StartPos }
func (t *TypeRef) End() token.Position { return t.EndPos }

// String returns the source form of the type, with the [] suffix for arrays.
func (t *TypeRef) String() string {
	if t.IsArray {
		return t.Name.Name + "[]"
	}
	return t.Name.Name
}

// Attribute represents a field attribute: a bare flag (primaryKey, unique),
// a call form (default(v), validate(...)), or an at-form (@relation(...)).
type Attribute struct {
	AtSign   bool
	Name     *Ident
	Args     []*Arg
	StartPos token.Position
	EndPos   token.Position
}

func (a *Attribute) node()               {}
func (a *Attribute) Pos() token.Position { return a.StartPos }
func (a *Attribute) End() token.Position { return a.EndPos }

// Arg returns the named argument, or nil if absent.
func (a *Attribute) Arg(name string) *Arg {
	for _, arg := range a.Args {
		if arg.Name != nil && arg.Name.Name == name {
			return arg
		}
	}
	return nil
}

// Arg represents an attribute or call argument, positional (Name == nil)
// or named (key: value).
type Arg struct {
	Name     *Ident
	Value    Expr
	StartPos token.Position
	EndPos   token.Position
}

func (a *Arg) node()               {}
func (a *Arg) Pos() token.Position { return a.StartPos }
func (a *Arg) End() token.Position { return a.EndPos }

// ViewDecl represents a view declaration. Its body is a property bag;
// the required from/fields properties are checked semantically, not
// syntactically.
type ViewDecl struct {
	Name       *Ident
	Properties []*Property
	StartPos   token.Position
	EndPos     token.Position
}

func (d *ViewDecl) node()               {}
func (d *ViewDecl) decl()               {}
func (d *ViewDecl) DeclName() *Ident    { return d.Name }
func (d *ViewDecl) Pos() token.Position { return d.StartPos }
func (d *ViewDecl) End() token.Position { return d.EndPos }

// PageDecl represents a page declaration.
type PageDecl struct {
	Name       *Ident
	Properties []*Property
	StartPos   token.Position
	EndPos     token.Position
}

func (d *PageDecl) node()               {}
func (d *PageDecl) decl()               {}
func (d *PageDecl) DeclName() *Ident    { return d.Name }
func (d *PageDecl) Pos() token.Position { return d.StartPos }
func (d *PageDecl) End() token.Position { return d.EndPos }

// WorkflowDecl represents a workflow declaration.
type WorkflowDecl struct {
	Name       *Ident
	Properties []*Property
	StartPos   token.Position
	EndPos     token.Position
}

func (d *WorkflowDecl) node()               {}
func (d *WorkflowDecl) decl()               {}
func (d *WorkflowDecl) DeclName() *Ident    { return d.Name }
func (d *WorkflowDecl) Pos() token.Position { return d.StartPos }
func (d *WorkflowDecl) End() token.Position { return d.EndPos }

// ConfigDecl represents a config section declaration (config db { ... }).
type ConfigDecl struct {
	Name       *Ident
	Properties []*Property
	StartPos   token.Position
	EndPos     token.Position
}

func (d *ConfigDecl) node()               {}
func (d *ConfigDecl) decl()               {}
func (d *ConfigDecl) DeclName() *Ident    { return d.Name }
func (d *ConfigDecl) Pos() token.Position { return d.StartPos }
func (d *ConfigDecl) End() token.Position { return d.EndPos }

// EnumDecl represents an enum declaration.
type EnumDecl struct {
	Name     *Ident
	Values   []*Ident
	StartPos token.Position
	EndPos   token.Position
}

func (d *EnumDecl) node()               {}
func (d *EnumDecl) decl()               {}
func (d *EnumDecl) DeclName() *Ident    { return d.Name }
func (d *EnumDecl) Pos() token.Position { return d.StartPos }
func (d *EnumDecl) End() token.Position { return d.EndPos }

// Property represents a key-value property.
type Property struct {
	Key      *Ident
	Value    Expr
	StartPos token.Position
	EndPos   token.Position
}

func (p *Property) node()               {}
func (p *Property) Pos() token.Position { return p.StartPos }
func (p *Property) End() token.Position { return p.EndPos }

// FindProp returns the first property with the given key, or nil.
func FindProp(props []*Property, key string) *Property {
	for _, p := range props {
		if p.Key.Name == key {
			return p
		}
	}
	return nil
}

// Expression nodes

// Ident represents an identifier.
type Ident struct {
	Name     string
	StartPos token.Position
	EndPos   token.Position
}

func (e *Ident) node()               {}
func (e *Ident) expr()               {}
func (e *Ident) Pos() token.Position { return e.StartPos }
func (e *Ident) End() token.Position { return e.EndPos }

// PathExpr represents a qualified identifier (e.g. admin.User).
type PathExpr struct {
	Parts    []*Ident
	StartPos token.Position
	EndPos   token.Position
}

func (e *PathExpr) node()               {}
func (e *PathExpr) expr()               {}
func (e *PathExpr) Pos() token.Position { return e.StartPos }
func (e *PathExpr) End() token.Position { return e.EndPos }

// String returns the dotted form of the path.
func (e *PathExpr) String() string {
	if len(e.Parts) == 0 {
		return ""
	}
	result := e.Parts[0].Name
	for _, part := range e.Parts[1:] {
		result += "." + part.Name
	}
	return result
}

// IntLit represents an integer literal.
type IntLit struct {
	Value    int64
	StartPos token.Position
	EndPos   token.Position
}

func (e *IntLit) node()               {}
func (e *IntLit) expr()               {}
func (e *IntLit) Pos() token.Position { return e.StartPos }
func (e *IntLit) End() token.Position { return e.EndPos }

// FloatLit represents a float literal.
type FloatLit struct {
	Value    float64
	StartPos token.Position
	EndPos   token.Position
}

func (e *FloatLit) node()               {}
func (e *FloatLit) expr()               {}
func (e *FloatLit) Pos() token.Position { return e.StartPos }
func (e *FloatLit) End() token.Position { return e.EndPos }

// StringLit represents a string literal.
type StringLit struct {
	Value    string
	StartPos token.Position
	EndPos   token.Position
}

func (e *StringLit) node()               {}
func (e *StringLit) expr()               {}
func (e *StringLit) Pos() token.Position { return e.StartPos }
func (e *StringLit) End() token.Position { return e.EndPos }

// BoolLit represents a boolean literal.
type BoolLit struct {
	Value    bool
	StartPos token.Position
	EndPos   token.Position
}

func (e *BoolLit) node()               {}
func (e *BoolLit) expr()               {}
func (e *BoolLit) Pos() token.Position { return e.StartPos }
func (e *BoolLit) End() token.Position { return e.EndPos }

// ArrayLit represents an array literal. Elements may be separated by
// commas or newlines in source; only the elements survive parsing.
type ArrayLit struct {
	Elems    []Expr
	StartPos token.Position
	EndPos   token.Position
}

func (e *ArrayLit) node()               {}
func (e *ArrayLit) expr()               {}
func (e *ArrayLit) Pos() token.Position { return e.StartPos }
func (e *ArrayLit) End() token.Position { return e.EndPos }

// ObjectLit represents an object literal ({ key: value ... }).
type ObjectLit struct {
	Entries  []*Property
	StartPos token.Position
	EndPos   token.Position
}

func (e *ObjectLit) node()               {}
func (e *ObjectLit) expr()               {}
func (e *ObjectLit) Pos() token.Position { return e.StartPos }
func (e *ObjectLit) End() token.Position { return e.EndPos }

// Entry returns the entry with the given key, or nil.
func (e *ObjectLit) Entry(key string) *Property {
	return FindProp(e.Entries, key)
}

// CallExpr represents a function call value (e.g. env("DATABASE_URL")).
type CallExpr struct {
	Func     *Ident
	Args     []*Arg
	StartPos token.Position
	EndPos   token.Position
}

func (e *CallExpr) node()               {}
func (e *CallExpr) expr()               {}
func (e *CallExpr) Pos() token.Position { return e.StartPos }
func (e *CallExpr) End() token.Position { return e.EndPos }
