// Package normalizer lowers a validated AST into the IR: it fills in
// defaults, normalizes types, and derives the implicit inverse side of
// relations. The input must have passed analysis with no errors;
// normalization itself cannot fail.
package normalizer

import (
	"strconv"
	"strings"

	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/ir"
)

// Normalizer builds an ir.Application from a validated source file.
type Normalizer struct {
	file *ast.SourceFile
}

// New creates a new Normalizer.
func New(file *ast.SourceFile) *Normalizer {
	return &Normalizer{file: file}
}

// Normalize builds the IR. Declarations are processed in source order
// so the output is deterministic for a given input.
func (n *Normalizer) Normalize() *ir.Application {
	app := &ir.Application{}

	for _, decl := range n.file.Decls {
		switch d := decl.(type) {
		case *ast.EntityDecl:
			app.Entities = append(app.Entities, n.normalizeEntity(d))
		case *ast.ViewDecl:
			app.Views = append(app.Views, n.normalizeView(d))
		case *ast.PageDecl:
			app.Pages = append(app.Pages, n.normalizePage(d))
		case *ast.WorkflowDecl:
			app.Workflows = append(app.Workflows, n.normalizeWorkflow(d))
		case *ast.ConfigDecl:
			n.normalizeConfig(app, d)
		case *ast.EnumDecl:
			n.normalizeEnum(app, d)
		}
	}

	symmetrizeRelations(app)

	return app
}

func (n *Normalizer) normalizeEntity(decl *ast.EntityDecl) *ir.Entity {
	entity := &ir.Entity{Name: decl.Name.Name}

	for _, field := range decl.Fields {
		f, rel := n.normalizeField(field)
		entity.Fields = append(entity.Fields, f)
		if rel != nil {
			entity.Relations = append(entity.Relations, rel)
		}
	}

	// Inject the id primary key when the source declares none. It goes
	// first so generators can rely on fields[0] being the key.
	if entity.PrimaryKeyField() == nil {
		id := &ir.Field{Name: "id", Type: "UUID", PrimaryKey: true}
		entity.Fields = append([]*ir.Field{id}, entity.Fields...)
	}

	return entity
}

func (n *Normalizer) normalizeField(decl *ast.FieldDecl) (*ir.Field, *ir.Relation) {
	field := &ir.Field{Name: decl.Name.Name}

	// Storage subtleties expressed as distinct source types become a
	// base type plus a marker flag.
	base := decl.Type.Name.Name
	switch base {
	case "Password":
		base = "String"
		field.IsPassword = true
	case "Text":
		base = "String"
		field.IsLongText = true
	case "Decimal":
		base = "Float"
		field.IsDecimal = true
	case "Date":
		base = "DateTime"
		field.IsDateOnly = true
	}
	if decl.Type.IsArray {
		base += "[]"
	}
	field.Type = base

	var rel *ir.Relation
	for _, attr := range decl.Attrs {
		switch attr.Name.Name {
		case "primaryKey":
			field.PrimaryKey = true
		case "unique":
			field.Unique = true
		case "optional":
			field.Optional = true
		case "readonly":
			field.Readonly = true
		case "default":
			if len(attr.Args) > 0 {
				field.Default = flattenValue(attr.Args[0].Value)
			}
		case "validate":
			field.Validate = normalizeValidation(attr)
		case "relation":
			rel = normalizeRelation(decl, attr)
		case "virtual":
			field.IsVirtual = true
			if arg := attr.Arg("from"); arg != nil {
				if s, ok := arg.Value.(*ast.StringLit); ok {
					field.VirtualFrom = s.Value
				}
			}
		}
	}

	return field, rel
}

// normalizeValidation decomposes validate(...) into its structured
// form. A bare single argument has no named keys to map, so it is kept
// verbatim in Raw.
func normalizeValidation(attr *ast.Attribute) *ir.Validation {
	v := &ir.Validation{}
	structured := false

	for _, arg := range attr.Args {
		if arg.Name == nil {
			continue
		}
		switch arg.Name.Name {
		case "min":
			if f, ok := numberValue(arg.Value); ok {
				v.Min = &f
				structured = true
			}
		case "max":
			if f, ok := numberValue(arg.Value); ok {
				v.Max = &f
				structured = true
			}
		case "pattern":
			if s, ok := arg.Value.(*ast.StringLit); ok {
				v.Pattern = s.Value
				structured = true
			}
		}
	}

	if !structured && len(attr.Args) == 1 && attr.Args[0].Name == nil {
		v.Raw = printValue(attr.Args[0].Value)
	}

	return v
}

func normalizeRelation(decl *ast.FieldDecl, attr *ast.Attribute) *ir.Relation {
	rel := &ir.Relation{
		TargetEntity: decl.Type.Name.Name,
		FieldName:    decl.Name.Name,
	}
	if decl.Type.IsArray {
		rel.Kind = ir.OneToMany
	} else {
		rel.Kind = ir.ManyToOne
	}
	if arg := attr.Arg("name"); arg != nil {
		if s, ok := arg.Value.(*ast.StringLit); ok {
			rel.RelationName = s.Value
		}
	}
	return rel
}

func (n *Normalizer) normalizeView(decl *ast.ViewDecl) *ir.View {
	view := &ir.View{Name: decl.Name.Name}

	if from := ast.FindProp(decl.Properties, "from"); from != nil {
		view.SourceEntity = stringValue(from.Value)
	}

	fieldsProp := ast.FindProp(decl.Properties, "fields")
	if fieldsProp == nil {
		return view
	}
	arr, ok := fieldsProp.Value.(*ast.ArrayLit)
	if !ok {
		return view
	}
	for _, elem := range arr.Elems {
		obj, isObj := elem.(*ast.ObjectLit)
		if !isObj {
			continue
		}
		vf := &ir.ViewField{}
		if entry := obj.Entry("name"); entry != nil {
			vf.Name = stringValue(entry.Value)
		}
		if entry := obj.Entry("type"); entry != nil {
			vf.Type = stringValue(entry.Value)
		}
		if entry := obj.Entry("expression"); entry != nil {
			vf.Expression = stringValue(entry.Value)
		}
		view.Fields = append(view.Fields, vf)
	}

	return view
}

func (n *Normalizer) normalizePage(decl *ast.PageDecl) *ir.Page {
	page := &ir.Page{Name: decl.Name.Name}

	for _, prop := range decl.Properties {
		switch prop.Key.Name {
		case "type":
			page.PageType = stringValue(prop.Value)
		case "entity":
			page.EntityOrViewRef = stringValue(prop.Value)
		case "route":
			page.Route = stringValue(prop.Value)
		case "permissions":
			page.Permissions = stringSlice(prop.Value)
		default:
			if page.Props == nil {
				page.Props = make(map[string]any)
			}
			page.Props[prop.Key.Name] = flattenValue(prop.Value)
		}
	}

	return page
}

func (n *Normalizer) normalizeWorkflow(decl *ast.WorkflowDecl) *ir.Workflow {
	wf := &ir.Workflow{Name: decl.Name.Name}

	for _, prop := range decl.Properties {
		if prop.Key.Name == "trigger" {
			if obj, ok := prop.Value.(*ast.ObjectLit); ok {
				wf.Trigger = normalizeTrigger(obj)
			}
			continue
		}
		if wf.Props == nil {
			wf.Props = make(map[string]any)
		}
		wf.Props[prop.Key.Name] = flattenValue(prop.Value)
	}

	return wf
}

func normalizeTrigger(obj *ast.ObjectLit) *ir.Trigger {
	trigger := &ir.Trigger{}
	for _, entry := range obj.Entries {
		switch entry.Key.Name {
		case "event":
			trigger.Event = stringValue(entry.Value)
		case "entity":
			trigger.Entity = stringValue(entry.Value)
		default:
			if trigger.Props == nil {
				trigger.Props = make(map[string]any)
			}
			trigger.Props[entry.Key.Name] = flattenValue(entry.Value)
		}
	}
	return trigger
}

// normalizeConfig routes the known config sections into their typed
// slots. Unknown sections were warned about during analysis and are
// dropped here.
func (n *Normalizer) normalizeConfig(app *ir.Application, decl *ast.ConfigDecl) {
	switch decl.Name.Name {
	case "db":
		ensureConfig(app).DB = propsMap(decl.Properties)
	case "auth":
		ensureConfig(app).Auth = normalizeAuth(decl.Properties)
	case "integrations":
		ensureConfig(app).Integrations = propsMap(decl.Properties)
	}
}

func normalizeAuth(props []*ast.Property) *ir.AuthConfig {
	auth := &ir.AuthConfig{}
	for _, p := range props {
		switch p.Key.Name {
		case "provider":
			auth.Provider = stringValue(p.Value)
		case "userEntity":
			auth.UserEntity = stringValue(p.Value)
		default:
			if auth.Props == nil {
				auth.Props = make(map[string]any)
			}
			auth.Props[p.Key.Name] = flattenValue(p.Value)
		}
	}
	return auth
}

func (n *Normalizer) normalizeEnum(app *ir.Application, decl *ast.EnumDecl) {
	cfg := ensureConfig(app)
	if cfg.Enums == nil {
		cfg.Enums = make(map[string][]string)
	}
	values := make([]string, 0, len(decl.Values))
	for _, v := range decl.Values {
		values = append(values, v.Name)
	}
	cfg.Enums[decl.Name.Name] = values
}

func ensureConfig(app *ir.Application) *ir.Config {
	if app.Config == nil {
		app.Config = &ir.Config{}
	}
	return app.Config
}

// propsMap flattens a property list into a plain map.
func propsMap(props []*ast.Property) map[string]any {
	m := make(map[string]any, len(props))
	for _, p := range props {
		m[p.Key.Name] = flattenValue(p.Value)
	}
	return m
}

// symmetrizeRelations guarantees both directions of every relationship
// exist. When a declared relation has no inverse on its target entity,
// one is synthesized with the kind swapped, backed by a virtual field,
// so the target side is independently queryable.
func symmetrizeRelations(app *ir.Application) {
	for _, entity := range app.Entities {
		for _, rel := range entity.Relations {
			target := app.Entity(rel.TargetEntity)
			if target == nil || hasInverse(target, entity.Name, rel) {
				continue
			}
			synthesizeInverse(entity, target, rel)
		}
	}
}

// hasInverse reports whether the target entity already declares the
// other direction: a distinct relation pointing back at the source
// under the same relation name.
func hasInverse(target *ir.Entity, sourceName string, rel *ir.Relation) bool {
	for _, r := range target.Relations {
		if r == rel {
			continue
		}
		if r.TargetEntity == sourceName && r.RelationName == rel.RelationName {
			return true
		}
	}
	return false
}

func synthesizeInverse(source, target *ir.Entity, rel *ir.Relation) {
	kind := invertKind(rel.Kind)

	fieldName := lowerCamel(source.Name)
	fieldType := source.Name
	if kind == ir.OneToMany || kind == ir.ManyToMany {
		fieldName = pluralize(fieldName)
		fieldType += "[]"
	}

	// The backing field is skipped when the name is already taken; the
	// inverse relation still points at the existing field.
	if target.Field(fieldName) == nil {
		target.Fields = append(target.Fields, &ir.Field{
			Name:      fieldName,
			Type:      fieldType,
			IsVirtual: true,
		})
	}

	target.Relations = append(target.Relations, &ir.Relation{
		Kind:         kind,
		TargetEntity: source.Name,
		FieldName:    fieldName,
		RelationName: rel.RelationName,
	})
}

// invertKind swaps the direction of a relation kind. The symmetric
// kinds are their own inverses.
func invertKind(kind string) string {
	switch kind {
	case ir.OneToMany:
		return ir.ManyToOne
	case ir.ManyToOne:
		return ir.OneToMany
	default:
		return kind
	}
}

func lowerCamel(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// pluralize applies basic English pluralization rules.
// "user" → "users", "category" → "categories", "address" → "addresses"
func pluralize(word string) string {
	if word == "" {
		return word
	}
	if strings.HasSuffix(word, "y") && len(word) > 1 && !isVowel(word[len(word)-2]) {
		return word[:len(word)-1] + "ies"
	}
	if strings.HasSuffix(word, "s") || strings.HasSuffix(word, "x") ||
		strings.HasSuffix(word, "z") || strings.HasSuffix(word, "sh") ||
		strings.HasSuffix(word, "ch") {
		return word + "es"
	}
	return word + "s"
}

func isVowel(b byte) bool {
	return b == 'a' || b == 'e' || b == 'i' || b == 'o' || b == 'u'
}

// Value lowering helpers.

// flattenValue lowers an AST expression to a plain serializable value.
// Function calls keep their printed source form; resolving env(...)
// and friends is a later stage's concern.
func flattenValue(expr ast.Expr) any {
	switch e := expr.(type) {
	case *ast.StringLit:
		return e.Value
	case *ast.IntLit:
		return e.Value
	case *ast.FloatLit:
		return e.Value
	case *ast.BoolLit:
		return e.Value
	case *ast.Ident:
		return e.Name
	case *ast.PathExpr:
		return e.String()
	case *ast.ArrayLit:
		values := make([]any, 0, len(e.Elems))
		for _, elem := range e.Elems {
			values = append(values, flattenValue(elem))
		}
		return values
	case *ast.ObjectLit:
		obj := make(map[string]any, len(e.Entries))
		for _, entry := range e.Entries {
			obj[entry.Key.Name] = flattenValue(entry.Value)
		}
		return obj
	case *ast.CallExpr:
		return printValue(e)
	default:
		return nil
	}
}

// printValue renders an expression in compact source form. String
// arguments print without quotes, so env("DATABASE_URL") comes out as
// env(DATABASE_URL).
func printValue(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.StringLit:
		return e.Value
	case *ast.IntLit:
		return strconv.FormatInt(e.Value, 10)
	case *ast.FloatLit:
		return strconv.FormatFloat(e.Value, 'g', -1, 64)
	case *ast.BoolLit:
		return strconv.FormatBool(e.Value)
	case *ast.Ident:
		return e.Name
	case *ast.PathExpr:
		return e.String()
	case *ast.CallExpr:
		parts := make([]string, 0, len(e.Args))
		for _, arg := range e.Args {
			if arg.Name != nil {
				parts = append(parts, arg.Name.Name+": "+printValue(arg.Value))
			} else {
				parts = append(parts, printValue(arg.Value))
			}
		}
		return e.Func.Name + "(" + strings.Join(parts, ", ") + ")"
	default:
		return ""
	}
}

// stringValue extracts the string form of a reference-like value. Bare
// identifiers and quoted strings are interchangeable in property
// position.
func stringValue(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.StringLit:
		return e.Value
	case *ast.PathExpr:
		return e.String()
	default:
		return ""
	}
}

// numberValue extracts a float64 from an int or float literal.
func numberValue(expr ast.Expr) (float64, bool) {
	switch e := expr.(type) {
	case *ast.IntLit:
		return float64(e.Value), true
	case *ast.FloatLit:
		return e.Value, true
	default:
		return 0, false
	}
}

func stringSlice(expr ast.Expr) []string {
	arr, ok := expr.(*ast.ArrayLit)
	if !ok {
		if s := stringValue(expr); s != "" {
			return []string{s}
		}
		return nil
	}
	var values []string
	for _, elem := range arr.Elems {
		if s := stringValue(elem); s != "" {
			values = append(values, s)
		}
	}
	return values
}

// Normalize is a convenience function that lowers a validated file.
func Normalize(file *ast.SourceFile) *ir.Application {
	return New(file).Normalize()
}
