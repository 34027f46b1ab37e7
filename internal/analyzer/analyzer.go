// Package analyzer provides semantic validation for the Loom language.
// It resolves names against one shared namespace and collects every
// problem it finds: unlike the lexer and parser, the analyzer never
// aborts on the first issue.
package analyzer

import (
	"fmt"
	"sort"

	"github.com/loom-lang/loom/internal/ast"
	"github.com/loom-lang/loom/internal/diag"
	"github.com/loom-lang/loom/internal/token"
)

const suggestionThreshold = 0.6

// DeclKind identifies which kind of declaration owns a name in the
// shared entity/view/enum namespace.
type DeclKind string

const (
	KindEntity DeclKind = "entity"
	KindView   DeclKind = "view"
	KindEnum   DeclKind = "enum"
)

// builtinTypes are the field types understood without a declaration.
var builtinTypes = map[string]bool{
	"String":   true,
	"Text":     true,
	"Password": true,
	"Int":      true,
	"Float":    true,
	"Decimal":  true,
	"Boolean":  true,
	"Date":     true,
	"DateTime": true,
	"UUID":     true,
	"JSON":     true,
}

// Config sections the compiler knows how to interpret.
var knownConfigSections = map[string]bool{
	"db":           true,
	"auth":         true,
	"integrations": true,
}

// Scope holds the resolved declarations later passes need. A Scope is
// owned by a single Analyze call; nothing in it is process-wide, so
// independent compiles never interfere.
type Scope struct {
	Names    map[string]DeclKind
	Entities map[string]*ast.EntityDecl
	Views    map[string]*ast.ViewDecl
	Enums    map[string]*ast.EnumDecl
}

// ResolvesType reports whether a field type name resolves to a builtin
// type, a declared entity, or a declared enum.
func (s *Scope) ResolvesType(name string) bool {
	if builtinTypes[name] {
		return true
	}
	if _, ok := s.Entities[name]; ok {
		return true
	}
	_, ok := s.Enums[name]
	return ok
}

// Analyzer performs semantic validation on a Loom AST.
type Analyzer struct {
	file  *ast.SourceFile
	scope *Scope
	diag  *diag.Diagnostics
}

// New creates a new Analyzer.
func New(file *ast.SourceFile) *Analyzer {
	return &Analyzer{
		file: file,
		scope: &Scope{
			Names:    make(map[string]DeclKind),
			Entities: make(map[string]*ast.EntityDecl),
			Views:    make(map[string]*ast.ViewDecl),
			Enums:    make(map[string]*ast.EnumDecl),
		},
		diag: diag.New(),
	}
}

// Analyze runs both validation passes and returns the diagnostics,
// sorted by source position. The AST is never mutated.
func (a *Analyzer) Analyze() *diag.Diagnostics {
	// Pass 1: collect names
	a.collectDeclarations()

	// Pass 2: per-declaration checks
	a.checkDeclarations()

	a.diag.Sort()
	return a.diag
}

// Scope returns the collected scope for use by the normalizer.
func (a *Analyzer) Scope() *Scope {
	return a.scope
}

// collectDeclarations registers entity, view, and enum names in the
// shared namespace. The first declaration wins a contested name; later
// ones get a diagnostic and are skipped, so follow-up checks still see
// a consistent scope.
func (a *Analyzer) collectDeclarations() {
	pages := make(map[string]bool)
	workflows := make(map[string]bool)
	configs := make(map[string]bool)

	for _, decl := range a.file.Decls {
		switch d := decl.(type) {
		case *ast.EntityDecl:
			if prior, exists := a.scope.Names[d.Name.Name]; exists {
				a.reportDuplicate(d, prior)
				continue
			}
			a.scope.Names[d.Name.Name] = KindEntity
			a.scope.Entities[d.Name.Name] = d

		case *ast.ViewDecl:
			if prior, exists := a.scope.Names[d.Name.Name]; exists {
				a.reportDuplicate(d, prior)
				continue
			}
			a.scope.Names[d.Name.Name] = KindView
			a.scope.Views[d.Name.Name] = d

		case *ast.EnumDecl:
			if prior, exists := a.scope.Names[d.Name.Name]; exists {
				a.reportDuplicate(d, prior)
				continue
			}
			a.scope.Names[d.Name.Name] = KindEnum
			a.scope.Enums[d.Name.Name] = d

		case *ast.PageDecl:
			if pages[d.Name.Name] {
				a.diag.AddError(rangeOf(d), diag.ErrDuplicateDecl,
					fmt.Sprintf("duplicate page declaration: %s", d.Name.Name))
				continue
			}
			pages[d.Name.Name] = true

		case *ast.WorkflowDecl:
			if workflows[d.Name.Name] {
				a.diag.AddError(rangeOf(d), diag.ErrDuplicateDecl,
					fmt.Sprintf("duplicate workflow declaration: %s", d.Name.Name))
				continue
			}
			workflows[d.Name.Name] = true

		case *ast.ConfigDecl:
			if configs[d.Name.Name] {
				a.diag.AddError(rangeOf(d), diag.ErrDuplicateDecl,
					fmt.Sprintf("duplicate config section: %s", d.Name.Name))
				continue
			}
			configs[d.Name.Name] = true
		}
	}

	if len(a.scope.Entities) == 0 {
		pos := token.Position{Filename: a.file.Filename, Line: 1, Column: 1}
		a.diag.AddErrorAt(pos, diag.ErrNoEntities, "at least one entity is required")
	}
}

func (a *Analyzer) reportDuplicate(d ast.Decl, prior DeclKind) {
	a.diag.AddError(rangeOf(d), diag.ErrDuplicateDecl,
		fmt.Sprintf("duplicate declaration: %s is already declared as %s",
			d.DeclName().Name, prior))
}

func (a *Analyzer) checkDeclarations() {
	for _, decl := range a.file.Decls {
		switch d := decl.(type) {
		case *ast.EntityDecl:
			a.checkEntity(d)
		case *ast.ViewDecl:
			a.checkView(d)
		case *ast.PageDecl:
			a.checkPage(d)
		case *ast.WorkflowDecl:
			a.checkWorkflow(d)
		case *ast.ConfigDecl:
			a.checkConfig(d)
		case *ast.EnumDecl:
			a.checkEnum(d)
		}
	}
}

func (a *Analyzer) checkEntity(entity *ast.EntityDecl) {
	seen := make(map[string]bool)
	var primary []*ast.FieldDecl

	for _, field := range entity.Fields {
		if seen[field.Name.Name] {
			a.diag.AddError(rangeOf(field), diag.ErrDuplicateField,
				fmt.Sprintf("field %s already defined in entity %s",
					field.Name.Name, entity.Name.Name))
			continue
		}
		seen[field.Name.Name] = true

		// A relation field's type must name an entity; the specific
		// check replaces the generic type resolution so a bad target
		// produces one diagnostic, not two.
		if field.HasAttr("relation") {
			a.checkRelationField(entity, field)
		} else {
			a.checkFieldType(entity, field)
		}
		a.checkVirtualAttr(entity, field)

		if field.HasAttr("primaryKey") {
			primary = append(primary, field)
			if field.HasAttr("optional") {
				a.diag.AddError(rangeOf(field), diag.ErrAttrConflict,
					fmt.Sprintf("field %s in entity %s cannot be both primaryKey and optional",
						field.Name.Name, entity.Name.Name))
			}
		}
	}

	if len(primary) > 1 {
		a.diag.AddError(rangeOf(primary[1]), diag.ErrMultiplePrimary,
			fmt.Sprintf("entity %s declares %d primaryKey fields, want at most one",
				entity.Name.Name, len(primary)))
	}
}

func (a *Analyzer) checkFieldType(entity *ast.EntityDecl, field *ast.FieldDecl) {
	name := field.Type.Name.Name
	if a.scope.ResolvesType(name) {
		return
	}
	a.addUnresolved(rangeOf(field.Type), diag.ErrUnknownType,
		fmt.Sprintf("unknown type %s for field %s in entity %s",
			name, field.Name.Name, entity.Name.Name),
		name, a.typeCandidates())
}

func (a *Analyzer) checkRelationField(entity *ast.EntityDecl, field *ast.FieldDecl) {
	target := field.Type.Name.Name
	if _, ok := a.scope.Entities[target]; !ok {
		a.addUnresolved(rangeOf(field.Type), diag.ErrRelationTarget,
			fmt.Sprintf("relation field %s in entity %s targets unknown entity %s",
				field.Name.Name, entity.Name.Name, target),
			target, a.entityCandidates())
	}

	rel := field.Attr("relation")
	if arg := rel.Arg("name"); arg != nil {
		if _, ok := arg.Value.(*ast.StringLit); !ok {
			a.diag.AddError(rangeOf(arg), diag.ErrArgType,
				fmt.Sprintf("relation name for field %s in entity %s must be a string",
					field.Name.Name, entity.Name.Name))
		}
	}
}

func (a *Analyzer) checkVirtualAttr(entity *ast.EntityDecl, field *ast.FieldDecl) {
	virt := field.Attr("virtual")
	if virt == nil {
		return
	}
	if arg := virt.Arg("from"); arg != nil {
		if _, ok := arg.Value.(*ast.StringLit); !ok {
			a.diag.AddError(rangeOf(arg), diag.ErrArgType,
				fmt.Sprintf("virtual resolver for field %s in entity %s must be a string",
					field.Name.Name, entity.Name.Name))
		}
	}
}

func (a *Analyzer) checkView(view *ast.ViewDecl) {
	from := ast.FindProp(view.Properties, "from")
	if from == nil {
		a.diag.AddError(rangeOf(view), diag.ErrMissingProperty,
			fmt.Sprintf("view %s missing required property from", view.Name.Name))
	} else if name, ok := refName(from.Value); !ok {
		a.diag.AddError(rangeOf(from), diag.ErrBadPropertyValue,
			fmt.Sprintf("from of view %s must name an entity", view.Name.Name))
	} else if _, exists := a.scope.Entities[name]; !exists {
		a.addUnresolved(rangeOf(from), diag.ErrUnresolvedRef,
			fmt.Sprintf("view %s references unknown entity %s", view.Name.Name, name),
			name, a.entityCandidates())
	}

	fieldsProp := ast.FindProp(view.Properties, "fields")
	if fieldsProp == nil {
		a.diag.AddError(rangeOf(view), diag.ErrMissingProperty,
			fmt.Sprintf("view %s missing required property fields", view.Name.Name))
		return
	}
	arr, ok := fieldsProp.Value.(*ast.ArrayLit)
	if !ok {
		a.diag.AddError(rangeOf(fieldsProp), diag.ErrBadPropertyValue,
			fmt.Sprintf("fields of view %s must be an array", view.Name.Name))
		return
	}
	for _, elem := range arr.Elems {
		obj, isObj := elem.(*ast.ObjectLit)
		if !isObj {
			a.diag.AddError(rangeOf(elem), diag.ErrBadPropertyValue,
				fmt.Sprintf("field entries of view %s must be objects", view.Name.Name))
			continue
		}
		if obj.Entry("name") == nil {
			a.diag.AddError(rangeOf(obj), diag.ErrBadPropertyValue,
				fmt.Sprintf("field entry of view %s missing name", view.Name.Name))
		}
	}
}

func (a *Analyzer) checkPage(page *ast.PageDecl) {
	typeProp := ast.FindProp(page.Properties, "type")
	if typeProp == nil {
		a.diag.AddError(rangeOf(page), diag.ErrMissingProperty,
			fmt.Sprintf("page %s missing required property type", page.Name.Name))
		return
	}

	// Custom pages render arbitrary content and bind to nothing.
	if pageType, _ := refName(typeProp.Value); pageType == "custom" {
		return
	}

	entityProp := ast.FindProp(page.Properties, "entity")
	if entityProp == nil {
		a.diag.AddError(rangeOf(page), diag.ErrMissingProperty,
			fmt.Sprintf("page %s missing required property entity", page.Name.Name))
		return
	}
	name, ok := refName(entityProp.Value)
	if !ok {
		a.diag.AddError(rangeOf(entityProp), diag.ErrBadPropertyValue,
			fmt.Sprintf("entity of page %s must name an entity or view", page.Name.Name))
		return
	}
	if kind := a.scope.Names[name]; kind == KindEntity || kind == KindView {
		return
	}
	a.addUnresolved(rangeOf(entityProp), diag.ErrUnresolvedRef,
		fmt.Sprintf("page %s references unknown entity or view %s", page.Name.Name, name),
		name, a.refCandidates())
}

func (a *Analyzer) checkWorkflow(wf *ast.WorkflowDecl) {
	trigger := ast.FindProp(wf.Properties, "trigger")
	if trigger == nil {
		a.diag.AddError(rangeOf(wf), diag.ErrMissingProperty,
			fmt.Sprintf("workflow %s missing required property trigger", wf.Name.Name))
		return
	}
	obj, ok := trigger.Value.(*ast.ObjectLit)
	if !ok {
		a.diag.AddError(rangeOf(trigger), diag.ErrBadPropertyValue,
			fmt.Sprintf("trigger of workflow %s must be an object", wf.Name.Name))
		return
	}
	if obj.Entry("event") == nil {
		a.diag.AddError(rangeOf(obj), diag.ErrMissingProperty,
			fmt.Sprintf("trigger of workflow %s missing required property event", wf.Name.Name))
	}
	entityEntry := obj.Entry("entity")
	if entityEntry == nil {
		return
	}
	name, ok := refName(entityEntry.Value)
	if !ok {
		a.diag.AddError(rangeOf(entityEntry), diag.ErrBadPropertyValue,
			fmt.Sprintf("trigger entity of workflow %s must name an entity", wf.Name.Name))
		return
	}
	if _, exists := a.scope.Entities[name]; !exists {
		a.addUnresolved(rangeOf(entityEntry), diag.ErrUnresolvedRef,
			fmt.Sprintf("workflow %s trigger references unknown entity %s", wf.Name.Name, name),
			name, a.entityCandidates())
	}
}

func (a *Analyzer) checkConfig(cfg *ast.ConfigDecl) {
	if !knownConfigSections[cfg.Name.Name] {
		a.diag.AddWarning(rangeOf(cfg), diag.WarnUnknownConfig,
			fmt.Sprintf("unknown config section %s", cfg.Name.Name))
	}
	if cfg.Name.Name != "auth" {
		return
	}

	if ast.FindProp(cfg.Properties, "provider") == nil {
		a.diag.AddError(rangeOf(cfg), diag.ErrMissingProperty,
			"config auth missing required property provider")
	}
	userEntity := ast.FindProp(cfg.Properties, "userEntity")
	if userEntity == nil {
		return
	}
	name, ok := refName(userEntity.Value)
	if !ok {
		a.diag.AddError(rangeOf(userEntity), diag.ErrBadPropertyValue,
			"userEntity of config auth must name an entity")
		return
	}
	if _, exists := a.scope.Entities[name]; !exists {
		a.addUnresolved(rangeOf(userEntity), diag.ErrUnresolvedRef,
			fmt.Sprintf("config auth userEntity references unknown entity %s", name),
			name, a.entityCandidates())
	}
}

func (a *Analyzer) checkEnum(enum *ast.EnumDecl) {
	if len(enum.Values) == 0 {
		a.diag.AddError(rangeOf(enum), diag.ErrEmptyEnum,
			fmt.Sprintf("enum %s has no values", enum.Name.Name))
		return
	}

	seen := make(map[string]bool)
	for _, v := range enum.Values {
		if seen[v.Name] {
			a.diag.AddError(rangeOf(v), diag.ErrDuplicateEnumValue,
				fmt.Sprintf("duplicate value %s in enum %s", v.Name, enum.Name.Name))
			continue
		}
		seen[v.Name] = true

		if !isUpperSnake(v.Name) {
			a.diag.AddWarning(rangeOf(v), diag.WarnEnumCasing,
				fmt.Sprintf("enum value %s should be UPPERCASE_WITH_UNDERSCORES", v.Name))
		}
	}
}

// addUnresolved reports an unresolved name, attaching a did-you-mean
// hint when a close candidate exists.
func (a *Analyzer) addUnresolved(r diag.Range, code, msg, target string, candidates []string) {
	if closest := findClosest(target, candidates, suggestionThreshold); closest != "" {
		a.diag.AddErrorWithHint(r, code, msg, fmt.Sprintf("did you mean %q?", closest))
		return
	}
	a.diag.AddError(r, code, msg)
}

// typeCandidates returns every name a field type could resolve to. The
// slice is sorted so hint selection is deterministic across compiles.
func (a *Analyzer) typeCandidates() []string {
	names := make([]string, 0, len(builtinTypes)+len(a.scope.Entities)+len(a.scope.Enums))
	for name := range builtinTypes {
		names = append(names, name)
	}
	for name := range a.scope.Entities {
		names = append(names, name)
	}
	for name := range a.scope.Enums {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (a *Analyzer) entityCandidates() []string {
	names := make([]string, 0, len(a.scope.Entities))
	for name := range a.scope.Entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (a *Analyzer) refCandidates() []string {
	names := make([]string, 0, len(a.scope.Entities)+len(a.scope.Views))
	for name := range a.scope.Entities {
		names = append(names, name)
	}
	for name := range a.scope.Views {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// refName extracts the referenced name from a property value. Entity
// and view references may be written as bare identifiers or strings.
func refName(expr ast.Expr) (string, bool) {
	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name, true
	case *ast.StringLit:
		return e.Value, true
	default:
		return "", false
	}
}

func rangeOf(n ast.Node) diag.Range {
	return diag.Range{Start: n.Pos(), End: n.End()}
}

// isUpperSnake reports whether the value follows the
// UPPERCASE_WITH_UNDERSCORES convention for enum values.
func isUpperSnake(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}

// Analyze is a convenience function that validates a parsed file.
func Analyze(file *ast.SourceFile) (*Scope, *diag.Diagnostics) {
	a := New(file)
	diags := a.Analyze()
	return a.Scope(), diags
}
