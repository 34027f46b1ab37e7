package analyzer

import (
	"strings"
	"testing"

	"github.com/loom-lang/loom/internal/diag"
	"github.com/loom-lang/loom/internal/parser"
)

func TestAnalyzer_ValidSpec(t *testing.T) {
	input := `
entity User {
	id: UUID primaryKey
	email: String unique
	role: Role default(ADMIN)
}

entity Ticket {
	subject: String validate(min: 3, max: 200)
	body: Text
	author: User @relation(name: "tickets")
}

enum Role {
	ADMIN
	AGENT
}

view TicketList {
	from: Ticket
	fields: [
		{ name: "subject" }
		{ name: "author" }
	]
}

page Tickets {
	type: table
	entity: TicketList
	route: "/tickets"
}

workflow NotifyOnUpdate {
	trigger: { event: update entity: Ticket }
	action: "notifications.send"
}

config db {
	provider: "postgres"
	url: env("DATABASE_URL")
}
`

	file, err := parser.Parse(input, "test.loom")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	scope, diags := Analyze(file)

	if diags.HasErrors() {
		for _, d := range diags.Errors() {
			t.Logf("error: %v", d)
		}
		t.Fatal("unexpected errors during analysis")
	}

	// Verify scope was populated
	if len(scope.Entities) != 2 {
		t.Errorf("expected 2 entities in scope, got %d", len(scope.Entities))
	}
	if len(scope.Views) != 1 {
		t.Errorf("expected 1 view in scope, got %d", len(scope.Views))
	}
	if len(scope.Enums) != 1 {
		t.Errorf("expected 1 enum in scope, got %d", len(scope.Enums))
	}
	if scope.Names["TicketList"] != KindView {
		t.Errorf("expected TicketList to be a view, got %s", scope.Names["TicketList"])
	}

	if !scope.ResolvesType("User") {
		t.Error("expected User to resolve as a type")
	}
	if !scope.ResolvesType("Role") {
		t.Error("expected Role to resolve as a type")
	}
	if scope.ResolvesType("Ghost") {
		t.Error("expected Ghost not to resolve")
	}
}

func TestAnalyzer_DuplicateEntity(t *testing.T) {
	input := `
entity User {
	email: String
}

entity User {
	name: String
}
`

	file, err := parser.Parse(input, "test.loom")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, diags := Analyze(file)

	if !diags.HasErrors() {
		t.Fatal("expected duplicate entity error")
	}

	found := false
	for _, d := range diags.Errors() {
		if d.Code == diag.ErrDuplicateDecl {
			found = true
			break
		}
	}

	if !found {
		t.Error("expected diag.ErrDuplicateDecl")
	}
}

func TestAnalyzer_SharedNamespace(t *testing.T) {
	// Entities, views, and enums share one namespace: a view may not
	// reuse an entity name even though the declaration kinds differ.
	input := `
entity User {
	email: String
}

view User {
	from: User
	fields: [
		{ name: "email" }
	]
}
`

	file, err := parser.Parse(input, "test.loom")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, diags := Analyze(file)

	if !diags.HasErrors() {
		t.Fatal("expected shared namespace collision error")
	}

	found := false
	for _, d := range diags.Errors() {
		if d.Code == diag.ErrDuplicateDecl {
			found = true
			if !strings.Contains(d.Message, "already declared as entity") {
				t.Errorf("expected message to name the prior kind, got %q", d.Message)
			}
		}
	}

	if !found {
		t.Error("expected diag.ErrDuplicateDecl")
	}
}

func TestAnalyzer_DuplicateField(t *testing.T) {
	input := `
entity User {
	email: String
	email: String
}
`

	file, err := parser.Parse(input, "test.loom")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, diags := Analyze(file)

	if !diags.HasErrors() {
		t.Fatal("expected duplicate field error")
	}

	found := false
	for _, d := range diags.Errors() {
		if d.Code == diag.ErrDuplicateField {
			found = true
			break
		}
	}

	if !found {
		t.Error("expected diag.ErrDuplicateField")
	}
}

func TestAnalyzer_UnknownType(t *testing.T) {
	input := `
entity User {
	name: Strng
}
`

	file, err := parser.Parse(input, "test.loom")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, diags := Analyze(file)

	if !diags.HasErrors() {
		t.Fatal("expected unknown type error")
	}

	found := false
	for _, d := range diags.Errors() {
		if d.Code == diag.ErrUnknownType {
			found = true
			if !strings.Contains(d.Hint, `"String"`) {
				t.Errorf("expected did-you-mean hint for String, got %q", d.Hint)
			}
		}
	}

	if !found {
		t.Error("expected diag.ErrUnknownType")
	}
}

func TestAnalyzer_RelationTargetUnknown(t *testing.T) {
	input := `
entity User {
	name: String
}

entity Ticket {
	author: Usre @relation
}
`

	file, err := parser.Parse(input, "test.loom")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, diags := Analyze(file)

	if !diags.HasErrors() {
		t.Fatal("expected relation target error")
	}

	found := false
	for _, d := range diags.Errors() {
		if d.Code == diag.ErrRelationTarget {
			found = true
			if !strings.Contains(d.Hint, `"User"`) {
				t.Errorf("expected did-you-mean hint for User, got %q", d.Hint)
			}
		}
	}

	if !found {
		t.Error("expected diag.ErrRelationTarget")
	}
}

func TestAnalyzer_PrimaryKeyOptionalConflict(t *testing.T) {
	input := `
entity User {
	id: UUID primaryKey optional
}
`

	file, err := parser.Parse(input, "test.loom")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, diags := Analyze(file)

	if !diags.HasErrors() {
		t.Fatal("expected attribute conflict error")
	}

	found := false
	for _, d := range diags.Errors() {
		if d.Code == diag.ErrAttrConflict {
			found = true
			break
		}
	}

	if !found {
		t.Error("expected diag.ErrAttrConflict")
	}
}

func TestAnalyzer_MultiplePrimaryKeys(t *testing.T) {
	input := `
entity User {
	id: UUID primaryKey
	email: String primaryKey
}
`

	file, err := parser.Parse(input, "test.loom")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, diags := Analyze(file)

	if !diags.HasErrors() {
		t.Fatal("expected multiple primary key error")
	}

	found := false
	for _, d := range diags.Errors() {
		if d.Code == diag.ErrMultiplePrimary {
			found = true
			break
		}
	}

	if !found {
		t.Error("expected diag.ErrMultiplePrimary")
	}
}

func TestAnalyzer_ViewMissingProperties(t *testing.T) {
	input := `
entity Ticket {
	subject: String
}

view TicketList {
}
`

	file, err := parser.Parse(input, "test.loom")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, diags := Analyze(file)

	missing := 0
	for _, d := range diags.Errors() {
		if d.Code == diag.ErrMissingProperty {
			missing++
		}
	}

	if missing != 2 {
		t.Errorf("expected 2 missing property errors (from, fields), got %d", missing)
	}
}

func TestAnalyzer_ViewUnknownSource(t *testing.T) {
	input := `
entity Ticket {
	subject: String
}

view TicketList {
	from: Tickt
	fields: [
		{ name: "subject" }
	]
}
`

	file, err := parser.Parse(input, "test.loom")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, diags := Analyze(file)

	if !diags.HasErrors() {
		t.Fatal("expected unresolved reference error")
	}

	found := false
	for _, d := range diags.Errors() {
		if d.Code == diag.ErrUnresolvedRef {
			found = true
			if !strings.Contains(d.Hint, `"Ticket"`) {
				t.Errorf("expected did-you-mean hint for Ticket, got %q", d.Hint)
			}
		}
	}

	if !found {
		t.Error("expected diag.ErrUnresolvedRef")
	}
}

func TestAnalyzer_PageMissingType(t *testing.T) {
	input := `
entity Ticket {
	subject: String
}

page Tickets {
	route: "/tickets"
}
`

	file, err := parser.Parse(input, "test.loom")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, diags := Analyze(file)

	found := false
	for _, d := range diags.Errors() {
		if d.Code == diag.ErrMissingProperty {
			found = true
			break
		}
	}

	if !found {
		t.Error("expected diag.ErrMissingProperty for page type")
	}
}

func TestAnalyzer_PageUnknownEntity(t *testing.T) {
	input := `
entity Ticket {
	subject: String
}

view TicketList {
	from: Ticket
	fields: [
		{ name: "subject" }
	]
}

page Tickets {
	type: table
	entity: TicketLst
	route: "/tickets"
}
`

	file, err := parser.Parse(input, "test.loom")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, diags := Analyze(file)

	if !diags.HasErrors() {
		t.Fatal("expected unresolved reference error")
	}

	found := false
	for _, d := range diags.Errors() {
		if d.Code == diag.ErrUnresolvedRef {
			found = true
			if !strings.Contains(d.Hint, `"TicketList"`) {
				t.Errorf("expected did-you-mean hint for TicketList, got %q", d.Hint)
			}
		}
	}

	if !found {
		t.Error("expected diag.ErrUnresolvedRef")
	}
}

func TestAnalyzer_CustomPageNeedsNoEntity(t *testing.T) {
	input := `
entity Ticket {
	subject: String
}

page About {
	type: custom
	route: "/about"
}
`

	file, err := parser.Parse(input, "test.loom")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, diags := Analyze(file)

	if diags.HasErrors() {
		t.Errorf("unexpected errors for custom page: %v", diags.Errors())
	}
}

func TestAnalyzer_WorkflowMissingTrigger(t *testing.T) {
	input := `
entity Ticket {
	subject: String
}

workflow Notify {
	action: "notifications.send"
}
`

	file, err := parser.Parse(input, "test.loom")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, diags := Analyze(file)

	found := false
	for _, d := range diags.Errors() {
		if d.Code == diag.ErrMissingProperty {
			found = true
			break
		}
	}

	if !found {
		t.Error("expected diag.ErrMissingProperty for workflow trigger")
	}
}

func TestAnalyzer_WorkflowTriggerChecks(t *testing.T) {
	// A trigger without an event and with an unknown entity reports
	// both problems in one pass.
	input := `
entity Ticket {
	subject: String
}

workflow Notify {
	trigger: { entity: Ghost }
}
`

	file, err := parser.Parse(input, "test.loom")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, diags := Analyze(file)

	foundMissing := false
	foundUnresolved := false
	for _, d := range diags.Errors() {
		switch d.Code {
		case diag.ErrMissingProperty:
			foundMissing = true
		case diag.ErrUnresolvedRef:
			foundUnresolved = true
		}
	}

	if !foundMissing {
		t.Error("expected diag.ErrMissingProperty for trigger event")
	}
	if !foundUnresolved {
		t.Error("expected diag.ErrUnresolvedRef for trigger entity")
	}
}

func TestAnalyzer_UnknownConfigSection(t *testing.T) {
	input := `
entity Ticket {
	subject: String
}

config analytics {
	key: "abc"
}
`

	file, err := parser.Parse(input, "test.loom")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, diags := Analyze(file)

	if diags.HasErrors() {
		t.Errorf("unknown config section must not be an error: %v", diags.Errors())
	}

	found := false
	for _, d := range diags.Warnings() {
		if d.Code == diag.WarnUnknownConfig {
			found = true
			break
		}
	}

	if !found {
		t.Error("expected diag.WarnUnknownConfig")
	}
}

func TestAnalyzer_AuthConfigChecks(t *testing.T) {
	input := `
entity Ticket {
	subject: String
}

config auth {
	userEntity: Ghost
}
`

	file, err := parser.Parse(input, "test.loom")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, diags := Analyze(file)

	foundMissing := false
	foundUnresolved := false
	for _, d := range diags.Errors() {
		switch d.Code {
		case diag.ErrMissingProperty:
			foundMissing = true
		case diag.ErrUnresolvedRef:
			foundUnresolved = true
		}
	}

	if !foundMissing {
		t.Error("expected diag.ErrMissingProperty for auth provider")
	}
	if !foundUnresolved {
		t.Error("expected diag.ErrUnresolvedRef for userEntity")
	}
}

func TestAnalyzer_EmptyEnum(t *testing.T) {
	input := `
entity Ticket {
	subject: String
}

enum Status {
}
`

	file, err := parser.Parse(input, "test.loom")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, diags := Analyze(file)

	found := false
	for _, d := range diags.Errors() {
		if d.Code == diag.ErrEmptyEnum {
			found = true
			break
		}
	}

	if !found {
		t.Error("expected diag.ErrEmptyEnum")
	}
}

func TestAnalyzer_DuplicateEnumValue(t *testing.T) {
	input := `
entity Ticket {
	subject: String
}

enum Status {
	OPEN
	CLOSED
	OPEN
}
`

	file, err := parser.Parse(input, "test.loom")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, diags := Analyze(file)

	found := false
	for _, d := range diags.Errors() {
		if d.Code == diag.ErrDuplicateEnumValue {
			found = true
			break
		}
	}

	if !found {
		t.Error("expected diag.ErrDuplicateEnumValue")
	}
}

func TestAnalyzer_EnumCasingWarning(t *testing.T) {
	input := `
entity Ticket {
	subject: String
}

enum Status {
	open
	CLOSED
}
`

	file, err := parser.Parse(input, "test.loom")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, diags := Analyze(file)

	if diags.HasErrors() {
		t.Errorf("casing must be a warning, not an error: %v", diags.Errors())
	}

	warnings := diags.Warnings()
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
	if warnings[0].Code != diag.WarnEnumCasing {
		t.Errorf("expected diag.WarnEnumCasing, got %s", warnings[0].Code)
	}
}

func TestAnalyzer_NoEntities(t *testing.T) {
	input := `
config db {
	provider: "postgres"
}
`

	file, err := parser.Parse(input, "test.loom")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, diags := Analyze(file)

	found := false
	for _, d := range diags.Errors() {
		if d.Code == diag.ErrNoEntities {
			found = true
			break
		}
	}

	if !found {
		t.Error("expected diag.ErrNoEntities")
	}
}

func TestAnalyzer_DiagnosticsSorted(t *testing.T) {
	// The duplicate declaration is found in pass 1 and the unknown type
	// in pass 2, but diagnostics come back in source order.
	input := `
entity User {
	name: Strng
}

entity User {
	other: String
}
`

	file, err := parser.Parse(input, "test.loom")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, diags := Analyze(file)

	errors := diags.Errors()
	if len(errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(errors))
	}
	if errors[0].Code != diag.ErrUnknownType {
		t.Errorf("expected diag.ErrUnknownType first, got %s", errors[0].Code)
	}
	if errors[1].Code != diag.ErrDuplicateDecl {
		t.Errorf("expected diag.ErrDuplicateDecl second, got %s", errors[1].Code)
	}
	if errors[0].Range.Start.Line >= errors[1].Range.Start.Line {
		t.Errorf("diagnostics not in source order: line %d before line %d",
			errors[0].Range.Start.Line, errors[1].Range.Start.Line)
	}
}
