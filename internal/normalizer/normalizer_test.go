package normalizer

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/loom-lang/loom/internal/analyzer"
	"github.com/loom-lang/loom/internal/parser"
	"github.com/loom-lang/loom/ir"
)

// build runs the full pipeline up to the normalizer and fails the test
// on any parse or analysis problem.
func build(t *testing.T, input string) *ir.Application {
	t.Helper()

	file, err := parser.Parse(input, "test.loom")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	_, diags := analyzer.Analyze(file)
	if diags.HasErrors() {
		t.Fatalf("analysis errors: %v", diags.Errors())
	}

	return Normalize(file)
}

func TestNormalize_AutoPrimaryKey(t *testing.T) {
	app := build(t, `
entity Note {
	body: Text
}
`)

	want := &ir.Entity{
		Name: "Note",
		Fields: []*ir.Field{
			{Name: "id", Type: "UUID", PrimaryKey: true},
			{Name: "body", Type: "String", IsLongText: true},
		},
	}

	if diff := cmp.Diff(want, app.Entities[0]); diff != "" {
		t.Errorf("entity mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_DeclaredPrimaryKey(t *testing.T) {
	app := build(t, `
entity User {
	id: UUID primaryKey
	email: String unique
}
`)

	want := &ir.Entity{
		Name: "User",
		Fields: []*ir.Field{
			{Name: "id", Type: "UUID", PrimaryKey: true},
			{Name: "email", Type: "String", Unique: true},
		},
	}

	if diff := cmp.Diff(want, app.Entities[0]); diff != "" {
		t.Errorf("entity mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_FieldFlags(t *testing.T) {
	app := build(t, `
entity Doc {
	id: UUID primaryKey
	slug: String unique readonly
	summary: String optional
}
`)

	want := []*ir.Field{
		{Name: "id", Type: "UUID", PrimaryKey: true},
		{Name: "slug", Type: "String", Unique: true, Readonly: true},
		{Name: "summary", Type: "String", Optional: true},
	}

	if diff := cmp.Diff(want, app.Entities[0].Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_TypeDefaulting(t *testing.T) {
	tests := []struct {
		name      string
		source    string
		fieldName string
		want      *ir.Field
	}{
		{
			name:      "password becomes string",
			source:    `entity A { secret: Password }`,
			fieldName: "secret",
			want:      &ir.Field{Name: "secret", Type: "String", IsPassword: true},
		},
		{
			name:      "text becomes string",
			source:    `entity A { body: Text }`,
			fieldName: "body",
			want:      &ir.Field{Name: "body", Type: "String", IsLongText: true},
		},
		{
			name:      "decimal becomes float",
			source:    `entity A { price: Decimal }`,
			fieldName: "price",
			want:      &ir.Field{Name: "price", Type: "Float", IsDecimal: true},
		},
		{
			name:      "date becomes datetime",
			source:    `entity A { due: Date }`,
			fieldName: "due",
			want:      &ir.Field{Name: "due", Type: "DateTime", IsDateOnly: true},
		},
		{
			name:      "array suffix kept in type name",
			source:    `entity A { tags: String[] }`,
			fieldName: "tags",
			want:      &ir.Field{Name: "tags", Type: "String[]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := build(t, tt.source)

			got := app.Entities[0].Field(tt.fieldName)
			if got == nil {
				t.Fatalf("field %s not found", tt.fieldName)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("field mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalize_Defaults(t *testing.T) {
	app := build(t, `
entity Widget {
	name: String default("unnamed")
	count: Int default(0)
	ratio: Float default(0.5)
	active: Boolean default(true)
	created: DateTime default(now())
	tags: String[] default([a, b])
}
`)

	tests := []struct {
		fieldName string
		want      any
	}{
		{"name", "unnamed"},
		{"count", int64(0)},
		{"ratio", 0.5},
		{"active", true},
		{"created", "now()"},
		{"tags", []any{"a", "b"}},
	}

	entity := app.Entities[0]
	for _, tt := range tests {
		t.Run(tt.fieldName, func(t *testing.T) {
			field := entity.Field(tt.fieldName)
			if field == nil {
				t.Fatalf("field %s not found", tt.fieldName)
			}
			if diff := cmp.Diff(tt.want, field.Default); diff != "" {
				t.Errorf("default mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalize_Validation(t *testing.T) {
	app := build(t, `
entity Form {
	title: String validate(min: 3, max: 200)
	slug: String validate(pattern: "^[a-z-]+$")
	email: String validate(email)
}
`)

	entity := app.Entities[0]

	min, max := 3.0, 200.0
	if diff := cmp.Diff(&ir.Validation{Min: &min, Max: &max}, entity.Field("title").Validate); diff != "" {
		t.Errorf("title validation mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(&ir.Validation{Pattern: "^[a-z-]+$"}, entity.Field("slug").Validate); diff != "" {
		t.Errorf("slug validation mismatch (-want +got):\n%s", diff)
	}

	// The bare form has no named keys to decompose, so it survives in Raw.
	if diff := cmp.Diff(&ir.Validation{Raw: "email"}, entity.Field("email").Validate); diff != "" {
		t.Errorf("email validation mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_Virtual(t *testing.T) {
	app := build(t, `
entity User {
	firstName: String
	fullName: String @virtual(from: "profile#fullName")
}
`)

	field := app.Entities[0].Field("fullName")
	if field == nil {
		t.Fatal("fullName field not found")
	}
	if !field.IsVirtual {
		t.Error("expected fullName to be virtual")
	}
	if field.VirtualFrom != "profile#fullName" {
		t.Errorf("expected VirtualFrom %q, got %q", "profile#fullName", field.VirtualFrom)
	}
}

func TestNormalize_DeclaredRelation(t *testing.T) {
	app := build(t, `
entity User {
	posts: Post[] @relation(name: "UserPosts")
}

entity Post {
	title: String
	author: User @relation(name: "UserPosts")
}
`)

	user := app.Entity("User")
	want := []*ir.Relation{
		{Kind: ir.OneToMany, TargetEntity: "Post", FieldName: "posts", RelationName: "UserPosts"},
	}
	if diff := cmp.Diff(want, user.Relations); diff != "" {
		t.Errorf("user relations mismatch (-want +got):\n%s", diff)
	}

	post := app.Entity("Post")
	want = []*ir.Relation{
		{Kind: ir.ManyToOne, TargetEntity: "User", FieldName: "author", RelationName: "UserPosts"},
	}
	if diff := cmp.Diff(want, post.Relations); diff != "" {
		t.Errorf("post relations mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_RelationSymmetryNoDuplicates(t *testing.T) {
	// Both sides declared under the same relation name: nothing is
	// synthesized and no virtual fields appear.
	app := build(t, `
entity User {
	posts: Post[] @relation(name: "UserPosts")
}

entity Post {
	author: User @relation(name: "UserPosts")
}
`)

	for _, entity := range app.Entities {
		if len(entity.Relations) != 1 {
			t.Errorf("entity %s: expected 1 relation, got %d", entity.Name, len(entity.Relations))
		}
		for _, f := range entity.Fields {
			if f.IsVirtual {
				t.Errorf("entity %s: unexpected virtual field %s", entity.Name, f.Name)
			}
		}
	}
}

func TestNormalize_InverseSynthesis(t *testing.T) {
	app := build(t, `
entity User {
	posts: Post[] @relation(name: "UserPosts")
}

entity Post {
	title: String
}
`)

	post := app.Entity("Post")
	wantRel := []*ir.Relation{
		{Kind: ir.ManyToOne, TargetEntity: "User", FieldName: "user", RelationName: "UserPosts"},
	}
	if diff := cmp.Diff(wantRel, post.Relations); diff != "" {
		t.Errorf("synthesized relation mismatch (-want +got):\n%s", diff)
	}

	backing := post.Field("user")
	if backing == nil {
		t.Fatal("expected synthesized backing field user on Post")
	}
	if diff := cmp.Diff(&ir.Field{Name: "user", Type: "User", IsVirtual: true}, backing); diff != "" {
		t.Errorf("backing field mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_InverseSynthesisToMany(t *testing.T) {
	// A many-to-one declaration puts a pluralized to-many side on the
	// target entity.
	app := build(t, `
entity User {
	name: String
}

entity Ticket {
	author: User @relation
}
`)

	user := app.Entity("User")
	wantRel := []*ir.Relation{
		{Kind: ir.OneToMany, TargetEntity: "Ticket", FieldName: "tickets"},
	}
	if diff := cmp.Diff(wantRel, user.Relations); diff != "" {
		t.Errorf("synthesized relation mismatch (-want +got):\n%s", diff)
	}

	backing := user.Field("tickets")
	if backing == nil {
		t.Fatal("expected synthesized backing field tickets on User")
	}
	if backing.Type != "Ticket[]" {
		t.Errorf("expected backing field type Ticket[], got %s", backing.Type)
	}
}

func TestNormalize_View(t *testing.T) {
	app := build(t, `
entity User {
	name: String
}

view Stats {
	from: User
	fields: [
		{ name: "n" expression: "1" }
	]
}
`)

	want := &ir.View{
		Name:         "Stats",
		SourceEntity: "User",
		Fields: []*ir.ViewField{
			{Name: "n", Expression: "1"},
		},
	}

	if len(app.Views) != 1 {
		t.Fatalf("expected 1 view, got %d", len(app.Views))
	}
	if diff := cmp.Diff(want, app.Views[0]); diff != "" {
		t.Errorf("view mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_Page(t *testing.T) {
	app := build(t, `
entity Ticket {
	subject: String
}

page Tickets {
	type: table
	entity: Ticket
	route: "/tickets"
	permissions: [admin, agent]
	pageSize: 50
}
`)

	want := &ir.Page{
		Name:            "Tickets",
		PageType:        "table",
		EntityOrViewRef: "Ticket",
		Route:           "/tickets",
		Permissions:     []string{"admin", "agent"},
		Props:           map[string]any{"pageSize": int64(50)},
	}

	if len(app.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(app.Pages))
	}
	if diff := cmp.Diff(want, app.Pages[0]); diff != "" {
		t.Errorf("page mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_Workflow(t *testing.T) {
	app := build(t, `
entity Ticket {
	subject: String
}

workflow NotifyOnClose {
	trigger: { event: update entity: Ticket when: { status: "CLOSED" } }
	action: "notifications.sendEmail"
}
`)

	want := &ir.Workflow{
		Name: "NotifyOnClose",
		Trigger: &ir.Trigger{
			Event:  "update",
			Entity: "Ticket",
			Props:  map[string]any{"when": map[string]any{"status": "CLOSED"}},
		},
		Props: map[string]any{"action": "notifications.sendEmail"},
	}

	if len(app.Workflows) != 1 {
		t.Fatalf("expected 1 workflow, got %d", len(app.Workflows))
	}
	if diff := cmp.Diff(want, app.Workflows[0]); diff != "" {
		t.Errorf("workflow mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_Config(t *testing.T) {
	app := build(t, `
entity User {
	name: String
}

enum Status {
	OPEN
	CLOSED
}

config db {
	provider: "postgres"
	url: env("DATABASE_URL")
}

config auth {
	provider: "local"
	userEntity: User
	sessionTimeout: 3600
}

config integrations {
	slack: { webhook: env("SLACK_WEBHOOK") }
}
`)

	want := &ir.Config{
		DB: map[string]any{
			"provider": "postgres",
			"url":      "env(DATABASE_URL)",
		},
		Auth: &ir.AuthConfig{
			Provider:   "local",
			UserEntity: "User",
			Props:      map[string]any{"sessionTimeout": int64(3600)},
		},
		Integrations: map[string]any{
			"slack": map[string]any{"webhook": "env(SLACK_WEBHOOK)"},
		},
		Enums: map[string][]string{
			"Status": {"OPEN", "CLOSED"},
		},
	}

	if diff := cmp.Diff(want, app.Config); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_Idempotence(t *testing.T) {
	input := `
entity User {
	posts: Post[] @relation(name: "UserPosts")
	role: Role default(AGENT)
}

entity Post {
	title: String validate(min: 1)
}

enum Role {
	ADMIN
	AGENT
}

config db {
	url: env("DATABASE_URL")
}
`

	first := build(t, input)
	second := build(t, input)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("normalization is not deterministic (-first +second):\n%s", diff)
	}
}
