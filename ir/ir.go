// Package ir defines the normalized Intermediate Representation produced
// by the Loom compiler. The IR is framework-agnostic and serializable:
// given only an Application value, a code generator can produce a working
// application without re-reading the source.
//
// IR values are built once per compile and must not be mutated by
// consumers.
package ir

// Relation kinds.
const (
	OneToOne   = "one-to-one"
	OneToMany  = "one-to-many"
	ManyToOne  = "many-to-one"
	ManyToMany = "many-to-many"
)

// Application is the root IR node for a complete Loom application.
type Application struct {
	Entities  []*Entity   `json:"entities"`
	Views     []*View     `json:"views,omitempty"`
	Pages     []*Page     `json:"pages,omitempty"`
	Workflows []*Workflow `json:"workflows,omitempty"`
	Config    *Config     `json:"config,omitempty"`
}

// Entity is a persisted data entity. Every entity has exactly one field
// with PrimaryKey set; the compiler injects an id field when the source
// declares none.
type Entity struct {
	Name      string      `json:"name"`
	Fields    []*Field    `json:"fields"`
	Relations []*Relation `json:"relations,omitempty"`
}

// Field is a typed entity field with normalized type and flags. Storage
// subtleties the source expresses as distinct types (Password, Text,
// Decimal, Date) become a base type plus the matching Is* marker.
type Field struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	PrimaryKey  bool        `json:"primary_key,omitempty"`
	Unique      bool        `json:"unique,omitempty"`
	Optional    bool        `json:"optional,omitempty"`
	Readonly    bool        `json:"readonly,omitempty"`
	Default     any         `json:"default,omitempty"`
	Validate    *Validation `json:"validate,omitempty"`
	IsPassword  bool        `json:"is_password,omitempty"`
	IsLongText  bool        `json:"is_long_text,omitempty"`
	IsDecimal   bool        `json:"is_decimal,omitempty"`
	IsDateOnly  bool        `json:"is_date_only,omitempty"`
	IsVirtual   bool        `json:"is_virtual,omitempty"`
	VirtualFrom string      `json:"virtual_from,omitempty"`
}

// Validation carries the structured form of a validate(...) attribute.
// Raw holds the bare single-argument form when no min/max/pattern keys
// were given; generators should prefer the structured fields.
type Validation struct {
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Pattern string   `json:"pattern,omitempty"`
	Raw     string   `json:"raw,omitempty"`
}

// Relation is one direction of a relationship between two entities. The
// compiler guarantees both directions exist: a declared relation gets a
// synthesized inverse on the target entity when the source declares
// only one side.
type Relation struct {
	Kind         string `json:"kind"` // one-to-one, one-to-many, many-to-one, many-to-many
	TargetEntity string `json:"target_entity"`
	FieldName    string `json:"field_name"`
	RelationName string `json:"relation_name,omitempty"`
}

// View is a named projection over a source entity.
type View struct {
	Name         string       `json:"name"`
	SourceEntity string       `json:"source_entity"`
	Fields       []*ViewField `json:"fields"`
}

// ViewField is a single projected column. Expression is kept as the
// source-level string; evaluating it is the generator's concern.
type ViewField struct {
	Name       string `json:"name"`
	Type       string `json:"type,omitempty"`
	Expression string `json:"expression,omitempty"`
}

// Page is a UI page bound to an entity or view. EntityOrViewRef is
// empty only when PageType is "custom".
type Page struct {
	Name            string         `json:"name"`
	PageType        string         `json:"page_type"`
	EntityOrViewRef string         `json:"entity_or_view_ref,omitempty"`
	Route           string         `json:"route,omitempty"`
	Permissions     []string       `json:"permissions,omitempty"`
	Props           map[string]any `json:"props,omitempty"`
}

// Workflow is an event-driven automation.
type Workflow struct {
	Name    string         `json:"name"`
	Trigger *Trigger       `json:"trigger,omitempty"`
	Props   map[string]any `json:"props,omitempty"`
}

// Trigger describes what starts a workflow.
type Trigger struct {
	Event  string         `json:"event"`
	Entity string         `json:"entity,omitempty"`
	Props  map[string]any `json:"props,omitempty"`
}

// Config aggregates the config sections and declared enums. Enums is a
// closed map from enum name to its ordered value list.
type Config struct {
	DB           map[string]any      `json:"db,omitempty"`
	Auth         *AuthConfig         `json:"auth,omitempty"`
	Integrations map[string]any      `json:"integrations,omitempty"`
	Enums        map[string][]string `json:"enums,omitempty"`
}

// AuthConfig holds the auth config section.
type AuthConfig struct {
	Provider   string         `json:"provider"`
	UserEntity string         `json:"user_entity,omitempty"`
	Props      map[string]any `json:"props,omitempty"`
}

// Entity returns the entity with the given name, or nil.
func (a *Application) Entity(name string) *Entity {
	for _, e := range a.Entities {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// View returns the view with the given name, or nil.
func (a *Application) View(name string) *View {
	for _, v := range a.Views {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// Field returns the entity's field with the given name, or nil.
func (e *Entity) Field(name string) *Field {
	for _, f := range e.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// PrimaryKeyField returns the entity's primary key field, or nil. A
// compiler-built entity always has one.
func (e *Entity) PrimaryKeyField() *Field {
	for _, f := range e.Fields {
		if f.PrimaryKey {
			return f
		}
	}
	return nil
}

// Relation returns the relation declared under the given field name,
// or nil.
func (e *Entity) Relation(fieldName string) *Relation {
	for _, r := range e.Relations {
		if r.FieldName == fieldName {
			return r
		}
	}
	return nil
}
