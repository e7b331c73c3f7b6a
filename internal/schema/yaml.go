package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/opensync/reactivestore/internal/types"
)

// document is the YAML shape a schema file is decoded into before being
// replayed through Builder, using struct tags to map YAML keys onto the
// schema's fields.
type document struct {
	Tables        []tableDoc        `yaml:"tables"`
	Views         []viewDoc         `yaml:"views"`
	Relationships []relationshipDoc `yaml:"relationships"`
}

type tableDoc struct {
	Name          string      `yaml:"name"`
	Columns       []columnDoc `yaml:"columns"`
	Indices       []indexDoc  `yaml:"indices"`
	PrimaryKey    []string    `yaml:"primary_key"`
	AutoIncrement string      `yaml:"auto_increment"` // column name, single-key only
}

type columnDoc struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"` // integer, real, text, blob, date
	NotNull bool   `yaml:"not_null"`
	Unique  bool   `yaml:"unique"`
	Default *any   `yaml:"default"`
	LWW     bool   `yaml:"lww"`
}

type indexDoc struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`
	Unique  bool     `yaml:"unique"`
}

type viewDoc struct {
	Name   string     `yaml:"name"`
	Raw    string     `yaml:"raw"`
	Select *selectDoc `yaml:"select"`
}

type selectDoc struct {
	Columns []string  `yaml:"columns"`
	From    string    `yaml:"from"`
	Joins   []joinDoc `yaml:"joins"`
	Where   string    `yaml:"where"`
	GroupBy []string  `yaml:"group_by"`
	Having  string    `yaml:"having"`
	OrderBy []string  `yaml:"order_by"`
	Limit   int       `yaml:"limit"`
}

type joinDoc struct {
	Kind  string `yaml:"kind"`
	Table string `yaml:"table"`
	On    string `yaml:"on"`
}

type relationshipDoc struct {
	Name           string `yaml:"name"`
	Kind           string `yaml:"kind"` // "one_to_many", "many_to_many"
	ParentTable    string `yaml:"parent_table"`
	ParentColumn   string `yaml:"parent_column"`
	ChildTable     string `yaml:"child_table"`
	ChildColumn    string `yaml:"child_column"`
	JunctionTable  string `yaml:"junction_table"`
	JunctionParent string `yaml:"junction_parent"`
	JunctionChild  string `yaml:"junction_child"`
	OnDelete       string `yaml:"on_delete"` // "delete", "restrict", "set_null"
}

// FromYAML decodes a schema declared in YAML — the alternative to
// assembling one programmatically with NewBuilder — and builds it through
// the same Builder validation every programmatic schema goes through, so
// a YAML schema can never skip the duplicate-name or dangling-reference
// checks a hand-built one is subject to.
func FromYAML(data []byte) (*Schema, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, types.Validationf("schema.FromYAML", "parse: %v", err)
	}

	b := NewBuilder()
	for _, td := range doc.Tables {
		tbl, err := buildTableDoc(td)
		if err != nil {
			return nil, err
		}
		b.AddTable(tbl)
	}
	for _, vd := range doc.Views {
		b.AddView(buildViewDoc(vd))
	}
	for _, rd := range doc.Relationships {
		rel, err := buildRelationshipDoc(rd)
		if err != nil {
			return nil, err
		}
		b.AddRelationship(rel)
	}
	return b.Build()
}

// FromYAMLFile reads and decodes a schema file at path. There is no
// notion of defaults to merge here, unlike internal/config's LoadFile — a
// schema is either fully declared in the file or not declared at all.
func FromYAMLFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.Validationf("schema.FromYAMLFile", "read %s: %v", path, err)
	}
	return FromYAML(data)
}

func buildTableDoc(td tableDoc) (*Table, error) {
	tb := NewTable(td.Name)
	for _, cd := range td.Columns {
		col, err := buildColumnDoc(cd)
		if err != nil {
			return nil, err
		}
		tb.AddColumn(col)
	}
	for _, id := range td.Indices {
		tb.AddIndex(Index{Name: id.Name, Columns: id.Columns, Unique: id.Unique})
	}
	if td.AutoIncrement != "" {
		tb.WithAutoIncrementPrimaryKey(td.AutoIncrement)
	} else if len(td.PrimaryKey) > 0 {
		tb.WithPrimaryKey(td.PrimaryKey...)
	}
	return tb.Build()
}

func buildColumnDoc(cd columnDoc) (Column, error) {
	affinity, err := parseAffinity(cd.Type)
	if err != nil {
		return Column{}, types.Validationf("schema.FromYAML", "column %q: %v", cd.Name, err)
	}

	col := Column{Name: cd.Name, Affinity: affinity, LWW: cd.LWW}
	if cd.NotNull {
		col.Constraints = append(col.Constraints, ConstraintNotNull)
	}
	if cd.Unique {
		col.Constraints = append(col.Constraints, ConstraintUnique)
	}
	if cd.Default != nil {
		v, err := types.FromAny(affinity, *cd.Default)
		if err != nil {
			return Column{}, types.Validationf("schema.FromYAML", "column %q default: %v", cd.Name, err)
		}
		col.Default = &v
	}
	return col, nil
}

func buildViewDoc(vd viewDoc) *View {
	v := &View{Name: vd.Name, Raw: vd.Raw}
	if vd.Select != nil {
		sel := &Select{
			Columns: vd.Select.Columns,
			From:    vd.Select.From,
			Where:   vd.Select.Where,
			GroupBy: vd.Select.GroupBy,
			Having:  vd.Select.Having,
			OrderBy: vd.Select.OrderBy,
			Limit:   vd.Select.Limit,
		}
		for _, j := range vd.Select.Joins {
			sel.Joins = append(sel.Joins, Join{Kind: j.Kind, Table: j.Table, On: j.On})
		}
		v.Select = sel
	}
	return v
}

func buildRelationshipDoc(rd relationshipDoc) (Relationship, error) {
	kind, err := parseRelationshipKind(rd.Kind)
	if err != nil {
		return Relationship{}, types.Validationf("schema.FromYAML", "relationship %q: %v", rd.Name, err)
	}
	onDelete, err := parseCascadeAction(rd.OnDelete)
	if err != nil {
		return Relationship{}, types.Validationf("schema.FromYAML", "relationship %q: %v", rd.Name, err)
	}
	return Relationship{
		Name:           rd.Name,
		Kind:           kind,
		ParentTable:    rd.ParentTable,
		ParentColumn:   rd.ParentColumn,
		ChildTable:     rd.ChildTable,
		ChildColumn:    rd.ChildColumn,
		JunctionTable:  rd.JunctionTable,
		JunctionParent: rd.JunctionParent,
		JunctionChild:  rd.JunctionChild,
		OnDelete:       onDelete,
	}, nil
}

func parseAffinity(s string) (types.Affinity, error) {
	switch s {
	case "integer", "":
		return types.AffinityInteger, nil
	case "real":
		return types.AffinityReal, nil
	case "text":
		return types.AffinityText, nil
	case "blob":
		return types.AffinityBlob, nil
	case "date":
		return types.AffinityDate, nil
	default:
		return 0, fmt.Errorf("unknown column type %q", s)
	}
}

func parseRelationshipKind(s string) (RelationshipKind, error) {
	switch s {
	case "one_to_many", "":
		return OneToMany, nil
	case "many_to_many":
		return ManyToMany, nil
	default:
		return 0, fmt.Errorf("unknown relationship kind %q", s)
	}
}

func parseCascadeAction(s string) (CascadeAction, error) {
	switch s {
	case "delete", "":
		return CascadeDelete, nil
	case "restrict":
		return CascadeRestrict, nil
	case "set_null":
		return CascadeSetNull, nil
	default:
		return 0, fmt.Errorf("unknown on_delete action %q", s)
	}
}
