package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// snapshotFile is the on-disk snapshot layout. Relations carry their
// columns inline; anything else can be listed under objects.
type snapshotFile struct {
	Relations []struct {
		Kind    Kind   `yaml:"kind"`
		Schema  string `yaml:"schema"`
		Name    string `yaml:"name"`
		Comment string `yaml:"comment"`
		Columns []struct {
			Name    string `yaml:"name"`
			Type    string `yaml:"type"`
			Comment string `yaml:"comment"`
		} `yaml:"columns"`
	} `yaml:"relations"`

	Functions []struct {
		Schema  string   `yaml:"schema"`
		Name    string   `yaml:"name"`
		Args    []string `yaml:"args"`
		Returns string   `yaml:"returns"`
		Comment string   `yaml:"comment"`
	} `yaml:"functions"`

	DataTypes []struct {
		Schema   string `yaml:"schema"`
		Name     string `yaml:"name"`
		Priority int    `yaml:"priority"`
	} `yaml:"data_types"`

	Operators []struct {
		Name      string   `yaml:"name"`
		LeftTypes []string `yaml:"left_types"`
		Comment   string   `yaml:"comment"`
	} `yaml:"operators"`

	Settings []struct {
		Name        string `yaml:"name"`
		Value       string `yaml:"value"`
		Description string `yaml:"description"`
	} `yaml:"settings"`

	Roles   []string `yaml:"roles"`
	Schemas []string `yaml:"schemas"`

	Objects []Object `yaml:"objects"`
}

// ParseSnapshot decodes a YAML snapshot.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var f snapshotFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	var objects []Object
	for _, r := range f.Relations {
		kind := r.Kind
		if kind == "" {
			kind = KindTable
		}
		if !kind.IsRelation() {
			return nil, fmt.Errorf("relation %q: kind %q is not a table, view or mview", r.Name, kind)
		}
		objects = append(objects, Object{Kind: kind, Schema: r.Schema, Name: r.Name, Documentation: r.Comment})
		for _, c := range r.Columns {
			objects = append(objects, Object{
				Kind:          KindColumn,
				Schema:        r.Schema,
				Parent:        r.Name,
				Name:          c.Name,
				DataType:      c.Type,
				Detail:        c.Type,
				Documentation: c.Comment,
			})
		}
	}
	for _, fn := range f.Functions {
		objects = append(objects, Object{
			Kind:          KindFunction,
			Schema:        fn.Schema,
			Name:          fn.Name,
			Args:          fn.Args,
			Returns:       fn.Returns,
			Documentation: fn.Comment,
		})
	}
	for _, t := range f.DataTypes {
		objects = append(objects, Object{Kind: KindDataType, Schema: t.Schema, Name: t.Name, Priority: t.Priority})
	}
	for _, op := range f.Operators {
		objects = append(objects, Object{Kind: KindOperator, Name: op.Name, LeftArgTypes: op.LeftTypes, Documentation: op.Comment})
	}
	for _, s := range f.Settings {
		objects = append(objects, Object{Kind: KindSetting, Name: s.Name, DataType: s.Value, Detail: s.Value, Documentation: s.Description})
	}
	for _, r := range f.Roles {
		objects = append(objects, Object{Kind: KindRole, Name: r})
	}
	for _, s := range f.Schemas {
		objects = append(objects, Object{Kind: KindSchema, Name: s})
	}
	for i, o := range f.Objects {
		if o.Kind == "" || o.Name == "" {
			return nil, fmt.Errorf("objects[%d]: kind and name are required", i)
		}
		objects = append(objects, o)
	}
	return NewSnapshot(objects), nil
}

// LoadSnapshotFile reads a YAML snapshot from path.
func LoadSnapshotFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &SnapshotFileError{Path: path, Err: err}
	}
	snap, err := ParseSnapshot(data)
	if err != nil {
		return nil, &SnapshotFileError{Path: path, Err: err}
	}
	return snap, nil
}
