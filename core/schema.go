package core

import "sort"

type Column struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Nullable bool    `json:"nullable"`
	Default  *string `json:"default"`
}

type Table struct {
	Columns  []Column `json:"columns"`
	RowCount int64    `json:"row_count"`
}

type Schema struct {
	Tables map[string]Table `json:"tables"`
}

// TableNames returns the schema's tables ordered by name.
func (s Schema) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SchemaDescription is the nested catalog view of one database handle.
type SchemaDescription struct {
	CurrentDatabase   string            `json:"current_database"`
	AttachedDatabases []string          `json:"attached_databases"`
	Schemas           map[string]Schema `json:"schemas"`
}

func (d SchemaDescription) SchemaNames() []string {
	names := make([]string, 0, len(d.Schemas))
	for name := range d.Schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DatabaseInfo describes one logical database known to the catalog.
type DatabaseInfo struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	Active bool   `json:"active"`
}
