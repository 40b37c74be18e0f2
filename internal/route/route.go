// Package route maps source object keys to their destination fact table.
package route

import (
	"strings"

	"github.com/capstone-impacta/engagement-cli/internal/model"
)

// NetworkPattern is the key substring that marks a per-network export.
const NetworkPattern = "video_views_dia_rede_social"

// Destination is where a source file's records are loaded.
type Destination struct {
	Table          model.Table
	TableName      string
	CategoryColumn string
	// Matched is false when the key fell through to the faculty default.
	Matched bool
}

// Resolve routes a key. Keys containing NetworkPattern go to the network
// table; every other key goes to the faculty table.
func Resolve(key string) Destination {
	if strings.Contains(key, NetworkPattern) {
		return For(model.NetworkTable, true)
	}
	return For(model.FacultyTable, false)
}

// For builds the Destination for a table.
func For(t model.Table, matched bool) Destination {
	return Destination{
		Table:          t,
		TableName:      t.Name(),
		CategoryColumn: t.CategoryColumn(),
		Matched:        matched,
	}
}
