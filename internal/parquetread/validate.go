package parquetread

import (
	"fmt"
	"sort"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/gyeh/grdload/internal/model"
)

// ValidateSchema checks that the schema carries the code and cut-off columns.
// The remaining norm columns are optional.
func ValidateSchema(schema *parquet.Schema) error {
	columns := make(map[string]bool)
	for _, field := range schema.Fields() {
		columns[strings.ToLower(field.Name())] = true
	}

	var missing []string
	for _, col := range model.NormRowRequiredColumns {
		if !columns[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required norm columns: %s", strings.Join(missing, ", "))
	}
	return nil
}
