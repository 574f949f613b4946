package ale

// Required column names in the header row that follows a Column line.
const (
	ColumnName = "Name"
	ColumnSOP  = "ASC_SOP"
	ColumnSAT  = "ASC_SAT"
)

// RequiredColumns lists the header names a log must declare, in lookup order.
var RequiredColumns = []string{ColumnName, ColumnSOP, ColumnSAT}

// ColumnMap holds the zero-based field positions resolved from a header row.
// It stays valid for every data row until the next Column block.
type ColumnMap struct {
	Name int
	SOP  int
	SAT  int
}

// ResolveColumns finds the required columns in header.
// Names must match exactly; the first occurrence wins.
// Returns the names that could not be found, in RequiredColumns order.
func ResolveColumns(header []string) (ColumnMap, []string) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}

	var missing []string
	lookup := func(name string) int {
		i, ok := index[name]
		if !ok {
			missing = append(missing, name)
			return -1
		}
		return i
	}

	cols := ColumnMap{
		Name: lookup(ColumnName),
		SOP:  lookup(ColumnSOP),
		SAT:  lookup(ColumnSAT),
	}
	return cols, missing
}

// maxIndex returns the highest field position the map refers to.
func (c ColumnMap) maxIndex() int {
	return max(c.Name, c.SOP, c.SAT)
}
