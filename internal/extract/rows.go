package extract

import (
	"fmt"
	"strings"
)

// Row builds a tabular record from one row of cells. The first cell that
// holds an address supplies it; every other column becomes context.
// ok is false when the row has no address.
func (x *Extractor) Row(header, cells []string) (Row, bool) {
	emailCol := -1
	var addr string
	for i, c := range cells {
		if a, found := x.First(c); found {
			emailCol, addr = i, a
			break
		}
	}
	if emailCol < 0 {
		return Row{}, false
	}

	ctx := make(map[string]string, len(cells))
	for i, c := range cells {
		if i == emailCol {
			continue
		}
		ctx[columnName(header, i, ctx)] = strings.ReplaceAll(c, "\n", " ")
	}
	return Row{Address: addr, Context: ctx}, true
}

// columnName picks a unique key for column i.
func columnName(header []string, i int, taken map[string]string) string {
	name := ""
	if i < len(header) {
		name = strings.TrimSpace(header[i])
	}
	if name == "" {
		name = fmt.Sprintf("column_%d", i+1)
	}
	if _, dup := taken[name]; !dup {
		return name
	}
	for n := 2; ; n++ {
		alt := fmt.Sprintf("%s_%d", name, n)
		if _, dup := taken[alt]; !dup {
			return alt
		}
	}
}

// RowsFrom converts a table into a ShapeRows result, skipping rows with no
// address. Several rows for the same address are all kept.
func (x *Extractor) RowsFrom(header []string, rows [][]string) Result {
	res := Result{Shape: ShapeRows}
	for _, cells := range rows {
		if r, ok := x.Row(header, cells); ok {
			res.Rows = append(res.Rows, r)
		}
	}
	return res
}
