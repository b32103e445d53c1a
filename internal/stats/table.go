package stats

import "strconv"

// Table is a rendered aggregation with named columns.
type Table struct {
	Columns []string   `json:"columns" yaml:"columns"`
	Rows    [][]string `json:"rows" yaml:"rows"`
}

var (
	machineColumns       = []string{"Machine", "Total_Benchmarks", "Failed_Benchmarks", "Success_Rate"}
	configurationColumns = []string{"Backend", "Hardware", "Subset", "Machine", "Total_Benchmarks", "Failed_Benchmarks", "Success_Rate"}
)

// MachineTable renders ByMachine rows.
func MachineTable(rows []Row) Table {
	return render(machineColumns, rows)
}

// ConfigurationTable renders ByConfiguration rows.
func ConfigurationTable(rows []Row) Table {
	return render(configurationColumns, rows)
}

func render(columns []string, rows []Row) Table {
	t := Table{Columns: columns, Rows: make([][]string, 0, len(rows))}
	for _, r := range rows {
		line := append([]string(nil), r.Group...)
		line = append(line, strconv.Itoa(r.Total), strconv.Itoa(r.Failed), r.Rate())
		t.Rows = append(t.Rows, line)
	}
	return t
}
