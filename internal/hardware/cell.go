package hardware

import "fmt"

// Cell is a (backend, hardware, subset, machine) tuple. Its namespace name is a
// pure function of those four fields.
type Cell struct {
	Backend  string `json:"backend"`
	Hardware string `json:"hardware"`
	Subset   string `json:"subset"`
	Machine  string `json:"machine"`
}

// RepoName is the namespace name without its organization.
func (c Cell) RepoName() string {
	return fmt.Sprintf("llm-perf-%s-%s-%s-%s", c.Backend, c.Hardware, c.Subset, c.Machine)
}

// Namespace is the fully qualified remote namespace, e.g.
// optimum-benchmark/llm-perf-pytorch-cuda-unquantized-1xA10.
func (c Cell) Namespace(org string) string {
	if org == "" {
		return c.RepoName()
	}
	return org + "/" + c.RepoName()
}

// PerfCSVName is the leaderboard file name holding this cell's flattened table.
func (c Cell) PerfCSVName() string {
	return fmt.Sprintf("perf-df-%s-%s-%s-%s.csv", c.Backend, c.Hardware, c.Subset, c.Machine)
}

func (c Cell) String() string {
	return fmt.Sprintf("backend=%s hardware=%s subset=%s machine=%s", c.Backend, c.Hardware, c.Subset, c.Machine)
}
