package kernel

import (
	"fmt"

	"github.com/prometheus/procfs"
)

// Softnet reads the per-CPU backlog drop counters the kernel exposes in
// /proc/net/softnet_stat. These complement drop monitor alerts: they count
// packets dropped because the input queue was full.
type Softnet struct {
	fs procfs.FS
}

func NewSoftnet(procPath string) (*Softnet, error) {
	fs, err := procfs.NewFS(procPath)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialise the procfs filesystem: %w", err)
	}
	return &Softnet{fs: fs}, nil
}

// Dropped returns the drop count summed across all CPUs.
func (s *Softnet) Dropped() (uint64, error) {
	stats, err := s.fs.NetSoftnetStat()
	if err != nil {
		return 0, fmt.Errorf("error reading softnet stats: %w", err)
	}

	var total uint64
	for _, st := range stats {
		total += uint64(st.Dropped)
	}

	return total, nil
}
