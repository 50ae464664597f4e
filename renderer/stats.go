package renderer

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
)

type DeviceStat struct {
	Name    string
	Primary bool

	// Render passes and readbacks since the session was created.
	Passes    uint64
	Readbacks uint64

	LastPass  time.Duration
	TotalTime time.Duration

	// Secondary mailbox counters.
	Produced uint64
	Dropped  uint64
	Stale    uint64
	Merged   uint64
	Errors   uint64
}

type FrameStats struct {
	Devices []DeviceStat

	// Primary passes since the last reset and total coordinator ticks.
	Samples int
	Ticks   uint64
}

// Stats returns a snapshot of the device statistics.
func (c *Coordinator) Stats() FrameStats {
	ps := c.primary.Stats()
	stats := FrameStats{
		Samples: c.samples,
		Ticks:   c.ticks,
		Devices: []DeviceStat{{
			Name:      c.primary.Info().Name,
			Primary:   true,
			Passes:    ps.Passes,
			Readbacks: ps.Readbacks,
			LastPass:  ps.LastPass,
			TotalTime: ps.TotalTime,
		}},
	}

	for _, w := range c.workers {
		ss := w.session.Stats()
		stats.Devices = append(stats.Devices, DeviceStat{
			Name:      w.session.Info().Name,
			Passes:    ss.Passes,
			Readbacks: ss.Readbacks,
			LastPass:  ss.LastPass,
			TotalTime: ss.TotalTime,
			Produced:  w.produced.Load(),
			Dropped:   w.dropped.Load(),
			Stale:     w.stale.Load(),
			Merged:    w.merged.Load(),
			Errors:    w.errors.Load(),
		})
	}
	return stats
}

// WriteTable renders the stats as a table.
func (fs FrameStats) WriteTable(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Device", "Primary", "Passes", "Last pass", "Render time", "Frames", "Dropped", "Stale", "Merged", "Errors"})
	for _, stat := range fs.Devices {
		table.Append([]string{
			stat.Name,
			fmt.Sprintf("%t", stat.Primary),
			fmt.Sprintf("%d", stat.Passes),
			stat.LastPass.String(),
			stat.TotalTime.String(),
			fmt.Sprintf("%d", stat.Produced),
			fmt.Sprintf("%d", stat.Dropped),
			fmt.Sprintf("%d", stat.Stale),
			fmt.Sprintf("%d", stat.Merged),
			fmt.Sprintf("%d", stat.Errors),
		})
	}
	table.SetFooter([]string{"", "", "", "", "", "", "", "", "SAMPLES", fmt.Sprintf("%d", fs.Samples)})
	table.Render()
}
