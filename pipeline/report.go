package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
)

// NodeStats returns timing stats for every owned node.
func (s *Scheduler) NodeStats() []NodeStats {
	stats := make([]NodeStats, 0, len(s.nodes))
	for _, n := range s.nodes {
		stats = append(stats, n.Stats())
	}
	return stats
}

// WriteTimings renders node timings as a table.
func (s *Scheduler) WriteTimings(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Node", "Processed", "Last", "Mean", "Total"})
	for _, stat := range s.NodeStats() {
		table.Append([]string{
			stat.Tag,
			fmt.Sprintf("%d", stat.Processed),
			stat.Last.String(),
			stat.Mean().String(),
			stat.Total.String(),
		})
	}
	table.SetFooter([]string{"", "", "", "FRAMES", fmt.Sprintf("%d", s.frames)})
	table.Render()
}

func (s *Scheduler) maybeReport() {
	if s.opts.ReportInterval <= 0 || time.Since(s.lastReport) < s.opts.ReportInterval {
		return
	}
	s.lastReport = time.Now()

	var buf bytes.Buffer
	s.WriteTimings(&buf)
	logger.Debugf("node timings after %d ticks:\n%s", s.ticks, buf.String())
}
