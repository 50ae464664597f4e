package cmd

import (
	"bytes"
	"fmt"

	"github.com/achilleasa/radiance/device"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// List the devices exposed by every registered compute backend.
func ListDevices(ctx *cli.Context) error {
	setupLogging(ctx)

	var buf bytes.Buffer
	names := device.Backends()
	buf.WriteString(fmt.Sprintf("\nSystem provides %d compute backend(s):\n\n", len(names)))

	for _, name := range names {
		backend, err := device.OpenBackend(name)
		if err != nil {
			buf.WriteString(fmt.Sprintf("[%s] unavailable: %v\n\n", name, err))
			continue
		}

		infos, err := backend.Devices()
		if err != nil {
			buf.WriteString(fmt.Sprintf("[%s] device enumeration failed: %v\n\n", name, err))
			continue
		}

		buf.WriteString(fmt.Sprintf("[%s]\n", name))
		table := tablewriter.NewWriter(&buf)
		table.SetHeader([]string{"#", "Name", "Type", "Speed"})
		for _, info := range infos {
			table.Append([]string{
				fmt.Sprint(info.Index),
				info.Name,
				info.Type.String(),
				fmt.Sprint(info.Speed),
			})
		}
		table.Render()
		buf.WriteString("\n")
	}

	logger.Notice(buf.String())
	return nil
}
