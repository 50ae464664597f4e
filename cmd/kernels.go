package cmd

import (
	"bytes"
	"fmt"

	"github.com/achilleasa/radiance/device/webgpu"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Compile the embedded WGSL kernel library and report the result per kernel.
func ValidateKernels(ctx *cli.Context) error {
	setupLogging(ctx)

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Kernel", "SPIR-V size", "Compile time", "Status"})

	failed := 0
	for _, res := range webgpu.Validate() {
		status := "ok"
		if res.Err != nil {
			status = res.Err.Error()
			failed++
		}
		table.Append([]string{
			res.Kernel,
			fmt.Sprintf("%d bytes", res.SPIRVBytes),
			res.CompileTime.String(),
			status,
		})
	}
	table.Render()
	logger.Noticef("kernel library validation\n%s", buf.String())

	if failed > 0 {
		return exitError(fmt.Errorf("%d kernel(s) failed to compile", failed))
	}
	return nil
}
