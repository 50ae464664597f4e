package main

import (
	"os"
	"runtime"

	"github.com/achilleasa/radiance/cmd"
	_ "github.com/achilleasa/radiance/device/host"
	_ "github.com/achilleasa/radiance/device/webgpu"
	"github.com/urfave/cli"
)

func init() {
	// The preview window must be driven from the main thread.
	runtime.LockOSThread()
}

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "radiance"
	app.Usage = "render scenes using progressive path tracing on one or more devices"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "render",
			Usage: "render a scene",
			Description: `
Load a wavefront obj scene and render it progressively on the selected
devices. Passes are accumulated into frames of --samples passes each which
are written to --out when set. With --samples -1 every pass is flushed.`,
			ArgsUsage: " ",
			Flags:     cmd.RenderFlags(),
			Action:    cmd.Render,
		},
		{
			Name:   "list-devices",
			Usage:  "list available compute devices",
			Action: cmd.ListDevices,
		},
		{
			Name:   "kernels",
			Usage:  "compile the webgpu kernel library and report errors",
			Action: cmd.ValidateKernels,
		},
		{
			Name:  "campath",
			Usage: "camera path tools",
			Subcommands: []cli.Command{
				{
					Name:      "show",
					Usage:     "display the nodes of a recorded camera path",
					ArgsUsage: "path.json",
					Action:    cmd.ShowCameraPath,
				},
			},
		},
		{
			Name:  "scene",
			Usage: "scene tools",
			Subcommands: []cli.Command{
				{
					Name:      "info",
					Usage:     "display scene statistics",
					ArgsUsage: "scene.obj",
					Action:    cmd.ShowSceneInfo,
				},
			},
		},
	}

	app.Run(os.Args)
}
