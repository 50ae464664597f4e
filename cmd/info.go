package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/achilleasa/radiance/campath"
	"github.com/achilleasa/radiance/config"
	"github.com/achilleasa/radiance/scene"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Display the contents of a recorded camera path.
func ShowCameraPath(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return exitError(errors.New("missing camera path file"))
	}

	nodes, err := campath.ReadFile(ctx.Args().First())
	if err != nil {
		return exitError(err)
	}

	var buf bytes.Buffer
	writeCameraPath(&buf, nodes)
	logger.Noticef("camera path %s\n%s", ctx.Args().First(), buf.String())
	return nil
}

// Render the camera path nodes as a table.
func writeCameraPath(w io.Writer, nodes []campath.Node) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Tick", "Position", "Theta", "Phi"})
	for index, node := range nodes {
		pos := node.Pose.Position
		table.Append([]string{
			fmt.Sprint(index),
			fmt.Sprint(node.Tick),
			fmt.Sprintf("%.3f, %.3f, %.3f", pos[0], pos[1], pos[2]),
			fmt.Sprintf("%.4f", node.Pose.Theta),
			fmt.Sprintf("%.4f", node.Pose.Phi),
		})
	}
	table.SetFooter([]string{"", "", "", "NODES", fmt.Sprint(len(nodes))})
	table.Render()
}

// Parse a wavefront scene and display its contents.
func ShowSceneInfo(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return exitError(errors.New("missing scene file"))
	}

	sc, err := scene.ReadWavefrontFile(ctx.Args().First(), config.Default().Camera())
	if err != nil {
		return exitError(err)
	}

	var buf bytes.Buffer
	err = sc.Read(func(v scene.View) error {
		table := tablewriter.NewWriter(&buf)
		table.SetHeader([]string{"Shape", "Material", "Vertices", "Triangles"})
		var vertices, triangles int
		for _, shape := range v.Shapes() {
			matName := "-"
			if shape.Material != nil {
				matName = shape.Material.Name
			}
			table.Append([]string{
				shape.Name,
				matName,
				fmt.Sprint(len(shape.Vertices)),
				fmt.Sprint(len(shape.Indices) / 3),
			})
			vertices += len(shape.Vertices)
			triangles += len(shape.Indices) / 3
		}
		table.SetFooter([]string{"TOTAL", "", fmt.Sprint(vertices), fmt.Sprint(triangles)})
		table.Render()

		buf.WriteString(fmt.Sprintf("\nmaterials: %d, textures: %d, lights: %d\n",
			len(v.Materials()), len(v.Textures()), len(v.Lights())))
		return nil
	})
	if err != nil {
		return exitError(err)
	}

	logger.Noticef("scene information:\n%s", buf.String())
	return nil
}
