package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/achilleasa/radiance/config"
	"github.com/achilleasa/radiance/failure"
	"github.com/achilleasa/radiance/scene"
	"github.com/urfave/cli"
)

// RenderFlags lists the flags accepted by the render command.
func RenderFlags() []cli.Flag {
	def := config.Default()
	return []cli.Flag{
		cli.IntFlag{Name: "width", Value: def.Width, Usage: "frame width"},
		cli.IntFlag{Name: "height", Value: def.Height, Usage: "frame height"},
		cli.IntFlag{Name: "samples, s", Value: def.NumSamples, Usage: "render passes per output frame; -1 accumulates continuously"},
		cli.IntFlag{Name: "max-frames", Value: def.MaxFrames, Usage: "stop after this many frames (0 = unbounded)"},
		cli.IntFlag{Name: "num-bounces", Value: def.NumBounces, Usage: "number of indirect ray bounces"},
		cli.IntFlag{Name: "shadow-rays", Value: def.ShadowRays, Usage: "shadow rays per hit"},
		cli.IntFlag{Name: "ao-rays", Value: def.AORays, Usage: "ambient occlusion rays per hit"},
		cli.BoolFlag{Name: "ao", Usage: "enable ambient occlusion"},
		cli.StringFlag{Name: "model, m", Usage: "wavefront obj scene file or folder", EnvVar: "RADIANCE_MODEL"},
		cli.StringFlag{Name: "model-name", Usage: "scene file inside the --model folder"},
		cli.StringFlag{Name: "camera-kind", Value: def.CameraKind.String(), Usage: "perspective, perspective_with_depth_of_field or spherical_equirectangular"},
		cli.StringFlag{Name: "camera-position", Value: formatVec(def.CameraPosition[:]), Usage: "camera position as x,y,z"},
		cli.StringFlag{Name: "sensor-size", Value: formatVec(def.SensorSize[:]), Usage: "sensor size in meters as w,h"},
		cli.StringFlag{Name: "depth-range", Value: formatVec(def.DepthRange[:]), Usage: "near and far depth as near,far"},
		cli.Float64Flag{Name: "focal-length", Value: float64(def.FocalLength), Usage: "focal length in meters"},
		cli.Float64Flag{Name: "focus-distance", Usage: "focus distance for depth of field"},
		cli.Float64Flag{Name: "aperture", Usage: "aperture for depth of field"},
		cli.Float64Flag{Name: "stereo-displacement", Usage: "stereo eye offset along the camera right vector"},
		cli.Float64Flag{Name: "stereo-distance", Usage: "stereo convergence distance"},
		cli.StringFlag{Name: "env-map", Usage: "environment map image", EnvVar: "RADIANCE_ENV_MAP"},
		cli.StringFlag{Name: "env-name", Usage: "environment map name"},
		cli.Float64Flag{Name: "env-multiplier", Value: float64(def.EnvironmentMultiplier), Usage: "environment radiance multiplier"},
		cli.BoolFlag{Name: "fisheye", Usage: "reproject the output from a fisheye lens to equirectangular"},
		cli.StringFlag{Name: "camera-path", Usage: "play back a recorded camera path"},
		cli.IntFlag{Name: "camera-path-offset", Usage: "skip this many camera path nodes"},
		cli.BoolFlag{Name: "quit-on-path-end", Usage: "stop when the camera path is exhausted"},
		cli.StringFlag{Name: "record-path", Usage: "write positions saved with Space to this file on exit"},
		cli.StringFlag{Name: "backend", Value: def.Backend, Usage: "compute backend (host or webgpu)", EnvVar: "RADIANCE_BACKEND"},
		cli.IntFlag{Name: "devices", Usage: "max number of devices to use (0 = all)", EnvVar: "RADIANCE_DEVICES"},
		cli.StringSliceFlag{Name: "blacklist, b", Value: &cli.StringSlice{}, Usage: "blacklist devices whose names contain this value"},
		cli.StringFlag{Name: "force-primary", Usage: "use the device whose name contains this value as primary"},
		cli.BoolFlag{Name: "share-memory", Usage: "normalize render output on the primary device instead of the host"},
		cli.Float64Flag{Name: "exposure", Value: float64(def.Exposure), Usage: "camera exposure for tone-mapping"},
		cli.BoolFlag{Name: "catch-errors", Usage: "end the session gracefully on render errors"},
		cli.DurationFlag{Name: "readback-interval", Value: def.ReadbackInterval, Usage: "max time between secondary device readbacks"},
		cli.StringFlag{Name: "out, o", Usage: "write flushed frames to this folder"},
		cli.BoolFlag{Name: "interactive, i", Usage: "open a preview window (requires a gpu build)"},
		cli.BoolFlag{Name: "flip", Usage: "flip written frames vertically"},
		cli.DurationFlag{Name: "report-interval", Usage: "log pipeline timings at this interval (0 = never)"},
	}
}

// Populate a config from the render command flags.
func buildConfig(ctx *cli.Context) (config.Config, error) {
	cfg := config.Default()
	cfg.Width = ctx.Int("width")
	cfg.Height = ctx.Int("height")
	cfg.NumSamples = ctx.Int("samples")
	cfg.MaxFrames = ctx.Int("max-frames")
	cfg.NumBounces = ctx.Int("num-bounces")
	cfg.ShadowRays = ctx.Int("shadow-rays")
	cfg.AORays = ctx.Int("ao-rays")
	cfg.AOEnabled = ctx.Bool("ao")
	cfg.ModelPath = ctx.String("model")
	cfg.ModelName = ctx.String("model-name")
	cfg.FocalLength = float32(ctx.Float64("focal-length"))
	cfg.FocusDistance = float32(ctx.Float64("focus-distance"))
	cfg.Aperture = float32(ctx.Float64("aperture"))
	cfg.StereoDisplacement = float32(ctx.Float64("stereo-displacement"))
	cfg.StereoDistance = float32(ctx.Float64("stereo-distance"))
	cfg.EnvironmentMapPath = ctx.String("env-map")
	cfg.EnvironmentMapName = ctx.String("env-name")
	cfg.EnvironmentMultiplier = float32(ctx.Float64("env-multiplier"))
	cfg.FisheyeEnabled = ctx.Bool("fisheye")
	cfg.AutomaticCameraPath = ctx.String("camera-path")
	cfg.AutoCameraFrameOffset = ctx.Int("camera-path-offset")
	cfg.QuitOnCameraPathFinished = ctx.Bool("quit-on-path-end")
	cfg.RecordPath = ctx.String("record-path")
	cfg.Backend = ctx.String("backend")
	cfg.NumDevices = ctx.Int("devices")
	cfg.Blacklist = ctx.StringSlice("blacklist")
	cfg.ForcePrimary = ctx.String("force-primary")
	cfg.ShareDeviceMemory = ctx.Bool("share-memory")
	cfg.Exposure = float32(ctx.Float64("exposure"))
	cfg.CatchErrors = ctx.Bool("catch-errors")
	cfg.ReadbackInterval = ctx.Duration("readback-interval")
	cfg.OutputPath = ctx.String("out")
	cfg.Interactive = ctx.Bool("interactive")

	var err error
	if cfg.CameraKind, err = scene.ParseCameraKind(ctx.String("camera-kind")); err != nil {
		return cfg, failure.Config("camera_kind", "%v", err)
	}
	if err = parseVec(ctx.String("camera-position"), cfg.CameraPosition[:]); err != nil {
		return cfg, failure.Config("camera_position", "%v", err)
	}
	if err = parseVec(ctx.String("sensor-size"), cfg.SensorSize[:]); err != nil {
		return cfg, failure.Config("sensor_size", "%v", err)
	}
	if err = parseVec(ctx.String("depth-range"), cfg.DepthRange[:]); err != nil {
		return cfg, failure.Config("depth_range", "%v", err)
	}
	return cfg, nil
}

// Resolve the scene file from the model path and name.
func modelFile(cfg config.Config) (string, error) {
	if cfg.ModelPath == "" {
		return "", failure.Config("model_path", "no scene file specified")
	}
	if cfg.ModelName != "" {
		return filepath.Join(cfg.ModelPath, cfg.ModelName), nil
	}
	return cfg.ModelPath, nil
}

// Parse a comma separated list of len(dst) floats.
func parseVec(value string, dst []float32) error {
	tokens := strings.Split(value, ",")
	if len(tokens) != len(dst) {
		return fmt.Errorf("expected %d comma separated values; got %q", len(dst), value)
	}
	for i, token := range tokens {
		v, err := strconv.ParseFloat(strings.TrimSpace(token), 32)
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", token, err)
		}
		dst[i] = float32(v)
	}
	return nil
}

func formatVec(values []float32) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	return strings.Join(parts, ",")
}
