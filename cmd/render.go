package cmd

import (
	"bytes"
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/achilleasa/radiance/campath"
	"github.com/achilleasa/radiance/config"
	"github.com/achilleasa/radiance/device"
	"github.com/achilleasa/radiance/device/host"
	"github.com/achilleasa/radiance/display"
	"github.com/achilleasa/radiance/failure"
	"github.com/achilleasa/radiance/pipeline"
	"github.com/achilleasa/radiance/renderer"
	"github.com/achilleasa/radiance/scene"
	"github.com/achilleasa/radiance/tracer"
	"github.com/urfave/cli"
)

// Render runs a render session using the command line configuration.
func Render(ctx *cli.Context) error {
	setupLogging(ctx)

	cfg, err := buildConfig(ctx)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		return exitError(err)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return exitError(runSession(sigCtx, cfg, outputFlags{
		flip:           ctx.Bool("flip"),
		reportInterval: ctx.Duration("report-interval"),
	}))
}

// Output options that only affect how frames are presented.
type outputFlags struct {
	flip           bool
	reportInterval time.Duration
}

func runSession(ctx context.Context, cfg config.Config, out outputFlags) error {
	modelPath, err := modelFile(cfg)
	if err != nil {
		return err
	}

	sc, err := scene.ReadWavefrontFile(modelPath, cfg.Camera())
	if err != nil {
		return err
	}
	sc.SetEnvironment(&scene.Environment{
		Name:       cfg.EnvironmentMapName,
		Multiplier: cfg.EnvironmentMultiplier,
	})

	sessions, err := openSessions(cfg)
	if err != nil {
		return err
	}

	devSessions := make([]renderer.Session, len(sessions))
	for index, s := range sessions {
		devSessions[index] = s
	}

	coord, err := renderer.NewCoordinator(ctx, sc, devSessions, renderer.Options{
		NumSamples:       cfg.NumSamples,
		ReadbackInterval: cfg.ReadbackInterval,
	})
	if err != nil {
		for _, s := range sessions {
			s.Release()
		}
		return err
	}
	defer func() {
		var buf bytes.Buffer
		coord.Stats().WriteTable(&buf)
		logger.Noticef("device statistics\n%s", buf.String())
		if shutdownErr := coord.Shutdown(); shutdownErr != nil {
			logger.Warningf("coordinator shutdown: %v", shutdownErr)
		}
	}()

	primary := sessions[0]
	pctx := &pipeline.Context{
		Device:      primary.Context(),
		Width:       cfg.Width,
		Height:      cfg.Height,
		Scene:       sc,
		Environment: primary.Compiler(),
		Shared:      cfg.ShareDeviceMemory,
	}

	opts, err := pipelineOptions(cfg, out)
	if err != nil {
		return err
	}

	// The scheduler must release its images before the coordinator
	// releases the primary device.
	sched := pipeline.NewScheduler(opts)
	if err = sched.Init(pctx, coord, nil); err != nil {
		return err
	}
	defer func() {
		sched.Shutdown()
		var buf bytes.Buffer
		sched.WriteTimings(&buf)
		logger.Noticef("pipeline timings\n%s", buf.String())
	}()

	if cfg.OutputPath != "" {
		writer, err := display.NewFrameWriter(cfg.OutputPath)
		if err != nil {
			return err
		}
		sched.AddSink(writer)
	}

	if cfg.Interactive {
		win, err := display.Open("radiance", cfg.Width, cfg.Height, sched.EventSinks())
		if err != nil {
			return err
		}
		defer win.Close()

		preview := sched.GUIBuffers()["render"]
		sched.AddTickHook(func() error {
			win.PollEvents()
			if win.ShouldClose() {
				sched.Quit()
				return nil
			}
			return win.Show(preview)
		})
	}

	logger.Noticef("rendering %s at %dx%d (%d device(s))", modelPath, cfg.Width, cfg.Height, len(sessions))
	return sched.Run(ctx)
}

// Open the configured backend and create one render session per selected
// device. The primary session is always first.
func openSessions(cfg config.Config) ([]*tracer.Session, error) {
	backend, err := device.OpenBackend(cfg.Backend)
	if err != nil {
		return nil, failure.Fatal(cfg.Backend, "backend open", err)
	}
	if hb, ok := backend.(*host.Backend); ok && cfg.NumDevices > 0 {
		hb.SetDeviceCount(cfg.NumDevices)
	}

	infos, err := backend.Devices()
	if err != nil {
		return nil, failure.Fatal(cfg.Backend, "device enumeration", err)
	}

	primary, secondaries, err := device.Select(infos, cfg.Blacklist, cfg.ForcePrimary, cfg.NumDevices)
	if err != nil {
		return nil, failure.Fatal(cfg.Backend, "device selection", err)
	}

	var sessions []*tracer.Session
	release := func() {
		for _, s := range sessions {
			s.Release()
		}
	}

	for index, info := range append([]device.Info{primary}, secondaries...) {
		role := tracer.Secondary
		if index == 0 {
			role = tracer.Primary
		}

		devCtx, err := backend.Open(info)
		if err != nil {
			release()
			return nil, failure.Fatal(info.Name, "context open", err)
		}

		session, err := tracer.NewSession(devCtx, index, role, cfg.Width, cfg.Height, nil)
		if err != nil {
			release()
			return nil, err
		}
		sessions = append(sessions, session)
		logger.Infof("selected %s device: %s", role, info)
	}

	return sessions, nil
}

func pipelineOptions(cfg config.Config, out outputFlags) (pipeline.Options, error) {
	opts := pipeline.DefaultOptions()
	opts.PerFrame = cfg.NumSamples
	opts.MaxFrames = cfg.MaxFrames
	opts.QuitOnCameraPathFinished = cfg.QuitOnCameraPathFinished
	opts.CatchErrors = cfg.CatchErrors
	opts.Exposure = cfg.Exposure
	opts.Flip = out.flip
	opts.Interactive = cfg.Interactive
	opts.RecordPath = cfg.RecordPath
	opts.EnvironmentPath = cfg.EnvironmentMapPath
	opts.ReportInterval = out.reportInterval

	if cfg.AutomaticCameraPath != "" {
		nodes, err := campath.ReadFile(cfg.AutomaticCameraPath)
		if err != nil {
			return opts, failure.Config("automatic_camera_path", "%v", err)
		}
		opts.CameraPath = nodes
		opts.CameraPathOffset = cfg.AutoCameraFrameOffset
	}

	if cfg.FisheyeEnabled {
		opts.Projection = &pipeline.ProjectionOptions{
			Projection: pipeline.FisheyeToEquirect,
			CameraPath: opts.CameraPath,
		}
	}

	return opts, nil
}
