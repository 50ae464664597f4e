package cmd

import (
	"github.com/achilleasa/radiance/failure"
	"github.com/achilleasa/radiance/log"
	"github.com/urfave/cli"
)

var logger = log.New("radiance")

func setupLogging(ctx *cli.Context) {
	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}
}

// Map a session error to the process outcome. Recoverable errors end the
// session normally; everything else is logged as critical and exits with 1.
func exitError(err error) error {
	switch {
	case err == nil:
		return nil
	case failure.IsRecoverable(err):
		logger.Warningf("render session ended: %v", err)
		return nil
	}
	logger.Critical(err)
	return cli.NewExitError("", 1)
}
