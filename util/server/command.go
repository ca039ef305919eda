package server

import (
	stderrors "errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/tiglabs/baudschema/util/build"
	"github.com/tiglabs/baudschema/util/log"
)

const shutdownTimeout = 15 * time.Second

type StopHook func() error

// VersionCommand return version sub command define
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:        "version",
		Usage:       "print the version",
		Description: "Prints out build version information",
		Action: func(c *cli.Context) error {
			fmt.Fprint(c.App.Writer, build.GetInfo())
			return nil
		},
	}
}

// AppendFlags append flag to command
func AppendFlags(cmd *cli.Command, flags ...cli.Flag) {
	cmd.Flags = append(cmd.Flags, flags...)
}

// GoFlags mirrors every flag of the standard flag set, glog's -v,
// -log_dir and -logtostderr included, as string flags of a command.
func GoFlags() []cli.Flag {
	var flags []cli.Flag
	flag.CommandLine.VisitAll(func(gf *flag.Flag) {
		flags = append(flags, &cli.StringFlag{
			Name:        gf.Name,
			Value:       gf.Value.String(),
			Usage:       gf.Usage,
			DefaultText: gf.DefValue,
		})
	})
	return flags
}

// ApplyGoFlags copies the values given on the command line back into the
// standard flag set.
func ApplyGoFlags(ctx *cli.Context) error {
	var err error
	flag.CommandLine.VisitAll(func(gf *flag.Flag) {
		if err == nil && ctx.IsSet(gf.Name) {
			err = errors.Wrapf(gf.Value.Set(ctx.String(gf.Name)), "flag [%s]", gf.Name)
		}
	})
	return err
}

// RunStops runs every hook and joins their errors.
func RunStops(stops ...StopHook) error {
	var errs []error
	for _, stop := range stops {
		if err := stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// WaitShutdown awaits SIGINT or SIGTERM and runs the stop hooks. A second
// signal or shutdownTimeout gives up on a graceful shutdown.
func WaitShutdown(stops ...StopHook) {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-sigs

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("shutting down")
		if err := RunStops(stops...); err != nil {
			log.Error("shutdown: %v", err)
			return
		}
		log.Info("shutdown completed")
	}()

	select {
	case <-done:
	case <-sigs:
		log.Warn("second signal received, giving up graceful shutdown")
	case <-time.After(shutdownTimeout):
		log.Warn("shutdown did not complete within %v", shutdownTimeout)
	}
}

// SupressGlogWarnings marks the standard flag set parsed so glog does not
// complain about logging before flag.Parse. The cli app owns parsing.
func SupressGlogWarnings() {
	_ = flag.CommandLine.Parse([]string{})
}
