package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/tiglabs/baudschema/config"
	"github.com/tiglabs/baudschema/httpd"
	"github.com/tiglabs/baudschema/registry"
	"github.com/tiglabs/baudschema/util/log"
	"github.com/tiglabs/baudschema/util/server"
)

const (
	flagConfig = "config"
)

var (
	app = &cli.App{
		Name:        "mapctl",
		Usage:       "mapctl [command]",
		Description: "Mapping registry of a baud index.",
	}
	serveCmd = &cli.Command{
		Name:        "serve",
		Usage:       "mapctl serve --config <file>",
		Description: "Serve the mapping admin API",
		Action: func(cmdCtx *cli.Context) error {
			if err := server.ApplyGoFlags(cmdCtx); err != nil {
				return err
			}
			cfg, err := loadConfig(cmdCtx)
			if err != nil {
				return err
			}
			if cfg.LogCfg.LogPath != "" {
				if err := flag.Set("log_dir", cfg.LogCfg.LogPath); err != nil {
					return errors.Wrapf(err, "fail to set log dir[%s]", cfg.LogCfg.LogPath)
				}
			}

			reg, err := registry.New(cfg)
			if err != nil {
				return err
			}
			if err := registry.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
				return err
			}
			svc := httpd.New(cfg, reg, prometheus.DefaultGatherer)
			go func() {
				if err := svc.Run(); err != nil {
					log.Fatal("mapping admin api stopped: %v", err)
				}
			}()

			server.WaitShutdown(
				func() error { svc.Close(); return nil },
				func() error { reg.Close(); return nil },
				func() error { log.Flush(); return nil },
			)
			return nil
		},
	}
	checkCmd = &cli.Command{
		Name:        "check",
		Usage:       "mapctl check --config <file> <type>=<mapping file>...",
		Description: "Merge mapping files in order and print the resulting registry",
		Action: func(cmdCtx *cli.Context) error {
			cfg, err := loadConfig(cmdCtx)
			if err != nil {
				return err
			}
			return runCheck(cmdCtx.App.Writer, cfg, cmdCtx.Args().Slice())
		},
	}
)

func loadConfig(cmdCtx *cli.Context) (*config.Config, error) {
	cfg, err := config.NewConfig(cmdCtx.String(flagConfig))
	if err != nil {
		return nil, err
	}
	level, err := log.ParseLevel(cfg.LogCfg.Level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)
	return cfg, nil
}

func init() {
	configFlag := &cli.StringFlag{
		Name:    flagConfig,
		Aliases: []string{"c"},
		Usage:   "config file path",
	}
	server.AppendFlags(serveCmd, configFlag)
	server.AppendFlags(checkCmd, configFlag)

	server.AppendFlags(serveCmd, server.GoFlags()...)
	app.Commands = append(app.Commands, serveCmd, checkCmd, server.VersionCommand())
}

func main() {
	// Needed to avoid "logging before flag.Parse" error with glog.
	server.SupressGlogWarnings()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "mapctl: %s\n", err)
		os.Exit(1)
	}
}
