package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/op/go-logging"
	"github.com/urfave/cli"

	"github.com/portreeve/bootstrapd/common/config"
	bootlog "github.com/portreeve/bootstrapd/common/log"
	"github.com/portreeve/bootstrapd/common/version"
	"github.com/portreeve/bootstrapd/daemon"
)

func useSyslog() bool {
	env := os.Getenv("BOOTSTRAP_LOG_SYSLOG")
	if env != "" {
		return env == "true"
	}
	return false
}

var log = bootlog.SetupLogging("bootstrapd", logging.INFO, useSyslog())

func main() {
	defer func() {
		if x := recover(); x != nil {
			log.Error(fmt.Sprintf("run time panic: %v", x))
			log.Error(string(debug.Stack()))
			panic(x)
		}
	}()

	app := cli.NewApp()
	app.Name = "bootstrapd"
	app.Usage = "private namespace coordinator for cooperating processes"
	app.Version = version.CURRENT_VERSION.String()
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "path to a TOML config file",
		},
		cli.StringFlag{
			Name:  "primary",
			Usage: "executable or bundle to launch as the primary process",
		},
		cli.StringSliceFlag{
			Name:  "primary-arg",
			Usage: "argument passed to the primary (repeatable)",
		},
		cli.StringSliceFlag{
			Name:  "primary-env",
			Usage: "KEY=VALUE added to the primary's environment (repeatable)",
		},
		cli.StringFlag{
			Name:  "secondary",
			Usage: "executable or bundle to launch after the primary",
		},
		cli.StringSliceFlag{
			Name:  "secondary-arg",
			Usage: "argument passed to the secondary (repeatable)",
		},
		cli.StringSliceFlag{
			Name:  "secondary-env",
			Usage: "KEY=VALUE added to the secondary's environment (repeatable)",
		},
		cli.StringFlag{
			Name:  "wait-for",
			Usage: "service name that must appear in the registry before the secondary launches",
		},
	}
	app.Action = runDaemon
	if err := app.Run(os.Args); err != nil {
		PrintFatal(err.Error())
	}
}

func runDaemon(c *cli.Context) (err error) {
	primaryPath := c.String("primary")
	if primaryPath == "" {
		PrintFatal("no primary executable specified, see --help")
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		PrintFatal("config: %s", err.Error())
	}
	//	BOOTSTRAP_LOG_LEVEL stays in charge when both are set
	if cfg.LogLevel != "" && os.Getenv("BOOTSTRAP_LOG_LEVEL") == "" {
		if lvlErr := bootlog.SetLevel(cfg.LogLevel); lvlErr != nil {
			log.Warning("config log_level: ", lvlErr.Error())
		}
	}

	server, err := daemon.NewServer(cfg, log)
	if err != nil {
		PrintFatal(err.Error())
	}
	defer server.Close()

	_, err = server.Launch(daemon.LaunchSpec{
		Path: primaryPath,
		Args: c.StringSlice("primary-arg"),
		Env:  c.StringSlice("primary-env"),
		Role: daemon.RolePrimary,
	})
	if err != nil {
		//	PrintFatal exits before the deferred Close can run
		server.Close()
		PrintFatal(err.Error())
	}

	if secondaryPath := c.String("secondary"); secondaryPath != "" {
		if waitFor := c.String("wait-for"); waitFor != "" {
			server.AwaitService(waitFor, cfg.Barrier)
		}
		_, err = server.Launch(daemon.LaunchSpec{
			Path: secondaryPath,
			Args: c.StringSlice("secondary-arg"),
			Env:  c.StringSlice("secondary-env"),
			Role: daemon.RoleSecondary,
		})
		if err != nil {
			//	the primary keeps running without its companion
			log.Error("secondary launch: ", err.Error())
			err = nil
		}
	}

	err = server.Run()
	if err != nil {
		log.Error("dispatch loop: ", err.Error())
		err = nil
	}
	log.Notice("bootstrapd shut down")
	return
}
