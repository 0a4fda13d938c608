package cli

import (
	"context"
	"flag"
	"fmt"
	"mibridge/internal/bridge"
	"mibridge/internal/global"
	"mibridge/internal/lifecycle"
	"mibridge/internal/logctx"
	"os"
)

func ServeMode(ctx context.Context, commandname string, args []string) {
	var configPath string
	commandFlags := flag.NewFlagSet(commandname, flag.ExitOnError)
	SetGlobalArguments(commandFlags)
	SetCommon(commandFlags, &configPath)

	commandFlags.Usage = func() {
		PrintHelpMenu(commandFlags, commandname, global.CmdOpts)
	}
	commandFlags.Parse(args[0:])

	jsonCfg, err := bridge.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Command line verbosity wins over the configured level
	if !verbositySet(commandFlags) && jsonCfg.Logging.Level > 0 {
		global.Verbosity = jsonCfg.Logging.Level
	}
	logctx.SetLogLevel(ctx, global.Verbosity)

	daemonConfig, err := bridge.NewDaemonConf(jsonCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	daemonConfig.ConfigPath = configPath

	bridgeDaemon := bridge.NewDaemon(daemonConfig)
	err = bridgeDaemon.Start(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting bridge daemon: %v\n", err)
		os.Exit(1)
	}

	err = lifecycle.NotifyReady(ctx)
	if err != nil {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog, "Systemd notify ready failed: %v\n", err)
	}

	go lifecycle.SignalHandler(ctx, bridgeDaemon)
	bridgeDaemon.Run()
}

func verbositySet(fs *flag.FlagSet) (set bool) {
	fs.Visit(func(arg *flag.Flag) {
		if arg.Name == "v" || arg.Name == "verbosity" {
			set = true
		}
	})
	return
}
