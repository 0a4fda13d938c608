package main

import (
	"context"
	"flag"
	"fmt"
	"mibridge/internal/cli"
	"mibridge/internal/global"
	"mibridge/internal/logctx"
	"os"
	"runtime"
)

func main() {
	cliOpts := cli.DefineOptions()
	global.CmdOpts = cliOpts

	args := os.Args
	commandFlags := flag.NewFlagSet(args[0], flag.ExitOnError)
	cli.SetGlobalArguments(commandFlags)

	commandFlags.Usage = func() {
		cli.PrintHelpMenu(commandFlags, cli.RootCLICommand, cliOpts)
	}
	if len(args) < 2 {
		cli.PrintHelpMenu(commandFlags, cli.RootCLICommand, cliOpts)
		os.Exit(1)
	}
	commandFlags.Parse(args[1:])

	// Retrieve command and args
	command := args[1]
	args = args[2:]

	global.PID = os.Getpid()
	global.Hostname, _ = os.Hostname()

	// Setting global logging
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logctx.New(ctx, "global", global.Verbosity, ctx.Done()) // New logger tied to global
	logger := logctx.GetLogger(ctx)
	logctx.StartWatcher(logger, os.Stdout) // Send received output to stdout

	// Process commands
	switch command {
	case "send":
		cli.SendMode(ctx, command, args)
	case "props":
		cli.PropsMode(ctx, command, args)
	case "info":
		cli.InfoMode(ctx, command, args)
	case "discover":
		cli.DiscoverMode(ctx, command, args)
	case "serve":
		cli.ServeMode(ctx, command, args)
	case "configure":
		cli.SetupMode(cliOpts, command, args)
	case "version":
		if len(args) > 0 && (args[0] == "--verbosity" || args[0] == "-v") {
			fmt.Printf("mibridge %s\n", global.ProgVersion)
			fmt.Printf("Built using %s(%s) for %s on %s\n", runtime.Version(), runtime.Compiler, runtime.GOOS, runtime.GOARCH)
		} else {
			fmt.Println(global.ProgVersion)
		}
	default:
		cli.PrintHelpMenu(commandFlags, cli.RootCLICommand, cliOpts)
		os.Exit(1)
	}

	// Finish up any stdout writes for global logger
	cancel()
	logger.Wake()
	logger.Wait()
}
