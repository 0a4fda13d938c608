package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mibridge/internal/device"
	"mibridge/internal/global"
	"mibridge/internal/logctx"
	"os"
	"sort"
	"text/tabwriter"
	"time"
)

// Parses flags and opens a session for single device commands.
// Exits on any argument error.
func openSession(ctx context.Context, commandFlags *flag.FlagSet, devArgs *deviceArgs, args []string) (session *device.Session) {
	if len(args) < 1 {
		PrintHelpMenu(commandFlags, commandFlags.Name(), global.CmdOpts)
		os.Exit(1)
	}
	commandFlags.Parse(args[0:])
	logctx.SetLogLevel(ctx, global.Verbosity)

	token, err := devArgs.resolveToken()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	session, err = device.New(ctx, device.Config{
		Address: devArgs.address,
		Port:    devArgs.port,
		Token:   token,
		Timeout: devArgs.timeout,
		Retries: devArgs.retries,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return
}

func SendMode(ctx context.Context, commandname string, args []string) {
	var devArgs deviceArgs
	var method string
	var params string
	var powerOn bool

	commandFlags := flag.NewFlagSet(commandname, flag.ExitOnError)
	SetGlobalArguments(commandFlags)
	setDeviceArguments(commandFlags, &devArgs)
	commandFlags.StringVar(&method, "m", "", "Method to call (e.g. get_prop, miIO.info)")
	commandFlags.StringVar(&method, "method", "", "Method to call (e.g. get_prop, miIO.info)")
	commandFlags.StringVar(&params, "p", "", "Method parameters as JSON (e.g. '[\"power\"]')")
	commandFlags.StringVar(&params, "params", "", "Method parameters as JSON (e.g. '[\"power\"]')")
	commandFlags.BoolVar(&powerOn, "power-on", false, "Power the device on and repeat the command when it is rejected for being off")

	commandFlags.Usage = func() {
		PrintHelpMenu(commandFlags, commandname, global.CmdOpts)
	}
	session := openSession(ctx, commandFlags, &devArgs, args)
	defer session.Close(ctx)

	if method == "" {
		fmt.Fprintf(os.Stderr, "Error: method is required\n")
		os.Exit(1)
	}

	var commandParams any
	if params != "" {
		if !json.Valid([]byte(params)) {
			fmt.Fprintf(os.Stderr, "Error: params are not valid JSON: %s\n", params)
			os.Exit(1)
		}
		commandParams = json.RawMessage(params)
	}

	var result json.RawMessage
	var err error
	if powerOn {
		result, err = session.SendWithPowerOn(ctx, method, commandParams, device.DefaultPowerOnQuirk())
	} else {
		result, err = session.Send(ctx, method, commandParams)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	err = printJSON(os.Stdout, result)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func PropsMode(ctx context.Context, commandname string, args []string) {
	var devArgs deviceArgs
	var names string
	var maxPerRequest int

	commandFlags := flag.NewFlagSet(commandname, flag.ExitOnError)
	SetGlobalArguments(commandFlags)
	setDeviceArguments(commandFlags, &devArgs)
	commandFlags.StringVar(&names, "n", "", "Comma separated property names")
	commandFlags.StringVar(&names, "names", "", "Comma separated property names")
	commandFlags.IntVar(&maxPerRequest, "max", global.DefaultMaxProps, "Properties requested per command")

	commandFlags.Usage = func() {
		PrintHelpMenu(commandFlags, commandname, global.CmdOpts)
	}
	session := openSession(ctx, commandFlags, &devArgs, args)
	defer session.Close(ctx)

	propNames := splitList(names)
	if len(propNames) == 0 {
		fmt.Fprintf(os.Stderr, "Error: at least one property name is required\n")
		os.Exit(1)
	}

	values, err := session.GetProperties(ctx, propNames, maxPerRequest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	writeProperties(os.Stdout, propNames, values)
}

func InfoMode(ctx context.Context, commandname string, args []string) {
	var devArgs deviceArgs
	var raw bool

	commandFlags := flag.NewFlagSet(commandname, flag.ExitOnError)
	SetGlobalArguments(commandFlags)
	setDeviceArguments(commandFlags, &devArgs)
	commandFlags.BoolVar(&raw, "raw", false, "Print the full miIO.info reply as JSON")

	commandFlags.Usage = func() {
		PrintHelpMenu(commandFlags, commandname, global.CmdOpts)
	}
	session := openSession(ctx, commandFlags, &devArgs, args)
	defer session.Close(ctx)

	info, err := session.Info(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if raw {
		var encoded []byte
		encoded, err = json.Marshal(info.Raw)
		if err == nil {
			err = printJSON(os.Stdout, encoded)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	identity, _ := session.Identity()
	writeInfo(os.Stdout, identity.DeviceID, info)
}

func DiscoverMode(ctx context.Context, commandname string, args []string) {
	var target string
	var timeout time.Duration

	commandFlags := flag.NewFlagSet(commandname, flag.ExitOnError)
	SetGlobalArguments(commandFlags)
	commandFlags.StringVar(&target, "a", global.BroadcastAddress, "Broadcast or unicast address to probe")
	commandFlags.StringVar(&target, "addr", global.BroadcastAddress, "Broadcast or unicast address to probe")
	commandFlags.DurationVar(&timeout, "timeout", global.DiscoveryTimeout, "Time to collect answers")

	commandFlags.Usage = func() {
		PrintHelpMenu(commandFlags, commandname, global.CmdOpts)
	}
	commandFlags.Parse(args[0:])
	logctx.SetLogLevel(ctx, global.Verbosity)

	found, err := device.Discover(ctx, target, timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	writeDiscovered(os.Stdout, found)
}

func printJSON(output io.Writer, raw json.RawMessage) (err error) {
	if len(raw) == 0 {
		fmt.Fprintln(output, "null")
		return
	}

	var indented bytes.Buffer
	err = json.Indent(&indented, raw, "", "  ")
	if err != nil {
		err = fmt.Errorf("device returned malformed JSON %q: %w", raw, err)
		return
	}
	indented.WriteByte('\n')
	_, err = indented.WriteTo(output)
	return
}

func writeProperties(output io.Writer, names []string, values []json.RawMessage) {
	table := tabwriter.NewWriter(output, 0, 0, 2, ' ', 0)
	for i, name := range names {
		value := "<missing>"
		if i < len(values) {
			value = string(values[i])
		}
		fmt.Fprintf(table, "%s\t%s\n", name, value)
	}
	// Devices occasionally reply with more values than requested
	for i := len(names); i < len(values); i++ {
		fmt.Fprintf(table, "#%d\t%s\n", i, values[i])
	}
	table.Flush()
}

func writeInfo(output io.Writer, deviceID uint32, info device.Info) {
	table := tabwriter.NewWriter(output, 0, 0, 2, ' ', 0)
	fmt.Fprintf(table, "Device ID:\t%d\n", deviceID)
	fmt.Fprintf(table, "Model:\t%s\n", info.Model)
	fmt.Fprintf(table, "Firmware:\t%s\n", info.FirmwareVersion)
	fmt.Fprintf(table, "Hardware:\t%s\n", info.HardwareVersion)
	fmt.Fprintf(table, "MAC:\t%s\n", info.MAC)

	if ssid, ok := info.AccessPoint["ssid"]; ok {
		fmt.Fprintf(table, "Network:\t%v\n", ssid)
	}
	if localIP, ok := info.NetIF["localIp"]; ok {
		fmt.Fprintf(table, "Address:\t%v\n", localIP)
	}
	table.Flush()
}

func writeDiscovered(output io.Writer, found []device.Discovered) {
	if len(found) == 0 {
		fmt.Fprintln(output, "No devices answered")
		return
	}

	sort.Slice(found, func(a, b int) bool {
		return found[a].Address < found[b].Address
	})

	table := tabwriter.NewWriter(output, 0, 0, 2, ' ', 0)
	fmt.Fprintf(table, "ADDRESS\tDEVICE ID\tSTAMP\tTOKEN\n")
	for _, entry := range found {
		token := "-"
		if len(entry.Token) > 0 {
			token = entry.Token.String()
		}
		fmt.Fprintf(table, "%s\t%d\t%d\t%s\n", entry.Address, entry.DeviceID, entry.Stamp, token)
	}
	table.Flush()
}
