package cli

import (
	"flag"
	"fmt"
	"mibridge/internal/crypto"
	"mibridge/internal/global"
	"mibridge/internal/install"
	"os"
)

// Setup/installation options
func SetupMode(cliOpts *global.CommandSet, commandname string, args []string) {
	var installService bool
	var uninstallService bool
	var templateConfPath string
	var devArgs deviceArgs

	commandFlags := flag.NewFlagSet(commandname, flag.ExitOnError)
	commandFlags.BoolVar(&installService, "install", false, "Install/Upgrade the bridge service")
	commandFlags.BoolVar(&uninstallService, "uninstall", false, "Remove the bridge service")
	commandFlags.StringVar(&templateConfPath, "t", "", "Write a template config file to this path")
	commandFlags.StringVar(&templateConfPath, "template", "", "Write a template config file to this path")
	commandFlags.StringVar(&devArgs.address, "ip", "", "Gateway address to place in the template (token is prompted when omitted)")
	commandFlags.StringVar(&devArgs.token, "token", "", "Gateway token to place in the template")

	commandFlags.Usage = func() {
		PrintHelpMenu(commandFlags, commandname, cliOpts)
	}
	if len(args) < 1 {
		PrintHelpMenu(commandFlags, commandname, cliOpts)
		os.Exit(1)
	}
	commandFlags.Parse(args[0:])

	var err error

	if templateConfPath != "" {
		var devices []global.DeviceConf
		if devArgs.address != "" {
			var token crypto.Token
			token, err = devArgs.resolveToken()
			if err == nil {
				devices = append(devices, global.DeviceConf{
					Address: devArgs.address,
					Token:   token.String(),
				})
			}
		}
		if err == nil {
			err = install.CreateTemplateConfig(templateConfPath, devices)
		}
		if err == nil {
			fmt.Printf("Successfully wrote template configuration file to '%s'\n", templateConfPath)
		}
	} else if installService {
		install.Run()
	} else if uninstallService {
		install.Remove()
	} else {
		PrintHelpMenu(commandFlags, commandname, cliOpts)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
