package cli

import (
	"flag"
	"fmt"
	"mibridge/internal/crypto"
	"mibridge/internal/global"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

func SetGlobalArguments(fs *flag.FlagSet) {
	fs.IntVar(&global.Verbosity, "v", 1, "Increase detailed progress messages (Higher is more verbose) <0...5>")
	fs.IntVar(&global.Verbosity, "verbosity", 1, "Increase detailed progress messages (Higher is more verbose) <0...5>")
}

func SetCommon(fs *flag.FlagSet, configPath *string) {
	fs.StringVar(configPath, "c", global.DefaultConfigPath, "Path to the configuration file")
	fs.StringVar(configPath, "config", global.DefaultConfigPath, "Path to the configuration file")
}

// Arguments shared by every command that talks to a single device
type deviceArgs struct {
	address string
	port    int
	token   string
	timeout time.Duration
	retries int
}

func setDeviceArguments(fs *flag.FlagSet, args *deviceArgs) {
	fs.StringVar(&args.address, "ip", "", "Device IP address or hostname")
	fs.IntVar(&args.port, "port", global.DevicePort, "Device UDP port")
	fs.StringVar(&args.token, "token", "", "Device token (32 hex characters, prompted when omitted)")
	fs.DurationVar(&args.timeout, "timeout", global.DefaultTimeout, "Time to wait for each response")
	fs.IntVar(&args.retries, "retries", global.DefaultRetries, "Attempts after the first before giving up")
}

// Resolves the token flag, reading it without echo when running interactively
func (args *deviceArgs) resolveToken() (token crypto.Token, err error) {
	if args.address == "" {
		err = fmt.Errorf("device address is required")
		return
	}

	text := args.token
	if text == "" {
		text, err = promptSecret("Device token: ")
		if err != nil {
			return
		}
	}

	token, err = crypto.ParseToken(text)
	return
}

func promptSecret(prompt string) (secret string, err error) {
	stdinFD := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFD) {
		err = fmt.Errorf("token not provided and stdin is not a terminal")
		return
	}

	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(stdinFD)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		err = fmt.Errorf("failed to read token: %w", err)
		return
	}
	secret = strings.TrimSpace(string(raw))
	return
}

// Parses comma separated names, ignoring empty entries
func splitList(text string) (items []string) {
	for _, item := range strings.Split(text, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return
}
