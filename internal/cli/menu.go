package cli

import (
	"flag"
	"fmt"
	"io"
	"maps"
	"mibridge/internal/global"
	"os"
	"slices"
	"strings"
)

const (
	RootCLICommand  string = "root"
	helpMenuTrailer string = `
Device tokens may be given with -token or typed at the prompt (input is not echoed).
Events from subscribed gateways are delivered to the sinks named in the configuration file.
`
)

const (
	baseIndentSpaces   int    = 2
	shortArgPrefix     string = "-"  // like "  [-]t, --test  Some usage text"
	shortLongArgJoiner string = ", " // like "  -t[, ]--test  Some usage text"
	longArgPrefix      string = "--" // like "  -t, [--]test  Some usage text"
	argToUsageSpaces   int    = 2    // like "  -t, --test[  ]Some usage text"
)

// Full standardized help menu (wraps option printer as well)
func PrintHelpMenu(fs *flag.FlagSet, command string, rootCmd *global.CommandSet) {
	writeHelpMenu(os.Stdout, fs, command, rootCmd)
}

// Locates command at the first or second level, returning the chain of parents
func findCommand(rootCmd *global.CommandSet, command string) (found *global.CommandSet, parents []*global.CommandSet) {
	if command == "" || command == RootCLICommand {
		found = rootCmd
		return
	}
	if cmd, ok := rootCmd.ChildCommands[command]; ok {
		found = cmd
		parents = []*global.CommandSet{rootCmd}
		return
	}
	for _, topName := range slices.Sorted(maps.Keys(rootCmd.ChildCommands)) {
		topCmd := rootCmd.ChildCommands[topName]
		if sub, ok := topCmd.ChildCommands[command]; ok {
			found = sub
			parents = []*global.CommandSet{rootCmd, topCmd}
			return
		}
	}
	return
}

func writeHelpMenu(output io.Writer, fs *flag.FlagSet, command string, rootCmd *global.CommandSet) {
	curCmdSet, parents := findCommand(rootCmd, command)
	if curCmdSet == nil {
		fmt.Fprintf(output, "Unknown command: %s\n", command)
		return
	}

	// Usage line never includes the root name
	usageParts := []string{os.Args[0]}
	for _, parent := range append(parents, curCmdSet) {
		if parent.CommandName != RootCLICommand {
			usageParts = append(usageParts, parent.CommandName)
		}
	}
	switch len(curCmdSet.ChildCommands) {
	case 0:
	case 1:
		usageParts = slices.AppendSeq(usageParts, maps.Keys(curCmdSet.ChildCommands))
	default:
		usageParts = append(usageParts, "[subcommand]")
	}
	if curCmdSet.UsageOption != "" {
		usageParts = append(usageParts, curCmdSet.UsageOption)
	}
	fmt.Fprintf(output, "Usage: %s\n\n", strings.Join(usageParts, " "))

	// Description
	if curCmdSet == rootCmd {
		fmt.Fprintln(output, curCmdSet.Description)
		fmt.Fprintln(output, curCmdSet.FullDescription)
		fmt.Fprintln(output)
	} else if curCmdSet.FullDescription != "" {
		fmt.Fprintln(output, "  Description:")
		fmt.Fprintf(output, "    %s\n\n", curCmdSet.FullDescription)
	}

	// Subcommands, padded to the longest name
	if len(curCmdSet.ChildCommands) > 0 {
		fmt.Fprintf(output, "%sSubcommands:\n", strings.Repeat(" ", baseIndentSpaces))

		subNames := slices.Sorted(maps.Keys(curCmdSet.ChildCommands))
		maxLen := 0
		for _, name := range subNames {
			maxLen = max(maxLen, len(name))
		}

		cmdIndent := strings.Repeat(" ", baseIndentSpaces+2)
		for _, name := range subNames {
			padding := strings.Repeat(" ", maxLen-len(name)+2)
			fmt.Fprintf(output, "%s%s%s - %s\n", cmdIndent, name, padding, curCmdSet.ChildCommands[name].Description)
		}
		fmt.Fprintln(output)
	}

	writeFlagOptions(output, fs)

	if curCmdSet == rootCmd {
		fmt.Fprint(output, helpMenuTrailer)
	}
}

// One printed option line, aliases sharing a usage text are merged
type optInfo struct {
	names      []string
	usage      string
	defaultVal string
	hasShort   bool
}

// Groups flags by usage text so "-c" and "--config" print on one line
func collectOptions(fs *flag.FlagSet) (opts []*optInfo) {
	byUsage := make(map[string]*optInfo)
	fs.VisitAll(func(arg *flag.Flag) {
		opt, seen := byUsage[arg.Usage]
		if !seen {
			opt = &optInfo{usage: arg.Usage, defaultVal: arg.DefValue}
			byUsage[arg.Usage] = opt
			opts = append(opts, opt)
		}
		if len(arg.Name) == 1 {
			opt.names = append(opt.names, shortArgPrefix+arg.Name)
			opt.hasShort = true
		} else {
			opt.names = append(opt.names, longArgPrefix+arg.Name)
		}
	})

	// Short names first, then options alphabetically by first name
	for _, opt := range opts {
		slices.SortStableFunc(opt.names, func(a, b string) int {
			return len(a) - len(b)
		})
	}
	slices.SortFunc(opts, func(a, b *optInfo) int {
		return strings.Compare(strings.ToLower(a.names[0]), strings.ToLower(b.names[0]))
	})
	return
}

// Custom printer to deduplicate short/long usages and indent automatically
func writeFlagOptions(output io.Writer, fs *flag.FlagSet) {
	opts := collectOptions(fs)

	// Long-only options are indented past the short name column
	longOnlyOffset := len(shortLongArgJoiner) + len(shortArgPrefix) + 1

	width := func(opt *optInfo) (columns int) {
		columns = len(strings.Join(opt.names, shortLongArgJoiner))
		if !opt.hasShort {
			columns += longOnlyOffset
		}
		return
	}

	maxLen := 0
	for _, opt := range opts {
		maxLen = max(maxLen, width(opt))
	}

	fmt.Fprintf(output, "%sOptions:\n", strings.Repeat(" ", baseIndentSpaces))
	for _, opt := range opts {
		indentSpaces := baseIndentSpaces
		if !opt.hasShort {
			indentSpaces += longOnlyOffset
		}
		paddingSpaces := max(maxLen-width(opt)+argToUsageSpaces, argToUsageSpaces)

		// Skip printing any "empty" defaults
		desc := opt.usage
		if opt.defaultVal != "" && opt.defaultVal != "false" && opt.defaultVal != "0" {
			desc += fmt.Sprintf(" [default: %s]", opt.defaultVal)
		}

		fmt.Fprintf(output, "%s%s%s%s\n",
			strings.Repeat(" ", indentSpaces),
			strings.Join(opt.names, shortLongArgJoiner),
			strings.Repeat(" ", paddingSpaces),
			desc)
	}
}
