package cli

import "mibridge/internal/global"

func DefineOptions() (cmdOpts *global.CommandSet) {
	// Root level
	root := &global.CommandSet{
		Description:     "miIO Bridge (mibridge)",
		FullDescription: "  Controls miIO devices over the local network and relays gateway events",
		CommandName:     RootCLICommand,
		ChildCommands:   make(map[string]*global.CommandSet),
	}

	// Single device commands
	root.ChildCommands["send"] = &global.CommandSet{
		CommandName:     "send",
		Description:     "Send Command",
		FullDescription: "Sends one method call to a device and prints the result member of its response",
		ChildCommands:   nil,
	}
	root.ChildCommands["props"] = &global.CommandSet{
		CommandName:     "props",
		Description:     "Read Properties",
		FullDescription: "Reads named properties from a device, splitting large lists into several requests",
		ChildCommands:   nil,
	}
	root.ChildCommands["info"] = &global.CommandSet{
		CommandName:     "info",
		Description:     "Show Device Information",
		FullDescription: "Queries miIO.info and prints model, firmware and network details",
		ChildCommands:   nil,
	}
	root.ChildCommands["discover"] = &global.CommandSet{
		CommandName:     "discover",
		Description:     "Discover Devices",
		FullDescription: "Broadcasts the hello probe and lists every device that answers before the timeout",
		ChildCommands:   nil,
	}

	// Daemon
	root.ChildCommands["serve"] = &global.CommandSet{
		CommandName:     "serve",
		Description:     "Run Push Server",
		FullDescription: "Impersonates a miIO device, subscribes to gateway events and forwards them to configured sinks",
		ChildCommands:   nil,
	}

	// Setup
	root.ChildCommands["configure"] = &global.CommandSet{
		CommandName:     "configure",
		Description:     "Setup Actions",
		FullDescription: "Create configuration templates and install or remove the bridge service",
		ChildCommands:   nil,
	}

	// Version Info
	root.ChildCommands["version"] = &global.CommandSet{
		CommandName:     "version",
		Description:     "Show Version Information",
		FullDescription: "Display meta information about program",
	}

	cmdOpts = root
	return
}
