package install

import (
	"fmt"
	"mibridge/internal/global"
	"os"
	"path/filepath"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	systemdDest    string          = "org.freedesktop.systemd1"
	systemdPath    dbus.ObjectPath = "/org/freedesktop/systemd1"
	systemdManager string          = "org.freedesktop.systemd1.Manager"
)

const unitTemplate string = `[Unit]
Description=miIO Bridge
After=network-online.target
Wants=network-online.target

[Service]
Type=notify
NotifyAccess=main
ExecStart=$executableFilePath serve --config $configFilePath
ExecReload=/bin/kill -HUP $MAINPID
Restart=on-failure
RestartSec=5s
DynamicUser=yes
StateDirectory=mibridge
AmbientCapabilities=CAP_NET_BIND_SERVICE CAP_BPF
NoNewPrivileges=yes
ProtectSystem=strict
ProtectHome=yes

[Install]
WantedBy=multi-user.target
`

// Unit file text with install paths substituted
func renderUnit(binaryPath string, configPath string) (unitFile string) {
	unitFile = strings.Replace(unitTemplate, "$executableFilePath", binaryPath, 1)
	unitFile = strings.Replace(unitFile, "$configFilePath", configPath, 1)
	return
}

// Handle on the systemd manager over the system bus
type systemd struct {
	conn    *dbus.Conn
	manager dbus.BusObject
}

func connectSystemd() (sd *systemd, err error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		err = fmt.Errorf("failed to connect to system bus: %w", err)
		return
	}
	sd = &systemd{
		conn:    conn,
		manager: conn.Object(systemdDest, systemdPath),
	}
	return
}

func (sd *systemd) close() {
	sd.conn.Close()
}

func (sd *systemd) reload() (err error) {
	err = sd.manager.Call(systemdManager+".Reload", 0).Err
	if err != nil {
		err = fmt.Errorf("failed to reload systemd units: %w", err)
	}
	return
}

// Missing units report "not-found" rather than an error
func (sd *systemd) unitFileState(unitName string) (state string, err error) {
	err = sd.manager.Call(systemdManager+".GetUnitFileState", 0, unitName).Store(&state)
	if err != nil {
		if strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "No such file") {
			state = "not-found"
			err = nil
			return
		}
		err = fmt.Errorf("failed to check systemd service enablement status: %w", err)
	}
	return
}

func (sd *systemd) enable(unitName string) (err error) {
	var carriesInstallInfo bool
	var changes [][]interface{}
	err = sd.manager.Call(systemdManager+".EnableUnitFiles", 0, []string{unitName}, false, true).Store(&carriesInstallInfo, &changes)
	if err != nil {
		err = fmt.Errorf("failed to enable systemd service: %w", err)
	}
	return
}

func (sd *systemd) disable(unitName string) (err error) {
	var changes [][]interface{}
	err = sd.manager.Call(systemdManager+".DisableUnitFiles", 0, []string{unitName}, false).Store(&changes)
	if err != nil {
		err = fmt.Errorf("failed to disable systemd service: %w", err)
	}
	return
}

func (sd *systemd) activeState(unitName string) (state string, err error) {
	var unitPath dbus.ObjectPath
	err = sd.manager.Call(systemdManager+".LoadUnit", 0, unitName).Store(&unitPath)
	if err != nil {
		err = fmt.Errorf("failed to load systemd unit: %w", err)
		return
	}

	variant, err := sd.conn.Object(systemdDest, unitPath).GetProperty("org.freedesktop.systemd1.Unit.ActiveState")
	if err != nil {
		err = fmt.Errorf("failed to check systemd service status: %w", err)
		return
	}
	state, _ = variant.Value().(string)
	return
}

func (sd *systemd) stop(unitName string) (err error) {
	var job dbus.ObjectPath
	err = sd.manager.Call(systemdManager+".StopUnit", 0, unitName, "replace").Store(&job)
	if err != nil {
		err = fmt.Errorf("failed to stop systemd service: %w", err)
	}
	return
}

func installService() (err error) {
	unitFilePath := global.DefaultUnitPath
	unitName := filepath.Base(unitFilePath)

	unitFile := renderUnit(global.DefaultBinaryPath, global.DefaultConfigPath)
	err = os.WriteFile(unitFilePath, []byte(unitFile), 0644)
	if err != nil {
		return
	}

	sd, err := connectSystemd()
	if err != nil {
		return
	}
	defer sd.close()

	// Reload for new unit file
	err = sd.reload()
	if err != nil {
		return
	}

	state, err := sd.unitFileState(unitName)
	if err != nil {
		return
	}
	if state != "enabled" {
		err = sd.enable(unitName)
		if err != nil {
			return
		}
	}

	fmt.Printf("Successfully installed Systemd service\n")
	fmt.Printf("  IMPORTANT: add device tokens to the configuration and start the service with 'systemctl start %s'\n", unitName)
	return
}

func uninstallService() (err error) {
	unitFilePath := global.DefaultUnitPath
	unitName := filepath.Base(unitFilePath)

	sd, err := connectSystemd()
	if err != nil {
		return
	}
	defer sd.close()

	state, err := sd.unitFileState(unitName)
	if err != nil {
		return
	}
	if state == "not-found" {
		fmt.Printf("Systemd service not installed\n")
		return
	}
	if state == "enabled" {
		err = sd.disable(unitName)
		if err != nil {
			return
		}
	}

	active, err := sd.activeState(unitName)
	if err != nil {
		return
	}
	if active == "active" || active == "activating" || active == "reloading" {
		err = sd.stop(unitName)
		if err != nil {
			return
		}
	}

	err = os.Remove(unitFilePath)
	if err != nil && !os.IsNotExist(err) {
		return
	}

	// Reload for removed unit file
	err = sd.reload()
	if err != nil {
		return
	}

	fmt.Printf("Successfully uninstalled systemd service\n")
	return
}
