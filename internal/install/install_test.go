package install

import (
	"mibridge/internal/bridge"
	"mibridge/internal/global"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCreateTemplateConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mibridge.json")

	err := CreateTemplateConfig(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stat, err := os.Stat(path)
	if err != nil {
		t.Fatalf("template not written: %v", err)
	}
	if stat.Mode().Perm() != 0600 {
		t.Fatalf("expected mode 0600, got %v", stat.Mode().Perm())
	}

	jsonCfg, err := bridge.LoadConfig(path)
	if err != nil {
		t.Fatalf("template does not load: %v", err)
	}
	if len(jsonCfg.Server.Token) != 32 {
		t.Fatalf("expected generated server token, got %q", jsonCfg.Server.Token)
	}

	_, err = bridge.NewDaemonConf(jsonCfg)
	if err != nil {
		t.Fatalf("template is not a valid daemon config: %v", err)
	}
}

func TestCreateTemplateConfigDevices(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mibridge.json")
	devices := []global.DeviceConf{
		{Address: "10.0.0.5", Token: "ffeeddccbbaa99887766554433221100"},
	}

	err := CreateTemplateConfig(path, devices)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	jsonCfg, err := bridge.LoadConfig(path)
	if err != nil {
		t.Fatalf("template does not load: %v", err)
	}
	if len(jsonCfg.Devices) != 1 || jsonCfg.Devices[0].Address != "10.0.0.5" {
		t.Fatalf("unexpected devices: %+v", jsonCfg.Devices)
	}
	if jsonCfg.Devices[0].Token != devices[0].Token {
		t.Fatalf("expected token %q, got %q", devices[0].Token, jsonCfg.Devices[0].Token)
	}
	if len(jsonCfg.Devices[0].Events) == 0 {
		t.Fatalf("expected sample events to be carried over")
	}
}

func TestCreateTemplateConfigRequiresPath(t *testing.T) {
	err := CreateTemplateConfig("", nil)
	if err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestRenderUnit(t *testing.T) {
	unit := renderUnit("/opt/mibridge", "/srv/bridge.json")

	if !strings.Contains(unit, "ExecStart=/opt/mibridge serve --config /srv/bridge.json\n") {
		t.Fatalf("paths not substituted:\n%s", unit)
	}
	if strings.Contains(unit, "$executableFilePath") || strings.Contains(unit, "$configFilePath") {
		t.Fatalf("placeholder left in unit:\n%s", unit)
	}
	if !strings.Contains(unit, "$MAINPID") {
		t.Fatalf("reload command should keep systemd variable:\n%s", unit)
	}
}
