package install

import (
	"encoding/json"
	"fmt"
	"mibridge/internal/bridge"
	"mibridge/internal/crypto"
	"mibridge/internal/crypto/random"
	"mibridge/internal/global"
	"os"
	"path/filepath"

	"golang.org/x/term"
)

func installConfig() (err error) {
	configFilePath := global.DefaultConfigPath

	err = os.MkdirAll(filepath.Dir(configFilePath), 0755)
	if err != nil {
		err = fmt.Errorf("failed to create configuration directory: %v", err)
		return
	}

	// Don't overwrite existing
	_, err = os.Stat(configFilePath)
	if err == nil {
		// No terminal - no overwrite
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Printf("Existing configuration file present, not overwriting\n")
			return
		}

		question := fmt.Sprintf("Configuration file already exists at '%s'. Are you SURE you want to overwrite it? (yes/no): ", configFilePath)
		if !confirm(question) {
			fmt.Printf("Not overwriting configuration file\n")
			return
		}
	}

	err = CreateTemplateConfig(configFilePath, nil)
	if err != nil {
		return
	}

	fmt.Printf("Successfully wrote template configuration file to '%s'\n", configFilePath)
	return
}

func uninstallConfig() (err error) {
	err = os.Remove(global.DefaultConfigPath)
	if err != nil && !os.IsNotExist(err) {
		return
	} else {
		err = nil
	}

	fmt.Printf("Successfully removed configuration file '%s'\n", global.DefaultConfigPath)
	return
}

// Writes a sample bridge configuration with a freshly generated server token.
// Devices replace the sample device entry when provided.
func CreateTemplateConfig(path string, devices []global.DeviceConf) (err error) {
	if path == "" {
		err = fmt.Errorf("specify template file path via the --config/-c arguments")
		return
	}

	newCfg := bridge.Template()
	if len(devices) > 0 {
		sampleEvents := newCfg.Devices[0].Events
		newCfg.Devices = devices
		for i := range newCfg.Devices {
			if len(newCfg.Devices[i].Events) == 0 {
				newCfg.Devices[i].Events = sampleEvents
			}
		}
	}

	var serverToken []byte
	err = random.PopulateEmptySlice(&serverToken, crypto.TokenSize)
	if err != nil {
		err = fmt.Errorf("failed to generate server token: %w", err)
		return
	}
	newCfg.Server.Token = crypto.Token(serverToken).String()

	confBytes, err := json.MarshalIndent(newCfg, "", "  ")
	if err != nil {
		err = fmt.Errorf("error marshaling new config: %v", err)
		return
	}
	confBytes = append(confBytes, []byte("\n")...)

	newConfFile, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return
	}
	defer newConfFile.Close()

	_, err = newConfFile.Write(confBytes)
	if err != nil {
		err = fmt.Errorf("failed to write config to file: %v", err)
		return
	}
	return
}
