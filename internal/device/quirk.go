package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mibridge/internal/global"
	"mibridge/internal/logctx"
	"slices"
)

// Code returned by fans and purifiers when set_mode is sent while off
const PoweredOffCode int = -5001

func DefaultPowerOnQuirk() (quirk PowerOnQuirk) {
	quirk = PowerOnQuirk{
		Code:        PoweredOffCode,
		Methods:     []string{"set_mode"},
		PowerMethod: "set_power",
		PowerParams: []string{"on"},
	}
	return
}

func (quirk PowerOnQuirk) applies(method string, err error) bool {
	var deviceErr *DeviceError
	if !errors.As(err, &deviceErr) {
		return false
	}
	return deviceErr.Code == quirk.Code && slices.Contains(quirk.Methods, method)
}

// Sends a command and, when the device reports it is powered off, powers it on and retries once
func (session *Session) SendWithPowerOn(ctx context.Context, method string, params any, quirk PowerOnQuirk) (result json.RawMessage, err error) {
	result, err = session.Send(ctx, method, params)
	if !quirk.applies(method, err) {
		return
	}

	ctx = logctx.WithPeer(logctx.AppendCtxTag(ctx, global.NSDevice), session.key)
	logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog,
		"%s is powered off, sending %s before retrying %s\n", session.address, quirk.PowerMethod, method)

	_, err = session.Send(ctx, quirk.PowerMethod, quirk.PowerParams)
	if err != nil {
		err = fmt.Errorf("failed to power on device: %w", err)
		return
	}

	result, err = session.Send(ctx, method, params)
	return
}
