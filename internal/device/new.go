package device

import (
	"context"
	"fmt"
	"mibridge/internal/global"
	"mibridge/internal/logctx"
	"net"
	"strconv"
)

// Validates configuration and resolves the device address. No packets are sent.
func New(ctx context.Context, cfg Config) (session *Session, err error) {
	err = cfg.Token.Validate()
	if err != nil {
		return
	}

	if cfg.Port == 0 {
		cfg.Port = global.DevicePort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = global.DefaultTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}

	address, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port)))
	if err != nil {
		err = fmt.Errorf("failed to resolve device address %q: %w", cfg.Address, err)
		return
	}

	session = &Session{
		address: address,
		key:     address.String(),
		token:   cfg.Token,
		timeout: cfg.Timeout,
		retries: cfg.Retries,
		state:   Unidentified,
		ids:     cfg.IDs,
	}

	if session.ids != nil {
		id, found, lerr := session.ids.LoadRequestID(ctx, session.key)
		if lerr != nil {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
				"failed to load last request id for %s: %v\n", session.key, lerr)
		} else if found {
			session.lastID = id
		}
	}
	return
}

// Releases the socket and persists the request id counter
func (session *Session) Close(ctx context.Context) (err error) {
	session.mutex.Lock()
	defer session.mutex.Unlock()

	if session.ids != nil {
		err = session.ids.SaveRequestID(ctx, session.key, session.lastID)
		if err != nil {
			err = fmt.Errorf("failed to save request id: %w", err)
		}
	}

	if session.conn != nil {
		cerr := session.conn.Close()
		session.conn = nil
		if err == nil && cerr != nil {
			err = fmt.Errorf("failed to close socket: %w", cerr)
		}
	}
	session.state = Unidentified
	return
}

func (session *Session) Address() string {
	return session.address.IP.String()
}

func (session *Session) State() State {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	return session.state
}

// Identity is only available once a handshake succeeded
func (session *Session) Identity() (identity Identity, ok bool) {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	if session.state != Identified {
		return
	}
	identity, ok = session.identity, true
	return
}

// Opens the connected socket on first use
func (session *Session) ensureConn() (err error) {
	if session.conn != nil {
		return
	}
	session.conn, err = net.DialUDP("udp4", nil, session.address)
	if err != nil {
		err = fmt.Errorf("failed to open socket to %s: %w", session.address, err)
	}
	return
}

// Advances the request id, wrapping to 1 after the maximum
func (session *Session) nextID(jump int) (id int) {
	session.lastID += jump
	for session.lastID > global.MaxRequestID {
		session.lastID -= global.MaxRequestID
	}
	if session.lastID < 1 {
		session.lastID = 1
	}
	id = session.lastID
	return
}
