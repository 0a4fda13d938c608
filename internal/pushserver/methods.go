package pushserver

import (
	"fmt"
	"mibridge/pkg/protocol"
)

// Constant result returned verbatim
func Value(result any) Method {
	return Method{value: result}
}

// Result computed from the command
func Func(fn MethodFunc) Method {
	return Method{fn: fn}
}

func (method Method) call(command protocol.RawCommand) (result any, err error) {
	if method.fn == nil {
		result = method.value
		return
	}
	result, err = method.fn(command)
	return
}

// Adds or replaces a method served to unregistered peers
func (server *Server) AddMethod(name string, method Method) {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	server.methods[name] = method
}

func (server *Server) RemoveMethod(name string) {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	delete(server.methods, name)
}

func (server *Server) addDefaultMethods() {
	server.methods["miIO.info"] = Func(func(command protocol.RawCommand) (result any, err error) {
		result = map[string]any{
			"model":  server.cfg.Model,
			"did":    fmt.Sprintf("%d", server.cfg.DeviceID),
			"fw_ver": "1.0.0",
			"hw_ver": "Linux",
			"life":   server.stamp(),
		}
		return
	})
}
