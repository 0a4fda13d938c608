// Kernel side pre-filter dropping datagrams that do not start with the miIO magic
package ebpf

import (
	"fmt"
	"mibridge/pkg/protocol"
	"net"
	"os"
	"runtime"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/asm"
	"github.com/cilium/ebpf/link"
	"golang.org/x/sys/unix"
)

// Socket filter program: keep the packet when the first payload half-word is the magic
func Instructions() (insns asm.Instructions) {
	insns = asm.Instructions{
		// Packet loads read the context from R6
		asm.Mov.Reg(asm.R6, asm.R1),
		asm.LoadAbs(udpHeaderLen, asm.Half),
		asm.JNE.Imm(asm.R0, int32(protocol.Magic), dropLabel),
		asm.Mov.Imm(asm.R0, keepPacket),
		asm.Return(),
		asm.Mov.Imm(asm.R0, dropPacket).WithSymbol(dropLabel),
		asm.Return(),
	}
	return
}

// Attached filter, detach before closing the socket
type Filter struct {
	conn    *net.UDPConn
	program *ebpf.Program
}

// Loads the filter and attaches it to conn.
// Returns a nil filter without error where unsupported (non-linux, unprivileged).
func Attach(conn *net.UDPConn) (filter *Filter, err error) {
	if runtime.GOOS != "linux" || os.Geteuid() != 0 {
		return
	}

	err = unix.Setrlimit(unix.RLIMIT_MEMLOCK, &unix.Rlimit{
		Cur: unix.RLIM_INFINITY,
		Max: unix.RLIM_INFINITY,
	})
	if err != nil {
		err = fmt.Errorf("set resource limit: %w", err)
		return
	}

	program, err := ebpf.NewProgram(&ebpf.ProgramSpec{
		Name:         FilterName,
		Type:         ebpf.SocketFilter,
		License:      "MIT",
		Instructions: Instructions(),
	})
	if err != nil {
		err = fmt.Errorf("load socket filter: %w", err)
		return
	}

	err = link.AttachSocketFilter(conn, program)
	if err != nil {
		program.Close()
		err = fmt.Errorf("attach socket filter: %w", err)
		return
	}

	filter = &Filter{conn: conn, program: program}
	return
}

// Removes the filter from the socket and releases the program
func (filter *Filter) Detach() (err error) {
	if filter == nil {
		return
	}
	err = link.DetachSocketFilter(filter.conn)
	if err != nil {
		err = fmt.Errorf("detach socket filter: %w", err)
	}
	closeErr := filter.program.Close()
	if err == nil && closeErr != nil {
		err = fmt.Errorf("close socket filter: %w", closeErr)
	}
	return
}
