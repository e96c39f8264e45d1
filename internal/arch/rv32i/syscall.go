package rv32i

import (
	"bufio"
	"io"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrosim/internal/platform"
	"github.com/retroenv/retrosim/internal/state"
)

// Linux system call numbers handled by the syscall module.
const (
	sysWrite = 64
	sysExit  = 93

	errNoSys = 0xFFFFFFDA // -ENOSYS

	// maxWrite limits the bytes of one write call, larger requests return
	// a short count like a pipe would.
	maxWrite = 0x10000
)

var _ platform.Module = (*Syscall)(nil)

// Syscall is the platform module that handles environment calls. Console
// output is buffered in the module context and flushed on exit or when the
// platform is destroyed.
type Syscall struct {
	logger *log.Logger
	output io.Writer

	console *bufio.Writer
	exited  bool
	status  int32
}

func newSyscall(logger *log.Logger, output io.Writer) *Syscall {
	return &Syscall{
		logger: logger,
		output: output,
	}
}

// Name returns the module name.
func (m *Syscall) Name() string {
	return "syscall"
}

// Init resets the exit status and opens the console.
func (m *Syscall) Init(*platform.Platform) error {
	m.console = bufio.NewWriter(m.output)
	m.exited = false
	m.status = 0
	return nil
}

// Destroy flushes the console.
func (m *Syscall) Destroy(*platform.Platform) {
	if m.console == nil {
		return
	}
	if err := m.console.Flush(); err != nil {
		m.logger.Error("Flushing console output failed", log.Err(err))
	}
	m.console = nil
}

// Exited returns the exit status of the program and whether it exited.
func (m *Syscall) Exited() (int32, bool) {
	return m.status, m.exited
}

// call dispatches the system call selected by a7. Arguments are passed in
// a0 to a2 and the result is returned in a0.
func (m *Syscall) call(s *state.State) {
	number := x(s, A7)

	switch number {
	case sysWrite:
		length := min(x(s, A2), maxWrite)
		buf := make([]byte, length)
		s.Memory(memoryRegion).ReadBytes(x(s, A1), buf)
		n, err := m.console.Write(buf)
		if err != nil {
			m.logger.Error("Writing console output failed", log.Err(err))
		}
		setX(s, A0, uint32(n))

	case sysExit:
		m.exited = true
		m.status = int32(x(s, A0))
		if err := m.console.Flush(); err != nil {
			m.logger.Error("Flushing console output failed", log.Err(err))
		}
		s.SetPC(s.Platform().SysEnv().HaltAddress)
		return

	default:
		m.logger.Warn("Unsupported system call", log.Hex("pc", s.PC()), log.Int("number", int(number)))
		setX(s, A0, errNoSys)
	}

	s.SetPC(s.PC() + 4)
}
