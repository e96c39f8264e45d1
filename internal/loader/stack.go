package loader

import (
	"errors"
	"fmt"

	"github.com/retroenv/retrosim/internal/platform"
)

const stackAlignment = 16

// buildStack writes the program arguments and environment to the top of
// stack slot 0 in the layout of the System V process entry:
//
//	sp+0            argc
//	sp+4            argv[0] .. argv[argc-1], 0
//	after argv      envp[0] .. envp[n-1], 0
//	top of slot     argument and environment strings
func buildStack(p *platform.Platform, env *platform.SysEnv) error {
	mem := p.StackMemory()
	low, top, ok := p.StackSlot(0)
	if mem == nil || !ok {
		return errors.New("platform has no stack")
	}

	sp := top
	pointers := make([]uint32, 0, len(env.Argv)+len(env.Envp))
	for _, s := range append(append([]string{}, env.Argv...), env.Envp...) {
		sp -= uint32(len(s) + 1)
		if sp < low || sp > top {
			return fmt.Errorf("program arguments exceed the stack size of 0x%X bytes", top-low)
		}
		mem.WriteBytes(sp, append([]byte(s), 0))
		pointers = append(pointers, sp)
	}
	argv := pointers[:len(env.Argv)]
	envp := pointers[len(env.Argv):]

	words := uint32(1 + len(argv) + 1 + len(envp) + 1)
	sp = (sp - 4*words) &^ (stackAlignment - 1)
	if sp < low || sp > top {
		return fmt.Errorf("program arguments exceed the stack size of 0x%X bytes", top-low)
	}

	mem.Write32(sp, uint32(len(argv)))
	address := sp + 4
	env.ArgvAddress = address
	for _, pointer := range argv {
		mem.Write32(address, pointer)
		address += 4
	}
	mem.Write32(address, 0)
	address += 4

	env.EnvpAddress = address
	for _, pointer := range envp {
		mem.Write32(address, pointer)
		address += 4
	}
	mem.Write32(address, 0)

	env.StackPointer = sp
	return nil
}
