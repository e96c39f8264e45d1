package loader

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrosim/internal/platform"
)

// elfImage is a 32 bit little endian ELF executable.
type elfImage struct {
	logger *log.Logger
	file   *elf.File
	region int
}

func openELF(logger *log.Logger, path string, region int) (*elfImage, error) {
	file, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("parsing ELF file %s: %w", path, err)
	}

	switch {
	case file.Class != elf.ELFCLASS32:
		err = fmt.Errorf("unsupported ELF class %s", file.Class)
	case file.Data != elf.ELFDATA2LSB:
		err = fmt.Errorf("unsupported ELF byte order %s", file.Data)
	case file.Type != elf.ET_EXEC:
		err = fmt.Errorf("unsupported ELF file type %s", file.Type)
	}
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	return &elfImage{
		logger: logger,
		file:   file,
		region: region,
	}, nil
}

// Load copies every loadable segment to its virtual address and zero fills
// the part of the segment that is not backed by the file.
func (i *elfImage) Load(p *platform.Platform) error {
	mem := p.Memory(i.region)
	if mem == nil {
		return fmt.Errorf("memory region %d does not exist", i.region)
	}

	var segments int
	for _, prog := range i.file.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if prog.Filesz > prog.Memsz {
			return fmt.Errorf("segment at 0x%08X has file size 0x%X larger than memory size 0x%X",
				prog.Vaddr, prog.Filesz, prog.Memsz)
		}

		data := make([]byte, prog.Filesz)
		if _, err := io.ReadFull(prog.Open(), data); err != nil {
			return fmt.Errorf("reading segment at 0x%08X: %w", prog.Vaddr, err)
		}

		address := uint32(prog.Vaddr)
		mem.WriteBytes(address, data)
		if prog.Memsz > prog.Filesz {
			mem.Fill(address+uint32(prog.Filesz), uint32(prog.Memsz-prog.Filesz), 0)
		}
		segments++

		i.logger.Debug("Loaded segment",
			log.Hex("address", address),
			log.Int("file_size", int(prog.Filesz)),
			log.Int("memory_size", int(prog.Memsz)))
	}

	if segments == 0 {
		return errors.New("ELF file has no loadable segment")
	}
	return nil
}

// Entry returns the entry address of the ELF header.
func (i *elfImage) Entry() uint32 {
	return uint32(i.file.Entry)
}

// FillEnv builds the initial program stack.
func (i *elfImage) FillEnv(p *platform.Platform, env *platform.SysEnv) error {
	return buildStack(p, env)
}

// Close closes the ELF file.
func (i *elfImage) Close() error {
	if err := i.file.Close(); err != nil {
		return fmt.Errorf("closing ELF file: %w", err)
	}
	return nil
}
