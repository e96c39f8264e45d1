package loader

import (
	"errors"
	"fmt"
	"os"

	"github.com/retroenv/retrogolib/arch/system/nes/cartridge"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrosim/internal/platform"
)

// rawImage is a headerless binary that is loaded at a base address and
// entered at its first byte.
type rawImage struct {
	logger *log.Logger
	data   []byte
	base   uint32
	region int
}

func openRaw(logger *log.Logger, path string, base uint32, region int) (*rawImage, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("reading file info %s: %w", path, err)
	}
	size := int(info.Size())
	if size == 0 {
		return nil, errors.New("image is empty")
	}

	// the buffer loader pads the image to a full bank, only the file
	// contents are copied to memory
	cart, err := cartridge.LoadBuffer(file)
	if err != nil {
		return nil, fmt.Errorf("loading buffer: %w", err)
	}
	if len(cart.PRG) < size {
		return nil, fmt.Errorf("read %d of %d image bytes", len(cart.PRG), size)
	}

	return &rawImage{
		logger: logger,
		data:   cart.PRG[:size],
		base:   base,
		region: region,
	}, nil
}

// Load copies the image to the base address.
func (i *rawImage) Load(p *platform.Platform) error {
	mem := p.Memory(i.region)
	if mem == nil {
		return fmt.Errorf("memory region %d does not exist", i.region)
	}
	mem.WriteBytes(i.base, i.data)

	i.logger.Debug("Loaded raw image",
		log.Hex("address", i.base),
		log.Int("size", len(i.data)))
	return nil
}

// Entry returns the base address.
func (i *rawImage) Entry() uint32 {
	return i.base
}

// FillEnv builds the initial program stack.
func (i *rawImage) FillEnv(p *platform.Platform, env *platform.SysEnv) error {
	return buildStack(p, env)
}

// Close releases the image data.
func (i *rawImage) Close() error {
	i.data = nil
	return nil
}
