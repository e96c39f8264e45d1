// Package memory provides the addressable byte stores that back a simulated platform.
//
// A Region is sparse: pages are allocated on first write and unwritten
// addresses read as zero. Regions are shared by reference between every
// state derived from one platform and are never reallocated while alive.
package memory

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Page geometry of a region.
const (
	PageBits = 12
	PageSize = 1 << PageBits
	pageMask = PageSize - 1
)

// ErrReleased is returned when a released region is released again.
var ErrReleased = errors.New("memory region already released")

// Spec declares a memory region of a platform.
type Spec struct {
	Name      string
	BigEndian bool
}

// Region is a sparse, paged, byte addressable memory.
type Region struct {
	name     string
	order    binary.ByteOrder
	pages    map[uint32]*[PageSize]byte
	released bool
}

// New returns an empty region for the given declaration.
func New(spec Spec) (*Region, error) {
	if spec.Name == "" {
		return nil, errors.New("memory region name is empty")
	}

	var order binary.ByteOrder = binary.LittleEndian
	if spec.BigEndian {
		order = binary.BigEndian
	}

	return &Region{
		name:  spec.Name,
		order: order,
		pages: make(map[uint32]*[PageSize]byte),
	}, nil
}

// Name returns the declared name of the region.
func (r *Region) Name() string {
	return r.name
}

// ByteOrder returns the byte order used for multi byte accesses.
func (r *Region) ByteOrder() binary.ByteOrder {
	return r.order
}

// Release drops all pages of the region. A released region reads as zero
// and ignores writes.
func (r *Region) Release() error {
	if r.released {
		return fmt.Errorf("region '%s': %w", r.name, ErrReleased)
	}
	r.released = true
	r.pages = nil
	return nil
}

// Released returns whether the region has been released.
func (r *Region) Released() bool {
	return r.released
}

// PageCount returns the number of allocated pages.
func (r *Region) PageCount() int {
	return len(r.pages)
}

func (r *Region) page(address uint32, allocate bool) *[PageSize]byte {
	if r.released {
		return nil
	}
	index := address >> PageBits
	p, ok := r.pages[index]
	if !ok && allocate {
		p = new([PageSize]byte)
		r.pages[index] = p
	}
	return p
}

// Read8 reads a byte.
func (r *Region) Read8(address uint32) uint8 {
	p := r.page(address, false)
	if p == nil {
		return 0
	}
	return p[address&pageMask]
}

// Write8 writes a byte.
func (r *Region) Write8(address uint32, value uint8) {
	p := r.page(address, true)
	if p == nil {
		return
	}
	p[address&pageMask] = value
}

// Read16 reads a half word in the byte order of the region.
func (r *Region) Read16(address uint32) uint16 {
	var buf [2]byte
	r.ReadBytes(address, buf[:])
	return r.order.Uint16(buf[:])
}

// Write16 writes a half word in the byte order of the region.
func (r *Region) Write16(address uint32, value uint16) {
	var buf [2]byte
	r.order.PutUint16(buf[:], value)
	r.WriteBytes(address, buf[:])
}

// Read32 reads a word in the byte order of the region.
func (r *Region) Read32(address uint32) uint32 {
	if offset := address & pageMask; offset <= PageSize-4 {
		p := r.page(address, false)
		if p == nil {
			return 0
		}
		return r.order.Uint32(p[offset : offset+4])
	}

	var buf [4]byte
	r.ReadBytes(address, buf[:])
	return r.order.Uint32(buf[:])
}

// Write32 writes a word in the byte order of the region.
func (r *Region) Write32(address, value uint32) {
	var buf [4]byte
	r.order.PutUint32(buf[:], value)
	r.WriteBytes(address, buf[:])
}

// ReadBytes fills data with the bytes starting at address.
// Addresses wrap around at the end of the 32 bit address space.
func (r *Region) ReadBytes(address uint32, data []byte) {
	for len(data) > 0 {
		offset := address & pageMask
		n := min(len(data), int(PageSize-offset))

		if p := r.page(address, false); p != nil {
			copy(data[:n], p[offset:int(offset)+n])
		} else {
			clear(data[:n])
		}

		data = data[n:]
		address += uint32(n)
	}
}

// WriteBytes copies data into the region starting at address.
func (r *Region) WriteBytes(address uint32, data []byte) {
	for len(data) > 0 {
		offset := address & pageMask
		n := min(len(data), int(PageSize-offset))

		if p := r.page(address, true); p != nil {
			copy(p[offset:int(offset)+n], data[:n])
		}

		data = data[n:]
		address += uint32(n)
	}
}

// Fill writes size copies of value starting at address.
// Zero fills do not allocate pages that are not mapped yet.
func (r *Region) Fill(address, size uint32, value byte) {
	for size > 0 {
		offset := address & pageMask
		n := min(size, PageSize-offset)

		if p := r.page(address, value != 0); p != nil {
			for i := offset; i < offset+n; i++ {
				p[i] = value
			}
		}

		size -= n
		address += n
	}
}
