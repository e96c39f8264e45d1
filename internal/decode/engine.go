// Package decode implements the instruction fetch and decode engine.
//
// Raw instruction words are classified by walking an immutable decision
// trie of bit masks. A cached engine remembers the decoded instruction of
// every address in a hash table of move-to-front chains, an uncached engine
// decodes every fetch into a slot of a fixed instruction pool.
package decode

import (
	"errors"
	"fmt"

	"github.com/retroenv/retrogolib/log"
)

// Mode selects the ownership policy of fetched instructions.
type Mode int

// Engine modes.
const (
	// Cached keeps every decoded instruction for the lifetime of the engine.
	Cached Mode = iota
	// Uncached decodes every fetch into a pool slot released by Free.
	Uncached
)

func (m Mode) String() string {
	switch m {
	case Cached:
		return "cached"
	case Uncached:
		return "uncached"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Default engine configuration values.
const (
	DefaultBuckets   = 0xFFFF + 1
	DefaultBlockSize = 4096
	DefaultPoolSize  = 100
)

var (
	// ErrIllegalInstruction is returned when the instruction words match no
	// leaf of the decode trie.
	ErrIllegalInstruction = errors.New("illegal instruction")
	// ErrPoolExhausted is returned by an uncached engine when every
	// instruction slot is in use.
	ErrPoolExhausted = errors.New("instruction pool exhausted")
	// ErrHalted is returned when fetching from a halted engine.
	ErrHalted = errors.New("decode engine is halted")
)

const noEntry int32 = -1

// Config contains the engine options.
type Config struct {
	Mode      Mode
	Buckets   int // hash buckets of the cache, power of two
	BlockSize int // cache entries per arena block
	PoolSize  int // instruction slots of an uncached engine
}

// DefaultConfig returns the configuration of a cached engine with the
// default table sizes.
func DefaultConfig() Config {
	return Config{
		Mode:      Cached,
		Buckets:   DefaultBuckets,
		BlockSize: DefaultBlockSize,
		PoolSize:  DefaultPoolSize,
	}
}

// Validate checks the configuration for the selected mode.
func (c Config) Validate() error {
	switch c.Mode {
	case Cached:
		if c.Buckets <= 0 || c.Buckets&(c.Buckets-1) != 0 {
			return fmt.Errorf("bucket count %d is not a power of two", c.Buckets)
		}
		if c.BlockSize <= 0 {
			return fmt.Errorf("invalid arena block size %d", c.BlockSize)
		}
	case Uncached:
		if c.PoolSize <= 0 {
			return fmt.Errorf("invalid instruction pool size %d", c.PoolSize)
		}
	default:
		return fmt.Errorf("unsupported decode mode %d", int(c.Mode))
	}
	return nil
}

// WordReader reads instruction words from memory.
type WordReader interface {
	Read32(address uint32) uint32
}

// Decoder provides the architecture specific decode data.
type Decoder interface {
	// Root returns the root node of the decode trie.
	Root() *Node
	// Words returns the number of 32 bit words read for every fetch.
	Words() int
	// Operands returns the input and output operands of a decoded instruction.
	Operands(id Ident, words []uint32) (inputs, outputs []Operand)
}

// Stats counts engine activity.
type Stats struct {
	Fetches     uint64
	Hits        uint64 // cache hits, including hits after a chain scan
	Misses      uint64
	Moves       uint64 // hits that moved an entry to the front of its bucket
	LongestScan uint64 // longest chain scan of a single fetch
	TrieWalks   uint64
}

type cacheEntry struct {
	address uint32
	next    int32
	inst    Instruction
}

// Engine fetches and decodes instructions. It is not safe for concurrent use.
type Engine struct {
	logger *log.Logger
	mem    WordReader
	dec    Decoder
	cfg    Config

	// cached mode
	buckets []int32
	blocks  [][]cacheEntry
	used    int

	// uncached mode
	pool  []Instruction
	free  []int32
	inUse []bool

	words  []uint32
	stats  Stats
	halted bool
}

// New returns an initialized engine reading instruction words from mem.
func New(logger *log.Logger, mem WordReader, dec Decoder, cfg Config) (*Engine, error) {
	if mem == nil {
		return nil, errors.New("decode engine has no memory")
	}
	if dec == nil || dec.Root() == nil {
		return nil, errors.New("decode engine has no decode trie")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid decode configuration: %w", err)
	}

	e := &Engine{
		logger: logger,
		mem:    mem,
		dec:    dec,
		cfg:    cfg,
		words:  make([]uint32, max(dec.Words(), 1)),
	}
	e.Init()
	return e, nil
}

// Init clears the cache buckets or marks every pool slot free and resets
// the statistics. Arena blocks of a previous run are reused.
func (e *Engine) Init() {
	switch e.cfg.Mode {
	case Cached:
		if len(e.buckets) != e.cfg.Buckets {
			e.buckets = make([]int32, e.cfg.Buckets)
		}
		for i := range e.buckets {
			e.buckets[i] = noEntry
		}
		for _, block := range e.blocks {
			clear(block)
		}
		e.used = 0

	case Uncached:
		e.pool = make([]Instruction, e.cfg.PoolSize)
		e.free = make([]int32, 0, e.cfg.PoolSize)
		e.inUse = make([]bool, e.cfg.PoolSize)
		for i := e.cfg.PoolSize - 1; i >= 0; i-- {
			e.pool[i].slot = int32(i)
			e.free = append(e.free, int32(i))
		}
	}

	e.stats = Stats{}
	e.halted = false
}

// Halt releases the cache and its arena blocks or the instruction pool.
// The engine has to be initialized again before the next fetch.
func (e *Engine) Halt() {
	if e.halted {
		return
	}
	if e.logger != nil {
		e.logger.Debug("Decode engine halted",
			log.String("mode", e.cfg.Mode.String()),
			log.Int("fetches", int(e.stats.Fetches)),
			log.Int("hits", int(e.stats.Hits)),
			log.Int("misses", int(e.stats.Misses)),
			log.Int("arena_blocks", len(e.blocks)))
	}

	e.buckets = nil
	e.blocks = nil
	e.used = 0
	e.pool = nil
	e.free = nil
	e.inUse = nil
	e.halted = true
}

// Mode returns the configured engine mode.
func (e *Engine) Mode() Mode {
	return e.cfg.Mode
}

// Stats returns a copy of the engine statistics.
func (e *Engine) Stats() Stats {
	return e.stats
}

// Fetch returns the decoded instruction at address.
func (e *Engine) Fetch(address uint32) (*Instruction, error) {
	if e.halted {
		return nil, ErrHalted
	}
	e.stats.Fetches++

	if e.cfg.Mode == Uncached {
		return e.fetchUncached(address)
	}
	return e.fetchCached(address)
}

// Free releases an instruction returned by Fetch. Cached instructions stay
// owned by the engine and are not released.
func (e *Engine) Free(inst *Instruction) {
	if inst == nil || e.cfg.Mode != Uncached || e.halted {
		return
	}
	slot := inst.slot
	if slot < 0 || int(slot) >= len(e.inUse) || &e.pool[slot] != inst || !e.inUse[slot] {
		return
	}
	e.inUse[slot] = false
	e.free = append(e.free, slot)
}

// Bucket returns the cache bucket of an address.
func (e *Engine) Bucket(address uint32) int {
	return int((address >> 2) & uint32(e.cfg.Buckets-1))
}

// HeadAddress returns the address cached at the front of a bucket.
func (e *Engine) HeadAddress(bucket int) (uint32, bool) {
	if bucket < 0 || bucket >= len(e.buckets) || e.buckets[bucket] == noEntry {
		return 0, false
	}
	return e.entry(e.buckets[bucket]).address, true
}

// Cached returns the number of cached instructions.
func (e *Engine) Cached() int {
	return e.used
}

func (e *Engine) fetchCached(address uint32) (*Instruction, error) {
	index := e.Bucket(address)
	head := e.buckets[index]

	if head != noEntry {
		first := e.entry(head)
		if first.address == address {
			e.stats.Hits++
			return &first.inst, nil
		}

		var scan uint64
		prev := first
		for current := first.next; current != noEntry; {
			scan++
			entry := e.entry(current)
			if entry.address == address {
				prev.next = entry.next
				entry.next = head
				e.buckets[index] = current

				e.stats.Hits++
				e.stats.Moves++
				e.stats.LongestScan = max(e.stats.LongestScan, scan)
				return &entry.inst, nil
			}
			prev = entry
			current = entry.next
		}
		e.stats.LongestScan = max(e.stats.LongestScan, scan)
	}

	e.stats.Misses++
	words := e.readWords(address)
	id, err := e.walk(address, words)
	if err != nil {
		return nil, err
	}

	index32 := e.alloc()
	entry := e.entry(index32)
	entry.address = address
	entry.next = head
	entry.inst = e.build(id, address, words, nil)
	entry.inst.slot = noEntry
	e.buckets[index] = index32
	return &entry.inst, nil
}

func (e *Engine) fetchUncached(address uint32) (*Instruction, error) {
	if len(e.free) == 0 {
		return nil, fmt.Errorf("%w: all %d slots in use at 0x%08X", ErrPoolExhausted, len(e.pool), address)
	}

	words := e.readWords(address)
	id, err := e.walk(address, words)
	if err != nil {
		return nil, err
	}

	slot := e.free[len(e.free)-1]
	e.free = e.free[:len(e.free)-1]
	e.inUse[slot] = true

	inst := &e.pool[slot]
	*inst = e.build(id, address, words, inst.Words[:0])
	inst.slot = slot
	return inst, nil
}

func (e *Engine) build(id Ident, address uint32, words, buf []uint32) Instruction {
	inputs, outputs := e.dec.Operands(id, words)
	return Instruction{
		Ident:   id,
		Address: address,
		Words:   append(buf, words...),
		Inputs:  inputs,
		Outputs: outputs,
	}
}

func (e *Engine) readWords(address uint32) []uint32 {
	for i := range e.words {
		e.words[i] = e.mem.Read32(address + uint32(4*i))
	}
	return e.words
}

// walk resolves the identity of the instruction words by descending the
// decode trie until a leaf is reached.
func (e *Engine) walk(address uint32, words []uint32) (Ident, error) {
	e.stats.TrieWalks++

	node := e.dec.Root()
	for range MaxDepth {
		value := node.extract(words)
		entry := node.Entry(value)

		switch entry.kind {
		case LeafEntry:
			return entry.ident, nil
		case InternalEntry:
			node = entry.child
		default:
			return Unknown, e.illegal(address, words, value)
		}
	}
	return Unknown, fmt.Errorf("%w at 0x%08X: decode trie deeper than %d levels", ErrIllegalInstruction, address, MaxDepth)
}

func (e *Engine) illegal(address uint32, words []uint32, value uint32) error {
	if e.logger != nil {
		e.logger.Debug("Illegal instruction",
			log.Hex("address", address),
			log.Hex("word", words[0]),
			log.Hex("field", value))
	}
	return fmt.Errorf("%w at 0x%08X: words %08X", ErrIllegalInstruction, address, words)
}

// alloc hands out the next cache entry of the arena, adding a block when
// the current ones are used up.
func (e *Engine) alloc() int32 {
	if e.used == len(e.blocks)*e.cfg.BlockSize {
		e.blocks = append(e.blocks, make([]cacheEntry, e.cfg.BlockSize))
	}
	index := int32(e.used)
	e.used++
	return index
}

func (e *Engine) entry(index int32) *cacheEntry {
	block := int(index) / e.cfg.BlockSize
	return &e.blocks[block][int(index)%e.cfg.BlockSize]
}
