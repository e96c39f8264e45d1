package decode

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func newTestEngine(t *testing.T, mem mockMemory, cfg Config) *Engine {
	t.Helper()
	e, err := New(log.NewTestLogger(t), mem, newMockDecoder(), cfg)
	assert.NoError(t, err)
	return e
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"small power of two", Config{Mode: Cached, Buckets: 4, BlockSize: 1}, false},
		{"not a power of two", Config{Mode: Cached, Buckets: 6, BlockSize: 1}, true},
		{"zero buckets", Config{Mode: Cached, Buckets: 0, BlockSize: 1}, true},
		{"zero block size", Config{Mode: Cached, Buckets: 4}, true},
		{"uncached", Config{Mode: Uncached, PoolSize: 1}, false},
		{"uncached without pool", Config{Mode: Uncached}, true},
		{"unknown mode", Config{Mode: Mode(7), Buckets: 4, BlockSize: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_Errors(t *testing.T) {
	logger := log.NewTestLogger(t)

	_, err := New(logger, nil, newMockDecoder(), DefaultConfig())
	assert.Error(t, err)

	_, err = New(logger, mockMemory{}, &mockDecoder{}, DefaultConfig())
	assert.Error(t, err)

	_, err = New(logger, mockMemory{}, newMockDecoder(), Config{Mode: Cached, Buckets: 3, BlockSize: 1})
	assert.ErrorContains(t, err, "power of two")
}

func TestEngine_FetchPopulatesCache(t *testing.T) {
	mem := mockMemory{0x1000: 0xFC000000}
	e := newTestEngine(t, mem, DefaultConfig())

	first, err := e.Fetch(0x1000)
	assert.NoError(t, err)
	assert.Equal(t, opX, first.Ident)
	assert.Equal(t, uint32(0x1000), first.Address)
	assert.Equal(t, uint64(1), e.Stats().TrieWalks)

	for range 10 {
		inst, err := e.Fetch(0x1000)
		assert.NoError(t, err)
		assert.True(t, inst == first)
		assert.Equal(t, opX, inst.Ident)
	}

	expected := Stats{Fetches: 11, Hits: 10, Misses: 1, TrieWalks: 1}
	if diff := cmp.Diff(expected, e.Stats()); diff != "" {
		t.Errorf("unexpected stats (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, e.Cached())
}

func TestEngine_DecodeIsIdempotent(t *testing.T) {
	mem := mockMemory{
		0x2000: 0x04000000 | 3<<21 | 1<<16 | 2<<11,
		0x2004: 0x04000001 | 4<<21 | 5<<16 | 6<<11,
	}

	for _, mode := range []Mode{Cached, Uncached} {
		t.Run(mode.String(), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Mode = mode
			first := newTestEngine(t, mem, cfg)
			second := newTestEngine(t, mem, cfg)

			for _, address := range []uint32{0x2000, 0x2004} {
				a, err := first.Fetch(address)
				assert.NoError(t, err)
				b, err := second.Fetch(address)
				assert.NoError(t, err)

				assert.Equal(t, a.Ident, b.Ident)
				if diff := cmp.Diff(a.Inputs, b.Inputs); diff != "" {
					t.Errorf("unexpected inputs (-first +second):\n%s", diff)
				}
				first.Free(a)
				second.Free(b)
			}

			inst, err := first.Fetch(0x2004)
			assert.NoError(t, err)
			assert.Equal(t, opSub, inst.Ident)
			assert.Equal(t, Reg(5), inst.Input(0))
			assert.Equal(t, Reg(6), inst.Input(1))
			assert.Equal(t, Reg(4), inst.Output(0))
			assert.Equal(t, Operand{}, inst.Input(2))
		})
	}
}

func TestEngine_MoveToFront(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Buckets = 4

	const a, b = uint32(0x1000), uint32(0x1010)
	mem := mockMemory{a: 0xFC000000, b: 0x04000000}
	e := newTestEngine(t, mem, cfg)
	assert.Equal(t, e.Bucket(a), e.Bucket(b))
	bucket := e.Bucket(a)

	_, err := e.Fetch(a)
	assert.NoError(t, err)
	_, err = e.Fetch(b)
	assert.NoError(t, err)
	head, ok := e.HeadAddress(bucket)
	assert.True(t, ok)
	assert.Equal(t, b, head)

	inst, err := e.Fetch(a)
	assert.NoError(t, err)
	assert.Equal(t, opX, inst.Ident)
	head, _ = e.HeadAddress(bucket)
	assert.Equal(t, a, head)

	_, err = e.Fetch(b)
	assert.NoError(t, err)
	_, err = e.Fetch(a)
	assert.NoError(t, err)
	head, _ = e.HeadAddress(bucket)
	assert.Equal(t, a, head)

	stats := e.Stats()
	assert.Equal(t, uint64(2), stats.TrieWalks)
	assert.Equal(t, uint64(3), stats.Moves)
	assert.Equal(t, uint64(1), stats.LongestScan)
}

func TestEngine_IllegalInstruction(t *testing.T) {
	tests := []struct {
		name string
		word uint32
	}{
		{"no root entry", 0x00000000},
		{"no child entry", 0x04000002},
	}

	for _, mode := range []Mode{Cached, Uncached} {
		for _, tt := range tests {
			t.Run(mode.String()+" "+tt.name, func(t *testing.T) {
				cfg := DefaultConfig()
				cfg.Mode = mode
				e := newTestEngine(t, mockMemory{0x100: tt.word}, cfg)

				inst, err := e.Fetch(0x100)
				assert.Nil(t, inst)
				assert.True(t, errors.Is(err, ErrIllegalInstruction))
				assert.ErrorContains(t, err, "0x00000100")
				assert.Equal(t, 0, e.Cached())
			})
		}
	}
}

func TestEngine_DeepTrieIsIllegal(t *testing.T) {
	loop := MustNode(0x1)
	loop.Set(0, Internal(loop))
	dec := &mockDecoder{root: loop, words: 1}

	e, err := New(log.NewTestLogger(t), mockMemory{}, dec, DefaultConfig())
	assert.NoError(t, err)

	_, err = e.Fetch(0)
	assert.True(t, errors.Is(err, ErrIllegalInstruction))
}

func TestEngine_UncachedPool(t *testing.T) {
	mem := mockMemory{0x1000: 0xFC000000, 0x1004: 0x04000000}
	cfg := DefaultConfig()
	cfg.Mode = Uncached
	cfg.PoolSize = 2
	e := newTestEngine(t, mem, cfg)

	first, err := e.Fetch(0x1000)
	assert.NoError(t, err)
	second, err := e.Fetch(0x1000)
	assert.NoError(t, err)
	assert.False(t, first == second)
	assert.Equal(t, opX, second.Ident)

	_, err = e.Fetch(0x1004)
	assert.True(t, errors.Is(err, ErrPoolExhausted))

	e.Free(first)
	e.Free(first)
	third, err := e.Fetch(0x1004)
	assert.NoError(t, err)
	assert.Equal(t, opAdd, third.Ident)

	_, err = e.Fetch(0x1004)
	assert.True(t, errors.Is(err, ErrPoolExhausted))

	assert.Equal(t, uint64(3), e.Stats().TrieWalks)
	assert.Equal(t, uint64(0), e.Stats().Hits)
	_, ok := e.HeadAddress(e.Bucket(0x1000))
	assert.False(t, ok)
}

func TestEngine_FreeCachedIsNoop(t *testing.T) {
	e := newTestEngine(t, mockMemory{0x1000: 0xFC000000}, DefaultConfig())

	inst, err := e.Fetch(0x1000)
	assert.NoError(t, err)
	e.Free(inst)
	e.Free(nil)
	assert.Equal(t, opX, inst.Ident)

	again, err := e.Fetch(0x1000)
	assert.NoError(t, err)
	assert.True(t, inst == again)
}

func TestEngine_HaltAndInit(t *testing.T) {
	e := newTestEngine(t, mockMemory{0x1000: 0xFC000000}, DefaultConfig())

	_, err := e.Fetch(0x1000)
	assert.NoError(t, err)

	e.Halt()
	e.Halt()
	_, err = e.Fetch(0x1000)
	assert.True(t, errors.Is(err, ErrHalted))

	e.Init()
	assert.Equal(t, 0, e.Cached())
	inst, err := e.Fetch(0x1000)
	assert.NoError(t, err)
	assert.Equal(t, opX, inst.Ident)
	assert.Equal(t, uint64(1), e.Stats().Misses)
}

func TestEngine_ArenaGrowth(t *testing.T) {
	mem := mockMemory{}
	for i := range uint32(9) {
		mem[0x4000+4*i] = 0xFC000000
	}
	cfg := DefaultConfig()
	cfg.Buckets = 2
	cfg.BlockSize = 2
	e := newTestEngine(t, mem, cfg)

	for i := range uint32(9) {
		_, err := e.Fetch(0x4000 + 4*i)
		assert.NoError(t, err)
	}
	assert.Equal(t, 9, e.Cached())
	assert.Equal(t, 5, len(e.blocks))

	for i := range uint32(9) {
		inst, err := e.Fetch(0x4000 + 4*i)
		assert.NoError(t, err)
		assert.Equal(t, 0x4000+4*i, inst.Address)
	}
	assert.Equal(t, uint64(9), e.Stats().TrieWalks)
}

func TestEngine_MultiWordFetch(t *testing.T) {
	mem := mockMemory{0x3000: 0x08000000, 0x3004: 0xFFFFFFFE}
	dec := newMockDecoder()
	dec.words = 2

	e, err := New(log.NewTestLogger(t), mem, dec, DefaultConfig())
	assert.NoError(t, err)

	inst, err := e.Fetch(0x3000)
	assert.NoError(t, err)
	assert.Equal(t, opLong, inst.Ident)
	assert.Equal(t, int32(-2), inst.Input(0).Signed())
	if diff := cmp.Diff([]uint32{0x08000000, 0xFFFFFFFE}, inst.Words); diff != "" {
		t.Errorf("unexpected words (-want +got):\n%s", diff)
	}
}
