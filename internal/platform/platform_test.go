package platform

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrosim/internal/memory"
)

type mockModule struct {
	name    string
	initErr error
	events  *[]string
}

func (m *mockModule) Name() string {
	return m.name
}

func (m *mockModule) Init(*Platform) error {
	*m.events = append(*m.events, "init "+m.name)
	return m.initErr
}

func (m *mockModule) Destroy(*Platform) {
	*m.events = append(*m.events, "destroy "+m.name)
}

type mockImage struct {
	loadErr error
	entry   uint32
	closed  bool
}

func (i *mockImage) Load(p *Platform) error {
	if i.loadErr != nil {
		return i.loadErr
	}
	p.Memory(0).Write32(i.entry, 0xFC000000)
	return nil
}

func (i *mockImage) Entry() uint32 {
	return i.entry
}

func (i *mockImage) FillEnv(_ *Platform, env *SysEnv) error {
	env.StackPointer = DefaultStackTop - 16
	return nil
}

func (i *mockImage) Close() error {
	i.closed = true
	return nil
}

type mockLoader struct {
	image   *mockImage
	openErr error
}

func (l mockLoader) Open(string) (Image, error) {
	if l.openErr != nil {
		return nil, l.openErr
	}
	return l.image, nil
}

func testConfig() Config {
	return Config{
		Regions: []memory.Spec{{Name: "ram"}, {Name: "io", BigEndian: true}},
	}
}

func TestNew(t *testing.T) {
	p, err := New(testConfig())
	assert.NoError(t, err)
	assert.Equal(t, int32(0), p.Usage())
	assert.False(t, p.Released())
	assert.Equal(t, 2, p.MemoryCount())
	assert.Equal(t, "io", p.Memory(1).Name())
	assert.True(t, p.MemoryByName("ram") == p.Memory(0))
	assert.Nil(t, p.MemoryByName("rom"))
	assert.Nil(t, p.Memory(2))
	assert.NotNil(t, p.SysEnv())
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no regions", Config{}},
		{"unnamed region", Config{Regions: []memory.Spec{{}}}},
		{"duplicate region", Config{Regions: []memory.Spec{{Name: "ram"}, {Name: "ram"}}}},
		{"missing stack region", Config{Regions: []memory.Spec{{Name: "ram"}}, Stack: StackConfig{Region: 1}}},
		{"stack below zero", Config{Regions: []memory.Spec{{Name: "ram"}}, Stack: StackConfig{Top: 0x1000, Size: 0x1000, Slots: 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg)
			assert.Error(t, err)
			assert.Nil(t, p)
		})
	}
}

func TestNew_ModuleFailureCleansUp(t *testing.T) {
	var events []string
	cfg := testConfig()
	cfg.Modules = []Module{
		&mockModule{name: "a", events: &events},
		&mockModule{name: "b", events: &events},
		&mockModule{name: "c", events: &events, initErr: errors.New("broken")},
	}

	_, err := New(cfg)
	assert.ErrorContains(t, err, "initializing module 'c'")

	expected := []string{"init a", "init b", "init c", "destroy b", "destroy a"}
	if diff := cmp.Diff(expected, events); diff != "" {
		t.Errorf("unexpected module events (-want +got):\n%s", diff)
	}
}

func TestHandle_ReferenceCounting(t *testing.T) {
	var events []string
	cfg := testConfig()
	cfg.Modules = []Module{
		&mockModule{name: "a", events: &events},
		&mockModule{name: "b", events: &events},
	}
	p, err := New(cfg)
	assert.NoError(t, err)
	ram := p.Memory(0)

	first := p.Lock()
	second := p.Lock()
	assert.Equal(t, int32(2), p.Usage())
	assert.True(t, first.Platform() == p)

	assert.NoError(t, first.Release())
	assert.Equal(t, int32(1), p.Usage())
	assert.False(t, p.Released())
	assert.False(t, ram.Released())

	assert.True(t, errors.Is(first.Release(), ErrHandleReleased))
	assert.Equal(t, int32(1), p.Usage())

	assert.NoError(t, second.Release())
	assert.Equal(t, int32(0), p.Usage())
	assert.True(t, p.Released())
	assert.True(t, ram.Released())
	assert.Nil(t, p.SysEnv())
	assert.Nil(t, p.Memory(0))

	expected := []string{"init a", "init b", "destroy b", "destroy a"}
	if diff := cmp.Diff(expected, events); diff != "" {
		t.Errorf("unexpected module events (-want +got):\n%s", diff)
	}

	assert.Nil(t, p.Lock())
}

func TestNilPlatform(t *testing.T) {
	var p *Platform
	var h *Handle

	assert.Nil(t, p.Lock())
	assert.NoError(t, h.Release())
	assert.Nil(t, h.Platform())
	assert.Nil(t, p.Memory(0))
	assert.Nil(t, p.SysEnv())
	assert.True(t, p.Released())
	assert.Equal(t, int32(0), p.Usage())
	assert.True(t, errors.Is(p.Load(mockLoader{}, "x"), ErrReleased))
}

func TestModuleAs(t *testing.T) {
	var events []string
	cfg := testConfig()
	cfg.Modules = []Module{&mockModule{name: "a", events: &events}}
	p, err := New(cfg)
	assert.NoError(t, err)

	m, ok := ModuleAs[*mockModule](p)
	assert.True(t, ok)
	assert.Equal(t, "a", m.Name())

	_, ok = ModuleAs[*mockModule](nil)
	assert.False(t, ok)
}

func TestPlatform_Load(t *testing.T) {
	p, err := New(testConfig())
	assert.NoError(t, err)

	image := &mockImage{entry: 0x1000}
	assert.NoError(t, p.Load(mockLoader{image: image}, "program"))
	assert.True(t, image.closed)
	assert.Equal(t, uint32(0x1000), p.Entry())
	assert.Equal(t, uint32(0xFC000000), p.Memory(0).Read32(0x1000))
	assert.Equal(t, uint32(DefaultStackTop-16), p.SysEnv().StackPointer)
}

func TestPlatform_LoadFailureKeepsPlatformValid(t *testing.T) {
	p, err := New(testConfig())
	assert.NoError(t, err)

	err = p.Load(mockLoader{openErr: errors.New("no such file")}, "missing")
	assert.ErrorContains(t, err, "opening program 'missing'")

	image := &mockImage{loadErr: errors.New("bad segment")}
	err = p.Load(mockLoader{image: image}, "broken")
	assert.ErrorContains(t, err, "bad segment")
	assert.True(t, image.closed)

	assert.False(t, p.Released())
	h := p.Lock()
	assert.NoError(t, h.Release())
	assert.True(t, p.Released())
}

func TestStackSlots(t *testing.T) {
	cfg := testConfig()
	cfg.Stack = StackConfig{Top: 0x10000, Size: 0x1000, Slots: 3}
	p, err := New(cfg)
	assert.NoError(t, err)

	low, high, ok := p.StackSlot(0)
	assert.True(t, ok)
	assert.Equal(t, uint32(0xF000), low)
	assert.Equal(t, uint32(0x10000), high)

	low, high, ok = p.StackSlot(2)
	assert.True(t, ok)
	assert.Equal(t, uint32(0xD000), low)
	assert.Equal(t, uint32(0xE000), high)

	_, _, ok = p.StackSlot(3)
	assert.False(t, ok)

	slot, ok := p.SlotOf(0xFFFC)
	assert.True(t, ok)
	assert.Equal(t, 0, slot)
	slot, ok = p.SlotOf(0xE000)
	assert.True(t, ok)
	assert.Equal(t, 1, slot)
	_, ok = p.SlotOf(0x10000)
	assert.False(t, ok)
	_, ok = p.SlotOf(0xCFFF)
	assert.False(t, ok)

	slot, ok = p.StackPointerSlot(0x10000)
	assert.True(t, ok)
	assert.Equal(t, 0, slot)
	slot, ok = p.StackPointerSlot(0xF000)
	assert.True(t, ok)
	assert.Equal(t, 1, slot)
	slot, ok = p.StackPointerSlot(0xEFF0)
	assert.True(t, ok)
	assert.Equal(t, 1, slot)
	_, ok = p.StackPointerSlot(0xD000)
	assert.False(t, ok)
	_, ok = p.StackPointerSlot(0)
	assert.False(t, ok)

	assert.True(t, p.ClaimStackSlot(0))
	assert.False(t, p.ClaimStackSlot(0))

	slot, err = p.ClaimFreeStackSlot()
	assert.NoError(t, err)
	assert.Equal(t, 1, slot)
	slot, err = p.ClaimFreeStackSlot()
	assert.NoError(t, err)
	assert.Equal(t, 2, slot)
	_, err = p.ClaimFreeStackSlot()
	assert.True(t, errors.Is(err, ErrNoStackSlot))

	p.ReleaseStackSlot(1)
	slot, err = p.ClaimFreeStackSlot()
	assert.NoError(t, err)
	assert.Equal(t, 1, slot)
}
