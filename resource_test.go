package rg

import (
	"runtime"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableAddAndLookup(t *testing.T) {
	tab := NewTable()

	require.NoError(t, tab.AddTexture("HDR", Texture2D(64, 32, gputypes.TextureFormatRGBA16Float, gputypes.TextureUsageRenderAttachment), 3))
	require.NoError(t, tab.AddBuffer("Lights", BufferDesc{Size: 1024, Usage: gputypes.BufferUsageStorage}))

	assert.Equal(t, 2, tab.Len())
	assert.Equal(t, []string{"HDR", "Lights"}, tab.Names())
	assert.True(t, tab.Has(HashString("HDR")))
	assert.False(t, tab.Has(HashString("Missing")))

	desc, ok := tab.TextureDesc(HashString("HDR"))
	require.True(t, ok)
	assert.Equal(t, uint32(1), desc.MipLevels, "MipLevels default")
	assert.Equal(t, uint32(1), desc.SampleCount, "SampleCount default")

	slot, ok := tab.TextureSlot(HashString("HDR"))
	require.True(t, ok)
	assert.Equal(t, uint16(3), slot)

	// Transient resources are not usable before allocation.
	_, ok = tab.Texture(HashString("HDR"))
	assert.False(t, ok)
	_, ok = tab.Buffer(HashString("Lights"))
	assert.False(t, ok)

	// Kind mismatch reports absence.
	_, ok = tab.TextureDesc(HashString("Lights"))
	assert.False(t, ok)
	_, ok = tab.Buffer(HashString("HDR"))
	assert.False(t, ok)
}

func TestTableDuplicateLeavesTableUnchanged(t *testing.T) {
	tab := NewTable()
	first := Texture2D(16, 16, gputypes.TextureFormatR8Unorm, 0)
	require.NoError(t, tab.AddTexture("T", first, 1))

	tests := []struct {
		name string
		add  func() error
	}{
		{"texture", func() error {
			return tab.AddTexture("T", Texture2D(32, 32, gputypes.TextureFormatRGBA8Unorm, 0), 2)
		}},
		{"buffer", func() error { return tab.AddBuffer("T", BufferDesc{Size: 64}) }},
		{"data", func() error {
			v := 1
			return tab.AddData("T", Borrow(&v))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.add()
			assert.ErrorIs(t, err, ErrDuplicateResource)
			assert.Equal(t, 1, tab.Len())
			r, ok := tab.Lookup(HashString("T"))
			require.True(t, ok)
			assert.Equal(t, KindTexture, r.Kind)
			assert.Equal(t, uint32(16), r.TextureDesc.Width)
			assert.Equal(t, uint16(1), r.Slot)
		})
	}
}

func TestTableInvalidDescriptor(t *testing.T) {
	tab := NewTable()

	err := tab.AddTexture("NoExtent", TextureDesc{Format: gputypes.TextureFormatRGBA8Unorm}, 0)
	assert.ErrorIs(t, err, ErrInvalidDescriptor)

	err = tab.AddTexture("NoFormat", TextureDesc{Width: 4, Height: 4}, 0)
	assert.ErrorIs(t, err, ErrInvalidDescriptor)

	err = tab.AddBuffer("Empty", BufferDesc{})
	assert.ErrorIs(t, err, ErrInvalidDescriptor)

	assert.Equal(t, 0, tab.Len())
}

func TestTableSealed(t *testing.T) {
	tab := NewTable()
	require.NoError(t, tab.AddBuffer("B", BufferDesc{Size: 16}))
	tab.seal()
	assert.True(t, tab.Sealed())

	assert.ErrorIs(t, tab.AddBuffer("C", BufferDesc{Size: 16}), ErrTableSealed)
	assert.ErrorIs(t, tab.AddTexture("D", Texture2D(1, 1, gputypes.TextureFormatR8Unorm, 0), 0), ErrTableSealed)
	assert.Equal(t, 1, tab.Len())

	tab.Reset()
	assert.False(t, tab.Sealed())
	assert.Equal(t, 0, tab.Len())
	assert.False(t, tab.Has(HashString("B")))
	assert.NoError(t, tab.AddBuffer("B", BufferDesc{Size: 16}))
}

func TestTableExternal(t *testing.T) {
	device, _ := createNoopDevice(t)
	tab := NewTable()

	desc := Texture2D(8, 8, gputypes.TextureFormatBGRA8Unorm, gputypes.TextureUsageRenderAttachment)
	n, err := desc.normalize()
	require.NoError(t, err)
	tex, err := device.CreateTexture(n.halDescriptor("ext"))
	require.NoError(t, err)

	require.NoError(t, tab.AddExternalTexture("Ext", desc, tex))
	require.NoError(t, tab.AddExternalTexture("Nil", desc, nil))

	got, ok := tab.Texture(HashString("Ext"))
	require.True(t, ok)
	assert.NotNil(t, got)

	r, _ := tab.Lookup(HashString("Ext"))
	assert.True(t, r.External)
	assert.True(t, r.Resolved())

	_, ok = tab.Texture(HashString("Nil"))
	assert.False(t, ok, "nil external texture must not resolve")

	require.NoError(t, tab.AddExternalBuffer("Buf", BufferDesc{Size: 4}, BufferRef{}))
	_, ok = tab.Buffer(HashString("Buf"))
	assert.False(t, ok, "nil external buffer must not resolve")
}

func TestTableDataBorrow(t *testing.T) {
	tab := NewTable()
	cam := &Camera{Near: 0.5, Far: 50}

	require.NoError(t, tab.AddData("Cam", Borrow(cam)))

	got, ok := Data[Camera](tab, HashString("Cam"))
	require.True(t, ok)
	assert.Same(t, cam, got)

	_, ok = Data[Semaphore](tab, HashString("Cam"))
	assert.False(t, ok, "type mismatch must report false")

	_, ok = Data[Camera](tab, HashString("Other"))
	assert.False(t, ok)

	r, _ := tab.Lookup(HashString("Cam"))
	assert.True(t, r.External)
	assert.Equal(t, KindData, r.Kind)
	assert.Equal(t, "*rg.Camera", r.data.Type())

	runtime.KeepAlive(cam)
}

//go:noinline
func borrowTemporary(tab *Table) error {
	v := &Camera{Near: 1}
	return tab.AddData("Temp", Borrow(v))
}

func TestTableDataCollected(t *testing.T) {
	tab := NewTable()
	require.NoError(t, borrowTemporary(tab))

	for range 5 {
		runtime.GC()
		if _, ok := Data[Camera](tab, HashString("Temp")); !ok {
			return
		}
	}
	t.Error("Data() resolved a borrow whose owner was collected")
}

func TestBorrowNil(t *testing.T) {
	var cam *Camera
	ref := Borrow(cam)
	assert.False(t, ref.Valid())

	var zero DataRef
	assert.False(t, zero.Valid())
}

func TestTableAllStopsEarly(t *testing.T) {
	tab := NewTable()
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, tab.AddBuffer(name, BufferDesc{Size: 8}))
	}

	var seen []string
	for r := range tab.All() {
		seen = append(seen, r.Name)
		if r.Name == "b" {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestTextureDescByteSize(t *testing.T) {
	tests := []struct {
		name string
		desc TextureDesc
		want uint64
	}{
		{"rgba8", Texture2D(4, 4, gputypes.TextureFormatRGBA8Unorm, 0), 64},
		{"r8", Texture2D(4, 4, gputypes.TextureFormatR8Unorm, 0), 16},
		{"rgba16f", Texture2D(2, 2, gputypes.TextureFormatRGBA16Float, 0), 32},
		{"mips", TextureDesc{Width: 4, Height: 4, MipLevels: 3, Format: gputypes.TextureFormatR8Unorm}, 16 + 4 + 1},
		{"layers", TextureDesc{Width: 2, Height: 2, ArrayLayers: 6, Format: gputypes.TextureFormatRGBA8Unorm}, 96},
		{"msaa", TextureDesc{Width: 2, Height: 2, SampleCount: 4, Format: gputypes.TextureFormatDepth32Float}, 64},
		{"invalid", TextureDesc{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.desc.ByteSize(); got != tt.want {
				t.Errorf("ByteSize() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		k    Kind
		want string
	}{
		{KindTexture, "Texture"},
		{KindBuffer, "Buffer"},
		{KindData, "Data"},
		{Kind(0), "Kind(0)"},
	}
	for _, tt := range tests {
		if got := tt.k.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.k, got, tt.want)
		}
	}
	if got := MemoryUpload.String(); got != "Upload" {
		t.Errorf("MemoryUpload.String() = %q, want %q", got, "Upload")
	}
}
