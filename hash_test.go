package rg

import "testing"

func TestHashString(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
	}{
		{"", 0},
		{"a", 0x6ca2e9442},
		{"rg_output", 0x389f3bc310ab064d},
		{"DepthBuffer", 0xfd60289c20978994},
	}
	for _, tt := range tests {
		if got := HashString(tt.in); got != tt.want {
			t.Errorf("HashString(%q) = %#x, want %#x", tt.in, got, tt.want)
		}
	}
}

func TestHashString_Distinct(t *testing.T) {
	names := []string{OutputName, SceneDataName, SceneInstancesName, CameraName, PassSemaphoreName}
	seen := make(map[uint64]string)
	for _, n := range names {
		h := HashString(n)
		if prev, ok := seen[h]; ok {
			t.Errorf("HashString(%q) collides with %q", n, prev)
		}
		seen[h] = n
	}
}
