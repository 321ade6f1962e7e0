package rg

// HashString returns the resource key of name: a 64-bit Jenkins
// one-at-a-time hash. The empty string hashes to 0.
func HashString(name string) uint64 {
	var h uint64
	for i := 0; i < len(name); i++ {
		h += uint64(name[i])
		h += h << 10
		h ^= h >> 6
	}
	h += h << 3
	h ^= h >> 11
	h += h << 15
	return h
}
