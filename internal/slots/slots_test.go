package slots

import "testing"

func TestSet_ReserveLowestFree(t *testing.T) {
	var s Set

	for want := uint32(0); want < 3; want++ {
		if got := s.Reserve(); got != want {
			t.Fatalf("Reserve():\nhave %d\nwant %d", got, want)
		}
	}

	s.Release(1)
	if s.IsReserved(1) {
		t.Fatal("IsReserved(1) after Release: have true, want false")
	}
	if got := s.Reserve(); got != 1 {
		t.Fatalf("Reserve() after Release(1):\nhave %d\nwant 1", got)
	}
	if s.Len() != 3 {
		t.Fatalf("Len():\nhave %d\nwant 3", s.Len())
	}
}

func TestSet_Grow(t *testing.T) {
	var s Set

	for i := 0; i < wordBits; i++ {
		s.Reserve()
	}
	if s.Cap() != wordBits {
		t.Fatalf("Cap():\nhave %d\nwant %d", s.Cap(), wordBits)
	}
	if got := s.Reserve(); got != wordBits {
		t.Fatalf("Reserve() on full map:\nhave %d\nwant %d", got, wordBits)
	}
	if s.Cap() != 2*wordBits {
		t.Fatalf("Cap() after grow:\nhave %d\nwant %d", s.Cap(), 2*wordBits)
	}
}

func TestSet_ReleaseUnreserved(t *testing.T) {
	var s Set
	s.Reserve()

	s.Release(40)
	s.Release(1000)
	if s.Len() != 1 {
		t.Fatalf("Len():\nhave %d\nwant 1", s.Len())
	}
}
