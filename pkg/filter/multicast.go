package filter

// MulticastWords is the size of the multicast hash table in 32-bit words
// (4096 hash buckets).
const MulticastWords = 128

// MulticastTable is the shadow of the shared multicast hash table. The
// supervisor and every VF contribute hash values; the table is rebuilt
// wholesale whenever any contributor's list changes, mirroring how the
// device table is resynchronized.
type MulticastTable struct {
	shadow [MulticastWords]uint32
	inUse  int
}

// NewMulticastTable creates an empty shadow.
func NewMulticastTable() *MulticastTable {
	return &MulticastTable{}
}

// Rebuild clears the shadow and repopulates it from the given hash lists.
func (t *MulticastTable) Rebuild(lists ...[]uint16) {
	t.shadow = [MulticastWords]uint32{}
	t.inUse = 0
	for _, list := range lists {
		for _, h := range list {
			t.set(h)
			t.inUse++
		}
	}
}

func (t *MulticastTable) set(hash uint16) {
	reg := (hash >> 5) & 0x7f
	bit := hash & 0x1f
	t.shadow[reg] |= 1 << bit
}

// Contains reports whether the hash bucket for the value is set.
func (t *MulticastTable) Contains(hash uint16) bool {
	reg := (hash >> 5) & 0x7f
	bit := hash & 0x1f
	return t.shadow[reg]&(1<<bit) != 0
}

// InUse returns the number of hash values contributed since the last
// rebuild. Distinct values may share a bucket.
func (t *MulticastTable) InUse() int { return t.inUse }

// Shadow returns a copy of the table words for programming into hardware.
func (t *MulticastTable) Shadow() []uint32 {
	out := make([]uint32, MulticastWords)
	copy(out, t.shadow[:])
	return out
}
