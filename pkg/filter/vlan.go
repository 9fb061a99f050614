// Package filter owns the shared filter tables carved out of the device:
// VLAN pool membership, MAC filter slots, the VF macvlan slot pool, and the
// multicast hash shadow. The tables are plain bounded mirrors of hardware
// state; callers serialize access (see the supervisor's locking rules) and
// never see raw table positions.
package filter

import "errors"

// ErrNoSpace is returned when a bounded table has no free entry left.
var ErrNoSpace = errors.New("filter table exhausted")

// VLANTable tracks, for each VLAN id, the set of pools filtering on it.
// Pool indices 0..n-1 are VFs; the supervisor pool sits above them. An
// entry's VLAN id stays programmed for as long as any pool references it.
type VLANTable struct {
	pfPool  int
	entries []vlanEntry
}

type vlanEntry struct {
	used  bool
	vid   uint16
	pools uint64
}

// NewVLANTable creates a table with the given number of shared entries.
// pfPool is the supervisor's pool index.
func NewVLANTable(entries, pfPool int) *VLANTable {
	return &VLANTable{
		pfPool:  pfPool,
		entries: make([]vlanEntry, entries),
	}
}

// PFPool returns the supervisor's pool index.
func (t *VLANTable) PFPool() int { return t.pfPool }

func (t *VLANTable) find(vid uint16) *vlanEntry {
	for i := range t.entries {
		if t.entries[i].used && t.entries[i].vid == vid {
			return &t.entries[i]
		}
	}
	return nil
}

// Join adds a pool to the membership of vid, allocating a table entry if the
// VLAN is not yet filtered anywhere. Joining twice is a no-op.
func (t *VLANTable) Join(vid uint16, pool int) error {
	if e := t.find(vid); e != nil {
		e.pools |= 1 << uint(pool)
		return nil
	}
	for i := range t.entries {
		if !t.entries[i].used {
			t.entries[i] = vlanEntry{used: true, vid: vid, pools: 1 << uint(pool)}
			return nil
		}
	}
	return ErrNoSpace
}

// Leave removes a pool from the membership of vid. The entry is released
// only when no pool bit remains.
func (t *VLANTable) Leave(vid uint16, pool int) {
	e := t.find(vid)
	if e == nil {
		return
	}
	e.pools &^= 1 << uint(pool)
	if e.pools == 0 {
		*e = vlanEntry{}
	}
}

// ClearPool removes the pool from every entry it is a member of and returns
// the VLAN ids it was removed from. An entry survives if any other pool,
// the supervisor's included, still references it; this keeps the supervisor
// visible on VLANs it monitors while not leaking rows nobody uses.
func (t *VLANTable) ClearPool(pool int) []uint16 {
	bit := uint64(1) << uint(pool)
	var cleared []uint16
	for i := range t.entries {
		e := &t.entries[i]
		if !e.used || e.pools&bit == 0 {
			continue
		}
		cleared = append(cleared, e.vid)
		e.pools &^= bit
		if e.pools == 0 {
			*e = vlanEntry{}
		}
	}
	return cleared
}

// Member reports whether the pool currently filters on vid.
func (t *VLANTable) Member(vid uint16, pool int) bool {
	e := t.find(vid)
	return e != nil && e.pools&(1<<uint(pool)) != 0
}

// Active reports whether vid has a programmed table entry at all.
func (t *VLANTable) Active(vid uint16) bool { return t.find(vid) != nil }

// MemberVLANs returns every VLAN id the pool is a member of.
func (t *VLANTable) MemberVLANs(pool int) []uint16 {
	bit := uint64(1) << uint(pool)
	var vids []uint16
	for i := range t.entries {
		if t.entries[i].used && t.entries[i].pools&bit != 0 {
			vids = append(vids, t.entries[i].vid)
		}
	}
	return vids
}

// FreeEntries returns the number of unallocated table entries.
func (t *VLANTable) FreeEntries() int {
	n := 0
	for i := range t.entries {
		if !t.entries[i].used {
			n++
		}
	}
	return n
}
