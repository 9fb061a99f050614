package filter

import (
	"bytes"
	"net"
)

// MACTable mirrors the device's receive address filter slots. Each used
// slot holds one unicast address steered to one pool.
type MACTable struct {
	slots []macSlot
}

type macSlot struct {
	used bool
	pool int
	addr [6]byte
}

// NewMACTable creates a table with the given number of address slots.
func NewMACTable(entries int) *MACTable {
	return &MACTable{slots: make([]macSlot, entries)}
}

// Add installs a filter steering addr to pool. Re-adding an identical
// filter is a no-op.
func (t *MACTable) Add(addr net.HardwareAddr, pool int) error {
	var key [6]byte
	copy(key[:], addr)
	for i := range t.slots {
		if t.slots[i].used && t.slots[i].addr == key && t.slots[i].pool == pool {
			return nil
		}
	}
	for i := range t.slots {
		if !t.slots[i].used {
			t.slots[i] = macSlot{used: true, pool: pool, addr: key}
			return nil
		}
	}
	return ErrNoSpace
}

// Del removes the filter steering addr to pool, if present.
func (t *MACTable) Del(addr net.HardwareAddr, pool int) {
	var key [6]byte
	copy(key[:], addr)
	for i := range t.slots {
		if t.slots[i].used && t.slots[i].addr == key && t.slots[i].pool == pool {
			t.slots[i] = macSlot{}
			return
		}
	}
}

// Has reports whether addr is filtered to pool.
func (t *MACTable) Has(addr net.HardwareAddr, pool int) bool {
	var key [6]byte
	copy(key[:], addr)
	for i := range t.slots {
		if t.slots[i].used && t.slots[i].addr == key && t.slots[i].pool == pool {
			return true
		}
	}
	return false
}

// Used returns the number of occupied slots.
func (t *MACTable) Used() int {
	n := 0
	for i := range t.slots {
		if t.slots[i].used {
			n++
		}
	}
	return n
}

// MacvlanPool is the bounded set of secondary-address slots available to
// VFs, carved from the address table after reserving slots for the
// supervisor and the VFs' primary addresses. Allocation is first-fit.
type MacvlanPool struct {
	entries []mvEntry
}

type mvEntry struct {
	free bool
	vf   int
	addr net.HardwareAddr
}

// NewMacvlanPool creates a pool of n slots. n may be zero, in which case
// every assignment fails with ErrNoSpace.
func NewMacvlanPool(n int) *MacvlanPool {
	p := &MacvlanPool{entries: make([]mvEntry, n)}
	for i := range p.entries {
		p.entries[i].free = true
		p.entries[i].vf = -1
	}
	return p
}

// Assign takes the first free slot for the VF.
func (p *MacvlanPool) Assign(vf int, addr net.HardwareAddr) error {
	for i := range p.entries {
		if p.entries[i].free {
			p.entries[i] = mvEntry{vf: vf, addr: append(net.HardwareAddr(nil), addr...)}
			return nil
		}
	}
	return ErrNoSpace
}

// ClearVF releases every slot owned by the VF and returns the addresses
// that were installed, so the caller can drop the matching MAC filters.
func (p *MacvlanPool) ClearVF(vf int) []net.HardwareAddr {
	var addrs []net.HardwareAddr
	for i := range p.entries {
		if !p.entries[i].free && p.entries[i].vf == vf {
			addrs = append(addrs, p.entries[i].addr)
			p.entries[i] = mvEntry{free: true, vf: -1}
		}
	}
	return addrs
}

// Owned returns the addresses currently held by the VF.
func (p *MacvlanPool) Owned(vf int) []net.HardwareAddr {
	var addrs []net.HardwareAddr
	for i := range p.entries {
		if !p.entries[i].free && p.entries[i].vf == vf {
			addrs = append(addrs, p.entries[i].addr)
		}
	}
	return addrs
}

// Free returns the number of unassigned slots.
func (p *MacvlanPool) Free() int {
	n := 0
	for i := range p.entries {
		if p.entries[i].free {
			n++
		}
	}
	return n
}

// Size returns the total number of slots.
func (p *MacvlanPool) Size() int { return len(p.entries) }

// IsZeroAddr reports whether addr is the all-zero address.
func IsZeroAddr(addr net.HardwareAddr) bool {
	return bytes.Equal(addr, make(net.HardwareAddr, len(addr)))
}

// IsUnicastAddr reports whether addr is a valid non-zero unicast address.
func IsUnicastAddr(addr net.HardwareAddr) bool {
	return len(addr) == 6 && !IsZeroAddr(addr) && addr[0]&0x01 == 0
}
