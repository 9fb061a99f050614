package filter

import (
	"net"
	"testing"
)

func TestVLANTableJoinLeave(t *testing.T) {
	vt := NewVLANTable(4, 8)

	if err := vt.Join(100, 0); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if !vt.Member(100, 0) {
		t.Error("pool 0 should be a member of vlan 100")
	}
	if !vt.Active(100) {
		t.Error("vlan 100 should have a table entry")
	}

	// Second member shares the entry.
	if err := vt.Join(100, 1); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if vt.FreeEntries() != 3 {
		t.Errorf("expected 3 free entries, got %d", vt.FreeEntries())
	}

	vt.Leave(100, 0)
	if vt.Member(100, 0) {
		t.Error("pool 0 should have left vlan 100")
	}
	if !vt.Active(100) {
		t.Error("entry must survive while pool 1 remains")
	}

	vt.Leave(100, 1)
	if vt.Active(100) {
		t.Error("entry must be released when no pool remains")
	}
	if vt.FreeEntries() != 4 {
		t.Errorf("expected 4 free entries, got %d", vt.FreeEntries())
	}
}

func TestVLANTableExhaustion(t *testing.T) {
	vt := NewVLANTable(2, 8)
	if err := vt.Join(1, 0); err != nil {
		t.Fatal(err)
	}
	if err := vt.Join(2, 0); err != nil {
		t.Fatal(err)
	}
	if err := vt.Join(3, 0); err != ErrNoSpace {
		t.Errorf("expected ErrNoSpace, got %v", err)
	}
	// Joining an already-filtered VLAN needs no new entry.
	if err := vt.Join(2, 1); err != nil {
		t.Errorf("join of existing vlan should not need a free entry: %v", err)
	}
}

func TestVLANTableClearPool(t *testing.T) {
	const pfPool = 4
	vt := NewVLANTable(8, pfPool)

	// vlan 10: VF 1 only. vlan 20: VF 1 + VF 2. vlan 30: VF 1 + supervisor.
	for _, j := range []struct {
		vid  uint16
		pool int
	}{{10, 1}, {20, 1}, {20, 2}, {30, 1}, {30, pfPool}} {
		if err := vt.Join(j.vid, j.pool); err != nil {
			t.Fatal(err)
		}
	}

	cleared := vt.ClearPool(1)
	if len(cleared) != 3 {
		t.Fatalf("expected 3 vlans cleared, got %v", cleared)
	}

	if vt.Active(10) {
		t.Error("vlan 10 had no other member and must be released")
	}
	if !vt.Active(20) || !vt.Member(20, 2) {
		t.Error("vlan 20 must survive for VF 2")
	}
	if !vt.Active(30) || !vt.Member(30, pfPool) {
		t.Error("vlan 30 must be preserved for the supervisor")
	}
	if vt.Member(20, 1) || vt.Member(30, 1) {
		t.Error("VF 1 must not remain a member anywhere")
	}
}

func TestMACTable(t *testing.T) {
	mt := NewMACTable(2)
	a1, _ := net.ParseMAC("02:00:00:00:00:01")
	a2, _ := net.ParseMAC("02:00:00:00:00:02")
	a3, _ := net.ParseMAC("02:00:00:00:00:03")

	if err := mt.Add(a1, 0); err != nil {
		t.Fatal(err)
	}
	// Idempotent re-add.
	if err := mt.Add(a1, 0); err != nil {
		t.Fatal(err)
	}
	if mt.Used() != 1 {
		t.Errorf("Used() = %d, want 1", mt.Used())
	}
	if err := mt.Add(a2, 1); err != nil {
		t.Fatal(err)
	}
	if err := mt.Add(a3, 2); err != ErrNoSpace {
		t.Errorf("expected ErrNoSpace, got %v", err)
	}

	mt.Del(a1, 0)
	if mt.Has(a1, 0) {
		t.Error("filter should be gone after Del")
	}
	if err := mt.Add(a3, 2); err != nil {
		t.Errorf("slot should be reusable after Del: %v", err)
	}
}

func TestMacvlanPool(t *testing.T) {
	p := NewMacvlanPool(2)
	a1, _ := net.ParseMAC("02:00:00:00:01:01")
	a2, _ := net.ParseMAC("02:00:00:00:01:02")
	a3, _ := net.ParseMAC("02:00:00:00:01:03")

	if err := p.Assign(3, a1); err != nil {
		t.Fatal(err)
	}
	if err := p.Assign(3, a2); err != nil {
		t.Fatal(err)
	}
	if err := p.Assign(5, a3); err != ErrNoSpace {
		t.Errorf("expected ErrNoSpace, got %v", err)
	}
	if got := len(p.Owned(3)); got != 2 {
		t.Errorf("Owned(3) = %d entries, want 2", got)
	}

	addrs := p.ClearVF(3)
	if len(addrs) != 2 {
		t.Fatalf("ClearVF returned %d addrs, want 2", len(addrs))
	}
	if p.Free() != 2 {
		t.Errorf("Free() = %d, want 2", p.Free())
	}
	if err := p.Assign(5, a3); err != nil {
		t.Errorf("slots should be reusable after ClearVF: %v", err)
	}
}

func TestMacvlanPoolEmpty(t *testing.T) {
	p := NewMacvlanPool(0)
	a, _ := net.ParseMAC("02:00:00:00:01:01")
	if err := p.Assign(0, a); err != ErrNoSpace {
		t.Errorf("empty pool must return ErrNoSpace, got %v", err)
	}
	if p.ClearVF(0) != nil {
		t.Error("empty pool must clear nothing")
	}
}

func TestMulticastTable(t *testing.T) {
	mt := NewMulticastTable()
	mt.Rebuild([]uint16{0x0000, 0x0021, 0x0fff}, []uint16{0x0021})

	if !mt.Contains(0x0000) || !mt.Contains(0x0021) || !mt.Contains(0x0fff) {
		t.Error("expected hash buckets to be set")
	}
	if mt.Contains(0x0042) {
		t.Error("unexpected hash bucket set")
	}
	if mt.InUse() != 4 {
		t.Errorf("InUse() = %d, want 4", mt.InUse())
	}

	mt.Rebuild()
	if mt.InUse() != 0 || mt.Contains(0x0021) {
		t.Error("rebuild with no lists must clear the table")
	}
}

func TestAddrHelpers(t *testing.T) {
	uni, _ := net.ParseMAC("02:00:5e:00:00:01")
	multi, _ := net.ParseMAC("01:00:5e:00:00:01")
	zero := make(net.HardwareAddr, 6)

	if !IsUnicastAddr(uni) {
		t.Error("expected unicast address to validate")
	}
	if IsUnicastAddr(multi) {
		t.Error("multicast address must not validate")
	}
	if IsUnicastAddr(zero) {
		t.Error("zero address must not validate")
	}
	if !IsZeroAddr(zero) || IsZeroAddr(uni) {
		t.Error("IsZeroAddr misclassified")
	}
}
