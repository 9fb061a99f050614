package pf

import (
	"net"

	"sriov-pf/pkg/mbx"
)

// LinkState is the administratively requested link mode for a VF.
type LinkState int

const (
	// LinkAuto tracks the supervisor's own administrative state.
	LinkAuto LinkState = iota
	// LinkEnabled forces the VF's link on.
	LinkEnabled
	// LinkDisabled forces the VF's link off.
	LinkDisabled
)

func (s LinkState) String() string {
	switch s {
	case LinkAuto:
		return "auto"
	case LinkEnabled:
		return "enable"
	case LinkDisabled:
		return "disable"
	}
	return "invalid"
}

// VFRecord is the supervisor's per-VF bookkeeping. Records live from
// capacity enable to capacity disable; everything in here is guarded by the
// supervisor's lock.
type VFRecord struct {
	// MAC is the VF's primary unicast address. AdminMAC marks it as
	// administratively assigned, which blocks untrusted VFs from changing
	// it and unlocks a successful reset reply.
	MAC      net.HardwareAddr
	AdminMAC bool

	// PortVLAN/PortQoS is the administrative VLAN override. Zero VID means
	// no override.
	PortVLAN uint16
	PortQoS  uint8

	Trusted           bool
	SpoofCheckEnabled bool
	RSSQueryEnabled   bool

	// XcastMode is the reception breadth granted to the VF, after any
	// trust clamp.
	XcastMode mbx.XcastMode

	// Version is the negotiated mailbox protocol revision.
	Version mbx.Version

	// TxRateMbps is the transmit cap; zero means unlimited.
	TxRateMbps int

	// RequestedLink is the administrative mode; LinkEnabled is its current
	// resolution against the supervisor's own state.
	RequestedLink LinkState
	LinkEnabled   bool

	// ClearToSend gates every non-reset request. It opens when the reset
	// handshake completes and closes whenever the supervisor invalidates
	// the VF's view of its own state.
	ClearToSend bool

	// MulticastHashes is the VF's registered hash list, kept so the shared
	// table can be rebuilt when any contributor changes.
	MulticastHashes []uint16
}

// newVFRecord returns a record with post-enable defaults: spoof checking
// on, untrusted, narrowest reception, oldest protocol revision, link
// tracking the supervisor.
func newVFRecord(adminDown bool) *VFRecord {
	return &VFRecord{
		MAC:               make(net.HardwareAddr, 6),
		SpoofCheckEnabled: true,
		XcastMode:         mbx.XcastNone,
		Version:           mbx.Version10,
		RequestedLink:     LinkAuto,
		LinkEnabled:       !adminDown,
	}
}

// allocRecords builds the per-VF storage for capacity enable. It is a
// variable so tests can simulate allocation failure and exercise the
// rollback path.
var allocRecords = func(n int, adminDown bool) ([]*VFRecord, error) {
	vfs := make([]*VFRecord, n)
	for i := range vfs {
		vfs[i] = newVFRecord(adminDown)
	}
	return vfs, nil
}
