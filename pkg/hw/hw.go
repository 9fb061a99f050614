// Package hw defines the hardware collaborators the supervisor consumes:
// the per-VF datapath register surface, the virtual-instance primitive, and
// the anomalous-driver fault monitor. Register programming itself is out of
// scope here; implementations are treated as atomic and ordered.
//
// A full in-memory simulator backs tests and the default daemon mode; thin
// sysfs/ethtool helpers cover the pieces that are observable on a real host.
package hw

import "sriov-pf/pkg/mbx"

// Caps describes the device generation's feature set.
type Caps struct {
	// RestartTxOnReset: the VF's transmit queues are toggled and its
	// mailbox memory zeroed during reset.
	RestartTxOnReset bool
	// FrameSizeParity: supervisor and VFs must agree on frame size;
	// legacy VFs lose their receive path under jumbo mismatch.
	FrameSizeParity bool
	// HideVLAN: the drop-enable register can strip the default VLAN tag.
	HideVLAN bool
	// EthertypeAntiSpoof: control-frame ethertypes can be spoof-checked.
	EthertypeAntiSpoof bool
	// PromiscXcast: VFs may be granted promiscuous reception.
	PromiscXcast bool
}

// Device is the datapath register surface the supervisor programs. Calls
// are cheap, synchronous, and never fail; invalid VF indices are the
// caller's bug, not the device's.
type Device interface {
	Caps() Caps

	// Per-VF datapath.
	SetVFTraffic(vf int, enable bool)
	SetVFReceive(vf int, enable bool)
	SetDefaultVLAN(vf int, vid uint16, qos uint8)
	ClearDefaultVLAN(vf int)
	SetUntaggedAccept(vf int, accept bool)
	SetReceiveMode(vf int, mode mbx.XcastMode)
	SetDropEnable(vf int, hideVLAN bool)
	SetAntiSpoof(vf int, enable bool)
	SetEthertypeAntiSpoof(vf int, enable bool)
	SetRate(vf int, linkMbps, rateMbps int)
	ToggleTxQueues(vf int)
	ClearTxWritebacks(vf int)

	// Device-wide state.
	SetSRIOVMode(enabled bool, numVFs int)
	LinkUp() bool
	LinkMbps() int
	AdminDown() bool
	PFPromiscuous() bool
	PFMaxFrame() int
	MaxFrameSize() int
	SetMaxFrameSize(frame int)
	MulticastFilterType() uint32
	WriteMulticastTable(shadow []uint32)
	QueuesPerPool() int
}

// Instances is the virtual-instance primitive: creation and teardown of the
// N device instances and the "is any instance assigned to a guest" check
// that gates capacity disable.
type Instances interface {
	Create(n int) error
	Release() error
	AnyAssigned() bool
	Count() int
}

// FaultMonitor reports VFs implicated in anomalous transmit or receive
// behavior since the last check, and restores a quarantined VF's datapath.
type FaultMonitor interface {
	CheckFaults() []int
	RestoreVF(vf int)
}
