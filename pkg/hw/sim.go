package hw

import (
	"fmt"
	"sync"

	"sriov-pf/pkg/mbx"
)

// SimVFState is the simulator's view of one VF's programmed datapath.
type SimVFState struct {
	TrafficEnabled  bool
	ReceiveEnabled  bool
	DefaultVLAN     uint16
	DefaultQoS      uint8
	HasDefaultVLAN  bool
	UntaggedAccept  bool
	ReceiveMode     mbx.XcastMode
	DropEnable      bool
	HideVLAN        bool
	AntiSpoof       bool
	EthertypeSpoof  bool
	RateMbps        int
	TxQueueToggles  int
	TxWritebackClrs int
	Restored        int
}

// SimDevice is a full in-memory device: Device, Instances and FaultMonitor
// in one. Tests and the daemon's simulator backend poke its exported knobs
// directly.
type SimDevice struct {
	mu sync.Mutex

	// Tunables, read under the lock. PFFrame is the supervisor's own frame
	// length excluding FCS; VF frame-size requests include it.
	Capabilities Caps
	Link         bool
	Mbps         int
	Down         bool
	Promisc      bool
	PFFrame      int
	FilterType   uint32
	Queues       int

	maxFrame  int
	sriovOn   bool
	numVFs    int
	vfs       map[int]*SimVFState
	mcTable   []uint32
	created   int
	assigned  map[int]bool
	faultList []int
}

// NewSimDevice creates a simulator with sensible defaults: link up at
// 10Gbps, standard frames, all generation features available.
func NewSimDevice() *SimDevice {
	return &SimDevice{
		Capabilities: Caps{
			RestartTxOnReset:   true,
			FrameSizeParity:    true,
			HideVLAN:           true,
			EthertypeAntiSpoof: true,
			PromiscXcast:       true,
		},
		Link:     true,
		Mbps:     10000,
		PFFrame:  1514,
		Queues:   2,
		maxFrame: 1518,
		vfs:      make(map[int]*SimVFState),
		assigned: make(map[int]bool),
	}
}

func (d *SimDevice) vf(i int) *SimVFState {
	s, ok := d.vfs[i]
	if !ok {
		s = &SimVFState{}
		d.vfs[i] = s
	}
	return s
}

// VF returns a copy of the simulator's state for a VF.
func (d *SimDevice) VF(i int) SimVFState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return *d.vf(i)
}

// Caps implements Device.
func (d *SimDevice) Caps() Caps {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Capabilities
}

// SetVFTraffic implements Device.
func (d *SimDevice) SetVFTraffic(vf int, enable bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.vf(vf)
	s.TrafficEnabled = enable
	s.ReceiveEnabled = enable
}

// SetVFReceive implements Device.
func (d *SimDevice) SetVFReceive(vf int, enable bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vf(vf).ReceiveEnabled = enable
}

// SetDefaultVLAN implements Device.
func (d *SimDevice) SetDefaultVLAN(vf int, vid uint16, qos uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.vf(vf)
	s.DefaultVLAN = vid
	s.DefaultQoS = qos
	s.HasDefaultVLAN = true
}

// ClearDefaultVLAN implements Device.
func (d *SimDevice) ClearDefaultVLAN(vf int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.vf(vf)
	s.DefaultVLAN = 0
	s.DefaultQoS = 0
	s.HasDefaultVLAN = false
}

// SetUntaggedAccept implements Device.
func (d *SimDevice) SetUntaggedAccept(vf int, accept bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vf(vf).UntaggedAccept = accept
}

// SetReceiveMode implements Device.
func (d *SimDevice) SetReceiveMode(vf int, mode mbx.XcastMode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vf(vf).ReceiveMode = mode
}

// SetDropEnable implements Device.
func (d *SimDevice) SetDropEnable(vf int, hideVLAN bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.vf(vf)
	s.DropEnable = hideVLAN
	s.HideVLAN = hideVLAN
}

// SetAntiSpoof implements Device.
func (d *SimDevice) SetAntiSpoof(vf int, enable bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vf(vf).AntiSpoof = enable
}

// SetEthertypeAntiSpoof implements Device.
func (d *SimDevice) SetEthertypeAntiSpoof(vf int, enable bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vf(vf).EthertypeSpoof = enable
}

// SetRate implements Device.
func (d *SimDevice) SetRate(vf int, linkMbps, rateMbps int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vf(vf).RateMbps = rateMbps
}

// ToggleTxQueues implements Device.
func (d *SimDevice) ToggleTxQueues(vf int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vf(vf).TxQueueToggles++
}

// ClearTxWritebacks implements Device.
func (d *SimDevice) ClearTxWritebacks(vf int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vf(vf).TxWritebackClrs++
}

// SetSRIOVMode implements Device.
func (d *SimDevice) SetSRIOVMode(enabled bool, numVFs int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sriovOn = enabled
	d.numVFs = numVFs
	if !enabled {
		d.vfs = make(map[int]*SimVFState)
	}
}

// SRIOVMode reports the simulated switching mode.
func (d *SimDevice) SRIOVMode() (bool, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sriovOn, d.numVFs
}

// LinkUp implements Device.
func (d *SimDevice) LinkUp() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Link
}

// LinkMbps implements Device.
func (d *SimDevice) LinkMbps() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Mbps
}

// AdminDown implements Device.
func (d *SimDevice) AdminDown() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Down
}

// PFPromiscuous implements Device.
func (d *SimDevice) PFPromiscuous() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Promisc
}

// PFMaxFrame implements Device.
func (d *SimDevice) PFMaxFrame() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.PFFrame
}

// MaxFrameSize implements Device.
func (d *SimDevice) MaxFrameSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxFrame
}

// SetMaxFrameSize implements Device.
func (d *SimDevice) SetMaxFrameSize(frame int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.maxFrame = frame
}

// MulticastFilterType implements Device.
func (d *SimDevice) MulticastFilterType() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.FilterType
}

// WriteMulticastTable implements Device.
func (d *SimDevice) WriteMulticastTable(shadow []uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mcTable = append([]uint32(nil), shadow...)
}

// MulticastTable returns the last table written.
func (d *SimDevice) MulticastTable() []uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uint32(nil), d.mcTable...)
}

// QueuesPerPool implements Device.
func (d *SimDevice) QueuesPerPool() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Queues == 0 {
		return 1
	}
	return d.Queues
}

// Create implements Instances.
func (d *SimDevice) Create(n int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.created != 0 {
		return fmt.Errorf("instances already created")
	}
	d.created = n
	return nil
}

// Release implements Instances.
func (d *SimDevice) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created = 0
	return nil
}

// AnyAssigned implements Instances.
func (d *SimDevice) AnyAssigned() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, v := range d.assigned {
		if v {
			return true
		}
	}
	return false
}

// Count implements Instances.
func (d *SimDevice) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created
}

// SetAssigned marks an instance as held by a guest.
func (d *SimDevice) SetAssigned(vf int, assigned bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.assigned[vf] = assigned
}

// InjectFault queues a malicious-driver event for a VF.
func (d *SimDevice) InjectFault(vf int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faultList = append(d.faultList, vf)
}

// CheckFaults implements FaultMonitor.
func (d *SimDevice) CheckFaults() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.faultList
	d.faultList = nil
	return out
}

// RestoreVF implements FaultMonitor.
func (d *SimDevice) RestoreVF(vf int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vf(vf).Restored++
}
