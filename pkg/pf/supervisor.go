// Package pf implements the physical-function supervisor: VF lifecycle,
// the mailbox dispatcher, shared filter-table arbitration and the
// administrative override surface.
//
// Concurrency model: one coarse mutex serializes the poll loop and every
// administrative operation. Handlers run to completion under the lock and
// never block on a VF, so a misbehaving VF cannot wedge the supervisor.
package pf

import (
	"crypto/rand"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"sriov-pf/pkg/filter"
	"sriov-pf/pkg/hw"
	"sriov-pf/pkg/mbx"
)

// Capacity tiers. The device spreads its queues across traffic classes;
// more classes leave queue resources for fewer VFs.
const (
	MaxVFsOneTC   = 63
	MaxVFsFourTC  = 31
	MaxVFsEightTC = 15
)

// RateLimitSpeedMbps is the only link speed at which per-VF transmit rate
// limiting operates.
const RateLimitSpeedMbps = 10000

// ethFrameLen is the standard frame length excluding FCS, the threshold
// for the legacy frame-size parity rules.
const ethFrameLen = 1514

// retaEntries is the size of the RSS indirection table exposed to VFs.
const retaEntries = 128

// rssKeyLen is the RSS hash key length in bytes.
const rssKeyLen = 40

// Config carries the device-shape parameters the supervisor needs. Zero
// values are replaced by DefaultConfig's.
type Config struct {
	// MACEntries is the size of the shared receive-address table.
	MACEntries int
	// VLANEntries is the size of the shared VLAN filter table.
	VLANEntries int
	// ReservedMACs is the number of address slots held back for the
	// supervisor's own use when carving the macvlan pool.
	ReservedMACs int
	// TrafficClasses selects the capacity tier. 1 means no traffic
	// classing.
	TrafficClasses int
	// DefaultUserPriority is the priority stamped on untagged VF traffic
	// when traffic classes are configured.
	DefaultUserPriority uint8
	// PFVLANs are VLANs the supervisor itself filters on; VF churn never
	// releases their table entries.
	PFVLANs []uint16
	// PFMulticast is the supervisor's own multicast hash list.
	PFMulticast []uint16
}

// DefaultConfig returns the shape of the supported device family.
func DefaultConfig() Config {
	return Config{
		MACEntries:     128,
		VLANEntries:    64,
		ReservedMACs:   15,
		TrafficClasses: 1,
	}
}

func (c *Config) fillDefaults() {
	d := DefaultConfig()
	if c.MACEntries == 0 {
		c.MACEntries = d.MACEntries
	}
	if c.VLANEntries == 0 {
		c.VLANEntries = d.VLANEntries
	}
	if c.ReservedMACs == 0 {
		c.ReservedMACs = d.ReservedMACs
	}
	if c.TrafficClasses == 0 {
		c.TrafficClasses = d.TrafficClasses
	}
}

// maxVFsForTCs returns the capacity tier for a traffic-class count.
func maxVFsForTCs(tcs int) int {
	switch {
	case tcs <= 1:
		return MaxVFsOneTC
	case tcs <= 4:
		return MaxVFsFourTC
	default:
		return MaxVFsEightTC
	}
}

// tcForPriority maps a user priority onto a traffic class, spreading the
// eight priorities evenly over the configured classes.
func tcForPriority(prio uint8, tcs int) uint32 {
	if tcs >= 8 {
		return uint32(prio)
	}
	return uint32(int(prio) * tcs / 8)
}

// Counters is a snapshot of the supervisor's event counters, keyed by
// opcode name where applicable.
type Counters struct {
	Requests  map[string]uint64
	Failures  map[string]uint64
	Resets    uint64
	Pings     uint64
	Faults    uint64
	Dropped   uint64
	NotReady  uint64
	Malformed uint64
}

// Supervisor owns the control plane of one physical function.
type Supervisor struct {
	mu sync.Mutex

	cfg    Config
	dev    hw.Device
	caps   hw.Caps
	inst   hw.Instances
	faults hw.FaultMonitor
	tr     mbx.Transport

	enabled bool
	numVFs  int
	vfs     []*VFRecord

	vlans    *filter.VLANTable
	macs     *filter.MACTable
	macvlans *filter.MacvlanPool
	mta      *filter.MulticastTable

	// rateLinkMbps remembers the link speed the active rate limits were
	// programmed against. Zero when no limits are active.
	rateLinkMbps int

	rssKey []byte
	reta   []uint8

	requests  map[string]uint64
	failures  map[string]uint64
	resets    uint64
	pings     uint64
	faultHits uint64
	dropped   uint64
	notReady  uint64
	malformed uint64
}

// New wires a supervisor to its collaborators. Capacity starts disabled.
func New(dev hw.Device, inst hw.Instances, faults hw.FaultMonitor, tr mbx.Transport, cfg Config) *Supervisor {
	cfg.fillDefaults()
	s := &Supervisor{
		cfg:      cfg,
		dev:      dev,
		caps:     dev.Caps(),
		inst:     inst,
		faults:   faults,
		tr:       tr,
		rssKey:   make([]byte, rssKeyLen),
		reta:     make([]uint8, retaEntries),
		requests: make(map[string]uint64),
		failures: make(map[string]uint64),
	}
	rand.Read(s.rssKey)
	queues := dev.QueuesPerPool()
	if queues < 1 {
		queues = 1
	}
	for i := range s.reta {
		s.reta[i] = uint8(i % queues)
	}
	return s
}

// Enabled reports whether VF capacity is active.
func (s *Supervisor) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// NumVFs returns the configured VF count, zero when disabled.
func (s *Supervisor) NumVFs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.numVFs
}

// checkVF validates a VF index against the active capacity. Callers hold
// the lock.
func (s *Supervisor) checkVF(vf int) (*VFRecord, error) {
	if !s.enabled || vf < 0 || vf >= s.numVFs {
		return nil, ErrInvalidVF
	}
	return s.vfs[vf], nil
}

func (s *Supervisor) countRequest(op uint32) { s.requests[mbx.OpName(op)]++ }
func (s *Supervisor) countFailure(op uint32) { s.failures[mbx.OpName(op)]++ }

// Metrics returns a copy of the event counters.
func (s *Supervisor) Metrics() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := Counters{
		Requests:  make(map[string]uint64, len(s.requests)),
		Failures:  make(map[string]uint64, len(s.failures)),
		Resets:    s.resets,
		Pings:     s.pings,
		Faults:    s.faultHits,
		Dropped:   s.dropped,
		NotReady:  s.notReady,
		Malformed: s.malformed,
	}
	for k, v := range s.requests {
		c.Requests[k] = v
	}
	for k, v := range s.failures {
		c.Failures[k] = v
	}
	return c
}

// Status is a point-in-time view of the supervisor for the admin API.
type Status struct {
	Enabled        bool `json:"enabled"`
	NumVFs         int  `json:"num_vfs"`
	TrafficClasses int  `json:"traffic_classes"`
	MaxVFs         int  `json:"max_vfs"`
	LinkUp         bool `json:"link_up"`
	LinkMbps       int  `json:"link_mbps"`
	MACSlotsUsed   int  `json:"mac_slots_used"`
	MACSlotsTotal  int  `json:"mac_slots_total"`
	VLANFree       int  `json:"vlan_entries_free"`
	VLANTotal      int  `json:"vlan_entries_total"`
	MacvlanFree    int  `json:"macvlan_slots_free"`
	MacvlanTotal   int  `json:"macvlan_slots_total"`
}

// GetStatus snapshots the supervisor.
func (s *Supervisor) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Enabled:        s.enabled,
		NumVFs:         s.numVFs,
		TrafficClasses: s.cfg.TrafficClasses,
		MaxVFs:         maxVFsForTCs(s.cfg.TrafficClasses),
		LinkUp:         s.dev.LinkUp(),
		LinkMbps:       s.dev.LinkMbps(),
	}
	if s.enabled {
		st.MACSlotsUsed = s.macs.Used()
		st.MACSlotsTotal = s.cfg.MACEntries
		st.VLANFree = s.vlans.FreeEntries()
		st.VLANTotal = s.cfg.VLANEntries
		st.MacvlanFree = s.macvlans.Free()
		st.MacvlanTotal = s.macvlans.Size()
	}
	return st
}

// VFConfig is a point-in-time view of one VF for the admin API.
type VFConfig struct {
	VF          int    `json:"vf"`
	MAC         string `json:"mac"`
	AdminMAC    bool   `json:"admin_mac"`
	VLAN        uint16 `json:"vlan"`
	QoS         uint8  `json:"qos"`
	Trusted     bool   `json:"trusted"`
	SpoofCheck  bool   `json:"spoof_check"`
	RSSQuery    bool   `json:"rss_query"`
	RateMbps    int    `json:"rate_mbps"`
	LinkState   string `json:"link_state"`
	LinkEnabled bool   `json:"link_enabled"`
	Version     string `json:"api_version"`
	Xcast       string `json:"xcast_mode"`
	ClearToSend bool   `json:"clear_to_send"`
	Multicast   int    `json:"multicast_entries"`
	Macvlans    int    `json:"macvlan_filters"`
}

// GetConfig snapshots one VF.
func (s *Supervisor) GetConfig(vf int) (VFConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.checkVF(vf)
	if err != nil {
		return VFConfig{}, err
	}
	return VFConfig{
		VF:          vf,
		MAC:         rec.MAC.String(),
		AdminMAC:    rec.AdminMAC,
		VLAN:        rec.PortVLAN,
		QoS:         rec.PortQoS,
		Trusted:     rec.Trusted,
		SpoofCheck:  rec.SpoofCheckEnabled,
		RSSQuery:    rec.RSSQueryEnabled,
		RateMbps:    rec.TxRateMbps,
		LinkState:   rec.RequestedLink.String(),
		LinkEnabled: rec.LinkEnabled,
		Version:     rec.Version.String(),
		Xcast:       rec.XcastMode.String(),
		ClearToSend: rec.ClearToSend,
		Multicast:   len(rec.MulticastHashes),
		Macvlans:    len(s.macvlans.Owned(vf)),
	}, nil
}

// GetConfigs snapshots every VF.
func (s *Supervisor) GetConfigs() []VFConfig {
	s.mu.Lock()
	n := s.numVFs
	s.mu.Unlock()
	out := make([]VFConfig, 0, n)
	for i := 0; i < n; i++ {
		cfg, err := s.GetConfig(i)
		if err != nil {
			break
		}
		out = append(out, cfg)
	}
	return out
}

// vfLog returns a logger scoped to one VF.
func vfLog(vf int) *logrus.Entry {
	return logrus.WithField("vf", vf)
}

func macEqual(a, b net.HardwareAddr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
