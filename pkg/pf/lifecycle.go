package pf

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"sriov-pf/pkg/filter"
	"sriov-pf/pkg/mbx"
)

// EnableCapacity provisions n VFs. The count is checked against the
// traffic-class tier before anything is touched; failure past the switch
// point rolls the device back to non-virtualized mode.
func (s *Supervisor) EnableCapacity(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enableLocked(n)
}

func (s *Supervisor) enableLocked(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCount, n)
	}
	if limit := maxVFsForTCs(s.cfg.TrafficClasses); n > limit {
		return fmt.Errorf("%w: %d with %d traffic classes (limit %d)",
			ErrInvalidCount, n, s.cfg.TrafficClasses, limit)
	}
	if s.enabled {
		return ErrInvalidState
	}

	vfs, err := allocRecords(n, s.dev.AdminDown())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrResourceExhausted, err)
	}

	// The macvlan pool is what remains of the address table after the
	// supervisor's reserved slots, its own station address, and one
	// primary-address slot per VF.
	mvSlots := s.cfg.MACEntries - (s.cfg.ReservedMACs + 1 + n)
	if mvSlots < 0 {
		mvSlots = 0
	}

	s.vfs = vfs
	s.numVFs = n
	s.vlans = filter.NewVLANTable(s.cfg.VLANEntries, n)
	s.macs = filter.NewMACTable(s.cfg.MACEntries)
	s.macvlans = filter.NewMacvlanPool(mvSlots)
	s.mta = filter.NewMulticastTable()
	s.rateLinkMbps = 0

	for _, vid := range s.cfg.PFVLANs {
		if err := s.vlans.Join(vid, s.vlans.PFPool()); err != nil {
			logrus.WithField("vlan", vid).Warn("no table entry for supervisor VLAN")
		}
	}
	s.syncMulticast()

	s.dev.SetSRIOVMode(true, n)
	s.enabled = true

	if err := s.inst.Create(n); err != nil {
		logrus.WithError(err).Error("VF instantiation failed, rolling back")
		s.teardownLocked()
		return fmt.Errorf("%w: %v", ErrResourceExhausted, err)
	}

	// Instantiation may race with VFs probing before our state existed;
	// resynchronize them.
	for vf := 0; vf < s.numVFs; vf++ {
		s.applyLinkLocked(vf)
		s.pingLocked(vf)
	}

	logrus.WithFields(logrus.Fields{
		"vfs":             n,
		"traffic_classes": s.cfg.TrafficClasses,
		"macvlan_slots":   mvSlots,
	}).Info("VF capacity enabled")
	return nil
}

// DisableCapacity tears VF capacity down. It refuses while any instance is
// assigned to a guest, leaving all state untouched.
func (s *Supervisor) DisableCapacity() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disableLocked()
}

func (s *Supervisor) disableLocked() error {
	if !s.enabled {
		return ErrInvalidState
	}
	if s.inst.AnyAssigned() {
		return ErrBusy
	}
	if err := s.inst.Release(); err != nil {
		return fmt.Errorf("releasing VF instances: %w", err)
	}
	s.teardownLocked()
	logrus.Info("VF capacity disabled")
	return nil
}

// teardownLocked drops the supervisor back to non-virtualized mode. The
// visible count goes to zero before any per-VF state is freed so a
// concurrent reader never sees records for a count that no longer exists.
func (s *Supervisor) teardownLocked() {
	s.numVFs = 0
	s.enabled = false
	for vf := range s.vfs {
		s.dev.SetVFTraffic(vf, false)
	}
	s.vfs = nil
	s.vlans = nil
	s.macs = nil
	s.macvlans = nil
	s.mta = nil
	s.rateLinkMbps = 0
	s.dev.SetSRIOVMode(false, 0)
}

// SetVFCount is the single entry point behind the instance-count control:
// zero disables, a positive count enables or reconfigures. It returns the
// count actually in effect.
func (s *Supervisor) SetVFCount(n int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n == 0 {
		if err := s.disableLocked(); err != nil {
			return s.numVFs, err
		}
		return 0, nil
	}
	if s.enabled {
		if s.numVFs == n {
			return n, nil
		}
		if err := s.disableLocked(); err != nil {
			return s.numVFs, err
		}
	}
	if err := s.enableLocked(n); err != nil {
		return 0, err
	}
	return n, nil
}

// resetVFState returns a VF to its post-enable default state while
// preserving administrative overrides. Runs on a function-level reset
// signal and as the first step of the reset message handler.
func (s *Supervisor) resetVFState(vf int) {
	rec := s.vfs[vf]

	// VLAN membership collapses to the one VLAN the VF is entitled to:
	// the administrative override, or untagged traffic.
	s.vlans.ClearPool(vf)
	if rec.PortVLAN != 0 {
		if err := s.vlans.Join(rec.PortVLAN, vf); err != nil {
			vfLog(vf).WithField("vlan", rec.PortVLAN).Warn("no table entry for port VLAN after reset")
		}
		s.dev.SetDefaultVLAN(vf, rec.PortVLAN, rec.PortQoS)
		s.dev.SetUntaggedAccept(vf, false)
	} else {
		if err := s.vlans.Join(0, vf); err != nil {
			vfLog(vf).Warn("no table entry for untagged membership after reset")
		}
		if s.cfg.TrafficClasses > 1 {
			// Untagged VF traffic is stamped with the default priority
			// so it lands in the right class.
			s.dev.SetDefaultVLAN(vf, 0, s.cfg.DefaultUserPriority)
		} else {
			s.dev.ClearDefaultVLAN(vf)
		}
		s.dev.SetUntaggedAccept(vf, true)
	}

	rec.MulticastHashes = nil
	s.syncMulticast()

	if !filter.IsZeroAddr(rec.MAC) {
		s.macs.Del(rec.MAC, vf)
	}
	s.clearMacvlans(vf)
	if rec.SpoofCheckEnabled {
		s.dev.SetAntiSpoof(vf, true)
	}

	rec.XcastMode = mbx.XcastNone
	s.dev.SetReceiveMode(vf, mbx.XcastNone)
	rec.Version = mbx.Version10
	rec.ClearToSend = false

	if s.caps.RestartTxOnReset {
		s.dev.ToggleTxQueues(vf)
		s.tr.ClearMemory(vf)
		s.dev.ClearTxWritebacks(vf)
	}
}

// handleResetRequest completes the reset handshake: state restoration,
// datapath re-enable, and the permanent-address reply that opens the
// clear-to-send gate. The reply succeeds only when an administrative
// address exists; the VF must otherwise wait for one to be assigned.
func (s *Supervisor) handleResetRequest(vf int) {
	rec := s.vfs[vf]
	s.resets++
	vfLog(vf).Debug("reset handshake")

	s.resetVFState(vf)

	hasMAC := rec.AdminMAC && !filter.IsZeroAddr(rec.MAC)
	if hasMAC {
		if err := s.macs.Add(rec.MAC, vf); err != nil {
			vfLog(vf).WithError(err).Error("no filter slot for primary address")
			hasMAC = false
		}
	}

	s.dev.SetDropEnable(vf, rec.PortVLAN != 0 && s.caps.HideVLAN)
	s.applyLinkLocked(vf)

	rec.ClearToSend = true

	reply := make([]uint32, mbx.PermAddrReplyLen)
	reply[0] = mbx.OpReset | mbx.FlagClearToSend
	if hasMAC {
		reply[0] |= mbx.FlagSuccess
		mbx.PutMAC(reply, rec.MAC)
	} else {
		reply[0] |= mbx.FlagFailure
	}
	reply[3] = s.dev.MulticastFilterType()
	if err := s.tr.Write(vf, reply); err != nil {
		vfLog(vf).WithError(err).Warn("reset reply not delivered")
	}
}

// applyLinkLocked programs the VF's transmit and receive enables from its
// resolved link state and the frame-size parity rules.
func (s *Supervisor) applyLinkLocked(vf int) {
	rec := s.vfs[vf]
	s.dev.SetVFTraffic(vf, rec.LinkEnabled)
	if !rec.LinkEnabled {
		return
	}
	if s.caps.FrameSizeParity && s.dev.PFMaxFrame() > ethFrameLen && !versionHandlesJumbo(rec.Version) {
		// A legacy VF cannot size its buffers for our jumbo frames;
		// receiving would corrupt its rings.
		s.dev.SetVFReceive(vf, false)
		vfLog(vf).Info("receive disabled: jumbo frames with legacy VF")
	}
}

// versionHandlesJumbo reports whether the negotiated revision lets the VF
// size its receive buffers independently of the supervisor.
func versionHandlesJumbo(v mbx.Version) bool {
	switch v {
	case mbx.Version11, mbx.Version12, mbx.Version13:
		return true
	}
	return false
}

// clearMacvlans drops every secondary address the VF installed.
func (s *Supervisor) clearMacvlans(vf int) {
	for _, addr := range s.macvlans.ClearVF(vf) {
		s.macs.Del(addr, vf)
	}
}

// syncMulticast rebuilds the shared hash table from every contributor's
// list and writes it through.
func (s *Supervisor) syncMulticast() {
	lists := make([][]uint16, 0, s.numVFs+1)
	for _, rec := range s.vfs {
		lists = append(lists, rec.MulticastHashes)
	}
	lists = append(lists, s.cfg.PFMulticast)
	s.mta.Rebuild(lists...)
	s.dev.WriteMulticastTable(s.mta.Shadow())
}

// QuarantineVF disables a VF's datapath until it completes a fresh reset
// handshake. Used on malicious-driver detection and available to the
// administrator.
func (s *Supervisor) QuarantineVF(vf int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.checkVF(vf); err != nil {
		return err
	}
	s.quarantineLocked(vf)
	return nil
}

func (s *Supervisor) quarantineLocked(vf int) {
	vfLog(vf).Warn("quarantining VF pending reset handshake")
	s.faults.RestoreVF(vf)
	s.vfs[vf].ClearToSend = false
	s.pingLocked(vf)
}

// PingAll nudges every VF to renegotiate, typically after a supervisor
// restart or a device-wide reconfiguration.
func (s *Supervisor) PingAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for vf := 0; vf < s.numVFs; vf++ {
		s.pingLocked(vf)
	}
}

// pingLocked posts a control message. The clear-to-send flag mirrors the
// VF's gate so an up-to-date VF ignores the nudge while a stale one comes
// back through reset.
func (s *Supervisor) pingLocked(vf int) {
	msg := mbx.OpControl
	if s.vfs[vf].ClearToSend {
		msg |= mbx.FlagClearToSend
	}
	s.pings++
	if err := s.tr.Write(vf, []uint32{msg}); err != nil {
		vfLog(vf).WithError(err).Debug("ping not delivered")
	}
}

// forceHandshake closes the VF's gate and pings it; the VF's next useful
// action is a reset handshake that picks up the new administrative state.
func (s *Supervisor) forceHandshake(vf int) {
	s.vfs[vf].ClearToSend = false
	s.pingLocked(vf)
}
