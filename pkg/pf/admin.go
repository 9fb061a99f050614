package pf

import (
	"fmt"
	"net"

	"sriov-pf/pkg/filter"
)

// The administrative surface. Every state-affecting call here closes the
// target VF's clear-to-send gate and pings it, so the VF re-reads its
// configuration through a fresh reset handshake instead of running on a
// stale view.

// SetMAC assigns a VF's primary address administratively. The zero address
// removes the assignment, returning address control to the VF.
func (s *Supervisor) SetMAC(vf int, addr net.HardwareAddr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.checkVF(vf)
	if err != nil {
		return err
	}
	if filter.IsZeroAddr(addr) {
		if !rec.AdminMAC && filter.IsZeroAddr(rec.MAC) {
			return nil
		}
		if !filter.IsZeroAddr(rec.MAC) {
			s.macs.Del(rec.MAC, vf)
		}
		rec.MAC = make(net.HardwareAddr, 6)
		rec.AdminMAC = false
		vfLog(vf).Info("administrative address removed")
		s.forceHandshake(vf)
		return nil
	}
	if !filter.IsUnicastAddr(addr) {
		return fmt.Errorf("%w: %s is not unicast", ErrOutOfRange, addr)
	}
	if err := s.installPrimaryMAC(vf, addr); err != nil {
		return err
	}
	rec.AdminMAC = true
	vfLog(vf).WithField("mac", addr.String()).Info("administrative address assigned")
	s.forceHandshake(vf)
	return nil
}

// SetVLAN sets or clears a VF's administrative VLAN override. VID 0 with
// QoS 0 clears it. While an override is active the VF's own VLAN requests
// are denied and its untagged membership is revoked.
func (s *Supervisor) SetVLAN(vf int, vid uint16, qos uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.checkVF(vf)
	if err != nil {
		return err
	}
	if vid > 4094 || qos > 7 {
		return fmt.Errorf("%w: vlan %d qos %d", ErrOutOfRange, vid, qos)
	}
	if vid == rec.PortVLAN && qos == rec.PortQoS {
		return nil
	}
	if vid != 0 || qos != 0 {
		if rec.PortVLAN != 0 {
			// Replace, never stack: the old membership goes before the
			// new one is installed.
			s.dropPortVLAN(vf)
		}
		if err := s.vlans.Join(vid, vf); err != nil {
			// The old override is already gone; leave the VF on
			// untagged traffic rather than stranded.
			rec.PortVLAN = 0
			rec.PortQoS = 0
			return fmt.Errorf("%w: vlan %d", ErrNoSpace, vid)
		}
		s.vlans.Leave(0, vf)
		s.dev.SetDefaultVLAN(vf, vid, qos)
		s.dev.SetUntaggedAccept(vf, false)
		s.dev.SetDropEnable(vf, s.caps.HideVLAN)
		rec.PortVLAN = vid
		rec.PortQoS = qos
		vfLog(vf).WithFields(map[string]interface{}{
			"vlan": vid,
			"qos":  qos,
		}).Info("administrative VLAN assigned")
	} else {
		s.dropPortVLAN(vf)
		rec.PortVLAN = 0
		rec.PortQoS = 0
		vfLog(vf).Info("administrative VLAN removed")
	}
	s.forceHandshake(vf)
	return nil
}

// dropPortVLAN undoes the datapath side of an administrative VLAN and puts
// the VF back on untagged traffic.
func (s *Supervisor) dropPortVLAN(vf int) {
	rec := s.vfs[vf]
	if rec.PortVLAN != 0 {
		s.vlans.Leave(rec.PortVLAN, vf)
	}
	if err := s.vlans.Join(0, vf); err != nil {
		vfLog(vf).Warn("no table entry for untagged membership")
	}
	s.dev.ClearDefaultVLAN(vf)
	s.dev.SetUntaggedAccept(vf, true)
	s.dev.SetDropEnable(vf, false)
}

// SetTrust grants or revokes the VF's trusted status. Trust gates address
// overrides, secondary addresses, and the broader reception modes.
func (s *Supervisor) SetTrust(vf int, trusted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.checkVF(vf)
	if err != nil {
		return err
	}
	if rec.Trusted == trusted {
		return nil
	}
	rec.Trusted = trusted
	vfLog(vf).WithField("trusted", trusted).Info("trust changed")
	s.forceHandshake(vf)
	return nil
}

// SetSpoofCheck enables or disables source-address enforcement, including
// control-frame ethertype checks on capable devices.
func (s *Supervisor) SetSpoofCheck(vf int, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.checkVF(vf)
	if err != nil {
		return err
	}
	if rec.SpoofCheckEnabled == enabled {
		return nil
	}
	rec.SpoofCheckEnabled = enabled
	s.dev.SetAntiSpoof(vf, enabled)
	if s.caps.EthertypeAntiSpoof {
		s.dev.SetEthertypeAntiSpoof(vf, enabled)
	}
	vfLog(vf).WithField("spoof_check", enabled).Info("spoof checking changed")
	s.forceHandshake(vf)
	return nil
}

// SetRateLimit caps the VF's transmit rate in Mbps; zero removes the cap.
// Limits can only be programmed while the link is up at the rate-capable
// speed, and the speed is remembered so CheckRateLimit can invalidate the
// limits if the link renegotiates.
func (s *Supervisor) SetRateLimit(vf int, rateMbps int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.checkVF(vf)
	if err != nil {
		return err
	}
	if !s.dev.LinkUp() {
		return fmt.Errorf("%w: link is down", ErrInvalidState)
	}
	speed := s.dev.LinkMbps()
	if speed != RateLimitSpeedMbps {
		return fmt.Errorf("%w: rate limiting needs %d Mbps link, have %d",
			ErrInvalidState, RateLimitSpeedMbps, speed)
	}
	if rateMbps != 0 && (rateMbps <= 10 || rateMbps > speed) {
		return fmt.Errorf("%w: rate %d Mbps", ErrOutOfRange, rateMbps)
	}
	s.rateLinkMbps = speed
	rec.TxRateMbps = rateMbps
	s.dev.SetRate(vf, speed, rateMbps)
	vfLog(vf).WithField("rate_mbps", rateMbps).Info("transmit rate limit changed")
	s.forceHandshake(vf)
	return nil
}

// CheckRateLimit revalidates active rate limits against the current link
// speed. Call it on link transitions; limits programmed for a different
// speed are dropped.
func (s *Supervisor) CheckRateLimit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled || s.rateLinkMbps == 0 {
		return
	}
	if s.dev.LinkMbps() == s.rateLinkMbps {
		return
	}
	for vf, rec := range s.vfs {
		if rec.TxRateMbps != 0 {
			vfLog(vf).WithField("rate_mbps", rec.TxRateMbps).
				Warn("dropping rate limit after link speed change")
			rec.TxRateMbps = 0
			s.dev.SetRate(vf, 0, 0)
		}
	}
	s.rateLinkMbps = 0
}

// SetLinkState sets the VF's administrative link mode.
func (s *Supervisor) SetLinkState(vf int, state LinkState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.checkVF(vf)
	if err != nil {
		return err
	}
	switch state {
	case LinkAuto:
		rec.LinkEnabled = !s.dev.AdminDown()
	case LinkEnabled:
		rec.LinkEnabled = true
	case LinkDisabled:
		rec.LinkEnabled = false
	default:
		return fmt.Errorf("%w: link state %d", ErrOutOfRange, state)
	}
	rec.RequestedLink = state
	s.applyLinkLocked(vf)
	vfLog(vf).WithField("link", state.String()).Info("link state changed")
	s.forceHandshake(vf)
	return nil
}

// RefreshLinkStates re-resolves every auto-mode VF after the supervisor's
// own administrative state changes.
func (s *Supervisor) RefreshLinkStates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return
	}
	up := !s.dev.AdminDown()
	for vf, rec := range s.vfs {
		if rec.RequestedLink != LinkAuto || rec.LinkEnabled == up {
			continue
		}
		rec.LinkEnabled = up
		s.applyLinkLocked(vf)
		s.forceHandshake(vf)
	}
}

// SetRSSQuery grants or revokes the VF's permission to read the RSS hash
// key and indirection table.
func (s *Supervisor) SetRSSQuery(vf int, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.checkVF(vf)
	if err != nil {
		return err
	}
	if rec.RSSQueryEnabled == enabled {
		return nil
	}
	rec.RSSQueryEnabled = enabled
	vfLog(vf).WithField("rss_query", enabled).Info("RSS query permission changed")
	s.forceHandshake(vf)
	return nil
}
