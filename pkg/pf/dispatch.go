package pf

import (
	"fmt"

	"sriov-pf/pkg/filter"
	"sriov-pf/pkg/mbx"
)

// PollOnce runs one pass of the event loop: fault scan first, then at most
// one mailbox event per VF. All work is synchronous and bounded; the caller
// drives this from a ticker.
func (s *Supervisor) PollOnce() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return
	}

	for _, vf := range s.faults.CheckFaults() {
		if vf < 0 || vf >= s.numVFs {
			continue
		}
		s.faultHits++
		vfLog(vf).Warn("anomalous driver behavior detected")
		s.quarantineLocked(vf)
	}

	for vf := 0; vf < s.numVFs; vf++ {
		switch {
		case s.tr.CheckForReset(vf):
			// Function-level reset: the VF is gone until it raises the
			// mailbox handshake again.
			vfLog(vf).Debug("function-level reset")
			s.resetVFState(vf)
		case s.tr.CheckForMessage(vf):
			s.processMessage(vf)
		case s.tr.CheckForAck(vf):
			// The VF consumed our last message. If its gate is closed
			// this is the moment to tell it so.
			if !s.vfs[vf].ClearToSend {
				s.tr.Write(vf, []uint32{mbx.FlagFailure})
			}
		}
	}
}

func (s *Supervisor) processMessage(vf int) {
	words, err := s.tr.Read(vf)
	if err != nil {
		vfLog(vf).WithError(err).Debug("mailbox read failed")
		return
	}
	if len(words) == 0 {
		s.malformed++
		return
	}
	if mbx.IsReply(words[0]) {
		// An echo of one of our own replies; nothing to do.
		s.dropped++
		return
	}

	op := mbx.Opcode(words[0])
	s.countRequest(op)

	req, err := mbx.DecodeRequest(words)
	if err != nil {
		s.malformed++
		s.countFailure(op)
		vfLog(vf).WithError(err).Debug("rejecting malformed request")
		s.tr.Write(vf, mbx.Nack(op))
		return
	}

	if _, ok := req.(mbx.ResetRequest); ok {
		// Reset is always honored; it is how a VF opens the channel.
		s.handleResetRequest(vf)
		return
	}

	if !s.vfs[vf].ClearToSend {
		// The VF is working from stale state. A bare failure word, with
		// no flags the VF could mistake for an open channel, sends it
		// back through reset.
		s.notReady++
		s.tr.Write(vf, []uint32{op | mbx.FlagFailure})
		return
	}

	payload, err := s.dispatch(vf, req)
	if err != nil {
		s.countFailure(op)
		vfLog(vf).WithError(err).WithField("op", mbx.OpName(op)).Debug("request failed")
		s.tr.Write(vf, mbx.Nack(op))
		return
	}
	s.tr.Write(vf, mbx.Ack(op, payload...))
}

// dispatch routes a decoded request to its handler. Handlers return the
// reply payload; any error becomes a single-word failure.
func (s *Supervisor) dispatch(vf int, req mbx.Request) ([]uint32, error) {
	switch r := req.(type) {
	case mbx.SetMACRequest:
		return nil, s.vfSetMAC(vf, r)
	case mbx.SetMulticastRequest:
		return nil, s.vfSetMulticast(vf, r)
	case mbx.SetVLANRequest:
		return nil, s.vfSetVLAN(vf, r)
	case mbx.SetFrameSizeRequest:
		return nil, s.vfSetFrameSize(vf, r)
	case mbx.SetMacvlanRequest:
		return nil, s.vfSetMacvlan(vf, r)
	case mbx.NegotiateRequest:
		return s.vfNegotiate(vf, r)
	case mbx.GetQueuesRequest:
		return s.vfGetQueues(vf)
	case mbx.GetRetaRequest:
		return s.vfGetReta(vf)
	case mbx.GetRSSKeyRequest:
		return s.vfGetRSSKey(vf)
	case mbx.UpdateXcastRequest:
		return s.vfUpdateXcast(vf, r)
	case mbx.GetLinkStateRequest:
		return s.vfGetLinkState(vf)
	}
	return nil, fmt.Errorf("%w: %T", ErrProtocol, req)
}

func (s *Supervisor) vfSetMAC(vf int, r mbx.SetMACRequest) error {
	rec := s.vfs[vf]
	if !filter.IsUnicastAddr(r.Addr) {
		return fmt.Errorf("%w: %s is not unicast", ErrDenied, r.Addr)
	}
	if rec.AdminMAC && !rec.Trusted && !macEqual(rec.MAC, r.Addr) {
		vfLog(vf).WithField("mac", r.Addr.String()).
			Warn("untrusted VF attempted to override administrative address")
		return ErrDenied
	}
	return s.installPrimaryMAC(vf, r.Addr)
}

// installPrimaryMAC swaps the VF's primary address filter.
func (s *Supervisor) installPrimaryMAC(vf int, addr []byte) error {
	rec := s.vfs[vf]
	if !filter.IsZeroAddr(rec.MAC) {
		s.macs.Del(rec.MAC, vf)
	}
	if err := s.macs.Add(addr, vf); err != nil {
		return fmt.Errorf("%w: primary address filter", ErrNoSpace)
	}
	rec.MAC = append(rec.MAC[:0], addr...)
	return nil
}

func (s *Supervisor) vfSetMulticast(vf int, r mbx.SetMulticastRequest) error {
	rec := s.vfs[vf]
	rec.MulticastHashes = append(rec.MulticastHashes[:0], r.Hashes...)
	s.syncMulticast()
	return nil
}

func (s *Supervisor) vfSetVLAN(vf int, r mbx.SetVLANRequest) error {
	rec := s.vfs[vf]
	if rec.PortVLAN != 0 || s.cfg.TrafficClasses > 1 {
		// VLAN usage is owned by the administrator in these modes.
		return ErrDenied
	}
	if r.VID == 0 {
		// Untagged membership is managed by the supervisor; requests
		// for it are accepted and ignored.
		return nil
	}
	if r.Add {
		if err := s.vlans.Join(r.VID, vf); err != nil {
			return fmt.Errorf("%w: vlan %d", ErrNoSpace, r.VID)
		}
		return nil
	}
	s.vlans.Leave(r.VID, vf)
	return nil
}

func (s *Supervisor) vfSetFrameSize(vf int, r mbx.SetFrameSizeRequest) error {
	rec := s.vfs[vf]
	if r.MaxFrame > mbx.MaxJumboFrame {
		return fmt.Errorf("%w: frame size %d", ErrOutOfRange, r.MaxFrame)
	}
	if s.caps.FrameSizeParity {
		// A legacy VF cannot size its buffers past the standard frame,
		// and the supervisor running jumbo breaks it regardless of what
		// it asks for. Revision 1.1+ VFs size their own buffers and are
		// exempt.
		mismatch := false
		if !versionHandlesJumbo(rec.Version) {
			mismatch = s.dev.PFMaxFrame() > ethFrameLen || r.MaxFrame > mbx.StdFrameLen
		}
		s.dev.SetVFReceive(vf, rec.LinkEnabled && !mismatch)
		if mismatch {
			return fmt.Errorf("%w: frame size %d conflicts with supervisor", ErrOutOfRange, r.MaxFrame)
		}
	}
	if int(r.MaxFrame) > s.dev.MaxFrameSize() {
		s.dev.SetMaxFrameSize(int(r.MaxFrame))
	}
	return nil
}

func (s *Supervisor) vfSetMacvlan(vf int, r mbx.SetMacvlanRequest) error {
	rec := s.vfs[vf]
	if r.Index > 0 && rec.AdminMAC && !rec.Trusted {
		vfLog(vf).Warn("untrusted VF attempted to register a secondary address")
		return ErrDenied
	}
	if r.Index <= 1 {
		s.clearMacvlans(vf)
	}
	if r.Index == 0 {
		return nil
	}
	if !filter.IsUnicastAddr(r.Addr) {
		return fmt.Errorf("%w: %s is not unicast", ErrDenied, r.Addr)
	}
	if rec.SpoofCheckEnabled {
		// Source checking cannot hold once the VF transmits from
		// multiple addresses.
		s.dev.SetAntiSpoof(vf, false)
	}
	if err := s.macs.Add(r.Addr, vf); err != nil {
		return fmt.Errorf("%w: secondary address filter", ErrNoSpace)
	}
	if err := s.macvlans.Assign(vf, r.Addr); err != nil {
		s.macs.Del(r.Addr, vf)
		return fmt.Errorf("%w: macvlan pool", ErrNoSpace)
	}
	return nil
}

func (s *Supervisor) vfNegotiate(vf int, r mbx.NegotiateRequest) ([]uint32, error) {
	rec := s.vfs[vf]
	if !mbx.Negotiable(r.Version) {
		return nil, fmt.Errorf("%w: revision %d", ErrDenied, r.Version)
	}
	rec.Version = r.Version
	vfLog(vf).WithField("version", r.Version.String()).Debug("negotiated protocol revision")
	return []uint32{uint32(r.Version)}, nil
}

func (s *Supervisor) vfGetQueues(vf int) ([]uint32, error) {
	rec := s.vfs[vf]
	if !mbx.Supports(rec.Version, mbx.OpGetQueues) {
		return nil, fmt.Errorf("%w: queue query at revision %s", ErrUnsupported, rec.Version)
	}
	queues := uint32(s.dev.QueuesPerPool())
	var vlanStrip, defQueue uint32
	switch {
	case s.cfg.TrafficClasses > 1:
		vlanStrip = uint32(s.cfg.TrafficClasses)
		defQueue = tcForPriority(s.cfg.DefaultUserPriority, s.cfg.TrafficClasses)
	case rec.PortVLAN != 0:
		vlanStrip = 1
	}
	return []uint32{queues, queues, vlanStrip, defQueue}, nil
}

func (s *Supervisor) vfGetReta(vf int) ([]uint32, error) {
	rec := s.vfs[vf]
	if !mbx.Supports(rec.Version, mbx.OpGetReta) {
		return nil, fmt.Errorf("%w: indirection table at revision %s", ErrUnsupported, rec.Version)
	}
	if !rec.RSSQueryEnabled {
		return nil, fmt.Errorf("%w: RSS query not granted", ErrPermissionDenied)
	}
	// 128 two-bit entries packed sixteen to a word.
	out := make([]uint32, mbx.RetaWords)
	for i, e := range s.reta {
		out[i/16] |= uint32(e&0x3) << uint((i%16)*2)
	}
	return out, nil
}

func (s *Supervisor) vfGetRSSKey(vf int) ([]uint32, error) {
	rec := s.vfs[vf]
	if !mbx.Supports(rec.Version, mbx.OpGetRSSKey) {
		return nil, fmt.Errorf("%w: hash key at revision %s", ErrUnsupported, rec.Version)
	}
	if !rec.RSSQueryEnabled {
		return nil, fmt.Errorf("%w: RSS query not granted", ErrPermissionDenied)
	}
	out := make([]uint32, mbx.RSSKeyWords)
	for i, b := range s.rssKey {
		out[i/4] |= uint32(b) << uint((i%4)*8)
	}
	return out, nil
}

func (s *Supervisor) vfUpdateXcast(vf int, r mbx.UpdateXcastRequest) ([]uint32, error) {
	rec := s.vfs[vf]
	if !mbx.Supports(rec.Version, mbx.OpUpdateXcast) {
		return nil, fmt.Errorf("%w: reception mode at revision %s", ErrUnsupported, rec.Version)
	}
	mode := r.Mode
	if mode > mbx.XcastPromisc {
		return nil, fmt.Errorf("%w: reception mode %d", ErrUnsupported, uint32(mode))
	}
	if mode == mbx.XcastPromisc && !mbx.SupportsPromisc(rec.Version) {
		return nil, fmt.Errorf("%w: promiscuous at revision %s", ErrUnsupported, rec.Version)
	}
	if mode > mbx.XcastMulti && !rec.Trusted {
		// Clamp rather than fail: the VF learns its granted mode from
		// the reply payload.
		mode = mbx.XcastMulti
	}
	if mode == mbx.XcastPromisc {
		if !s.caps.PromiscXcast {
			return nil, fmt.Errorf("%w: promiscuous reception", ErrUnsupported)
		}
		if !s.dev.PFPromiscuous() {
			return nil, fmt.Errorf("%w: supervisor not promiscuous", ErrPermissionDenied)
		}
	}
	if rec.XcastMode != mode {
		s.dev.SetReceiveMode(vf, mode)
		rec.XcastMode = mode
		vfLog(vf).WithField("mode", mode.String()).Debug("reception mode changed")
	}
	return []uint32{uint32(mode)}, nil
}

func (s *Supervisor) vfGetLinkState(vf int) ([]uint32, error) {
	rec := s.vfs[vf]
	if !mbx.Supports(rec.Version, mbx.OpGetLinkState) {
		return nil, fmt.Errorf("%w: link state at revision %s", ErrUnsupported, rec.Version)
	}
	var up uint32
	if rec.LinkEnabled && s.dev.LinkUp() {
		up = 1
	}
	return []uint32{up}, nil
}
