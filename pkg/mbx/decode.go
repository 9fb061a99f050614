package mbx

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Request is a decoded VF request. Decoding happens once at the boundary so
// every handler receives a typed payload instead of raw word offsets.
type Request interface {
	// Opcode returns the wire opcode the request arrived under; replies
	// must echo it.
	Opcode() uint32
}

// ResetRequest asks for a full per-VF state restoration.
type ResetRequest struct{}

// SetMACRequest assigns the VF's primary unicast address.
type SetMACRequest struct {
	Addr net.HardwareAddr
}

// SetMulticastRequest registers the VF's multicast hash list.
type SetMulticastRequest struct {
	Hashes []uint16
}

// SetVLANRequest adds or removes VLAN membership for the VF's pool.
type SetVLANRequest struct {
	Add bool
	VID uint16
}

// SetFrameSizeRequest sets the VF's maximum receive frame size.
type SetFrameSizeRequest struct {
	MaxFrame uint32
}

// SetMacvlanRequest manages the VF's secondary unicast filters. Index 0
// clears the list; a positive index installs a filter.
type SetMacvlanRequest struct {
	Index int
	Addr  net.HardwareAddr
}

// NegotiateRequest selects the mailbox protocol revision.
type NegotiateRequest struct {
	Version Version
}

// GetQueuesRequest asks for the VF's queue layout.
type GetQueuesRequest struct{}

// GetRetaRequest asks for the packed RSS indirection table.
type GetRetaRequest struct{}

// GetRSSKeyRequest asks for the RSS hash key.
type GetRSSKeyRequest struct{}

// UpdateXcastRequest changes the VF's reception mode.
type UpdateXcastRequest struct {
	Mode XcastMode
}

// GetLinkStateRequest asks for the administratively resolved link state.
type GetLinkStateRequest struct{}

func (ResetRequest) Opcode() uint32        { return OpReset }
func (SetMACRequest) Opcode() uint32       { return OpSetMACAddr }
func (SetMulticastRequest) Opcode() uint32 { return OpSetMulticast }
func (SetVLANRequest) Opcode() uint32      { return OpSetVLAN }
func (SetFrameSizeRequest) Opcode() uint32 { return OpSetFrameSize }
func (SetMacvlanRequest) Opcode() uint32   { return OpSetMacvlan }
func (NegotiateRequest) Opcode() uint32    { return OpNegotiateAPI }
func (GetQueuesRequest) Opcode() uint32    { return OpGetQueues }
func (GetRetaRequest) Opcode() uint32      { return OpGetReta }
func (GetRSSKeyRequest) Opcode() uint32    { return OpGetRSSKey }
func (UpdateXcastRequest) Opcode() uint32  { return OpUpdateXcast }
func (GetLinkStateRequest) Opcode() uint32 { return OpGetLinkState }

// DecodeRequest turns a raw message into a typed request. Unknown opcodes
// and truncated payloads return an error; the caller converts that into a
// single-word failure reply.
func DecodeRequest(words []uint32) (Request, error) {
	if len(words) == 0 {
		return nil, fmt.Errorf("empty message")
	}
	op := Opcode(words[0])
	switch op {
	case OpReset:
		return ResetRequest{}, nil
	case OpSetMACAddr:
		addr, err := macFromWords(words)
		if err != nil {
			return nil, err
		}
		return SetMACRequest{Addr: addr}, nil
	case OpSetMulticast:
		count := int(Info(words[0]))
		if count > MaxMulticastEntries {
			count = MaxMulticastEntries
		}
		if len(words) < 1+(count+1)/2 {
			return nil, fmt.Errorf("multicast message truncated: %d entries in %d words", count, len(words))
		}
		hashes := make([]uint16, count)
		for i := range hashes {
			w := words[1+i/2]
			if i%2 == 1 {
				w >>= 16
			}
			hashes[i] = uint16(w)
		}
		return SetMulticastRequest{Hashes: hashes}, nil
	case OpSetVLAN:
		if len(words) < 2 {
			return nil, fmt.Errorf("vlan message truncated")
		}
		return SetVLANRequest{
			Add: Info(words[0]) != 0,
			VID: uint16(words[1] & 0x0fff),
		}, nil
	case OpSetFrameSize:
		if len(words) < 2 {
			return nil, fmt.Errorf("frame size message truncated")
		}
		return SetFrameSizeRequest{MaxFrame: words[1]}, nil
	case OpSetMacvlan:
		index := int(Info(words[0]))
		var addr net.HardwareAddr
		if index > 0 {
			var err error
			addr, err = macFromWords(words)
			if err != nil {
				return nil, err
			}
		}
		return SetMacvlanRequest{Index: index, Addr: addr}, nil
	case OpNegotiateAPI:
		if len(words) < 2 {
			return nil, fmt.Errorf("negotiate message truncated")
		}
		return NegotiateRequest{Version: Version(words[1])}, nil
	case OpGetQueues:
		return GetQueuesRequest{}, nil
	case OpGetReta:
		return GetRetaRequest{}, nil
	case OpGetRSSKey:
		return GetRSSKeyRequest{}, nil
	case OpUpdateXcast:
		if len(words) < 2 {
			return nil, fmt.Errorf("xcast message truncated")
		}
		return UpdateXcastRequest{Mode: XcastMode(words[1])}, nil
	case OpGetLinkState:
		return GetLinkStateRequest{}, nil
	}
	return nil, fmt.Errorf("unknown opcode %#04x", op)
}

// macFromWords extracts the six address bytes that live in words 1-2.
func macFromWords(words []uint32) (net.HardwareAddr, error) {
	if len(words) < 3 {
		return nil, fmt.Errorf("address payload truncated")
	}
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:], words[1])
	binary.LittleEndian.PutUint32(buf[4:], words[2])
	addr := make(net.HardwareAddr, 6)
	copy(addr, buf[:6])
	return addr, nil
}

// PutMAC packs six address bytes into words 1-2 of a message buffer.
func PutMAC(words []uint32, addr net.HardwareAddr) {
	var buf [8]byte
	copy(buf[:6], addr)
	words[1] = binary.LittleEndian.Uint32(buf[0:])
	words[2] = binary.LittleEndian.Uint32(buf[4:])
}

// EncodeRequest is the inverse of DecodeRequest. It exists for VF-side test
// drivers and the simulator; the supervisor never sends requests.
func EncodeRequest(req Request) []uint32 {
	switch r := req.(type) {
	case ResetRequest:
		return []uint32{OpReset}
	case SetMACRequest:
		msg := make([]uint32, 3)
		msg[0] = OpSetMACAddr
		PutMAC(msg, r.Addr)
		return msg
	case SetMulticastRequest:
		msg := make([]uint32, 1+(len(r.Hashes)+1)/2)
		msg[0] = OpSetMulticast | uint32(len(r.Hashes))<<infoShift
		for i, h := range r.Hashes {
			msg[1+i/2] |= uint32(h) << (16 * uint(i%2))
		}
		return msg
	case SetVLANRequest:
		msg := []uint32{OpSetVLAN, uint32(r.VID)}
		if r.Add {
			msg[0] |= 1 << infoShift
		}
		return msg
	case SetFrameSizeRequest:
		return []uint32{OpSetFrameSize, r.MaxFrame}
	case SetMacvlanRequest:
		msg := make([]uint32, 3)
		msg[0] = OpSetMacvlan | uint32(r.Index)<<infoShift
		if r.Index > 0 {
			PutMAC(msg, r.Addr)
		}
		return msg
	case NegotiateRequest:
		return []uint32{OpNegotiateAPI, uint32(r.Version)}
	case GetQueuesRequest:
		return []uint32{OpGetQueues}
	case GetRetaRequest:
		return []uint32{OpGetReta}
	case GetRSSKeyRequest:
		return []uint32{OpGetRSSKey}
	case UpdateXcastRequest:
		return []uint32{OpUpdateXcast, uint32(r.Mode)}
	case GetLinkStateRequest:
		return []uint32{OpGetLinkState}
	}
	return nil
}

// Ack builds a success reply for the given opcode with an optional payload.
// Every reply carries the clear-to-send flag so the VF can tell "processed"
// apart from "channel open".
func Ack(op uint32, payload ...uint32) []uint32 {
	msg := make([]uint32, 1+len(payload))
	msg[0] = op | FlagSuccess | FlagClearToSend
	copy(msg[1:], payload)
	return msg
}

// Nack builds a single-word failure reply for the given opcode.
func Nack(op uint32) []uint32 {
	return []uint32{op | FlagFailure | FlagClearToSend}
}
