package mbx

import "fmt"

var opNames = map[uint32]string{
	OpReset:        "reset",
	OpSetMACAddr:   "set_mac_addr",
	OpSetMulticast: "set_multicast",
	OpSetVLAN:      "set_vlan",
	OpSetFrameSize: "set_frame_size",
	OpSetMacvlan:   "set_macvlan",
	OpNegotiateAPI: "negotiate_api",
	OpGetQueues:    "get_queues",
	OpGetReta:      "get_reta",
	OpGetRSSKey:    "get_rss_key",
	OpUpdateXcast:  "update_xcast",
	OpGetLinkState: "get_link_state",
	OpControl:      "control",
}

// OpName returns a stable lowercase name for an opcode, for logs and
// metric labels.
func OpName(op uint32) string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op_%#04x", op)
}
