package mbx

// The compatibility matrix between negotiated protocol revisions and
// opcodes lives here rather than inline in the dispatcher so it can be
// audited and tested on its own.

// negotiable lists the revisions a VF may select through OpNegotiateAPI.
var negotiable = map[Version]bool{
	Version10: true,
	Version11: true,
	Version12: true,
	Version13: true,
}

// opVersions maps gated opcodes to the revisions that allow them. Opcodes
// absent from the table are available at every revision.
var opVersions = map[uint32]map[Version]bool{
	OpGetQueues: {
		Version11: true,
		Version12: true,
		Version13: true,
		Version20: true,
	},
	OpGetReta: {
		Version12: true,
		Version13: true,
	},
	OpGetRSSKey: {
		Version12: true,
		Version13: true,
	},
	OpUpdateXcast: {
		Version12: true,
		Version13: true,
	},
	OpGetLinkState: {
		Version12: true,
		Version13: true,
	},
}

// Negotiable reports whether a VF may select the given revision.
func Negotiable(v Version) bool { return negotiable[v] }

// Supports reports whether the negotiated revision permits the opcode.
func Supports(v Version, op uint32) bool {
	gate, gated := opVersions[op]
	if !gated {
		return true
	}
	return gate[v]
}

// SupportsPromisc reports whether the revision may request promiscuous
// reception. Revision 1.2 accepts the opcode but not this mode.
func SupportsPromisc(v Version) bool { return v == Version13 }
