// Package mbx implements the fixed-size mailbox protocol spoken between the
// physical function and its virtual functions.
//
// A message is a short sequence of 32-bit words. Word 0 carries the opcode in
// its low 16 bits, opcode-specific info in bits 16-23, and the message type
// flags in the top bits. The remaining words carry the payload. Each side
// holds at most one unconsumed message per direction per VF; there is no
// queueing and no retransmission.
package mbx

// MailboxWords is the size of the per-VF mailbox in 32-bit words.
const MailboxWords = 16

// Message type flags carried in word 0. Success and Failure are mutually
// exclusive; their absence marks a request. ClearToSend may accompany any
// reply and tells the VF the channel is open for further requests.
const (
	FlagSuccess     uint32 = 0x80000000
	FlagFailure     uint32 = 0x40000000
	FlagClearToSend uint32 = 0x20000000
)

// Opcodes understood by the dispatcher. The values are stable wire
// identifiers and must not be renumbered.
const (
	OpReset        uint32 = 0x01
	OpSetMACAddr   uint32 = 0x02
	OpSetMulticast uint32 = 0x03
	OpSetVLAN      uint32 = 0x04
	OpSetFrameSize uint32 = 0x05
	OpSetMacvlan   uint32 = 0x06
	OpNegotiateAPI uint32 = 0x08
	OpGetQueues    uint32 = 0x09
	OpGetReta      uint32 = 0x0a
	OpGetRSSKey    uint32 = 0x0b
	OpUpdateXcast  uint32 = 0x0c
	OpGetLinkState uint32 = 0x10

	// OpControl is the supervisor-originated ping asking the VF to come
	// back through the reset handshake.
	OpControl uint32 = 0x0100
)

const (
	opcodeMask uint32 = 0x0000ffff
	infoMask   uint32 = 0x00ff0000
	infoShift         = 16
)

// Opcode extracts the opcode from a message head word.
func Opcode(word0 uint32) uint32 { return word0 & opcodeMask }

// Info extracts the opcode-specific info field from a message head word.
func Info(word0 uint32) uint32 { return (word0 & infoMask) >> infoShift }

// IsReply reports whether the head word already carries a success or failure
// flag, meaning the message is an answer rather than a request.
func IsReply(word0 uint32) bool {
	return word0&(FlagSuccess|FlagFailure) != 0
}

// Version identifies a negotiated mailbox protocol revision.
type Version uint32

const (
	Version10 Version = iota // initial revision, reset handshake only extras
	Version11                // queue configuration queries
	Version12                // RSS queries, reception mode, link state
	Version13                // promiscuous reception mode
	Version20                // aborted revision, honored for queue queries only
)

// String returns the dotted form used in logs.
func (v Version) String() string {
	switch v {
	case Version10:
		return "1.0"
	case Version11:
		return "1.1"
	case Version12:
		return "1.2"
	case Version13:
		return "1.3"
	case Version20:
		return "2.0"
	}
	return "unknown"
}

// XcastMode is a VF's requested reception breadth. The order matters: an
// untrusted VF is clamped to XcastMulti when requesting anything above it.
type XcastMode uint32

const (
	XcastNone XcastMode = iota
	XcastMulti
	XcastAllMulti
	XcastPromisc
)

func (m XcastMode) String() string {
	switch m {
	case XcastNone:
		return "none"
	case XcastMulti:
		return "multicast"
	case XcastAllMulti:
		return "allmulticast"
	case XcastPromisc:
		return "promiscuous"
	}
	return "invalid"
}

// Protocol limits.
const (
	// MaxMulticastEntries is the number of multicast hash values a VF may
	// register; entries beyond this are silently dropped.
	MaxMulticastEntries = 30

	// MaxJumboFrame is the largest frame size a VF may request.
	MaxJumboFrame = 9728

	// StdFrameLen is the standard ethernet frame length including FCS.
	// Anything above it counts as jumbo for the parity rules.
	StdFrameLen = 1518

	// RetaWords is the size of the packed indirection table reply: 128
	// two-bit entries, sixteen to a word.
	RetaWords = 8

	// RSSKeyWords is the size of the hash key reply (40 bytes).
	RSSKeyWords = 10

	// PermAddrReplyLen is the reset reply length: head word, six address
	// bytes in words 1-2, multicast filter type in word 3.
	PermAddrReplyLen = 4
)

// Transport moves mailbox words between the supervisor and one VF. The
// Check* methods consume the corresponding pending event. Implementations
// are synchronous and bounded; none of these calls may block on the peer.
type Transport interface {
	// CheckForReset reports and consumes a pending function-level reset
	// signal from the given VF.
	CheckForReset(vf int) bool
	// CheckForMessage reports whether the VF has posted a message.
	CheckForMessage(vf int) bool
	// CheckForAck reports and consumes a pending acknowledgement.
	CheckForAck(vf int) bool
	// Read consumes and returns the VF's pending message.
	Read(vf int) ([]uint32, error)
	// Write posts a message towards the VF, replacing any unconsumed one.
	Write(vf int, msg []uint32) error
	// ClearMemory zeroes the VF's mailbox memory.
	ClearMemory(vf int)
}
