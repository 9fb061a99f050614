package mbx

import (
	"fmt"
	"sync"
)

// SimTransport is an in-memory mailbox fabric. The supervisor drives the
// Transport side; tests and the simulator drive the VF side. Like the real
// channel it holds a single message per direction per VF: posting a new one
// overwrites an unconsumed predecessor.
type SimTransport struct {
	mu  sync.Mutex
	vfs []simSlot
}

type simSlot struct {
	toPF       []uint32
	msgPending bool

	toVF         []uint32
	replyPending bool

	resetPending bool
	ackPending   bool
}

// NewSimTransport creates a fabric with n VF mailboxes.
func NewSimTransport(n int) *SimTransport {
	return &SimTransport{vfs: make([]simSlot, n)}
}

func (t *SimTransport) check(vf int) error {
	if vf < 0 || vf >= len(t.vfs) {
		return fmt.Errorf("mailbox %d out of range", vf)
	}
	return nil
}

func checkSize(msg []uint32) error {
	if len(msg) > MailboxWords {
		return fmt.Errorf("message of %d words exceeds the %d-word mailbox", len(msg), MailboxWords)
	}
	return nil
}

// CheckForReset implements Transport.
func (t *SimTransport) CheckForReset(vf int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.check(vf) != nil || !t.vfs[vf].resetPending {
		return false
	}
	t.vfs[vf].resetPending = false
	return true
}

// CheckForMessage implements Transport.
func (t *SimTransport) CheckForMessage(vf int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.check(vf) == nil && t.vfs[vf].msgPending
}

// CheckForAck implements Transport.
func (t *SimTransport) CheckForAck(vf int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.check(vf) != nil || !t.vfs[vf].ackPending {
		return false
	}
	t.vfs[vf].ackPending = false
	return true
}

// Read implements Transport.
func (t *SimTransport) Read(vf int) ([]uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(vf); err != nil {
		return nil, err
	}
	if !t.vfs[vf].msgPending {
		return nil, fmt.Errorf("no message pending from vf %d", vf)
	}
	t.vfs[vf].msgPending = false
	msg := make([]uint32, len(t.vfs[vf].toPF))
	copy(msg, t.vfs[vf].toPF)
	return msg, nil
}

// Write implements Transport.
func (t *SimTransport) Write(vf int, msg []uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(vf); err != nil {
		return err
	}
	if err := checkSize(msg); err != nil {
		return err
	}
	t.vfs[vf].toVF = append([]uint32(nil), msg...)
	t.vfs[vf].replyPending = true
	return nil
}

// ClearMemory implements Transport.
func (t *SimTransport) ClearMemory(vf int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.check(vf) != nil {
		return
	}
	t.vfs[vf].toPF = nil
	t.vfs[vf].toVF = nil
	t.vfs[vf].msgPending = false
	t.vfs[vf].replyPending = false
}

// VFSend posts a message from the VF side. Messages that do not fit the
// mailbox are dropped, as the hardware has nowhere to put them.
func (t *SimTransport) VFSend(vf int, msg []uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.check(vf) != nil || checkSize(msg) != nil {
		return
	}
	t.vfs[vf].toPF = append([]uint32(nil), msg...)
	t.vfs[vf].msgPending = true
}

// VFReceive consumes the message the supervisor last wrote to the VF.
func (t *SimTransport) VFReceive(vf int) ([]uint32, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.check(vf) != nil || !t.vfs[vf].replyPending {
		return nil, false
	}
	t.vfs[vf].replyPending = false
	msg := make([]uint32, len(t.vfs[vf].toVF))
	copy(msg, t.vfs[vf].toVF)
	return msg, true
}

// SignalReset raises the VF's function-level reset signal.
func (t *SimTransport) SignalReset(vf int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.check(vf) == nil {
		t.vfs[vf].resetPending = true
	}
}

// SignalAck raises the VF's acknowledgement signal.
func (t *SimTransport) SignalAck(vf int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.check(vf) == nil {
		t.vfs[vf].ackPending = true
	}
}
