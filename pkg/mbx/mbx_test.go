package mbx

import (
	"net"
	"testing"
)

func TestOpcodeAndInfo(t *testing.T) {
	word := OpSetVLAN | 1<<16 | FlagClearToSend
	if Opcode(word) != OpSetVLAN {
		t.Errorf("Opcode() = %#x, want %#x", Opcode(word), OpSetVLAN)
	}
	if Info(word) != 1 {
		t.Errorf("Info() = %d, want 1", Info(word))
	}
	if IsReply(word) {
		t.Error("clear-to-send alone should not mark a reply")
	}
	if !IsReply(word | FlagSuccess) {
		t.Error("success flag should mark a reply")
	}
	if !IsReply(word | FlagFailure) {
		t.Error("failure flag should mark a reply")
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	mac, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	reqs := []Request{
		ResetRequest{},
		SetMACRequest{Addr: mac},
		SetMulticastRequest{Hashes: []uint16{0x123, 0x456, 0x789}},
		SetVLANRequest{Add: true, VID: 100},
		SetVLANRequest{Add: false, VID: 0},
		SetFrameSizeRequest{MaxFrame: 9000},
		SetMacvlanRequest{Index: 1, Addr: mac},
		SetMacvlanRequest{Index: 0},
		NegotiateRequest{Version: Version13},
		GetQueuesRequest{},
		GetRetaRequest{},
		GetRSSKeyRequest{},
		UpdateXcastRequest{Mode: XcastPromisc},
		GetLinkStateRequest{},
	}
	for _, req := range reqs {
		words := EncodeRequest(req)
		if words == nil {
			t.Fatalf("EncodeRequest(%T) returned nil", req)
		}
		got, err := DecodeRequest(words)
		if err != nil {
			t.Fatalf("DecodeRequest(%T): %v", req, err)
		}
		if got.Opcode() != req.Opcode() {
			t.Errorf("opcode mismatch for %T: %#x != %#x", req, got.Opcode(), req.Opcode())
		}
	}
}

func TestDecodeMAC(t *testing.T) {
	mac, _ := net.ParseMAC("02:00:5e:10:20:30")
	words := EncodeRequest(SetMACRequest{Addr: mac})
	req, err := DecodeRequest(words)
	if err != nil {
		t.Fatal(err)
	}
	got := req.(SetMACRequest)
	if got.Addr.String() != mac.String() {
		t.Errorf("decoded MAC %s, want %s", got.Addr, mac)
	}
}

func TestDecodeMulticastClamp(t *testing.T) {
	hashes := make([]uint16, MaxMulticastEntries+10)
	for i := range hashes {
		hashes[i] = uint16(i)
	}
	words := EncodeRequest(SetMulticastRequest{Hashes: hashes})
	req, err := DecodeRequest(words)
	if err != nil {
		t.Fatal(err)
	}
	got := req.(SetMulticastRequest)
	if len(got.Hashes) != MaxMulticastEntries {
		t.Errorf("decoded %d hashes, want clamp to %d", len(got.Hashes), MaxMulticastEntries)
	}
	for i, h := range got.Hashes {
		if h != uint16(i) {
			t.Fatalf("hash %d = %#x, want %#x", i, h, i)
		}
	}
}

func TestDecodeUnknownOpcode(t *testing.T) {
	if _, err := DecodeRequest([]uint32{0x7f}); err == nil {
		t.Error("expected error for unknown opcode")
	}
	if _, err := DecodeRequest(nil); err == nil {
		t.Error("expected error for empty message")
	}
	if _, err := DecodeRequest([]uint32{OpSetVLAN}); err == nil {
		t.Error("expected error for truncated vlan message")
	}
}

func TestAckNack(t *testing.T) {
	ack := Ack(OpGetLinkState, 1)
	if Opcode(ack[0]) != OpGetLinkState {
		t.Errorf("ack opcode = %#x", Opcode(ack[0]))
	}
	if ack[0]&FlagSuccess == 0 || ack[0]&FlagClearToSend == 0 {
		t.Error("ack must carry success and clear-to-send flags")
	}
	if len(ack) != 2 || ack[1] != 1 {
		t.Errorf("ack payload = %v", ack[1:])
	}

	nack := Nack(OpSetVLAN)
	if len(nack) != 1 {
		t.Errorf("nack should be a single word, got %d", len(nack))
	}
	if nack[0]&FlagFailure == 0 || nack[0]&FlagClearToSend == 0 {
		t.Error("nack must carry failure and clear-to-send flags")
	}
}

func TestCapabilityMatrix(t *testing.T) {
	tests := []struct {
		v    Version
		op   uint32
		want bool
	}{
		{Version10, OpSetMACAddr, true},
		{Version10, OpGetQueues, false},
		{Version11, OpGetQueues, true},
		{Version20, OpGetQueues, true},
		{Version11, OpUpdateXcast, false},
		{Version12, OpUpdateXcast, true},
		{Version12, OpGetReta, true},
		{Version11, OpGetReta, false},
		{Version12, OpGetLinkState, true},
		{Version10, OpGetLinkState, false},
		{Version13, OpGetRSSKey, true},
	}
	for _, tt := range tests {
		if got := Supports(tt.v, tt.op); got != tt.want {
			t.Errorf("Supports(%s, %#x) = %v, want %v", tt.v, tt.op, got, tt.want)
		}
	}

	if SupportsPromisc(Version12) {
		t.Error("promiscuous mode should not be available at 1.2")
	}
	if !SupportsPromisc(Version13) {
		t.Error("promiscuous mode should be available at 1.3")
	}
	if Negotiable(Version20) {
		t.Error("2.0 must not be negotiable")
	}
	if !Negotiable(Version10) || !Negotiable(Version13) {
		t.Error("1.0-1.3 must be negotiable")
	}
}

func TestSimTransport(t *testing.T) {
	tr := NewSimTransport(2)

	if tr.CheckForMessage(0) {
		t.Error("no message should be pending initially")
	}
	tr.VFSend(0, []uint32{OpReset})
	if !tr.CheckForMessage(0) {
		t.Error("message should be pending after VFSend")
	}
	if tr.CheckForMessage(1) {
		t.Error("message must not leak across mailboxes")
	}
	msg, err := tr.Read(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msg) != 1 || msg[0] != OpReset {
		t.Errorf("Read() = %v", msg)
	}
	if tr.CheckForMessage(0) {
		t.Error("read must consume the message")
	}

	if err := tr.Write(0, Ack(OpReset)); err != nil {
		t.Fatal(err)
	}
	reply, ok := tr.VFReceive(0)
	if !ok {
		t.Fatal("expected a reply")
	}
	if Opcode(reply[0]) != OpReset {
		t.Errorf("reply opcode = %#x", Opcode(reply[0]))
	}
	if _, ok := tr.VFReceive(0); ok {
		t.Error("reply must be consumed exactly once")
	}

	tr.SignalReset(1)
	if !tr.CheckForReset(1) {
		t.Error("reset signal lost")
	}
	if tr.CheckForReset(1) {
		t.Error("reset signal must be consumed")
	}

	tr.SignalAck(0)
	if !tr.CheckForAck(0) {
		t.Error("ack signal lost")
	}

	tr.VFSend(1, []uint32{OpGetQueues})
	tr.ClearMemory(1)
	if tr.CheckForMessage(1) {
		t.Error("ClearMemory must drop the pending message")
	}
}

func TestSimTransportMailboxBound(t *testing.T) {
	tr := NewSimTransport(1)

	if err := tr.Write(0, make([]uint32, MailboxWords)); err != nil {
		t.Errorf("full-size write rejected: %v", err)
	}
	if err := tr.Write(0, make([]uint32, MailboxWords+1)); err == nil {
		t.Error("oversize write must be rejected")
	}

	tr.VFSend(0, make([]uint32, MailboxWords+1))
	if tr.CheckForMessage(0) {
		t.Error("oversize VF message must be dropped")
	}
}
