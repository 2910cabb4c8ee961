package tpi

import (
	"math/bits"
	"testing"
)

// fakeTransport records every transfer the link makes and plays back a
// scripted sequence of response bytes, idling high once the script runs out.
type fakeTransport struct {
	sent []byte
	resp []byte
	idx  int
}

func (f *fakeTransport) Transfer(b byte) (byte, error) {
	f.sent = append(f.sent, b)
	if f.idx < len(f.resp) {
		r := f.resp[f.idx]
		f.idx++
		return r, nil
	}
	return 0xFF, nil
}

func (f *fakeTransport) SetReset(active bool) error { return nil }
func (f *fakeTransport) Close() error               { return nil }

// frameBytes packs a TPI frame carrying v, preceded by gap extra idle
// bits, into 8-bit transfer values (bit 0 is first on the wire).
func frameBytes(v byte, gap int) []byte {
	bitstream := make([]byte, 0, 32)
	for i := 0; i < gap; i++ {
		bitstream = append(bitstream, 1)
	}
	bitstream = append(bitstream, 0) // start
	for i := 0; i < 8; i++ {
		bitstream = append(bitstream, v>>i&1)
	}
	bitstream = append(bitstream, parity(v), 1, 1) // parity + stop bits
	for len(bitstream)%8 != 0 {
		bitstream = append(bitstream, 1)
	}

	out := make([]byte, 0, len(bitstream)/8)
	for i := 0; i < len(bitstream); i += 8 {
		var b byte
		for j := 0; j < 8; j++ {
			b |= bitstream[i+j] << j
		}
		out = append(out, b)
	}
	return out
}

func TestSendByteEncoding(t *testing.T) {
	tests := []struct {
		name string
		data byte
		t1   byte
		t2   byte
	}{
		{"zero", 0x00, 0x03, 0xF0},
		{"all ones, even weight", 0xFF, 0xFB, 0xF7},
		{"single bit, odd weight", 0x01, 0x0B, 0xF8},
		{"mixed, even weight", 0x5A, 0xD3, 0xF2},
		{"high bits, odd weight", 0xE0, 0x03, 0xFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := &fakeTransport{}
			l := NewLink(ft)

			if err := l.SendByte(tt.data); err != nil {
				t.Fatal(err)
			}

			if len(ft.sent) != 2 {
				t.Fatalf("sent %d transfers, want 2", len(ft.sent))
			}
			if ft.sent[0] != tt.t1 || ft.sent[1] != tt.t2 {
				t.Errorf("SendByte(0x%02X) = [0x%02X 0x%02X], want [0x%02X 0x%02X]",
					tt.data, ft.sent[0], ft.sent[1], tt.t1, tt.t2)
			}
		})
	}
}

func TestSendByteParity(t *testing.T) {
	for v := 0; v < 256; v++ {
		ft := &fakeTransport{}
		l := NewLink(ft)

		if err := l.SendByte(byte(v)); err != nil {
			t.Fatal(err)
		}

		got := ft.sent[1] >> 3 & 1
		want := byte(bits.OnesCount8(byte(v)) % 2)
		if got != want {
			t.Fatalf("parity bit for 0x%02X = %d, want %d", v, got, want)
		}
	}
}

func TestReceiveByteRealignment(t *testing.T) {
	for _, gap := range []int{0, 3, 7} {
		ft := &fakeTransport{resp: frameBytes(0x5A, gap)}
		l := NewLink(ft)

		got, err := l.ReceiveByte()
		if err != nil {
			t.Fatal(err)
		}
		if got != 0x5A {
			t.Errorf("gap %d: ReceiveByte() = 0x%02X, want 0x5A", gap, got)
		}
	}
}

func TestReceiveByteSkipsIdleTransfers(t *testing.T) {
	// two whole transfers of idle before the frame
	resp := append([]byte{0xFF, 0xFF}, frameBytes(0xC4, 2)...)
	ft := &fakeTransport{resp: resp}
	l := NewLink(ft)

	got, err := l.ReceiveByte()
	if err != nil {
		t.Fatal(err)
	}
	if got != 0xC4 {
		t.Errorf("ReceiveByte() = 0x%02X, want 0xC4", got)
	}
}

// Round trip: the two transfers SendByte emits are themselves a valid
// frame, so feeding them back through ReceiveByte must reproduce the
// original byte for every value.
func TestCodecRoundTrip(t *testing.T) {
	for v := 0; v < 256; v++ {
		tx := &fakeTransport{}
		if err := NewLink(tx).SendByte(byte(v)); err != nil {
			t.Fatal(err)
		}

		rx := &fakeTransport{resp: tx.sent}
		got, err := NewLink(rx).ReceiveByte()
		if err != nil {
			t.Fatal(err)
		}
		if got != byte(v) {
			t.Fatalf("round trip of 0x%02X gave 0x%02X", v, got)
		}
	}
}

// decodeFrames unpacks pairs of sent transfers back into protocol bytes.
func decodeFrames(t *testing.T, sent []byte) []byte {
	t.Helper()
	if len(sent)%2 != 0 {
		t.Fatalf("odd transfer count %d", len(sent))
	}

	out := make([]byte, 0, len(sent)/2)
	for i := 0; i < len(sent); i += 2 {
		out = append(out, sent[i]>>3|sent[i+1]<<5)
	}
	return out
}

func TestSetPointer(t *testing.T) {
	ft := &fakeTransport{}
	l := NewLink(ft)

	if err := l.SetPointer(0x4002); err != nil {
		t.Fatal(err)
	}

	got := decodeFrames(t, ft.sent)
	want := []byte{0x68, 0x02, 0x69, 0x40}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frame %d = 0x%02X, want 0x%02X", i, got[i], want[i])
		}
	}

	if l.Pointer() != 0x4002 {
		t.Errorf("pointer mirror = 0x%04X, want 0x4002", l.Pointer())
	}
}

func TestStoreNextAdvancesPointer(t *testing.T) {
	ft := &fakeTransport{}
	l := NewLink(ft)

	if err := l.SetPointer(0x4000); err != nil {
		t.Fatal(err)
	}
	if err := l.StoreNext(0xAB); err != nil {
		t.Fatal(err)
	}

	frames := decodeFrames(t, ft.sent)
	if frames[4] != 0x64 || frames[5] != 0xAB {
		t.Errorf("store frames = [0x%02X 0x%02X], want [0x64 0xAB]", frames[4], frames[5])
	}
	if l.Pointer() != 0x4001 {
		t.Errorf("pointer mirror = 0x%04X, want 0x4001", l.Pointer())
	}
}

func TestLoadNext(t *testing.T) {
	// two don't-care responses for the opcode transfers, then the frame
	resp := append([]byte{0xFF, 0xFF}, frameBytes(0x1E, 1)...)
	ft := &fakeTransport{resp: resp}
	l := NewLink(ft)

	got, err := l.LoadNext()
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x1E {
		t.Errorf("LoadNext() = 0x%02X, want 0x1E", got)
	}
	if l.Pointer() != 1 {
		t.Errorf("pointer mirror = %d, want 1", l.Pointer())
	}

	if op := ft.sent[0]>>3 | ft.sent[1]<<5; op != 0x24 {
		t.Errorf("opcode = 0x%02X, want 0x24", op)
	}
}

func TestIOOpcodeEncoding(t *testing.T) {
	tests := []struct {
		op   byte
		addr byte
		want byte
	}{
		{opSIN, 0x32, 0x72},  // NVM status register
		{opSOUT, 0x33, 0xF3}, // NVM command register
		{opSIN, 0x00, 0x10},
		{opSOUT, 0x0F, 0x9F},
	}

	for _, tt := range tests {
		if got := ioOpcode(tt.op, tt.addr); got != tt.want {
			t.Errorf("ioOpcode(0x%02X, 0x%02X) = 0x%02X, want 0x%02X",
				tt.op, tt.addr, got, tt.want)
		}
	}
}

func TestSendKeyByteOrder(t *testing.T) {
	ft := &fakeTransport{}
	l := NewLink(ft)

	if err := l.SendKey(0x1289AB45CDD888FF); err != nil {
		t.Fatal(err)
	}

	got := decodeFrames(t, ft.sent)
	want := []byte{0xE0, 0xFF, 0x88, 0xD8, 0xCD, 0x45, 0xAB, 0x89, 0x12}
	if len(got) != len(want) {
		t.Fatalf("sent %d frames, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d = 0x%02X, want 0x%02X", i, got[i], want[i])
		}
	}
}

func TestWriteControl(t *testing.T) {
	ft := &fakeTransport{}
	l := NewLink(ft)

	if err := l.WriteControl(RegTPIPCR, 0x07); err != nil {
		t.Fatal(err)
	}

	got := decodeFrames(t, ft.sent)
	if got[0] != 0xC2 || got[1] != 0x07 {
		t.Errorf("frames = [0x%02X 0x%02X], want [0xC2 0x07]", got[0], got[1])
	}
}
