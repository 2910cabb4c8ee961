package nvm

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/TaeronKW/tpiflash/tpi"
)

// mockLink records every register operation as a readable string and
// plays back scripted read results.
type mockLink struct {
	ops       []string
	csReads   []byte // results for ReadControl, then zeros
	ioReads   []byte // results for ReadIO, then zeros
	loads     []byte // results for LoadNext, then 0xFF
	stuckBusy bool   // NVMCSR reports busy forever
}

func (m *mockLink) record(format string, args ...interface{}) {
	m.ops = append(m.ops, fmt.Sprintf(format, args...))
}

func pop(queue *[]byte, def byte) byte {
	if len(*queue) == 0 {
		return def
	}
	b := (*queue)[0]
	*queue = (*queue)[1:]
	return b
}

func (m *mockLink) SetPointer(addr uint16) error {
	m.record("ptr %04X", addr)
	return nil
}

func (m *mockLink) LoadNext() (byte, error) {
	b := pop(&m.loads, 0xFF)
	m.record("ld+")
	return b, nil
}

func (m *mockLink) StoreNext(b byte) error {
	m.record("st+ %02X", b)
	return nil
}

func (m *mockLink) ReadIO(addr byte) (byte, error) {
	m.record("in %02X", addr)
	if m.stuckBusy {
		return statusBusy, nil
	}
	return pop(&m.ioReads, 0x00), nil
}

func (m *mockLink) WriteIO(addr, val byte) error {
	m.record("out %02X %02X", addr, val)
	return nil
}

func (m *mockLink) ReadControl(addr byte) (byte, error) {
	m.record("ldcs %02X", addr)
	return pop(&m.csReads, 0x00), nil
}

func (m *mockLink) WriteControl(addr, val byte) error {
	m.record("stcs %02X %02X", addr, val)
	return nil
}

func (m *mockLink) SendKey(key uint64) error {
	m.record("key %016X", key)
	return nil
}

func (m *mockLink) Idle() error {
	m.record("idle")
	return nil
}

func assertOps(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("op count = %d, want %d\ngot:  %v\nwant: %v", len(got), len(want), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("op %d = %q, want %q\ngot:  %v", i, got[i], want[i], got)
		}
	}
}

func TestEnable(t *testing.T) {
	// first poll still locked, second reports NVMEN
	m := &mockLink{csReads: []byte{0x00, 0x02}}
	e := New(m)

	if err := e.Enable(); err != nil {
		t.Fatal(err)
	}

	assertOps(t, m.ops, []string{
		"stcs 02 07",
		"key 1289AB45CDD888FF",
		"ldcs 00",
		"ldcs 00",
	})
}

func TestEnableTimeout(t *testing.T) {
	m := &mockLink{} // NVMEN never comes up
	e := New(m)
	e.EnableTimeout = 5 * time.Millisecond

	err := e.Enable()
	if !errors.Is(err, tpi.ErrTimeout) {
		t.Fatalf("Enable() = %v, want tpi.ErrTimeout", err)
	}
}

func TestChipErase(t *testing.T) {
	// busy once, then ready
	m := &mockLink{ioReads: []byte{0x80, 0x00}}
	e := New(m)

	if err := e.ChipErase(); err != nil {
		t.Fatal(err)
	}

	assertOps(t, m.ops, []string{
		"ptr 4001", // erase addresses the high byte of the first word
		"out 33 10",
		"st+ AA", "st+ AA", "st+ AA", "st+ AA",
		"in 32",
		"in 32",
	})
}

func TestSectionErase(t *testing.T) {
	m := &mockLink{}
	e := New(m)

	if err := e.SectionErase(0x3F40); err != nil {
		t.Fatal(err)
	}

	assertOps(t, m.ops, []string{
		"ptr 3F41",
		"out 33 14",
		"st+ AA", "st+ AA",
		"in 32",
	})
}

func TestBusyTimeout(t *testing.T) {
	m := &mockLink{stuckBusy: true}
	e := New(m)
	e.BusyTimeout = 5 * time.Millisecond

	err := e.ChipErase()
	if !errors.Is(err, tpi.ErrTimeout) {
		t.Fatalf("ChipErase() = %v, want tpi.ErrTimeout", err)
	}
}

func TestProgramWords(t *testing.T) {
	data := []byte{0x11, 0x22, 0x33, 0x44}
	m := &mockLink{loads: data}
	e := New(m)

	if err := e.ProgramWords(0x4010, data); err != nil {
		t.Fatal(err)
	}

	assertOps(t, m.ops, []string{
		"ptr 4010",
		"out 33 1D",
		"st+ 11", "st+ 22",
		"idle", "idle",
		"st+ 33", "st+ 44",
		"in 32",
		"out 33 00",
		"ptr 4010",
		"ld+", "ld+", "ld+", "ld+",
	})
}

func TestProgramWordsRejectsOddLength(t *testing.T) {
	e := New(&mockLink{})

	if err := e.ProgramWords(0x4000, []byte{0x01}); err == nil {
		t.Fatal("expected error for odd-length group")
	}
	if err := e.ProgramWords(0x4000, nil); err == nil {
		t.Fatal("expected error for empty group")
	}
}

func TestProgramWordsVerifyMismatch(t *testing.T) {
	data := []byte{0x11, 0x22}
	// read-back differs in the second byte
	m := &mockLink{loads: []byte{0x11, 0x00}}
	e := New(m)

	err := e.ProgramWords(0x4004, data)

	var verr *VerifyError
	if !errors.As(err, &verr) {
		t.Fatalf("ProgramWords() = %v, want VerifyError", err)
	}
	if verr.Address != 0x4005 || verr.Expected != 0x22 || verr.Actual != 0x00 {
		t.Errorf("VerifyError = %+v, want {Address:0x4005 Expected:0x22 Actual:0x00}", verr)
	}
}
