package programmer

import "fmt"

// MalformedRecordError indicates a structural violation of the record
// grammar, e.g. a missing start marker or a non-hex digit.
type MalformedRecordError struct {
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return "malformed hex record: " + e.Reason
}

// ChecksumError indicates that a record's checksum byte disagrees with the
// sum of its decoded fields.
type ChecksumError struct {
	Received byte
	Computed byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("record checksum mismatch: received 0x%02X, computed 0x%02X",
		e.Received, e.Computed)
}

// CapacityError indicates that the stream carries more data than the
// identified device can hold. Programming stops at the byte that crosses
// the boundary.
type CapacityError struct {
	Capacity uint16
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("program data exceeds device capacity of %d bytes", e.Capacity)
}
