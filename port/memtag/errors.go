package memtag

import (
	"errors"
	"fmt"

	"github.com/eclipse-openj9/openj9-omr-sub008/port/vmem"
)

var (
	// ErrCorrupted is matched by every CorruptionError.
	ErrCorrupted = errors.New("memtag: corrupted allocation")

	// ErrBadTag indicates a tag that does not validate with the expected eyecatcher.
	ErrBadTag = errors.New("memtag: tag does not validate")
)

// Reason classifies a corruption.
type Reason uint8

const (
	ReasonUnreadable Reason = iota + 1
	ReasonHeaderEyecatcher
	ReasonHeaderChecksum
	ReasonAlreadyFreed
	ReasonFooterEyecatcher
	ReasonFooterChecksum
	ReasonFooterMismatch
	ReasonPadding
)

var reasonNames = map[Reason]string{
	ReasonUnreadable:       "block unreadable",
	ReasonHeaderEyecatcher: "bad header eyecatcher",
	ReasonHeaderChecksum:   "bad header checksum",
	ReasonAlreadyFreed:     "block already freed",
	ReasonFooterEyecatcher: "bad footer eyecatcher",
	ReasonFooterChecksum:   "bad footer checksum",
	ReasonFooterMismatch:   "footer does not match header",
	ReasonPadding:          "padding overwritten",
}

func (r Reason) String() string {
	if s, ok := reasonNames[r]; ok {
		return s
	}
	return fmt.Sprintf("Reason(%d)", uint8(r))
}

// CorruptionError describes a block whose tags or padding failed validation.
type CorruptionError struct {
	Block  vmem.Addr // start of the wrapped block
	User   vmem.Addr // payload address handed to the caller
	At     vmem.Addr // first bad address found
	Reason Reason
	Err    error // underlying access error for ReasonUnreadable
}

func (e *CorruptionError) Error() string {
	msg := fmt.Sprintf("memtag: corrupted allocation at %v (block %v): %v at %v", e.User, e.Block, e.Reason, e.At)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is lets errors.Is match ErrCorrupted.
func (e *CorruptionError) Is(target error) bool {
	return target == ErrCorrupted
}

// Unwrap returns the underlying access error, if any.
func (e *CorruptionError) Unwrap() error {
	return e.Err
}
