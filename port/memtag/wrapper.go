package memtag

import (
	"fmt"

	"github.com/eclipse-openj9/openj9-omr-sub008/internal/format"
	"github.com/eclipse-openj9/openj9-omr-sub008/internal/logger"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/category"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/vmem"
)

// FatalFunc is invoked with a *CorruptionError when Unwrap finds a corrupted
// block. It is not expected to return.
type FatalFunc func(err error)

// Options configures a Wrapper.
type Options struct {
	// Fatal replaces the default handler, which panics with the error.
	Fatal FatalFunc
}

// Wrapper stamps and validates tags on blocks that live in mem.
type Wrapper struct {
	mem   vmem.Memory
	cats  *category.Registry
	sites *CallSites
	diag  Diagnostics
	fatal FatalFunc
}

// Info is the decoded header of a live allocation.
type Info struct {
	Block    vmem.Addr
	User     vmem.Addr
	Size     uint64 // requested payload size
	Total    uint64 // wrapped block size charged to the category
	CallSite string
	Category category.Code
}

// New creates a Wrapper.
func New(mem vmem.Memory, cats *category.Registry, opts Options) *Wrapper {
	fatal := opts.Fatal
	if fatal == nil {
		fatal = func(err error) { panic(err) }
	}
	return &Wrapper{
		mem:   mem,
		cats:  cats,
		sites: newCallSites(),
		fatal: fatal,
	}
}

// Diagnostics returns the corruption record.
func (w *Wrapper) Diagnostics() *Diagnostics {
	return &w.diag
}

// CallSites returns the call-site table.
func (w *Wrapper) CallSites() *CallSites {
	return w.sites
}

// Wrap stamps tags around a block of AllocationSize(n) bytes at block and
// charges the block to code. It returns the payload address.
func (w *Wrapper) Wrap(block vmem.Addr, n uint64, callSite string, code category.Code) (vmem.Addr, error) {
	total := AllocationSize(n)
	b, err := w.mem.Bytes(block, total)
	if err != nil {
		return 0, fmt.Errorf("memtag: wrap %v: %w", block, err)
	}

	site := w.sites.Intern(callSite)
	footerOff := RoundedFooterOffset(n)

	writeTag(b[:HeaderSize], block, format.EyecatcherAllocHeader, n, site, uint32(code))
	pad := b[HeaderSize+n : footerOff]
	for i := range pad {
		pad[i] = format.PaddingByte
	}
	writeTag(b[footerOff:footerOff+FooterSize], block+vmem.Addr(footerOff), format.EyecatcherAllocFooter, n, site, uint32(code))

	w.cats.IncrementCounters(code, total)

	if logger.AllocTrace {
		logger.Debug("memtag: wrap", "block", block, "size", n, "total", total, "site", callSite, "category", uint32(code))
	}
	return UserAddress(block), nil
}

// Unwrap validates the tags of the allocation at user, marks them freed and
// removes the block from its category. It returns the block address and the
// wrapped size.
//
// A corrupted block is recorded and handed to the fatal handler. The default
// handler panics; if a replacement handler returns, Unwrap returns the
// corruption error and leaves the block untouched.
func (w *Wrapper) Unwrap(user vmem.Addr) (vmem.Addr, uint64, error) {
	block := BlockAddress(user)
	b, hdr, cerr := w.validate(user)
	if cerr != nil {
		w.diag.record(cerr)
		logger.Error("memtag: corrupted allocation", "user", user, "block", block, "reason", cerr.Reason.String(), "at", cerr.At)
		w.fatal(cerr)
		return 0, 0, cerr
	}

	footerOff := RoundedFooterOffset(hdr.allocSize)
	flipEyecatcher(b[:HeaderSize], format.EyecatcherAllocHeader, format.EyecatcherFreedHeader)
	flipEyecatcher(b[footerOff:footerOff+FooterSize], format.EyecatcherAllocFooter, format.EyecatcherFreedFooter)

	total := AllocationSize(hdr.allocSize)
	w.cats.DecrementCounters(category.Code(hdr.category), total)

	if logger.AllocTrace {
		logger.Debug("memtag: unwrap", "block", block, "size", hdr.allocSize, "total", total)
	}
	return block, total, nil
}

// Check validates the allocation at user without side effects.
func (w *Wrapper) Check(user vmem.Addr) error {
	if _, _, cerr := w.validate(user); cerr != nil {
		return cerr
	}
	return nil
}

// Info decodes the header of the live allocation at user.
func (w *Wrapper) Info(user vmem.Addr) (Info, error) {
	_, hdr, cerr := w.validate(user)
	if cerr != nil {
		return Info{}, cerr
	}
	return Info{
		Block:    BlockAddress(user),
		User:     user,
		Size:     hdr.allocSize,
		Total:    AllocationSize(hdr.allocSize),
		CallSite: w.sites.Name(hdr.callSite),
		Category: category.Code(hdr.category),
	}, nil
}

// Validate checks the tag at tagAddr against eyecatcher and its checksum.
func (w *Wrapper) Validate(tagAddr vmem.Addr, eyecatcher uint32) error {
	tag, err := w.mem.Bytes(tagAddr, format.TagSize)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadTag, err)
	}
	if got := format.ReadU32(tag, format.TagEyecatcherOffset); got != eyecatcher {
		return fmt.Errorf("%w: eyecatcher 0x%08x, want 0x%08x", ErrBadTag, got, eyecatcher)
	}
	if sum := Checksum(tag, tagAddr); sum != 0 {
		return fmt.Errorf("%w: checksum residue 0x%08x", ErrBadTag, sum)
	}
	return nil
}

// validate checks header, footer and padding of the allocation at user. On
// success it returns the whole block view and the decoded header.
func (w *Wrapper) validate(user vmem.Addr) ([]byte, tagFields, *CorruptionError) {
	block := BlockAddress(user)
	corrupt := func(at vmem.Addr, reason Reason, err error) *CorruptionError {
		return &CorruptionError{Block: block, User: user, At: at, Reason: reason, Err: err}
	}

	header, err := w.mem.Bytes(block, HeaderSize)
	if err != nil {
		return nil, tagFields{}, corrupt(block, ReasonUnreadable, err)
	}
	hdr := readTag(header)
	switch hdr.eyecatcher {
	case format.EyecatcherAllocHeader:
	case format.EyecatcherFreedHeader:
		return nil, hdr, corrupt(block, ReasonAlreadyFreed, nil)
	default:
		return nil, hdr, corrupt(block, ReasonHeaderEyecatcher, nil)
	}
	if Checksum(header, block) != 0 {
		return nil, hdr, corrupt(block+format.TagSumCheckOffset, ReasonHeaderChecksum, nil)
	}

	total := AllocationSize(hdr.allocSize)
	if total < hdr.allocSize {
		return nil, hdr, corrupt(block+format.TagAllocSizeOffset, ReasonHeaderChecksum, nil)
	}
	b, err := w.mem.Bytes(block, total)
	if err != nil {
		return nil, hdr, corrupt(block, ReasonUnreadable, err)
	}

	footerOff := RoundedFooterOffset(hdr.allocSize)
	footerAddr := block + vmem.Addr(footerOff)
	footer := b[footerOff : footerOff+FooterSize]
	ftr := readTag(footer)
	if ftr.eyecatcher != format.EyecatcherAllocFooter {
		return nil, hdr, corrupt(footerAddr, ReasonFooterEyecatcher, nil)
	}
	if Checksum(footer, footerAddr) != 0 {
		return nil, hdr, corrupt(footerAddr+format.TagSumCheckOffset, ReasonFooterChecksum, nil)
	}
	if ftr.allocSize != hdr.allocSize || ftr.callSite != hdr.callSite || ftr.category != hdr.category {
		return nil, hdr, corrupt(footerAddr, ReasonFooterMismatch, nil)
	}

	padStart := HeaderSize + hdr.allocSize
	for i, c := range b[padStart:footerOff] {
		if c != format.PaddingByte {
			return nil, hdr, corrupt(block+vmem.Addr(padStart)+vmem.Addr(i), ReasonPadding, nil)
		}
	}
	return b, hdr, nil
}
