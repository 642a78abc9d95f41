package sub4g

import (
	"errors"
	"fmt"

	"github.com/eclipse-openj9/openj9-omr-sub008/internal/format"
	"github.com/eclipse-openj9/openj9-omr-sub008/internal/logger"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/vmem"
)

// Locator finds reservable spans below 4GB.
type Locator struct {
	vm            vmem.Provider
	windows       []Window
	step          uint64
	unconstrained bool

	attempts int
	failures int
}

// NewLocator creates a locator over windows. A zero step selects
// DefaultSearchStep.
func NewLocator(vm vmem.Provider, windows []Window, step uint64) *Locator {
	if step == 0 {
		step = DefaultSearchStep
	}
	return &Locator{
		vm:      vm,
		windows: append([]Window(nil), windows...),
		step:    format.AlignUp(step, vm.PageSize()),
	}
}

// Attempts returns how many reservations the locator has tried.
func (l *Locator) Attempts() int { return l.attempts }

// Failures returns how many Locate calls found nothing.
func (l *Locator) Failures() int { return l.failures }

// Locate reserves size bytes (rounded up to pages) inside one of the
// windows, searching each window from its top down. Windows are tried in
// order.
func (l *Locator) Locate(size uint64, mode vmem.Mode, code uint32) (vmem.Region, error) {
	page := l.vm.PageSize()
	size = format.AlignUp(size, page)
	if size == 0 {
		return vmem.Region{}, ErrBadSize
	}

	if l.unconstrained {
		l.attempts++
		r, err := l.vm.Reserve(vmem.ReserveParams{Size: size, Mode: mode, Category: code})
		if err != nil {
			l.failures++
			return vmem.Region{}, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return r, nil
	}

	if !l.vm.Capabilities().Has(vmem.CapStrictAddress) {
		l.failures++
		return vmem.Region{}, ErrUnsupported
	}

	for _, w := range l.windows {
		r, err := l.searchWindow(w, size, mode, code)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, ErrNoWindow) {
			l.failures++
			return vmem.Region{}, err
		}
	}

	l.failures++
	logger.Warn("sub4g: no window has room", "size", size, "windows", len(l.windows))
	return vmem.Region{}, fmt.Errorf("%w: %d bytes", ErrNoWindow, size)
}

// searchWindow walks candidate bases from the top of w down to its bottom.
// A collision reported as *vmem.OverlapError moves the candidate to just
// below the colliding region; any other refusal moves it down by one step.
func (l *Locator) searchWindow(w Window, size uint64, mode vmem.Mode, code uint32) (vmem.Region, error) {
	page := l.vm.PageSize()
	low := format.AlignUp(uint64(w.Low), page)
	end := uint64(w.High) + 1
	if end < low || end-low < size {
		return vmem.Region{}, ErrNoWindow
	}
	candidate := format.AlignDown(end-size, page)

	for candidate >= low {
		l.attempts++
		r, err := l.vm.Reserve(vmem.ReserveParams{
			Size:     size,
			Address:  vmem.Addr(candidate),
			Strict:   true,
			Mode:     mode,
			Category: code,
		})
		if err == nil {
			return r, nil
		}

		var overlap *vmem.OverlapError
		switch {
		case errors.As(err, &overlap):
			base := uint64(overlap.Base)
			if base < low+size {
				return vmem.Region{}, ErrNoWindow
			}
			candidate = format.AlignDown(base-size, page)
		case errors.Is(err, vmem.ErrAddressUnavailable):
			if candidate < low+l.step {
				return vmem.Region{}, ErrNoWindow
			}
			candidate -= l.step
		case errors.Is(err, vmem.ErrCommitLimit), errors.Is(err, vmem.ErrNoAddressSpace):
			return vmem.Region{}, fmt.Errorf("%w: %w", ErrNotFound, err)
		case errors.Is(err, vmem.ErrUnsupported):
			return vmem.Region{}, ErrUnsupported
		default:
			return vmem.Region{}, fmt.Errorf("sub4g: reserve at 0x%x: %w", candidate, err)
		}
	}
	return vmem.Region{}, ErrNoWindow
}
