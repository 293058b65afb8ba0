package region

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// SizeInUse returns the number of bytes carved from the region since it was
// created or last freed. This includes alignment padding and the space
// reserved by finalizer registrations.
func (r *Region) SizeInUse() int {
	h := r.guard()
	return int(h.current - h.base)
}

// Capacity returns the number of bytes between the base and the end of the
// buffer.
func (r *Region) Capacity() int {
	h := r.guard()
	return int(h.end - h.base)
}

// Available returns the number of bytes between the cursor and the end of
// the buffer. The largest request that can succeed is one byte less than
// this once alignment is accounted for.
func (r *Region) Available() int {
	h := r.guard()
	return int(h.end - h.current)
}

// Utilization returns the ratio of bytes in use to capacity (0.0 to 1.0).
// Returns 0.0 if the region has no capacity.
func (r *Region) Utilization() float64 {
	capacity := r.Capacity()
	if capacity == 0 {
		return 0
	}
	return float64(r.SizeInUse()) / float64(capacity)
}

// NumFinalizers returns the number of finalizers waiting for the next Free.
func (r *Region) NumFinalizers() int {
	r.guard()
	return r.njobs
}

// Stats returns a snapshot of region statistics.
func (r *Region) Stats() RegionStats {
	return RegionStats{
		SizeInUse:   r.SizeInUse(),
		Capacity:    r.Capacity(),
		Available:   r.Available(),
		Finalizers:  r.NumFinalizers(),
		Utilization: r.Utilization(),
	}
}

// RegionStats contains statistical information about a region.
type RegionStats struct {
	SizeInUse   int     // Bytes currently allocated
	Capacity    int     // Allocatable bytes after the control block
	Available   int     // Bytes left after the cursor
	Finalizers  int     // Registered finalizers
	Utilization float64 // Ratio of used to total capacity (0.0-1.0)
}

func (r *Region) String() string {
	m := r.Stats()
	return fmt.Sprintf(
		"Region{used: %s, capacity: %s, finalizers: %d, usage: %.1f%%}",
		humanize.IBytes(uint64(m.SizeInUse)),
		humanize.IBytes(uint64(m.Capacity)),
		m.Finalizers,
		m.Utilization*100,
	)
}
