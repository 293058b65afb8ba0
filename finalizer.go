package region

import (
	"unsafe"

	"github.com/pkg/errors"
)

// FreeJob is a finalizer registered with OnFree.
type FreeJob struct {
	fn     func() error
	region *Region
	next   *FreeJob
}

// jobFootprint is the space a registration reserves from the region.
const jobFootprint = int(unsafe.Sizeof(FreeJob{}))

// OnFree registers fn to run on the next Free, after every finalizer
// registered before it. Registration reserves space from the region and can
// therefore fail like any allocation.
func (r *Region) OnFree(fn func() error) (OnFreeJob, error) {
	h := r.guard()
	if fn == nil {
		return nil, ErrNilFinalizer
	}
	if _, err := r.malloc(h, jobFootprint); err != nil {
		return nil, err
	}

	j := &FreeJob{fn: fn, region: r}
	if r.tail == nil {
		r.jobs = j
	} else {
		r.tail.next = j
	}
	r.tail = j
	r.njobs++
	return j, nil
}

// Cancel unregisters the job. It returns ErrJobNotFound if the job already
// ran, was cancelled before, or its region has been freed since.
func (j *FreeJob) Cancel() error {
	r := j.region
	r.guard()

	var prev *FreeJob
	for cur := r.jobs; cur != nil; prev, cur = cur, cur.next {
		if cur != j {
			continue
		}
		if prev == nil {
			r.jobs = cur.next
		} else {
			prev.next = cur.next
		}
		if r.tail == cur {
			r.tail = prev
		}
		cur.next = nil
		r.njobs--
		return nil
	}
	return errors.WithStack(ErrJobNotFound)
}
