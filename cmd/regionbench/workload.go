package main

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/pavanmanishd/region"
)

const keySize = 16

// indexEntry is the fixed-size record index stored next to each record.
type indexEntry struct {
	Offset uint32
	Length uint32
	Round  uint32
	Flags  uint32
}

// Result summarizes a workload run.
type Result struct {
	Rounds        int
	Records       int
	OOMs          int
	FinalizersRun int
	PeakInUse     int
}

// runWorkload parses cfg.Rounds batches of records into r, freeing the
// region after every batch. A batch that exhausts the region is abandoned
// and counted; the region is freed and the next batch starts from scratch.
func runWorkload(r *region.Region, cfg WorkloadConfig, logger log.Logger) (Result, error) {
	recordSize, err := cfg.RecordBytes()
	if err != nil {
		return Result{}, err
	}

	var res Result
	for round := 0; round < cfg.Rounds; round++ {
		var parsed int
		var roundErr error
		if err := region.Catch(func() {
			roundErr = parseRound(r, cfg, recordSize, round, &parsed, &res.FinalizersRun)
		}); err != nil {
			roundErr = err
		}
		if roundErr == nil {
			res.PeakInUse = max(res.PeakInUse, r.SizeInUse())
		}
		res.Records += parsed

		var ae *region.AllocError
		switch {
		case errors.As(roundErr, &ae):
			res.OOMs++
			level.Debug(logger).Log("msg", "round exhausted region", "round", round, "parsed", parsed, "err", roundErr)
		case roundErr != nil:
			return res, roundErr
		}

		if err := r.Free(); err != nil {
			return res, errors.Wrapf(err, "free after round %d", round)
		}
		res.Rounds++
	}
	return res, nil
}

// parseRound stores cfg.Records records in a. parsed counts completed
// records as they finish, so it stays accurate when an OOM handler unwinds
// out of the loop.
func parseRound(a region.Allocator, cfg WorkloadConfig, recordSize, round int, parsed, finalized *int) error {
	for i := 0; i < cfg.Records; i++ {
		rec, err := a.Malloc(recordSize)
		if err != nil {
			return err
		}
		for j := range rec {
			rec[j] = byte(i + j)
		}

		// rec is the latest allocation, so Realloc copies exactly its bytes.
		if cfg.GrowEvery > 0 && i%cfg.GrowEvery == 0 {
			if rec, err = a.Realloc(rec, 2*recordSize); err != nil {
				return err
			}
		}

		if _, err := a.Clone(rec[:min(keySize, len(rec))]); err != nil {
			return err
		}
		entry, err := region.Alloc[indexEntry](a)
		if err != nil {
			return err
		}
		entry.Length = uint32(len(rec))
		entry.Round = uint32(round)

		if cfg.Finalizers {
			if _, err := a.OnFree(func() error {
				*finalized++
				return nil
			}); err != nil {
				return err
			}
		}
		*parsed++
	}
	return nil
}
