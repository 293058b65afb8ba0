// Command regionbench runs a parse-style allocation workload against a
// buffer-backed region and prints usage statistics and Prometheus metrics.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/pavanmanishd/region"
	"github.com/pavanmanishd/region/internal/mmap"
)

func main() {
	var cfg Config
	app := kingpin.New("regionbench", "Runs a parse-style allocation workload against a buffer-backed region.")
	configFile := app.Flag("config.file", "YAML configuration file. Its values replace the flag values.").String()
	cfg.RegisterFlags(app)
	kingpin.MustParse(app.Parse(os.Args[1:]))

	if *configFile != "" {
		if err := cfg.LoadFile(*configFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	if err := run(cfg, logger, os.Stdout); err != nil {
		level.Error(logger).Log("msg", "regionbench failed", "err", err)
		os.Exit(1)
	}
}

func newLogger(lvl string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	var opt level.Option
	switch lvl {
	case "debug":
		opt = level.AllowDebug()
	case "warn":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	default:
		opt = level.AllowInfo()
	}
	return level.NewFilter(logger, opt)
}

func run(cfg Config, logger log.Logger, out io.Writer) error {
	size, err := cfg.BufferSize()
	if err != nil {
		return err
	}
	buf, closeBuf, err := backingBuffer(cfg.Buffer.Backing, size)
	if err != nil {
		return err
	}
	defer closeBuf()

	reg := prometheus.NewRegistry()
	r, err := region.New(buf,
		region.WithLogger(logger),
		region.WithMetrics(region.NewMetrics(reg)),
		region.WithOOMHandler(region.PanicOnOOM),
	)
	if err != nil {
		return errors.Wrap(err, "create region")
	}
	level.Info(logger).Log("msg", "starting workload", "backing", cfg.Buffer.Backing, "buffer", humanize.IBytes(uint64(size)), "region", r)

	res, err := runWorkload(r, cfg.Workload, logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "rounds: %d\n", res.Rounds)
	fmt.Fprintf(out, "records: %d\n", res.Records)
	fmt.Fprintf(out, "exhausted rounds: %d\n", res.OOMs)
	fmt.Fprintf(out, "finalizers run: %d\n", res.FinalizersRun)
	fmt.Fprintf(out, "peak in use: %s of %s\n", humanize.IBytes(uint64(res.PeakInUse)), humanize.IBytes(uint64(r.Capacity())))

	families, err := reg.Gather()
	if err != nil {
		return errors.Wrap(err, "gather metrics")
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			return errors.Wrap(err, "write metrics")
		}
	}
	return nil
}

// backingBuffer returns a buffer of the requested size and a function that
// releases it. The region never frees its buffer, so the caller must.
func backingBuffer(backing string, size int) ([]byte, func(), error) {
	switch backing {
	case backingHeap:
		return make([]byte, size), func() {}, nil
	case backingMmap:
		m, err := mmap.MapAnon(size)
		if err != nil {
			return nil, nil, errors.Wrap(err, "map buffer")
		}
		return m.Bytes(), func() { _ = m.Close() }, nil
	default:
		return nil, nil, errors.Errorf("unknown backing %q", backing)
	}
}
