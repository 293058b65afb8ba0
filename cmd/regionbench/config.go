package main

import (
	"bytes"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	backingHeap = "heap"
	backingMmap = "mmap"
)

// Config is the regionbench configuration. It can be set through flags or
// a YAML file; a file, when given, replaces the flag values.
type Config struct {
	Buffer   BufferConfig   `yaml:"buffer"`
	Workload WorkloadConfig `yaml:"workload"`
	LogLevel string         `yaml:"log_level"`
}

// BufferConfig describes the buffer the region is built on.
type BufferConfig struct {
	Size    string `yaml:"size"`
	Backing string `yaml:"backing"`
}

// WorkloadConfig describes the simulated parse workload.
type WorkloadConfig struct {
	Rounds     int    `yaml:"rounds"`
	Records    int    `yaml:"records"`
	RecordSize string `yaml:"record_size"`
	GrowEvery  int    `yaml:"grow_every"`
	Finalizers bool   `yaml:"finalizers"`
}

// RegisterFlags registers the configuration flags on app.
func (c *Config) RegisterFlags(app *kingpin.Application) {
	app.Flag("buffer.size", "Size of the buffer backing the region.").Default("1MiB").StringVar(&c.Buffer.Size)
	app.Flag("buffer.backing", "Where the buffer comes from: heap or mmap.").Default(backingHeap).EnumVar(&c.Buffer.Backing, backingHeap, backingMmap)
	app.Flag("workload.rounds", "Number of parse rounds; the region is freed after each.").Default("100").IntVar(&c.Workload.Rounds)
	app.Flag("workload.records", "Records parsed per round.").Default("1000").IntVar(&c.Workload.Records)
	app.Flag("workload.record-size", "Size of each parsed record.").Default("256B").StringVar(&c.Workload.RecordSize)
	app.Flag("workload.grow-every", "Grow every Nth record with Realloc; 0 disables.").Default("10").IntVar(&c.Workload.GrowEvery)
	app.Flag("workload.finalizers", "Register a finalizer per record.").Default("false").BoolVar(&c.Workload.Finalizers)
	app.Flag("log.level", "Only log messages with the given severity or above: debug, info, warn, error.").Default("info").EnumVar(&c.LogLevel, "debug", "info", "warn", "error")
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if _, err := c.BufferSize(); err != nil {
		return err
	}
	if _, err := c.Workload.RecordBytes(); err != nil {
		return err
	}
	switch c.Buffer.Backing {
	case backingHeap, backingMmap:
	default:
		return errors.Errorf("invalid buffer backing %q", c.Buffer.Backing)
	}
	if c.Workload.Rounds <= 0 {
		return errors.New("workload rounds must be positive")
	}
	if c.Workload.Records <= 0 {
		return errors.New("workload records must be positive")
	}
	if c.Workload.GrowEvery < 0 {
		return errors.New("workload grow-every must not be negative")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.Errorf("invalid log level %q", c.LogLevel)
	}
	return nil
}

// BufferSize returns the parsed buffer size.
func (c *Config) BufferSize() (int, error) {
	return parseSize("buffer size", c.Buffer.Size)
}

// RecordBytes returns the parsed record size.
func (c *WorkloadConfig) RecordBytes() (int, error) {
	return parseSize("record size", c.RecordSize)
}

func parseSize(what, s string) (int, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", what)
	}
	if n == 0 || n > 1<<40 {
		return 0, errors.Errorf("%s %q out of range", what, s)
	}
	return int(n), nil
}

// LoadFile reads a YAML configuration into c. Unknown fields are rejected.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config file")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return errors.Wrapf(err, "parse config file %s", path)
	}
	return nil
}
