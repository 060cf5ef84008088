// Package cfg loads the per-process configuration file shared by
// cmd/armb-supervisor and cmd/armb-worker, and caches it behind an
// atomic pointer so the hot path (the tick loop) never takes a lock to
// read it.
//
// Grounded on aistore's cmn/rom.go read-mostly cache (Load swaps a
// new, fully-built value into an atomic.Pointer rather than mutating
// fields in place under a lock), adapted from aistore's cluster-wide
// config to this repo's much smaller per-process one. Deserialization
// uses github.com/json-iterator/go, aistore's drop-in encoding/json
// replacement, rather than the standard library's encoding/json.
/*
 * Copyright (c) 2024, armb-farm contributors.
 */
package cfg

import (
	"os"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Config is one process's static configuration: the per-message
// timeout, the worker's listen port, the output directory, plus
// optional LZ4/Azure domain-stack toggles.
type Config struct {
	// Shared
	MsgTimeout time.Duration `json:"msg_timeout"`
	OutputDir  string        `json:"output_dir"`
	// Compress is decoded from the file but not passed on: every
	// Connection the supervisor, worker and armbctl build has
	// compression off.
	Compress bool `json:"compress"`

	// Supervisor-only
	MetricsAddr string `json:"metrics_addr"`

	// Worker-only
	ListenPort int `json:"listen_port"`

	// Optional Azure Blob mirror.
	AzureContainer string `json:"azure_container"`
}

// Default returns the configuration a process runs with when no config
// file is supplied.
func Default() Config {
	return Config{
		MsgTimeout: 10 * time.Second,
		OutputDir:  "./output",
		ListenPort: 7210,
	}
}

var current atomic.Pointer[Config]

func init() {
	d := Default()
	current.Store(&d)
}

// Get returns the currently active configuration. Safe for concurrent
// use without locking: the tick loop calls this every iteration.
func Get() Config {
	return *current.Load()
}

// Load reads and parses the JSON config file at path, starting from
// Default() so any field the file omits keeps its default, then installs
// the result as the process-wide current configuration.
func Load(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := jsonAPI.Unmarshal(data, &c); err != nil {
		return Config{}, err
	}
	current.Store(&c)
	return c, nil
}

// Set installs c as the current configuration directly, bypassing the
// file, for use by tests.
func Set(c Config) {
	current.Store(&c)
}
