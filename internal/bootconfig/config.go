// Copyright 2026 The Minikernel Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bootconfig loads the TOML configuration that describes how
// many simulated CPUs/pages/task slots a minikernel instance boots with,
// plus the list of demo tasks to seed, each described the way an OCI
// runtime describes a container's initial process — the supplemented
// boot harness of SPEC_FULL.md §10.
package bootconfig

import (
	"encoding/json"
	"fmt"

	"github.com/BurntSushi/toml"
	jsonpatch "github.com/mattbaird/jsonpatch"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/minikernel/minikernel/internal/kernel"
)

// SeedTask describes one demo task to spawn at boot. It reuses
// runtime-spec's Process type for Args/Env/Cwd the same way runsc's own
// container package carries an OCI Process for a container's initial
// process, even though this kernel never actually execs the named
// binary — Args[0] becomes the task's diagnostic name.
type SeedTask struct {
	Process specs.Process `toml:"process"`
}

// Config is the top-level boot configuration file format.
type Config struct {
	NPROC    int        `toml:"nproc"`
	NCPU     int        `toml:"ncpu"`
	Pages    int        `toml:"pages"`
	TickHz   int        `toml:"tick_hz"`
	InitName string     `toml:"init_name"`
	Seed     []SeedTask `toml:"seed"`
}

// Default returns a configuration matching kernel.DefaultParams with an
// empty seed list.
func Default() Config {
	p := kernel.DefaultParams()
	return Config{
		NPROC:    p.NPROC,
		NCPU:     p.NCPU,
		Pages:    p.Pages,
		TickHz:   p.TickHz,
		InitName: p.InitName,
	}
}

// Load reads and parses a TOML boot configuration from path.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("bootconfig: loading %s: %w", path, err)
	}
	return cfg, nil
}

// Diff computes the RFC 6902 JSON patch describing how override differs
// from base. The "boot" subcommand calls it with Default() and a loaded
// config file and logs how many operations the patch holds.
func Diff(base, override Config) ([]jsonpatch.JsonPatchOperation, error) {
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("bootconfig: marshaling base config: %w", err)
	}
	overrideJSON, err := json.Marshal(override)
	if err != nil {
		return nil, fmt.Errorf("bootconfig: marshaling override config: %w", err)
	}
	return jsonpatch.CreatePatch(baseJSON, overrideJSON)
}

// Params converts a Config into kernel.Params for Boot.
func (c Config) Params() kernel.Params {
	return kernel.Params{
		NPROC:    c.NPROC,
		NCPU:     c.NCPU,
		Pages:    c.Pages,
		TickHz:   c.TickHz,
		InitName: c.InitName,
	}
}
