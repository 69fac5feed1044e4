// Package config loads construction parameters from YAML, so a Params
// value doesn't have to be hand-assembled in Go for every deployment.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/TFMV/hnsw"
)

// File is the on-disk shape of a construction-parameter file. Field
// names follow spec.md §6's parameter names rather than the Go struct's
// exported names, since this is the boundary where external
// configuration meets the core.
type File struct {
	Dim            uint32  `yaml:"dim"`
	M              uint32  `yaml:"m"`
	Ml             float64 `yaml:"m_l"`
	EfConstruction uint32  `yaml:"ef_construction"`
	Alpha          float32 `yaml:"alpha"`
	BatchBase      float64 `yaml:"batch_base"`
	Seed           int64   `yaml:"seed"`
}

// Defaults mirrors spec.md §6's "design suggestions, not contracts":
// m=16, m_l=16, ef_construction=50, batch_base=2. Alpha has no default --
// the source's alpha=5 is flagged as a likely debugging artifact, so
// config files must set it explicitly.
func Defaults() File {
	return File{
		M:              16,
		Ml:             16,
		EfConstruction: 50,
		BatchBase:      2,
	}
}

// Load reads and parses a YAML parameter file at path, starting from
// Defaults and overriding with whatever the file sets.
func Load(path string) (File, error) {
	f := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if f.Alpha == 0 {
		return f, fmt.Errorf("config: %s: alpha must be set explicitly", path)
	}
	return f, nil
}

// ToParams converts a loaded File into hnsw.Params.
func (f File) ToParams() hnsw.Params {
	return hnsw.Params{
		Dim:            f.Dim,
		M:              f.M,
		Ml:             f.Ml,
		EfConstruction: f.EfConstruction,
		Alpha:          f.Alpha,
		BatchBase:      f.BatchBase,
		Seed:           f.Seed,
	}
}
