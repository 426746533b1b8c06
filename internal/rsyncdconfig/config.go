// Package rsyncdconfig loads the TOML daemon configuration file: listen
// addresses and the module list rsyncd.Server serves. Grounded in the
// Config/Listener shape referenced throughout
// internal/maincmd/maincmd.go (rsyncdconfig.FromFile,
// rsyncdconfig.FromDefaultFiles, cfg.Listeners, cfg.Modules), trimmed to
// the TCP rsync:// listener this module implements (the teacher's
// AnonSSH/AuthorizedSSH listener variants are transport-substrate
// concerns, out of scope per spec §1).
package rsyncdconfig

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/oferchen/rsync-sub027/rsyncd"
)

// Listener is one configured rsync daemon listen address.
type Listener struct {
	Rsyncd string `toml:"rsyncd"`
}

// Config is the top-level TOML document: `[[listener]]` blocks and
// `[[module]]` blocks.
type Config struct {
	Listeners []Listener      `toml:"listener"`
	Modules   []rsyncd.Module `toml:"module"`

	// BwLimit caps the combined outbound rate of all daemon connections
	// through one shared limiter (spec §6 "bwlimit"); modules have no
	// per-module override.
	BwLimit string `toml:"bwlimit"`
}

// DefaultConfigPaths are searched in order by FromDefaultFiles.
var DefaultConfigPaths = []string{
	"/etc/rsyncd.toml",
}

// FromFile parses the TOML document at path.
func FromFile(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("rsyncdconfig: parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// FromDefaultFiles tries each of DefaultConfigPaths in order, returning
// the first one found along with its path. If none exist, it returns
// os.ErrNotExist and an empty path.
func FromDefaultFiles() (cfg *Config, path string, err error) {
	for _, p := range DefaultConfigPaths {
		cfg, err = FromFile(p)
		if err == nil {
			return cfg, p, nil
		}
		if !os.IsNotExist(unwrapPathError(err)) {
			return nil, p, err
		}
	}
	return nil, "", os.ErrNotExist
}

func unwrapPathError(err error) error {
	for err != nil {
		if os.IsNotExist(err) {
			return err
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		err = u.Unwrap()
	}
	return err
}
