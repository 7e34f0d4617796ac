// Package db picks and opens the configured store.Driver.
package db

import (
	"fmt"

	"github.com/convergeai/core/internal/profile"
	"github.com/convergeai/core/store"
	"github.com/convergeai/core/store/db/postgres"
)

// NewDBDriver opens the store.Driver named by profile.Driver. Profile.Validate
// already rejects anything but "postgres" before this is ever called.
func NewDBDriver(p *profile.Profile) (store.Driver, error) {
	switch p.Driver {
	case "postgres":
		return postgres.NewDB(p)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", p.Driver)
	}
}
