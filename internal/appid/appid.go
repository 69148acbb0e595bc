// Package appid exposes the panelctl application identity.
package appid

import (
	"context"
	"sync"

	"github.com/fulmenhq/gofulmen/appidentity"
)

const (
	Vendor     = "panelops"
	BinaryName = "panelctl"
	EnvPrefix  = "PANELCTL_"
	ConfigName = "panelctl"
)

var (
	mu       sync.RWMutex
	override *appidentity.Identity
)

// Get returns the identity used for config discovery, env overrides and version output.
// It never consults the filesystem so standalone binaries behave the same everywhere.
func Get(ctx context.Context) (*appidentity.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mu.RLock()
	defer mu.RUnlock()
	if override != nil {
		copied := *override
		return &copied, nil
	}
	return &appidentity.Identity{
		Vendor:     Vendor,
		BinaryName: BinaryName,
		EnvPrefix:  EnvPrefix,
		ConfigName: ConfigName,
	}, nil
}

// Set replaces the identity returned by Get. Passing nil restores the default.
func Set(identity *appidentity.Identity) {
	mu.Lock()
	defer mu.Unlock()
	override = identity
}
