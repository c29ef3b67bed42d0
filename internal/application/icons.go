package application

import (
	"log/slog"

	"github.com/jobrunner/mapkit/internal/domain"
	"github.com/jobrunner/mapkit/internal/ports/output"
)

// IconCache memoizes resolved marker icons by description.
// The engine owns one cache and clears it on Teardown.
type IconCache struct {
	resolver output.IconResolver
	logger   *slog.Logger
	icons    map[domain.IconDescription]*output.Icon
}

// NewIconCache creates a cache. A nil resolver makes every lookup return nil.
func NewIconCache(resolver output.IconResolver, logger *slog.Logger) *IconCache {
	return &IconCache{
		resolver: resolver,
		logger:   logger,
		icons:    make(map[domain.IconDescription]*output.Icon),
	}
}

// Get returns the icon for desc, resolving it on first use. It returns nil, which
// selects the provider default icon, for empty descriptions and resolver failures.
func (c *IconCache) Get(desc domain.IconDescription) *output.Icon {
	if desc.IsZero() || c.resolver == nil {
		return nil
	}
	if icon, ok := c.icons[desc]; ok {
		return icon
	}
	icon, err := c.resolver.Resolve(desc)
	if err != nil {
		c.logger.Warn("failed to resolve icon", "ref", desc.Ref, "color", desc.Color, "error", err)
		return nil
	}
	c.icons[desc] = icon
	return icon
}

// Len returns the number of cached icons.
func (c *IconCache) Len() int {
	return len(c.icons)
}

// Clear drops all cached icons.
func (c *IconCache) Clear() {
	c.icons = make(map[domain.IconDescription]*output.Icon)
}
