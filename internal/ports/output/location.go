package output

import (
	"time"

	"github.com/jobrunner/mapkit/internal/domain"
)

// LocationProvider defines the secondary port for device location.
// Fixes must be delivered on the main thread.
type LocationProvider interface {
	// Name returns the provider name reported with each fix.
	Name() string

	// Start begins delivering fixes to onFix.
	Start(onFix func(domain.LocationFix)) error

	// Stop stops delivering fixes.
	Stop()
}

// IconResolver defines the secondary port for turning icon descriptions into images.
type IconResolver interface {
	// Resolve renders the described icon.
	Resolve(desc domain.IconDescription) (*Icon, error)
}

// Scheduler runs deferred callbacks on the main thread.
type Scheduler interface {
	// AfterFunc runs fn once after d. The returned func cancels it if still pending.
	AfterFunc(d time.Duration, fn func()) (cancel func())
}
