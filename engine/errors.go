package engine

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Error categories. Every error returned by this package is marked with exactly one
// of these, so callers can test with errors.Is regardless of the concrete cause.
var (
	ErrDeviceSelection    = errors.New("device selection failed")
	ErrSurfaceNegotiation = errors.New("surface negotiation failed")
	ErrPipelineBuild      = errors.New("pipeline build failed")
	ErrSyncObject         = errors.New("sync object creation failed")
	ErrSubmission         = errors.New("frame submission failed")
	ErrPresentation       = errors.New("frame presentation failed")
	ErrTeardownOrder      = errors.New("teardown out of order")
)

// Error kinds within a category.
var (
	ErrNoSuitableDevice = errors.New("no suitable device")
	ErrSurfaceCreation  = errors.New("could not create surface images")
	ErrChainCreation    = errors.New("could not create presentable chain")
	ErrSurfaceOutOfDate = errors.New("surface is out of date")
)

// MissingCapabilityError reports the first adapter that had the queues the engine
// needs but lacked some required capability.
type MissingCapabilityError struct {
	Adapter string
	Missing []string
}

func (e *MissingCapabilityError) Error() string {
	return fmt.Sprintf("adapter %q is missing required capabilities: %s", e.Adapter, strings.Join(e.Missing, ", "))
}

// classify wraps a backend error with what was being attempted and marks it with
// an error kind and its category.
func classify(err, kind, category error, op string) error {
	return errors.Mark(errors.Mark(errors.Wrapf(err, "%s: %v", op, kind), kind), category)
}
