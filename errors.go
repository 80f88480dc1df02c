package cj

import "errors"

// Error taxonomy. Backend implementations map their native result codes onto
// these sentinels; callers test with errors.Is.
var (
	// ErrInvalidArgument marks nil, zero-sized, or otherwise malformed input.
	ErrInvalidArgument = errors.New("cj: invalid argument")

	// ErrOutOfMemory marks slot table exhaustion or a failed host/device
	// allocation.
	ErrOutOfMemory = errors.New("cj: out of memory")

	// ErrDeviceLost marks an unrecoverable device loss. The owning
	// application is expected to tear the engine down and recreate it.
	ErrDeviceLost = errors.New("cj: device lost")

	// ErrSurfaceLost marks a lost presentation surface.
	ErrSurfaceLost = errors.New("cj: surface lost")

	// ErrOutOfDate marks a swapchain that no longer matches the surface.
	// The window layer reacts by recreating the swapchain; it is expected
	// during resize and is not fatal.
	ErrOutOfDate = errors.New("cj: swapchain out of date")

	// ErrNotFound marks an operation on a name or handle that is not present.
	ErrNotFound = errors.New("cj: not found")

	// ErrAlreadyExists marks a duplicate registration.
	ErrAlreadyExists = errors.New("cj: already exists")

	// ErrBusy marks a resource still in use by in-flight GPU work.
	ErrBusy = errors.New("cj: busy")

	// ErrUnsupported marks a capability the device does not provide.
	ErrUnsupported = errors.New("cj: unsupported")

	// ErrUnknown is the catch-all for GPU object creation failure.
	ErrUnknown = errors.New("cj: unknown failure")
)
