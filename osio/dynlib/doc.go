// Package dynlib shares dynamically loaded libraries: every request for the
// same library gets the same handle, which is closed when the last holder
// releases it. Loading uses purego, so no cgo is required; the package is
// available on darwin, freebsd and linux.
package dynlib
