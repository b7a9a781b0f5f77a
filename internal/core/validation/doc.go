// Package validation provides pure pre-flight checks for project settings.
//
// Everything here runs offline and before any remote call is made, so a bad
// bucket name or a malformed requirements file fails fast without leaving
// half-created resources behind.
//
// # Functions
//
//   - ValidateBucketName: Check a bucket name against the object-store grammar
//   - ValidateEntrypoint, SplitEntrypoint: Check "module.attr" entrypoints
//   - ValidateApplicationType: Check for wsgi, asgi or django
//   - ValidateRequirements: Check each line of a pip requirements file
//   - ValidateNotEmpty, ValidateSlug, ValidateModulePath: Field checks
//
// All failures are *ValidationError values wrapping a sentinel error, so
// callers can use errors.Is(err, ErrInvalidBucketName) and friends.
package validation
