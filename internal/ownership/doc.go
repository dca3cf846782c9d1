// Package ownership scopes every user-facing read and write to the caller's
// own devices.
//
// Each operation resolves the device (or output, then its device) and
// compares owner_id with the caller before touching anything else. A
// missing resource and one owned by someone else both return ErrNotFound,
// so callers cannot probe for other users' device identifiers.
package ownership
