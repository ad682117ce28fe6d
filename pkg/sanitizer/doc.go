// Package sanitizer normalizes request input before validation and storage.
//
// All functions are idempotent and never fail: invalid input comes back unchanged or
// empty so the validator can reject it with a field-level message.
package sanitizer
