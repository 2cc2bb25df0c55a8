// Package sanitizer provides input normalization for customer-supplied
// booking data.
//
// All normalization functions are idempotent - applying them multiple times
// produces the same result. Functions handle invalid input gracefully,
// returning empty strings rather than errors.
//
// Customer names and notes arrive from a conversational channel and carry
// arbitrary whitespace; they are normalized before validation and storage.
package sanitizer
