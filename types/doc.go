// Package types defines the shared value objects of the videoflow core:
// generation configuration and results, job statuses, model capabilities,
// scene definitions, and the structured error type used across the
// adapter/engine boundary.
package types
