// Package types defines the event record model, the RecordStore and
// Transport interfaces, configuration, and the standard errors shared by the
// cakeday storage backends, evaluator, and notifier.
package types
