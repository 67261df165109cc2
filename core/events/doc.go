// Package events defines the run lifecycle events emitted on the event bus.
//
// A RunEvent is published when a run starts and again when it completes or
// fails. Completed and failed events carry the metrics record of the run.
package events
