// Package telemetry defines the core data types flowing through the
// acquisition pipeline and the shared state handed to the publication task.
//
// Key types:
//   - Sample: a single sensor observation, pushed into the ring buffer
//   - Snapshot: the full latest-state record published to telemetry sinks
//   - Cell: the single-slot, overwrite-on-write latest-state holder
//   - SatelliteTracker: PRN-keyed map of the current constellation view
package telemetry
