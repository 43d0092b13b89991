// Package telemetry holds the latest value of every dashboard sensor
// field and hands consistent copies of that record to readers.
//
// Three pieces live here:
//
//   - The field registry: a fixed, ordered table mapping each MQTT
//     topic name to the [Slot] it fills and the [Rule] used to decode
//     its payload. Lookup is an exact, case-sensitive map hit.
//   - The payload decoder: pure functions turning raw payload bytes
//     into a [Value]. Malformed numbers decode to zero and oversized
//     text is truncated; neither is an error.
//   - The [Store]: one record guarded by a single exclusive lock with a
//     bounded wait. [Store.Apply] writes one slot; [Store.Snapshot]
//     copies the whole record out. When the lock cannot be had in time
//     the update is dropped, or the last good snapshot is served, so
//     neither the ingestion path nor the display loop can freeze.
//
// Updates carry no ordering metadata. The most recently applied value
// of each field is the one a snapshot returns.
package telemetry
