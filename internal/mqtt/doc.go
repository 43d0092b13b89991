// Package mqtt ingests telemetry from an MQTT broker.
//
// A [Dispatcher] holds the ingestion logic: on every (re-)connect it
// subscribes to each registry topic exactly once, and each inbound
// message is resolved, decoded and applied to the telemetry store.
// Messages on unknown topics are ignored. Messages never cause
// subscriptions.
//
// A [Client] wraps Eclipse Paho v2's [autopaho] connection manager and
// drives the dispatcher from its callbacks. Reconnect scheduling and
// backoff belong to autopaho.
package mqtt
