/*
Package observability provides Prometheus metrics for the mirror client.

It counts refreshes and commits by outcome, push events by type, and exposes
the push connection state as a gauge. A nil *Metrics is valid and records
nothing, so components can be built without metrics.
*/
package observability
