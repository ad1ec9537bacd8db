/*
Package push maintains the long-lived server-sent event stream that tells the
client when to refetch or drop mirrored entities.

A Stream owns one connection at a time. Transport failures are not errors for
the caller: the stream reports Disconnected, waits with capped exponential
backoff and reconnects. The ClosingDown event is terminal; it is delivered and
then the stream stops for good.
*/
package push
