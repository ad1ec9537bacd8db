/*
Package syncer keeps the local store eventually consistent with the server.

Two primitives do the work. RefreshCollection replaces a whole collection
with the server's copy; RefreshEntity upserts one entity, or removes it when
the server answers 404 (a 404 on a point refresh means "no longer exists", not
a failure). Push events are routed onto these primitives, plus RemoveLocal for
delete notifications, which needs no network call.

No sequencing is attempted between independently triggered refreshes: the
reply applied last wins.
*/
package syncer
