/*
Package store holds the in-memory mirror of server state.

A Collection is a keyed, observable map. Every mutation (ReplaceAll, Upsert,
Remove) applies fully under a lock and then notifies subscribers with a Change
describing the touched keys. Reads hand out deep copies, so nothing outside the
store can alter its contents by pointer.

Store bundles the three mirrored collections (workflows, instances, globals)
and the server's reference Catalog.
*/
package store
