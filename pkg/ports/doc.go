/*
Package ports defines the driven ports (interfaces) of the mirror client.

These interfaces decouple the synchronisation core from its collaborators,
allowing the engine and editors to run against the HTTP gateway in production
and against fakes in tests.

# Key Interfaces

  - Gateway: Request/response access to the pipeline server.
  - SnapshotStore: Persists a copy of the mirror for warm starts.
*/
package ports
