/*
Package domain contains the entity model mirrored from the pipeline server.

It defines the records the client keeps in its local store, the push event
vocabulary spoken by the server, and the sentinel errors shared by every
component. This package is kept pure and free of I/O.

# Key Entities

  - Workflow: A named set of procedures plus constants and setup variables.
  - Instance: A running execution of a Workflow, referencing it by UUID.
  - GlobalVariable: A server-wide variable, keyed by its name.
  - Variable: A typed value owned by one of the entities above.
*/
package domain
