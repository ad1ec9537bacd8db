/*
Package pipemirror keeps a live, local mirror of a workflow pipeline server.

The server holds three collections: Workflows (definitions), Instances
(executions of a workflow) and global variables. A Client loads all three,
keeps them current from the server's push notifications, derives views such
as orphaned instances, and stages edits that are committed back through the
REST API.

# Lifecycle

	client, err := pipemirror.New("http://localhost:8000/api",
		pipemirror.WithLogger(logger),
	)
	if err != nil {
		log.Fatal(err)
	}

	// Initial bulk refresh, then the push stream keeps the mirror current.
	if err := client.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	orphans := client.Orphans()
	defer orphans.Close()
	orphans.Subscribe(func(m map[string]domain.Instance) {
		log.Printf("%d orphaned instances", len(m))
	})

# Editing

Each editor stages one private copy. Closing it never touches the mirror;
committing writes it to the server and, once accepted, to the mirror.

	ed := client.Editors().Workflow
	if err := ed.Open("w1"); err != nil {
		return err
	}
	_ = ed.Edit(func(w *domain.Workflow) { w.UserNotes = "checked" })
	if err := ed.Commit(ctx); err != nil {
		// The buffer is still open with the staged data; retry later.
		log.Println(ed.Err())
	}

No operation here is fatal: failures leave the mirror unchanged and are
reported to the caller or logged.
*/
package pipemirror
