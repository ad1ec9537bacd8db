package pipemirror_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/pipemirror"
	"github.com/aretw0/pipemirror/pkg/domain"
)

// ExampleClient_Orphans shows how to watch instances whose workflow is gone.
func ExampleClient_Orphans() {
	client, err := pipemirror.New("http://localhost:8000/api")
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := client.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	orphans := client.Orphans()
	defer orphans.Close()

	orphans.Subscribe(func(m map[string]domain.Instance) {
		fmt.Printf("%d orphaned instances\n", len(m))
	})

	<-client.Done()
}
