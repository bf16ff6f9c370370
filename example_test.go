package fieldbook_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/fieldbook"
	"github.com/aretw0/fieldbook/pkg/core"
)

// Example_basic demonstrates how to open a store, register a child and merge
// a later edit into it.
func Example_basic() {
	ctx := context.Background()

	store, err := fieldbook.Open(ctx, fieldbook.WithAdapter("memory"))
	if err != nil {
		log.Fatal(err)
	}
	defer fieldbook.Close(store)

	children, err := fieldbook.NewRepository(store, core.KindChild, "worker1", core.WithOrganisation("unicef"))
	if err != nil {
		log.Fatal(err)
	}

	_, err = children.Create(ctx, core.Record{ID: "a1b2c3d4e5f6g", Fields: core.Fields{"name": "Ama", "age": "7"}})
	if err != nil {
		log.Fatal(err)
	}
	rec, err := children.Create(ctx, core.Record{ID: "a1b2c3d4e5f6g", Fields: core.Fields{"age": "8"}})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(rec.ShortID(), rec.Fields["name"], rec.Fields["age"], rec.Fields[core.FieldOrganisation], rec.Synced)
	// Output:
	// d4e5f6g Ama 8 unicef false
}

// Example_search shows that a blank query matches nothing.
func Example_search() {
	ctx := context.Background()

	store, err := fieldbook.Open(ctx, fieldbook.WithAdapter("memory"))
	if err != nil {
		log.Fatal(err)
	}
	children, err := fieldbook.NewRepository(store, core.KindChild, "worker1")
	if err != nil {
		log.Fatal(err)
	}
	for _, name := range []string{"Ama", "Kofi", "Amaru"} {
		if _, err := children.Create(ctx, core.NewRecord(core.KindChild, core.Fields{"name": name})); err != nil {
			log.Fatal(err)
		}
	}

	found, _ := core.Collect(children.Search(ctx, "ama", []string{"name"}))
	blank, _ := core.Collect(children.Search(ctx, "   ", nil))
	fmt.Println(len(found), len(blank))
	// Output:
	// 2 0
}
