package bidsgo_test

import (
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/bidsgo"
)

func ExampleNew() {
	layout, err := bidsgo.New(context.Background(), []string{"/data/ds000117"},
		bidsgo.WithDerivatives(true))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(layout.Entities()["subject"])
}

func ExampleLayout_Get() {
	layout, err := bidsgo.New(context.Background(), []string{"/data/ds000117"})
	if err != nil {
		log.Fatal(err)
	}

	// run matches any zero-padded form: run-1, run-01, run-001.
	bold, err := layout.Get(bidsgo.Query{"subject": "01", "suffix": "bold", "run": 1})
	if err != nil {
		log.Fatal(err)
	}
	for f := range bold.All() {
		fmt.Println(f.Path)
	}
}

func ExampleLayout_IndexMetadata() {
	layout, err := bidsgo.New(context.Background(), []string{"/data/ds000117"})
	if err != nil {
		log.Fatal(err)
	}

	layout, err = layout.IndexMetadata(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	rest, err := layout.Get(bidsgo.Query{"TaskName": "rest"})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(rest.Len())
}
