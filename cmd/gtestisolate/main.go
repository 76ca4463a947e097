// Command gtestisolate runs a gtest-style binary's declared tests as
// isolated subprocesses, in parallel, and reports the aggregated result.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dkoosis/gtestisolate/internal/catalog"
	"github.com/dkoosis/gtestisolate/internal/config"
	"github.com/dkoosis/gtestisolate/internal/diagnostic"
	"github.com/dkoosis/gtestisolate/internal/scheduler"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	diag := diagnostic.Default()

	fileDefaults, err := config.LoadFileDefaults()
	if err != nil {
		diag.Fatalf("%v", err)
		return 1
	}

	cfg, err := config.Parse(args, fileDefaults)
	if err != nil {
		diag.Fatalf("%v", err)
		return 1
	}

	ctx := context.Background()

	cat, err := catalog.Enumerate(ctx, cfg.ChildVector, catalog.Options{
		Filter:        cfg.Filter,
		AllowDisabled: cfg.AllowDisabledTests,
	})
	if err != nil {
		var badLine *catalog.ErrUnparseableLine
		if ok := asUnparseable(err, &badLine); ok {
			fmt.Fprintln(os.Stderr, badLine.Line)
			return 1
		}
		diag.Fatalf("%v", err)
		return 1
	}

	sched := scheduler.New(cfg, cat, os.Stdout, diag)

	result, err := sched.Run(ctx)
	if err != nil {
		diag.Fatalf("%v", err)
		return 1
	}

	return result.ExitCode
}

func asUnparseable(err error, target **catalog.ErrUnparseableLine) bool {
	e, ok := err.(*catalog.ErrUnparseableLine)
	if ok {
		*target = e
	}
	return ok
}
