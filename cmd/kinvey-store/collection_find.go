package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cbre360/js-sdk/pkg/kinvey"
)

var (
	findFilterJSON string
	findSkip       int
	findLimit      int
)

var collectionFindCmd = &cobra.Command{
	Use:   "find",
	Short: "Find entities matching a filter",
	Long:  "Find entities in the collection. --filter takes a JSON Filter node, e.g. {\"op\":\"$eq\",\"field\":\"done\",\"value\":true}.",
	RunE:  runCollectionFind,
}

func init() {
	collectionFindCmd.Flags().StringVar(&findFilterJSON, "filter", "", "JSON Filter node (default: match everything)")
	collectionFindCmd.Flags().IntVar(&findSkip, "skip", 0, "number of entities to skip")
	collectionFindCmd.Flags().IntVar(&findLimit, "limit", 0, "maximum number of entities to return (0 = unbounded)")
}

func parseFilterFlag() (*kinvey.Filter, error) {
	if findFilterJSON == "" {
		return nil, nil
	}
	var f kinvey.Filter
	if err := json.Unmarshal([]byte(findFilterJSON), &f); err != nil {
		return nil, fmt.Errorf("parsing --filter: %w", err)
	}
	return &f, nil
}

func runCollectionFind(cmd *cobra.Command, args []string) error {
	filter, err := parseFilterFlag()
	if err != nil {
		return err
	}
	q := kinvey.NewQuery().WithFilter(filter).WithSkip(findSkip).WithLimit(findLimit)

	store, err := resolveStore()
	if err != nil {
		return err
	}

	ctx := context.Background()
	var entities []kinvey.Entity
	for res := range store.Find(ctx, q) {
		if res.Error != nil {
			return res.Error
		}
		entities = res.Entities
	}

	if collectionJSON {
		return printJSON(cmd.OutOrStdout(), entities)
	}
	tw := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(tw, "ID\tFIELDS")
	for _, e := range entities {
		b, _ := json.Marshal(e)
		fmt.Fprintf(tw, "%s\t%s\n", e.ID(), b)
	}
	return tw.Flush()
}
