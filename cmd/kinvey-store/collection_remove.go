package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cbre360/js-sdk/pkg/kinvey"
)

var removeFilterJSON string

var collectionRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove one entity by id, or every entity matching --filter",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCollectionRemove,
}

func init() {
	collectionRemoveCmd.Flags().StringVar(&removeFilterJSON, "filter", "", "JSON Filter node; removes every match instead of a single id")
}

func runCollectionRemove(cmd *cobra.Command, args []string) error {
	store, err := resolveStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	var n int
	switch {
	case len(args) == 1:
		n, err = store.RemoveByID(ctx, args[0])
	case removeFilterJSON != "":
		var filter kinvey.Filter
		if ferr := json.Unmarshal([]byte(removeFilterJSON), &filter); ferr != nil {
			return fmt.Errorf("parsing --filter: %w", ferr)
		}
		n, err = store.Remove(ctx, kinvey.NewQuery().WithFilter(&filter))
	default:
		return fmt.Errorf("remove requires an id argument or --filter")
	}
	if err != nil {
		return err
	}

	if collectionJSON {
		return printJSON(cmd.OutOrStdout(), map[string]any{"removed": n})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d entities\n", n)
	return nil
}
