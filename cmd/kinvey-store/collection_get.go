package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cbre360/js-sdk/pkg/kinvey"
)

var collectionGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Fetch a single entity by id",
	Args:  cobra.ExactArgs(1),
	RunE:  runCollectionGet,
}

func runCollectionGet(cmd *cobra.Command, args []string) error {
	store, err := resolveStore()
	if err != nil {
		return err
	}

	ctx := context.Background()
	var entity kinvey.Entity
	for res := range store.FindByID(ctx, args[0]) {
		if res.Error != nil {
			return res.Error
		}
		entity = res.Entity
	}

	if collectionJSON {
		return printJSON(cmd.OutOrStdout(), entity)
	}
	b, _ := json.MarshalIndent(entity, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}
