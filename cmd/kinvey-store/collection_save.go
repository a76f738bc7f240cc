package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cbre360/js-sdk/pkg/kinvey"
)

var saveEntityJSON string

var collectionSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Create or update an entity",
	Long:  "Save an entity. --entity takes a JSON object; entities carrying _id are updated, others created.",
	RunE:  runCollectionSave,
}

func init() {
	collectionSaveCmd.Flags().StringVar(&saveEntityJSON, "entity", "", "JSON entity object (required)")
	_ = collectionSaveCmd.MarkFlagRequired("entity")
}

func runCollectionSave(cmd *cobra.Command, args []string) error {
	var entity kinvey.Entity
	if err := json.Unmarshal([]byte(saveEntityJSON), &entity); err != nil {
		return fmt.Errorf("parsing --entity: %w", err)
	}

	store, err := resolveStore()
	if err != nil {
		return err
	}

	saved, err := store.Save(context.Background(), entity)
	if err != nil {
		return err
	}

	if collectionJSON {
		return printJSON(cmd.OutOrStdout(), saved)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", saved.ID())
	return nil
}
