package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var collectionStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report entity and pending-sync counts for the collection",
	RunE:  runCollectionStats,
}

func runCollectionStats(cmd *cobra.Command, args []string) error {
	client, err := resolveClient()
	if err != nil {
		return err
	}

	stats, err := client.Stats(context.Background(), collectionName, collectionTag)
	if err != nil {
		return err
	}

	if collectionJSON {
		return printJSON(cmd.OutOrStdout(), stats)
	}
	tw := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintf(tw, "collection\t%s\n", stats.Collection)
	fmt.Fprintf(tw, "entities\t%d\n", stats.EntityCount)
	fmt.Fprintf(tw, "pending sync\t%d\n", stats.PendingSyncCount)
	return tw.Flush()
}
