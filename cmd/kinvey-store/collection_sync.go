package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cbre360/js-sdk/internal/syncmanager"
)

var (
	syncDeltaSet    bool
	syncAutoPaginate bool
	syncPageSize    int
	syncDirection   string
)

var collectionSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run push, pull, or both against the network",
	Long:  "Drains queued SyncItems (push), fetches remote changes into the offline cache (pull), or both (the default), for Sync/Cache mode collections.",
	RunE:  runCollectionSync,
}

func init() {
	collectionSyncCmd.Flags().StringVar(&syncDirection, "direction", "both", "push, pull, or both")
	collectionSyncCmd.Flags().BoolVar(&syncDeltaSet, "delta-set", false, "use delta-set pull when a CachedQuery high-water-mark exists")
	collectionSyncCmd.Flags().BoolVar(&syncAutoPaginate, "auto-paginate", false, "auto-paginate an unbounded pull across multiple pages")
	collectionSyncCmd.Flags().IntVar(&syncPageSize, "page-size", 0, "page size for auto-pagination (0 = client default)")
}

func runCollectionSync(cmd *cobra.Command, args []string) error {
	store, err := resolveStore()
	if err != nil {
		return err
	}
	ctx := context.Background()
	opts := syncmanager.Options{UseDeltaSet: syncDeltaSet, AutoPagination: syncAutoPaginate, PageSize: syncPageSize}

	switch syncDirection {
	case "push":
		results, err := store.Push(ctx, nil)
		if err != nil {
			return err
		}
		return reportPush(cmd, results)
	case "pull":
		n, err := store.Pull(ctx, nil, opts)
		if err != nil {
			return err
		}
		if collectionJSON {
			return printJSON(cmd.OutOrStdout(), map[string]any{"pulled": n})
		}
		return reportPull(cmd, n)
	case "both", "":
		result, err := store.Sync(ctx, nil, opts)
		if err != nil {
			return err
		}
		if collectionJSON {
			return printJSON(cmd.OutOrStdout(), result)
		}
		if rerr := reportPush(cmd, result.Push); rerr != nil {
			return rerr
		}
		return reportPull(cmd, result.Pull)
	default:
		return fmt.Errorf("invalid --direction %q (want push, pull, or both)", syncDirection)
	}
}

func reportPush(cmd *cobra.Command, results []syncmanager.PushResult) error {
	if collectionJSON {
		return printJSON(cmd.OutOrStdout(), results)
	}
	tw := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(tw, "ENTITY\tOPERATION\tSTATUS")
	for _, r := range results {
		status := "ok"
		if r.Error != nil {
			status = r.Error.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.EntityID, r.Operation, status)
	}
	return tw.Flush()
}

func reportPull(cmd *cobra.Command, n int) error {
	fmt.Fprintf(cmd.OutOrStdout(), "pulled %d entities\n", n)
	return nil
}
