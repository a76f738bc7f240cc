package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cbre360/js-sdk/internal/config"
	"github.com/cbre360/js-sdk/internal/persister"
	"github.com/cbre360/js-sdk/internal/refsqlite"
	"github.com/cbre360/js-sdk/pkg/kinvey"
)

var (
	collectionName   string
	collectionMode   string
	collectionTag    string
	collectionDBPath string
	collectionMemory bool
	collectionConfig string
	collectionJSON   bool
)

var collectionCmd = &cobra.Command{
	Use:     "collection",
	Aliases: []string{"c"},
	Short:   "Operate on a DataStore collection",
	Long:    "Create, query, and sync entities in a single collection without running a mobile app.",
}

func init() {
	collectionCmd.PersistentFlags().StringVar(&collectionName, "collection", "", "collection name (required)")
	collectionCmd.PersistentFlags().StringVar(&collectionMode, "mode", "cache", "store mode: network, sync, or cache")
	collectionCmd.PersistentFlags().StringVar(&collectionTag, "tag", "", "cache partition tag")
	collectionCmd.PersistentFlags().StringVar(&collectionDBPath, "db", "kinvey-store.db", "refsqlite database path for the offline cache")
	collectionCmd.PersistentFlags().BoolVar(&collectionMemory, "memory", false, "use an in-memory offline cache instead of --db (discarded on exit)")
	collectionCmd.PersistentFlags().StringVar(&collectionConfig, "config", "", "client config YAML path (overrides KINVEY_CONFIG_PATH)")
	collectionCmd.PersistentFlags().BoolVar(&collectionJSON, "json", false, "output in JSON format")
	_ = collectionCmd.MarkPersistentFlagRequired("collection")

	collectionCmd.AddCommand(collectionFindCmd)
	collectionCmd.AddCommand(collectionGetCmd)
	collectionCmd.AddCommand(collectionSaveCmd)
	collectionCmd.AddCommand(collectionRemoveCmd)
	collectionCmd.AddCommand(collectionSyncCmd)
	collectionCmd.AddCommand(collectionStatsCmd)
}

// storeMode parses the --mode flag into a kinvey.Mode.
func storeMode() (kinvey.Mode, error) {
	switch collectionMode {
	case "network":
		return kinvey.ModeNetwork, nil
	case "sync":
		return kinvey.ModeSync, nil
	case "cache", "":
		return kinvey.ModeCache, nil
	default:
		return 0, fmt.Errorf("invalid --mode %q (want network, sync, or cache)", collectionMode)
	}
}

// resolveClient loads ClientConfig and wires a Client against either a
// refsqlite-backed persister (--db) or an in-memory one (--memory), the
// way resolveStoreManager resolves a StoreManager from config plus a root
// override.
func resolveClient() (*kinvey.Client, error) {
	var cfg *config.ClientConfig
	var err error
	if collectionConfig != "" {
		cfg, err = config.LoadFromFile(collectionConfig)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var kv persister.KeyValuePersister
	if collectionMemory {
		kv = persister.NewMemoryPersister()
	} else {
		store, err := refsqlite.Open(collectionDBPath)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", collectionDBPath, err)
		}
		kv = store
	}

	return kinvey.OpenClient(kinvey.ClientOptions{
		AppKey:            cfg.AppKey,
		AppSecret:         cfg.AppSecret,
		MasterSecret:      cfg.MasterSecret,
		APIHostname:       cfg.APIHostname,
		MICHostname:       cfg.MICHostname,
		Persister:         kv,
		SyncManagerConfig: cfg.SyncManagerConfig(),
	})
}

// resolveStore resolves a Client and opens the requested collection in the
// requested mode/tag in one step.
func resolveStore() (*kinvey.DataStore, error) {
	client, err := resolveClient()
	if err != nil {
		return nil, err
	}
	mode, err := storeMode()
	if err != nil {
		return nil, err
	}
	return client.Collection(collectionName, mode, collectionTag), nil
}
