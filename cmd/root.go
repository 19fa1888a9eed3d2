package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/flipcache/cmd/cache"
	"github.com/ValentinKolb/flipcache/cmd/recent"
	"github.com/ValentinKolb/flipcache/cmd/sync"
	"github.com/ValentinKolb/flipcache/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "flipcache",
		Short: "local cache of a reseller's inventory, orders and expenses",
		Long: fmt.Sprintf(`flipcache (v%s)

A persistent local mirror of a remote, partitioned collection store.
Collections are merged by record identity, filtered by date and text,
and kept next to a bounded cache of recent market price lookups.

All flags can be set as environment variables FLIPCACHE_<FLAG>
(e.g. FLIPCACHE_DATA_DIR=/tmp/flipcache) or in a .env file.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of flipcache",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("flipcache v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(sync.SyncCmd)
	RootCmd.AddCommand(recent.RecentCommands)
	RootCmd.AddCommand(cache.CacheCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	util.SetupSessionFlags(RootCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
