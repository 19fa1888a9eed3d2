package cache

import (
	"github.com/ValentinKolb/flipcache/cmd/util"
	"github.com/ValentinKolb/flipcache/lib/session"
	"github.com/spf13/cobra"
)

var (
	sess *session.Session

	// CacheCommands represents the command group for inspecting and editing the local cache
	CacheCommands = &cobra.Command{
		Use:               "cache",
		Short:             "Inspect and edit the local cache without contacting the remote store",
		PersistentPreRunE: setupSession,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return util.CloseSession(sess, cmd.OutOrStdout())
		},
	}
)

func init() {
	// Add subcommands
	CacheCommands.AddCommand(listCmd)
	CacheCommands.AddCommand(delCmd)
	CacheCommands.AddCommand(dropPartitionCmd)
	CacheCommands.AddCommand(partitionsCmd)
	CacheCommands.AddCommand(sweepCmd)
	CacheCommands.AddCommand(keysCmd)

	listCmd.Flags().String("filter-key", "createdAt", util.WrapString("The date field to sort by (createdAt, dateListed, sale.date)"))
	keysCmd.Flags().String("prefix", "", util.WrapString("Only list keys with this prefix"))
}

// setupSession opens the session of the configured user
func setupSession(cmd *cobra.Command, _ []string) (err error) {
	sess, err = util.OpenSession(cmd)
	return err
}
