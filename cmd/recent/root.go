package recent

import (
	"github.com/ValentinKolb/flipcache/cmd/util"
	"github.com/ValentinKolb/flipcache/lib/session"
	"github.com/spf13/cobra"
)

var (
	sess *session.Session

	// RecentCommands represents the command group of the recent market lookups
	RecentCommands = &cobra.Command{
		Use:               "recent",
		Short:             "Manage the recent market price lookups",
		PersistentPreRunE: setupSession,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return util.CloseSession(sess, cmd.OutOrStdout())
		},
	}
)

func init() {
	// Add subcommands
	RecentCommands.AddCommand(setCmd)
	RecentCommands.AddCommand(getCmd)
	RecentCommands.AddCommand(updateCmd)
	RecentCommands.AddCommand(delCmd)
	RecentCommands.AddCommand(listCmd)

	for _, cmd := range []*cobra.Command{setCmd, updateCmd} {
		cmd.Flags().String("title", "", util.WrapString("Display title of the item (defaults to the query)"))
		cmd.Flags().String("source", "", util.WrapString("Where the prices were observed (e.g. stockx)"))
		cmd.Flags().String("currency", "USD", util.WrapString("Currency of the prices"))
		cmd.Flags().String("low", "0", util.WrapString("Lowest observed price"))
		cmd.Flags().String("high", "0", util.WrapString("Highest observed price"))
		cmd.Flags().String("avg", "0", util.WrapString("Average observed price"))
		cmd.Flags().Int("samples", 0, util.WrapString("Number of observed sales"))
	}
	updateCmd.Flags().Bool("refresh", false, util.WrapString("Move the lookup to the front of the recency order"))
}

// setupSession opens the session of the configured user
func setupSession(cmd *cobra.Command, _ []string) (err error) {
	sess, err = util.OpenSession(cmd)
	return err
}
