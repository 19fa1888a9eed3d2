package cache

import (
	"fmt"
	"slices"

	"github.com/ValentinKolb/flipcache/cmd/util"
	"github.com/ValentinKolb/flipcache/lib/records"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	listCmd = &cobra.Command{
		Use:   "ls [root]",
		Short: "Prints the cached collection, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := util.ParseRoot(args[0])
			if err != nil {
				return err
			}
			filterKey, ok := records.ParseFilterKey(viper.GetString("filter-key"))
			if !ok {
				return fmt.Errorf("invalid filter key %s", viper.GetString("filter-key"))
			}
			recs, ok := sess.Engine().Cached(records.CollectionKey(root, sess.UID()), filterKey)
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "nothing cached for %s\n", root)
				return nil
			}
			util.PrintRecords(cmd.OutOrStdout(), recs, filterKey)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [root] [identity]",
		Short: "Deletes a single record from the cached collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := util.ParseRoot(args[0])
			if err != nil {
				return err
			}
			if !sess.Engine().RemoveRecord(records.CollectionKey(root, sess.UID()), args[1]) {
				return fmt.Errorf("record %s is not cached in %s", args[1], root)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "delete successfully")
			return nil
		},
	}
	dropPartitionCmd = &cobra.Command{
		Use:   "drop-partition [root] [partition]",
		Short: "Deletes every cached record of a partition (e.g. a disconnected store)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := util.ParseRoot(args[0])
			if err != nil {
				return err
			}
			n := sess.Engine().RemovePartition(records.CollectionKey(root, sess.UID()), args[1])
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d records\n", n)
			return nil
		},
	}
	partitionsCmd = &cobra.Command{
		Use:   "partitions [root]",
		Short: "Resolves and prints the partitions of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := util.ParseRoot(args[0])
			if err != nil {
				return err
			}
			partitions, err := sess.Resolver().Resolve(cmd.Context(), sess.UID(), root, "")
			for _, p := range partitions {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: partitions incomplete: %v\n", err)
			}
			return nil
		},
	}
	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Removes expired cache entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired entries\n", sess.Sweep())
			return nil
		},
	}
	keysCmd = &cobra.Command{
		Use:   "keys",
		Short: "Lists the keys of the durable store with their sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			keys, err := sess.Store().KeysWithPrefix(viper.GetString("prefix"))
			if err != nil {
				return err
			}
			slices.Sort(keys)
			values, err := sess.Store().MultiGet(keys)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var total uint64
			for _, v := range values {
				size := uint64(len(v.Value))
				total += size
				fmt.Fprintf(out, "%-48s %10s\n", v.Key, humanize.Bytes(size))
			}
			fmt.Fprintf(out, "\n%s keys, %s\n", humanize.Comma(int64(len(values))), humanize.Bytes(total))
			return nil
		},
	}
)
