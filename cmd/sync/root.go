package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ValentinKolb/flipcache/cmd/util"
	"github.com/ValentinKolb/flipcache/lib/mergesync"
	"github.com/ValentinKolb/flipcache/lib/records"
	"github.com/ValentinKolb/flipcache/lib/session"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	sess *session.Session

	// SyncCmd syncs a root collection and prints the filtered result
	SyncCmd = &cobra.Command{
		Use:   "sync [root]",
		Short: "Sync a collection with the remote store and print it",
		Long: `Sync a root collection (inventory, orders, expenses-one-time, expenses-subscription).

All partitions of the collection are fetched, merged into the local cache and the merged
collection is printed newest first, filtered by date window, partition and search text.
Partitions that can not be fetched are reported, the cached data is printed anyway.`,
		Args:              cobra.ExactArgs(1),
		PersistentPreRunE: setupSession,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return util.CloseSession(sess, cmd.OutOrStdout())
		},
		RunE: run,
	}
)

func init() {
	key := "filter-key"
	SyncCmd.Flags().String(key, string(records.FilterCreatedAt), util.WrapString("The date field to sort and filter by (createdAt, dateListed, sale.date)"))

	key = "since"
	SyncCmd.Flags().Duration(key, 90*24*time.Hour, util.WrapString("Only return records newer than this"))

	key = "until"
	SyncCmd.Flags().String(key, "", util.WrapString("Only return records older than this date (RFC 3339 or YYYY-MM-DD)"))

	key = "partition"
	SyncCmd.Flags().String(key, "", util.WrapString("Only sync this partition (e.g. a connected store)"))

	key = "search"
	SyncCmd.Flags().String(key, "", util.WrapString("Only return records where one of the search fields contains this text (case-insensitive)"))

	key = "fields"
	SyncCmd.Flags().String(key, "title", util.WrapString("Comma-separated list of fields to search in, nested fields use dots (e.g. title,sale.platform)"))

	key = "page-size"
	SyncCmd.Flags().Int(key, 0, util.WrapString("Print only the first pages*page-size records (0 prints all)"))

	key = "pages"
	SyncCmd.Flags().Int(key, 1, util.WrapString("How many pages to print"))

	key = "refresh"
	SyncCmd.Flags().Bool(key, false, util.WrapString("Ask the remote store to bypass its own caches"))

	key = "json"
	SyncCmd.Flags().Bool(key, false, util.WrapString("Print the records as JSON"))
}

// setupSession opens the session of the configured user
func setupSession(cmd *cobra.Command, _ []string) (err error) {
	sess, err = util.OpenSession(cmd)
	return err
}

func run(cmd *cobra.Command, args []string) error {
	root, err := util.ParseRoot(args[0])
	if err != nil {
		return err
	}
	filterKey, ok := records.ParseFilterKey(viper.GetString("filter-key"))
	if !ok {
		return fmt.Errorf("invalid filter key %s (expected one of: createdAt, dateListed, sale.date)", viper.GetString("filter-key"))
	}

	req := mergesync.Request{
		Root:         root,
		FilterKey:    filterKey,
		From:         time.Now().Add(-viper.GetDuration("since")),
		Partition:    viper.GetString("partition"),
		SearchFields: util.SplitList(viper.GetString("fields")),
		SearchText:   viper.GetString("search"),
		ForceRefresh: viper.GetBool("refresh"),
	}
	if until := viper.GetString("until"); until != "" {
		to, ok := records.Timestamp(until).Time()
		if !ok {
			return fmt.Errorf("invalid date for --until: %s", until)
		}
		req.To = &to
	}
	pager := mergesync.Pager{Size: viper.GetInt("page-size")}
	req.Paginate = pager.Size > 0
	req.FetchNextPage = viper.GetInt("pages") > 1

	res := sess.Sync(cmd.Context(), req)
	for _, p := range res.Partitions {
		if p.Err != nil {
			fmt.Fprintf(os.Stderr, "warning: partition %s failed: %v\n", p.Name, p.Err)
		}
	}
	if res.ResolveErr != nil {
		fmt.Fprintf(os.Stderr, "warning: partitions incomplete: %v\n", res.ResolveErr)
	}

	page, more := pager.Page(res.Records, viper.GetInt("pages"))
	out := cmd.OutOrStdout()
	if viper.GetBool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(page)
	}

	util.PrintRecords(out, page, filterKey)
	fmt.Fprintf(out, "\n%d of %d records", len(page), len(res.Records))
	if more {
		fmt.Fprint(out, " (more available, use --pages)")
	}
	fmt.Fprintln(out)
	return nil
}
