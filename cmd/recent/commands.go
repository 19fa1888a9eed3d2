package recent

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/flipcache/cmd/util"
	"github.com/ValentinKolb/flipcache/lib/records"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [query]",
		Short: "Remembers the result of a market lookup",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			item, err := itemFromFlags(query)
			if err != nil {
				return err
			}
			if err := sess.Recent().Set(query, item); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "set successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [query]",
		Short: "Prints a remembered market lookup",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			item, ok := sess.Recent().Get(query)
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "query=%q, found=false\n", query)
				return nil
			}
			printItem(cmd, query, item)
			return nil
		},
	}
	updateCmd = &cobra.Command{
		Use:   "update [query]",
		Short: "Replaces the prices of a remembered market lookup",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			item, err := itemFromFlags(query)
			if err != nil {
				return err
			}
			if !sess.Recent().Update(query, item, viper.GetBool("refresh")) {
				return fmt.Errorf("no lookup remembered for %q", query)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "update successfully")
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [query]",
		Short: "Forgets a market lookup",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := sess.Recent().Remove(strings.Join(args, " ")); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "delete successfully")
			return nil
		},
	}
	listCmd = &cobra.Command{
		Use:   "ls",
		Short: "Lists the remembered market lookups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := sess.Recent().ListAll()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-32s %-10s %10s %10s %10s %s\n", "QUERY", "SOURCE", "LOW", "AVG", "HIGH", "SEEN")
			for _, it := range items {
				fmt.Fprintf(out, "%-32s %-10s %10s %10s %10s %s\n",
					it.Query, it.Data.Source, it.Data.Low.StringFixed(2), it.Data.Average.StringFixed(2), it.Data.High.StringFixed(2), util.FormatAge(it.Timestamp))
			}
			fmt.Fprintf(out, "\n%d of %d entries\n", len(items), sess.Recent().Capacity())
			return nil
		},
	}
)

// itemFromFlags builds a MarketItem from the price flags
func itemFromFlags(query string) (records.MarketItem, error) {
	item := records.MarketItem{
		Title:    viper.GetString("title"),
		Source:   viper.GetString("source"),
		Currency: viper.GetString("currency"),
		Samples:  viper.GetInt("samples"),
	}
	if item.Title == "" {
		item.Title = query
	}

	prices := []struct {
		flag string
		dst  *decimal.Decimal
	}{
		{"low", &item.Low},
		{"high", &item.High},
		{"avg", &item.Average},
	}
	for _, p := range prices {
		v, err := decimal.NewFromString(viper.GetString(p.flag))
		if err != nil {
			return records.MarketItem{}, fmt.Errorf("invalid price for --%s: %w", p.flag, err)
		}
		*p.dst = v
	}
	if item.High.LessThan(item.Low) {
		return records.MarketItem{}, fmt.Errorf("--high (%s) is lower than --low (%s)", item.High, item.Low)
	}
	return item, nil
}

func printItem(cmd *cobra.Command, query string, item records.MarketItem) {
	fmt.Fprintf(cmd.OutOrStdout(), "query=%q, title=%q, source=%s, low=%s, avg=%s, high=%s, spread=%s %s, samples=%d\n",
		query, item.Title, item.Source, item.Low.StringFixed(2), item.Average.StringFixed(2), item.High.StringFixed(2),
		item.Spread().StringFixed(2), item.Currency, item.Samples)
}
