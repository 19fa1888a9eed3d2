package util

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ValentinKolb/flipcache/lib/common"
	"github.com/ValentinKolb/flipcache/lib/mergesync"
	"github.com/ValentinKolb/flipcache/lib/records"
	"github.com/ValentinKolb/flipcache/lib/remote"
	"github.com/ValentinKolb/flipcache/lib/session"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// SetupSessionFlags adds the session configuration flags to a command
func SetupSessionFlags(cmd *cobra.Command) {
	defaults := common.DefaultConfig()

	key := "uid"
	cmd.PersistentFlags().String(key, "", WrapString("The user whose caches are used (required)"))

	key = "data-dir"
	cmd.PersistentFlags().String(key, defaults.DataDir, WrapString("The directory the durable store is kept in"))

	key = "store"
	cmd.PersistentFlags().String(key, string(defaults.StoreType), WrapString("The durable store to use (pebble, memory). The memory store is written to a snapshot file on exit"))

	key = "codec"
	cmd.PersistentFlags().String(key, defaults.Codec, WrapString("The codec cache entries are encoded with (json, gob)"))

	key = "ttl"
	cmd.PersistentFlags().Duration(key, defaults.CollectionTTL, WrapString("The time-to-live of cached collections"))

	key = "partition-ttl"
	cmd.PersistentFlags().Duration(key, defaults.PartitionTTL, WrapString("The time-to-live of cached partition lists"))

	key = "recency-capacity"
	cmd.PersistentFlags().Int(key, defaults.RecencyCapacity, WrapString("How many recent market lookups are remembered"))

	key = "fetch-concurrency"
	cmd.PersistentFlags().Int(key, defaults.FetchConcurrency, WrapString("How many partitions are fetched at the same time"))

	key = "endpoints"
	cmd.PersistentFlags().String(key, "", WrapString("Comma-separated list of remote store endpoints (e.g. https://api.example.com). Without endpoints only cached data is available"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, defaults.TimeoutSecond, WrapString("The timeout in seconds of remote requests"))

	key = "retries"
	cmd.PersistentFlags().Int(key, defaults.Retries, WrapString("How many times to try a remote request"))

	key = "token"
	cmd.PersistentFlags().String(key, "", WrapString("The auth token sent to the remote store"))

	key = "accounts"
	cmd.PersistentFlags().String(key, "", WrapString("Comma-separated list of connected external stores (e.g. ebay,grailed)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, defaults.LogLevel, WrapString("The level at which logs will be output (debug, info, warn, error)"))

	key = "stats"
	cmd.PersistentFlags().Bool(key, false, WrapString("Print cache metrics after the command"))
}

// InitConfig loads .env files and sets up environment variable lookup (FLIPCACHE_<FLAG>)
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("flipcache")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetConfig reads the session configuration from viper
func GetConfig() common.Config {
	return common.Config{
		UID:              viper.GetString("uid"),
		DataDir:          viper.GetString("data-dir"),
		StoreType:        common.StoreType(viper.GetString("store")),
		Codec:            viper.GetString("codec"),
		CollectionTTL:    viper.GetDuration("ttl"),
		PartitionTTL:     viper.GetDuration("partition-ttl"),
		RecencyCapacity:  viper.GetInt("recency-capacity"),
		FetchConcurrency: viper.GetInt("fetch-concurrency"),
		Endpoints:        SplitList(viper.GetString("endpoints")),
		TimeoutSecond:    viper.GetInt("timeout"),
		Retries:          viper.GetInt("retries"),
		Token:            viper.GetString("token"),
		Accounts:         SplitList(viper.GetString("accounts")),
		LogLevel:         viper.GetString("log-level"),
	}
}

// SplitList splits a comma-separated list, dropping empty elements
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// --------------------------------------------------------------------------
// Session handling
// --------------------------------------------------------------------------

// ErrOffline is returned by the fetcher of sessions without endpoints
var ErrOffline = errors.New("no remote endpoints configured")

// offlineFetcher fails every fetch, so syncs only return cached data
type offlineFetcher struct{}

func (offlineFetcher) Fetch(context.Context, mergesync.FetchRequest) ([]records.Record, error) {
	return nil, ErrOffline
}

// offlineLister fails every partition listing
type offlineLister struct{}

func (offlineLister) ListPartitions(context.Context, string, records.RootKind) ([]string, error) {
	return nil, ErrOffline
}

// OpenSession binds the flags of cmd, initializes logging and opens a session with
// the configured remote collaborators
func OpenSession(cmd *cobra.Command) (*session.Session, error) {
	if err := BindCommandFlags(cmd); err != nil {
		return nil, err
	}
	cfg := GetConfig()
	if err := common.InitLoggers(cfg.LogLevel, os.Stderr); err != nil {
		return nil, err
	}

	tokens := remote.StaticToken(cfg.Token)
	collab := session.Collaborators{
		Tokens:   tokens,
		Accounts: remote.StaticAccounts(cfg.Accounts),
		Lister:   offlineLister{},
		Fetcher:  offlineFetcher{},
	}
	if len(cfg.Endpoints) > 0 {
		client, err := remote.NewClient(remote.Config{
			Endpoints:     cfg.Endpoints,
			TimeoutSecond: cfg.TimeoutSecond,
			RetryCount:    cfg.Retries,
		}, tokens)
		if err != nil {
			return nil, err
		}
		collab.Lister = client
		collab.Fetcher = client
	}

	return session.Open(cfg, collab)
}

// CloseSession prints the metrics of s if requested and closes it
func CloseSession(s *session.Session, w io.Writer) error {
	if s == nil {
		return nil
	}
	if viper.GetBool("stats") {
		fmt.Fprintln(w, "\nCOUNTERS")
		s.Stats().WritePrometheus(w)
		fmt.Fprintln(w, "\nTIMINGS")
		s.Stats().WriteTimings(w)
	}
	return s.Close()
}

// --------------------------------------------------------------------------
// Output helpers
// --------------------------------------------------------------------------

// FormatAge renders t relative to now (e.g. "3 hours ago"), or "-" for the zero time
func FormatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// ParseRoot returns the root collection named by arg
func ParseRoot(arg string) (records.RootKind, error) {
	root, ok := records.ParseRootKind(arg)
	if !ok {
		names := make([]string, len(records.RootKinds))
		for i, r := range records.RootKinds {
			names[i] = string(r)
		}
		return "", fmt.Errorf("invalid root collection %s (expected one of: %s)", arg, strings.Join(names, ", "))
	}
	return root, nil
}

// PrintRecords writes recs as a table with the date selected by key
func PrintRecords(w io.Writer, recs []records.Record, key records.FilterKey) {
	fmt.Fprintf(w, "%-24s %-8s %-16s %-16s %s\n", "IDENTITY", "KIND", "PARTITION", string(key), "TITLE")
	for _, r := range recs {
		date, _ := r.DateFor(key)
		fmt.Fprintf(w, "%-24s %-8s %-16s %-16s %s\n", r.Identity(), r.Kind, r.Partition(), FormatAge(date), r.Title())
	}
}
