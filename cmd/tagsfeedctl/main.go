package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	serverURL string
	timeout   time.Duration
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "tagsfeedctl",
	Short: "Inspect and drive a running tags feed server",
	Long: `tagsfeedctl talks to a tags feed server over its HTTP API.

It can show the current feed, start it with a set of tags, send display
actions such as likes and retries, manage the followed tags, and watch
the live event stream.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", envOrDefault("TAGSFEED_SERVER", "http://localhost:3000"), "Tags feed server URL (or set TAGSFEED_SERVER)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	actionCmd.Flags().StringVar(&actionTag, "tag", "", "Entry key for tag actions")
	actionCmd.Flags().Int64Var(&actionPostID, "post", 0, "Post id for post actions")
	actionCmd.Flags().Int64Var(&actionBlogID, "blog", 0, "Blog id for post actions")

	showCmd.Flags().BoolVar(&showExcerpts, "excerpts", false, "Print post excerpts")

	tagsCmd.AddCommand(tagsSetCmd)

	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(likeCmd)
	rootCmd.AddCommand(actionCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(tagsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
