package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/fieldbook"
	"github.com/aretw0/fieldbook/pkg/core"
)

var (
	listJSON     bool
	listUnsynced bool
	searchFields string
)

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show a record",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		repo, store := openRepository(ctx)
		defer fieldbook.Close(store)

		rec, err := repo.Get(ctx, args[0])
		if err != nil {
			fatal("Failed to read record", err)
		}
		printJSON(viewOf(rec))
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List records of the current user",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		repo, store := openRepository(ctx)
		defer fieldbook.Close(store)

		seq := repo.All(ctx)
		if listUnsynced {
			seq = repo.ToBeSynced(ctx)
		}
		recs, err := core.Collect(seq)
		if err != nil {
			fatal("Failed to list records", err)
		}
		printRecords(recs, listJSON)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search records by field text",
	Long: `Search the current user's records for a case-insensitive substring.
--fields restricts the search to a comma separated list of field names or
glob patterns; by default every field is searched.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		repo, store := openRepository(ctx)
		defer fieldbook.Close(store)

		var fields []string
		for _, f := range strings.Split(searchFields, ",") {
			if f = strings.TrimSpace(f); f != "" {
				fields = append(fields, f)
			}
		}
		recs, err := core.Collect(repo.Search(ctx, args[0], fields))
		if err != nil {
			fatal("Failed to search records", err)
		}
		printRecords(recs, listJSON)
	},
}

var sizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Count records of the current user",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		repo, store := openRepository(ctx)
		defer fieldbook.Close(store)

		n, err := repo.Size(ctx)
		if err != nil {
			fatal("Failed to count records", err)
		}
		fmt.Println(n)
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(sizeCmd)

	listCmd.Flags().BoolVar(&listUnsynced, "unsynced", false, "Only records not yet acknowledged by the server")
	for _, c := range []*cobra.Command{listCmd, searchCmd} {
		c.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	}
	searchCmd.Flags().StringVar(&searchFields, "fields", "", "Comma separated field names or patterns")
}
