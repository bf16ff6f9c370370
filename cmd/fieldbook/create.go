package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/fieldbook"
	"github.com/aretw0/fieldbook/pkg/core"
)

var (
	writeID     string
	writeFields []string
	writeJSON   string
	writeOutput bool
)

// createCmd represents the create command
var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a record",
	Long: `Create a record of the selected kind. When --id names an existing record
the given fields are merged into it.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		fields, err := parseFields(writeFields, writeJSON)
		if err != nil {
			fatal("Invalid fields", err)
		}

		repo, store := openRepository(ctx)
		defer fieldbook.Close(store)

		rec := core.NewRecord(repo.Kind(), fields)
		if writeID != "" {
			rec.ID = writeID
		}
		saved, err := repo.Create(ctx, rec)
		if err != nil {
			fatal("Failed to create record", err)
		}
		report(saved)
	},
}

// updateCmd represents the update command
var updateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Update an existing record",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		fields, err := parseFields(writeFields, writeJSON)
		if err != nil {
			fatal("Invalid fields", err)
		}

		repo, store := openRepository(ctx)
		defer fieldbook.Close(store)

		saved, err := repo.Update(ctx, core.Record{ID: args[0], Fields: fields})
		if err != nil {
			fatal("Failed to update record", err)
		}
		report(saved)
	},
}

func report(rec core.Record) {
	if writeOutput {
		printJSON(viewOf(rec))
		return
	}
	fmt.Printf("%s '%s' saved (%s).\n", rec.Kind, rec.ID, rec.ShortID())
}

func init() {
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(updateCmd)

	createCmd.Flags().StringVar(&writeID, "id", "", "Record ID (default: a new UUID)")
	for _, c := range []*cobra.Command{createCmd, updateCmd} {
		c.Flags().StringArrayVarP(&writeFields, "field", "f", nil, "Field as key=value (repeatable)")
		c.Flags().StringVar(&writeJSON, "json", "", "Fields as a JSON object")
		c.Flags().BoolVar(&writeOutput, "output-json", false, "Print the saved record as JSON")
	}
}
