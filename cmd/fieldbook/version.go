package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/fieldbook"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of fieldbook",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fieldbook version %s\n", fieldbook.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
