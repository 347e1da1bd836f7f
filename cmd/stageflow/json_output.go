package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// render emits v as JSON when asJSON is set and otherwise runs text.
func render(cmd *cobra.Command, asJSON bool, v any, text func() error) error {
	if asJSON {
		return writeJSON(cmd, v)
	}
	return text()
}
