package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDocsCommand creates a 'docs' command that prints embedded JSON
// documentation. Tooling that drives warden programmatically (including the
// agents it supervises) reads this instead of parsing --help text.
func NewDocsCommand(docsJSON []byte) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Print this tool's structured documentation as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(string(docsJSON))
			return nil
		},
	}
	return cmd
}
