package cmd

import (
	_ "embed"

	"github.com/spf13/cobra"

	"github.com/wardentools/warden/cli"
)

//go:embed docs.json
var docsJSON []byte

func newDocsCmd() *cobra.Command {
	return cli.NewDocsCommand(docsJSON)
}
