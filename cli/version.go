package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wardentools/warden/version"
)

// SetVersionTemplate wires the build metadata into cobra's --version output.
func SetVersionTemplate(cmd *cobra.Command, info version.Info) {
	cmd.SetVersionTemplate(fmt.Sprintf(`{{.Name}} {{.Version}}
  Commit:   %s
  Built:    %s
  Platform: %s
`, info.Commit, info.BuildDate, info.Platform))
}

// NewVersionCommand builds the version subcommand. With --json it emits
// the full build metadata as one object.
func NewVersionCommand(name string, info version.Info) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: fmt.Sprintf("Print the %s version", name),
		RunE: func(cmd *cobra.Command, args []string) error {
			if GetOptions(cmd).JSONOutput {
				data, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}
			fmt.Printf("%s %s\n", name, info.Version)
			fmt.Printf("  Commit:   %s\n", info.Commit)
			fmt.Printf("  Built:    %s\n", info.BuildDate)
			fmt.Printf("  Go:       %s\n", info.GoVersion)
			fmt.Printf("  Platform: %s\n", info.Platform)
			return nil
		},
	}
}
