package commands

import (
	"encoding/json"
	"fmt"

	"bugtracker/internal/version"

	"github.com/spf13/cobra"
)

// VersionCommand prints build information
func VersionCommand(service string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:         "version",
		Short:       "Print build information",
		Annotations: map[string]string{SkipStoreAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get(service)
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(info)
			}
			fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
