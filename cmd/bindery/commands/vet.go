package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pthm/bindery/lib/vet"
)

func vetCmd() *cobra.Command {
	var viewsDir string
	cmd := &cobra.Command{
		Use:   "vet [packages]",
		Short: "Check view directives and the controller methods they call",
		Long: `Vet parses every view under the views directory and reports unknown
directives, malformed attribute values and handler calls that no
controller method answers. Packages default to ./...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if viewsDir == "" {
				viewsDir = cfg.ViewsDir
			}
			if viewsDir == "" {
				viewsDir = "views"
			}
			if len(args) == 0 {
				args = []string{"./..."}
			}

			issues, err := vet.New(vet.Options{}).Run(viewsDir, args...)
			if err != nil {
				return err
			}
			for _, is := range issues {
				fmt.Fprintln(cmd.OutOrStdout(), is.String())
			}
			if len(issues) > 0 {
				return fmt.Errorf("%d issue(s)", len(issues))
			}
			log.Debug("vet clean", "views", viewsDir, "packages", args)
			return nil
		},
	}
	cmd.Flags().StringVar(&viewsDir, "views", "", "views directory (default from config, then ./views)")
	return cmd
}
