package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/pthm/bindery"
	"github.com/pthm/bindery/lib/dom"
	"github.com/pthm/bindery/lib/route"
	"github.com/pthm/bindery/lib/views"
)

func renderCmd() *cobra.Command {
	var (
		statePath string
		uri       string
		fragment  bool
	)
	cmd := &cobra.Command{
		Use:   "render <view>",
		Short: "Render one view against a YAML state file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := loadState(statePath)
			if err != nil {
				return err
			}

			dir, name := filepath.Dir(args[0]), filepath.Base(args[0])
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			app, err := bindery.New(ctx, bindery.Options{
				Config: cfg,
				Logger: log,
				Views:  &views.Dir{FS: os.DirFS(dir)},
			})
			if err != nil {
				return err
			}
			app.OnError = func(err error) {
				log.Warn("render", "err", err)
			}
			if err := app.NotFound(bindery.NewStatic(name, state)); err != nil {
				return err
			}
			if err := app.Navigate(ctx, uri); err != nil {
				return err
			}

			out := app.Document().HTML()
			if fragment {
				outlet := app.Outlet()
				if outlet == nil {
					return fmt.Errorf("document has no outlet")
				}
				out = dom.InnerHTML(outlet)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVarP(&statePath, "state", "s", "", "YAML file with the model state")
	cmd.Flags().StringVar(&uri, "uri", "/", "address the view is rendered for")
	cmd.Flags().BoolVar(&fragment, "fragment", false, "print only the outlet content")
	return cmd
}

// loadState reads a YAML mapping into model state.
func loadState(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(bs, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return route.StringMaps(raw).(map[string]any), nil
}
