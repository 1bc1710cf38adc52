package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/pthm/bindery/lib/route"
)

type matchResult struct {
	URI        string         `yaml:"uri"`
	Pattern    string         `yaml:"pattern,omitempty"`
	Redirected string         `yaml:"redirected,omitempty"`
	View       string         `yaml:"view,omitempty"`
	Params     map[string]any `yaml:"params,omitempty"`
	Query      map[string]any `yaml:"query,omitempty"`
}

func matchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match <routes.yaml> <uri>...",
		Short: "Show which route table entry each address selects",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			t, err := route.LoadTable(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			m, err := tableMatcher(t)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			results := make([]matchResult, 0, len(args)-1)
			for _, uri := range args[1:] {
				tx, err := m.Run(context.Background(), uri)
				if err != nil {
					return err
				}
				r := matchResult{URI: uri, Redirected: tx.Redirected, Params: tx.Params, Query: tx.Query}
				if v, ok := tx.Get("pattern"); ok {
					r.Pattern = v.(string)
				}
				if v, ok := tx.Get("view"); ok {
					r.View = v.(string)
				}
				results = append(results, r)
			}

			out, err := yaml.Marshal(results)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	return cmd
}

// tableMatcher registers every entry of t with a step that records its
// pattern and view. Redirects are registered after their targets.
func tableMatcher(t *route.Table) (*route.Matcher, error) {
	m := route.New()
	record := func(e route.Entry) route.Handler {
		return func(ctx context.Context, tx *route.Transaction) error {
			tx.Set("pattern", e.Pattern)
			tx.Set("view", e.View)
			return nil
		}
	}
	for _, e := range t.Routes {
		if e.Redirect != "" {
			continue
		}
		if err := m.Register(e.Pattern, record(e)); err != nil {
			return nil, err
		}
	}
	for _, e := range t.Routes {
		if e.Redirect == "" {
			continue
		}
		if err := m.Redirect(e.Pattern, e.Redirect); err != nil {
			return nil, err
		}
	}
	if t.NotFound != nil {
		e := *t.NotFound
		e.Pattern = route.NotFoundPattern
		if err := m.NotFound(record(e)); err != nil {
			return nil, err
		}
	}
	return m, nil
}
