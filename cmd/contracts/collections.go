package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/contracts-analyzer/internal/repository"
)

func newCollectionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "Manage saved collections",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close()
			return a.runCollectionsList(cmd.Context())
		},
	})
	return cmd
}

func (a *app) runCollectionsList(ctx context.Context) error {
	db, err := a.sqlite(ctx)
	if err != nil {
		return err
	}
	infos, err := repository.NewCollectionStore(db, a.logger).List(ctx)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintln(a.out, "No collections saved.")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDOCUMENTS\tCHUNKS\tCREATED")
	for _, c := range infos {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", c.Name, c.Sources, c.Chunks, c.CreatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}
