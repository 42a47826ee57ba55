package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/blakestevenson/watchlog/internal/catalogue"
	"github.com/blakestevenson/watchlog/internal/contentful"
	"github.com/blakestevenson/watchlog/internal/storage"
	"github.com/spf13/cobra"
)

func newSnapshotsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List and restore published versions of the Contentful entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newSnapshotsListCommand(a), newSnapshotsRestoreCommand(a))
	return cmd
}

func newSnapshotsListCommand(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show recent snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.contentful()
			if err != nil {
				return err
			}

			snapshots, err := client.ListSnapshots(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(snapshots) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no snapshots found")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUPDATED\tMOVIES\tTV")
			for _, s := range snapshots {
				movies, shows := countTypes(s.Items)
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", s.ID, s.UpdatedAt.Format(time.DateTime), movies, shows)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 5, "number of snapshots to show")
	return cmd
}

func newSnapshotsRestoreCommand(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "restore <snapshot-id>",
		Short: "Replace the catalogue with the contents of a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.contentful()
			if err != nil {
				return err
			}

			snapshot, err := client.GetSnapshot(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			movies, shows := countTypes(snapshot.Items)
			fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s from %s holds %d movies and %d TV shows\n",
				snapshot.ID, snapshot.UpdatedAt.Format(time.DateTime), movies, shows)

			if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "replace the current catalogue?") {
				fmt.Fprintln(cmd.OutOrStdout(), "aborted")
				return nil
			}

			svc := catalogue.NewService(client, a.logger)
			if err := svc.ReplaceAll(cmd.Context(), snapshot.Items); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "catalogue restored")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// contentful builds a Contentful client; snapshots only exist in that backend
func (a *app) contentful() (*contentful.Client, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	return storage.Contentful(cfg, a.logger), nil
}

func countTypes(items []catalogue.Item) (movies, shows int) {
	for i := range items {
		if items[i].ResolvedType() == catalogue.MediaTypeTV {
			shows++
		} else {
			movies++
		}
	}
	return movies, shows
}

func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	answer, _ := bufio.NewReader(in).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
