package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/blakestevenson/watchlog/internal/catalogue"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newRestoreCommand(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:     "restore",
		Short:   "Upload a JSON backup as the whole catalogue",
		Example: `  watchlog restore --file backup.json`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := readItems(file)
			if err != nil {
				return err
			}

			client, err := a.api(cmd.Context())
			if err != nil {
				return err
			}
			if err := client.SaveAll(cmd.Context(), items); err != nil {
				return err
			}

			movies, shows := countTypes(items)
			fmt.Fprintf(cmd.OutOrStdout(), "restored %d movies and %d TV shows\n", movies, shows)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON array of catalogue items")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newCheckCommand(a *app) *cobra.Command {
	var (
		file      string
		mediaType string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compare a local backup with what the API serves",
		Long: `Check counts the items of one type in a local JSON backup and in the live
catalogue, and lists the IDs found on only one side.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := catalogue.ParseMediaType(mediaType)
			if err != nil {
				return err
			}
			local, err := readItems(file)
			if err != nil {
				return err
			}

			client, err := a.api(cmd.Context())
			if err != nil {
				return err
			}
			remote, err := client.ListAll(cmd.Context(), t)
			if err != nil {
				return err
			}

			localIDs := idsOfType(local, t)
			remoteIDs := idsOfType(remote, t)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s in %s: %d\n", t, file, len(localIDs))
			fmt.Fprintf(out, "%s from API: %d\n", t, len(remoteIDs))
			if missing := difference(localIDs, remoteIDs); len(missing) > 0 {
				fmt.Fprintf(out, "only in file: %v\n", missing)
			}
			if extra := difference(remoteIDs, localIDs); len(extra) > 0 {
				fmt.Fprintf(out, "only in API: %v\n", extra)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON array of catalogue items")
	cmd.Flags().StringVar(&mediaType, "type", string(catalogue.MediaTypeTV), "movie or tv")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newStatsCommand(a *app) *cobra.Command {
	var mediaType string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show catalogue statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := catalogue.ParseMediaType(mediaType)
			if err != nil {
				return err
			}
			client, err := a.api(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := client.Stats(cmd.Context(), t)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "total: %d\n", stats.TotalWatched)
			fmt.Fprintf(out, "countries: %d\n", stats.TotalCountries)
			for _, c := range stats.TopCountries {
				fmt.Fprintf(out, "  %-30s %d\n", c.Name, c.Count)
			}
			fmt.Fprintf(out, "%s: %d\n", creditLabel(t), stats.TotalDirectors)
			for _, c := range stats.TopDirectors {
				fmt.Fprintf(out, "  %-30s %d\n", c.Name, c.Count)
			}
			if stats.CreditsIncomplete() {
				fmt.Fprintln(out, "some items have no credits yet, run `watchlog enrich`")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mediaType, "type", string(catalogue.MediaTypeMovie), "movie or tv")
	return cmd
}

func creditLabel(t catalogue.MediaType) string {
	if t == catalogue.MediaTypeTV {
		return "creators"
	}
	return "directors"
}

func readItems(path string) ([]catalogue.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var items []catalogue.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%s is not a JSON array of items: %w", path, err)
	}
	return items, nil
}

func idsOfType(items []catalogue.Item, t catalogue.MediaType) []int64 {
	var ids []int64
	for i := range items {
		if items[i].ResolvedType() == t {
			ids = append(ids, items[i].ID)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// difference returns the sorted ids of a that are not in b
func difference(a, b []int64) []int64 {
	var out []int64
	for _, id := range a {
		if _, found := slices.BinarySearch(b, id); !found {
			out = append(out, id)
		}
	}
	return out
}
