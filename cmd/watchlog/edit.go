package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/blakestevenson/watchlog/internal/admin"
	"github.com/blakestevenson/watchlog/internal/catalogue"
	"github.com/spf13/cobra"
)

// session is an admin editing session over one media type
type session struct {
	client *admin.Client
	state  admin.State
}

func (a *app) session(ctx context.Context, mediaType string) (*session, error) {
	t, err := catalogue.ParseMediaType(mediaType)
	if err != nil {
		return nil, err
	}
	client, err := a.api(ctx)
	if err != nil {
		return nil, err
	}
	watched, err := client.ListAll(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("failed to load the catalogue: %w", err)
	}
	return &session{client: client, state: admin.NewState(t, watched)}, nil
}

// save flushes the queued changes and reports what was written
func (s *session) save(cmd *cobra.Command) error {
	state, stats, err := s.client.Flush(cmd.Context(), s.state)
	if err != nil {
		return err
	}
	s.state = state
	fmt.Fprintf(cmd.OutOrStdout(), "saved: %d added, %d updated, %d deleted\n", stats.Added, stats.Updated, stats.Deleted)
	return nil
}

func newSearchCommand(a *app) *cobra.Command {
	var (
		mediaType string
		page      int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search TMDB for titles to add",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := catalogue.ParseMediaType(mediaType)
			if err != nil {
				return err
			}
			provider, closeFn, err := a.metadata()
			if err != nil {
				return err
			}
			defer closeFn()

			results, err := provider.Search(cmd.Context(), t, strings.Join(args, " "), page)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tDATE")
			for _, r := range results.Results {
				title, date := r.Title, r.ReleaseDate
				if t == catalogue.MediaTypeTV {
					title, date = r.Name, r.FirstAirDate
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\n", r.ID, title, date)
			}
			fmt.Fprintf(tw, "\npage %d of %d\n", results.Page, results.TotalPages)
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&mediaType, "type", string(catalogue.MediaTypeMovie), "movie or tv")
	cmd.Flags().IntVar(&page, "page", 1, "result page")
	return cmd
}

func newAddCommand(a *app) *cobra.Command {
	var (
		mediaType string
		rating    float64
		review    string
		poster    string
	)

	cmd := &cobra.Command{
		Use:     "add <tmdb-id>",
		Short:   "Mark a TMDB title as watched",
		Example: `  watchlog add 603 --rating 4.5 --review "Still holds up"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			s, err := a.session(cmd.Context(), mediaType)
			if err != nil {
				return err
			}
			if s.state.IsWatched(id) {
				return fmt.Errorf("%d is already in the catalogue", id)
			}

			provider, closeFn, err := a.metadata()
			if err != nil {
				return err
			}
			defer closeFn()

			details, err := provider.Details(cmd.Context(), s.state.Type, id)
			if err != nil {
				return err
			}
			item, err := details.Summary().ToItem(s.state.Type)
			if err != nil {
				return err
			}

			state := admin.WithSearchResults(s.state, []catalogue.Item{item})
			if cmd.Flags().Changed("rating") {
				if state, err = admin.Rate(state, id, rating); err != nil {
					return err
				}
			}
			if review != "" {
				if state, err = admin.Review(state, id, review); err != nil {
					return err
				}
			}
			if poster != "" {
				if state, err = admin.SelectPoster(state, id, poster); err != nil {
					return err
				}
			}
			if s.state, err = admin.ToggleWatched(state, id, time.Now()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "adding %s\n", item.DisplayTitle())
			return s.save(cmd)
		},
	}

	cmd.Flags().StringVar(&mediaType, "type", string(catalogue.MediaTypeMovie), "movie or tv")
	cmd.Flags().Float64Var(&rating, "rating", 0, "rating from 0 to 5 in half steps")
	cmd.Flags().StringVar(&review, "review", "", "review text")
	cmd.Flags().StringVar(&poster, "poster", "", "poster path to show instead of the default")
	return cmd
}

func newRemoveCommand(a *app) *cobra.Command {
	var mediaType string

	cmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove an item from the catalogue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			s, err := a.session(cmd.Context(), mediaType)
			if err != nil {
				return err
			}
			if !s.state.IsWatched(id) {
				return fmt.Errorf("%w: %d", catalogue.ErrNotFound, id)
			}
			if s.state, err = admin.ToggleWatched(s.state, id, time.Now()); err != nil {
				return err
			}
			return s.save(cmd)
		},
	}

	cmd.Flags().StringVar(&mediaType, "type", string(catalogue.MediaTypeMovie), "movie or tv")
	return cmd
}

func newRateCommand(a *app) *cobra.Command {
	return newEditCommand(a, "rate <id> <rating>", "Set the rating of a watched item",
		func(state admin.State, id int64, value string) (admin.State, error) {
			rating, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return state, fmt.Errorf("%w: %q", admin.ErrInvalidRating, value)
			}
			return admin.Rate(state, id, rating)
		})
}

func newReviewCommand(a *app) *cobra.Command {
	return newEditCommand(a, "review <id> <text>", "Set the review of a watched item", admin.Review)
}

func newPosterCommand(a *app) *cobra.Command {
	return newEditCommand(a, "poster <id> <path>", "Choose the poster of a watched item", admin.SelectPoster)
}

// newEditCommand builds a command that applies one field edit to a watched item.
// Arguments after the id are joined, so reviews need no quoting.
func newEditCommand(a *app, use, short string, apply func(admin.State, int64, string) (admin.State, error)) *cobra.Command {
	var mediaType string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			s, err := a.session(cmd.Context(), mediaType)
			if err != nil {
				return err
			}
			if !s.state.IsWatched(id) {
				return fmt.Errorf("%w: %d", catalogue.ErrNotFound, id)
			}
			if s.state, err = apply(s.state, id, strings.Join(args[1:], " ")); err != nil {
				return err
			}
			return s.save(cmd)
		},
	}

	cmd.Flags().StringVar(&mediaType, "type", string(catalogue.MediaTypeMovie), "movie or tv")
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("id must be a positive integer")
	}
	return id, nil
}
