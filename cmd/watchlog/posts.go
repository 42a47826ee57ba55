package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blakestevenson/watchlog/internal/auth"
	"github.com/blakestevenson/watchlog/internal/posts"
	"github.com/spf13/cobra"
)

func newPostsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "Build the blog posts feed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newPostsBuildCommand(a))
	return cmd
}

func newPostsBuildCommand(a *app) *cobra.Command {
	var (
		dir string
		out string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Aggregate .md and .json posts into one JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := posts.Build(dir, a.logger)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			if err := posts.WriteFile(out, list); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d posts to %s\n", len(list), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", filepath.Join("content", "posts"), "directory holding the posts")
	cmd.Flags().StringVarP(&out, "out", "o", filepath.Join("public", "posts.json"), "output file")
	return cmd
}

func newHashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
		Long: `Hash-password prints the value for ADMIN_PASSWORD_HASH. The password is read
from standard input when it is not given as an argument.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return fmt.Errorf("%w: use at least %d characters with upper case, lower case and a digit",
					err, auth.MinPasswordLength)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
