// Package posts aggregates the blog's JSON and markdown posts into the single
// posts.json file the site loads.
package posts

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
	"go.uber.org/zap"
)

// Post is one post's attributes as written by its author
type Post map[string]any

// ID returns the post id
func (p Post) ID() string {
	id, _ := p["id"].(string)
	return id
}

// Date returns the parsed post date, or the zero time when missing or unparseable
func (p Post) Date() time.Time {
	s, _ := p["date"].(string)
	return parseDate(s)
}

var (
	errNoFrontMatter = errors.New("missing front matter")

	frontMatterDelim = []byte("---")
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"January 2, 2006",
	"Jan 2, 2006",
}

// Build reads every .json and .md post in dir, newest first. A missing directory
// yields no posts. Files that cannot be parsed are logged and skipped.
func Build(dir string, logger *zap.Logger) ([]Post, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("no posts directory found", zap.String("dir", dir))
		return []Post{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read posts directory: %w", err)
	}

	posts := []Post{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		ext := filepath.Ext(name)
		if ext != ".json" && ext != ".md" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("failed to read post", zap.String("file", name), zap.Error(err))
			continue
		}

		var post Post
		if ext == ".json" {
			post, err = parseJSON(data)
		} else {
			post, err = parseMarkdown(data)
		}
		if err != nil {
			logger.Warn("skipping post", zap.String("file", name), zap.Error(err))
			continue
		}

		if post.ID() == "" {
			post["id"] = strings.TrimSuffix(name, ext)
		}
		posts = append(posts, post)
	}

	slices.SortStableFunc(posts, func(a, b Post) int {
		return b.Date().Compare(a.Date())
	})

	logger.Info("posts aggregated", zap.Int("count", len(posts)))
	return posts, nil
}

// WriteFile writes posts as indented JSON
func WriteFile(path string, posts []Post) error {
	if posts == nil {
		posts = []Post{}
	}
	data, err := json.MarshalIndent(posts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode posts: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func parseJSON(data []byte) (Post, error) {
	var post Post
	if err := json.Unmarshal(data, &post); err != nil {
		return nil, err
	}
	if post == nil {
		return nil, errors.New("post is not an object")
	}
	return post, nil
}

// parseMarkdown reads a YAML front matter block between --- lines; the rest is the body
func parseMarkdown(data []byte) (Post, error) {
	data = bytes.TrimLeft(data, "\ufeff \t\r\n")
	if !bytes.HasPrefix(data, frontMatterDelim) {
		return nil, errNoFrontMatter
	}

	rest := data[len(frontMatterDelim):]
	end := bytes.Index(rest, append([]byte("\n"), frontMatterDelim...))
	if end < 0 {
		return nil, errNoFrontMatter
	}
	header := rest[:end]
	body := rest[end+1+len(frontMatterDelim):]

	post := Post{}
	if err := yaml.Unmarshal(header, &post); err != nil {
		return nil, fmt.Errorf("invalid front matter: %w", err)
	}
	if post == nil {
		post = Post{}
	}
	for k, v := range post {
		post[k] = normalize(v)
	}

	post["body"] = strings.TrimSpace(string(body))
	return post, nil
}

// normalize keeps front matter values JSON friendly
func normalize(v any) any {
	switch t := v.(type) {
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format(time.RFC3339)
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case map[string]any:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case []any:
		for i := range t {
			t[i] = normalize(t[i])
		}
		return t
	}
	return v
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
