// ABOUTME: HTML export of all posts
// ABOUTME: Post content is treated as Markdown and rendered with goldmark

package blog

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/2389/ssh-blog/internal/store"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

// ExportHTML writes every post, newest first, as a standalone HTML page.
// Raw HTML inside post content is not rendered.
func ExportHTML(ctx context.Context, posts store.PostStore, w io.Writer) (int, error) {
	all, err := posts.ListPosts(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching posts: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>SSH Blog</title>\n</head>\n<body>\n<h1>SSH Blog</h1>\n")
	for _, p := range all {
		buf.WriteString("<article>\n")
		fmt.Fprintf(&buf, "<h2>%s</h2>\n", html.EscapeString(p.Title))
		fmt.Fprintf(&buf, "<p class=\"meta\">by %s on %s</p>\n",
			html.EscapeString(author(p)), html.EscapeString(formatTime(p.CreatedAt)))
		if err := markdown.Convert([]byte(p.Content), &buf); err != nil {
			return 0, fmt.Errorf("rendering post %d: %w", p.ID, err)
		}
		buf.WriteString("</article>\n")
	}
	buf.WriteString("</body>\n</html>\n")

	if _, err := w.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	return len(all), nil
}

func author(p *store.Post) string {
	if p.AuthorUsername != "" {
		return p.AuthorUsername
	}
	return fmt.Sprintf("user #%d", p.AccountID)
}
