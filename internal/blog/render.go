// ABOUTME: Terminal rendering of posts
// ABOUTME: Long posts are shown with line numbers

package blog

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/2389/ssh-blog/internal/store"
)

// numberedAfter is the line count above which content is shown with line numbers.
const numberedAfter = 20

const timeLayout = "2006-01-02 15:04 UTC"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// RenderPost writes one post. withAuthor adds the author line.
func RenderPost(w io.Writer, p *store.Post, withAuthor bool) {
	rule := strings.Repeat("─", 50)
	bold := color.New(color.Bold)
	gray := color.New(color.FgHiBlack)

	fmt.Fprintln(w, rule)
	bold.Fprintln(w, p.Title)
	if withAuthor {
		if p.AuthorUsername != "" {
			fmt.Fprintf(w, "Author: %s\n", p.AuthorUsername)
		} else {
			fmt.Fprintf(w, "Author ID: %d\n", p.AccountID)
		}
	}
	gray.Fprintf(w, "Created: %s\n", formatTime(p.CreatedAt))
	if !p.UpdatedAt.Equal(p.CreatedAt) {
		gray.Fprintf(w, "Updated: %s\n", formatTime(p.UpdatedAt))
	}
	fmt.Fprintln(w, rule)

	lines := strings.Split(p.Content, "\n")
	if len(lines) > numberedAfter {
		for i, line := range lines {
			fmt.Fprintf(w, "%3d: %s\n", i+1, line)
		}
	} else {
		fmt.Fprintln(w, p.Content)
	}

	fmt.Fprintln(w, rule)
}
