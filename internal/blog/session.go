// ABOUTME: Interactive blog menu for an authenticated account
// ABOUTME: Post creation, listing, and the profile view over a line-based prompter

package blog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"

	"github.com/2389/ssh-blog/internal/prompt"
	"github.com/2389/ssh-blog/internal/store"
)

// ContentTerminator ends post content input when it appears alone on a line.
const ContentTerminator = "."

// progressEvery is how often the editor reports the number of lines written.
const progressEvery = 10

// Session is one authenticated user's menu loop.
type Session struct {
	posts   store.PostStore
	account *store.Account
	prompt  *prompt.Prompter
	out     io.Writer
	logger  *slog.Logger
}

// NewSession creates a menu session for account.
func NewSession(posts store.PostStore, account *store.Account, p *prompt.Prompter, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		posts:   posts,
		account: account,
		prompt:  p,
		out:     p.Writer(),
		logger:  logger.With("component", "blog", "username", account.Username),
	}
}

// Greet prints the welcome line and bio.
func (s *Session) Greet() {
	green := color.New(color.FgGreen)
	green.Fprintf(s.out, "Welcome back, %s!\n", s.account.Username)
	if s.account.Bio != nil {
		fmt.Fprintf(s.out, "Bio: %s\n", *s.account.Bio)
	}
}

// Run shows the menu until the user exits or input ends.
func (s *Session) Run(ctx context.Context) error {
	cyan := color.New(color.FgCyan, color.Bold)
	red := color.New(color.FgRed)

	for {
		fmt.Fprintln(s.out)
		cyan.Fprintf(s.out, "SSH Blog Platform - Welcome %s!\n", s.account.Username)
		fmt.Fprintln(s.out, "1. Create new post")
		fmt.Fprintln(s.out, "2. View my posts")
		fmt.Fprintln(s.out, "3. View all posts")
		fmt.Fprintln(s.out, "4. Profile info")
		fmt.Fprintln(s.out, "5. Exit")

		choice, err := s.prompt.Inline(ctx, "Choose an option (1-5): ")
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(s.out)
			return nil
		}
		if err != nil {
			return err
		}

		switch choice {
		case "1":
			err = s.CreatePost(ctx)
		case "2":
			err = s.ShowMyPosts(ctx)
		case "3":
			err = s.ShowAllPosts(ctx)
		case "4":
			err = s.ShowProfile(ctx)
		case "5":
			fmt.Fprintln(s.out, "Thanks for using SSH Blog Platform! Goodbye!")
			return nil
		default:
			red.Fprintln(s.out, "Invalid option. Please choose 1-5.")
			continue
		}

		if errors.Is(err, io.EOF) {
			fmt.Fprintln(s.out)
			return nil
		}
		if err != nil {
			s.logger.Error("menu action failed", "choice", choice, "error", err)
			red.Fprintf(s.out, "Error: %v\n", err)
		}
	}
}

// CreatePost reads a title and multi-line content, then stores the post.
// Empty titles and content are rejected without storing anything.
func (s *Session) CreatePost(ctx context.Context) error {
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)

	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "Create New Post")
	fmt.Fprintln(s.out, strings.Repeat("=", 40))

	title, err := s.prompt.Inline(ctx, "Title: ")
	if err != nil {
		return err
	}
	if title == "" {
		red.Fprintln(s.out, "Title cannot be empty")
		return nil
	}

	fmt.Fprintf(s.out, "\nContent (end with a line containing only '%s'):\n", ContentTerminator)
	fmt.Fprintln(s.out, strings.Repeat("-", 40))

	lines, err := s.prompt.ReadUntil(ContentTerminator, func(n int) {
		if n%progressEvery == 0 {
			fmt.Fprintf(s.out, "(%d lines written...)\n", n)
		}
	})
	if err != nil {
		return fmt.Errorf("reading content: %w", err)
	}

	content := strings.TrimSpace(strings.Join(lines, "\n"))
	if content == "" {
		red.Fprintln(s.out, "Content cannot be empty")
		return nil
	}

	post := &store.Post{
		AccountID: s.account.ID,
		Title:     title,
		Content:   content,
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		return fmt.Errorf("creating post: %w", err)
	}

	s.logger.Info("post created", "post_id", post.ID, "lines", len(lines))
	green.Fprintf(s.out, "Post '%s' created successfully!\n", title)
	fmt.Fprintf(s.out, "Post ID: %d\n", post.ID)
	return nil
}

// ShowMyPosts lists the session account's posts, newest first.
func (s *Session) ShowMyPosts(ctx context.Context) error {
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "Your Posts")
	fmt.Fprintln(s.out, strings.Repeat("=", 50))

	posts, err := s.posts.ListPostsByAccount(ctx, s.account.ID)
	if err != nil {
		return fmt.Errorf("fetching posts: %w", err)
	}
	if len(posts) == 0 {
		fmt.Fprintln(s.out, "No posts yet. Create your first post!")
		fmt.Fprintln(s.out, "Choose option 1 from the main menu to get started.")
		return nil
	}

	fmt.Fprintf(s.out, "Found %d post(s)\n", len(posts))
	for i, p := range posts {
		fmt.Fprintf(s.out, "\nPost #%d\n", i+1)
		RenderPost(s.out, p, false)
	}
	return nil
}

// ShowAllPosts lists every post on the platform with its author.
func (s *Session) ShowAllPosts(ctx context.Context) error {
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "All Posts")
	fmt.Fprintln(s.out, strings.Repeat("=", 50))

	posts, err := s.posts.ListPosts(ctx)
	if err != nil {
		return fmt.Errorf("fetching posts: %w", err)
	}
	if len(posts) == 0 {
		fmt.Fprintln(s.out, "No posts available on the platform yet.")
		fmt.Fprintln(s.out, "Be the first to create a post!")
		return nil
	}

	fmt.Fprintf(s.out, "Found %d post(s) on the platform\n", len(posts))
	for i, p := range posts {
		fmt.Fprintf(s.out, "\nPost #%d\n", i+1)
		RenderPost(s.out, p, true)
	}
	return nil
}

// ShowProfile prints account details and the post count.
func (s *Session) ShowProfile(ctx context.Context) error {
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "Profile Information")
	fmt.Fprintln(s.out, strings.Repeat("=", 40))
	fmt.Fprintf(s.out, "Username: %s\n", s.account.Username)
	fmt.Fprintf(s.out, "User ID: %d\n", s.account.ID)
	fmt.Fprintf(s.out, "Joined: %s\n", formatTime(s.account.CreatedAt))
	if s.account.Bio != nil {
		fmt.Fprintf(s.out, "Bio: %s\n", *s.account.Bio)
	} else {
		fmt.Fprintln(s.out, "Bio: (not set)")
	}

	count, err := s.posts.CountPostsByAccount(ctx, s.account.ID)
	if err != nil {
		s.logger.Warn("counting posts failed", "error", err)
		fmt.Fprintln(s.out, "Total posts: (error fetching)")
		return nil
	}
	fmt.Fprintf(s.out, "Total posts: %d\n", count)
	return nil
}
