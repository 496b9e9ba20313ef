package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/xyzen/backend/internal/config"
	"github.com/xyzen/backend/internal/db"
	"github.com/xyzen/backend/internal/feed"
	"github.com/xyzen/backend/internal/gateway"
	"github.com/xyzen/backend/internal/models"
	"github.com/xyzen/backend/internal/playback"
	"github.com/xyzen/backend/internal/profiles"
	"github.com/xyzen/backend/internal/repositories"
	"github.com/xyzen/backend/internal/session"
)

type browseOptions struct {
	memory bool
	mode   string
	limit  int
	steps  int
	viewer string
	like   bool
	dwell  time.Duration
}

func newBrowseCommand() *cobra.Command {
	var opts browseOptions

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Walk through a feed session with a headless player",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.LogLevel)
			if opts.limit == 0 {
				opts.limit = cfg.FeedLimit
			}

			var gw gateway.Gateway
			if opts.memory {
				mem := gateway.NewMemory()
				if err := seedDemo(ctx, mem); err != nil {
					return err
				}
				gw = mem
			} else {
				pool, err := db.Connect(ctx, cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer pool.Close()
				gw = repositories.NewPostgresGateway(pool)
			}

			c, cleanup, err := buildComponents(ctx, gw, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = cleanup(context.Background()) }()

			return browse(ctx, cmd.OutOrStdout(), c, cfg.PlaybackWindow, opts, logger)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.memory, "memory", false, "use an in-memory store seeded with demo videos")
	flags.StringVar(&opts.mode, "mode", string(feed.ModeRandom), "feed mode: random or recent")
	flags.IntVar(&opts.limit, "limit", 0, "videos to load (defaults to XYZEN_FEED_LIMIT)")
	flags.IntVar(&opts.steps, "steps", 5, "number of videos to step through")
	flags.StringVar(&opts.viewer, "viewer", "", "user id to browse as")
	flags.BoolVar(&opts.like, "like", false, "toggle the like on every video (requires --viewer)")
	flags.DurationVar(&opts.dwell, "dwell", 250*time.Millisecond, "time spent on each video")

	return cmd
}

// browse drives one feed session through c and prints a line per visited video.
func browse(ctx context.Context, out io.Writer, c *components, window int, opts browseOptions, logger *slog.Logger) error {
	mode, err := feed.ParseMode(opts.mode)
	if err != nil {
		return err
	}
	if opts.like && opts.viewer == "" {
		return fmt.Errorf("--like requires --viewer")
	}

	controller := session.New(session.Config{
		Feed:     feed.NewSession(c.gateway, feed.Options{Mode: mode}),
		Profiles: profiles.NewResolver(c.profiles, c.metrics),
		Likes:    c.likes,
		Engine:   playback.HeadlessEngine{Logger: logger},
		Views:    c.views,
		Metrics:  c.metrics,
		Logger:   logger,
		ViewerID: opts.viewer,
		Limit:    opts.limit,
		Window:   window,
	})
	defer controller.Dispose()

	if err := controller.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	total := len(controller.Snapshot().Items)
	if total == 0 {
		fmt.Fprintln(out, "feed is empty")
		return nil
	}

	for step := 0; step < opts.steps && step < total; step++ {
		if step > 0 {
			if err := controller.Next(ctx); err != nil {
				return err
			}
		}
		if opts.like {
			if _, err := controller.ToggleLike(ctx); err != nil {
				fmt.Fprintf(out, "like failed: %v\n", err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.dwell):
		}

		printItem(out, controller)
	}
	return nil
}

func printItem(out io.Writer, controller *session.Controller) {
	snap := controller.Snapshot()
	item, ok := snap.Current()
	if !ok {
		return
	}

	creator := item.Video.OwnerID
	if item.Creator != nil && item.Creator.DisplayName != "" {
		creator = item.Creator.DisplayName
	}
	state, _ := controller.PlaybackState(snap.Index)
	fmt.Fprintf(out, "#%d %s %q by %s likes=%d liked=%t playback=%s\n",
		snap.Index, item.Video.ID, item.Video.Caption, creator, item.Video.LikeCount, item.Liked, state)
}

// seedDemo fills mem with a small catalogue for local walk-throughs.
func seedDemo(ctx context.Context, mem *gateway.Memory) error {
	now := time.Now().UTC()
	users := []models.User{
		{ID: "demo-ada", DisplayName: "Ada", Email: "ada@example.com", Bio: "Analytical engines and cats", CreatedAt: now, UpdatedAt: now},
		{ID: "demo-grace", DisplayName: "Grace", Email: "grace@example.com", Bio: "Nanoseconds, explained", CreatedAt: now, UpdatedAt: now},
	}
	for _, user := range users {
		if err := mem.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("seed user %s: %w", user.ID, err)
		}
	}

	captions := []string{"First light", "Loom patterns", "Bug in the relay", "Compiler day", "Bernoulli numbers", "COBOL at dawn"}
	for i, caption := range captions {
		owner := users[i%len(users)].ID
		video := models.Video{
			ID:           fmt.Sprintf("demo-video-%d", i+1),
			OwnerID:      owner,
			Caption:      caption,
			MediaURL:     fmt.Sprintf("https://cdn.example.com/videos/%s/demo-video-%d.mp4", owner, i+1),
			ThumbnailURL: fmt.Sprintf("https://cdn.example.com/thumbnails/%s/demo-video-%d.jpg", owner, i+1),
			CreatedAt:    now.Add(-time.Duration(i) * time.Hour),
			CommentIDs:   []string{},
		}
		if err := mem.CreateVideo(ctx, video); err != nil {
			return fmt.Errorf("seed video %s: %w", video.ID, err)
		}
		if err := mem.AppendUserVideo(ctx, owner, video.ID); err != nil {
			return fmt.Errorf("seed video %s: %w", video.ID, err)
		}
	}
	return nil
}
