package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"playhead/internal/config"
	"playhead/internal/history"
	"playhead/internal/logging"
	"playhead/internal/playback"
	"playhead/internal/queue"
	"playhead/internal/services/annotations"
	"playhead/internal/services/catalog"
	"playhead/internal/services/transcripts"
	"playhead/internal/session"
)

func newRunCommand(configFlag *string) *cobra.Command {
	var episodeID string
	var collectionID string
	var shuffle bool
	var rate float64

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a playback session over the simulated transport",
		Long: "Run starts a session against the configured collaborators, plays an\n" +
			"episode or collection over the simulated transport, and streams the\n" +
			"transcript to stdout as words reveal. Stops on Ctrl-C or when the\n" +
			"queue drains.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, *configFlag, episodeID, collectionID, shuffle, rate)
		},
	}

	cmd.Flags().StringVar(&episodeID, "episode", "", "Episode id to play")
	cmd.Flags().StringVar(&collectionID, "collection", "", "Collection id to play")
	cmd.Flags().BoolVar(&shuffle, "shuffle", false, "Shuffle the collection before playing")
	cmd.Flags().Float64Var(&rate, "rate", 1, "Playback rate")
	return cmd
}

func runSession(cmd *cobra.Command, configPath, episodeID, collectionID string, shuffle bool, rate float64) error {
	if episodeID == "" && collectionID == "" {
		return errors.New("either --episode or --collection is required")
	}
	if episodeID != "" && collectionID != "" {
		return errors.New("--episode and --collection are mutually exclusive")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := history.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	cat := catalog.NewClient(cfg)
	items, err := fetchRunItems(ctx, cat, episodeID, collectionID)
	if err != nil {
		return err
	}

	// The simulated transport needs durations keyed by audio URL; resolve
	// them up front from the catalog's duration hints.
	durations := make(map[string]float64, len(items))
	for _, item := range items {
		if item.DurationHint <= 0 {
			continue
		}
		url, resolveErr := cat.ResolvePlaybackURL(ctx, item.CollectionID, item.ID)
		if resolveErr != nil {
			continue
		}
		durations[url] = item.DurationHint
	}

	s, err := session.New(session.Options{
		Config:      cfg,
		Logger:      logger,
		Transport:   playback.NewSimTransport(playback.SimOptions{Interval: 200 * time.Millisecond, Durations: durations}),
		Catalog:     cat,
		Transcripts: transcripts.NewClient(cfg),
		Annotations: annotations.NewClient(cfg),
		History:     store,
	})
	if err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		return err
	}
	defer s.Stop()

	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	done := make(chan struct{})
	var closeOnce sync.Once
	var mu sync.Mutex
	lastItem := ""
	revealed := 0
	started := false

	unsubscribe := s.Subscribe(func(snap session.Snapshot) {
		mu.Lock()
		defer mu.Unlock()

		if snap.Current >= 0 && snap.Current < len(snap.Queue) {
			item := snap.Queue[snap.Current]
			if item.ID != lastItem {
				lastItem = item.ID
				revealed = 0
				started = true
				printNowPlaying(out, item, colorize)
			}
		}

		if n := len(snap.Revealed); n > revealed {
			for _, word := range snap.Revealed[revealed:] {
				fmt.Fprintf(out, "%s ", word.Text)
			}
			revealed = n
		} else if n < revealed {
			// Back-seek shrank the reveal set; realign without reprinting.
			revealed = n
		}

		if started && snap.PlayState == queue.StateIdle {
			fmt.Fprintln(out)
			closeOnce.Do(func() { close(done) })
		}
	})
	defer unsubscribe()

	switch {
	case episodeID != "":
		err = s.PlayItem(ctx, episodeID)
	case shuffle:
		err = s.ShuffleCollection(ctx, collectionID)
	default:
		err = s.PlayCollection(ctx, collectionID)
	}
	if err != nil {
		return err
	}
	if rate != 1 {
		if err := s.SetRate(rate); err != nil {
			return err
		}
	}

	printQueueTable(out, s.Snapshot())

	select {
	case <-ctx.Done():
		fmt.Fprintln(out)
		return nil
	case <-done:
		fmt.Fprintln(out, "Queue finished.")
		return nil
	}
}

func fetchRunItems(ctx context.Context, cat *catalog.Client, episodeID, collectionID string) ([]queue.Item, error) {
	if episodeID != "" {
		item, err := cat.Episode(ctx, episodeID)
		if err != nil {
			return nil, err
		}
		return []queue.Item{item}, nil
	}
	items, err := cat.Collection(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("collection %s has no episodes", collectionID)
	}
	return items, nil
}

func printNowPlaying(out io.Writer, item queue.Item, colorize bool) {
	line := fmt.Sprintf("Now playing: %s (%s)", item.Title, displayTitle(item.Collection))
	if colorize {
		line = ansiGreen + line + ansiReset
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, line)
}

func printQueueTable(out io.Writer, snap session.Snapshot) {
	if len(snap.Queue) == 0 {
		return
	}
	rows := make([][]string, 0, len(snap.Queue))
	for i, item := range snap.Queue {
		marker := ""
		if i == snap.Current {
			marker = "*"
		}
		rows = append(rows, []string{
			marker,
			strconv.Itoa(i + 1),
			item.Title,
			displayTitle(item.Collection),
			formatClock(item.DurationHint),
			strconv.FormatInt(item.TotalPlays, 10),
			strconv.FormatInt(item.TotalLikes, 10),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"", "#", "Title", "Collection", "Duration", "Plays", "Likes"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight},
	))
}
