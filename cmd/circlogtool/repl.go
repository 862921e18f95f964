package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/peterh/liner"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"circlog/internal/circlog"
)

// runFollow is circlogtool's "follow" mode: a tail -f style printer of new
// lines running alongside an interactive prompt that appends whatever the
// operator types. The two sides share the log through its own mutex, so
// no additional synchronization is needed here.
func runFollow(l *circlog.Log) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cur, st := l.Open(circlog.FlagsNewest)
	if st != circlog.StatusNone {
		return fmt.Errorf("open cursor: %w", st)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return pollNewLines(ctx, l, cur)
	})

	if term.IsTerminal(int(os.Stdin.Fd())) {
		g.Go(func() error {
			return interactiveInput(ctx, l)
		})
	}

	return g.Wait()
}

// pollNewLines prints whatever Read makes available on cur every tick,
// until ctx is cancelled.
func pollNewLines(ctx context.Context, l *circlog.Log, cur *circlog.Cursor) error {
	buf := make([]byte, 64*1024)
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n := l.Read(cur, buf, circlog.DirForward, circlog.LinesReadAll, nil)
			if n > 0 {
				os.Stdout.Write(buf[:n])
			}
		}
	}
}

// interactiveInput reads lines from the terminal and appends each one to
// the log, until EOF, "quit", or ctx is cancelled.
func interactiveInput(ctx context.Context, l *circlog.Log) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		text, err := line.Prompt("circlog> ")
		if err == liner.ErrPromptAborted || err != nil {
			return nil
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if text == "quit" || text == "exit" {
			return nil
		}
		line.AppendHistory(text)

		if _, st := l.Write([]byte(text + "\n")); st != circlog.StatusNone {
			fmt.Fprintln(os.Stderr, "write failed:", st)
		}
	}
}
