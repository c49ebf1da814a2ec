package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"

	"golang.org/x/sync/errgroup"

	"github.com/sudo-init-do/gighub/internal/models"
	"github.com/sudo-init-do/gighub/internal/reconcile"
)

// cmdChat prints the thread with another user and sends each line typed.
func cmdChat(ctx context.Context, a *app, args []string) error {
	me, err := a.require("")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	with := fs.String("with", "", "user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *with == "" {
		return fmt.Errorf("-with is required")
	}

	var mu sync.Mutex
	seen := make(map[string]bool)
	thread := reconcile.NewThread(func(msgs []models.Message) {
		mu.Lock()
		defer mu.Unlock()
		for _, m := range msgs {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			who := "them"
			if m.SenderID == me.ID {
				who = "you"
			}
			fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), who, m.Content)
		}
	})
	messages := a.api.Messages()

	g, gctx := errgroup.WithContext(ctx)
	lines := readLines(gctx, os.Stdin)
	g.Go(func() error {
		return reconcile.NewPoller(a.cfg.Client.ThreadPoll, func(ctx context.Context) error {
			return thread.Refresh(ctx, func(ctx context.Context) ([]models.Message, error) {
				return messages.Thread(ctx, *with, nil)
			})
		}, reconcile.WithPollerLogger(a.log)).Run(gctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case line, ok := <-lines:
				if !ok {
					return context.Canceled
				}
				line = strings.TrimSpace(line)
				if line == "" {
					continue
				}
				seq := thread.BeginSend()
				m, err := messages.Send(gctx, *with, line)
				if err != nil {
					a.log.Warn().Err(err).Msg("send failed")
					continue
				}
				thread.ApplySent(seq, *m)
			}
		}
	})
	return g.Wait()
}

// readLines forwards lines from r until EOF or until ctx ends. Scan itself
// cannot be interrupted, so after ctx ends the reader exits at its next line.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func cmdConversations(ctx context.Context, a *app, _ []string) error {
	if _, err := a.require(""); err != nil {
		return err
	}
	convs, err := a.api.Messages().Conversations(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tNAME\tLAST\tAT")
	for _, c := range convs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.UserID, c.FullName, c.LastMessage, c.LastMessageAt.Local().Format("Jan 2 15:04"))
	}
	return w.Flush()
}
