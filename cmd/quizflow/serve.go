package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/quizflow/internal/a2a"
	"github.com/dusk-indust/quizflow/internal/mcptools"
	"github.com/dusk-indust/quizflow/internal/session"
)

type serveOptions struct {
	stdio   bool
	mcpHTTP string
	a2aAddr string
}

// shutdownTimeout bounds how long serve waits for sessions and listeners to
// stop once ctx is done.
const shutdownTimeout = 5 * time.Second

// errStdioClosed stops the other surfaces once the stdio client goes away.
var errStdioClosed = errors.New("stdio closed")

// serve runs the requested surfaces over one session manager until ctx is
// cancelled or one of them fails. Stdio mode also ends when stdin closes.
func (a *app) serve(ctx context.Context, opts serveOptions) error {
	if !opts.stdio && opts.mcpHTTP == "" && opts.a2aAddr == "" {
		return errors.New("serve: no surface selected")
	}

	manager := session.NewManager(a.orch, a.logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := manager.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("session shutdown incomplete", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	if opts.a2aAddr != "" {
		card := a2a.DefaultCard("http://"+opts.a2aAddr, version)
		server := a2a.NewServer(card, a2a.NewQuizAgent(manager, card, a.logger), a.logger)
		if err := server.Start(gctx, opts.a2aAddr); err != nil {
			return err
		}
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Stop(stopCtx)
		})
	}

	if opts.stdio || opts.mcpHTTP != "" {
		server := mcptools.NewQuizMCPServer(mcptools.NewQuizService(manager, a.logger))
		if opts.stdio {
			g.Go(func() error {
				a.logger.Info("mcp server on stdio")
				if err := mcptools.RunStdio(gctx, server); err != nil {
					return err
				}
				return errStdioClosed
			})
		}
		if opts.mcpHTTP != "" {
			g.Go(func() error {
				a.logger.Info("mcp server listening", "addr", opts.mcpHTTP)
				return mcptools.RunHTTP(gctx, server, opts.mcpHTTP)
			})
		}
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, errStdioClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
