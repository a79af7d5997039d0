package main

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/daviddao/clawvival_viewer/internal/datasource"
	"github.com/daviddao/clawvival_viewer/internal/model"
	"github.com/daviddao/clawvival_viewer/internal/snapshot"
)

// feedSet selects the feeds a one-shot command loads.
type feedSet struct {
	status  bool
	observe bool
	replay  bool
}

var allFeeds = feedSet{status: true, observe: true, replay: true}

// fetchSnapshot loads the selected feeds for ui.AgentID concurrently, then
// pulls older replay pages one at a time until the requested history page is
// filled or the log is exhausted.
func fetchSnapshot(ctx context.Context, c *datasource.Client, ui snapshot.UIState, want feedSet) (*snapshot.DataSnapshot, error) {
	if ui.AgentID == "" {
		return nil, errNoAgent
	}
	var (
		status *model.StatusResponse
		obs    *model.ObserveResponse
		pages  = datasource.NewReplayPages(cfg.ReplayLimit)
	)

	g, gctx := errgroup.WithContext(ctx)
	if want.status {
		g.Go(func() error {
			resp, err := c.FetchStatus(gctx, ui.AgentID)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			status = resp
			return nil
		})
	}
	if want.observe {
		g.Go(func() error {
			resp, err := c.FetchObserve(gctx, ui.AgentID)
			if err != nil {
				return fmt.Errorf("observe: %w", err)
			}
			obs = resp
			return nil
		})
	}
	if want.replay {
		g.Go(func() error {
			resp, err := c.FetchReplay(gctx, ui.AgentID, datasource.ReplayOptions{Limit: pages.Limit()})
			if err != nil {
				return fmt.Errorf("replay: %w", err)
			}
			pages.Put(0, resp.Events)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	in := snapshot.Input{
		UI:          ui,
		Status:      status,
		Observe:     obs,
		PageSize:    cfg.PageSize,
		RefreshedAt: time.Now(),
	}
	for {
		in.Pages = pages.Pages()
		in.HasMore = pages.HasMore()
		snap := snapshot.Build(in)
		if !want.replay || !snap.Lookahead {
			return snap, nil
		}
		cursor, ok := pages.NextCursor()
		if !ok {
			return snap, nil
		}
		resp, err := c.FetchReplay(ctx, ui.AgentID, datasource.ReplayOptions{Limit: pages.Limit(), OccurredTo: cursor})
		if err != nil {
			return nil, fmt.Errorf("replay before %d: %w", cursor, err)
		}
		pages.Put(cursor, resp.Events)
	}
}
