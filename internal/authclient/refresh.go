// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package authclient

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/downtown-montclair/downtown/pkg/errutil"
)

// StartAutoRefresh refreshes the current session refreshMargin before it
// expires, for as long as ctx lives. The returned stop function cancels
// the loop and waits for it to exit.
func (c *Client) StartAutoRefresh(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.autoRefreshLoop(ctx)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}
}

func (c *Client) autoRefreshLoop(ctx context.Context) {
	for {
		var (
			timer *time.Timer
			fire  <-chan time.Time
		)
		if current := c.Current(); current != nil && current.RefreshToken != "" {
			wait := current.ExpiresAt.Sub(c.now()) - c.refreshMargin
			timer = time.NewTimer(max(wait, 0))
			fire = timer.C
		}

		fired := false
		select {
		case <-ctx.Done():
		case <-c.changed:
		case <-fire:
			fired = true
		}
		if timer != nil {
			timer.Stop()
		}
		if ctx.Err() != nil {
			return
		}
		if !fired {
			continue
		}

		if _, err := c.RefreshSession(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, ErrNoSession) || c.Current() == nil {
				continue
			}
			errutil.LogWarn(ctx, c.logger, "auto refresh failed", err)
			select {
			case <-ctx.Done():
				return
			case <-c.changed:
			case <-time.After(c.retryDelay):
			}
		}
	}
}
