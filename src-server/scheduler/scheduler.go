// Package scheduler refreshes every live session's event cache on a cron
// spec, so external calendar changes show up without a mutation.
package scheduler

import (
	"caltalk/src-server/handler"
	"caltalk/src-server/utils"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

func Init(as *utils.AppState, h *handler.Handler) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(as.Config.GetResyncSpec(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		for _, bundle := range h.Registry().Active() {
			if err := h.Resync(ctx, bundle); err != nil {
				slog.Error("periodic resync failed", "sessionID", bundle.ID, "error", err)
				continue
			}
			slog.Debug("periodic resync done", "sessionID", bundle.ID)
		}
	}); err != nil {
		return nil, fmt.Errorf("scheduler.Init: bad resync spec %q: %w", as.Config.GetResyncSpec(), err)
	}
	c.Start()

	go func() {
		gracefulShutdownCh := as.CreateGracefulShutdownChan()
		<-*gracefulShutdownCh
		<-c.Stop().Done()
	}()

	return c, nil
}
