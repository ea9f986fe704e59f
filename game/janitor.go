package game

import (
	"fmt"
	"time"
	"trivia/logger"

	"github.com/robfig/cron/v3"
)

// StartJanitor schedules a job that closes rooms idle for longer than ttl.
// The caller stops the returned cron when shutting down.
func StartJanitor(lobby *Lobby, schedule string, ttl time.Duration) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc(schedule, func() {
		if reaped := lobby.ReapIdle(ttl); reaped > 0 {
			logger.Infof("[Janitor] Closed %d idle rooms. Rooms left: %d", reaped, lobby.RoomCount())
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid janitor schedule %q: %w", schedule, err)
	}

	c.Start()
	return c, nil
}
