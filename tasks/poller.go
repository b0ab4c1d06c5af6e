package tasks

import (
	"context"
	"hompy/chat"
	"time"
)

// PollChat performs an initial full refresh of the guestbook and then
// picks up new messages at the given interval. Failed polls are simply
// retried on the next tick.
func PollChat(chatController *chat.Controller, interval time.Duration) {
	ctx := context.Background()

	chatController.Refresh(ctx, true)

	for {
		select {
		case <-time.After(interval):
			chatController.Refresh(ctx, false)
		}
	}
}
