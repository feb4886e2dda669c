package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/line/line-bot-sdk-go/v7/linebot"
)

// replyWindow is how long a reply token is trusted after the webhook
// arrived. Past it we skip the reply attempt and push directly.
const replyWindow = 55 * time.Second

// deliver sends msgs to the user, preferring the reply token while it is
// still fresh and falling back to push. A failed push is logged and dropped;
// there is no third channel to try.
func (c *Controller) deliver(ctx context.Context, replyToken, userID string, msgs []linebot.SendingMessage, elapsed time.Duration) {
	if len(msgs) == 0 {
		return
	}

	if replyToken != "" && elapsed < replyWindow {
		err := c.line.Reply(ctx, replyToken, msgs)
		if err == nil {
			return
		}
		slog.Warn("bot: reply failed, falling back to push", "error", err, "userID", userID, "elapsed", elapsed)
	}

	if err := c.line.Push(ctx, userID, msgs); err != nil {
		slog.Error("bot: push delivery failed", "error", err, "userID", userID)
	}
}
