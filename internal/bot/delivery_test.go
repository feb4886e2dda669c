package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/line/line-bot-sdk-go/v7/linebot"
)

func deliverOne(f *fixture, elapsed time.Duration) {
	msgs := []linebot.SendingMessage{linebot.NewTextMessage("hello")}
	f.c.deliver(context.Background(), "rt-1", "U1", msgs, elapsed)
}

func TestDeliverUsesReplyWithinWindow(t *testing.T) {
	f := newFixture(t)

	deliverOne(f, 54900*time.Millisecond)

	if len(f.line.replies) != 1 {
		t.Errorf("replies = %d, want 1", len(f.line.replies))
	}
	if len(f.line.pushes) != 0 {
		t.Errorf("pushes = %d, want 0", len(f.line.pushes))
	}
}

func TestDeliverPushesPastWindow(t *testing.T) {
	f := newFixture(t)

	deliverOne(f, 55100*time.Millisecond)

	if len(f.line.replies) != 0 {
		t.Errorf("replies = %d, want 0 past the window", len(f.line.replies))
	}
	if len(f.line.pushes) != 1 {
		t.Errorf("pushes = %d, want 1", len(f.line.pushes))
	}
}

func TestDeliverFallsBackToPushOnReplyFailure(t *testing.T) {
	f := newFixture(t)
	f.line.replyErr = errors.New("Invalid reply token")

	deliverOne(f, time.Second)

	if len(f.line.pushes) != 1 {
		t.Errorf("pushes = %d, want 1 after reply failure", len(f.line.pushes))
	}
}

func TestDeliverSwallowsDoubleFailure(t *testing.T) {
	f := newFixture(t)
	f.line.replyErr = errors.New("Invalid reply token")
	f.line.pushErr = errors.New("rate limited")

	// Both channels fail; deliver logs and returns without panicking.
	deliverOne(f, time.Second)

	if len(f.line.replies) != 0 || len(f.line.pushes) != 0 {
		t.Errorf("unexpected deliveries: replies=%v pushes=%v", f.line.replies, f.line.pushes)
	}
}

func TestDeliverSkipsEmptyMessageList(t *testing.T) {
	f := newFixture(t)

	f.c.deliver(context.Background(), "rt-1", "U1", nil, time.Second)

	if len(f.line.replies) != 0 || len(f.line.pushes) != 0 {
		t.Error("empty message list was delivered")
	}
}

func TestDeliverWithoutReplyTokenPushes(t *testing.T) {
	f := newFixture(t)

	msgs := []linebot.SendingMessage{linebot.NewTextMessage("hello")}
	f.c.deliver(context.Background(), "", "U1", msgs, time.Second)

	if len(f.line.replies) != 0 {
		t.Errorf("replies = %d, want 0 without a token", len(f.line.replies))
	}
	if len(f.line.pushes) != 1 {
		t.Errorf("pushes = %d, want 1", len(f.line.pushes))
	}
}
