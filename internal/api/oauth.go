package api

import (
	"fmt"
	"html"
	"log/slog"
	"net/http"

	"github.com/line/line-bot-sdk-go/v7/linebot"
)

// linkedPushText is pushed to the user once their Google account is linked.
const linkedPushText = "Google 連携（カレンダー & メール）が完了しました！\n\n" +
	"「今日の予定は？」「受信トレイ見せて」などと話しかけてみてください。"

// handleOAuthCallback finishes the Google consent flow. The response is a
// small standalone HTML page because the user lands here in an external
// browser, outside the chat.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errCode := q.Get("error"); errCode != "" {
		slog.Warn("api: oauth consent denied", "error", errCode)
		writeHTMLCard(w, http.StatusOK, "認証がキャンセルされました。LINEに戻ってもう一度お試しください。")
		return
	}

	code := q.Get("code")
	state := q.Get("state")
	if code == "" || state == "" {
		writeHTMLCard(w, http.StatusBadRequest, "パラメータが不足しています。")
		return
	}

	if s.linker.DecodeState(state) == "" {
		slog.Warn("api: oauth callback with invalid state")
		writeHTMLCard(w, http.StatusBadRequest, "無効なリクエストです。")
		return
	}

	userID, err := s.linker.HandleCallback(r.Context(), state, code)
	if err != nil {
		slog.Error("api: oauth token exchange failed", "error", err)
		writeHTMLCard(w, http.StatusOK, "認証に失敗しました。もう一度お試しください。")
		return
	}

	if err := s.line.Push(r.Context(), userID, []linebot.SendingMessage{linebot.NewTextMessage(linkedPushText)}); err != nil {
		slog.Warn("api: failed to push link completion message", "error", err, "userID", userID)
	}

	writeHTMLCard(w, http.StatusOK,
		"Google 連携（カレンダー & メール）が完了しました！LINEに戻って「今日の予定は？」や「受信トレイ見せて」と聞いてみてください。")
}

const cardPage = `<!DOCTYPE html>
<html lang="ja">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>Google 連携</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
            margin: 0;
            background: #f0f2f5;
        }
        .card {
            background: white;
            border-radius: 16px;
            padding: 40px;
            max-width: 400px;
            text-align: center;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
        }
        .card p {
            color: #333;
            font-size: 16px;
            line-height: 1.6;
        }
    </style>
</head>
<body>
    <div class="card">
        <p>%s</p>
    </div>
</body>
</html>`

func writeHTMLCard(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, cardPage, html.EscapeString(message))
}
