package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"

	"github.com/hisho-bot/hisho/internal/models"
)

// calendarAPI is the calendar surface the runtime tools call. Satisfied by
// *gsuite.Calendar; tests substitute a fake.
type calendarAPI interface {
	ListEvents(ctx context.Context, dateFrom, dateTo string, maxResults int64) ([]models.CalendarEvent, error)
	GetEvent(ctx context.Context, eventID string) (*models.CalendarEvent, error)
	CreateEvent(ctx context.Context, summary, start, end string) (*models.CalendarEvent, error)
	UpdateEvent(ctx context.Context, eventID, summary, start, end string) (*models.CalendarEvent, error)
	InviteAttendees(ctx context.Context, eventID string, emails []string) (*models.CalendarEvent, error)
	DeleteEvent(ctx context.Context, eventID string) error
	FreeBusy(ctx context.Context, dateFrom, dateTo string) ([]models.BusySlot, error)
}

// gmailAPI is the mail surface the runtime tools call. Satisfied by
// *gsuite.Gmail.
type gmailAPI interface {
	ListEmails(ctx context.Context, query string, maxResults int64) ([]models.Email, error)
	GetEmail(ctx context.Context, emailID string) (*models.Email, error)
	SendEmail(ctx context.Context, to, subject, body string) (string, error)
	ModifyLabels(ctx context.Context, emailID string, add, remove []string) error
	SaveDraft(ctx context.Context, to, subject, body string) (string, error)
	DeleteEmail(ctx context.Context, emailID string) error
}

func toolDef(name, description string, props map[string]interface{}, required []string) openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Type: "function",
		Function: shared.FunctionDefinitionParam{
			Name:        name,
			Description: openai.String(description),
			Parameters: shared.FunctionParameters{
				"type":       "object",
				"properties": props,
				"required":   required,
			},
		},
	}
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func routerToolDefs() []openai.ChatCompletionToolParam {
	return []openai.ChatCompletionToolParam{
		toolDef("calendar_agent",
			"Google Calendar の予定確認・作成・変更・削除・空き時間確認を行うエージェント。カレンダーに関する操作はすべてこのツールに委譲してください。",
			map[string]interface{}{"query": stringProp("ユーザーのカレンダー操作リクエスト")},
			[]string{"query"}),
		toolDef("gmail_agent",
			"Gmail のメール一覧・詳細・送信・削除・ラベル操作を行うエージェント。メールに関する操作はすべてこのツールに委譲してください。",
			map[string]interface{}{"query": stringProp("ユーザーのメール操作リクエスト")},
			[]string{"query"}),
		toolDef("search_place",
			"場所・店舗・住所を検索します。特定の場所を探したいときに使います。例: 「渋谷カフェ」「東京タワー」",
			map[string]interface{}{"query": stringProp("検索キーワード")},
			[]string{"query"}),
		toolDef("recommend_place",
			"AI がおすすめの場所を提案します。目的や雰囲気に合った場所を探したいときに使います。例: 「デートにおすすめの渋谷のカフェ」",
			map[string]interface{}{"prompt": stringProp("おすすめ条件の説明")},
			[]string{"prompt"}),
		toolDef("request_location",
			"ユーザーの現在地が必要なときに呼びます。エリア名が明示されておらず「近くの」「この辺の」など現在地に依存する質問のときに使います。message にはユーザーに位置情報の送信をお願いする親しみやすいメッセージを書いてください。",
			map[string]interface{}{"message": stringProp("位置情報の送信を促すメッセージ")},
			[]string{"message"}),
		toolDef("web_search",
			"Web 検索。最新ニュースや時事問題、調べ物など、リアルタイムの情報が必要なときに使います。",
			map[string]interface{}{"query": stringProp("検索クエリ")},
			[]string{"query"}),
	}
}

func calendarToolDefs() []openai.ChatCompletionToolParam {
	return []openai.ChatCompletionToolParam{
		toolDef("list_events", "予定の一覧を取得します。",
			map[string]interface{}{
				"date_from":   stringProp("取得開始日 (YYYY-MM-DD、省略時は今日)"),
				"date_to":     stringProp("取得終了日 (YYYY-MM-DD、省略時は1週間後)"),
				"max_results": map[string]interface{}{"type": "integer", "description": "最大件数 (省略時は10)"},
			}, nil),
		toolDef("get_event", "予定を1件取得します。",
			map[string]interface{}{"event_id": stringProp("予定ID")},
			[]string{"event_id"}),
		toolDef("create_event", "予定を作成します。",
			map[string]interface{}{
				"summary": stringProp("予定のタイトル"),
				"start":   stringProp("開始日時 (RFC3339、終日は YYYY-MM-DD)"),
				"end":     stringProp("終了日時 (RFC3339、終日は YYYY-MM-DD)"),
			}, []string{"summary", "start", "end"}),
		toolDef("update_event", "予定を変更します。変更しない項目は省略してください。",
			map[string]interface{}{
				"event_id": stringProp("予定ID"),
				"summary":  stringProp("新しいタイトル"),
				"start":    stringProp("新しい開始日時"),
				"end":      stringProp("新しい終了日時"),
			}, []string{"event_id"}),
		toolDef("delete_event", "予定を削除します。",
			map[string]interface{}{"event_id": stringProp("予定ID")},
			[]string{"event_id"}),
		toolDef("invite_attendees", "予定に参加者を招待します。",
			map[string]interface{}{
				"event_id": stringProp("予定ID"),
				"emails": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "招待するメールアドレス",
				},
			}, []string{"event_id", "emails"}),
		toolDef("get_free_busy", "指定期間の空き状況 (busy スロット) を取得します。",
			map[string]interface{}{
				"date_from": stringProp("開始日 (YYYY-MM-DD)"),
				"date_to":   stringProp("終了日 (YYYY-MM-DD)"),
			}, []string{"date_from", "date_to"}),
	}
}

func gmailToolDefs() []openai.ChatCompletionToolParam {
	return []openai.ChatCompletionToolParam{
		toolDef("list_emails", "受信トレイのメール一覧を取得します。",
			map[string]interface{}{
				"max_results": map[string]interface{}{"type": "integer", "description": "最大件数 (省略時は10)"},
			}, nil),
		toolDef("search_emails", "メールを検索します。",
			map[string]interface{}{"query": stringProp("Gmail 検索クエリ (例: from:tanaka)")},
			[]string{"query"}),
		toolDef("get_email", "メールを1件、本文付きで取得します。",
			map[string]interface{}{"email_id": stringProp("メールID")},
			[]string{"email_id"}),
		toolDef("send_email", "メールを送信します。ユーザーの承認を得てから呼んでください。",
			map[string]interface{}{
				"to":      stringProp("宛先メールアドレス"),
				"subject": stringProp("件名"),
				"body":    stringProp("本文"),
			}, []string{"to", "subject", "body"}),
		toolDef("delete_email", "メールをゴミ箱に移動します。",
			map[string]interface{}{"email_id": stringProp("メールID")},
			[]string{"email_id"}),
		toolDef("manage_labels", "メールのラベルを更新します (既読化・スターなど)。",
			map[string]interface{}{
				"email_id": stringProp("メールID"),
				"add": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "付与するラベルID (例: STARRED)",
				},
				"remove": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "除去するラベルID (例: UNREAD)",
				},
			}, []string{"email_id"}),
		toolDef("save_draft", "メールを下書きとして保存します。",
			map[string]interface{}{
				"to":      stringProp("宛先メールアドレス"),
				"subject": stringProp("件名"),
				"body":    stringProp("本文"),
			}, []string{"to", "subject", "body"}),
	}
}

func toolJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return toolError(fmt.Sprintf("結果のシリアライズに失敗しました: %v", err))
	}
	return string(b)
}

func toolError(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}

func execCalendarTool(ctx context.Context, cal calendarAPI, name, rawArgs string) string {
	var args struct {
		DateFrom   string   `json:"date_from"`
		DateTo     string   `json:"date_to"`
		MaxResults int64    `json:"max_results"`
		EventID    string   `json:"event_id"`
		Summary    string   `json:"summary"`
		Start      string   `json:"start"`
		End        string   `json:"end"`
		Emails     []string `json:"emails"`
	}
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return toolError(fmt.Sprintf("引数の解析に失敗しました: %v", err))
		}
	}

	switch name {
	case "list_events":
		events, err := cal.ListEvents(ctx, args.DateFrom, args.DateTo, args.MaxResults)
		if err != nil {
			return toolError(err.Error())
		}
		return toolJSON(map[string]interface{}{"events": events})
	case "get_event":
		ev, err := cal.GetEvent(ctx, args.EventID)
		if err != nil {
			return toolError(err.Error())
		}
		return toolJSON(map[string]interface{}{"event": ev})
	case "create_event":
		ev, err := cal.CreateEvent(ctx, args.Summary, args.Start, args.End)
		if err != nil {
			return toolError(err.Error())
		}
		return toolJSON(map[string]interface{}{"event": ev})
	case "update_event":
		ev, err := cal.UpdateEvent(ctx, args.EventID, args.Summary, args.Start, args.End)
		if err != nil {
			return toolError(err.Error())
		}
		return toolJSON(map[string]interface{}{"event": ev})
	case "delete_event":
		if err := cal.DeleteEvent(ctx, args.EventID); err != nil {
			return toolError(err.Error())
		}
		return toolJSON(map[string]string{"status": "deleted", "event_id": args.EventID})
	case "invite_attendees":
		ev, err := cal.InviteAttendees(ctx, args.EventID, args.Emails)
		if err != nil {
			return toolError(err.Error())
		}
		return toolJSON(map[string]interface{}{"event": ev})
	case "get_free_busy":
		slots, err := cal.FreeBusy(ctx, args.DateFrom, args.DateTo)
		if err != nil {
			return toolError(err.Error())
		}
		return toolJSON(map[string]interface{}{"busy_slots": slots})
	default:
		slog.Warn("agent: unknown calendar tool", "tool", name)
		return toolError("未知のツールです: " + name)
	}
}

func execGmailTool(ctx context.Context, mail gmailAPI, name, rawArgs string) string {
	var args struct {
		Query      string   `json:"query"`
		MaxResults int64    `json:"max_results"`
		EmailID    string   `json:"email_id"`
		To         string   `json:"to"`
		Subject    string   `json:"subject"`
		Body       string   `json:"body"`
		Add        []string `json:"add"`
		Remove     []string `json:"remove"`
	}
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return toolError(fmt.Sprintf("引数の解析に失敗しました: %v", err))
		}
	}

	switch name {
	case "list_emails":
		emails, err := mail.ListEmails(ctx, "", args.MaxResults)
		if err != nil {
			return toolError(err.Error())
		}
		return toolJSON(map[string]interface{}{"emails": emails})
	case "search_emails":
		emails, err := mail.ListEmails(ctx, args.Query, args.MaxResults)
		if err != nil {
			return toolError(err.Error())
		}
		return toolJSON(map[string]interface{}{"emails": emails})
	case "get_email":
		email, err := mail.GetEmail(ctx, args.EmailID)
		if err != nil {
			return toolError(err.Error())
		}
		return toolJSON(map[string]interface{}{"email": email})
	case "send_email":
		id, err := mail.SendEmail(ctx, args.To, args.Subject, args.Body)
		if err != nil {
			return toolError(err.Error())
		}
		return toolJSON(map[string]string{"status": "sent", "message_id": id})
	case "delete_email":
		if err := mail.DeleteEmail(ctx, args.EmailID); err != nil {
			return toolError(err.Error())
		}
		return toolJSON(map[string]string{"status": "deleted", "email_id": args.EmailID})
	case "manage_labels":
		if err := mail.ModifyLabels(ctx, args.EmailID, args.Add, args.Remove); err != nil {
			return toolError(err.Error())
		}
		return toolJSON(map[string]string{"status": "labels_updated", "email_id": args.EmailID})
	case "save_draft":
		id, err := mail.SaveDraft(ctx, args.To, args.Subject, args.Body)
		if err != nil {
			return toolError(err.Error())
		}
		return toolJSON(map[string]string{"status": "draft_saved", "draft_id": id})
	default:
		slog.Warn("agent: unknown gmail tool", "tool", name)
		return toolError("未知のツールです: " + name)
	}
}
