package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/hisho-bot/hisho/internal/auth"
	"github.com/hisho-bot/hisho/internal/gsuite"
	"github.com/hisho-bot/hisho/internal/sanitize"
)

const (
	defaultMapsBaseURL   = "https://myplace-blush.vercel.app"
	defaultTavilySearch  = "https://api.tavily.com/search"
	maxToolRounds        = 10
	emptyPromptResult    = "メッセージが空です。"
	oauthRequiredResult  = `{"type": "oauth_required", "message": "Google 認証が必要です。"}`
	calendarUnavailable  = `{"type": "text", "message": "カレンダーエージェントへの接続に失敗しました。"}`
	placeSearchFailed    = "場所の検索に失敗しました。もう一度お試しください。"
	placeRecommendFailed = "おすすめ場所の取得に失敗しました。もう一度お試しください。"
)

// chatCompleter is the slice of the OpenAI client the runtime calls.
type chatCompleter interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// RuntimeOpts holds configuration for the local agent runtime.
type RuntimeOpts struct {
	APIKey       string
	BaseURL      string
	Model        openai.ChatModel
	MapsBaseURL  string
	TavilyAPIKey string
	HTTPClient   *http.Client
}

// RuntimeOption configures the local agent runtime.
type RuntimeOption func(*RuntimeOpts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) RuntimeOption {
	return func(o *RuntimeOpts) {
		o.APIKey = key
	}
}

// WithBaseURL overrides the OpenAI API endpoint.
func WithBaseURL(u string) RuntimeOption {
	return func(o *RuntimeOpts) {
		o.BaseURL = u
	}
}

// WithModel sets the chat model.
func WithModel(m openai.ChatModel) RuntimeOption {
	return func(o *RuntimeOpts) {
		o.Model = m
	}
}

// WithMapsBaseURL overrides the place-search API base URL.
func WithMapsBaseURL(u string) RuntimeOption {
	return func(o *RuntimeOpts) {
		o.MapsBaseURL = u
	}
}

// WithTavilyAPIKey enables the web_search tool.
func WithTavilyAPIKey(key string) RuntimeOption {
	return func(o *RuntimeOpts) {
		o.TavilyAPIKey = key
	}
}

// WithRuntimeHTTPClient overrides the HTTP client used by the place and
// search tools.
func WithRuntimeHTTPClient(hc *http.Client) RuntimeOption {
	return func(o *RuntimeOpts) {
		o.HTTPClient = hc
	}
}

// Runtime is an in-process agent: a router model that answers directly or
// delegates to calendar / gmail sub-agents and place / web-search tools. It
// implements Invoker, so the controller can run against it without a remote
// runtime, and Handler exposes the same invocation contract over HTTP.
type Runtime struct {
	chat         chatCompleter
	model        openai.ChatModel
	mapsBaseURL  string
	tavilySearch string
	tavilyKey    string
	httpc        *http.Client
	now          func() time.Time

	newCalendar func(ctx context.Context, creds *auth.GoogleCredentials) (calendarAPI, error)
	newGmail    func(ctx context.Context, creds *auth.GoogleCredentials) (gmailAPI, error)
}

// NewRuntime creates a local agent runtime.
func NewRuntime(opts ...RuntimeOption) (*Runtime, error) {
	cfg := RuntimeOpts{
		Model:       openai.ChatModelGPT4oMini,
		MapsBaseURL: defaultMapsBaseURL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("agent runtime requires an OpenAI API key")
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(clientOpts...)

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}

	return &Runtime{
		chat:         &client.Chat.Completions,
		model:        cfg.Model,
		mapsBaseURL:  strings.TrimRight(cfg.MapsBaseURL, "/"),
		tavilySearch: defaultTavilySearch,
		tavilyKey:    cfg.TavilyAPIKey,
		httpc:        hc,
		now:          time.Now,
		newCalendar: func(ctx context.Context, creds *auth.GoogleCredentials) (calendarAPI, error) {
			return gsuite.NewCalendar(ctx, credentialsTokenSource(ctx, creds))
		},
		newGmail: func(ctx context.Context, creds *auth.GoogleCredentials) (gmailAPI, error) {
			return gsuite.NewGmail(ctx, credentialsTokenSource(ctx, creds))
		},
	}, nil
}

// credentialsTokenSource turns a forwarded credential payload into a
// refreshing token source.
func credentialsTokenSource(ctx context.Context, creds *auth.GoogleCredentials) oauth2.TokenSource {
	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     google.Endpoint,
	}
	tok := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
	}
	if creds.Expired {
		tok.Expiry = time.Now().Add(-time.Minute)
	}
	return conf.TokenSource(ctx, tok)
}

// invocation carries per-request state through one router run. The raw field
// holds the untouched JSON of the last domain tool that fired; when set, it
// bypasses the router model's own rendering of the result.
type invocation struct {
	rt    *Runtime
	creds *auth.GoogleCredentials
	raw   string
}

// Invoke runs the router agent for one prompt. It satisfies Invoker.
func (rt *Runtime) Invoke(ctx context.Context, prompt, userID string, creds *auth.GoogleCredentials) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return emptyPromptResult, nil
	}
	inv := &invocation{rt: rt, creds: creds}
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(withDateLine(routerSystemPrompt, rt.now())),
		openai.UserMessage(prompt),
	}
	out, err := rt.chatLoop(ctx, messages, routerToolDefs(), inv.execRouterTool)
	if err != nil {
		return "", err
	}
	if inv.raw != "" {
		slog.Debug("agent: returning raw tool result", "userID", userID, "resultLength", len(inv.raw))
		return inv.raw, nil
	}
	return out, nil
}

// chatLoop drives the completion/tool-call cycle until the model produces a
// final text answer.
func (rt *Runtime) chatLoop(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam, exec func(ctx context.Context, name, rawArgs string) string) (string, error) {
	for round := 1; round <= maxToolRounds; round++ {
		resp, err := rt.chat.New(ctx, openai.ChatCompletionNewParams{
			Model:    rt.model,
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			return "", fmt.Errorf("chat completion failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("chat completion returned no choices")
		}
		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			return msg.Content, nil
		}

		messages = append(messages, msg.ToParam())
		for _, tc := range msg.ToolCalls {
			slog.Debug("agent: executing tool", "tool", tc.Function.Name, "round", round)
			result := exec(ctx, tc.Function.Name, tc.Function.Arguments)
			messages = append(messages, openai.ToolMessage(result, tc.ID))
		}
	}
	return "", fmt.Errorf("tool loop exceeded %d rounds", maxToolRounds)
}

func (inv *invocation) execRouterTool(ctx context.Context, name, rawArgs string) string {
	var args struct {
		Query   string `json:"query"`
		Prompt  string `json:"prompt"`
		Message string `json:"message"`
	}
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return toolError(fmt.Sprintf("引数の解析に失敗しました: %v", err))
		}
	}

	switch name {
	case "calendar_agent":
		result := inv.rt.runCalendarAgent(ctx, args.Query, inv.creds)
		inv.raw = result
		return result
	case "gmail_agent":
		result := inv.rt.runGmailAgent(ctx, args.Query, inv.creds)
		inv.raw = result
		return result
	case "search_place":
		result := inv.rt.searchPlace(ctx, args.Query)
		inv.raw = result
		return result
	case "recommend_place":
		result := inv.rt.recommendPlace(ctx, args.Prompt)
		inv.raw = result
		return result
	case "request_location":
		result := toolJSON(map[string]string{"type": "location_request", "message": args.Message})
		inv.raw = result
		return result
	case "web_search":
		return inv.rt.webSearch(ctx, args.Query)
	default:
		slog.Warn("agent: unknown router tool", "tool", name)
		return toolError("未知のツールです: " + name)
	}
}

// runCalendarAgent runs the calendar sub-agent with its own tool loop and
// returns its typed JSON response.
func (rt *Runtime) runCalendarAgent(ctx context.Context, query string, creds *auth.GoogleCredentials) string {
	if creds == nil || creds.AccessToken == "" {
		return oauthRequiredResult
	}
	cal, err := rt.newCalendar(ctx, creds)
	if err != nil {
		slog.Error("agent: calendar setup failed", "error", err)
		return calendarUnavailable
	}
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(withDateLine(calendarSystemPrompt, rt.now())),
		openai.UserMessage(query),
	}
	out, err := rt.chatLoop(ctx, messages, calendarToolDefs(), func(ctx context.Context, name, rawArgs string) string {
		return execCalendarTool(ctx, cal, name, rawArgs)
	})
	if err != nil {
		slog.Error("agent: calendar agent failed", "error", err)
		return calendarUnavailable
	}
	return wrapAgentResult(out)
}

// runGmailAgent runs the gmail sub-agent with its own tool loop.
func (rt *Runtime) runGmailAgent(ctx context.Context, query string, creds *auth.GoogleCredentials) string {
	if creds == nil || creds.AccessToken == "" {
		return oauthRequiredResult
	}
	mail, err := rt.newGmail(ctx, creds)
	if err != nil {
		slog.Error("agent: gmail setup failed", "error", err)
		return toolJSON(map[string]string{"type": "text", "message": "メールエージェントへの接続に失敗しました。"})
	}
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(withDateLine(gmailSystemPrompt, rt.now())),
		openai.UserMessage(query),
	}
	out, err := rt.chatLoop(ctx, messages, gmailToolDefs(), func(ctx context.Context, name, rawArgs string) string {
		return execGmailTool(ctx, mail, name, rawArgs)
	})
	if err != nil {
		slog.Error("agent: gmail agent failed", "error", err)
		return toolJSON(map[string]string{"type": "text", "message": "メールエージェントへの接続に失敗しました。"})
	}
	return wrapAgentResult(out)
}

// wrapAgentResult extracts the JSON from a sub-agent answer and wraps plain
// text as a text response.
func wrapAgentResult(s string) string {
	extracted := sanitize.Extract(s)
	if json.Valid([]byte(extracted)) {
		return extracted
	}
	return toolJSON(map[string]string{"type": "text", "message": s})
}

type placeSearchResult struct {
	PlaceID     string `json:"place_id"`
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

func (rt *Runtime) searchPlace(ctx context.Context, query string) string {
	u := rt.mapsBaseURL + "/api/search?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return toolJSON(map[string]string{"type": "text", "message": placeSearchFailed})
	}
	req.Header.Set("Accept", "application/json")

	res, err := rt.httpc.Do(req)
	if err != nil {
		slog.Error("agent: search_place failed", "error", err)
		return toolJSON(map[string]string{"type": "text", "message": placeSearchFailed})
	}
	defer res.Body.Close()

	var places []placeSearchResult
	if err := json.NewDecoder(res.Body).Decode(&places); err != nil {
		slog.Error("agent: search_place decode failed", "error", err)
		return toolJSON(map[string]string{"type": "text", "message": placeSearchFailed})
	}
	if len(places) == 0 {
		return toolJSON(map[string]string{
			"type":    "text",
			"message": fmt.Sprintf("「%s」に該当する場所が見つかりませんでした。", query),
		})
	}

	results := make([]map[string]string, 0, len(places))
	for _, p := range places {
		results = append(results, map[string]string{
			"place_id": p.PlaceID,
			"name":     p.DisplayName,
			"lat":      p.Lat,
			"lon":      p.Lon,
		})
	}
	return toolJSON(map[string]interface{}{
		"type":    "place_search",
		"message": fmt.Sprintf("「%s」で見つかったお店です！", query),
		"places":  results,
	})
}

func (rt *Runtime) recommendPlace(ctx context.Context, prompt string) string {
	payload, _ := json.Marshal(map[string]string{"prompt": prompt})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rt.mapsBaseURL+"/api/ai/recommend", strings.NewReader(string(payload)))
	if err != nil {
		return toolJSON(map[string]string{"type": "text", "message": placeRecommendFailed})
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := rt.httpc.Do(req)
	if err != nil {
		slog.Error("agent: recommend_place failed", "error", err)
		return toolJSON(map[string]string{"type": "text", "message": placeRecommendFailed})
	}
	defer res.Body.Close()

	var data struct {
		Places []json.RawMessage `json:"places"`
	}
	if err := json.NewDecoder(res.Body).Decode(&data); err != nil {
		slog.Error("agent: recommend_place decode failed", "error", err)
		return toolJSON(map[string]string{"type": "text", "message": placeRecommendFailed})
	}
	if len(data.Places) == 0 {
		return toolJSON(map[string]string{"type": "text", "message": "条件に合うおすすめの場所が見つかりませんでした。"})
	}
	return toolJSON(map[string]interface{}{
		"type":    "place_recommend",
		"message": "こちらのお店はいかがでしょうか？",
		"places":  data.Places,
	})
}

func (rt *Runtime) webSearch(ctx context.Context, query string) string {
	if rt.tavilyKey == "" {
		return toolError("TAVILY_API_KEY が設定されていません。")
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"api_key":        rt.tavilyKey,
		"query":          query,
		"search_depth":   "basic",
		"max_results":    5,
		"include_answer": true,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rt.tavilySearch, strings.NewReader(string(payload)))
	if err != nil {
		return toolError(fmt.Sprintf("Web 検索に失敗しました: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := rt.httpc.Do(req)
	if err != nil {
		slog.Error("agent: web_search failed", "error", err)
		return toolError(fmt.Sprintf("Web 検索に失敗しました: %v", err))
	}
	defer res.Body.Close()

	var data struct {
		Answer  string `json:"answer"`
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(res.Body).Decode(&data); err != nil {
		slog.Error("agent: web_search decode failed", "error", err)
		return toolError(fmt.Sprintf("Web 検索に失敗しました: %v", err))
	}
	return toolJSON(data)
}

// Handler exposes the invocation contract over HTTP for running the runtime
// as a standalone process.
func (rt *Runtime) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc(invocationsPath, rt.handleInvocation).Methods(http.MethodPost)
	return r
}

func (rt *Runtime) handleInvocation(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	var req invokeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if strings.TrimSpace(req.Prompt) == "" {
		writeInvokeResponse(w, invokeResponse{Result: emptyPromptResult, Status: "error"})
		return
	}

	result, err := rt.Invoke(r.Context(), req.Prompt, req.UserID, req.GoogleCredentials)
	if err != nil {
		slog.Error("agent: invocation failed", "error", err)
		writeInvokeResponse(w, invokeResponse{
			Result: `{"type": "text", "message": "エージェントの実行に失敗しました。"}`,
			Status: "error",
		})
		return
	}
	writeInvokeResponse(w, invokeResponse{Result: result, Status: "success"})
}

func writeInvokeResponse(w http.ResponseWriter, res invokeResponse) {
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("agent: failed to encode response", "error", err)
	}
}
