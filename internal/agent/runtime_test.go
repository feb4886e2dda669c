package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// scriptedChat replays canned completions in order, repeating the last one.
type scriptedChat struct {
	calls     int
	responses []*openai.ChatCompletion
}

func (s *scriptedChat) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	idx := s.calls
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	s.calls++
	return s.responses[idx], nil
}

func textCompletion(content string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func toolCallCompletion(name, args string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{
				ToolCalls: []openai.ChatCompletionMessageToolCall{
					{
						ID: "call-1",
						Function: openai.ChatCompletionMessageToolCallFunction{
							Name:      name,
							Arguments: args,
						},
					},
				},
			}},
		},
	}
}

func newTestRuntime(chat chatCompleter) *Runtime {
	return &Runtime{
		chat:         chat,
		model:        openai.ChatModelGPT4oMini,
		mapsBaseURL:  defaultMapsBaseURL,
		tavilySearch: defaultTavilySearch,
		httpc:        http.DefaultClient,
		now:          func() time.Time { return time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC) },
	}
}

func TestInvokeEmptyPrompt(t *testing.T) {
	rt := newTestRuntime(&scriptedChat{})
	got, err := rt.Invoke(context.Background(), "   ", "U1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != emptyPromptResult {
		t.Errorf("result = %q, want empty-prompt text", got)
	}
}

func TestInvokeDirectAnswer(t *testing.T) {
	chat := &scriptedChat{responses: []*openai.ChatCompletion{textCompletion("こんにちは！")}}
	rt := newTestRuntime(chat)

	got, err := rt.Invoke(context.Background(), "こんにちは", "U1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "こんにちは！" {
		t.Errorf("result = %q", got)
	}
	if chat.calls != 1 {
		t.Errorf("chat calls = %d, want 1", chat.calls)
	}
}

func TestInvokeRawToolBypass(t *testing.T) {
	// The router calls request_location, then produces its own summary.
	// The raw tool JSON must win over the model's wording.
	chat := &scriptedChat{responses: []*openai.ChatCompletion{
		toolCallCompletion("request_location", `{"message":"位置情報を送ってください。"}`),
		textCompletion("場所を教えてもらえれば調べます。"),
	}}
	rt := newTestRuntime(chat)

	got, err := rt.Invoke(context.Background(), "近くのカフェ", "U1", nil)
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]string
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("result %q is not JSON: %v", got, err)
	}
	if decoded["type"] != "location_request" {
		t.Errorf("type = %q, want location_request", decoded["type"])
	}
	if decoded["message"] != "位置情報を送ってください。" {
		t.Errorf("message = %q", decoded["message"])
	}
}

func TestInvokeWebSearchResultIsNotRaw(t *testing.T) {
	// web_search feeds the model, which phrases the final answer itself.
	chat := &scriptedChat{responses: []*openai.ChatCompletion{
		toolCallCompletion("web_search", `{"query":"天気"}`),
		textCompletion("今日は晴れです。"),
	}}
	rt := newTestRuntime(chat)
	rt.tavilyKey = "k"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"answer":"晴れ","results":[]}`))
	}))
	defer srv.Close()
	rt.tavilySearch = srv.URL

	got, err := rt.Invoke(context.Background(), "今日の天気は？", "U1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "今日は晴れです。" {
		t.Errorf("result = %q, want the model's own wording", got)
	}
}

func TestToolLoopBound(t *testing.T) {
	// A model that never stops calling tools must not loop forever.
	chat := &scriptedChat{responses: []*openai.ChatCompletion{
		toolCallCompletion("request_location", `{"message":"x"}`),
	}}
	rt := newTestRuntime(chat)

	_, err := rt.Invoke(context.Background(), "test", "U1", nil)
	if err == nil {
		t.Fatal("runaway tool loop returned no error")
	}
	if chat.calls != maxToolRounds {
		t.Errorf("chat calls = %d, want %d", chat.calls, maxToolRounds)
	}
}

func TestCalendarAgentWithoutCredentials(t *testing.T) {
	rt := newTestRuntime(&scriptedChat{})
	got := rt.runCalendarAgent(context.Background(), "今日の予定", nil)
	if got != oauthRequiredResult {
		t.Errorf("result = %q, want oauth_required", got)
	}
}

func TestGmailAgentWithoutCredentials(t *testing.T) {
	rt := newTestRuntime(&scriptedChat{})
	got := rt.runGmailAgent(context.Background(), "受信トレイ", nil)
	if got != oauthRequiredResult {
		t.Errorf("result = %q, want oauth_required", got)
	}
}

func TestWrapAgentResult(t *testing.T) {
	jsonIn := `{"type":"text","message":"ok"}`
	if got := wrapAgentResult(jsonIn); got != jsonIn {
		t.Errorf("JSON input rewrapped: %q", got)
	}

	fenced := "```json\n" + jsonIn + "\n```"
	if got := wrapAgentResult(fenced); got != jsonIn {
		t.Errorf("fenced input = %q, want stripped JSON", got)
	}

	got := wrapAgentResult("plain prose")
	var decoded map[string]string
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("wrapped output %q not JSON: %v", got, err)
	}
	if decoded["type"] != "text" || decoded["message"] != "plain prose" {
		t.Errorf("wrapped = %v", decoded)
	}
}

func TestSearchPlace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/search" {
			t.Errorf("path = %q, want /api/search", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "ラーメン" {
			t.Errorf("q = %q", got)
		}
		w.Write([]byte(`[{"place_id":"p1","display_name":"一蘭","lat":"35.6","lon":"139.7"}]`))
	}))
	defer srv.Close()

	rt := newTestRuntime(&scriptedChat{})
	rt.mapsBaseURL = srv.URL

	got := rt.searchPlace(context.Background(), "ラーメン")

	var decoded struct {
		Type   string `json:"type"`
		Places []struct {
			Name string `json:"name"`
			Lat  string `json:"lat"`
		} `json:"places"`
	}
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("result %q not JSON: %v", got, err)
	}
	if decoded.Type != "place_search" {
		t.Errorf("type = %q", decoded.Type)
	}
	if len(decoded.Places) != 1 || decoded.Places[0].Name != "一蘭" || decoded.Places[0].Lat != "35.6" {
		t.Errorf("places = %+v", decoded.Places)
	}
}

func TestSearchPlaceNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	rt := newTestRuntime(&scriptedChat{})
	rt.mapsBaseURL = srv.URL

	got := rt.searchPlace(context.Background(), "存在しない場所")
	if !strings.Contains(got, `"text"`) {
		t.Errorf("result = %q, want text fallback", got)
	}
}

func TestRecommendPlace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ai/recommend" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"places":[{"name":"カフェA","rating":4.5}]}`))
	}))
	defer srv.Close()

	rt := newTestRuntime(&scriptedChat{})
	rt.mapsBaseURL = srv.URL

	got := rt.recommendPlace(context.Background(), "静かなカフェ")
	if !strings.Contains(got, `"place_recommend"`) || !strings.Contains(got, "カフェA") {
		t.Errorf("result = %q", got)
	}
}

func TestWebSearchWithoutKey(t *testing.T) {
	rt := newTestRuntime(&scriptedChat{})
	got := rt.webSearch(context.Background(), "query")
	if !strings.Contains(got, "TAVILY_API_KEY") {
		t.Errorf("result = %q, want missing-key error", got)
	}
}

func TestHandleInvocation(t *testing.T) {
	chat := &scriptedChat{responses: []*openai.ChatCompletion{textCompletion("ok")}}
	rt := newTestRuntime(chat)
	srv := httptest.NewServer(rt.Handler())
	defer srv.Close()

	body := `{"prompt":"こんにちは","user_id":"U1"}`
	res, err := http.Post(srv.URL+invocationsPath, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}

	var decoded invokeResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Status != "success" || decoded.Result != "ok" {
		t.Errorf("response = %+v", decoded)
	}
}

func TestHandleInvocationBadJSON(t *testing.T) {
	rt := newTestRuntime(&scriptedChat{})
	srv := httptest.NewServer(rt.Handler())
	defer srv.Close()

	res, err := http.Post(srv.URL+invocationsPath, "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", res.StatusCode)
	}
}

func TestWithDateLine(t *testing.T) {
	now := time.Date(2026, 2, 9, 15, 4, 0, 0, time.UTC) // JST 2026-02-10 00:04 Tue
	got := withDateLine("base prompt", now)
	if !strings.Contains(got, "現在の日時") {
		t.Errorf("prompt missing date line: %q", got)
	}
	if !strings.Contains(got, "2026年02月10日(火)") {
		t.Errorf("prompt missing JST date: %q", got)
	}
	if !strings.Contains(got, "base prompt") {
		t.Errorf("prompt lost its body: %q", got)
	}
}
