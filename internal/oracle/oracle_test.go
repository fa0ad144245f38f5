package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPOracle_ChatJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	o := NewHTTPOracle(srv.URL, nil)
	out, err := o.ChatJSON(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, ChatOptions{Model: "m", MaxTokens: 10})
	if err != nil {
		t.Fatalf("ChatJSON: %v", err)
	}
	if out["ok"] != true {
		t.Fatalf("out = %v, want ok=true", out)
	}
}

func TestHTTPOracle_ChatJSON_RetriesOnMalformedContent(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"not json"}}]}`))
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	o := NewHTTPOracle(srv.URL, nil)
	out, err := o.ChatJSON(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, ChatOptions{Model: "m"})
	if err != nil {
		t.Fatalf("ChatJSON: %v", err)
	}
	if out["ok"] != true {
		t.Fatalf("out = %v", out)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestHTTPOracle_ChatJSON_FormatErrorAfterBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not even json`))
	}))
	defer srv.Close()

	o := NewHTTPOracle(srv.URL, nil)
	_, err := o.ChatJSON(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, ChatOptions{Model: "m"})
	var formatErr *LLMFormatError
	if err == nil {
		t.Fatal("expected error")
	}
	if !asFormatError(err, &formatErr) {
		t.Fatalf("err = %v, want *LLMFormatError", err)
	}
	if formatErr.Attempts != minFormatAttempts {
		t.Fatalf("Attempts = %d, want %d", formatErr.Attempts, minFormatAttempts)
	}
}

func TestHTTPOracle_ChatJSON_ServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	o := NewHTTPOracle(srv.URL, nil, WithTransportRetry(0, 0))
	_, err := o.ChatJSON(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, ChatOptions{Model: "m"})
	var unavailable *LLMUnavailableError
	if !asUnavailableError(err, &unavailable) {
		t.Fatalf("err = %v, want *LLMUnavailableError", err)
	}
}

func TestFakeOracle_MatchesFirstEligibleResponse(t *testing.T) {
	f := &FakeOracle{Responses: []FakeResponse{
		{Match: func(m []Message) bool { return len(m) == 0 }, Value: map[string]any{"wrong": true}},
		{Value: map[string]any{"right": true}},
	}}
	out, err := f.ChatJSON(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, ChatOptions{})
	if err != nil {
		t.Fatalf("ChatJSON: %v", err)
	}
	if out["right"] != true {
		t.Fatalf("out = %v", out)
	}
	if f.Calls() != 1 {
		t.Fatalf("Calls() = %d, want 1", f.Calls())
	}
}

func asFormatError(err error, target **LLMFormatError) bool {
	fe, ok := err.(*LLMFormatError)
	if ok {
		*target = fe
	}
	return ok
}

func asUnavailableError(err error, target **LLMUnavailableError) bool {
	ue, ok := err.(*LLMUnavailableError)
	if ok {
		*target = ue
	}
	return ok
}
