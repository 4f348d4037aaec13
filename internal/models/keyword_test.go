package models

import (
	"encoding/json"
	"testing"
)

func TestKeywordRecord_UnmarshalTolerant(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantCount int64
		wantDepth int
	}{
		{"well formed", `{"phrase":"a","count":12,"depth":2}`, 12, 2},
		{"count as string", `{"phrase":"a","count":"340","depth":1}`, 340, 1},
		{"count invalid", `{"phrase":"a","count":"invalid","depth":1}`, 0, 1},
		{"count null", `{"phrase":"a","count":null,"depth":1}`, 0, 1},
		{"depth missing", `{"phrase":"a","count":5}`, 5, 1},
		{"depth null", `{"phrase":"a","count":5,"depth":null}`, 5, 1},
		{"count float string", `{"phrase":"a","count":"12300.0"}`, 12300, 1},
		{"negative count clamps", `{"phrase":"a","count":-7}`, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r KeywordRecord
			if err := json.Unmarshal([]byte(tt.in), &r); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if r.Count != tt.wantCount {
				t.Errorf("count = %d, want %d", r.Count, tt.wantCount)
			}
			if r.Depth != tt.wantDepth {
				t.Errorf("depth = %d, want %d", r.Depth, tt.wantDepth)
			}
		})
	}
}

func TestKeywordRecord_RoundTrip(t *testing.T) {
	in := KeywordRecord{Phrase: "купить квартиру", Count: 991, Depth: 2, Seed: "квартира", Source: SourceAPI}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out KeywordRecord
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Errorf("round trip: got %+v, want %+v", out, in)
	}
}

func TestRunRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     RunRequest
		wantErr bool
	}{
		{"valid", RunRequest{Seeds: []string{"a"}, MaxDepth: 2}, false},
		{"depth zero is valid", RunRequest{Seeds: []string{"a"}, MaxDepth: 0}, false},
		{"no seeds", RunRequest{MaxDepth: 1}, true},
		{"negative depth", RunRequest{Seeds: []string{"a"}, MaxDepth: -1}, true},
		{"depth too large", RunRequest{Seeds: []string{"a"}, MaxDepth: MaxRunDepth + 1}, true},
		{"negative top_n", RunRequest{Seeds: []string{"a"}, MaxDepth: 1, TopN: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunStatus_Terminal(t *testing.T) {
	for _, s := range []RunStatus{StatusCompleted, StatusCancelled, StatusFailed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []RunStatus{StatusIdle, StatusRunning} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
