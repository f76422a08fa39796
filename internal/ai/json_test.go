package ai

import (
	"errors"
	"testing"
)

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{name: "open string value is closed", in: `{"title":"Pa`, want: `{"title":"Pa"}`, ok: true},
		{name: "dangling key dropped", in: `{"title":"Paris","days":[{"title":"Day 1"},{"ti`, want: `{"title":"Paris","days":[{"title":"Day 1"},{}]}`, ok: true},
		{name: "unterminated number dropped", in: `{"price": 45`, want: `{}`, ok: true},
		{name: "terminated number kept", in: `{"price": 45,`, want: `{"price": 45}`, ok: true},
		{name: "partial literal dropped", in: `{"a":tru`, want: `{}`, ok: true},
		{name: "key without value", in: `{"a":`, want: `{}`, ok: true},
		{name: "array of numbers", in: `[1, 2`, want: `[1]`, ok: true},
		{name: "dangling escape", in: `{"a":"x\`, want: `{"a":"x"}`, ok: true},
		{name: "partial unicode escape", in: `{"a":"caf\u00`, want: `{"a":"caf"}`, ok: true},
		{name: "complete document in fence", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`, ok: true},
		{name: "complete document with trailing text", in: `{"a":"b"} trailing`, want: `{"a":"b"}`, ok: true},
		{name: "no document", in: `no json here`, ok: false},
		{name: "empty", in: ``, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RepairJSON(tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Fatalf("RepairJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecodePartialKeepsKnownFields(t *testing.T) {
	var v struct {
		Title *string `json:"title"`
		Days  []struct {
			Title *string `json:"title"`
		} `json:"days"`
	}
	if !DecodePartial(`{"title":"Tokyo trip","days":[{"title":"Arrive"},{"title":"Asaku`, &v) {
		t.Fatalf("expected partial decode to succeed")
	}
	if v.Title == nil || *v.Title != "Tokyo trip" {
		t.Fatalf("unexpected title: %v", v.Title)
	}
	if len(v.Days) != 2 || v.Days[1].Title == nil || *v.Days[1].Title != "Asaku" {
		t.Fatalf("unexpected days: %+v", v.Days)
	}
}

func TestDecodeFinalRejectsMalformed(t *testing.T) {
	var v map[string]any
	err := DecodeFinal(`{"title": `, &v)
	if !errors.Is(err, ErrMalformedOutput) {
		t.Fatalf("expected ErrMalformedOutput, got %v", err)
	}
	if err := DecodeFinal("```json\n{\"title\":\"ok\"}\n```", &v); err != nil {
		t.Fatalf("DecodeFinal: %v", err)
	}
	if v["title"] != "ok" {
		t.Fatalf("unexpected value: %v", v)
	}
}

func TestDecodeFinalIgnoresSurroundingProse(t *testing.T) {
	var v struct {
		Title string `json:"title"`
	}
	if err := DecodeFinal("Here is your plan:\n{\"title\":\"Kyoto\"}\nEnjoy!", &v); err != nil {
		t.Fatalf("DecodeFinal: %v", err)
	}
	if v.Title != "Kyoto" {
		t.Fatalf("unexpected title %q", v.Title)
	}
}
