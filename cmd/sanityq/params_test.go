package main

import (
	"reflect"
	"testing"
)

func TestParseParams(t *testing.T) {
	got, err := parseParams([]string{`slug="hello"`, "limit=10", "$tags=[\"a\",\"b\"]", "plain=not json", "empty="})
	if err != nil {
		t.Fatalf("parseParams: %v", err)
	}
	want := map[string]any{
		"slug":  "hello",
		"limit": float64(10),
		"tags":  []any{"a", "b"},
		"plain": "not json",
		"empty": "",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("parseParams = %#v, want %#v", got, want)
	}
}

func TestParseParamsErrors(t *testing.T) {
	for _, in := range [][]string{{"novalue"}, {"=1"}, {"a=1", "a=2"}} {
		if _, err := parseParams(in); err == nil {
			t.Fatalf("expected error for %v", in)
		}
	}
	if got, err := parseParams(nil); got != nil || err != nil {
		t.Fatalf("expected nil map for no params, got %v %v", got, err)
	}
}
