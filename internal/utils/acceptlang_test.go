package utils

import "testing"

var supported = []string{"en", "zh"}

func TestDetermineLocale_QueryParamWins(t *testing.T) {
	got := DetermineLocale("zh-CN", "en-US,en;q=0.9,zh;q=0.8", supported, "en")
	if got != "zh" {
		t.Fatalf("want zh, got %s", got)
	}
}

func TestDetermineLocale_AcceptLanguageOrder(t *testing.T) {
	got := DetermineLocale("", "en-US,en;q=0.9,zh;q=0.8", supported, "en")
	if got != "en" {
		t.Fatalf("want en, got %s", got)
	}
}

func TestDetermineLocale_AcceptLanguagePrefersHigherQ(t *testing.T) {
	got := DetermineLocale("", "zh;q=0.9,en;q=0.8", supported, "en")
	if got != "zh" {
		t.Fatalf("want zh, got %s", got)
	}
}

func TestDetermineLocale_RegionalVariant(t *testing.T) {
	got := DetermineLocale("", "fr;q=0.5,zh-CN;q=0.9", supported, "en")
	if got != "zh" {
		t.Fatalf("want zh, got %s", got)
	}
}

func TestDetermineLocale_BadQueryFallsThrough(t *testing.T) {
	got := DetermineLocale("!!", "zh", supported, "en")
	if got != "zh" {
		t.Fatalf("want zh, got %s", got)
	}
}

func TestDetermineLocale_DefaultFallback(t *testing.T) {
	got := DetermineLocale("", "fr-FR,es;q=0.9", supported, "en")
	if got != "en" {
		t.Fatalf("want en fallback, got %s", got)
	}
	if got := DetermineLocale("", "", supported, "zh"); got != "zh" {
		t.Fatalf("want zh default, got %s", got)
	}
}
