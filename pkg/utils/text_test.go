package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if got := Truncate("日本語テキスト", 3); got != "日本語..." {
		t.Errorf("rune truncation: got %q", got)
	}
}

func TestCollapseSpace(t *testing.T) {
	if got := CollapseSpace("  a \n\t b  c "); got != "a b c" {
		t.Errorf("got %q", got)
	}
}

func TestValidUTF8(t *testing.T) {
	if got := ValidUTF8("ok"); got != "ok" {
		t.Errorf("got %q", got)
	}
	if got := ValidUTF8("a\xffb"); got != "a�b" {
		t.Errorf("got %q", got)
	}
	if RuneLen("héllo") != 5 {
		t.Error("RuneLen should count characters")
	}
}
