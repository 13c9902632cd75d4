package tgui

import (
	"strings"
	"testing"
)

func TestBuilderEscapesHTML(t *testing.T) {
	t.Parallel()
	msg := New().
		Title("🔔", "Take <pills>").
		KV("When", "9 & 10").
		Bullets("a", " ", "b").
		Build()

	want := "🔔 <b>Take &lt;pills&gt;</b>\n• <b>When</b>: 9 &amp; 10\n• a\n• b"
	if msg.Text != want {
		t.Fatalf("Text = %q, want %q", msg.Text, want)
	}
	if msg.Opt.ParseMode != "HTML" || !msg.Opt.DisablePreview {
		t.Fatalf("Opt = %+v", msg.Opt)
	}
}

func TestBuilderPlain(t *testing.T) {
	t.Parallel()
	msg := New().ParseMode("").Title("", "a<b").Line("x & y").Build()
	if msg.Text != "a<b\nx & y" {
		t.Fatalf("Text = %q", msg.Text)
	}
}

func TestInlineAttachesMarkup(t *testing.T) {
	t.Parallel()
	kb := NewInline().Split(2, Btn("yes", "rbot:say:yes"), Btn("no", "rbot:say:no"), Btn("x", "rbot:say:x"))
	msg := New().Line("q").Inline(kb).Build()
	if msg.Opt.ReplyMarkup == nil {
		t.Fatalf("ReplyMarkup not attached")
	}
	if n := len(kb.Markup().InlineKeyboard); n != 2 {
		t.Fatalf("rows = %d, want 2", n)
	}
}

func TestCallbackData(t *testing.T) {
	t.Parallel()
	d, err := Data("rbot", "say", "renew")
	if err != nil || d != "rbot:say:renew" {
		t.Fatalf("Data = %q, %v", d, err)
	}
	ns, action, payload, ok := ParseData(d)
	if !ok || ns != "rbot" || action != "say" || payload != "renew" {
		t.Fatalf("ParseData = %q %q %q %v", ns, action, payload, ok)
	}
	if _, _, _, ok := ParseData("nocolon"); ok {
		t.Fatalf("ParseData(nocolon) ok")
	}
	if _, err := Data("rbot", "say", strings.Repeat("x", 80)); err != ErrCallbackDataTooLong {
		t.Fatalf("Data(long) err = %v", err)
	}
}

func TestTruncRunes(t *testing.T) {
	t.Parallel()
	if got := TruncRunes("héllo wörld", 5); got != "héll…" {
		t.Fatalf("TruncRunes = %q", got)
	}
	if got := TruncRunes("abc", 5); got != "abc" {
		t.Fatalf("TruncRunes(short) = %q", got)
	}
}
