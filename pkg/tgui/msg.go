package tgui

import (
	"strings"

	tele "gopkg.in/telebot.v4"

	"remindbot/internal/transport"
)

// Message is a rendered payload: text plus send options.
type Message struct {
	Text string
	Opt  *transport.SendOptions
}

// Builder assembles a message line by line.
// Default: ParseMode=HTML, previews disabled.
type Builder struct {
	parseMode      string
	disablePreview bool
	rm             *tele.ReplyMarkup
	lines          []string
}

func New() *Builder {
	return &Builder{parseMode: "HTML", disablePreview: true}
}

func (b *Builder) html() bool { return strings.EqualFold(b.parseMode, "HTML") }

func (b *Builder) esc(s string) string {
	if b.html() {
		return Esc(s).String()
	}
	return s
}

func (b *Builder) bold(s string) string {
	if b.html() {
		return B(s).String()
	}
	return s
}

// ParseMode overrides the parse mode ("HTML" or empty for plain text).
func (b *Builder) ParseMode(mode string) *Builder {
	b.parseMode = strings.TrimSpace(mode)
	return b
}

// Inline attaches an inline keyboard; nil clears it.
func (b *Builder) Inline(kb *Inline) *Builder {
	if kb == nil {
		b.rm = nil
		return b
	}
	b.rm = kb.Markup()
	return b
}

// Title adds a bold title line with an optional emoji.
func (b *Builder) Title(emoji, title string) *Builder {
	e, t := strings.TrimSpace(emoji), strings.TrimSpace(title)
	if t == "" {
		return b
	}
	line := b.bold(t)
	if e != "" {
		line = b.esc(e) + " " + line
	}
	b.lines = append(b.lines, line)
	return b
}

// Section adds a bold header line.
func (b *Builder) Section(title string) *Builder {
	if t := strings.TrimSpace(title); t != "" {
		b.lines = append(b.lines, b.bold(t))
	}
	return b
}

// Line adds one escaped line. Blank input adds an empty line.
func (b *Builder) Line(s string) *Builder {
	if strings.TrimSpace(s) == "" {
		b.lines = append(b.lines, "")
		return b
	}
	b.lines = append(b.lines, b.esc(s))
	return b
}

// RawLine appends s without escaping.
func (b *Builder) RawLine(s H) *Builder {
	b.lines = append(b.lines, s.String())
	return b
}

func (b *Builder) Blank() *Builder { return b.Line("") }

// Bullets adds one "• item" line per non-empty item.
func (b *Builder) Bullets(items ...string) *Builder {
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			b.Line("• " + it)
		}
	}
	return b
}

// KV adds a "• key: value" row with a bold key.
func (b *Builder) KV(key, value string) *Builder {
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)
	if key == "" {
		return b
	}
	b.lines = append(b.lines, "• "+b.bold(key)+": "+b.esc(value))
	return b
}

// Build produces the final Message.
func (b *Builder) Build() Message {
	text := strings.Trim(strings.Join(b.lines, "\n"), "\n")
	opt := &transport.SendOptions{ParseMode: b.parseMode, DisablePreview: b.disablePreview}
	if b.rm != nil {
		opt.ReplyMarkup = b.rm
	}
	return Message{Text: text, Opt: opt}
}
