// Package router turns inbound Telegram updates into ordered requests for
// the conversation front.
package router

import "strings"

// Kind is the closed set of commands the bot understands.
type Kind int

const (
	// KindText is plain text, not a command.
	KindText Kind = iota
	KindReminder
	KindMedicine
	KindList
	KindDelete
	KindClear
	KindHelp
	KindCancel
	KindTimezone
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindReminder:
		return "reminder"
	case KindMedicine:
		return "medicine"
	case KindList:
		return "list"
	case KindDelete:
		return "delete"
	case KindClear:
		return "clear"
	case KindHelp:
		return "help"
	case KindCancel:
		return "cancel"
	case KindTimezone:
		return "timezone"
	default:
		return "unknown"
	}
}

// Command is a parsed message. Name is the word as typed (without the
// slash or @bot suffix); Arg is the rest of the line.
type Command struct {
	Kind Kind
	Name string
	Arg  string
}

// Spec describes one command for parsing, help and the menu.
type Spec struct {
	Kind        Kind
	Name        string
	Aliases     []string
	Usage       string
	Description string
}

var specs = []Spec{
	{Kind: KindReminder, Name: "reminder", Aliases: []string{"new"}, Description: "Create a one-time reminder"},
	{Kind: KindMedicine, Name: "medicine", Description: "Set up a recurring medicine schedule"},
	{Kind: KindList, Name: "list", Aliases: []string{"view"}, Description: "Show your reminders"},
	{Kind: KindDelete, Name: "delete", Description: "Delete a reminder"},
	{Kind: KindClear, Name: "clear", Aliases: []string{"erase"}, Description: "Delete all your reminders"},
	{Kind: KindTimezone, Name: "timezone", Aliases: []string{"tz"}, Usage: "/timezone [zone]", Description: "Show or set your timezone"},
	{Kind: KindCancel, Name: "cancel", Description: "Cancel the current operation"},
	{Kind: KindHelp, Name: "help", Aliases: []string{"start", "h"}, Description: "Show help"},
}

var byName = func() map[string]Kind {
	m := make(map[string]Kind, len(specs)*2)
	for _, s := range specs {
		m[s.Name] = s.Kind
		for _, a := range s.Aliases {
			m[a] = s.Kind
		}
	}
	return m
}()

// Specs lists the commands in menu order.
func Specs() []Spec { return append([]Spec(nil), specs...) }

// Parse classifies text. Names match case-insensitively.
func Parse(text string) Command {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return Command{Kind: KindText, Arg: text}
	}
	word, arg, _ := strings.Cut(text[1:], " ")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	word = strings.ToLower(strings.TrimSpace(word))
	arg = strings.TrimSpace(arg)
	if word == "" {
		return Command{Kind: KindText, Arg: text}
	}
	if k, ok := byName[word]; ok {
		return Command{Kind: k, Name: word, Arg: arg}
	}
	return Command{Kind: KindUnknown, Name: word, Arg: arg}
}
