package dialog

import (
	"strconv"
	"strings"

	"remindbot/pkg/tgui"
)

// Quick-reply buttons carry "rbot:say:<word>"; the router turns a tap
// back into a text turn. Buttons bound to a reminder carry
// "rbot:act:<word>:<id>".
const (
	CallbackNS  = "rbot"
	CallbackSay = "say"
	CallbackAct = "act"
)

// Render converts r into a sendable message, attaching one button per choice.
func Render(r Reply) tgui.Message {
	b := tgui.New().RawLine(tgui.H(r.Text))
	if len(r.Choices) > 0 {
		btns := make([]tgui.Button, 0, len(r.Choices))
		for _, c := range r.Choices {
			if c == "" {
				continue
			}
			data, err := choiceData(c, r.ReminderID)
			if err != nil {
				continue
			}
			btns = append(btns, tgui.Btn(strings.ToUpper(c[:1])+c[1:], data))
		}
		b.Inline(tgui.NewInline().Split(4, btns...))
	}
	return b.Build()
}

func choiceData(word string, reminderID int64) (string, error) {
	if reminderID > 0 {
		return tgui.Data(CallbackNS, CallbackAct, word+":"+strconv.FormatInt(reminderID, 10))
	}
	return tgui.Data(CallbackNS, CallbackSay, word)
}

// ActionFromCallback extracts the word and reminder id of a bound button.
func ActionFromCallback(data string) (string, int64, bool) {
	ns, action, payload, ok := tgui.ParseData(data)
	if !ok || ns != CallbackNS || action != CallbackAct {
		return "", 0, false
	}
	word, raw, ok := strings.Cut(payload, ":")
	if !ok || word == "" {
		return "", 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return "", 0, false
	}
	return word, id, true
}

// SaidFromCallback extracts the word of a quick-reply button.
func SaidFromCallback(data string) (string, bool) {
	ns, action, word, ok := tgui.ParseData(data)
	if !ok || ns != CallbackNS || action != CallbackSay || word == "" {
		return "", false
	}
	return word, true
}
