package tgui

import (
	tele "gopkg.in/telebot.v4"
)

// Inline is a small builder for inline keyboards (ReplyMarkup).
// It stores rows as tele.Row ([]tele.Btn) and applies them via ReplyMarkup.Inline().
type Inline struct {
	rm   *tele.ReplyMarkup
	rows []tele.Row
}

func NewInline() *Inline {
	return &Inline{rm: &tele.ReplyMarkup{}}
}

// Row appends a new row (buttons) to the inline keyboard.
func (i *Inline) Row(btn ...tele.Btn) *Inline {
	i.rows = append(i.rows, i.rm.Row(btn...))
	i.rm.Inline(i.rows...)
	return i
}

// Column appends one row per button.
func (i *Inline) Column(btn ...tele.Btn) *Inline {
	for _, b := range btn {
		i.Row(b)
	}
	return i
}

// Len is the number of rows.
func (i *Inline) Len() int { return len(i.rows) }

// Rows returns the buttons row by row.
func (i *Inline) Rows() [][]tele.Btn {
	out := make([][]tele.Btn, 0, len(i.rows))
	for _, r := range i.rows {
		out = append(out, []tele.Btn(r))
	}
	return out
}

// Markup returns underlying reply markup.
func (i *Inline) Markup() *tele.ReplyMarkup { return i.rm }

// Btn creates a callback button with raw callback_data.
func Btn(text, data string) tele.Btn {
	return tele.Btn{Text: text, Data: data}
}

// URLBtn creates a URL button.
func URLBtn(text, url string) tele.Btn {
	return tele.Btn{Text: text, URL: url}
}
