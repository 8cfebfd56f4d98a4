package telegram

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// Button is one inline keyboard button. Exactly one of URL or Data is set.
type Button struct {
	Text string
	URL  string
	Data string
}

// URLButton opens a link.
func URLButton(text, url string) Button { return Button{Text: text, URL: url} }

// DataButton sends a callback query carrying data.
func DataButton(text, data string) Button { return Button{Text: text, Data: data} }

// Keyboard is an inline keyboard laid out in rows.
type Keyboard struct {
	Rows [][]Button
}

// Row appends a row of buttons and returns the keyboard for chaining.
func (k *Keyboard) Row(buttons ...Button) *Keyboard {
	if len(buttons) > 0 {
		k.Rows = append(k.Rows, buttons)
	}
	return k
}

// Grid lays buttons out in rows of at most perRow.
func Grid(buttons []Button, perRow int) *Keyboard {
	if perRow <= 0 {
		perRow = 1
	}
	kb := &Keyboard{}
	for start := 0; start < len(buttons); start += perRow {
		end := start + perRow
		if end > len(buttons) {
			end = len(buttons)
		}
		row := make([]Button, end-start)
		copy(row, buttons[start:end])
		kb.Row(row...)
	}
	return kb
}

// Empty reports whether the keyboard has no buttons.
func (k *Keyboard) Empty() bool {
	return k == nil || len(k.Rows) == 0
}

func (k *Keyboard) markup() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(k.Rows))
	for _, r := range k.Rows {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
		for _, b := range r {
			if b.URL != "" {
				row = append(row, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			} else {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
		}
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
