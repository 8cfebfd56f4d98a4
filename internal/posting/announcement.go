package posting

import (
	"fmt"
	"strings"

	"github.com/p-blackswan/filegate/internal/telegram"
)

// LinksPerRow bounds how many quality buttons share a keyboard row.
const LinksPerRow = 3

// Link is one quality's redemption token.
type Link struct {
	Quality string
	Token   string
}

// Announcement is the public post for one batch.
type Announcement struct {
	Title   string
	Season  string
	Episode string
	Quality string
	Audio   string
	Links   []Link // ascending by quality label

	// GroupID is the upload batch the announcement covers; empty for a single upload.
	GroupID string
}

// Caption renders the post text. The footer line is omitted when poweredBy is empty.
func (a Announcement) Caption(poweredBy string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⬡ %s\n", a.Title)
	b.WriteString("╭━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "‣ Season : %s\n", a.Season)
	fmt.Fprintf(&b, "‣ Episode : %s\n", a.Episode)
	fmt.Fprintf(&b, "‣ Quality : %s\n", a.Quality)
	fmt.Fprintf(&b, "‣ Audio   : %s\n", a.Audio)
	b.WriteString("╰━━━━━━━━━━━━━━━━━━━━━")
	if poweredBy = strings.TrimPrefix(strings.TrimSpace(poweredBy), "@"); poweredBy != "" {
		fmt.Fprintf(&b, "\n⬡ Powered By : @%s", poweredBy)
	}
	return b.String()
}

// Keyboard lays out one deep link per quality, at most LinksPerRow per row.
func (a Announcement) Keyboard(botUsername string) *telegram.Keyboard {
	buttons := make([]telegram.Button, 0, len(a.Links))
	for _, l := range a.Links {
		buttons = append(buttons, telegram.URLButton(l.Quality, DeepLink(botUsername, l.Token)))
	}
	return telegram.Grid(buttons, LinksPerRow)
}

// DeepLink is the t.me start link that redeems token with the bot.
func DeepLink(botUsername, token string) string {
	return "https://t.me/" + strings.TrimPrefix(botUsername, "@") + "?start=" + token
}
