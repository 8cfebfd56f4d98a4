package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
)

func TestMediaFromMessage(t *testing.T) {
	bold := []tgbotapi.MessageEntity{{Type: "bold", Offset: 0, Length: 3}}
	cases := []struct {
		name string
		msg  *tgbotapi.Message
		want Media
		ok   bool
	}{
		{
			name: "photo uses largest size",
			msg: &tgbotapi.Message{
				Photo:           []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}},
				Caption:         "New episode",
				CaptionEntities: bold,
			},
			want: Media{Kind: MediaPhoto, FileID: "large", Text: "New episode", Entities: bold},
			ok:   true,
		},
		{
			name: "video",
			msg:  &tgbotapi.Message{Video: &tgbotapi.Video{FileID: "vid"}},
			want: Media{Kind: MediaVideo, FileID: "vid"},
			ok:   true,
		},
		{
			name: "document",
			msg:  &tgbotapi.Message{Document: &tgbotapi.Document{FileID: "doc"}, Caption: "c"},
			want: Media{Kind: MediaDocument, FileID: "doc", Text: "c"},
			ok:   true,
		},
		{
			name: "text",
			msg:  &tgbotapi.Message{Text: "hello", Entities: bold},
			want: Media{Kind: MediaText, Text: "hello", Entities: bold},
			ok:   true,
		},
		{name: "sticker only", msg: &tgbotapi.Message{Sticker: &tgbotapi.Sticker{FileID: "s"}}},
		{name: "nil"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := MediaFromMessage(tc.msg)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
