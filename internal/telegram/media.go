package telegram

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// MediaKind names the payload of a re-sendable message.
type MediaKind string

const (
	MediaPhoto    MediaKind = "photo"
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
	MediaText     MediaKind = "text"
)

// Media is the re-sendable content of a message.
type Media struct {
	Kind     MediaKind
	FileID   string
	Text     string // caption for files, body for text
	Entities []tgbotapi.MessageEntity
}

// MediaFromMessage captures a message's content. Photos use the largest size.
// It reports false for messages carrying none of the supported payloads.
func MediaFromMessage(msg *tgbotapi.Message) (Media, bool) {
	if msg == nil {
		return Media{}, false
	}
	switch {
	case len(msg.Photo) > 0:
		return Media{Kind: MediaPhoto, FileID: msg.Photo[len(msg.Photo)-1].FileID, Text: msg.Caption, Entities: msg.CaptionEntities}, true
	case msg.Video != nil:
		return Media{Kind: MediaVideo, FileID: msg.Video.FileID, Text: msg.Caption, Entities: msg.CaptionEntities}, true
	case msg.Document != nil:
		return Media{Kind: MediaDocument, FileID: msg.Document.FileID, Text: msg.Caption, Entities: msg.CaptionEntities}, true
	case msg.Text != "":
		return Media{Kind: MediaText, Text: msg.Text, Entities: msg.Entities}, true
	}
	return Media{}, false
}
