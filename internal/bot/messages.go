package bot

import (
	"fmt"
	"time"
)

// User-facing replies.
const (
	msgNotAllowed      = "⛔ You're not allowed."
	msgReplyToMedia    = "❗ Reply to a media file."
	msgNoDocument      = "❌ No valid document found."
	msgPosted          = "✅ Posted."
	msgFailedToPost    = "❌ Failed to post."
	msgNotAvailable    = "❌ File not available."
	msgJoinPrompt      = "🔒 Please join the required channels to unlock the file:"
	msgCouldNotSend    = "❌ Could not send file."
	msgInvalidToken    = "❌ Invalid token."
	msgStillNotJoined  = "❗ Still not joined required channels."
	msgSentToDM        = "✅ File sent to your DM."
	msgTryAgain        = "Try Again"
	msgStatsTemplate   = "📊 Users: %d\n📁 Tokens: %d"
	msgStatsFailed     = "❌ Could not load stats."
	autoDeleteTemplate = "⏳ Auto-deleting this file in %s."
)

func autoDeleteNotice(d time.Duration) string {
	return fmt.Sprintf(autoDeleteTemplate, humanDuration(d))
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return plural(int(d.Round(time.Second)/time.Second), "second")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func joinLabel(channel string) string {
	return "Join @" + channel
}
