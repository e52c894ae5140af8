package telegram

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// LinkInfo holds parsed Telegram message link information.
type LinkInfo struct {
	ChannelID int64
	Username  string
	MessageID int
	IsPrivate bool
}

// ParseTelegramLink extracts the channel (or username) and message ID from
// the t.me link formats Telegram hands out via "Copy Message Link".
func ParseTelegramLink(link string) (*LinkInfo, error) {
	link = strings.TrimSpace(link)
	link = strings.TrimPrefix(link, "https://")
	link = strings.TrimPrefix(link, "http://")
	link = strings.TrimPrefix(link, "www.")

	// Private channel format: t.me/c/CHANNEL_ID/MESSAGE_ID
	if strings.Contains(link, "/c/") {
		parts := strings.Split(link, "/")
		for i, part := range parts {
			if part == "c" && i+2 < len(parts) {
				channelID, err := strconv.ParseInt(parts[i+1], 10, 64)
				if err != nil {
					return nil, errors.Wrap(err, "invalid channel ID")
				}
				messageID, err := strconv.Atoi(parts[i+2])
				if err != nil {
					return nil, errors.Wrap(err, "invalid message ID")
				}
				return &LinkInfo{
					ChannelID: channelID,
					MessageID: messageID,
					IsPrivate: true,
				}, nil
			}
		}
	}

	// Public channel format: t.me/USERNAME/MESSAGE_ID
	if strings.HasPrefix(link, "t.me/") {
		parts := strings.Split(link, "/")
		if len(parts) >= 3 {
			username := parts[1]
			messageID, err := strconv.Atoi(parts[2])
			if err != nil {
				return nil, errors.Wrap(err, "invalid message ID")
			}
			return &LinkInfo{
				Username:  username,
				MessageID: messageID,
				IsPrivate: false,
			}, nil
		}
	}

	return nil, errors.Errorf("unsupported link format: %s (use https://t.me/c/CHANNEL_ID/MSG_ID or https://t.me/USERNAME/MSG_ID)", link)
}
