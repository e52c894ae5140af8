package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTelegramLink(t *testing.T) {
	tests := []struct {
		name string
		link string
		want LinkInfo
	}{
		{
			name: "public channel",
			link: "https://t.me/somechannel/123",
			want: LinkInfo{Username: "somechannel", MessageID: 123},
		},
		{
			name: "public channel without scheme",
			link: "t.me/somechannel/123",
			want: LinkInfo{Username: "somechannel", MessageID: 123},
		},
		{
			name: "public channel with www",
			link: "https://www.t.me/somechannel/9",
			want: LinkInfo{Username: "somechannel", MessageID: 9},
		},
		{
			name: "private channel",
			link: "https://t.me/c/1234567890/456",
			want: LinkInfo{ChannelID: 1234567890, MessageID: 456, IsPrivate: true},
		},
		{
			name: "surrounding whitespace",
			link: "  https://t.me/c/42/7\n",
			want: LinkInfo{ChannelID: 42, MessageID: 7, IsPrivate: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTelegramLink(tt.link)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseTelegramLinkErrors(t *testing.T) {
	for _, link := range []string{
		"",
		"https://example.com/foo/1",
		"https://t.me/onlyusername",
		"https://t.me/c/notanumber/1",
		"https://t.me/c/123/notanumber",
		"https://t.me/somechannel/notanumber",
	} {
		_, err := ParseTelegramLink(link)
		assert.Error(t, err, "link %q", link)
	}
}
