// © 2024 the Pounce Authors under the WTFPL. See AUTHORS for the list of authors.

package msg

import (
	"time"

	"github.com/pouncebot/pounce/bot/user"
)

type Log Messages
type Messages []Message

// Attachment is a file riding along with a message. Text carries any
// machine-extracted contents (OCR or otherwise) the connector was able to
// provide; it is empty when extraction is unavailable.
type Attachment struct {
	Name string
	URL  string
	Text string
}

type Message struct {
	// ID is the service identifier of the message, used for edits,
	// reactions, and deletion
	ID   string
	User *user.User
	// Channel is the service ID of a channel
	Channel string
	// ChannelName is the nice name of a channel
	ChannelName string
	// Guild is the administrative scope the channel lives in
	Guild string
	Body  string
	IsIM  bool
	// IsEdit marks a message replacing an earlier one with the same ID
	IsEdit         bool
	ChannelIsNSFW  bool
	Raw            interface{}
	Command        bool
	Action         bool
	Time           time.Time
	Host           string
	Attachments    []Attachment
	AdditionalData map[string]string
}
