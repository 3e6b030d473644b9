// © 2024 the Pounce Authors under the WTFPL. See AUTHORS for the list of authors.

package bot

import (
	"net/http"
	"regexp"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pouncebot/pounce/bot/msg"
	"github.com/pouncebot/pounce/bot/user"
	"github.com/pouncebot/pounce/config"
)

const (
	_ = iota

	// Startup is triggered once after all plugins are loaded
	Startup
	// Message any standard chat
	Message
	// Reply something containing a message reference
	Reply
	// Action any /me action
	Action
	// Reaction icon reaction if the service supports it
	Reaction
	// Edit message ref'd new message to replace
	Edit
	// Delete removes a message by reference
	Delete
	// Publish crossposts a message to the channel's followers
	Publish
	// DM sends a direct message to a user
	DM
	// Event unclassified connector event
	Event
	// Help is used when the bot help system is triggered
	Help
	// SelfMessage triggers when the bot is sending a message
	SelfMessage
)

type Kind int

type Callback func(Connector, Kind, msg.Message, ...any) bool
type ResponseHandler func(Request) bool

// Request is the payload handed to a handler whose spec matched an event
type Request struct {
	Conn Connector
	Kind Kind
	Msg  msg.Message
	// Values are the named capture groups of the matching regex
	Values RegexValues
	Args   []any
}

type RegexValues map[string]string

type HandlerSpec struct {
	Kind     Kind
	IsCmd    bool
	Regex    *regexp.Regexp
	HelpText string
	Handler  ResponseHandler
}

type HandlerTable []HandlerSpec

type Bot interface {
	Config() *config.Config
	DB() *sqlx.DB
	Who(string) []user.User
	WhoAmI() string
	AddPlugin(Plugin)
	GetPluginNames() []string
	DefaultConnector() Connector

	// Send transmits a message over the given connector
	// The first arg is generally a channel ID, kind-specific after that
	Send(Connector, Kind, ...any) (string, error)
	// Receive runs an inbound event through the handler pipeline,
	// returning true if some handler consumed it
	Receive(Connector, Kind, msg.Message, ...any) bool

	// Register a plugin callback for a kind of event
	Register(Plugin, Kind, Callback)
	// RegisterTable registers a plugin's regex handler specs in order
	RegisterTable(Plugin, HandlerTable)

	RegisterWeb(http.Handler, string)
	RegisterWebName(http.Handler, string, string)

	CheckAdmin(string) bool
	GetEmojiList() map[string]string
	SetQuiet(bool)

	// ListenAndServe starts the bot's HTTP interface
	ListenAndServe()
}

// Perms is the effective capability set of an actor within a channel
type Perms struct {
	Administrator   bool
	ManageRoles     bool
	ManageMessages  bool
	ManageChannels  bool
	ManageNicknames bool
	BanMembers      bool
	KickMembers     bool
	AddReactions    bool
}

// Role is a guild role; Position ranks it, higher outranks lower
type Role struct {
	ID       string
	Name     string
	Position int
}

type Connector interface {
	RegisterEvent(Callback)

	Send(Kind, ...any) (string, error)

	GetEmojiList(custom bool) map[string]string
	Emojy(name string) string

	Serve() error

	Who(channel string) []string
	Profile(id string) (user.User, error)
	GetChannelName(id string) string
	GetChannelID(name string) string

	// Guild directory and moderation surface
	GetRoles(guild string) ([]Role, error)
	MemberRoles(guild, userID string) ([]string, error)
	SetRole(guild, userID, roleID string) error
	UnsetRole(guild, userID, roleID string) error
	Ban(guild, userID, reason string) error
	Kick(guild, userID, reason string) error
	RenameChannel(channelID, name string) error
	Perms(channel, userID string) (Perms, error)
}

// Plugins are marker-only; all wiring happens through Register/RegisterTable
type Plugin any

// ImageAttachment rides along with a Message send
type ImageAttachment struct {
	URL    string
	AltTxt string
	Width  int
	Height int
}

// AllowedMentions controls which mention classes an outgoing message
// may actually ping
type AllowedMentions struct {
	Everyone    bool
	Users       bool
	Roles       bool
	RepliedUser bool
}

// MessageOptions rides along with a Message send to modify delivery
type MessageOptions struct {
	TTS         bool
	Mentions    AllowedMentions
	ReplyTo     string
	DeleteAfter time.Duration
}
