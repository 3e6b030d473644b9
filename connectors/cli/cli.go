package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pouncebot/pounce/bot"
	"github.com/pouncebot/pounce/bot/msg"
	"github.com/pouncebot/pounce/bot/user"
	"github.com/pouncebot/pounce/config"
)

// Cli is a stdin/stdout connector for running the bot locally. Every
// moderation operation succeeds and is merely printed, which also makes
// this the connector of choice for poking at plugins without a server.
type Cli struct {
	config *config.Config
	in     io.Reader

	event bot.Callback
}

func New(config *config.Config) *Cli {
	return &Cli{config: config, in: os.Stdin}
}

func (c *Cli) RegisterEvent(cb bot.Callback) {
	c.event = cb
}

func (c *Cli) Send(kind bot.Kind, args ...any) (string, error) {
	switch kind {
	case bot.Message, bot.Action, bot.Reply:
		fmt.Printf("%s: %s\n", c.config.Get("nick", "pounce"), args[1])
	case bot.Reaction:
		fmt.Printf("* reacts %s\n", args[1])
	case bot.Edit:
		fmt.Printf("* edits %s: %s\n", args[2], args[1])
	case bot.Delete:
		fmt.Printf("* deletes %s\n", args[1])
	case bot.Publish:
		fmt.Printf("* publishes %s\n", args[1])
	case bot.DM:
		fmt.Printf("%s -> %s: %s\n", c.config.Get("nick", "pounce"), args[0], args[1])
	default:
		log.Debug().Msgf("cli.Send: unhandled kind %v", kind)
	}
	return uuid.NewString(), nil
}

func (c *Cli) GetEmojiList(bool) map[string]string { return map[string]string{} }
func (c *Cli) Emojy(name string) string            { return name }

// Serve reads lines from stdin and feeds them through the bot until EOF.
// Handlers get their own goroutine: some block waiting on a later line
// (the trigger confirmation prompt), and a synchronous delivery would
// stall the loop that carries the answer.
func (c *Cli) Serve() error {
	nick := c.config.Get("cli.user", "operator")
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		body := scanner.Text()
		if body == "" {
			continue
		}
		isCmd, body := bot.IsCmd(c.config, body)
		m := msg.Message{
			ID:      uuid.NewString(),
			User:    &user.User{ID: nick, Name: nick},
			Channel: "cli",
			Guild:   "cli",
			Body:    body,
			Command: isCmd,
			Time:    time.Now(),
		}
		go c.event(c, bot.Message, m)
	}
	return scanner.Err()
}

func (c *Cli) Who(channel string) []string { return []string{} }
func (c *Cli) Profile(id string) (user.User, error) {
	return user.User{ID: id, Name: id}, nil
}
func (c *Cli) GetChannelName(id string) string { return id }
func (c *Cli) GetChannelID(name string) string { return name }

func (c *Cli) GetRoles(guild string) ([]bot.Role, error)          { return []bot.Role{}, nil }
func (c *Cli) MemberRoles(guild, userID string) ([]string, error) { return []string{}, nil }

func (c *Cli) SetRole(guild, userID, roleID string) error {
	fmt.Printf("* grants %s role %s\n", userID, roleID)
	return nil
}

func (c *Cli) UnsetRole(guild, userID, roleID string) error {
	fmt.Printf("* revokes %s role %s\n", userID, roleID)
	return nil
}

func (c *Cli) Ban(guild, userID, reason string) error {
	fmt.Printf("* bans %s (%s)\n", userID, reason)
	return nil
}

func (c *Cli) Kick(guild, userID, reason string) error {
	fmt.Printf("* kicks %s (%s)\n", userID, reason)
	return nil
}

func (c *Cli) RenameChannel(channelID, name string) error {
	fmt.Printf("* renames %s to %s\n", channelID, name)
	return nil
}

// Perms grants everything; the cli operator is the server owner
func (c *Cli) Perms(channel, userID string) (bot.Perms, error) {
	return bot.Perms{
		Administrator:   true,
		ManageRoles:     true,
		ManageMessages:  true,
		ManageChannels:  true,
		ManageNicknames: true,
		BanMembers:      true,
		KickMembers:     true,
		AddReactions:    true,
	}, nil
}
