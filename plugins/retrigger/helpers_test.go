package retrigger

import (
	"context"
	"sync"

	"github.com/pouncebot/pounce/bot"
	"github.com/pouncebot/pounce/bot/msg"
	"github.com/pouncebot/pounce/bot/user"
)

// testConn records every moderation call so tests can assert on exactly
// what a trigger did to the service
type testConn struct {
	perms       map[string]bot.Perms
	permErr     error
	roles       []bot.Role
	memberRoles map[string][]string
	emojis      map[string]string

	mu        sync.Mutex
	reactions []string
	bans      []string
	kicks     []string
	granted   []string
	revoked   []string
	renames   []string
	banErr    error
}

func newTestConn() *testConn {
	return &testConn{
		perms:       map[string]bot.Perms{},
		memberRoles: map[string][]string{},
		emojis:      map[string]string{},
	}
}

func allPerms() bot.Perms {
	return bot.Perms{
		Administrator:  true,
		ManageRoles:    true,
		ManageMessages: true,
		ManageChannels: true,
		BanMembers:     true,
		KickMembers:    true,
		AddReactions:   true,
	}
}

func (c *testConn) RegisterEvent(bot.Callback) {}

func (c *testConn) Send(kind bot.Kind, args ...any) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if kind == bot.Reaction {
		c.reactions = append(c.reactions, args[1].(string))
	}
	return "", nil
}

func (c *testConn) GetEmojiList(bool) map[string]string { return c.emojis }
func (c *testConn) Emojy(name string) string            { return name }
func (c *testConn) Serve() error                        { return nil }
func (c *testConn) Who(string) []string                 { return nil }

func (c *testConn) Profile(id string) (user.User, error) {
	return user.User{ID: id, Name: "user-" + id}, nil
}

func (c *testConn) GetChannelName(id string) string { return id }
func (c *testConn) GetChannelID(name string) string { return name }

func (c *testConn) GetRoles(string) ([]bot.Role, error) { return c.roles, nil }

func (c *testConn) MemberRoles(guild, userID string) ([]string, error) {
	return c.memberRoles[userID], nil
}

func (c *testConn) SetRole(guild, userID, roleID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.granted = append(c.granted, userID+":"+roleID)
	return nil
}

func (c *testConn) UnsetRole(guild, userID, roleID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked = append(c.revoked, userID+":"+roleID)
	return nil
}

func (c *testConn) Ban(guild, userID, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.banErr != nil {
		return c.banErr
	}
	c.bans = append(c.bans, userID)
	return nil
}

func (c *testConn) Kick(guild, userID, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kicks = append(c.kicks, userID)
	return nil
}

func (c *testConn) RenameChannel(channelID, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renames = append(c.renames, channelID+":"+name)
	return nil
}

func (c *testConn) Perms(channel, userID string) (bot.Perms, error) {
	if c.permErr != nil {
		return bot.Perms{}, c.permErr
	}
	return c.perms[userID], nil
}

func testParseCtx(conn *testConn) ParseCtx {
	return ParseCtx{
		Conn:    conn,
		Guild:   "g1",
		Channel: "c1",
		Actor:   &user.User{ID: "actor", Name: "actor"},
		BotID:   "bot",
		Confirm: func(context.Context, string, string, string) (bool, error) {
			return true, nil
		},
	}
}

func testMessage(body string) msg.Message {
	return msg.Message{
		ID:          "m1",
		User:        &user.User{ID: "author", Name: "author"},
		Channel:     "c1",
		ChannelName: "general",
		Guild:       "g1",
		Body:        body,
	}
}
