package retrigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pouncebot/pounce/bot"
)

func newTestPlugin(t *testing.T) (*ReTriggerPlugin, *bot.MockBot, *testConn) {
	t.Helper()
	mb := bot.NewMockBot()
	mb.Admins = []string{"actor"}
	p := New(mb)
	conn := newTestConn()
	// the bot's own id is unset in tests, so its perms come from the
	// empty-id entry
	conn.perms[""] = allPerms()
	conn.perms["actor"] = allPerms()
	return p, mb, conn
}

func command(body string) bot.Request {
	m := testMessage(body)
	m.User.ID = "actor"
	m.User.Name = "actor"
	m.Command = true
	return bot.Request{Msg: m}
}

func receive(mb *bot.MockBot, conn *testConn, r bot.Request) bool {
	return mb.Receive(conn, bot.Message, r.Msg)
}

func TestAddCommand(t *testing.T) {
	p, mb, conn := newTestPlugin(t)

	require.True(t, receive(mb, conn, command(`retrigger add hi "hello" howdy friend`)))
	assert.Contains(t, mb.Messages, "Trigger `hi` created.")

	tr, err := p.store.Get("g1", "hi")
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, []Action{TextAction{Text: "howdy friend"}}, tr.Actions)

	// the trigger now fires on plain chatter
	receive(mb, conn, bot.Request{Msg: testMessage("well hello there")})
	assert.Contains(t, mb.Messages, "howdy friend")
}

func TestAddTextWithSpecSyntax(t *testing.T) {
	p, mb, conn := newTestPlugin(t)

	receive(mb, conn, command(`retrigger add either "trigger" say either|or; maybe both`))
	assert.Contains(t, mb.Messages, "Trigger `either` created.")

	tr, err := p.store.Get("g1", "either")
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, []Action{TextAction{Text: "say either|or; maybe both"}}, tr.Actions)
}

func TestAddDuplicate(t *testing.T) {
	_, mb, conn := newTestPlugin(t)
	receive(mb, conn, command(`retrigger add hi "hello" howdy`))
	receive(mb, conn, command(`retrigger add hi "hiya" howdy`))
	assert.Contains(t, mb.Messages, "Trigger `hi` already exists.")
}

func TestAddBadPattern(t *testing.T) {
	p, mb, conn := newTestPlugin(t)
	receive(mb, conn, command(`retrigger add bad "(unclosed" howdy`))
	require.NotEmpty(t, mb.Messages)
	assert.Contains(t, mb.Messages[len(mb.Messages)-1], "invalid regex")

	tr, _ := p.store.Get("g1", "bad")
	assert.Nil(t, tr)
}

func TestAddNotAuthorized(t *testing.T) {
	p, mb, conn := newTestPlugin(t)
	mb.Admins = nil
	conn.perms["actor"] = bot.Perms{}

	receive(mb, conn, command(`retrigger add hi "hello" howdy`))
	assert.Contains(t, mb.Messages, "You are not authorized to do that.")

	tr, _ := p.store.Get("g1", "hi")
	assert.Nil(t, tr)
}

func TestFilterCommand(t *testing.T) {
	_, mb, conn := newTestPlugin(t)

	receive(mb, conn, command(`retrigger filter nospam "\bspam\b"`))
	assert.Contains(t, mb.Messages, "Trigger `nospam` created.")

	receive(mb, conn, bot.Request{Msg: testMessage("free spam here")})
	assert.Equal(t, []string{"m1"}, mb.Deletes)
}

func TestMultiCommand(t *testing.T) {
	p, mb, conn := newTestPlugin(t)

	receive(mb, conn, command(`retrigger multi warn "spam" text;stop | delete`))
	assert.Contains(t, mb.Messages, "Trigger `warn` created.")

	tr, err := p.store.Get("g1", "warn")
	require.NoError(t, err)
	assert.Equal(t, []Action{TextAction{Text: "stop"}, DeleteAction{}}, tr.Actions)
}

func TestMultiPermissionDenied(t *testing.T) {
	p, mb, conn := newTestPlugin(t)
	conn.perms["actor"] = bot.Perms{Administrator: true}

	receive(mb, conn, command(`retrigger multi hammer "spam" ban`))
	require.NotEmpty(t, mb.Messages)
	assert.Contains(t, mb.Messages[len(mb.Messages)-1], "you require")

	tr, _ := p.store.Get("g1", "hammer")
	assert.Nil(t, tr)
}

func TestRemoveCommand(t *testing.T) {
	p, mb, conn := newTestPlugin(t)
	receive(mb, conn, command(`retrigger add hi "hello" howdy`))

	receive(mb, conn, command(`retrigger remove hi`))
	assert.Contains(t, mb.Messages, "Trigger `hi` removed.")

	tr, _ := p.store.Get("g1", "hi")
	assert.Nil(t, tr)

	receive(mb, conn, command(`retrigger remove hi`))
	assert.Contains(t, mb.Messages, "Trigger `hi` doesn't exist.")
}

func TestToggleCommands(t *testing.T) {
	p, mb, conn := newTestPlugin(t)
	receive(mb, conn, command(`retrigger add hi "hello" howdy`))

	receive(mb, conn, command(`retrigger disable hi`))
	tr, _ := p.store.Get("g1", "hi")
	assert.False(t, tr.Enabled)

	receive(mb, conn, command(`retrigger enable hi`))
	tr, _ = p.store.Get("g1", "hi")
	assert.True(t, tr.Enabled)

	receive(mb, conn, command(`retrigger toggle hi`))
	tr, _ = p.store.Get("g1", "hi")
	assert.False(t, tr.Enabled)
	assert.Contains(t, mb.Messages, "Trigger `hi` is disabled.")
}

func TestListCommand(t *testing.T) {
	_, mb, conn := newTestPlugin(t)
	receive(mb, conn, command(`retrigger list`))
	assert.Contains(t, mb.Messages, "There are no triggers here.")

	receive(mb, conn, command(`retrigger add hi "hello" howdy`))
	receive(mb, conn, command(`retrigger list`))
	last := mb.Messages[len(mb.Messages)-1]
	assert.Contains(t, last, "`hi`")
	assert.Contains(t, last, "hello")
}

func TestChanceCommand(t *testing.T) {
	p, mb, conn := newTestPlugin(t)
	receive(mb, conn, command(`retrigger add hi "hello" howdy`))

	receive(mb, conn, command(`retrigger chance hi 40`))
	tr, _ := p.store.Get("g1", "hi")
	assert.Equal(t, 40, tr.Chance)

	// out-of-range values clamp rather than fail
	receive(mb, conn, command(`retrigger chance hi 300`))
	tr, _ = p.store.Get("g1", "hi")
	assert.Equal(t, 100, tr.Chance)
}

func TestCooldownCommand(t *testing.T) {
	p, mb, conn := newTestPlugin(t)
	receive(mb, conn, command(`retrigger add hi "hello" howdy`))

	receive(mb, conn, command(`retrigger cooldown hi 60 channel`))
	tr, _ := p.store.Get("g1", "hi")
	assert.Equal(t, Cooldown{Seconds: 60, Rate: 1, Style: "channel"}, tr.Cooldown)

	receive(mb, conn, command(`retrigger cooldown hi 0`))
	tr, _ = p.store.Get("g1", "hi")
	assert.True(t, tr.Cooldown.Zero())
}

func TestListModCommands(t *testing.T) {
	p, mb, conn := newTestPlugin(t)
	receive(mb, conn, command(`retrigger add hi "hello" howdy`))

	receive(mb, conn, command(`retrigger blocklist add hi u1 u2`))
	tr, _ := p.store.Get("g1", "hi")
	assert.Equal(t, []string{"u1", "u2"}, tr.Blacklist)

	receive(mb, conn, command(`retrigger blocklist remove hi u1`))
	tr, _ = p.store.Get("g1", "hi")
	assert.Equal(t, []string{"u2"}, tr.Blacklist)

	receive(mb, conn, command(`retrigger allowlist add hi c9`))
	tr, _ = p.store.Get("g1", "hi")
	assert.Equal(t, []string{"c9"}, tr.Whitelist)
}

func TestSetCommand(t *testing.T) {
	p, mb, conn := newTestPlugin(t)
	receive(mb, conn, command(`retrigger add hi "hello" howdy`))

	receive(mb, conn, command(`retrigger set hi edits on`))
	tr, _ := p.store.Get("g1", "hi")
	assert.True(t, tr.CheckEdits)

	receive(mb, conn, command(`retrigger set hi edits off`))
	tr, _ = p.store.Get("g1", "hi")
	assert.False(t, tr.CheckEdits)

	receive(mb, conn, command(`retrigger set hi delete_after 30`))
	tr, _ = p.store.Get("g1", "hi")
	assert.Equal(t, 30, tr.DeleteAfter)

	receive(mb, conn, command(`retrigger set hi bogus on`))
	assert.Contains(t, mb.Messages, "I don't know the flag `bogus`")
}

func TestMockConfirmAccepted(t *testing.T) {
	p, mb, conn := newTestPlugin(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		receive(mb, conn, command(`retrigger multi echo "hello" mock;say hi`))
	}()

	require.Eventually(t, func() bool {
		return p.confirms.waiting("c1", "actor")
	}, time.Second, 5*time.Millisecond)

	yes := testMessage("yes")
	yes.User.ID = "actor"
	mb.Receive(conn, bot.Message, yes)
	<-done

	tr, err := p.store.Get("g1", "echo")
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, []Action{MockAction{Command: "say hi"}}, tr.Actions)
}

func TestMockConfirmDeclined(t *testing.T) {
	p, mb, conn := newTestPlugin(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		receive(mb, conn, command(`retrigger multi echo "hello" mock;say hi`))
	}()

	require.Eventually(t, func() bool {
		return p.confirms.waiting("c1", "actor")
	}, time.Second, 5*time.Millisecond)

	no := testMessage("no")
	no.User.ID = "actor"
	mb.Receive(conn, bot.Message, no)
	<-done

	assert.Contains(t, mb.Messages, "not creating trigger")
	tr, _ := p.store.Get("g1", "echo")
	assert.Nil(t, tr)
}

func TestCommandReinjection(t *testing.T) {
	p, mb, conn := newTestPlugin(t)
	receive(mb, conn, command(`retrigger multi echo "hello" command;retrigger list`))
	require.NotNil(t, p)

	receive(mb, conn, bot.Request{Msg: testMessage("hello there")})
	last := mb.Messages[len(mb.Messages)-1]
	assert.Contains(t, last, "`echo`")
}
