package retrigger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pouncebot/pounce/bot"
)

func TestSplitSpec(t *testing.T) {
	assert.Equal(t, []string{"text", "hello there"}, splitSpec("text;hello there"))
	assert.Equal(t, []string{"delete"}, splitSpec("delete"))
	assert.Equal(t, []string{"text", "a;b"}, splitSpec(`text;a\;b`))
	assert.Equal(t, []string{"react", "👍", "👎"}, splitSpec("react; 👍 ; 👎"))
	assert.Empty(t, splitSpec(";;"))
}

func TestParseText(t *testing.T) {
	conn := newTestConn()
	actions, err := ParseResponse(context.Background(), testParseCtx(conn), "text;hello there")
	require.NoError(t, err)
	assert.Equal(t, []Action{TextAction{Text: "hello there"}}, actions)
}

func TestParseMultipleEntries(t *testing.T) {
	conn := newTestConn()
	conn.perms["actor"] = allPerms()
	conn.perms["bot"] = allPerms()
	actions, err := ParseResponse(context.Background(), testParseCtx(conn),
		"text;begone | delete")
	require.NoError(t, err)
	assert.Equal(t, []Action{TextAction{Text: "begone"}, DeleteAction{}}, actions)
}

func TestParseUnknownKind(t *testing.T) {
	conn := newTestConn()
	_, err := ParseResponse(context.Background(), testParseCtx(conn), "explode;now")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestParseFilterAlias(t *testing.T) {
	conn := newTestConn()
	conn.perms["actor"] = allPerms()
	conn.perms["bot"] = allPerms()
	actions, err := ParseResponse(context.Background(), testParseCtx(conn), "filter")
	require.NoError(t, err)
	assert.Equal(t, []Action{DeleteAction{}}, actions)
}

func TestParseMissingArgs(t *testing.T) {
	conn := newTestConn()
	conn.perms["actor"] = allPerms()
	conn.perms["bot"] = allPerms()
	for _, spec := range []string{"text", "dm", "add_role", "react", "rename", "command"} {
		_, err := ParseResponse(context.Background(), testParseCtx(conn), spec)
		assert.ErrorIs(t, err, ErrMalformedAction, spec)
	}
	// bare moderation kinds are fine without arguments
	for _, spec := range []string{"delete", "ban", "kick"} {
		_, err := ParseResponse(context.Background(), testParseCtx(conn), spec)
		assert.NoError(t, err, spec)
	}
}

func TestParseBotLacksPermission(t *testing.T) {
	conn := newTestConn()
	conn.perms["actor"] = allPerms()
	_, err := ParseResponse(context.Background(), testParseCtx(conn), "ban")
	require.ErrorIs(t, err, ErrInsufficientPermission)
	assert.Contains(t, err.Error(), "I require")
}

func TestParseActorLacksPermission(t *testing.T) {
	conn := newTestConn()
	conn.perms["bot"] = allPerms()
	_, err := ParseResponse(context.Background(), testParseCtx(conn), "ban")
	require.ErrorIs(t, err, ErrInsufficientPermission)
	assert.Contains(t, err.Error(), "you require")
}

func rankedConn() *testConn {
	conn := newTestConn()
	conn.perms["actor"] = allPerms()
	conn.perms["bot"] = allPerms()
	conn.roles = []bot.Role{
		{ID: "1", Name: "Admin", Position: 10},
		{ID: "2", Name: "Moderator", Position: 5},
		{ID: "3", Name: "Member", Position: 1},
	}
	conn.memberRoles["bot"] = []string{"1"}
	conn.memberRoles["actor"] = []string{"1"}
	return conn
}

func TestParseRolesDegrade(t *testing.T) {
	conn := rankedConn()
	// the unresolvable role drops, the good one survives
	actions, err := ParseResponse(context.Background(), testParseCtx(conn),
		"add_role;Moderator;Nonexistent")
	require.NoError(t, err)
	assert.Equal(t, []Action{AddRoleAction{Roles: []string{"2"}}}, actions)
}

func TestParseRolesAllDropped(t *testing.T) {
	conn := rankedConn()
	_, err := ParseResponse(context.Background(), testParseCtx(conn),
		"add_role;Nonexistent")
	assert.ErrorIs(t, err, ErrMalformedAction)
}

func TestParseRoleOutranksBot(t *testing.T) {
	conn := rankedConn()
	conn.memberRoles["bot"] = []string{"3"}
	_, err := ParseResponse(context.Background(), testParseCtx(conn),
		"add_role;Moderator")
	assert.ErrorIs(t, err, ErrMalformedAction)
}

func TestParseRoleOutranksActor(t *testing.T) {
	conn := rankedConn()
	conn.memberRoles["actor"] = []string{"3"}
	_, err := ParseResponse(context.Background(), testParseCtx(conn),
		"remove_role;Moderator")
	assert.ErrorIs(t, err, ErrMalformedAction)
}

func TestParseRoleOwnerBypass(t *testing.T) {
	conn := rankedConn()
	conn.memberRoles["actor"] = []string{"3"}
	pc := testParseCtx(conn)
	pc.GuildOwner = "actor"
	actions, err := ParseResponse(context.Background(), pc, "remove_role;Moderator")
	require.NoError(t, err)
	assert.Equal(t, []Action{RemoveRoleAction{Roles: []string{"2"}}}, actions)
}

func TestParseRoleByMentionAndID(t *testing.T) {
	conn := rankedConn()
	actions, err := ParseResponse(context.Background(), testParseCtx(conn),
		"add_role;<@&2>;3")
	require.NoError(t, err)
	assert.Equal(t, []Action{AddRoleAction{Roles: []string{"2", "3"}}}, actions)
}

func TestParseEmojis(t *testing.T) {
	conn := rankedConn()
	conn.emojis = map[string]string{"99": "partyparrot"}
	actions, err := ParseResponse(context.Background(), testParseCtx(conn),
		"react;<:partyparrot:99>;👍;:partyparrot:;notanemoji")
	require.NoError(t, err)
	assert.Equal(t, []Action{ReactAction{Emojis: []string{
		"partyparrot:99", "👍", "partyparrot:99",
	}}}, actions)
}

func TestParseEmojisAllDropped(t *testing.T) {
	conn := rankedConn()
	_, err := ParseResponse(context.Background(), testParseCtx(conn),
		"react;notanemoji")
	assert.ErrorIs(t, err, ErrMalformedAction)
}

func TestParseMockConfirmed(t *testing.T) {
	conn := newTestConn()
	pc := testParseCtx(conn)
	prompted := false
	pc.Confirm = func(ctx context.Context, channel, userID, prompt string) (bool, error) {
		prompted = true
		assert.Equal(t, "c1", channel)
		assert.Equal(t, "actor", userID)
		return true, nil
	}
	actions, err := ParseResponse(context.Background(), pc, "mock;quote me")
	require.NoError(t, err)
	assert.True(t, prompted)
	assert.Equal(t, []Action{MockAction{Command: "quote me"}}, actions)
}

func TestParseMockDeclined(t *testing.T) {
	conn := newTestConn()
	pc := testParseCtx(conn)
	pc.Confirm = func(context.Context, string, string, string) (bool, error) {
		return false, nil
	}
	_, err := ParseResponse(context.Background(), pc, "mock;quote me")
	assert.ErrorIs(t, err, ErrNotConfirmed)
}

func TestParseMockTimeout(t *testing.T) {
	conn := newTestConn()
	pc := testParseCtx(conn)
	pc.ConfirmWait = 10 * time.Millisecond
	pc.Confirm = func(ctx context.Context, _, _, _ string) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	}
	_, err := ParseResponse(context.Background(), pc, "mock;quote me")
	assert.ErrorIs(t, err, ErrNotConfirmed)
	assert.False(t, errors.Is(err, context.DeadlineExceeded))
}
