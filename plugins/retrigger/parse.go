package retrigger

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/forPelevin/gomoji"
	"github.com/rs/zerolog/log"

	"github.com/pouncebot/pounce/bot"
	"github.com/pouncebot/pounce/bot/user"
)

// ConfirmFunc presents a yes/no choice to a user and resolves to their
// answer, or errors when ctx expires first.
type ConfirmFunc func(ctx context.Context, channel, userID, prompt string) (bool, error)

// ParseCtx carries the invoking actor's context through response parsing.
// Permission preconditions are checked against both the actor and the bot,
// so a trigger can never do something its creator could not.
type ParseCtx struct {
	Conn    bot.Connector
	Guild   string
	Channel string
	Actor   *user.User
	// BotID is the bot's own user id on the service, for the role rank check
	BotID string
	// GuildOwner bypasses the actor-side rank check, as owners outrank
	// every role
	GuildOwner string
	Confirm    ConfirmFunc
	// ConfirmWait bounds the mock confirmation step
	ConfirmWait time.Duration
}

var roleMention = regexp.MustCompile(`^<@&([0-9]+)>$`)
var customEmoji = regexp.MustCompile(`^<a?:[a-zA-Z0-9_]+:([0-9]+)>$`)

// capability names one required permission and how to read it off a Perms
type capability struct {
	name string
	has  func(bot.Perms) bool
}

var needs = map[ResponseKind]capability{
	AddRole:    {"Manage Roles", func(p bot.Perms) bool { return p.ManageRoles }},
	RemoveRole: {"Manage Roles", func(p bot.Perms) bool { return p.ManageRoles }},
	Delete:     {"Manage Messages", func(p bot.Perms) bool { return p.ManageMessages }},
	Publish:    {"Manage Messages", func(p bot.Perms) bool { return p.ManageMessages }},
	Ban:        {"Ban Members", func(p bot.Perms) bool { return p.BanMembers }},
	Kick:       {"Kick Members", func(p bot.Perms) bool { return p.KickMembers }},
	React:      {"Add Reactions", func(p bot.Perms) bool { return p.AddReactions }},
	Rename:     {"Manage Channels", func(p bot.Perms) bool { return p.ManageChannels }},
}

// splitOn splits on an unescaped separator; a backslash escapes the
// separator into the field and is otherwise kept literal.
func splitOn(s string, sep rune) []string {
	fields := []string{}
	var cur strings.Builder
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			if r != sep {
				cur.WriteRune('\\')
			}
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == sep:
			fields = append(fields, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if escaped {
		cur.WriteRune('\\')
	}
	fields = append(fields, strings.TrimSpace(cur.String()))
	out := []string{}
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// splitSpec splits a response entry on unescaped semicolons; `\;` puts a
// literal semicolon into a field.
func splitSpec(spec string) []string {
	return splitOn(spec, ';')
}

// ParseResponse parses a response spec into the executable action list for
// one trigger. `|` separates entries; each entry is a semicolon-delimited
// kind and arguments. Role and emoji references that fail to resolve are
// dropped with a log, not a failure; an entry only fails outright when
// nothing valid remains.
func ParseResponse(ctx context.Context, pc ParseCtx, spec string) ([]Action, error) {
	entries := splitOn(spec, '|')
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedAction)
	}
	out := []Action{}
	for _, entry := range entries {
		a, err := parseEntry(ctx, pc, entry)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func parseEntry(ctx context.Context, pc ParseCtx, entry string) (Action, error) {
	fields := splitSpec(entry)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedAction)
	}
	kind := ResponseKind(fields[0])
	if !validKinds[kind] {
		return nil, fmt.Errorf("`%s` %w", fields[0], ErrUnknownAction)
	}
	if kind == Filter {
		kind = Delete
	}
	args := fields[1:]
	if len(args) == 0 && !bareKinds[kind] {
		return nil, fmt.Errorf("%w: `%s` needs an argument", ErrMalformedAction, kind)
	}

	if err := pc.checkPerms(kind); err != nil {
		return nil, err
	}

	if kind == Mock {
		if err := pc.confirmMock(ctx); err != nil {
			return nil, err
		}
	}

	switch kind {
	case AddRole, RemoveRole:
		roles, err := pc.resolveRoles(args)
		if err != nil {
			return nil, err
		}
		args = roles
	case React:
		emojis, err := pc.resolveEmojis(args)
		if err != nil {
			return nil, err
		}
		args = emojis
	}

	return newAction(kind, args)
}

func (pc ParseCtx) checkPerms(kind ResponseKind) error {
	need, ok := needs[kind]
	if !ok {
		return nil
	}
	mine, err := pc.Conn.Perms(pc.Channel, pc.BotID)
	if err != nil {
		return err
	}
	if !need.has(mine) {
		return fmt.Errorf("%w: I require %q to use that", ErrInsufficientPermission, need.name)
	}
	theirs, err := pc.Conn.Perms(pc.Channel, pc.Actor.ID)
	if err != nil {
		return err
	}
	if !need.has(theirs) {
		return fmt.Errorf("%w: you require %q to use that", ErrInsufficientPermission, need.name)
	}
	return nil
}

func (pc ParseCtx) confirmMock(ctx context.Context) error {
	wait := pc.ConfirmWait
	if wait <= 0 {
		wait = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	ok, err := pc.Confirm(ctx, pc.Channel, pc.Actor.ID,
		"Mock responses let anyone who fires this trigger run a command as you. Are you sure? (yes/no)")
	if err != nil || !ok {
		return ErrNotConfirmed
	}
	return nil
}

// topRole returns the highest role position a member holds; members with
// no roles sit at the @everyone baseline of zero
func (pc ParseCtx) topRole(userID string, byID map[string]bot.Role) int {
	top := 0
	ids, err := pc.Conn.MemberRoles(pc.Guild, userID)
	if err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("could not fetch member roles")
		return 0
	}
	for _, id := range ids {
		if r, ok := byID[id]; ok && r.Position > top {
			top = r.Position
		}
	}
	return top
}

// resolveRoles maps role references (id, mention, or name) to role ids,
// keeping only roles ranked strictly below both the bot's and the actor's
// top role. The guild owner bypasses the actor-side check.
func (pc ParseCtx) resolveRoles(args []string) ([]string, error) {
	all, err := pc.Conn.GetRoles(pc.Guild)
	if err != nil {
		return nil, err
	}
	byID := map[string]bot.Role{}
	for _, r := range all {
		byID[r.ID] = r
	}

	botTop := pc.topRole(pc.BotID, byID)
	actorTop := pc.topRole(pc.Actor.ID, byID)
	isOwner := pc.GuildOwner != "" && pc.Actor.ID == pc.GuildOwner

	good := []string{}
	for _, arg := range args {
		role, ok := findRole(all, arg)
		if !ok {
			log.Error().Msgf("Role `%s` not found.", arg)
			continue
		}
		if role.Position >= botTop {
			log.Error().Msgf("Role `%s` outranks me.", role.Name)
			continue
		}
		if !isOwner && role.Position >= actorTop {
			log.Error().Msgf("Role `%s` outranks its author.", role.Name)
			continue
		}
		good = append(good, role.ID)
	}
	if len(good) == 0 {
		return nil, fmt.Errorf("%w: no usable roles", ErrMalformedAction)
	}
	return good, nil
}

func findRole(roles []bot.Role, arg string) (bot.Role, bool) {
	if m := roleMention.FindStringSubmatch(arg); m != nil {
		arg = m[1]
	}
	for _, r := range roles {
		if r.ID == arg {
			return r, true
		}
	}
	for _, r := range roles {
		if strings.EqualFold(r.Name, arg) {
			return r, true
		}
	}
	return bot.Role{}, false
}

// resolveEmojis keeps custom emoji the connector knows about (guild cache
// first, then a name lookup) and literal unicode emoji; anything else is
// dropped with a log.
func (pc ParseCtx) resolveEmojis(args []string) ([]string, error) {
	custom := pc.Conn.GetEmojiList(true)
	good := []string{}
	for _, arg := range args {
		if m := customEmoji.FindStringSubmatch(arg); m != nil {
			if name, ok := custom[m[1]]; ok {
				good = append(good, name+":"+m[1])
				continue
			}
			log.Error().Msgf("Emoji `%s` not found.", arg)
			continue
		}
		if name := strings.Trim(arg, ":"); name != arg {
			if ref := pc.lookupEmojyName(custom, name); ref != "" {
				good = append(good, ref)
				continue
			}
			log.Error().Msgf("Emoji `%s` not found.", arg)
			continue
		}
		if gomoji.ContainsEmoji(arg) {
			good = append(good, arg)
			continue
		}
		log.Error().Msgf("Emoji `%s` not found.", arg)
	}
	if len(good) == 0 {
		return nil, fmt.Errorf("%w: no usable emoji", ErrMalformedAction)
	}
	return good, nil
}

func (pc ParseCtx) lookupEmojyName(custom map[string]string, name string) string {
	for id, n := range custom {
		if n == name {
			return n + ":" + id
		}
	}
	return ""
}
