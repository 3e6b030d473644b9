package retrigger

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pouncebot/pounce/bot"
	"github.com/pouncebot/pounce/bot/msg"
	"github.com/pouncebot/pounce/bot/user"
)

// Engine matches inbound messages against a guild's triggers and executes
// the surviving triggers' response actions. Everything here is dispatch
// path: errors are logged and absorbed, never surfaced to the event source.
type Engine struct {
	b         bot.Bot
	store     *Store
	cooldowns *cooldowns

	// roll returns a draw in [1,100]; swapped out by tests
	roll func() int
}

func NewEngine(b bot.Bot, store *Store) *Engine {
	return &Engine{
		b:         b,
		store:     store,
		cooldowns: newCooldowns(),
		roll:      func() int { return rand.Intn(100) + 1 },
	}
}

// Dispatch runs one message event against every trigger in its guild.
// Every matching trigger fires independently; their pipelines run
// concurrently and Dispatch waits for all of them.
func (e *Engine) Dispatch(conn bot.Connector, m msg.Message) {
	if m.User == nil || m.User.Name == e.b.WhoAmI() {
		return
	}
	triggers, err := e.store.All(m.Guild)
	if err != nil {
		log.Error().Err(err).Str("guild", m.Guild).Msg("could not load triggers")
		return
	}
	var wg sync.WaitGroup
	for _, t := range triggers {
		if !e.eligible(t, m) {
			continue
		}
		matched, found := e.matches(t, m)
		if !matched {
			continue
		}
		wg.Add(1)
		go func(t *Trigger) {
			defer wg.Done()
			e.fire(conn, t, m, found)
		}(t)
	}
	wg.Wait()
}

// eligible applies the global gates that keep a trigger out of the
// candidate set regardless of its pattern
func (e *Engine) eligible(t *Trigger, m msg.Message) bool {
	if !t.Enabled {
		return false
	}
	if m.Command && t.IgnoreCommands {
		return false
	}
	if m.IsEdit && !t.CheckEdits {
		return false
	}
	if t.NSFW && !m.ChannelIsNSFW {
		return false
	}
	return true
}

// matches tests the pattern against the message body, and optionally
// against attachment filenames and extracted attachment text. A blown
// evaluation budget counts as no match.
func (e *Engine) matches(t *Trigger, m msg.Message) (bool, string) {
	haystacks := []string{m.Body}
	for _, a := range m.Attachments {
		if t.ReadFilenames && a.Name != "" {
			haystacks = append(haystacks, a.Name)
		}
		if t.OCRSearch && a.Text != "" {
			haystacks = append(haystacks, a.Text)
		}
	}
	for _, h := range haystacks {
		ok, found, err := t.Pattern.Find(h)
		if err != nil {
			log.Warn().Err(err).Str("trigger", t.Name).Msg("pattern evaluation timed out")
			return false, ""
		}
		if ok {
			return true, found
		}
	}
	return false, ""
}

// fire runs the filter chain and, if the trigger survives, executes its
// actions in order with per-action failure isolation.
func (e *Engine) fire(conn bot.Connector, t *Trigger, m msg.Message, found string) {
	if e.blocked(conn, t, m) {
		return
	}
	if !e.cooldowns.allow(m.Guild, t, m) {
		return
	}
	if e.roll() > t.Chance {
		return
	}

	fired := false
	for _, a := range t.Actions {
		if err := e.execute(conn, t, a, m, found); err != nil {
			log.Error().Err(err).
				Str("trigger", t.Name).
				Str("kind", string(a.Kind())).
				Msg("action failed")
			continue
		}
		fired = true
	}

	if fired {
		e.cooldowns.record(m.Guild, t, m)
		e.bump(m.Guild, t)
	}
}

// blocked applies the blacklist then the whitelist. List entries may be
// channel, user, or role ids.
func (e *Engine) blocked(conn bot.Connector, t *Trigger, m msg.Message) bool {
	if len(t.Blacklist) == 0 && len(t.Whitelist) == 0 {
		return false
	}
	roles := e.authorRoles(conn, m)
	if len(t.Blacklist) > 0 && hitsList(t.Blacklist, m, roles) {
		return true
	}
	if len(t.Whitelist) > 0 && !hitsList(t.Whitelist, m, roles) {
		return true
	}
	return false
}

func (e *Engine) authorRoles(conn bot.Connector, m msg.Message) []string {
	if m.User == nil {
		return nil
	}
	roles, err := conn.MemberRoles(m.Guild, m.User.ID)
	if err != nil {
		log.Warn().Err(err).Msg("could not fetch author roles")
		return nil
	}
	return roles
}

func hitsList(list []string, m msg.Message, roles []string) bool {
	for _, entry := range list {
		if entry == m.Channel {
			return true
		}
		if m.User != nil && entry == m.User.ID {
			return true
		}
		for _, r := range roles {
			if entry == r {
				return true
			}
		}
	}
	return false
}

// bump increments the fire counter under the trigger's single-writer lock,
// re-reading the stored document so concurrent events don't lose updates
func (e *Engine) bump(guild string, t *Trigger) {
	unlock := e.store.Lock(guild, t.Name)
	defer unlock()
	fresh, err := e.store.Get(guild, t.Name)
	if err != nil {
		log.Error().Err(err).Str("trigger", t.Name).Msg("could not reload trigger")
		return
	}
	if fresh == nil {
		// removed mid-dispatch; nothing to count against
		return
	}
	fresh.Count++
	t.Count = fresh.Count
	if err := e.store.Put(guild, fresh); err != nil {
		log.Error().Err(err).Str("trigger", t.Name).Msg("could not persist count")
	}
}

// execute performs one response action against the service
func (e *Engine) execute(conn bot.Connector, t *Trigger, a Action, m msg.Message, found string) error {
	switch a := a.(type) {
	case TextAction:
		_, err := e.b.Send(conn, bot.Message, m.Channel, e.render(pick(t.Text, a.Text), t, m, found), e.sendOpts(t, m))
		return err
	case DMAction:
		_, err := e.b.Send(conn, bot.DM, m.User.ID, e.render(pick(t.Text, a.Text), t, m, found))
		return err
	case DMAuthorAction:
		_, err := e.b.Send(conn, bot.DM, t.Author, e.render(pick(t.Text, a.Text), t, m, found))
		return err
	case DeleteAction:
		if t.OCRSearch && found != "" && found != m.Body {
			// surface what the attachment matched before removing it
			e.b.Send(conn, bot.Message, m.Channel,
				fmt.Sprintf("Deleted message matching `%s`", found))
		}
		_, err := e.b.Send(conn, bot.Delete, m.Channel, m.ID)
		return err
	case BanAction:
		return conn.Ban(m.Guild, m.User.ID, "Triggered by "+t.Name)
	case KickAction:
		return conn.Kick(m.Guild, m.User.ID, "Triggered by "+t.Name)
	case AddRoleAction:
		return eachRole(a.Roles, func(r string) error {
			return conn.SetRole(m.Guild, m.User.ID, r)
		})
	case RemoveRoleAction:
		return eachRole(a.Roles, func(r string) error {
			return conn.UnsetRole(m.Guild, m.User.ID, r)
		})
	case ReactAction:
		var firstErr error
		for _, emoji := range a.Emojis {
			if _, err := e.b.Send(conn, bot.Reaction, m.Channel, emoji, m); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	case RenameAction:
		return conn.RenameChannel(m.Channel, e.render(a.Name, t, m, found))
	case PublishAction:
		_, err := e.b.Send(conn, bot.Publish, m.Channel, m.ID)
		return err
	case CommandAction:
		cmd := m
		cmd.Body = e.render(a.Command, t, m, found)
		cmd.Command = true
		e.b.Receive(conn, bot.Message, cmd)
		return nil
	case MockAction:
		author, err := conn.Profile(t.Author)
		if err != nil {
			return err
		}
		cmd := m
		cmd.User = &user.User{ID: author.ID, Name: author.Name}
		cmd.Body = e.render(a.Command, t, m, found)
		cmd.Command = true
		e.b.Receive(conn, bot.Message, cmd)
		return nil
	}
	return fmt.Errorf("`%s` %w", a.Kind(), ErrUnknownAction)
}

func eachRole(roles []string, f func(string) error) error {
	var firstErr error
	for _, r := range roles {
		if err := f(r); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (e *Engine) sendOpts(t *Trigger, m msg.Message) bot.MessageOptions {
	opts := bot.MessageOptions{
		TTS:      t.TTS,
		Mentions: t.AllowedMentions(),
	}
	if t.Reply {
		opts.ReplyTo = m.ID
	}
	if t.DeleteAfter > 0 {
		opts.DeleteAfter = time.Duration(t.DeleteAfter) * time.Second
	}
	return opts
}

// pick chooses a response body: one uniformly-random entry when the
// trigger carries a list payload, the action's own text otherwise
func pick(payload []string, fallback string) string {
	if len(payload) == 0 {
		return fallback
	}
	return payload[rand.Intn(len(payload))]
}

// render fills the template variables a response body may carry
func (e *Engine) render(body string, t *Trigger, m msg.Message, found string) string {
	name := ""
	id := ""
	if m.User != nil {
		name = m.User.Name
		id = m.User.ID
	}
	r := strings.NewReplacer(
		"{user}", name,
		"{user_id}", id,
		"{channel}", m.ChannelName,
		"{message}", m.Body,
		"{matched}", found,
		"{count}", strconv.Itoa(t.Count),
	)
	return r.Replace(body)
}
