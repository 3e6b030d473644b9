package retrigger

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pouncebot/pounce/bot"
	"github.com/pouncebot/pounce/bot/msg"
	"github.com/pouncebot/pounce/config"
)

// ReTriggerPlugin lets users bind regex patterns to response actions.
// Every message in a guild is tested against the guild's triggers; the
// matching ones fire their actions.
type ReTriggerPlugin struct {
	b      bot.Bot
	c      *config.Config
	store  *Store
	engine *Engine

	confirms *confirmWaiter
	budget   time.Duration
}

var (
	addRegex      = regexp.MustCompile(`(?i)^retrigger add (?P<name>\S+) "(?P<pattern>.+?)" (?P<text>.+)$`)
	filterRegex   = regexp.MustCompile(`(?i)^retrigger filter (?P<name>\S+) "(?P<pattern>.+)"$`)
	multiRegex    = regexp.MustCompile(`(?i)^retrigger multi (?P<name>\S+) "(?P<pattern>.+?)" (?P<spec>.+)$`)
	removeRegex   = regexp.MustCompile(`(?i)^retrigger (?:remove|del) (?P<name>\S+)$`)
	toggleRegex   = regexp.MustCompile(`(?i)^retrigger (?P<op>toggle|enable|disable) (?P<name>\S+)$`)
	listRegex     = regexp.MustCompile(`(?i)^retrigger list$`)
	chanceRegex   = regexp.MustCompile(`(?i)^retrigger chance (?P<name>\S+) (?P<chance>-?[0-9]+)$`)
	cooldownRegex = regexp.MustCompile(`(?i)^retrigger cooldown (?P<name>\S+) (?P<seconds>[0-9]+)(?: (?P<style>guild|channel|author))?$`)
	listModRegex  = regexp.MustCompile(`(?i)^retrigger (?P<which>blocklist|allowlist) (?P<op>add|remove) (?P<name>\S+) (?P<ids>.+)$`)
	setRegex      = regexp.MustCompile(`(?i)^retrigger set (?P<name>\S+) (?P<flag>[a-z_]+) (?P<value>on|off|[0-9]+)$`)
	answerRegex   = regexp.MustCompile(`(?i)^(?P<answer>yes|no)$`)
	matchAllRegex = regexp.MustCompile(`.*`)
)

func New(b bot.Bot) *ReTriggerPlugin {
	c := b.Config()
	budget := time.Duration(c.GetInt("retrigger.matchtimeout", 500)) * time.Millisecond
	p := &ReTriggerPlugin{
		b:        b,
		c:        c,
		budget:   budget,
		confirms: newConfirmWaiter(),
	}
	p.store = NewStore(b.DB(), budget)
	p.engine = NewEngine(b, p.store)
	p.register()
	p.registerWeb()
	b.Register(p, bot.Help, p.help)
	return p
}

func (p *ReTriggerPlugin) register() {
	p.b.RegisterTable(p, bot.HandlerTable{
		{Kind: bot.Message, IsCmd: true,
			Regex:    addRegex,
			HelpText: `retrigger add <name> "<pattern>" <text> - reply with text when pattern matches`,
			Handler: func(r bot.Request) bool {
				// free text must survive the spec syntax untouched
				text := strings.NewReplacer(";", `\;`, "|", `\|`).Replace(r.Values["text"])
				return p.create(r, r.Values["name"], r.Values["pattern"], "text;"+text)
			}},
		{Kind: bot.Message, IsCmd: true,
			Regex:    filterRegex,
			HelpText: `retrigger filter <name> "<pattern>" - delete messages matching pattern`,
			Handler: func(r bot.Request) bool {
				return p.create(r, r.Values["name"], r.Values["pattern"], "filter")
			}},
		{Kind: bot.Message, IsCmd: true,
			Regex:    multiRegex,
			HelpText: `retrigger multi <name> "<pattern>" <kind;arg;...> - full response spec`,
			Handler: func(r bot.Request) bool {
				return p.create(r, r.Values["name"], r.Values["pattern"], r.Values["spec"])
			}},
		{Kind: bot.Message, IsCmd: true,
			Regex:    removeRegex,
			HelpText: `retrigger remove <name>`,
			Handler:  p.removeCmd},
		{Kind: bot.Message, IsCmd: true,
			Regex:    toggleRegex,
			HelpText: `retrigger toggle|enable|disable <name>`,
			Handler:  p.toggleCmd},
		{Kind: bot.Message, IsCmd: true,
			Regex:    listRegex,
			HelpText: `retrigger list`,
			Handler:  p.listCmd},
		{Kind: bot.Message, IsCmd: true,
			Regex:    chanceRegex,
			HelpText: `retrigger chance <name> <0-100>`,
			Handler:  p.chanceCmd},
		{Kind: bot.Message, IsCmd: true,
			Regex:    cooldownRegex,
			HelpText: `retrigger cooldown <name> <seconds> [guild|channel|author]`,
			Handler:  p.cooldownCmd},
		{Kind: bot.Message, IsCmd: true,
			Regex:    listModRegex,
			HelpText: `retrigger blocklist|allowlist add|remove <name> <ids...>`,
			Handler:  p.listModCmd},
		{Kind: bot.Message, IsCmd: true,
			Regex:    setRegex,
			HelpText: `retrigger set <name> <flag> <on|off>`,
			Handler:  p.setCmd},
		{Kind: bot.Message, IsCmd: false,
			Regex:   answerRegex,
			Handler: p.answerCmd},
		{Kind: bot.Message, IsCmd: false,
			Regex:   matchAllRegex,
			Handler: p.dispatchCmd},
	})
}

func (p *ReTriggerPlugin) say(r bot.Request, format string, args ...any) bool {
	p.b.Send(r.Conn, bot.Message, r.Msg.Channel, fmt.Sprintf(format, args...))
	return true
}

func (p *ReTriggerPlugin) checkAdmin(r bot.Request) bool {
	if p.b.CheckAdmin(r.Msg.User.Name) {
		return true
	}
	perms, err := r.Conn.Perms(r.Msg.Channel, r.Msg.User.ID)
	if err != nil {
		log.Warn().Err(err).Msg("could not check permissions")
		return false
	}
	return perms.Administrator
}

func (p *ReTriggerPlugin) parseCtx(r bot.Request) ParseCtx {
	return ParseCtx{
		Conn:       r.Conn,
		Guild:      r.Msg.Guild,
		Channel:    r.Msg.Channel,
		Actor:      r.Msg.User,
		BotID:      p.c.Get("bot.id", ""),
		GuildOwner: p.c.Get("guild.owner."+r.Msg.Guild, ""),
		Confirm:    p.confirm(r.Conn),
		ConfirmWait: time.Duration(
			p.c.GetInt("retrigger.confirmwait", 15)) * time.Second,
	}
}

// create runs the full parser + compiler pipeline for a new trigger and
// persists it only when both succeed
func (p *ReTriggerPlugin) create(r bot.Request, name, pattern, spec string) bool {
	if !p.checkAdmin(r) {
		return p.say(r, "You are not authorized to do that.")
	}
	guild := r.Msg.Guild
	unlock := p.store.Lock(guild, name)
	defer unlock()
	existing, err := p.store.Get(guild, name)
	if err != nil {
		return p.say(r, "Could not check for an existing trigger: %s", err)
	}
	if existing != nil {
		return p.say(r, "Trigger `%s` already exists.", name)
	}
	actions, err := ParseResponse(context.Background(), p.parseCtx(r), spec)
	if err != nil {
		return p.say(r, "%s", err)
	}
	t, err := NewTrigger(name, pattern, r.Msg.User.ID, actions, p.budget)
	if err != nil {
		return p.say(r, "%s", err)
	}
	if err := p.store.Put(guild, t); err != nil {
		return p.say(r, "Could not save trigger: %s", err)
	}
	return p.say(r, "Trigger `%s` created.", name)
}

func (p *ReTriggerPlugin) removeCmd(r bot.Request) bool {
	if !p.checkAdmin(r) {
		return p.say(r, "You are not authorized to do that.")
	}
	name := r.Values["name"]
	unlock := p.store.Lock(r.Msg.Guild, name)
	defer unlock()
	t, err := p.store.Get(r.Msg.Guild, name)
	if err != nil || t == nil {
		return p.say(r, "Trigger `%s` doesn't exist.", name)
	}
	if err := p.store.Delete(r.Msg.Guild, name); err != nil {
		return p.say(r, "Could not remove trigger: %s", err)
	}
	return p.say(r, "Trigger `%s` removed.", name)
}

func (p *ReTriggerPlugin) toggleCmd(r bot.Request) bool {
	if !p.checkAdmin(r) {
		return p.say(r, "You are not authorized to do that.")
	}
	return p.mutate(r, func(t *Trigger) error {
		switch strings.ToLower(r.Values["op"]) {
		case "enable":
			t.Enable()
		case "disable":
			t.Disable()
		default:
			t.Toggle()
		}
		return nil
	}, func(t *Trigger) string {
		if t.Enabled {
			return fmt.Sprintf("Trigger `%s` is enabled.", t.Name)
		}
		return fmt.Sprintf("Trigger `%s` is disabled.", t.Name)
	})
}

func (p *ReTriggerPlugin) listCmd(r bot.Request) bool {
	triggers, err := p.store.All(r.Msg.Guild)
	if err != nil {
		return p.say(r, "Could not list triggers: %s", err)
	}
	if len(triggers) == 0 {
		return p.say(r, "There are no triggers here.")
	}
	out := []string{}
	for _, t := range triggers {
		state := "on"
		if !t.Enabled {
			state = "off"
		}
		out = append(out, fmt.Sprintf("`%s` [%s] %v fired %d times: `%s`",
			t.Name, state, t.ResponseType, t.Count, t.Pattern))
	}
	return p.say(r, "%s", strings.Join(out, "\n"))
}

func (p *ReTriggerPlugin) chanceCmd(r bot.Request) bool {
	if !p.checkAdmin(r) {
		return p.say(r, "You are not authorized to do that.")
	}
	chance, _ := strconv.Atoi(r.Values["chance"])
	return p.mutate(r, func(t *Trigger) error {
		t.Chance = clampChance(chance)
		return nil
	}, func(t *Trigger) string {
		return fmt.Sprintf("Trigger `%s` now fires %d%% of the time.", t.Name, t.Chance)
	})
}

func (p *ReTriggerPlugin) cooldownCmd(r bot.Request) bool {
	if !p.checkAdmin(r) {
		return p.say(r, "You are not authorized to do that.")
	}
	seconds, _ := strconv.Atoi(r.Values["seconds"])
	style := strings.ToLower(r.Values["style"])
	if style == "" {
		style = "guild"
	}
	return p.mutate(r, func(t *Trigger) error {
		t.Cooldown = Cooldown{Seconds: seconds, Rate: 1, Style: style}
		return nil
	}, func(t *Trigger) string {
		if t.Cooldown.Zero() {
			return fmt.Sprintf("Trigger `%s` has no cooldown.", t.Name)
		}
		return fmt.Sprintf("Trigger `%s` is limited to once per %ds per %s.",
			t.Name, t.Cooldown.Seconds, t.Cooldown.Style)
	})
}

func (p *ReTriggerPlugin) listModCmd(r bot.Request) bool {
	if !p.checkAdmin(r) {
		return p.say(r, "You are not authorized to do that.")
	}
	ids := strings.Fields(r.Values["ids"])
	add := strings.EqualFold(r.Values["op"], "add")
	block := strings.EqualFold(r.Values["which"], "blocklist")
	return p.mutate(r, func(t *Trigger) error {
		list := &t.Whitelist
		if block {
			list = &t.Blacklist
		}
		if add {
			*list = union(*list, ids)
		} else {
			*list = subtract(*list, ids)
		}
		return nil
	}, func(t *Trigger) string {
		return fmt.Sprintf("Trigger `%s` allowlist: %v, blocklist: %v",
			t.Name, t.Whitelist, t.Blacklist)
	})
}

func (p *ReTriggerPlugin) setCmd(r bot.Request) bool {
	if !p.checkAdmin(r) {
		return p.say(r, "You are not authorized to do that.")
	}
	flag := strings.ToLower(r.Values["flag"])
	value := strings.ToLower(r.Values["value"])
	on := value == "on"
	return p.mutate(r, func(t *Trigger) error {
		switch flag {
		case "ignore_commands":
			t.IgnoreCommands = on
		case "edits":
			t.CheckEdits = on
		case "ocr":
			t.OCRSearch = on
		case "filenames":
			t.ReadFilenames = on
		case "reply":
			t.Reply = on
		case "tts":
			t.TTS = on
		case "user_mention":
			t.UserMention = on
		case "role_mention":
			t.RoleMention = on
		case "everyone_mention":
			t.EveryoneMention = on
		case "nsfw":
			t.NSFW = on
		case "delete_after":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("delete_after needs a number of seconds")
			}
			t.DeleteAfter = n
		default:
			return fmt.Errorf("I don't know the flag `%s`", flag)
		}
		return nil
	}, func(t *Trigger) string {
		return fmt.Sprintf("Trigger `%s` updated.", t.Name)
	})
}

// mutate applies f to a stored trigger under its single-writer lock
func (p *ReTriggerPlugin) mutate(r bot.Request, f func(*Trigger) error, done func(*Trigger) string) bool {
	name := r.Values["name"]
	guild := r.Msg.Guild
	unlock := p.store.Lock(guild, name)
	defer unlock()
	t, err := p.store.Get(guild, name)
	if err != nil {
		return p.say(r, "Could not load trigger: %s", err)
	}
	if t == nil {
		return p.say(r, "Trigger `%s` doesn't exist.", name)
	}
	if err := f(t); err != nil {
		return p.say(r, "%s", err)
	}
	if err := p.store.Put(guild, t); err != nil {
		return p.say(r, "Could not save trigger: %s", err)
	}
	return p.say(r, "%s", done(t))
}

func (p *ReTriggerPlugin) answerCmd(r bot.Request) bool {
	if r.Msg.User == nil {
		return false
	}
	answer := strings.EqualFold(r.Values["answer"], "yes")
	return p.confirms.resolve(r.Msg.Channel, r.Msg.User.ID, answer)
}

func (p *ReTriggerPlugin) dispatchCmd(r bot.Request) bool {
	p.engine.Dispatch(r.Conn, r.Msg)
	return false
}

// confirm builds the parser's yes/no prompt against a live connector
func (p *ReTriggerPlugin) confirm(conn bot.Connector) ConfirmFunc {
	return func(ctx context.Context, channel, userID, prompt string) (bool, error) {
		ch := p.confirms.expect(channel, userID)
		defer p.confirms.cancel(channel, userID)
		p.b.Send(conn, bot.Message, channel, prompt)
		select {
		case answer := <-ch:
			return answer, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

func (p *ReTriggerPlugin) help(conn bot.Connector, kind bot.Kind, message msg.Message, args ...any) bool {
	p.b.Send(conn, bot.Message, message.Channel,
		`Bind regexes to responses: retrigger add <name> "<pattern>" <text>, `+
			`retrigger filter, retrigger multi, retrigger list.`)
	return true
}

func union(list, ids []string) []string {
	have := map[string]bool{}
	for _, v := range list {
		have[v] = true
	}
	for _, v := range ids {
		if !have[v] {
			list = append(list, v)
			have[v] = true
		}
	}
	return list
}

func subtract(list, ids []string) []string {
	drop := map[string]bool{}
	for _, v := range ids {
		drop[v] = true
	}
	out := []string{}
	for _, v := range list {
		if !drop[v] {
			out = append(out, v)
		}
	}
	return out
}

// confirmWaiter routes yes/no replies to whichever parse is waiting on
// that (channel, user) pair
type confirmWaiter struct {
	mu      sync.Mutex
	pending map[string]chan bool
}

func newConfirmWaiter() *confirmWaiter {
	return &confirmWaiter{pending: map[string]chan bool{}}
}

func confirmKey(channel, userID string) string {
	return channel + "\x00" + userID
}

func (w *confirmWaiter) expect(channel, userID string) chan bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(chan bool, 1)
	w.pending[confirmKey(channel, userID)] = ch
	return ch
}

func (w *confirmWaiter) resolve(channel, userID string, answer bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	key := confirmKey(channel, userID)
	ch, ok := w.pending[key]
	if !ok {
		return false
	}
	delete(w.pending, key)
	ch <- answer
	return true
}

func (w *confirmWaiter) waiting(channel, userID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.pending[confirmKey(channel, userID)]
	return ok
}

func (w *confirmWaiter) cancel(channel, userID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.pending, confirmKey(channel, userID))
}
