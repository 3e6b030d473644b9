package admin

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pouncebot/pounce/bot"
)

// AdminPlugin exposes runtime control of the bot: quieting it, inspecting
// loaded plugins, and editing the config store from chat.
type AdminPlugin struct {
	b bot.Bot
}

var (
	shutupRegex   = regexp.MustCompile(`(?i)^shut up$`)
	comeBackRegex = regexp.MustCompile(`(?i)^come back$`)
	pluginsRegex  = regexp.MustCompile(`(?i)^list plugins$`)
	getRegex      = regexp.MustCompile(`(?i)^get (?P<key>\S+)$`)
	setRegex      = regexp.MustCompile(`(?i)^set (?P<key>\S+) (?P<value>.*)$`)
	pushRegex     = regexp.MustCompile(`(?i)^push (?P<key>\S+) (?P<value>.*)$`)
	unsetRegex    = regexp.MustCompile(`(?i)^unset (?P<key>\S+)$`)
)

// quietDuration is how long "shut up" silences the bot without a "come back"
const quietDuration = 5 * time.Minute

func New(b bot.Bot) *AdminPlugin {
	p := &AdminPlugin{b: b}
	b.RegisterTable(p, bot.HandlerTable{
		{Kind: bot.Message, IsCmd: true,
			Regex:    shutupRegex,
			HelpText: "shut up - silence the bot for a while",
			Handler:  p.shutupCmd},
		{Kind: bot.Message, IsCmd: true,
			Regex:   comeBackRegex,
			Handler: p.comeBackCmd},
		{Kind: bot.Message, IsCmd: true,
			Regex:    pluginsRegex,
			HelpText: "list plugins",
			Handler:  p.admin(p.pluginsCmd)},
		{Kind: bot.Message, IsCmd: true,
			Regex:    getRegex,
			HelpText: "get <key> - read a config value",
			Handler:  p.admin(p.getCmd)},
		{Kind: bot.Message, IsCmd: true,
			Regex:    setRegex,
			HelpText: "set <key> <value> - write a config value",
			Handler:  p.admin(p.setCmd)},
		{Kind: bot.Message, IsCmd: true,
			Regex:    pushRegex,
			HelpText: "push <key> <value> - append to a config array",
			Handler:  p.admin(p.pushCmd)},
		{Kind: bot.Message, IsCmd: true,
			Regex:   unsetRegex,
			Handler: p.admin(p.unsetCmd)},
	})
	return p
}

// admin wraps a handler so only configured admins may run it
func (p *AdminPlugin) admin(rh bot.ResponseHandler) bot.ResponseHandler {
	return func(r bot.Request) bool {
		if !p.b.CheckAdmin(r.Msg.User.Name) {
			p.b.Send(r.Conn, bot.Message, r.Msg.Channel, "You are not authorized to do that.")
			return true
		}
		return rh(r)
	}
}

func (p *AdminPlugin) shutupCmd(r bot.Request) bool {
	p.b.SetQuiet(true)
	p.b.Send(r.Conn, bot.Message, r.Msg.Channel, "Okay. I'll be back later.")
	go func() {
		time.Sleep(quietDuration)
		p.b.SetQuiet(false)
	}()
	return true
}

func (p *AdminPlugin) comeBackCmd(r bot.Request) bool {
	p.b.SetQuiet(false)
	p.b.Send(r.Conn, bot.Message, r.Msg.Channel, "I'm back, baby!")
	return true
}

func (p *AdminPlugin) pluginsCmd(r bot.Request) bool {
	names := p.b.GetPluginNames()
	p.b.Send(r.Conn, bot.Message, r.Msg.Channel,
		fmt.Sprintf("Loaded plugins: %s", strings.Join(names, ", ")))
	return true
}

func (p *AdminPlugin) getCmd(r bot.Request) bool {
	key := r.Values["key"]
	v := p.b.Config().Get(key, "<unknown>")
	p.b.Send(r.Conn, bot.Message, r.Msg.Channel, fmt.Sprintf("%s: %s", key, v))
	return true
}

func (p *AdminPlugin) setCmd(r bot.Request) bool {
	if err := p.b.Config().Set(r.Values["key"], r.Values["value"]); err != nil {
		p.b.Send(r.Conn, bot.Message, r.Msg.Channel, fmt.Sprintf("could not set: %s", err))
		return true
	}
	p.b.Send(r.Conn, bot.Message, r.Msg.Channel, fmt.Sprintf("Set %s.", r.Values["key"]))
	return true
}

func (p *AdminPlugin) pushCmd(r bot.Request) bool {
	key := r.Values["key"]
	items := p.b.Config().GetArray(key, []string{})
	items = append(items, r.Values["value"])
	if err := p.b.Config().SetArray(key, items); err != nil {
		p.b.Send(r.Conn, bot.Message, r.Msg.Channel, fmt.Sprintf("could not push: %s", err))
		return true
	}
	p.b.Send(r.Conn, bot.Message, r.Msg.Channel,
		fmt.Sprintf("%s now has %d entries.", key, len(items)))
	return true
}

func (p *AdminPlugin) unsetCmd(r bot.Request) bool {
	if err := p.b.Config().Unset(r.Values["key"]); err != nil {
		p.b.Send(r.Conn, bot.Message, r.Msg.Channel, fmt.Sprintf("could not unset: %s", err))
		return true
	}
	p.b.Send(r.Conn, bot.Message, r.Msg.Channel, fmt.Sprintf("Unset %s.", r.Values["key"]))
	return true
}
