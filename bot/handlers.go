// © 2024 the Pounce Authors under the WTFPL. See AUTHORS for the list of authors.

package bot

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/pouncebot/pounce/bot/msg"
)

// Receive runs an inbound event through every registered handler in plugin
// order. Regex specs are consulted first; a handler returning true consumes
// the event. Kind callbacks run after the tables so that catch-all
// subscriptions (logging, stats) always see the event.
func (b *bot) Receive(conn Connector, kind Kind, message msg.Message, args ...any) bool {
	if kind == Message && strings.HasPrefix(message.Body, "help") && message.Command {
		b.help(conn, message.Channel)
		return true
	}

	consumed := false
	for _, name := range b.pluginOrdering {
		if b.runTable(name, conn, kind, message, args...) {
			consumed = true
			break
		}
	}

	for _, cb := range b.callbacks[kind] {
		if cb(conn, kind, message, args...) {
			consumed = true
		}
	}

	return consumed
}

func (b *bot) runTable(name string, conn Connector, kind Kind, message msg.Message, args ...any) bool {
	for _, spec := range b.tables[name] {
		if spec.Kind != kind {
			continue
		}
		if spec.IsCmd && !message.Command {
			continue
		}
		if !spec.Regex.MatchString(message.Body) {
			continue
		}
		req := Request{
			Conn:   conn,
			Kind:   kind,
			Msg:    message,
			Values: ParseValues(spec.Regex, message.Body),
			Args:   args,
		}
		log.Debug().
			Str("plugin", name).
			Str("regex", spec.Regex.String()).
			Msg("handler matched")
		if spec.Handler(req) {
			return true
		}
	}
	return false
}

// ParseValues returns the named capture groups of r matched against body
func ParseValues(r *regexp.Regexp, body string) RegexValues {
	values := RegexValues{}
	subs := r.FindStringSubmatch(body)
	if len(subs) == 0 {
		return values
	}
	for i, n := range r.SubexpNames() {
		if n != "" {
			values[n] = subs[i]
		}
	}
	return values
}
