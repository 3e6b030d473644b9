// © 2024 the Pounce Authors under the WTFPL. See AUTHORS for the list of authors.

package bot

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/pouncebot/pounce/bot/msg"
	"github.com/pouncebot/pounce/bot/user"
	"github.com/pouncebot/pounce/config"

	_ "github.com/mattn/go-sqlite3"
)

// bot type provides storage for bot-wide information, configs, and
// database connections
type bot struct {
	config *config.Config
	db     *sqlx.DB

	plugins        map[string]Plugin
	pluginOrdering []string

	// tables are the regex handler specs in registration order
	tables map[string]HandlerTable
	// callbacks are the non-regex event subscriptions per kind
	callbacks map[Kind][]Callback

	conn Connector
	me   user.User

	quiet bool

	router        *chi.Mux
	httpEndPoints []EndPoint
}

type EndPoint struct {
	Name, URL string
}

// New creates a bot for a given connection and set of handlers.
func New(config *config.Config, connector Connector) Bot {
	bot := &bot{
		config:    config,
		plugins:   map[string]Plugin{},
		tables:    map[string]HandlerTable{},
		callbacks: map[Kind][]Callback{},
		conn:      connector,
		db:        config.DB(),
		me: user.User{
			Name: config.Get("nick", "pounce"),
		},
		router:        chi.NewRouter(),
		httpEndPoints: []EndPoint{},
	}

	connector.RegisterEvent(bot.Receive)

	bot.router.HandleFunc("/", bot.serveRoot)
	bot.router.HandleFunc("/nav", bot.serveNav)

	return bot
}

// ListenAndServe starts the bot's HTTP interface
func (b *bot) ListenAndServe() {
	addr := b.config.Get("http.addr", "127.0.0.1:1337")
	stop := make(chan struct{})
	go func() {
		log.Debug().Msgf("starting web service at %s", addr)
		log.Fatal().Err(http.ListenAndServe(addr, b.router)).Msg("bot killed")
		stop <- struct{}{}
	}()
	b.Receive(b.conn, Startup, msg.Message{})
	<-stop
}

func (b *bot) Config() *config.Config { return b.config }
func (b *bot) DB() *sqlx.DB           { return b.config.DB() }
func (b *bot) WhoAmI() string         { return b.me.Name }

func (b *bot) DefaultConnector() Connector { return b.conn }

// Who returns users for a channel the bot knows about
func (b *bot) Who(channel string) []user.User {
	out := []user.User{}
	for _, name := range b.conn.Who(channel) {
		if name != b.me.Name {
			out = append(out, user.User{Name: name})
		}
	}
	return out
}

// AddPlugin registers a constructed plugin under its type name. Plugins
// that registered a handler table during construction are already known
// and keep their place in the ordering.
func (b *bot) AddPlugin(h Plugin) {
	name := reflect.TypeOf(h).String()
	if _, ok := b.plugins[name]; ok {
		return
	}
	b.plugins[name] = h
	b.pluginOrdering = append(b.pluginOrdering, name)
}

func (b *bot) GetPluginNames() []string {
	names := []string{}
	for _, name := range b.pluginOrdering {
		names = append(names, name)
	}
	return names
}

func (b *bot) Register(p Plugin, kind Kind, cb Callback) {
	b.callbacks[kind] = append(b.callbacks[kind], cb)
}

func (b *bot) RegisterTable(p Plugin, ht HandlerTable) {
	name := reflect.TypeOf(p).String()
	if _, ok := b.plugins[name]; !ok {
		b.AddPlugin(p)
	}
	b.tables[name] = append(b.tables[name], ht...)
}

// Send transmits through the connector unless the bot has been quieted
func (b *bot) Send(conn Connector, kind Kind, args ...any) (string, error) {
	if b.quiet {
		return "", nil
	}
	return conn.Send(kind, args...)
}

func (b *bot) GetEmojiList() map[string]string {
	return b.conn.GetEmojiList(true)
}

func (b *bot) SetQuiet(quiet bool) {
	b.quiet = quiet
}

// CheckAdmin returns a user's admin status from config
func (b *bot) CheckAdmin(nick string) bool {
	for _, u := range b.config.GetArray("bot.admins", []string{}) {
		if strings.EqualFold(nick, u) {
			return true
		}
	}
	return false
}

// RegisterWeb mounts a plugin's HTTP routes without a nav entry
func (b *bot) RegisterWeb(r http.Handler, root string) {
	b.router.Mount(root, r)
}

// RegisterWebName mounts a plugin's HTTP routes and records a nav entry
func (b *bot) RegisterWebName(r http.Handler, root, name string) {
	b.httpEndPoints = append(b.httpEndPoints, EndPoint{name, root})
	b.router.Mount(root, r)
}

// IsCmd checks if message is a command and returns its curtailed version
func IsCmd(c *config.Config, message string) (bool, string) {
	cmdcs := c.GetArray("commandchar", []string{"!"})
	botnick := strings.ToLower(c.Get("nick", "pounce"))
	if botnick == "" {
		log.Fatal().Msgf(`You must run "pounce -set nick -val <your bot nick>"`)
	}
	iscmd := false
	lowerMessage := strings.ToLower(message)

	if strings.HasPrefix(lowerMessage, botnick) &&
		len(lowerMessage) > len(botnick) &&
		(lowerMessage[len(botnick)] == ',' || lowerMessage[len(botnick)] == ':') {

		iscmd = true
		message = message[len(botnick):]

		// trim off the customary addressing punctuation
		if message[0] == ':' || message[0] == ',' {
			message = message[1:]
		}
	} else {
		for _, cmdc := range cmdcs {
			if strings.HasPrefix(message, cmdc) && len(cmdc) > 0 {
				iscmd = true
				message = message[len(cmdc):]
				break
			}
		}
	}

	// trim off any whitespace left on the message
	message = strings.TrimSpace(message)

	return iscmd, message
}

func (b *bot) help(conn Connector, channel string) {
	topics := []string{}
	for _, name := range b.pluginOrdering {
		for _, spec := range b.tables[name] {
			if spec.HelpText != "" {
				topics = append(topics, spec.HelpText)
			}
		}
	}
	out := fmt.Sprintf("Help topics:\n%s", strings.Join(topics, "\n"))
	b.Send(conn, Message, channel, out)
}
