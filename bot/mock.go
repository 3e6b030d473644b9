// © 2024 the Pounce Authors under the WTFPL. See AUTHORS for the list of authors.

package bot

import (
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/mock"

	"github.com/pouncebot/pounce/bot/msg"
	"github.com/pouncebot/pounce/bot/user"
	"github.com/pouncebot/pounce/config"
)

type MockBot struct {
	mock.Mock

	Cfg *config.Config

	tables map[string]HandlerTable

	Admins    []string
	Messages  []string
	Actions   []string
	Deletes   []string
	DMs       []string
	Published []string
}

func (mb *MockBot) Config() *config.Config { return mb.Cfg }
func (mb *MockBot) DB() *sqlx.DB           { return mb.Cfg.DB() }
func (mb *MockBot) Who(s string) []user.User {
	return []user.User{}
}
func (mb *MockBot) WhoAmI() string              { return "tester" }
func (mb *MockBot) AddPlugin(f Plugin)          {}
func (mb *MockBot) GetPluginNames() []string    { return nil }
func (mb *MockBot) DefaultConnector() Connector { return nil }

func (mb *MockBot) Send(conn Connector, kind Kind, args ...any) (string, error) {
	switch kind {
	case Message, Reply:
		mb.Messages = append(mb.Messages, args[1].(string))
		return "m-" + args[1].(string), nil
	case Action:
		mb.Actions = append(mb.Actions, args[1].(string))
		return "a-" + args[1].(string), nil
	case Delete:
		mb.Deletes = append(mb.Deletes, args[1].(string))
		return args[1].(string), nil
	case DM:
		mb.DMs = append(mb.DMs, args[1].(string))
		return "dm-" + args[1].(string), nil
	case Publish:
		mb.Published = append(mb.Published, args[1].(string))
		return args[1].(string), nil
	}
	if conn != nil {
		return conn.Send(kind, args...)
	}
	return "", nil
}

// Receive drives any registered handler tables, letting tests exercise the
// full regex dispatch path
func (mb *MockBot) Receive(conn Connector, kind Kind, message msg.Message, args ...any) bool {
	for _, table := range mb.tables {
		for _, spec := range table {
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
			if spec.Handler(req) {
				return true
			}
		}
	}
	return false
}

func (mb *MockBot) Register(p Plugin, kind Kind, cb Callback) {}
func (mb *MockBot) RegisterTable(p Plugin, ht HandlerTable) {
	if mb.tables == nil {
		mb.tables = map[string]HandlerTable{}
	}
	mb.tables["mock"] = append(mb.tables["mock"], ht...)
}

func (mb *MockBot) RegisterWeb(r http.Handler, root string)           {}
func (mb *MockBot) RegisterWebName(r http.Handler, root, name string) {}

func (mb *MockBot) CheckAdmin(nick string) bool {
	for _, a := range mb.Admins {
		if a == nick {
			return true
		}
	}
	return false
}

func (mb *MockBot) GetEmojiList() map[string]string { return map[string]string{} }
func (mb *MockBot) SetQuiet(bool)                   {}
func (mb *MockBot) ListenAndServe()                 {}

func NewMockBot() *MockBot {
	cfg := config.ReadConfig(":memory:")
	b := MockBot{
		Cfg:      cfg,
		Messages: make([]string, 0),
		Actions:  make([]string, 0),
	}
	if b.Cfg.DB() == nil {
		log.Fatal().Msg("Failed to open database")
	}
	return &b
}
