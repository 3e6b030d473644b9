package retrigger

import (
	"fmt"
	"strings"
)

// ResponseKind enumerates every action a trigger may take when it fires.
type ResponseKind string

const (
	Text       ResponseKind = "text"
	DMUser     ResponseKind = "dm"
	DMAuthor   ResponseKind = "dmme"
	RemoveRole ResponseKind = "remove_role"
	AddRole    ResponseKind = "add_role"
	Ban        ResponseKind = "ban"
	Kick       ResponseKind = "kick"
	Delete     ResponseKind = "delete"
	Publish    ResponseKind = "publish"
	React      ResponseKind = "react"
	Rename     ResponseKind = "rename"
	Command    ResponseKind = "command"
	Mock       ResponseKind = "mock"

	// Filter is a legacy alias for Delete; it is rewritten permanently at
	// parse and load time and never survives in a stored trigger.
	Filter ResponseKind = "filter"
)

var validKinds = map[ResponseKind]bool{
	Text: true, DMUser: true, DMAuthor: true, RemoveRole: true,
	AddRole: true, Ban: true, Kick: true, Delete: true, Filter: true,
	Publish: true, React: true, Rename: true, Command: true, Mock: true,
}

// bareKinds need no arguments
var bareKinds = map[ResponseKind]bool{Delete: true, Ban: true, Kick: true}

// Action is one resolved, executable response. Each concrete variant
// carries only the arguments its kind needs; the dispatcher switches
// exhaustively over the variants.
type Action interface {
	Kind() ResponseKind
	// args is the serialized argument list of the legacy payload form
	args() []string
}

type TextAction struct{ Text string }
type DMAction struct{ Text string }
type DMAuthorAction struct{ Text string }
type RemoveRoleAction struct{ Roles []string }
type AddRoleAction struct{ Roles []string }
type BanAction struct{}
type KickAction struct{}
type DeleteAction struct{}
type PublishAction struct{}
type ReactAction struct{ Emojis []string }
type RenameAction struct{ Name string }
type CommandAction struct{ Command string }
type MockAction struct{ Command string }

func (TextAction) Kind() ResponseKind       { return Text }
func (DMAction) Kind() ResponseKind         { return DMUser }
func (DMAuthorAction) Kind() ResponseKind   { return DMAuthor }
func (RemoveRoleAction) Kind() ResponseKind { return RemoveRole }
func (AddRoleAction) Kind() ResponseKind    { return AddRole }
func (BanAction) Kind() ResponseKind        { return Ban }
func (KickAction) Kind() ResponseKind       { return Kick }
func (DeleteAction) Kind() ResponseKind     { return Delete }
func (PublishAction) Kind() ResponseKind    { return Publish }
func (ReactAction) Kind() ResponseKind      { return React }
func (RenameAction) Kind() ResponseKind     { return Rename }
func (CommandAction) Kind() ResponseKind    { return Command }
func (MockAction) Kind() ResponseKind       { return Mock }

func (a TextAction) args() []string       { return []string{a.Text} }
func (a DMAction) args() []string         { return []string{a.Text} }
func (a DMAuthorAction) args() []string   { return []string{a.Text} }
func (a RemoveRoleAction) args() []string { return a.Roles }
func (a AddRoleAction) args() []string    { return a.Roles }
func (BanAction) args() []string          { return nil }
func (KickAction) args() []string         { return nil }
func (DeleteAction) args() []string       { return nil }
func (PublishAction) args() []string      { return nil }
func (a ReactAction) args() []string      { return a.Emojis }
func (a RenameAction) args() []string     { return []string{a.Name} }
func (a CommandAction) args() []string    { return []string{a.Command} }
func (a MockAction) args() []string       { return []string{a.Command} }

// newAction builds the variant for an already-resolved argument list.
// The legacy filter alias is normalized here so it never leaves the
// deserialization path.
func newAction(kind ResponseKind, args []string) (Action, error) {
	if kind == Filter {
		kind = Delete
	}
	if !validKinds[kind] {
		return nil, fmt.Errorf("`%s` %w", kind, ErrUnknownAction)
	}
	if len(args) == 0 && !bareKinds[kind] {
		return nil, fmt.Errorf("%w: `%s` needs an argument", ErrMalformedAction, kind)
	}
	switch kind {
	case Text:
		return TextAction{Text: strings.Join(args, " ")}, nil
	case DMUser:
		return DMAction{Text: strings.Join(args, " ")}, nil
	case DMAuthor:
		return DMAuthorAction{Text: strings.Join(args, " ")}, nil
	case RemoveRole:
		return RemoveRoleAction{Roles: args}, nil
	case AddRole:
		return AddRoleAction{Roles: args}, nil
	case Ban:
		return BanAction{}, nil
	case Kick:
		return KickAction{}, nil
	case Delete:
		return DeleteAction{}, nil
	case Publish:
		return PublishAction{}, nil
	case React:
		return ReactAction{Emojis: args}, nil
	case Rename:
		return RenameAction{Name: strings.Join(args, " ")}, nil
	case Command:
		return CommandAction{Command: strings.Join(args, " ")}, nil
	case Mock:
		return MockAction{Command: strings.Join(args, " ")}, nil
	}
	return nil, fmt.Errorf("`%s` %w", kind, ErrUnknownAction)
}

// actionsToPayload flattens actions into the stored [[kind, args...], ...]
// document form.
func actionsToPayload(actions []Action) [][]string {
	out := [][]string{}
	for _, a := range actions {
		entry := append([]string{string(a.Kind())}, a.args()...)
		out = append(out, entry)
	}
	return out
}

// payloadToActions rebuilds actions from the stored document form.
func payloadToActions(payload [][]string) ([]Action, error) {
	out := []Action{}
	for _, entry := range payload {
		if len(entry) == 0 {
			continue
		}
		a, err := newAction(ResponseKind(entry[0]), entry[1:])
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// kinds records the action kinds present, for quick filtering and listing
func kinds(actions []Action) []ResponseKind {
	out := []ResponseKind{}
	for _, a := range actions {
		out = append(out, a.Kind())
	}
	return out
}
