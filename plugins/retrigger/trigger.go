package retrigger

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/pouncebot/pounce/bot"
)

// Cooldown limits a trigger to Rate fires within a window of Seconds,
// tracked per Style scope ("guild", "channel" or "author").
type Cooldown struct {
	Seconds int    `json:"time"`
	Rate    int    `json:"rate"`
	Style   string `json:"style"`
}

func (c Cooldown) Zero() bool { return c.Seconds <= 0 }

func (c Cooldown) Window() time.Duration {
	return time.Duration(c.Seconds) * time.Second
}

// Trigger binds a compiled pattern to an ordered list of response actions
// plus the configuration governing when and how they fire.
type Trigger struct {
	// Name is unique within its guild and immutable after creation
	Name    string
	Pattern *Pattern
	// ResponseType records only the action kinds, for quick filtering;
	// Actions is the executable form.
	ResponseType []ResponseKind
	Actions      []Action
	// Author is consulted for later permission re-checks
	Author  string
	Enabled bool
	// Count only ever increases during normal operation
	Count int
	// Image and Text payloads; when more than one entry is present the
	// dispatcher picks one uniformly at random per firing
	Image []string
	Text  []string
	// Whitelist/Blacklist hold channel, user, and role ids. A trigger
	// fires only if nothing blacklisted matches the event and either the
	// whitelist is empty or something on it matches.
	Whitelist []string
	Blacklist []string
	Cooldown  Cooldown
	CreatedAt int64

	IgnoreCommands bool
	CheckEdits     bool
	OCRSearch      bool
	ReadFilenames  bool
	// DeleteAfter removes the bot's own response after this many seconds
	DeleteAfter int
	// Chance gates firing: 100 always fires, 0 never does
	Chance          int
	Reply           bool
	TTS             bool
	UserMention     bool
	RoleMention     bool
	EveryoneMention bool
	NSFW            bool
}

// NewTrigger builds a trigger, compiling the pattern eagerly. The returned
// trigger carries the documented defaults for everything not supplied.
func NewTrigger(name, pattern, author string, actions []Action, budget time.Duration) (*Trigger, error) {
	p, err := Compile(pattern, budget)
	if err != nil {
		return nil, err
	}
	return &Trigger{
		Name:         name,
		Pattern:      p,
		ResponseType: kinds(actions),
		Actions:      actions,
		Author:       author,
		Enabled:      true,
		CreatedAt:    time.Now().Unix(),
		Chance:       100,
		UserMention:  true,
	}, nil
}

// Enable explicitly enables this trigger
func (t *Trigger) Enable() { t.Enabled = true }

// Disable explicitly disables this trigger
func (t *Trigger) Disable() { t.Enabled = false }

// Toggle flips whether this trigger is enabled
func (t *Trigger) Toggle() { t.Enabled = !t.Enabled }

// AllowedMentions is the mention policy for this trigger's sends
func (t *Trigger) AllowedMentions() bot.AllowedMentions {
	return bot.AllowedMentions{
		Everyone:    t.EveryoneMention,
		Users:       t.UserMention,
		Roles:       t.RoleMention,
		RepliedUser: t.Reply,
	}
}

func (t *Trigger) hasKind(k ResponseKind) bool {
	for _, rt := range t.ResponseType {
		if rt == k {
			return true
		}
	}
	return false
}

func (t *Trigger) String() string {
	return fmt.Sprintf("<Trigger name=%s author=%s response=%v pattern=%s>",
		t.Name, t.Author, t.ResponseType, t.Pattern)
}

// Doc is the canonical persisted form of a trigger. Every optional field
// has a documented default so old documents missing newer fields load
// without failure.
type Doc struct {
	Name            string     `json:"name"`
	Regex           string     `json:"regex"`
	ResponseType    []string   `json:"response_type"`
	Author          string     `json:"author"`
	Enabled         bool       `json:"enabled"`
	Count           int        `json:"count"`
	Image           []string   `json:"image"`
	Text            []string   `json:"text"`
	Whitelist       []string   `json:"whitelist"`
	Blacklist       []string   `json:"blacklist"`
	Cooldown        Cooldown   `json:"cooldown"`
	MultiPayload    [][]string `json:"multi_payload"`
	CreatedAt       int64      `json:"created_at"`
	IgnoreCommands  bool       `json:"ignore_commands"`
	CheckEdits      bool       `json:"check_edits"`
	OCRSearch       bool       `json:"ocr_search"`
	DeleteAfter     int        `json:"delete_after"`
	ReadFilenames   bool       `json:"read_filenames"`
	Chance          int        `json:"chance"`
	Reply           bool       `json:"reply"`
	TTS             bool       `json:"tts"`
	UserMention     bool       `json:"user_mention"`
	RoleMention     bool       `json:"role_mention"`
	EveryoneMention bool       `json:"everyone_mention"`
	NSFW            bool       `json:"nsfw"`
}

// ToDoc flattens the trigger for persistence
func (t *Trigger) ToDoc() Doc {
	rts := []string{}
	for _, rt := range t.ResponseType {
		rts = append(rts, string(rt))
	}
	return Doc{
		Name:            t.Name,
		Regex:           t.Pattern.String(),
		ResponseType:    rts,
		Author:          t.Author,
		Enabled:         t.Enabled,
		Count:           t.Count,
		Image:           t.Image,
		Text:            t.Text,
		Whitelist:       t.Whitelist,
		Blacklist:       t.Blacklist,
		Cooldown:        t.Cooldown,
		MultiPayload:    actionsToPayload(t.Actions),
		CreatedAt:       t.CreatedAt,
		IgnoreCommands:  t.IgnoreCommands,
		CheckEdits:      t.CheckEdits,
		OCRSearch:       t.OCRSearch,
		DeleteAfter:     t.DeleteAfter,
		ReadFilenames:   t.ReadFilenames,
		Chance:          t.Chance,
		Reply:           t.Reply,
		TTS:             t.TTS,
		UserMention:     t.UserMention,
		RoleMention:     t.RoleMention,
		EveryoneMention: t.EveryoneMention,
		NSFW:            t.NSFW,
	}
}

// rawDoc tolerates every historical shape of the stored document
type rawDoc struct {
	Name            string              `json:"name"`
	Regex           string              `json:"regex"`
	ResponseType    json.RawMessage     `json:"response_type"`
	Author          json.RawMessage     `json:"author"`
	Enabled         *bool               `json:"enabled"`
	Count           int                 `json:"count"`
	Image           json.RawMessage     `json:"image"`
	Text            json.RawMessage     `json:"text"`
	Whitelist       []string            `json:"whitelist"`
	Blacklist       []string            `json:"blacklist"`
	Cooldown        Cooldown            `json:"cooldown"`
	MultiPayload    [][]json.RawMessage `json:"multi_payload"`
	CreatedAt       int64               `json:"created_at"`
	IgnoreCommands  bool                `json:"ignore_commands"`
	CheckEdits      *bool               `json:"check_edits"`
	IgnoreEdits     bool                `json:"ignore_edits"`
	OCRSearch       bool                `json:"ocr_search"`
	DeleteAfter     int                 `json:"delete_after"`
	ReadFilenames   bool                `json:"read_filenames"`
	Chance          *int                `json:"chance"`
	Reply           *bool               `json:"reply"`
	TTS             bool                `json:"tts"`
	UserMention     *bool               `json:"user_mention"`
	RoleMention     bool                `json:"role_mention"`
	EveryoneMention bool                `json:"everyone_mention"`
	NSFW            bool                `json:"nsfw"`
}

// scalar coerces a raw JSON value to its string form; numbers lose any
// trailing zero decimals so legacy integer ids round-trip cleanly
func scalar(raw json.RawMessage) (string, bool) {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s, true
	}
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		return strconv.FormatInt(int64(f), 10), true
	}
	return "", false
}

// stringList accepts null, a bare scalar, or a list
func stringList(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if s, ok := scalar(raw); ok {
		return []string{s}
	}
	var items []json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		return nil
	}
	out := []string{}
	for _, item := range items {
		if s, ok := scalar(item); ok {
			out = append(out, s)
		}
	}
	return out
}

// FromJSON rebuilds a trigger from its stored document, normalizing the
// legacy shapes:
//   - response_type as a bare string becomes a one-element list
//   - text carrying a boolean on a delete trigger moves into read_filenames
//   - a missing check_edits defaults from the retired ignore_edits flag on
//     moderation triggers
//   - the filter kind is rewritten to delete
//
// A document whose pattern no longer compiles is rejected outright.
func FromJSON(data []byte, budget time.Duration) (*Trigger, error) {
	var raw rawDoc
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("could not decode trigger document: %w", err)
	}

	p, err := Compile(raw.Regex, budget)
	if err != nil {
		return nil, err
	}

	responseTypes := []ResponseKind{}
	for _, rt := range stringList(raw.ResponseType) {
		k := ResponseKind(rt)
		if k == Filter {
			k = Delete
		}
		responseTypes = append(responseTypes, k)
	}

	t := &Trigger{
		Name:            raw.Name,
		Pattern:         p,
		ResponseType:    responseTypes,
		Count:           raw.Count,
		Enabled:         true,
		Image:           stringList(raw.Image),
		Whitelist:       raw.Whitelist,
		Blacklist:       raw.Blacklist,
		Cooldown:        raw.Cooldown,
		CreatedAt:       raw.CreatedAt,
		IgnoreCommands:  raw.IgnoreCommands,
		OCRSearch:       raw.OCRSearch,
		DeleteAfter:     raw.DeleteAfter,
		ReadFilenames:   raw.ReadFilenames,
		Chance:          100,
		TTS:             raw.TTS,
		UserMention:     true,
		RoleMention:     raw.RoleMention,
		EveryoneMention: raw.EveryoneMention,
		NSFW:            raw.NSFW,
	}

	if author, ok := scalar(raw.Author); ok {
		t.Author = author
	}
	if raw.Enabled != nil {
		t.Enabled = *raw.Enabled
	}
	if raw.UserMention != nil {
		t.UserMention = *raw.UserMention
	}
	if raw.Reply != nil {
		t.Reply = *raw.Reply
	}
	if raw.Chance != nil {
		t.Chance = clampChance(*raw.Chance)
	}

	// legacy: a boolean text field on a delete trigger meant "match the
	// attachment filenames". Only a literal boolean counts; null must fall
	// through to the list form or it would clobber read_filenames.
	switch string(raw.Text) {
	case "true", "false":
		if t.hasKind(Delete) {
			t.ReadFilenames = string(raw.Text) == "true"
		}
	default:
		t.Text = stringList(raw.Text)
	}

	if raw.CheckEdits != nil {
		t.CheckEdits = *raw.CheckEdits
	} else if t.hasKind(Ban) || t.hasKind(Kick) || t.hasKind(Delete) {
		t.CheckEdits = !raw.IgnoreEdits
	}

	payload := [][]string{}
	for _, entry := range raw.MultiPayload {
		fields := []string{}
		for _, f := range entry {
			if s, ok := scalar(f); ok {
				fields = append(fields, s)
			}
		}
		payload = append(payload, fields)
	}
	t.Actions, err = payloadToActions(payload)
	if err != nil {
		return nil, err
	}
	if len(t.Actions) == 0 && len(t.ResponseType) > 0 {
		// documents predating multi-payload carried only response_type
		// plus the text/image fields; synthesize the executable form
		t.Actions, err = legacyActions(t)
		if err != nil {
			return nil, err
		}
	}
	if len(t.ResponseType) == 0 {
		t.ResponseType = kinds(t.Actions)
	}

	return t, nil
}

// legacyActions maps a bare response_type list onto executable actions
// using the trigger's own payload fields
func legacyActions(t *Trigger) ([]Action, error) {
	out := []Action{}
	for _, k := range t.ResponseType {
		var args []string
		switch k {
		case Text, DMUser, DMAuthor, Rename, Command, Mock:
			args = t.Text
		case React:
			args = t.Image
		}
		a, err := newAction(k, args)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func clampChance(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
