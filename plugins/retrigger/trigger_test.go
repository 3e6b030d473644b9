package retrigger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTrigger(t *testing.T, name, pattern string, actions ...Action) *Trigger {
	t.Helper()
	tr, err := NewTrigger(name, pattern, "actor", actions, 0)
	require.NoError(t, err)
	return tr
}

func TestNewTriggerDefaults(t *testing.T) {
	tr := mustTrigger(t, "hi", "hello", TextAction{Text: "howdy"})
	assert.True(t, tr.Enabled)
	assert.Equal(t, 100, tr.Chance)
	assert.True(t, tr.UserMention)
	assert.False(t, tr.EveryoneMention)
	assert.Equal(t, []ResponseKind{Text}, tr.ResponseType)
	assert.Equal(t, 0, tr.Count)
}

func TestNewTriggerBadPattern(t *testing.T) {
	_, err := NewTrigger("bad", "(unclosed", "actor", []Action{DeleteAction{}}, 0)
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestToggle(t *testing.T) {
	tr := mustTrigger(t, "hi", "hello", TextAction{Text: "howdy"})

	tr.Disable()
	assert.False(t, tr.Enabled)
	tr.Disable()
	assert.False(t, tr.Enabled)

	tr.Enable()
	assert.True(t, tr.Enabled)
	tr.Enable()
	assert.True(t, tr.Enabled)

	tr.Toggle()
	assert.False(t, tr.Enabled)
	tr.Toggle()
	assert.True(t, tr.Enabled)
}

func TestRoundTrip(t *testing.T) {
	tr := mustTrigger(t, "multi", `\bspam\b`,
		TextAction{Text: "no spam"}, DeleteAction{})
	tr.Count = 7
	tr.Cooldown = Cooldown{Seconds: 60, Rate: 2, Style: "channel"}
	tr.Blacklist = []string{"c9"}
	tr.Chance = 50
	tr.CheckEdits = true

	doc, err := json.Marshal(tr.ToDoc())
	require.NoError(t, err)

	got, err := FromJSON(doc, 0)
	require.NoError(t, err)
	assert.Equal(t, tr.Name, got.Name)
	assert.Equal(t, tr.Pattern.String(), got.Pattern.String())
	assert.Equal(t, tr.Actions, got.Actions)
	assert.Equal(t, 7, got.Count)
	assert.Equal(t, tr.Cooldown, got.Cooldown)
	assert.Equal(t, []string{"c9"}, got.Blacklist)
	assert.Equal(t, 50, got.Chance)
	assert.True(t, got.CheckEdits)
}

func TestFromJSONLegacyScalarResponseType(t *testing.T) {
	doc := `{"name": "old", "regex": "hello", "response_type": "text",
		"text": ["hi there"], "author": 123456789}`
	tr, err := FromJSON([]byte(doc), 0)
	require.NoError(t, err)
	assert.Equal(t, []ResponseKind{Text}, tr.ResponseType)
	assert.Equal(t, []Action{TextAction{Text: "hi there"}}, tr.Actions)
	assert.Equal(t, "123456789", tr.Author)
	assert.True(t, tr.Enabled)
	assert.Equal(t, 100, tr.Chance)
}

func TestFromJSONLegacyFilter(t *testing.T) {
	doc := `{"name": "old", "regex": "badword", "response_type": ["filter"]}`
	tr, err := FromJSON([]byte(doc), 0)
	require.NoError(t, err)
	assert.Equal(t, []ResponseKind{Delete}, tr.ResponseType)
	assert.Equal(t, []Action{DeleteAction{}}, tr.Actions)
}

func TestFromJSONLegacyTextBool(t *testing.T) {
	// a boolean text on a delete trigger used to mean "search filenames"
	doc := `{"name": "old", "regex": "badword", "response_type": ["delete"],
		"text": true}`
	tr, err := FromJSON([]byte(doc), 0)
	require.NoError(t, err)
	assert.True(t, tr.ReadFilenames)
	assert.Empty(t, tr.Text)
}

func TestRoundTripReadFilenames(t *testing.T) {
	// a trigger with no text payload stores "text": null, which must not
	// read as the legacy boolean form
	tr := mustTrigger(t, "nozip", `\.zip$`, DeleteAction{})
	tr.ReadFilenames = true

	doc, err := json.Marshal(tr.ToDoc())
	require.NoError(t, err)
	got, err := FromJSON(doc, 0)
	require.NoError(t, err)
	assert.True(t, got.ReadFilenames)
	assert.Empty(t, got.Text)
}

func TestFromJSONCheckEditsDefault(t *testing.T) {
	// moderation triggers predating check_edits inherit it from the
	// retired ignore_edits flag
	doc := `{"name": "old", "regex": "badword", "response_type": ["ban"]}`
	tr, err := FromJSON([]byte(doc), 0)
	require.NoError(t, err)
	assert.True(t, tr.CheckEdits)

	doc = `{"name": "old", "regex": "badword", "response_type": ["ban"],
		"ignore_edits": true}`
	tr, err = FromJSON([]byte(doc), 0)
	require.NoError(t, err)
	assert.False(t, tr.CheckEdits)

	doc = `{"name": "old", "regex": "hello", "response_type": ["text"],
		"text": ["hi"]}`
	tr, err = FromJSON([]byte(doc), 0)
	require.NoError(t, err)
	assert.False(t, tr.CheckEdits)
}

func TestFromJSONChanceClamp(t *testing.T) {
	doc := `{"name": "old", "regex": "hello", "response_type": ["text"],
		"text": ["hi"], "chance": 250}`
	tr, err := FromJSON([]byte(doc), 0)
	require.NoError(t, err)
	assert.Equal(t, 100, tr.Chance)

	doc = `{"name": "old", "regex": "hello", "response_type": ["text"],
		"text": ["hi"], "chance": -5}`
	tr, err = FromJSON([]byte(doc), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, tr.Chance)
}

func TestFromJSONMultiPayload(t *testing.T) {
	doc := `{"name": "old", "regex": "spam",
		"multi_payload": [["text", "begone"], ["delete"]]}`
	tr, err := FromJSON([]byte(doc), 0)
	require.NoError(t, err)
	assert.Equal(t, []Action{TextAction{Text: "begone"}, DeleteAction{}}, tr.Actions)
	assert.Equal(t, []ResponseKind{Text, Delete}, tr.ResponseType)
}

func TestFromJSONBadPattern(t *testing.T) {
	doc := `{"name": "old", "regex": "(unclosed", "response_type": ["text"],
		"text": ["hi"]}`
	_, err := FromJSON([]byte(doc), 0)
	assert.ErrorIs(t, err, ErrInvalidPattern)
}
