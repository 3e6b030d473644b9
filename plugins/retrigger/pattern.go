package retrigger

import (
	"errors"
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
)

// Error taxonomy for trigger creation and dispatch. Creation errors are
// surfaced to the requesting user; dispatch errors are logged and absorbed.
var (
	// ErrInvalidPattern means the pattern failed to compile. A trigger
	// carrying one of these is never persisted.
	ErrInvalidPattern = errors.New("invalid regex pattern")
	// ErrPatternTimeout means evaluation blew its budget; the trigger is
	// treated as not matching for that event.
	ErrPatternTimeout = errors.New("pattern evaluation exceeded budget")
	// ErrUnknownAction means the first response field is not a known kind
	ErrUnknownAction = errors.New("not a valid response kind")
	// ErrMalformedAction means a response kind is missing required
	// arguments, or every argument failed to resolve
	ErrMalformedAction = errors.New("the provided response is not valid")
	// ErrInsufficientPermission means the bot or the requesting user lacks
	// a capability the response kind needs
	ErrInsufficientPermission = errors.New("insufficient permission")
	// ErrNotConfirmed means the interactive confirmation was declined or
	// timed out
	ErrNotConfirmed = errors.New("not creating trigger")
)

// DefaultMatchBudget bounds a single pattern evaluation so one pathological
// pattern cannot starve the event loop.
const DefaultMatchBudget = 500 * time.Millisecond

// Pattern is a compiled trigger matcher with a bounded evaluation budget.
type Pattern struct {
	raw string
	re  *regexp2.Regexp
}

// Compile eagerly compiles pattern, applying budget to every later
// evaluation. Compilation itself runs no matches and cannot hang.
func Compile(pattern string, budget time.Duration) (*Pattern, error) {
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("%w `%s`: %v", ErrInvalidPattern, pattern, err)
	}
	if budget <= 0 {
		budget = DefaultMatchBudget
	}
	re.MatchTimeout = budget
	return &Pattern{raw: pattern, re: re}, nil
}

func (p *Pattern) String() string { return p.raw }

// Find reports whether text matches and returns the matched portion.
// A blown budget comes back as ErrPatternTimeout with no match.
func (p *Pattern) Find(text string) (bool, string, error) {
	m, err := p.re.FindStringMatch(text)
	if err != nil {
		return false, "", fmt.Errorf("%w: %v", ErrPatternTimeout, err)
	}
	if m == nil {
		return false, "", nil
	}
	return true, m.String(), nil
}
