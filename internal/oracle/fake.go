package oracle

import "context"

// FakeOracle is a scripted Oracle for unit tests, mirroring the teacher's
// pattern of hand-rolled fakes for external collaborators (veille.Service's
// PoolResolver interface): a matcher function picks the canned response for
// a given call instead of driving an actual HTTP server.
type FakeOracle struct {
	// Responses is consulted in order on every call; the first entry whose
	// Match returns true (or is nil) is used. Entries are never consumed, so
	// the same entry answers every call it matches.
	Responses []FakeResponse
	calls     int
}

// FakeResponse is one scripted ChatJSON outcome.
type FakeResponse struct {
	// Match, if non-nil, restricts this response to calls whose system/user
	// messages satisfy it. A nil Match always matches.
	Match func(messages []Message) bool
	Value map[string]any
	Err   error
}

// ChatJSON implements Oracle by returning the first matching scripted
// response, or a zero-value format error if none match.
func (f *FakeOracle) ChatJSON(_ context.Context, messages []Message, _ ChatOptions) (map[string]any, error) {
	f.calls++
	for _, r := range f.Responses {
		if r.Match == nil || r.Match(messages) {
			if r.Err != nil {
				return nil, r.Err
			}
			return r.Value, nil
		}
	}
	return nil, &LLMFormatError{Attempts: 1, Cause: nil}
}

// Calls reports how many times ChatJSON has been invoked.
func (f *FakeOracle) Calls() int { return f.calls }
