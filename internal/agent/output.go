package agent

import (
	"encoding/json"
	"errors"
	"fmt"

	"continuous/internal/jsonutil"
)

var (
	// ErrEmptyOutput means the agent produced no result at all, including an
	// empty message sequence.
	ErrEmptyOutput = errors.New("agent produced no result")
	// ErrUnexpectedOutput means the output was JSON but neither an object nor
	// an array of objects.
	ErrUnexpectedOutput = errors.New("unexpected agent output shape")
)

// Message is one result object emitted by `claude --output-format json`.
type Message struct {
	Type       string          `json:"type"`
	Subtype    string          `json:"subtype"`
	IsError    bool            `json:"is_error"`
	Result     string          `json:"result"`
	TotalCost  json.RawMessage `json:"total_cost_usd"`
	NumTurns   int             `json:"num_turns"`
	DurationMS int64           `json:"duration_ms"`
	SessionID  string          `json:"session_id"`
}

// Cost returns total_cost_usd as a non-negative number; anything missing or
// non-numeric counts as zero.
func (m Message) Cost() float64 {
	c := jsonutil.ToFloat(m.TotalCost)
	if c < 0 {
		return 0
	}
	return c
}

// Output is the agent's stdout: either a single result object or a sequence
// of messages whose last element carries the result. Exactly one of Single
// and Sequence is set after a successful UnmarshalJSON.
type Output struct {
	Single   *Message
	Sequence []json.RawMessage
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Output) UnmarshalJSON(data []byte) error {
	switch jsonutil.KindOf(data) {
	case jsonutil.KindObject:
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		*o = Output{Single: &m}
	case jsonutil.KindArray:
		var seq []json.RawMessage
		if err := json.Unmarshal(data, &seq); err != nil {
			return err
		}
		if seq == nil {
			seq = []json.RawMessage{}
		}
		*o = Output{Sequence: seq}
	case jsonutil.KindInvalid:
		return ErrEmptyOutput
	default:
		return ErrUnexpectedOutput
	}
	return nil
}

// Final returns the authoritative message: the single object, or the last
// element of the sequence.
func (o Output) Final() (Message, error) {
	if o.Single != nil {
		return *o.Single, nil
	}
	if len(o.Sequence) == 0 {
		return Message{}, ErrEmptyOutput
	}
	last := o.Sequence[len(o.Sequence)-1]
	if jsonutil.KindOf(last) != jsonutil.KindObject {
		return Message{}, fmt.Errorf("%w: last sequence element is not an object", ErrUnexpectedOutput)
	}
	var m Message
	if err := jsonutil.UnmarshalWithContext(last, &m, "decode final message"); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Report is what the loop needs from one agent run.
type Report struct {
	Summary   string
	Cost      float64
	IsError   bool
	NumTurns  int
	SessionID string
}

// Decode parses agent stdout into a Report.
func Decode(stdout string) (Report, error) {
	if jsonutil.KindOf([]byte(stdout)) == jsonutil.KindInvalid {
		return Report{}, ErrEmptyOutput
	}
	var out Output
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		if errors.Is(err, ErrEmptyOutput) || errors.Is(err, ErrUnexpectedOutput) {
			return Report{}, err
		}
		return Report{}, fmt.Errorf("decode agent output: %w", err)
	}
	m, err := out.Final()
	if err != nil {
		return Report{}, err
	}
	return Report{
		Summary:   m.Result,
		Cost:      m.Cost(),
		IsError:   m.IsError,
		NumTurns:  m.NumTurns,
		SessionID: m.SessionID,
	}, nil
}
