// Package transition classifies how a check's outcome changed between two
// consecutive rounds.
package transition

// State is the classification of a (previous, current) outcome pair.
type State string

const (
	TrueToTrue   State = "true_to_true"
	TrueToFalse  State = "true_to_false"
	FalseToTrue  State = "false_to_true"
	FalseToFalse State = "false_to_false"
)

// Alertable reports whether the state is a change worth notifying about.
func (s State) Alertable() bool {
	return s == TrueToFalse || s == FalseToTrue
}

// Message is the rendered outcome of one check across two rounds.
type Message struct {
	Key      string `json:"key,omitempty"`
	Label    string `json:"label"`
	Text     string `json:"text"`
	Previous bool   `json:"previous"`
	Current  bool   `json:"current"`
	State    State  `json:"state"`
}

// Evaluate classifies the pair and renders "<label> <okText|notOkText>" from the
// current outcome. A nil prev means there was no prior round and counts as false.
func Evaluate(prev *bool, curr bool, label, okText, notOkText string) Message {
	was := prev != nil && *prev

	var state State
	switch {
	case was && curr:
		state = TrueToTrue
	case was && !curr:
		state = TrueToFalse
	case !was && curr:
		state = FalseToTrue
	default:
		state = FalseToFalse
	}

	text := notOkText
	if curr {
		text = okText
	}

	return Message{
		Label:    label,
		Text:     label + " " + text,
		Previous: was,
		Current:  curr,
		State:    state,
	}
}

// Alertable returns the messages whose state is alert-worthy.
func Alertable(msgs []Message) []Message {
	var out []Message
	for _, m := range msgs {
		if m.State.Alertable() {
			out = append(out, m)
		}
	}
	return out
}
