package terminal

import "github.com/stemsi/exstem-client/internal/model"

// ActionKind is what a key press asks the session to do.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionSelect
	ActionNext
	ActionPrevious
	ActionJump
	ActionSubmit
	ActionConfirm
	ActionCancel
	ActionQuit
)

// Action is one decoded key press.
type Action struct {
	Kind   ActionKind
	Choice model.Choice
	Index  int
}

const (
	keyCtrlC = 0x03
	keyEsc   = 0x1b
)

// ParseKeys decodes a chunk read from a raw-mode terminal. Arrow keys arrive
// as ESC [ C / ESC [ D; a lone ESC cancels.
func ParseKeys(buf []byte) []Action {
	var out []Action
	for i := 0; i < len(buf); i++ {
		b := buf[i]
		if b == keyEsc {
			if i+2 < len(buf) && buf[i+1] == '[' {
				switch buf[i+2] {
				case 'C':
					out = append(out, Action{Kind: ActionNext})
				case 'D':
					out = append(out, Action{Kind: ActionPrevious})
				}
				i += 2
				continue
			}
			out = append(out, Action{Kind: ActionCancel})
			continue
		}
		if a := parseKey(b); a.Kind != ActionNone {
			out = append(out, a)
		}
	}
	return out
}

func parseKey(b byte) Action {
	switch b {
	case 'a', 'b', 'c', 'd', 'A', 'B', 'C', 'D':
		c, _ := model.ParseChoice(string(b))
		return Action{Kind: ActionSelect, Choice: c}
	case 'n', 'l', ' ':
		return Action{Kind: ActionNext}
	case 'p', 'h':
		return Action{Kind: ActionPrevious}
	case 's':
		return Action{Kind: ActionSubmit}
	case 'y':
		return Action{Kind: ActionConfirm}
	case 'x':
		return Action{Kind: ActionCancel}
	case 'q', keyCtrlC:
		return Action{Kind: ActionQuit}
	}
	if b >= '1' && b <= '9' {
		return Action{Kind: ActionJump, Index: int(b - '1')}
	}
	return Action{}
}
