package components

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/serial-relay/internal/tui/colors"
	"github.com/allbin/serial-relay/internal/tui/styles"
)

type SendingMode int

const (
	SendingModeASCII SendingMode = iota
	SendingModeHex
)

func (s SendingMode) String() string {
	if s == SendingModeHex {
		return "HEX"
	}
	return "ASCII"
}

const historySize = 100

var ErrEmptyRequest = errors.New("empty request")

// Input is the request line of the monitor. Requests are sent exactly as
// typed, or decoded from hex, with no line ending added.
type Input struct {
	textInput    textinput.Model
	sendingMode  SendingMode
	history      []string
	historyIndex int
	draft        string
	width        int
}

func NewInput() *Input {
	ti := textinput.New()
	ti.Placeholder = "Type a request and press Enter..."
	ti.CharLimit = 512
	ti.Prompt = ""

	return &Input{
		textInput:    ti,
		sendingMode:  SendingModeASCII,
		historyIndex: -1,
	}
}

func (i *Input) SetWidth(width int) {
	i.width = width
	// border, padding, prompt symbol and its space
	i.textInput.Width = max(width-6, 20)
}

func (i *Input) Focus() tea.Cmd {
	return i.textInput.Focus()
}

func (i *Input) Blur() {
	i.textInput.Blur()
}

func (i *Input) Value() string {
	return i.textInput.Value()
}

func (i *Input) SetValue(value string) {
	i.textInput.SetValue(value)
}

func (i *Input) SendingMode() SendingMode {
	return i.sendingMode
}

func (i *Input) ToggleSendingMode() {
	if i.sendingMode == SendingModeASCII {
		i.sendingMode = SendingModeHex
		i.textInput.Placeholder = "Enter hex (e.g. 50494E47 or 50 49 4E 47)..."
	} else {
		i.sendingMode = SendingModeASCII
		i.textInput.Placeholder = "Type a request and press Enter..."
	}
}

// Request returns the bytes to send for the current value
func (i *Input) Request() ([]byte, error) {
	value := i.textInput.Value()
	if i.sendingMode == SendingModeHex {
		return ParseHex(value)
	}
	if value == "" {
		return nil, ErrEmptyRequest
	}
	return []byte(value), nil
}

// ParseHex decodes "50494E47", "50 49 4E 47" or "0x50 0x49" style input
func ParseHex(s string) ([]byte, error) {
	var digits strings.Builder
	for _, tok := range strings.Fields(s) {
		tok = strings.TrimPrefix(tok, "0x")
		tok = strings.TrimPrefix(tok, "0X")
		digits.WriteString(tok)
	}
	if digits.Len() == 0 {
		return nil, ErrEmptyRequest
	}
	b, err := hex.DecodeString(digits.String())
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (i *Input) Update(msg tea.Msg) (*Input, tea.Cmd) {
	var cmd tea.Cmd
	i.textInput, cmd = i.textInput.Update(msg)
	return i, cmd
}

func (i *Input) View(inserting bool) string {
	promptSymbol, promptColor := ">", colors.Green
	if i.sendingMode == SendingModeHex {
		promptSymbol, promptColor = "#", colors.Yellow
	}
	prompt := lipgloss.NewStyle().Foreground(promptColor).Bold(true).Render(promptSymbol)

	content := i.textInput.View()
	if !inserting {
		content = styles.MutedStyle.Render("Press 'i' to send a request through the relay")
	}

	style := styles.InputStyle.
		Width(max(i.width-4, 10)).
		AlignHorizontal(lipgloss.Left)
	if inserting {
		style = style.BorderForeground(colors.Green)
	}
	return style.Render(lipgloss.JoinHorizontal(lipgloss.Left, prompt, " ", content))
}

// AddToHistory records a sent request, skipping blanks and repeats
func (i *Input) AddToHistory(request string) {
	request = strings.TrimSpace(request)
	if request == "" {
		return
	}
	if n := len(i.history); n == 0 || i.history[n-1] != request {
		i.history = append(i.history, request)
		if len(i.history) > historySize {
			i.history = i.history[1:]
		}
	}
	i.historyIndex = -1
	i.draft = ""
}

func (i *Input) HistoryUp() {
	if len(i.history) == 0 {
		return
	}
	if i.historyIndex == -1 {
		i.draft = i.textInput.Value()
		i.historyIndex = len(i.history) - 1
	} else if i.historyIndex > 0 {
		i.historyIndex--
	}
	i.textInput.SetValue(i.history[i.historyIndex])
}

func (i *Input) HistoryDown() {
	if i.historyIndex == -1 {
		return
	}
	if i.historyIndex < len(i.history)-1 {
		i.historyIndex++
		i.textInput.SetValue(i.history[i.historyIndex])
		return
	}
	i.historyIndex = -1
	i.textInput.SetValue(i.draft)
	i.draft = ""
}
