package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cwygoda/sts/internal/progress"
)

type menuChoice int

const (
	choiceCancel menuChoice = iota
	choiceEncrypt
	choiceDecrypt
)

var errInvalidChoice = errors.New("invalid choice")

var menuItems = []struct {
	key    string
	label  string
	choice menuChoice
}{
	{"e", "encrypt", choiceEncrypt},
	{"d", "decrypt", choiceDecrypt},
	{"c", "cancel", choiceCancel},
}

// choose asks for the action, with a menu on a terminal and a line prompt
// otherwise.
func (a *App) choose() (menuChoice, error) {
	if in, ok := a.In.(*os.File); ok && progress.IsTerminal(in) {
		return runMenu(in, a.Out)
	}
	return promptLine(a.In, a.Out)
}

// parseChoice maps a prompt answer to an action. An empty answer cancels.
func parseChoice(s string) (menuChoice, error) {
	switch strings.TrimSpace(s) {
	case "e", "E":
		return choiceEncrypt, nil
	case "d", "D":
		return choiceDecrypt, nil
	case "c", "C", "":
		return choiceCancel, nil
	default:
		return choiceCancel, errInvalidChoice
	}
}

func promptLine(in io.Reader, out io.Writer) (menuChoice, error) {
	for _, item := range menuItems {
		fmt.Fprintf(out, "\t[%s] %s\n", item.key, item.label)
	}
	fmt.Fprint(out, "(e/d/c):")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return choiceCancel, err
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, divider)
	return parseChoice(line)
}

var (
	menuSelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
	menuHintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	menuTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
)

type menuModel struct {
	cursor int
	choice menuChoice
	done   bool
}

func runMenu(in io.Reader, out io.Writer) (menuChoice, error) {
	p := tea.NewProgram(menuModel{}, tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return choiceCancel, err
	}
	if m, ok := final.(menuModel); ok {
		return m.choice, nil
	}
	return choiceCancel, nil
}

func (m menuModel) Init() tea.Cmd {
	return nil
}

func (m menuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "esc", "q":
		return m.pick(choiceCancel)
	case "up", "k", "shift+tab":
		m.cursor = (m.cursor + len(menuItems) - 1) % len(menuItems)
	case "down", "j", "tab":
		m.cursor = (m.cursor + 1) % len(menuItems)
	case "enter":
		return m.pick(menuItems[m.cursor].choice)
	case "e", "E", "d", "D", "c", "C":
		choice, _ := parseChoice(key.String())
		return m.pick(choice)
	}
	return m, nil
}

func (m menuModel) pick(choice menuChoice) (tea.Model, tea.Cmd) {
	m.choice = choice
	m.done = true
	return m, tea.Quit
}

func (m menuModel) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder
	b.WriteString(menuTitleStyle.Render("Choose an action") + "\n\n")
	for i, item := range menuItems {
		line := fmt.Sprintf(" [%s] %s ", item.key, item.label)
		if i == m.cursor {
			line = menuSelStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + menuHintStyle.Render("up/down to move, enter to select, e/d/c as shortcuts"))
	return b.String()
}
