package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/apresai/voicebox/internal/studio"
	"github.com/apresai/voicebox/internal/tts"
	"github.com/apresai/voicebox/internal/voices"
)

// field identifies a menu row.
type field int

const (
	fieldMode field = iota
	fieldText
	fieldVoice
	fieldSpeaker1
	fieldSpeaker2
	fieldOutputDir
	fieldPlay
	fieldGenerate
)

// menuItem represents a single configurable option in the TUI.
type menuItem struct {
	field    field
	label    string
	value    string
	options  []menuOption
	required bool
	editing  bool
	cursor   int // cursor within options when editing
}

type menuOption struct {
	label string
	value string
}

// menuState tracks which phase the TUI is in.
type menuState int

const (
	stateMenu menuState = iota
	stateEditing
)

// tuiModel is the Bubble Tea model for the interactive menu.
type tuiModel struct {
	items     []menuItem
	cursor    int
	state     menuState
	width     int
	err       error
	confirmed bool
	cancelled bool

	catalog *voices.Catalog
	text    textarea.Model
	dir     textinput.Model
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			MarginBottom(1)

	menuLabelStyle = lipgloss.NewStyle().
			Width(14).
			Align(lipgloss.Right).
			MarginRight(2)

	menuValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	menuValueDimStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#555555")).
				Italic(true)

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	requiredStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)

	optionStyle = lipgloss.NewStyle().
			PaddingLeft(4)

	selectedOptionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#04B575")).
				Bold(true).
				PaddingLeft(2)

	buttonStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 3)

	buttonDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555555")).
			Padding(0, 3)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)

	editorStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			MarginLeft(4)

	headerBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("#7D56F4")).
			MarginBottom(1).
			PaddingBottom(0)
)

const previewLen = 48

var modeOptions = []menuOption{
	{label: "Single speaker", value: string(tts.ModeSingle)},
	{label: "Two speakers (Speaker 1 / Speaker 2)", value: string(tts.ModeMulti)},
}

var playOptions = []menuOption{
	{label: "No", value: "no"},
	{label: "Yes, play after saving", value: "yes"},
}

// voiceOptions lists the catalog in order as "Descriptor (VoiceID)".
func voiceOptions(catalog *voices.Catalog) []menuOption {
	personas := catalog.Personas()
	opts := make([]menuOption, len(personas))
	for i, p := range personas {
		opts[i] = menuOption{label: fmt.Sprintf("%s (%s)", p.Descriptor, p.ID), value: p.Descriptor}
	}
	return opts
}

// buildMenuItems returns the rows for mode. values carries over entries
// already chosen.
func buildMenuItems(catalog *voices.Catalog, mode tts.Mode, values map[field]string) []menuItem {
	voiceOpts := voiceOptions(catalog)
	val := func(f field, fallback string) string {
		if v, ok := values[f]; ok {
			return v
		}
		return fallback
	}

	items := []menuItem{
		{field: fieldMode, label: "Mode", value: string(mode), options: modeOptions},
		{field: fieldText, label: "Text", value: val(fieldText, ""), required: true},
	}
	if mode == tts.ModeMulti {
		items[1].label = "Transcript"
		items = append(items,
			menuItem{field: fieldSpeaker1, label: "Speaker 1", value: val(fieldSpeaker1, defaultSpeaker1), options: voiceOpts},
			menuItem{field: fieldSpeaker2, label: "Speaker 2", value: val(fieldSpeaker2, defaultSpeaker2), options: voiceOpts},
		)
	} else {
		items = append(items,
			menuItem{field: fieldVoice, label: "Voice", value: val(fieldVoice, voices.DefaultDescriptor), options: voiceOpts},
		)
	}
	items = append(items,
		menuItem{field: fieldOutputDir, label: "Output dir", value: val(fieldOutputDir, "")},
		menuItem{field: fieldPlay, label: "Play", value: val(fieldPlay, "no"), options: playOptions},
		menuItem{field: fieldGenerate},
	)

	for i := range items {
		for j, opt := range items[i].options {
			if opt.value == items[i].value {
				items[i].cursor = j
				break
			}
		}
	}
	return items
}

func initialTUIModel(catalog *voices.Catalog, values map[field]string) tuiModel {
	area := textarea.New()
	area.Placeholder = "Type or paste text. For two speakers use lines like 'Speaker 1: Hi'."
	area.ShowLineNumbers = false
	area.CharLimit = 0
	area.MaxHeight = 0
	area.SetWidth(72)
	area.SetHeight(8)

	dir := textinput.New()
	dir.Placeholder = "."
	dir.Prompt = ""

	mode := tts.ModeSingle
	if values[fieldMode] == string(tts.ModeMulti) {
		mode = tts.ModeMulti
	}
	return tuiModel{
		items:   buildMenuItems(catalog, mode, values),
		state:   stateMenu,
		catalog: catalog,
		text:    area,
		dir:     dir,
	}
}

func (m tuiModel) Init() tea.Cmd {
	return nil
}

func (m tuiModel) generateIdx() int {
	return len(m.items) - 1
}

func (m tuiModel) indexOf(f field) int {
	for i, it := range m.items {
		if it.field == f {
			return i
		}
	}
	return -1
}

func (m tuiModel) value(f field) string {
	if i := m.indexOf(f); i >= 0 {
		return m.items[i].value
	}
	return ""
}

func (m tuiModel) values() map[field]string {
	out := make(map[field]string, len(m.items))
	for _, it := range m.items {
		if it.field != fieldGenerate {
			out[it.field] = it.value
		}
	}
	return out
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if msg.Width > 20 {
			m.text.SetWidth(min(msg.Width-10, 100))
		}
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case stateMenu:
			return m.updateMenu(msg)
		case stateEditing:
			return m.updateEditing(msg)
		}
	}
	return m, nil
}

func (m tuiModel) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.cancelled = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}

	case "enter", " ":
		item := &m.items[m.cursor]
		m.err = nil

		switch item.field {
		case fieldGenerate:
			if _, err := studio.Build(m.catalog, m.input()); err != nil {
				m.err = err
				return m, nil
			}
			m.confirmed = true
			return m, tea.Quit

		case fieldText:
			m.state = stateEditing
			item.editing = true
			m.text.SetValue(item.value)
			return m, m.text.Focus()

		case fieldOutputDir:
			m.state = stateEditing
			item.editing = true
			m.dir.SetValue(item.value)
			m.dir.CursorEnd()
			return m, m.dir.Focus()
		}

		if len(item.options) > 0 {
			m.state = stateEditing
			item.editing = true
		}
	}
	return m, nil
}

func (m tuiModel) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	item := &m.items[m.cursor]

	switch item.field {
	case fieldText:
		// enter inserts a newline; transcripts span lines
		switch msg.String() {
		case "ctrl+s":
			item.value = m.text.Value()
			return m.stopEditing(true), nil
		case "esc":
			return m.stopEditing(false), nil
		}
		var cmd tea.Cmd
		m.text, cmd = m.text.Update(msg)
		return m, cmd

	case fieldOutputDir:
		switch msg.String() {
		case "enter":
			item.value = strings.TrimSpace(m.dir.Value())
			return m.stopEditing(true), nil
		case "esc":
			return m.stopEditing(false), nil
		}
		var cmd tea.Cmd
		m.dir, cmd = m.dir.Update(msg)
		return m, cmd
	}

	// Option selector for other fields
	switch msg.String() {
	case "enter", " ":
		if item.cursor >= 0 && item.cursor < len(item.options) {
			item.value = item.options[item.cursor].value
		}
		if item.field == fieldMode {
			m = m.rebuildForMode(tts.Mode(item.value))
		}
		return m.stopEditing(true), nil

	case "esc":
		return m.stopEditing(false), nil

	case "up", "k":
		if item.cursor > 0 {
			item.cursor--
		}

	case "down", "j":
		if item.cursor < len(item.options)-1 {
			item.cursor++
		}
	}
	return m, nil
}

// stopEditing returns to the menu, advancing the cursor after a commit.
func (m tuiModel) stopEditing(advance bool) tuiModel {
	m.items[m.cursor].editing = false
	m.state = stateMenu
	m.text.Blur()
	m.dir.Blur()
	if advance && m.cursor < len(m.items)-1 {
		m.cursor++
	}
	return m
}

// rebuildForMode swaps the voice rows when the mode changes, keeping
// every value already entered.
func (m tuiModel) rebuildForMode(mode tts.Mode) tuiModel {
	values := m.values()
	values[fieldMode] = string(mode)
	cur := m.items[m.cursor].field
	m.items = buildMenuItems(m.catalog, mode, values)
	if i := m.indexOf(cur); i >= 0 {
		m.cursor = i
	}
	m.items[m.cursor].editing = true
	return m
}

// input converts the menu into a studio.Input.
func (m tuiModel) input() studio.Input {
	mode := tts.Mode(m.value(fieldMode))
	in := studio.Input{Mode: mode, Text: m.value(fieldText)}
	if mode == tts.ModeMulti {
		in.Speaker1Voice = m.value(fieldSpeaker1)
		in.Speaker2Voice = m.value(fieldSpeaker2)
	} else {
		in.Voice = m.value(fieldVoice)
	}
	return in
}

func (m tuiModel) View() string {
	var b strings.Builder

	b.WriteString(headerBorder.Render(titleStyle.Render("Voicebox")))
	b.WriteString("\n")

	genIdx := m.generateIdx()

	for i, item := range m.items {
		isActive := m.cursor == i

		if i == genIdx {
			b.WriteString("\n")
			if isActive {
				b.WriteString("  " + buttonStyle.Render(" Generate "))
			} else {
				b.WriteString("  " + buttonDimStyle.Render(" Generate "))
			}
			b.WriteString("\n")
			continue
		}

		cursor := "  "
		if isActive {
			cursor = cursorStyle.Render("> ")
		}

		label := item.label
		if item.required {
			label = label + requiredStyle.Render("*")
		}
		renderedLabel := menuLabelStyle.Render(label)

		var renderedValue string
		switch {
		case item.editing && item.field == fieldText:
			renderedValue = menuValueDimStyle.Render("(editing below)")
		case item.editing && item.field == fieldOutputDir:
			renderedValue = m.dir.View()
		case item.value == "":
			placeholder := "(not set)"
			if item.field == fieldOutputDir {
				placeholder = "(current directory)"
			}
			renderedValue = menuValueDimStyle.Render(placeholder)
		case item.field == fieldText:
			renderedValue = menuValueStyle.Render(preview(item.value, previewLen))
		default:
			displayVal := item.value
			for _, opt := range item.options {
				if opt.value == item.value {
					displayVal = opt.label
					break
				}
			}
			renderedValue = menuValueStyle.Render(displayVal)
		}

		b.WriteString(cursor + renderedLabel + " " + renderedValue + "\n")

		if item.editing && item.field == fieldText {
			b.WriteString(editorStyle.Render(m.text.View()) + "\n")
		}

		if item.editing && len(item.options) > 0 {
			for j, opt := range item.options {
				if j == item.cursor {
					b.WriteString(selectedOptionStyle.Render("> "+opt.label) + "\n")
				} else {
					b.WriteString(optionStyle.Render("  "+opt.label) + "\n")
				}
			}
		}
	}

	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render("  Error: "+m.err.Error()) + "\n")
	}

	switch {
	case m.state == stateMenu:
		b.WriteString(helpStyle.Render("  j/k or arrows to navigate | enter to edit | q to quit"))
	case m.items[m.cursor].field == fieldText:
		b.WriteString(helpStyle.Render("  type or paste | ctrl+s to confirm | esc to cancel"))
	case m.items[m.cursor].field == fieldOutputDir:
		b.WriteString(helpStyle.Render("  type value | enter to confirm | esc to cancel"))
	default:
		b.WriteString(helpStyle.Render("  j/k or arrows to pick | enter to select | esc to cancel"))
	}
	b.WriteString("\n")

	return b.String()
}

// preview shows the first line of s, shortened to n runes.
func preview(s string, n int) string {
	line, _, more := strings.Cut(strings.TrimSpace(s), "\n")
	r := []rune(line)
	if len(r) > n {
		return string(r[:n]) + "..."
	}
	if more {
		return line + " ..."
	}
	return line
}

// errCancelled is returned when the menu is closed without generating.
var errCancelled = errors.New("cancelled")

// runInteractiveSetup shows the menu and returns the chosen action.
func runInteractiveSetup() (studio.Input, actionOptions, error) {
	values := map[field]string{fieldOutputDir: flagOutputDir}
	if flagPlay {
		values[fieldPlay] = "yes"
	}
	m := initialTUIModel(voices.Default, values)

	p := tea.NewProgram(m, tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return studio.Input{}, actionOptions{}, fmt.Errorf("TUI error: %w", err)
	}

	final := result.(tuiModel)
	if final.cancelled || !final.confirmed {
		return studio.Input{}, actionOptions{}, errCancelled
	}
	return final.input(), final.actionOptions(), nil
}

func (m tuiModel) actionOptions() actionOptions {
	return actionOptions{
		OutputDir: m.value(fieldOutputDir),
		Play:      m.value(fieldPlay) == "yes",
	}
}

// interactiveSetup runs the menu; tests replace it.
var interactiveSetup = runInteractiveSetup

// runInteractive checks configuration and credentials before showing the
// menu, so a missing key is reported without asking for any input.
func runInteractive(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	logger := newLogger()
	b, err := resolveBackend(ctx, logger)
	if err != nil {
		return err
	}

	in, opts, err := interactiveSetup()
	if err != nil {
		return err
	}
	if _, err := studio.Build(voices.Default, in); err != nil {
		return warn(os.Stderr, err)
	}
	return execute(ctx, b, logger, in, opts)
}
