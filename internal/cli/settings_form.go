package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"autoclipper/internal/config"
)

var (
	formTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	formMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	formErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	formPanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type formFieldKind int

const (
	formFieldString formFieldKind = iota
	formFieldInt
	formFieldBool
	formFieldSelect
)

type formField struct {
	Key      string
	Label    string
	Help     string
	Kind     formFieldKind
	Value    string
	Options  []string
	Required bool
}

type settingsForm struct {
	Title  string
	Fields []formField
	Index  int
	Input  textinput.Model
	Error  string
	Saving bool
}

// settingsFormModel edits the persisted defaults. With askURL set it is the
// setup screen of `run --tui` and also collects the playlist URL.
type settingsFormModel struct {
	configPath string
	base       config.Settings
	form       *settingsForm
	width      int

	url      string
	saved    *config.Settings
	canceled bool
}

type settingsSavedMsg struct {
	settings config.Settings
	err      error
}

func newSettingsFormModel(configPath string, s config.Settings, askURL bool, width int) settingsFormModel {
	return settingsFormModel{
		configPath: configPath,
		base:       s,
		form:       newSettingsForm(s, askURL, width),
		width:      width,
	}
}

func newSettingsForm(s config.Settings, askURL bool, width int) *settingsForm {
	f := &settingsForm{Title: "autoclipper settings"}
	if askURL {
		f.Title = "autoclipper run"
		f.Fields = append(f.Fields, formField{Key: "url", Label: "Playlist URL", Help: "YouTube playlist to clip", Kind: formFieldString, Required: true})
	}
	f.Fields = append(f.Fields,
		formField{Key: "clip_length", Label: "Clip Length", Help: "Seconds per clip; the last clip may be shorter", Kind: formFieldInt, Value: strconv.Itoa(s.ClipLength)},
		formField{Key: "format", Label: "Format", Help: "Container for downloads and clips", Kind: formFieldSelect, Value: defaultIfEmpty(s.Format, config.DefaultFormat), Options: config.SupportedFormats},
		formField{Key: "mute", Label: "Mute", Help: "Strip audio from clips", Kind: formFieldBool, Value: boolToYN(s.Mute)},
		formField{Key: "delete_original", Label: "Delete Original", Help: "Remove each downloaded video once it is clipped", Kind: formFieldBool, Value: boolToYN(s.DeleteOriginal)},
		formField{Key: "output_dir", Label: "Output Dir", Help: "Where videos, clips and the run log go", Kind: formFieldString, Value: s.OutputDir, Required: true},
		formField{Key: "install_dir", Label: "Install Dir", Help: "Where yt-dlp, ffmpeg and ffprobe live", Kind: formFieldString, Value: s.InstallDir, Required: true},
		formField{Key: "cookies_path", Label: "Cookies File", Help: "Optional cookies.txt for private playlists", Kind: formFieldString, Value: s.CookiesPath},
		formField{Key: "browser_cookies", Label: "Browser Cookies", Help: "Optional browser name, e.g. chrome, edge, firefox", Kind: formFieldString, Value: s.CookiesFromBrowser},
	)

	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 2048
	input.Width = clampInt(width-8, 20, 120)
	f.Input = input
	f.loadFieldIntoInput()
	f.Input.Focus()
	return f
}

func (m settingsFormModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m settingsFormModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.form.Input.Width = clampInt(msg.Width-8, 20, 120)
		return m, nil
	case settingsSavedMsg:
		m.form.Saving = false
		if msg.err != nil {
			m.form.Error = "error: " + msg.err.Error()
			return m, nil
		}
		saved := msg.settings
		m.saved = &saved
		return m, tea.Quit
	case tea.KeyMsg:
		return m.updateForm(msg)
	}
	var cmd tea.Cmd
	m.form.Input, cmd = m.form.Input.Update(msg)
	return m, cmd
}

func (m settingsFormModel) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.form.Saving {
		return m, nil
	}

	key := strings.ToLower(msg.String())
	kind := m.form.currentField().Kind
	switch key {
	case "ctrl+c", "esc":
		m.canceled = true
		return m, tea.Quit
	case "up", "shift+tab":
		m.form.commitInput()
		if m.form.Index > 0 {
			m.form.Index--
		}
		m.form.loadFieldIntoInput()
		return m, nil
	case "down", "tab":
		m.form.commitInput()
		if m.form.Index < len(m.form.Fields)-1 {
			m.form.Index++
		}
		m.form.loadFieldIntoInput()
		return m, nil
	case " ", "space", "right", "l":
		if kind == formFieldBool {
			m.form.toggleBoolField()
			return m, nil
		}
		if kind == formFieldSelect {
			m.form.stepSelectOption(1)
			return m, nil
		}
	case "left", "h":
		if kind == formFieldBool {
			m.form.toggleBoolField()
			return m, nil
		}
		if kind == formFieldSelect {
			m.form.stepSelectOption(-1)
			return m, nil
		}
	case "y", "n":
		if kind == formFieldBool {
			m.form.setBoolField(key == "y")
			return m, nil
		}
	case "enter", "ctrl+s":
		m.form.commitInput()
		if m.form.Index < len(m.form.Fields)-1 && key != "ctrl+s" {
			m.form.Index++
			m.form.loadFieldIntoInput()
			return m, nil
		}
		s, url, err := m.form.toSettings(m.base)
		if err != nil {
			m.form.Error = err.Error()
			return m, nil
		}
		m.form.Error = ""
		m.form.Saving = true
		m.url = url
		return m, saveSettingsCmd(m.configPath, s)
	}

	if kind == formFieldBool || kind == formFieldSelect {
		return m, nil
	}
	var cmd tea.Cmd
	m.form.Input, cmd = m.form.Input.Update(msg)
	m.form.Fields[m.form.Index].Value = m.form.Input.Value()
	return m, cmd
}

func (m settingsFormModel) View() string {
	width := m.width
	if width <= 0 {
		width = 100
	}
	header := formTitleStyle.Render(m.form.Title)
	hints := formMutedStyle.Render("tab/shift+tab or up/down: move | left/right/space: toggle | y/n: set yes/no | enter: next/save | ctrl+s: save | esc: cancel")

	lines := make([]string, 0, len(m.form.Fields))
	for i, f := range m.form.Fields {
		prefix := "  "
		if i == m.form.Index {
			prefix = "> "
		}
		display := strings.TrimSpace(f.Value)
		if f.Kind == formFieldBool {
			v, _ := parseBool(display)
			display = yesNo(v)
		}
		if display == "" {
			display = formMutedStyle.Render("(empty)")
		}
		if f.Kind == formFieldSelect {
			display = "[" + display + "]"
		}
		lines = append(lines, truncateLine(fmt.Sprintf("%s%s: %s", prefix, f.Label, display), max(width-6, 20)))
	}

	curr := m.form.currentField()
	body := strings.Join(lines, "\n") + "\n\n" + curr.Label + "\n"
	if strings.TrimSpace(curr.Help) != "" {
		body += formMutedStyle.Render(curr.Help) + "\n"
	}
	body += m.form.Input.View()
	if m.form.Saving {
		body += formMutedStyle.Render("\nSaving...")
	}
	if strings.TrimSpace(m.form.Error) != "" {
		body += "\n" + formErrorStyle.Render(m.form.Error)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, hints, formPanelStyle.Width(max(width-2, 40)).Render(body)) + "\n"
}

func saveSettingsCmd(configPath string, s config.Settings) tea.Cmd {
	return func() tea.Msg {
		saved, err := config.SaveSettings(configPath, s)
		return settingsSavedMsg{settings: saved, err: err}
	}
}

func (f *settingsForm) currentField() formField {
	if len(f.Fields) == 0 {
		return formField{}
	}
	f.Index = clampInt(f.Index, 0, len(f.Fields)-1)
	return f.Fields[f.Index]
}

func (f *settingsForm) commitInput() {
	if len(f.Fields) == 0 {
		return
	}
	f.Fields[f.Index].Value = strings.TrimSpace(f.Input.Value())
}

func (f *settingsForm) loadFieldIntoInput() {
	if len(f.Fields) == 0 {
		return
	}
	f.Input.SetValue(f.Fields[f.Index].Value)
	f.Input.CursorEnd()
}

func (f *settingsForm) toggleBoolField() {
	v, _ := parseBool(f.Fields[f.Index].Value)
	f.setBoolField(!v)
}

func (f *settingsForm) setBoolField(v bool) {
	if f.Fields[f.Index].Kind != formFieldBool {
		return
	}
	f.Fields[f.Index].Value = boolToYN(v)
	f.loadFieldIntoInput()
}

func (f *settingsForm) stepSelectOption(delta int) {
	curr := f.Fields[f.Index]
	if curr.Kind != formFieldSelect || len(curr.Options) == 0 {
		return
	}
	pos := 0
	for i, opt := range curr.Options {
		if strings.EqualFold(opt, strings.TrimSpace(curr.Value)) {
			pos = i
			break
		}
	}
	n := len(curr.Options)
	f.Fields[f.Index].Value = curr.Options[((pos+delta)%n+n)%n]
	f.loadFieldIntoInput()
}

// toSettings validates the form and applies it over base. The URL is empty
// unless the form asked for one.
func (f *settingsForm) toSettings(base config.Settings) (config.Settings, string, error) {
	if f == nil {
		return config.Settings{}, "", errors.New("internal form error")
	}
	vals := make(map[string]string, len(f.Fields))
	for _, field := range f.Fields {
		v := strings.TrimSpace(field.Value)
		if field.Required && v == "" {
			return config.Settings{}, "", fmt.Errorf("%s is required", strings.ToLower(field.Label))
		}
		switch field.Kind {
		case formFieldInt:
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return config.Settings{}, "", fmt.Errorf("%s must be an integer >= 1", strings.ToLower(field.Label))
			}
		case formFieldBool:
			if _, ok := parseBool(v); !ok {
				return config.Settings{}, "", fmt.Errorf("%s must be y or n", strings.ToLower(field.Label))
			}
		case formFieldSelect:
			if !config.ValidFormat(v) {
				return config.Settings{}, "", fmt.Errorf("%s has invalid value", strings.ToLower(field.Label))
			}
			v = config.NormalizeFormat(v)
		}
		vals[field.Key] = v
	}

	s := base
	s.ClipLength, _ = strconv.Atoi(vals["clip_length"])
	s.Format = vals["format"]
	s.Mute, _ = parseBool(vals["mute"])
	s.DeleteOriginal, _ = parseBool(vals["delete_original"])
	s.OutputDir = vals["output_dir"]
	s.InstallDir = vals["install_dir"]
	s.CookiesPath = vals["cookies_path"]
	s.CookiesFromBrowser = vals["browser_cookies"]
	return s, vals["url"], nil
}

// runSettingsForm shows the form and returns the saved settings and URL.
// ok is false when the user left without saving.
func runSettingsForm(configPath string, s config.Settings, askURL bool) (config.Settings, string, bool, error) {
	if !stdinIsTTY() {
		return config.Settings{}, "", false, errors.New("the settings form requires an interactive terminal (TTY)")
	}
	final, err := tea.NewProgram(newSettingsFormModel(configPath, s, askURL, 0), tea.WithAltScreen()).Run()
	if err != nil {
		return config.Settings{}, "", false, err
	}
	fm, ok := final.(settingsFormModel)
	if !ok || fm.canceled || fm.saved == nil {
		return config.Settings{}, "", false, nil
	}
	return *fm.saved, fm.url, true, nil
}
