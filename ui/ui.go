// Package ui provides the interactive voice picker.
package ui

import (
	"context"
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/sahilm/fuzzy"

	"github.com/dgnsrekt/vox/tts"
)

type state int

const (
	stateLoadingVoices state = iota
	stateBrowsing
)

type (
	voicesLoadedMsg []tts.Voice
	errMsg          struct{ err error }
)

// PickVoice runs the interactive picker and returns the chosen voice, or
// nil when the user cancels.
func PickVoice(ctx context.Context, svc *tts.Service, cfg Config) (*tts.Voice, error) {
	log.Debug("Starting voice picker", "query", cfg.InitialQuery)

	m := newModel(ctx, svc, cfg)
	out, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return nil, fmt.Errorf("unable to run picker: %w", err)
	}

	final, ok := out.(model)
	if !ok {
		return nil, fmt.Errorf("unexpected picker model type %T", out)
	}
	if final.err != nil {
		return nil, final.err
	}
	return final.selected, nil
}

// voiceItem adapts a Voice for the list bubble.
type voiceItem struct {
	voice tts.Voice
}

func (i voiceItem) Title() string { return i.voice.Name }

func (i voiceItem) Description() string {
	desc := i.voice.ID
	if i.voice.Category != "" {
		desc += " · " + i.voice.Category
	}
	return desc
}

func (i voiceItem) FilterValue() string { return i.voice.Name + " " + i.voice.ID }

// filterVoices ranks list items by fuzzy match quality over name and id.
func filterVoices(term string, targets []string) []list.Rank {
	ranks := fuzzy.Find(term, targets)
	result := make([]list.Rank, len(ranks))
	for i, r := range ranks {
		result[i] = list.Rank{
			Index:          r.Index,
			MatchedIndexes: r.MatchedIndexes,
		}
	}
	return result
}

type keyMap struct {
	choose  key.Binding
	copyID  key.Binding
	dismiss key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		choose: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "choose"),
		),
		copyID: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "copy voice id"),
		),
		dismiss: key.NewBinding(
			key.WithKeys("esc", "q"),
			key.WithHelp("esc", "cancel"),
		),
	}
}

type model struct {
	ctx  context.Context
	svc  *tts.Service
	cfg  Config
	keys keyMap

	state    state
	spinner  spinner.Model
	list     list.Model
	selected *tts.Voice
	err      error
}

func newModel(ctx context.Context, svc *tts.Service, cfg Config) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	delegate := list.NewDefaultDelegate()
	l := list.New(nil, delegate, 0, 0)
	l.Title = "ElevenLabs Voices"
	l.Styles.Title = titleStyle
	l.Filter = filterVoices
	l.SetFilteringEnabled(true)
	l.SetShowStatusBar(true)

	keys := defaultKeyMap()
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{keys.choose, keys.copyID}
	}

	return model{
		ctx:     ctx,
		svc:     svc,
		cfg:     cfg,
		keys:    keys,
		state:   stateLoadingVoices,
		spinner: sp,
		list:    l,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadVoices)
}

// loadVoices fetches the sorted voice list through the service.
func (m model) loadVoices() tea.Msg {
	voices, err := m.svc.ListVoices(m.ctx)
	if err != nil {
		return errMsg{err}
	}
	return voicesLoadedMsg(voices)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h, v := appStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v)
		return m, nil

	case voicesLoadedMsg:
		items := make([]list.Item, len(msg))
		for i, v := range msg {
			items[i] = voiceItem{voice: v}
		}
		m.state = stateBrowsing
		cmd := m.list.SetItems(items)
		if m.cfg.InitialQuery != "" {
			m.list.SetFilterText(m.cfg.InitialQuery)
		}
		log.Debug("Voices loaded", "count", len(msg))
		return m, cmd

	case errMsg:
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		if m.state == stateLoadingVoices {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		// While the filter input has focus the list gets every key.
		if m.list.FilterState() == list.Filtering {
			break
		}

		switch {
		case key.Matches(msg, m.keys.choose):
			if item, ok := m.list.SelectedItem().(voiceItem); ok {
				v := item.voice
				m.selected = &v
				return m, tea.Quit
			}

		case key.Matches(msg, m.keys.copyID):
			if item, ok := m.list.SelectedItem().(voiceItem); ok {
				// Copy using native system clipboard
				_ = clipboard.WriteAll(item.voice.ID)
				return m, m.list.NewStatusMessage(statusStyle.Render("Copied " + item.voice.ID))
			}

		case key.Matches(msg, m.keys.dismiss):
			return m, tea.Quit

		case msg.String() == "ctrl+c":
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.state == stateLoadingVoices {
		return appStyle.Render(m.spinner.View() + " Fetching voices…")
	}
	return appStyle.Render(m.list.View())
}
