package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	internalstorage "github.com/jcourtner/wayfarer/internal/storage"
	"github.com/jcourtner/wayfarer/pkg/character"
	"github.com/jcourtner/wayfarer/pkg/travel"
)

const pollInterval = time.Second

// ConsoleUI is the BubbleTea model that runs the travel monitor.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config   *ConsoleConfig
	store    *internalstorage.RedisStore
	char     *character.Character
	recent   []travel.Encounter
	progress progress.Model
	width    int
	height   int
	err      error

	// First sighting of the current journey, used to interpolate the
	// progress bar. The departure time itself is not persisted.
	journeySeen time.Time
	journeyDest string
}

type characterMsg struct {
	char   *character.Character
	recent []travel.Encounter
	err    error
}

type pollTickMsg struct{}

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	travelingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")). // yellow
			Bold(true)

	encounterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")) // purple

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2)
)

func NewConsoleUI(cfg *ConsoleConfig, store *internalstorage.RedisStore) ConsoleUI {
	return ConsoleUI{
		config:   cfg,
		store:    store,
		progress: progress.New(progress.WithDefaultGradient()),
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(m.fetchCharacter(), pollTick())
}

func pollTick() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg {
		return pollTickMsg{}
	})
}

func (m ConsoleUI) fetchCharacter() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		c, err := m.store.LoadCharacter(ctx, m.config.GuildID, m.config.UserID)
		if err != nil {
			return characterMsg{err: err}
		}

		// Encounter history is advisory; ignore lookup failures.
		var recent []travel.Encounter
		entries, err := m.store.RecentEncounters(ctx, m.config.GuildID, m.config.UserID)
		if err == nil {
			for _, entry := range entries {
				var e travel.Encounter
				if json.Unmarshal([]byte(entry), &e) == nil {
					recent = append(recent, e)
				}
			}
		}
		return characterMsg{char: c, recent: recent}
	}
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 12
		if m.progress.Width > 60 {
			m.progress.Width = 60
		}

	case pollTickMsg:
		return m, tea.Batch(m.fetchCharacter(), pollTick())

	case characterMsg:
		m.err = msg.err
		if msg.err == nil {
			m.char = msg.char
			m.recent = msg.recent
			m.trackJourney()
		}
	}
	return m, nil
}

func (m *ConsoleUI) trackJourney() {
	if m.char == nil || !m.char.IsTraveling {
		m.journeySeen = time.Time{}
		m.journeyDest = ""
		return
	}
	if m.char.TravelDestination != m.journeyDest {
		m.journeySeen = time.Now()
		m.journeyDest = m.char.TravelDestination
	}
}

func (m ConsoleUI) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Wayfarer Travel Monitor"))
	b.WriteString("\n\n")

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	case m.char == nil:
		b.WriteString(labelStyle.Render(fmt.Sprintf(
			"No character found for user %s in guild %s.",
			m.config.UserID, m.config.GuildID)))
	default:
		b.WriteString(m.characterView())
	}

	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render("q: quit"))
	return panelStyle.Render(b.String())
}

func (m ConsoleUI) characterView() string {
	var b strings.Builder
	c := m.char

	name := c.Name
	if name == "" {
		name = c.UserID
	}
	b.WriteString(fmt.Sprintf("%s %s\n",
		labelStyle.Render("Character:"), valueStyle.Render(name)))
	b.WriteString(fmt.Sprintf("%s %s\n",
		labelStyle.Render("Location: "), valueStyle.Render(orDash(c.CurrentArea))))

	if c.IsTraveling {
		b.WriteString(fmt.Sprintf("%s %s\n\n",
			labelStyle.Render("Status:   "),
			travelingStyle.Render("Traveling to "+c.TravelDestination)))

		end := c.TravelEnd()
		pct := travelProgress(end, m.journeySeen)
		b.WriteString(m.progress.ViewAs(pct))
		b.WriteString("\n")
		if remaining := time.Until(end); remaining > 0 {
			b.WriteString(labelStyle.Render(
				fmt.Sprintf("Arriving %s", humanize.Time(end))))
		} else {
			b.WriteString(labelStyle.Render("Arriving any moment now"))
		}
	} else {
		b.WriteString(fmt.Sprintf("%s %s\n",
			labelStyle.Render("Status:   "), valueStyle.Render("Idle")))
	}

	if len(m.recent) > 0 {
		b.WriteString("\n\n")
		b.WriteString(labelStyle.Render("Recent encounters:"))
		for _, e := range m.recent {
			b.WriteString("\n  ")
			b.WriteString(encounterStyle.Render(fmt.Sprintf("[%s] %s", e.Type, e.Name)))
		}
	}
	return b.String()
}

// travelProgress estimates completion from the persisted end time. The
// start time is not persisted, so the bar interpolates from first sight of
// the traveling record.
func travelProgress(end, seen time.Time) float64 {
	if end.IsZero() {
		return 0
	}
	total := end.Sub(seen)
	if total <= 0 {
		return 1
	}
	elapsed := time.Since(seen)
	p := float64(elapsed) / float64(total)
	if p > 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
