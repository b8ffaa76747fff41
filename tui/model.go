package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"

	"go-ambient/dispatcher"
	"go-ambient/intent"
	"go-ambient/season"
	"go-ambient/theme"
	"go-ambient/theory"
	"go-ambient/widgets"
)

var shortUnits, _ = durafmt.DefaultUnitsCoder.Decode("y:y,wk:w,d:d,h:h,m:m,s:s,ms:ms,us:us")

// Feed is a dispatcher consumer handing intents to the UI. It never blocks
// the forwarder; intents arriving while the buffer is full are not shown.
type Feed struct {
	ch chan intent.Intent
}

func NewFeed(size int) *Feed {
	return &Feed{ch: make(chan intent.Intent, size)}
}

func (f *Feed) Consume(in intent.Intent) {
	select {
	case f.ch <- in:
	default:
	}
}

func (f *Feed) Intents() <-chan intent.Intent {
	return f.ch
}

type IntentMsg struct{ Intent intent.Intent }

type TickMsg time.Time

type Model struct {
	Dispatcher *dispatcher.Dispatcher
	Policy     *season.Policy
	Theme      *theme.Theme
	Status     string // device line shown under the header

	feed       *Feed
	keys       keyMap
	help       help.Model
	history    map[intent.Kind][]intent.Intent
	historyLen int
	autoStart  bool
	started    time.Time
	width      int
	lastErr    string
	quitting   bool
	now        func() time.Time
}

type Option func(*Model)

// WithHistory sets how many intents each lane remembers
func WithHistory(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.historyLen = n
		}
	}
}

// WithAutoStart starts the scheduler when the program starts
func WithAutoStart(on bool) Option {
	return func(m *Model) { m.autoStart = on }
}

func withNow(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// NewModel builds the UI. feed must be subscribed to d.
func NewModel(d *dispatcher.Dispatcher, p *season.Policy, feed *Feed, th *theme.Theme, opts ...Option) Model {
	m := Model{
		Dispatcher: d,
		Policy:     p,
		Theme:      th,
		feed:       feed,
		keys:       defaultKeys(),
		help:       help.New(),
		history:    make(map[intent.Kind][]intent.Intent),
		historyLen: 24,
		width:      72,
		now:        time.Now,
	}
	for _, o := range opts {
		o(&m)
	}
	m.help.Styles.ShortKey = lipgloss.NewStyle().Foreground(th.Accent())
	m.help.Styles.ShortDesc = lipgloss.NewStyle().Foreground(th.Muted())
	m.help.Styles.FullKey = m.help.Styles.ShortKey
	m.help.Styles.FullDesc = m.help.Styles.ShortDesc
	return m
}

func ListenForIntents(feed *Feed) tea.Cmd {
	return func() tea.Msg {
		in, ok := <-feed.Intents()
		if !ok {
			return nil
		}
		return IntentMsg{Intent: in}
	}
}

func tick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

type startMsg struct{}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{ListenForIntents(m.feed), tick()}
	if m.autoStart {
		cmds = append(cmds, func() tea.Msg { return startMsg{} })
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case startMsg:
		m = m.start()

	case IntentMsg:
		k := msg.Intent.Kind()
		h := append(m.history[k], msg.Intent)
		if len(h) > m.historyLen {
			h = h[len(h)-m.historyLen:]
		}
		m.history[k] = h
		return m, ListenForIntents(m.feed)

	case TickMsg:
		if h := m.Dispatcher.Handle(); h == nil && !m.started.IsZero() {
			// loop ended on its own
			m.started = time.Time{}
		}
		return m, tick()
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		if h := m.Dispatcher.Handle(); h != nil {
			h.Stop()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Toggle):
		if h := m.Dispatcher.Handle(); h != nil {
			h.Stop()
			m.started = time.Time{}
		} else {
			m = m.start()
		}

	case key.Matches(msg, m.keys.Season):
		m.Policy.SelectSeason(m.Policy.CurrentSeason().Next())

	case key.Matches(msg, m.keys.Follow):
		m.Policy.SetFollowSeasons(!m.Policy.IsFollowingSeasons())

	case key.Matches(msg, m.keys.Lock):
		cur := m.Policy.CurrentScale()
		m.Policy.LockScale(&cur)

	case key.Matches(msg, m.keys.Root):
		s := m.lockBase()
		s.Root = nextRoot(s.Root)
		m.Policy.LockScale(&s)

	case key.Matches(msg, m.keys.Mode):
		s := m.lockBase()
		s.Mode = nextMode(s.Mode)
		m.Policy.LockScale(&s)

	case key.Matches(msg, m.keys.Unlock):
		m.Policy.LockScale(nil)

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m Model) start() Model {
	h := m.Dispatcher.Start()
	if err := h.Err(); err != nil {
		m.lastErr = err.Error()
		return m
	}
	m.lastErr = ""
	if m.started.IsZero() {
		m.started = m.now()
	}
	return m
}

// lockBase is the scale root and mode edits start from
func (m Model) lockBase() theory.Scale {
	st := m.Policy.Snapshot()
	if st.Locked != nil {
		return *st.Locked
	}
	return st.Current
}

// nextRoot steps the root a semitone up, wrapping within its octave
func nextRoot(root int) int {
	pc := ((root % 12) + 12) % 12
	return root - pc + (pc+1)%12
}

func nextMode(mode theory.Mode) theory.Mode {
	modes := theory.Modes()
	for i, md := range modes {
		if md == mode {
			return modes[(i+1)%len(modes)]
		}
	}
	return modes[0]
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent()).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	fgStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())
	warnStyle := lipgloss.NewStyle().Foreground(m.Theme.Warning())

	st := m.Policy.Snapshot()

	runState := string(m.Theme.Symbols.Stopped) + " STOP"
	uptime := ""
	if m.Dispatcher.Running() {
		runState = string(m.Theme.Symbols.Running) + " RUN "
		if !m.started.IsZero() {
			d := m.now().Sub(m.started).Truncate(time.Second)
			uptime = "up " + durafmt.Parse(d).LimitFirstN(2).Format(shortUnits)
		}
	}

	mode := string(m.Theme.Symbols.Follow) + " follow"
	switch {
	case st.Follow && st.Selected != nil:
		mode = fmt.Sprintf("%c follow (%s)", m.Theme.Symbols.Follow, *st.Selected)
	case !st.Follow && st.Locked != nil:
		mode = string(m.Theme.Symbols.Lock) + " locked"
	case !st.Follow:
		mode = string(m.Theme.Symbols.Lock) + " seasonal"
	}

	header := headerStyle.Render("go-ambient") + "  " +
		fgStyle.Render(fmt.Sprintf("%s  %-14s %-7s  %s", runState, st.Current, st.Season, mode)) +
		"  " + dimStyle.Render(uptime)

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n")
	if m.Status != "" {
		out.WriteString(dimStyle.Render(m.Status))
		out.WriteString("\n")
	}
	if m.lastErr != "" {
		out.WriteString(warnStyle.Render(m.lastErr))
		out.WriteString("\n")
	}
	out.WriteString("\n")

	cadence := m.Dispatcher.Stats()
	for _, k := range intent.Kinds() {
		s := cadence.Snapshot(k)
		count := humanize.Comma(int64(s.Count))
		if s.Count > 1 {
			count += fmt.Sprintf("  ~%.1fs", s.MeanGap.Seconds())
		}
		lane := widgets.Lane{
			Kind:   k,
			Color:  m.Theme.Stream(k),
			Muted:  m.Theme.Muted(),
			Glyph:  m.Theme.Glyph(k),
			Rest:   m.Theme.Symbols.Rest,
			Count:  count,
			Recent: m.history[k],
		}
		out.WriteString(lane.Render(m.width))
		out.WriteString("\n\n")
	}

	out.WriteString(m.help.View(m.keys))
	return out.String()
}
