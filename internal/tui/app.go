// internal/tui/app.go
//
// The presentation consumer. It lives in the driver process, not the worker:
// a hang in the external solver can never freeze this view. Every ~100 ms
// tick it drains all pending events from the queue and re-renders.
//
// Phases with no incremental feedback are covered by the animation: on
// start_animation the view extrapolates stage progress locally from zero to
// the end value over the estimated duration, and end_animation snaps to the
// true value, correcting any drift. The animation is presentation-only.

package tui

import (
	"strings"
	"time"

	pbar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"fieldrun/internal/progress"
)

const pollInterval = 100 * time.Millisecond

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Width(10)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type tickMsg time.Time

// Drainer is the consumer's view of the event queue.
type Drainer interface {
	Drain() []progress.Event
}

type animState struct {
	active    bool
	startedAt time.Time
	estimate  float64
	endValue  float64
}

// App is the bubbletea model for one unit's solve.
type App struct {
	queue  Drainer
	cancel func()
	unitID string

	overallBar pbar.Model
	stageBar   pbar.Model
	spin       spinner.Model

	status     string
	overall    float64
	stageName  string
	stageFrac  float64
	anim       animState
	warnings   []string
	cancelling bool
	done       bool
	width      int

	now func() time.Time
}

// Option customizes App construction for tests.
type Option func(*App)

// WithClock injects a deterministic clock.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		if now != nil {
			a.now = now
		}
	}
}

// New builds the consumer. cancel is invoked once when the user requests a
// stop; it should signal the worker process.
func New(queue Drainer, unitID string, cancel func(), opts ...Option) *App {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	a := &App{
		queue:      queue,
		cancel:     cancel,
		unitID:     unitID,
		overallBar: pbar.New(pbar.WithDefaultGradient()),
		stageBar:   pbar.New(pbar.WithSolidFill("63")),
		spin:       sp,
		status:     "starting",
		now:        time.Now,
		width:      80,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init starts the spinner and the poll loop.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spin.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles one bubbletea message.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		barWidth := msg.Width - 14
		if barWidth > 10 {
			a.overallBar.Width = barWidth
			a.stageBar.Width = barWidth
		}
		return a, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			a.requestStop()
		}
		return a, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd
	case tickMsg:
		for _, event := range a.queue.Drain() {
			a.apply(event)
		}
		if a.done {
			return a, tea.Quit
		}
		return a, tick()
	}
	return a, nil
}

func (a *App) requestStop() {
	if a.cancelling {
		return
	}
	a.cancelling = true
	a.status = "stopping after current cleanup"
	if a.cancel != nil {
		a.cancel()
	}
}

// apply folds one event into the view state. The variant set is closed;
// decode already rejected anything else.
func (a *App) apply(e progress.Event) {
	switch e.Kind {
	case progress.KindStatus:
		a.status = e.Message
		if strings.Contains(e.Message, "error") || strings.Contains(e.Message, "warning") {
			a.warnings = appendBounded(a.warnings, e.Message, 5)
		}
	case progress.KindOverall:
		a.overall = e.Fraction()
	case progress.KindStage:
		a.stageName = e.Name
		if !a.anim.active {
			a.stageFrac = e.Fraction()
		}
	case progress.KindStartAnimation:
		a.anim = animState{
			active:    true,
			startedAt: a.now(),
			estimate:  e.EstimateSeconds,
			endValue:  e.EndValue,
		}
		a.stageFrac = 0
	case progress.KindEndAnimation:
		if a.anim.active {
			a.stageFrac = a.anim.endValue
		}
		a.anim.active = false
	case progress.KindStop:
		a.cancelling = true
		a.status = "stop acknowledged by worker"
	case progress.KindFinished:
		a.done = true
	}
}

// stageValue returns what the stage bar should show right now: the animated
// extrapolation while an animation runs, the last authoritative fraction
// otherwise.
func (a *App) stageValue() float64 {
	if !a.anim.active || a.anim.estimate <= 0 {
		return a.stageFrac
	}
	elapsed := a.now().Sub(a.anim.startedAt).Seconds()
	ratio := elapsed / a.anim.estimate
	if ratio > 1 {
		ratio = 1
	}
	if ratio < 0 {
		ratio = 0
	}
	return ratio * a.anim.endValue
}

// View renders the current state.
func (a *App) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("fieldrun · "+a.unitID) + "\n\n")

	if a.done {
		b.WriteString(statusStyle.Render("finished") + "\n")
	} else {
		b.WriteString(a.spin.View() + " " + statusStyle.Render(a.status) + "\n")
	}
	b.WriteString(labelStyle.Render("overall") + " " + a.overallBar.ViewAs(a.overall) + "\n")
	stage := a.stageName
	if stage == "" {
		stage = "stage"
	}
	b.WriteString(labelStyle.Render(stage) + " " + a.stageBar.ViewAs(a.stageValue()) + "\n")
	for _, warning := range a.warnings {
		b.WriteString(warnStyle.Render("! "+warning) + "\n")
	}
	if !a.done {
		b.WriteString("\n" + helpStyle.Render("q: stop after cleanup") + "\n")
	}
	return b.String()
}

// Done reports whether the finished event arrived, for the driver's plain
// mode and for tests.
func (a *App) Done() bool {
	return a.done
}

func appendBounded(items []string, item string, max int) []string {
	items = append(items, item)
	if len(items) > max {
		items = items[len(items)-max:]
	}
	return items
}
