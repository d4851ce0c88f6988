// Package tui is a terminal view of the feed. It renders the controller's
// view model, reports its scroll position back through a viewport and shows
// fetch errors as a transient status line.
package tui

import (
	"fmt"
	"time"

	"scrollfeed/feed"
	scroll "scrollfeed/viewport"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"
)

// StatusTimeout is how long an error stays on the status line
const StatusTimeout = 4 * time.Second

// Feed is the part of the controller the view drives
type Feed interface {
	ViewModel() feed.ViewModel
	LoadMore() bool
}

type changedMsg struct{}

type statusMsg struct {
	err error
}

type clearStatusMsg struct {
	id int
}

// Signals carries controller callbacks into the bubbletea event loop. Its
// methods never block, so they are safe to hand to the controller.
type Signals struct {
	changes chan struct{}
	errs    chan error
}

func NewSignals() *Signals {
	return &Signals{
		changes: make(chan struct{}, 1),
		errs:    make(chan error, 8),
	}
}

// OnChange marks the view model stale. The model reads the fresh one itself.
func (s *Signals) OnChange(feed.ViewModel) {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// Notify implements feed.Notifier
func (s *Signals) Notify(err error) {
	select {
	case s.errs <- err:
	default:
		log.WithFields(log.Fields{
			"error": err,
		}).Warn("Status line busy, dropping error")
	}
}

func (s *Signals) waitForChange() tea.Msg {
	<-s.changes
	return changedMsg{}
}

func (s *Signals) waitForError() tea.Msg {
	return statusMsg{err: <-s.errs}
}

type Model struct {
	feed    Feed
	scroll  *scroll.Viewport
	signals *Signals
	now     func() time.Time

	view    viewport.Model
	spinner spinner.Model
	vm      feed.ViewModel
	ready   bool
	width   int
	height  int

	status   string
	statusID int
}

func NewModel(f Feed, pos *scroll.Viewport, signals *Signals) Model {
	return Model{
		feed:    f,
		scroll:  pos,
		signals: signals,
		now:     time.Now,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(noticeStyle)),
		vm:      f.ViewModel(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.signals.waitForChange, m.signals.waitForError)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "m":
			m.feed.LoadMore()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		height := max(1, msg.Height-2) // header and status line
		if !m.ready {
			m.view = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.view.Width = msg.Width
			m.view.Height = height
		}
		m.refresh()
		return m, nil

	case changedMsg:
		m.vm = m.feed.ViewModel()
		m.refresh()
		return m, m.signals.waitForChange

	case statusMsg:
		m.statusID++
		m.status = msg.err.Error()
		id := m.statusID
		return m, tea.Batch(m.signals.waitForError, tea.Tick(StatusTimeout, func(time.Time) tea.Msg {
			return clearStatusMsg{id: id}
		}))

	case clearStatusMsg:
		if msg.id == m.statusID {
			m.status = ""
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.vm.IsLoading || m.vm.IsLoadingMore {
			m.refresh()
		}
		return m, cmd
	}

	if m.ready {
		var cmd tea.Cmd
		m.view, cmd = m.view.Update(msg)
		cmds = append(cmds, cmd)
		m.publish()
	}

	return m, tea.Batch(cmds...)
}

// refresh re-renders the content and reports the resulting position
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.view.SetContent(Render(m.vm, m.width, m.spinner.View(), m.now()))
	m.publish()
}

func (m *Model) publish() {
	pos := scroll.Position{
		Offset:        m.view.YOffset,
		Height:        m.view.Height,
		ContentHeight: m.view.TotalLineCount(),
	}
	if pos != m.scroll.Position() {
		m.scroll.Set(pos)
	}
}

func (m Model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	header := headerStyle.Render(fmt.Sprintf("scrollfeed · %d items", len(m.vm.Items)))

	footer := helpStyle.Render("↑/↓ scroll · m load more · q quit")
	if m.status != "" {
		footer = statusStyle.Render("✗ " + m.status)
	}

	return header + "\n" + m.view.View() + "\n" + footer
}
