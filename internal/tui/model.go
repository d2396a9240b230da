package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nerrad567/btscanner/internal/discovery"
	"github.com/nerrad567/btscanner/internal/permission"
	"github.com/nerrad567/btscanner/internal/session"
)

// Session is the part of a discovery session the screen drives.
type Session interface {
	Subscribe() (<-chan session.Update, func())
	Devices(ctx context.Context) ([]discovery.Row, error)
	Status(ctx context.Context) (session.Status, error)
	Detail(ctx context.Context, address string) (session.Dialog, error)
	About() session.Dialog
	Scan(ctx context.Context) error
	Stop(ctx context.Context) error
}

const (
	defaultTitle         = "Bluetooth devices"
	defaultToastTTL      = 3 * time.Second
	defaultActionTimeout = 5 * time.Second
	defaultVisibleRows   = 8
	maxToasts            = 3
	endDelay             = 1500 * time.Millisecond

	// lines used by everything except the device rows
	chromeLines = 9
	rowLines    = 2
)

// Options configures a Model.
type Options struct {
	Title         string
	Prompter      *Prompter
	ToastTTL      time.Duration
	ActionTimeout time.Duration
}

type toast struct {
	id      int
	text    string
	warning bool
}

type pendingPrompt struct {
	req     promptRequest
	next    int
	answers map[permission.ID]bool
}

// Model is the bubbletea model of the discovery screen.
type Model struct {
	sess        Session
	updates     <-chan session.Update
	unsubscribe func()
	prompts     <-chan promptRequest

	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	styles  Styles

	title         string
	toastTTL      time.Duration
	actionTimeout time.Duration

	rows     []discovery.Row
	index    map[string]int
	sinceGen []discovery.Row
	seenGen  bool
	gen      int
	cursor   int
	offset   int
	visible  int
	width    int

	progress  bool
	menu      discovery.Menu
	dialog    *session.Dialog
	toasts    []toast
	nextToast int
	prompt    *pendingPrompt
	ended     bool
}

// Messages.
type (
	updateMsg struct{ update session.Update }

	updatesClosedMsg struct{}

	loadedMsg struct {
		gen    int
		rows   []discovery.Row
		status session.Status
		err    error
	}

	dialogMsg struct {
		dialog session.Dialog
		err    error
	}

	actionMsg struct {
		action string
		err    error
	}

	promptMsg struct{ req promptRequest }

	toastExpiredMsg struct{ id int }

	endedMsg struct{}
)

// New creates the model and subscribes to sess. Call Close when the
// program has exited.
func New(sess Session, opts Options) Model {
	if opts.Title == "" {
		opts.Title = defaultTitle
	}
	if opts.ToastTTL <= 0 {
		opts.ToastTTL = defaultToastTTL
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = defaultActionTimeout
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	updates, unsubscribe := sess.Subscribe()

	m := Model{
		sess:          sess,
		updates:       updates,
		unsubscribe:   unsubscribe,
		keys:          DefaultKeyMap(),
		help:          help.New(),
		spinner:       s,
		styles:        DefaultStyles(),
		title:         opts.Title,
		toastTTL:      opts.ToastTTL,
		actionTimeout: opts.ActionTimeout,
		index:         make(map[string]int),
		visible:       defaultVisibleRows,
		menu:          discovery.Menu{About: true},
	}
	if opts.Prompter != nil {
		m.prompts = opts.Prompter.requests
	}
	m.keys.applyMenu(m.menu.Scan, m.menu.Stop, m.menu.About)
	return m
}

// Close drops the model's subscription.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Init starts the initial load and the update listeners.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.load(m.gen),
		waitForUpdate(m.updates),
		waitForPrompt(m.prompts),
		m.spinner.Tick,
	)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		m.visible = max(1, (msg.Height-chromeLines)/rowLines)
		m.scrollTo(m.cursor)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case updateMsg:
		var cmd tea.Cmd
		m, cmd = m.apply(msg.update)
		if m.ended {
			return m, cmd
		}
		return m, tea.Batch(cmd, waitForUpdate(m.updates))

	case updatesClosedMsg:
		if m.ended {
			return m, nil
		}
		m.ended = true
		return m, endAfter(endDelay)

	case loadedMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		if msg.err != nil {
			return m.addToast(fmt.Sprintf("Could not load devices: %v", msg.err), true)
		}
		m.replaceRows(msg.rows)
		if !m.seenGen {
			m.progress = msg.status.Progress
		}
		m.setMenu(msg.status.Menu)
		return m, nil

	case dialogMsg:
		if msg.err != nil {
			return m.addToast(fmt.Sprintf("Could not show device: %v", msg.err), true)
		}
		d := msg.dialog
		m.dialog = &d
		return m, nil

	case actionMsg:
		if msg.err != nil {
			return m.addToast(fmt.Sprintf("%s failed: %v", msg.action, msg.err), true)
		}
		return m, nil

	case promptMsg:
		if len(msg.req.ids) == 0 {
			msg.req.reply <- map[permission.ID]bool{}
			return m, waitForPrompt(m.prompts)
		}
		m.prompt = &pendingPrompt{req: msg.req, answers: make(map[permission.ID]bool, len(msg.req.ids))}
		return m, nil

	case toastExpiredMsg:
		for i, t := range m.toasts {
			if t.id == msg.id {
				m.toasts = append(m.toasts[:i:i], m.toasts[i+1:]...)
				break
			}
		}
		return m, nil

	case endedMsg:
		m.denyPrompt()
		return m, tea.Quit
	}

	return m, nil
}

// apply folds one session update into the view.
func (m Model) apply(u session.Update) (Model, tea.Cmd) {
	switch u.Kind {
	case session.UpdateState:
		// Starting a scan clears the registry, and a restore may refill it,
		// so the list is reloaded rather than patched.
		m.gen++
		m.sinceGen = nil
		m.seenGen = false
		return m, m.load(m.gen)

	case session.UpdateProgress:
		m.progress = u.Progress
		m.seenGen = true
		return m, nil

	case session.UpdateDeviceAdded:
		if u.Device == nil {
			return m, nil
		}
		m.sinceGen = append(m.sinceGen, *u.Device)
		if i, added := m.appendRow(*u.Device); added {
			m.scrollTo(i)
		}
		return m, nil

	case session.UpdateNotice:
		if u.Notice == nil {
			return m, nil
		}
		warning := u.Notice.Fatal || u.Notice.Kind == session.NoticePermissionDenied
		return m.addToast(u.Notice.Message, warning)

	case session.UpdateMenu:
		if u.Menu != nil {
			m.setMenu(*u.Menu)
		}
		return m, nil

	case session.UpdateEnded:
		m.ended = true
		m.progress = false
		m.setMenu(discovery.Menu{})
		return m, endAfter(endDelay)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.denyPrompt()
		return m, tea.Quit
	}

	if m.prompt != nil {
		switch {
		case key.Matches(msg, m.keys.Allow):
			return m.answerPrompt(true)
		case key.Matches(msg, m.keys.Deny), key.Matches(msg, m.keys.Back):
			return m.answerPrompt(false)
		}
		return m, nil
	}

	if m.dialog != nil {
		if key.Matches(msg, m.keys.Back) || key.Matches(msg, m.keys.Select) {
			m.dialog = nil
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
			m.scrollTo(m.cursor)
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
			m.scrollTo(m.cursor)
		}
		return m, nil

	case key.Matches(msg, m.keys.Select):
		if m.cursor >= len(m.rows) {
			return m, nil
		}
		return m, m.detail(m.rows[m.cursor].Address)

	case key.Matches(msg, m.keys.Scan):
		return m, m.action("Scan", m.sess.Scan)

	case key.Matches(msg, m.keys.Stop):
		return m, m.action("Stop", m.sess.Stop)

	case key.Matches(msg, m.keys.About):
		d := m.sess.About()
		m.dialog = &d
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	return m, nil
}

func (m Model) answerPrompt(grant bool) (tea.Model, tea.Cmd) {
	p := m.prompt
	p.answers[p.req.ids[p.next]] = grant
	p.next++
	if p.next < len(p.req.ids) {
		return m, nil
	}
	p.req.reply <- p.answers
	m.prompt = nil
	return m, waitForPrompt(m.prompts)
}

// denyPrompt answers the open prompt so the asking side is not left waiting.
func (m *Model) denyPrompt() {
	if m.prompt == nil {
		return
	}
	for _, id := range m.prompt.req.ids[m.prompt.next:] {
		m.prompt.answers[id] = false
	}
	m.prompt.req.reply <- m.prompt.answers
	m.prompt = nil
}

func (m Model) addToast(text string, warning bool) (Model, tea.Cmd) {
	m.nextToast++
	id := m.nextToast
	m.toasts = append(m.toasts, toast{id: id, text: text, warning: warning})
	if len(m.toasts) > maxToasts {
		m.toasts = m.toasts[len(m.toasts)-maxToasts:]
	}
	return m, tea.Tick(m.toastTTL, func(time.Time) tea.Msg {
		return toastExpiredMsg{id: id}
	})
}

func (m *Model) setMenu(menu discovery.Menu) {
	m.menu = menu
	m.keys.applyMenu(menu.Scan, menu.Stop, menu.About)
}

// appendRow adds row unless its address is already listed.
func (m *Model) appendRow(row discovery.Row) (int, bool) {
	if i, ok := m.index[row.Address]; ok {
		return i, false
	}
	m.rows = append(m.rows, row)
	i := len(m.rows) - 1
	m.index[row.Address] = i
	return i, true
}

// replaceRows installs a fresh load, keeping devices that were reported
// after the load was requested.
func (m *Model) replaceRows(rows []discovery.Row) {
	m.rows = nil
	m.index = make(map[string]int, len(rows))
	for _, r := range rows {
		m.appendRow(r)
	}
	for _, r := range m.sinceGen {
		m.appendRow(r)
	}
	if m.cursor >= len(m.rows) {
		m.cursor = max(0, len(m.rows)-1)
	}
	m.offset = min(m.offset, max(0, len(m.rows)-m.visible))
	m.scrollTo(m.cursor)
}

// scrollTo moves the window so row i is visible.
func (m *Model) scrollTo(i int) {
	if i < m.offset {
		m.offset = i
	}
	if i >= m.offset+m.visible {
		m.offset = i - m.visible + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// Commands.

func (m Model) load(gen int) tea.Cmd {
	sess, timeout := m.sess, m.actionTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		rows, err := sess.Devices(ctx)
		if err != nil {
			return loadedMsg{gen: gen, err: err}
		}
		status, err := sess.Status(ctx)
		return loadedMsg{gen: gen, rows: rows, status: status, err: err}
	}
}

func (m Model) detail(address string) tea.Cmd {
	sess, timeout := m.sess, m.actionTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		d, err := sess.Detail(ctx, address)
		return dialogMsg{dialog: d, err: err}
	}
}

func (m Model) action(name string, fn func(context.Context) error) tea.Cmd {
	timeout := m.actionTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return actionMsg{action: name, err: fn(ctx)}
	}
}

func waitForUpdate(updates <-chan session.Update) tea.Cmd {
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return updatesClosedMsg{}
		}
		return updateMsg{update: u}
	}
}

func waitForPrompt(prompts <-chan promptRequest) tea.Cmd {
	if prompts == nil {
		return nil
	}
	return func() tea.Msg {
		return promptMsg{req: <-prompts}
	}
}

func endAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return endedMsg{}
	})
}

// View renders the screen.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderTitleBar())
	b.WriteString("\n")

	switch {
	case m.prompt != nil:
		b.WriteString(m.viewPrompt())
	case m.dialog != nil:
		b.WriteString(m.viewDialog())
	default:
		b.WriteString(m.viewList())
	}
	b.WriteString("\n")

	b.WriteString(m.viewMenu())
	b.WriteString("\n")

	for _, t := range m.toasts {
		if t.warning {
			b.WriteString(m.styles.Warning.Render(t.text))
		} else {
			b.WriteString(m.styles.Toast.Render(t.text))
		}
		b.WriteString("\n")
	}

	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderTitleBar() string {
	parts := []string{m.styles.Title.Render(m.title)}
	switch {
	case m.ended:
		parts = append(parts, m.styles.Address.Render("Session ended"))
	case m.progress:
		parts = append(parts, m.spinner.View()+" Scanning...")
	}
	return strings.Join(parts, "  ")
}

func (m Model) viewList() string {
	if len(m.rows) == 0 {
		return m.styles.Empty.Render("No devices found") + "\n"
	}

	var b strings.Builder
	end := min(len(m.rows), m.offset+m.visible)
	for i := m.offset; i < end; i++ {
		row := m.rows[i]
		entry := row.Title + "\n" + m.styles.Address.Render(row.Address)
		if i == m.cursor {
			b.WriteString(m.styles.Selected.Render(entry))
		} else {
			b.WriteString(m.styles.Row.Render(entry))
		}
		b.WriteString("\n")
	}
	if len(m.rows) > m.visible {
		b.WriteString(m.styles.Address.Render(fmt.Sprintf("  %d-%d of %d", m.offset+1, end, len(m.rows))))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewDialog() string {
	body := m.styles.Heading.Render(m.dialog.Title) + "\n\n" + m.dialog.Message
	return m.styles.Dialog.Render(body) + "\n"
}

func (m Model) viewPrompt() string {
	id := m.prompt.req.ids[m.prompt.next]
	body := m.styles.Heading.Render("Permission required") + "\n\n" +
		fmt.Sprintf("Allow %s?", id) + "\n\n" +
		m.styles.Address.Render("[y] allow  [n] deny")
	return m.styles.Dialog.Render(body) + "\n"
}

func (m Model) viewMenu() string {
	entries := []struct {
		binding key.Binding
		label   string
	}{
		{m.keys.Scan, "Scan"},
		{m.keys.Stop, "Stop"},
		{m.keys.About, "About"},
	}

	var items []string
	for _, e := range entries {
		if e.binding.Enabled() {
			items = append(items, fmt.Sprintf("[%s] %s", e.binding.Help().Key, e.label))
		}
	}
	if len(items) == 0 {
		return ""
	}
	return m.styles.Menu.Render(strings.Join(items, "  "))
}
