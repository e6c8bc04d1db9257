// Package terminal renders the conversation in a bubbletea program: the
// last user utterance, the assistant reply and a status line.
package terminal

import (
	"errors"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

var ErrClosed = errors.New("display is closed")

const (
	DefaultMaxTextLength   = 100
	DefaultRefreshInterval = 300 * time.Millisecond
)

type Option func(*Display)

// WithMaxTextLength sets how many characters of a transcript are shown
// before it is cut off with "...".
func WithMaxTextLength(n int) Option {
	return func(d *Display) {
		if n > 0 {
			d.maxTextLength = n
		}
	}
}

func WithRefreshInterval(interval time.Duration) Option {
	return func(d *Display) {
		if interval > 0 {
			d.refreshInterval = interval
		}
	}
}

// WithOnQuit registers a callback run when the user quits the program.
func WithOnQuit(onQuit func()) Option {
	return func(d *Display) { d.onQuit = onQuit }
}

func WithProgramOptions(opts ...tea.ProgramOption) Option {
	return func(d *Display) { d.programOptions = append(d.programOptions, opts...) }
}

// Display holds the latest texts. Setters never block; the program picks
// the texts up on its next refresh.
type Display struct {
	maxTextLength   int
	refreshInterval time.Duration
	onQuit          func()
	programOptions  []tea.ProgramOption

	mu        sync.Mutex
	snapshot  snapshot
	program   *tea.Program
	closed    bool
	closeOnce sync.Once
}

type snapshot struct {
	user      string
	assistant string
	status    string
}

func New(opts ...Option) *Display {
	d := &Display{
		maxTextLength:   DefaultMaxTextLength,
		refreshInterval: DefaultRefreshInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Display) SetUserText(text string) error {
	return d.update(func(s *snapshot) { s.user = text })
}

func (d *Display) SetAssistantText(text string) error {
	return d.update(func(s *snapshot) { s.assistant = text })
}

func (d *Display) SetStatus(status string) error {
	return d.update(func(s *snapshot) { s.status = status })
}

func (d *Display) update(apply func(*snapshot)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	apply(&d.snapshot)
	return nil
}

func (d *Display) current() snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot
}

// Run starts the program and blocks until the user quits or Close is
// called.
func (d *Display) Run() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.program = tea.NewProgram(newModel(d), d.programOptions...)
	program := d.program
	d.mu.Unlock()

	_, err := program.Run()
	d.markClosed()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// Close stops the program, if it is running, and rejects further updates.
func (d *Display) Close() {
	d.mu.Lock()
	program := d.program
	d.mu.Unlock()

	d.markClosed()
	if program != nil {
		program.Quit()
	}
}

func (d *Display) markClosed() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
	})
}

func (d *Display) quit() {
	if d.onQuit != nil {
		d.onQuit()
	}
}
