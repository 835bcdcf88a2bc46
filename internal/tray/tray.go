// Package tray provides the desktop system tray menu: the audio start gate,
// the current mode and the policy picker.
package tray

import (
	"context"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/handsynth/internal/engine"
	"github.com/ayusman/handsynth/internal/mode"
)

// Tray represents the system tray application.
type Tray struct {
	onStartAudio func()
	onPolicy     func(name string)
	onOpen       func()
	onQuit       func()
	mu           sync.RWMutex

	audioStarted bool
	modeText     string
	policy       string

	// Menu items stored for later updates
	menuAudio    *systray.MenuItem
	menuMode     *systray.MenuItem
	menuPolicies map[string]*systray.MenuItem
}

// New creates a new Tray showing policy as selected.
func New(policy string) *Tray {
	return &Tray{
		policy:   policy,
		modeText: modeLabel(engine.State{}),
	}
}

// OnStartAudio sets the callback for the "Start Audio" item.
func (t *Tray) OnStartAudio(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStartAudio = fn
}

// OnPolicy sets the callback for picking a policy.
func (t *Tray) OnPolicy(fn func(name string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onPolicy = fn
}

// OnOpen sets the callback for "Open in Browser".
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("handsynth")
	systray.SetTooltip("handsynth hand-gesture instrument")

	t.mu.Lock()
	t.menuAudio = systray.AddMenuItem(audioLabel(t.audioStarted), "Unlock audio output")
	if t.audioStarted {
		t.menuAudio.Disable()
	}
	t.menuMode = systray.AddMenuItem(t.modeText, "Current mode")
	t.menuMode.Disable()
	systray.AddSeparator()

	menuPolicy := systray.AddMenuItem("Policy", "Mode policy")
	t.menuPolicies = make(map[string]*systray.MenuItem)
	for _, name := range mode.Names() {
		item := menuPolicy.AddSubMenuItem(name, "Use the "+name+" policy")
		if name == t.policy {
			item.Check()
		}
		t.menuPolicies[name] = item
		go t.watchPolicy(name, item)
	}
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open in Browser...", "Open the camera view")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit handsynth")
	t.mu.Unlock()

	go func() {
		for {
			select {
			case <-t.menuAudio.ClickedCh:
				t.handleStartAudio()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func (t *Tray) watchPolicy(name string, item *systray.MenuItem) {
	for range item.ClickedCh {
		t.handlePolicy(name)
	}
}

func (t *Tray) handleStartAudio() {
	t.mu.RLock()
	callback := t.onStartAudio
	t.mu.RUnlock()

	// Call the callback outside the lock; it reports back through SetState.
	if callback != nil {
		callback()
	}
}

func (t *Tray) handlePolicy(name string) {
	t.mu.Lock()
	t.policy = name
	for n, item := range t.menuPolicies {
		if n == name {
			item.Check()
		} else {
			item.Uncheck()
		}
	}
	callback := t.onPolicy
	t.mu.Unlock()

	if callback != nil {
		callback(name)
	}
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetState updates the audio and mode items.
func (t *Tray) SetState(s engine.State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s.AudioStarted != t.audioStarted {
		t.audioStarted = s.AudioStarted
		if t.menuAudio != nil {
			t.menuAudio.SetTitle(audioLabel(s.AudioStarted))
			if s.AudioStarted {
				t.menuAudio.Disable()
			}
		}
	}

	if label := modeLabel(s); label != t.modeText {
		t.modeText = label
		if t.menuMode != nil {
			t.menuMode.SetTitle(label)
		}
	}
}

// Follow applies states until ctx ends or states closes.
func (t *Tray) Follow(ctx context.Context, states <-chan engine.State) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-states:
			if !ok {
				return
			}
			t.SetState(s)
		}
	}
}

// Policy returns the checked policy.
func (t *Tray) Policy() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.policy
}

// ModeText returns the mode item title.
func (t *Tray) ModeText() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.modeText
}

// AudioStarted reports what the audio item shows.
func (t *Tray) AudioStarted() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.audioStarted
}

func audioLabel(started bool) string {
	if started {
		return "● Audio On"
	}
	return "○ Start Audio"
}

func modeLabel(s engine.State) string {
	label := "Mode: " + s.Selection.Mode.String()
	if s.Selection.Instrument != "" && s.Selection.Instrument != s.Selection.Mode.String() {
		label += " (" + s.Selection.Instrument + ")"
	}
	return label
}
