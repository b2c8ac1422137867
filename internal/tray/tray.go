// Package tray provides the system tray menu for starting captures.
package tray

import (
	"reflect"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/kyccapture/internal/gate"
)

var modeLabels = map[gate.Mode]string{
	gate.ModeDocument:     "Capture Document",
	gate.ModeFace:         "Capture Face",
	gate.ModeHand:         "Capture Hand",
	gate.ModeFaceThenHand: "Capture Face + Hand",
}

// Tray represents the system tray application.
type Tray struct {
	onStart    func(mode gate.Mode)
	onRetake   func()
	onSettings func()
	onQuit     func()
	status     string
	last       string
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuStatus *systray.MenuItem
	menuRetake *systray.MenuItem
	menuLast   *systray.MenuItem
}

// New creates a new Tray instance.
func New() *Tray {
	return &Tray{status: "Idle"}
}

// OnStart sets the callback run when a capture mode is picked.
func (t *Tray) OnStart(fn func(mode gate.Mode)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStart = fn
}

// OnRetake sets the callback run when Retake is clicked.
func (t *Tray) OnRetake(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRetake = fn
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops the tray loop.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("KYC")
	systray.SetTooltip("KYC Capture")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem(t.status, "Capture status")
	t.menuStatus.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	modeItems := make([]*systray.MenuItem, len(gate.Modes))
	for i, m := range gate.Modes {
		modeItems[i] = systray.AddMenuItem(modeLabels[m], "Start a "+m.String()+" capture")
	}
	systray.AddSeparator()

	t.mu.Lock()
	t.menuRetake = systray.AddMenuItem("Retake", "Start the current capture over")
	t.menuLast = systray.AddMenuItem(lastTitle(t.last), "Last capture")
	t.menuLast.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	menuQuit := systray.AddMenuItem("Quit", "Quit KYC Capture")

	// One select case per mode item plus the fixed items.
	cases := make([]reflect.SelectCase, 0, len(modeItems)+3)
	for _, item := range modeItems {
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(item.ClickedCh)})
	}
	retakeIdx := len(cases)
	cases = append(cases,
		reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(t.menuRetake.ClickedCh)},
		reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(menuSettings.ClickedCh)},
		reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(menuQuit.ClickedCh)},
	)

	go func() {
		for {
			chosen, _, _ := reflect.Select(cases)
			switch {
			case chosen < retakeIdx:
				t.handleStart(gate.Modes[chosen])
			case chosen == retakeIdx:
				t.handleRetake()
			case chosen == retakeIdx+1:
				t.handleSettings()
			default:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func (t *Tray) handleStart(mode gate.Mode) {
	t.mu.RLock()
	callback := t.onStart
	t.mu.RUnlock()

	if callback != nil {
		callback(mode)
	}
}

func (t *Tray) handleRetake() {
	t.mu.RLock()
	callback := t.onRetake
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleSettings handles the settings menu item click.
func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetStatus updates the status line, e.g. "Capturing face".
func (t *Tray) SetStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status = status
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(status)
	}
}

// SetLastCapture updates the last capture display in the menu.
func (t *Tray) SetLastCapture(desc string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = desc
	if t.menuLast != nil {
		t.menuLast.SetTitle(lastTitle(desc))
	}
}

// Status returns the current status line.
func (t *Tray) Status() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// LastCapture returns the last capture description.
func (t *Tray) LastCapture() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

func lastTitle(desc string) string {
	if desc == "" {
		return "Last: none"
	}
	return "Last: " + desc
}
