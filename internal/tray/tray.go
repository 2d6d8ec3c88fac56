// Package tray provides the system tray menu for the Lizard focus tracker.
package tray

import (
	"fmt"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/ayusman/lizard/internal/app"
)

// Tray represents the system tray application.
type Tray struct {
	onStart     func()
	onStop      func()
	onDashboard func()
	onQuit      func()
	running     bool
	mu          sync.RWMutex

	// Menu items stored for later updates
	menuStatus *systray.MenuItem
	menuTimer  *systray.MenuItem
	menuToggle *systray.MenuItem
}

// New creates a new Tray with no session running.
func New() *Tray {
	return &Tray{}
}

// OnStart sets the callback run when Start Session is clicked.
func (t *Tray) OnStart(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStart = fn
}

// OnStop sets the callback run when Stop Session is clicked.
func (t *Tray) OnStop(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStop = fn
}

// OnDashboard sets the callback run when Open Dashboard is clicked.
func (t *Tray) OnDashboard(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDashboard = fn
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

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Lizard")
	systray.SetTooltip("Lizard Focus Tracker")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem("Status: idle", "Current focus state")
	t.menuStatus.Disable()
	t.menuTimer = systray.AddMenuItem("No session", "Session timer")
	t.menuTimer.Disable()
	systray.AddSeparator()

	t.menuToggle = systray.AddMenuItem(toggleTitle(false), "Start or stop a focus session")
	t.mu.Unlock()
	systray.AddSeparator()

	menuDashboard := systray.AddMenuItem("Open Dashboard...", "Open the dashboard in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Lizard")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuDashboard.ClickedCh:
				t.handleCallback(func() func() { return t.onDashboard })
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// handleToggle starts or stops a session depending on the current state.
func (t *Tray) handleToggle() {
	t.mu.RLock()
	callback := t.onStart
	if t.running {
		callback = t.onStop
	}
	t.mu.RUnlock()

	// Call the callback outside the lock; it may trigger Update.
	if callback != nil {
		callback()
	}
}

func (t *Tray) handleCallback(get func() func()) {
	t.mu.RLock()
	callback := get()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.handleCallback(func() func() { return t.onQuit })
	systray.Quit()
}

// Update refreshes the menu from a status snapshot. It is safe to call
// before the tray is ready.
func (t *Tray) Update(s app.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.running = s.State == "running"
	if t.menuStatus == nil {
		return
	}

	status, timer := Describe(s)
	t.menuStatus.SetTitle(status)
	t.menuTimer.SetTitle(timer)
	t.menuToggle.SetTitle(toggleTitle(t.running))
	systray.SetTitle(trayTitle(s))
}

// IsRunning reports whether the last status showed a running session.
func (t *Tray) IsRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

// Describe renders the status and timer lines shown in the menu.
func Describe(s app.Status) (status, timer string) {
	switch s.State {
	case "running":
		switch {
		case !s.FaceDetected:
			status = "Status: no face detected"
		case s.Focused:
			status = fmt.Sprintf("Status: focused (%.2f)", s.Ratio)
		default:
			status = fmt.Sprintf("Status: not focused (%.2f)", s.Ratio)
		}
		timer = fmt.Sprintf("Elapsed %s, remaining %s",
			clock(s.ElapsedSeconds), clock(s.RemainingSeconds))
	case "completed":
		status = fmt.Sprintf("Last session: %.1f%% focused", s.FocusPercent)
		timer = fmt.Sprintf("Lasted %s", clock(s.ElapsedSeconds))
	default:
		status = "Status: idle"
		timer = "No session"
	}
	return status, timer
}

func toggleTitle(running bool) string {
	if running {
		return "■ Stop Session"
	}
	return "▶ Start Session"
}

func trayTitle(s app.Status) string {
	if s.State != "running" {
		return "Lizard"
	}
	if s.Focused {
		return "Lizard ●"
	}
	return "Lizard ○"
}

// clock formats seconds as mm:ss.
func clock(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// Quit closes the tray, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}
