// Package main is a Lizard hook that shows the end-of-session feedback as a
// desktop notification. It uses osascript on macOS and notify-send
// elsewhere.
//
// Build it into a hook directory next to hook.json:
//
//	go build -o ~/.lizard/hooks/notify/notify ./plugins/notify
//	cp plugins/notify/hook.json ~/.lizard/hooks/notify/
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"

	"github.com/ayusman/lizard/internal/hook"
	"github.com/ayusman/lizard/internal/report"
)

const title = "Lizard"

// notifier shows one notification.
type notifier func(title, body string) error

func main() {
	resp := handle(os.Stdin, notifierFor(runtime.GOOS))
	json.NewEncoder(os.Stdout).Encode(resp)
}

func handle(r io.Reader, notify notifier) hook.Response {
	var req hook.Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return failure(fmt.Sprintf("failed to decode request: %v", err))
	}

	if req.Event != hook.EventSessionCompleted {
		return failure(fmt.Sprintf("unsupported event: %s", req.Event))
	}

	var summary report.Summary
	if err := json.Unmarshal(req.Payload, &summary); err != nil {
		return failure(fmt.Sprintf("failed to decode summary: %v", err))
	}

	body := message(summary)
	if err := notify(title, body); err != nil {
		return failure(fmt.Sprintf("notify failed: %v", err))
	}

	data, _ := json.Marshal(map[string]string{"message": body})
	return hook.Response{Success: true, Data: data}
}

// message renders the session result the way the dashboard does.
func message(s report.Summary) string {
	return fmt.Sprintf("Focus: %.1f%% of %s. %s", s.FocusPercent, minutes(s.ElapsedSeconds), s.Message)
}

func minutes(seconds float64) string {
	m := int(seconds) / 60
	sec := int(seconds) % 60
	if m == 0 {
		return strconv.Itoa(sec) + "s"
	}
	return fmt.Sprintf("%dm%02ds", m, sec)
}

func failure(msg string) hook.Response {
	return hook.Response{Success: false, Error: msg}
}

func notifierFor(goos string) notifier {
	if goos == "darwin" {
		return func(title, body string) error {
			script := fmt.Sprintf("display notification %s with title %s", strconv.Quote(body), strconv.Quote(title))
			return run("osascript", "-e", script)
		}
	}
	return func(title, body string) error {
		return run("notify-send", title, body)
	}
}

func run(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
