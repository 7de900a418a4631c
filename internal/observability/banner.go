package observability

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

var startTime = time.Now()

const (
	colorReset    = "\033[0m"
	colorPurple   = "\033[35m"
	colorNeonCyan = "\033[96m"
	colorNeonMag  = "\033[95m"
)

var stageFrames = []string{"◜", "◝", "◞", "◟"}
var stageIdx = 0

// termMu synchronizes ALL terminal output so that the cursor
// save/restore in PrintLiveStatus can never be interrupted by a log write.
var termMu sync.Mutex

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// shorten limits s to max runes, marking the cut with "...".
func shorten(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// termWriter is a mutex-guarded io.Writer for log and gin output.
type termWriter struct{}

func (tw termWriter) Write(p []byte) (n int, err error) {
	termMu.Lock()
	defer termMu.Unlock()
	return os.Stderr.Write(p)
}

// NewTermWriter returns an io.Writer suitable for log.SetOutput() and
// gin.DefaultWriter. It serialises writes with PrintLiveStatus via termMu.
func NewTermWriter() *termWriter {
	return &termWriter{}
}

func PrintBanner() {
	banner := `
    ____  ________________  _______
   / __ \/  _/ ____/  _/ __ )/  _/__ /
  / / / // // / __ / // __  |/ /   / /
 / /_/ // // /_/ // // /_/ // /   / /__
/_____/___/\____/___/_____/___/  /____/

      >> LEAN MISSIONS FOR SMALL BUSINESS <<
`

	width := termWidth()
	for _, l := range strings.Split(banner, "\n") {
		padding := (width - len(l)) / 2
		if padding < 0 {
			padding = 0
		}
		fmt.Printf("%s%s%s\n", strings.Repeat(" ", padding), colorNeonCyan+l, colorReset)
	}
}

// InitializeTerminal reserves the top rows for the dashboard.
func InitializeTerminal() {
	fmt.Print("\033[2J\033[H")
	PrintBanner()
	fmt.Print("\033[12;r")
	fmt.Print("\033[12;1H")
}

func CleanupTerminal() {
	fmt.Print("\033[r\033[2J\033[H")
}

// PrintLiveStatus redraws the dashboard line with the current pipeline stage.
func PrintLiveStatus() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(startTime).Round(time.Second)
	memMB := float64(m.Alloc) / 1024 / 1024

	stage, businessID, runs, lastHB := GetStatus()

	pulseText := "OFFLINE"
	pulseColor := colorNeonMag
	delta := time.Since(lastHB)
	if delta < 40*time.Second {
		pulseText = "HEALTHY"
		pulseColor = colorNeonCyan
	} else if delta < 90*time.Second {
		pulseText = "LAGGING"
		pulseColor = colorPurple
	}

	spinner := " "
	if stage != StageIdle {
		spinner = stageFrames[stageIdx]
		stageIdx = (stageIdx + 1) % len(stageFrames)
	}

	display := businessID
	if display == "" {
		display = "Waiting..."
	}
	display = shorten(display, 25)

	totalMB := float64(m.Sys) / 1024 / 1024
	memPercent := memMB / totalMB
	barWidth := 20
	filled := clamp(int(memPercent*float64(barWidth)), 0, barWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("▒", barWidth-filled)

	statusStr := fmt.Sprintf(
		"\033[s\033[10;1H\033[K%s[%s] %s%-8s%s | [%-8s] [%s] runs=%d %s%s%s [%v] [%s %.1fMB]\033[u",
		colorReset,
		lastHB.Format("15:04:05"),
		pulseColor, pulseText, colorReset,
		stage,
		display,
		runs,
		colorPurple, spinner, colorReset,
		uptime,
		bar, memMB,
	)

	termMu.Lock()
	fmt.Print(statusStr)
	termMu.Unlock()
}
