package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/waftester/reportforge/pkg/defaults"
)

// Version information - these can be overridden at build time via ldflags:
// go build -ldflags "-X github.com/waftester/reportforge/pkg/ui.Commit=abc123"
var (
	Version   = defaults.Version
	BuildDate = "unknown"
	Commit    = "dev"
)

// Global UI state
var (
	silentMode  bool
	noColorMode bool
	out         io.Writer = os.Stderr
	uiMu        sync.RWMutex

	// caps caches Terminal for out.
	caps      Capabilities
	capsKnown bool
)

// SetSilent enables or disables silent mode (suppresses most output)
func SetSilent(silent bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	silentMode = silent
}

// IsSilent returns whether silent mode is enabled
func IsSilent() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return silentMode
}

// SetNoColor disables colored output
func SetNoColor(noColor bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	noColorMode = noColor
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// IsNoColor returns whether color is disabled
func IsNoColor() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return noColorMode
}

// SetOutput redirects UI output, which goes to stderr by default. It
// returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	uiMu.Lock()
	defer uiMu.Unlock()
	prev := out
	out = w
	capsKnown = false
	return prev
}

func output() io.Writer {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return out
}

func emit(s string) {
	fmt.Fprintln(output(), fitGlyphs(s))
}

const bannerArt = `
                            __  ____
   ________  ____  ____  __/ /_/ __/___  _________ ____
  / ___/ _ \/ __ \/ __ \/ __/ / /_/ __ \/ ___/ __ '/ _ \
 / /  /  __/ /_/ / /_/ / /_/ / __/ /_/ / /  / /_/ /  __/
/_/   \___/ .___/\____/\__/_/_/  \____/_/   \__, /\___/
         /_/                               /____/
`

// PrintBanner prints the application banner with version info
func PrintBanner() {
	if IsSilent() {
		return
	}
	for _, line := range strings.Split(bannerArt, "\n") {
		if line != "" {
			emit(BannerStyle.Render(line))
		}
	}
	emit(fmt.Sprintf("                    %s %s", SubtitleStyle.Render("security report generator"), VersionStyle.Render("v"+Version)))
	emit("")
}

// PrintDivider prints a stylized divider
func PrintDivider() {
	if IsSilent() {
		return
	}
	emit(DividerStyle.Render(strings.Repeat("-", 60)))
}

// PrintSection prints a section header
func PrintSection(title string) {
	if IsSilent() {
		return
	}
	emit("")
	emit(SectionStyle.Render("> " + title))
	PrintDivider()
}

// PrintConfigLine prints a single config line
func PrintConfigLine(key, value string) {
	if IsSilent() || value == "" {
		return
	}
	emit(fmt.Sprintf("  %s %s", ConfigLabelStyle.Render(key+":"), ConfigValueStyle.Render(Clean(value))))
}

// PrintHelp prints contextual help
func PrintHelp(text string) {
	emit(HelpStyle.Render("  [i] " + Clean(text)))
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	if IsSilent() {
		return
	}
	emit(PassStyle.Render("  " + Icon(SymbolPass) + " " + Clean(message)))
}

// PrintError prints an error message. Errors are shown in silent mode too.
func PrintError(message string) {
	emit(FailStyle.Render("  " + Icon(SymbolFail) + " " + Clean(message)))
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	if IsSilent() {
		return
	}
	emit(WarnStyle.Render("  " + Icon(SymbolWarn) + " " + Clean(message)))
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	if IsSilent() {
		return
	}
	emit(fmt.Sprintf("  %s %s", SpinnerStyle.Render("*"), Clean(message)))
}
