package viz

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the colour scheme of tables, plots and status lines
type Theme struct {
	Name      string
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color
	Text      lipgloss.Color
	Muted     lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
}

var (
	ThemeClinical = Theme{
		Name:      "clinical",
		Primary:   lipgloss.Color("#0275d8"),
		Secondary: lipgloss.Color("#00a8cc"),
		Accent:    lipgloss.Color("#f0ad4e"),
		Text:      lipgloss.Color("#e0f0ff"),
		Muted:     lipgloss.Color("#666688"),
		Success:   lipgloss.Color("#5cb85c"),
		Warning:   lipgloss.Color("#f0ad4e"),
		Error:     lipgloss.Color("#d9534f"),
	}

	ThemeMinimal = Theme{
		Name:      "minimal",
		Primary:   lipgloss.Color("#ffffff"),
		Secondary: lipgloss.Color("#cccccc"),
		Accent:    lipgloss.Color("#0088ff"),
		Text:      lipgloss.Color("#ffffff"),
		Muted:     lipgloss.Color("#888888"),
		Success:   lipgloss.Color("#00ff00"),
		Warning:   lipgloss.Color("#ffaa00"),
		Error:     lipgloss.Color("#ff0000"),
	}

	ThemeRetroGreen = Theme{
		Name:      "retro",
		Primary:   lipgloss.Color("#00ff00"),
		Secondary: lipgloss.Color("#00cc00"),
		Accent:    lipgloss.Color("#88ff88"),
		Text:      lipgloss.Color("#00ff00"),
		Muted:     lipgloss.Color("#005500"),
		Success:   lipgloss.Color("#88ff88"),
		Warning:   lipgloss.Color("#ffff00"),
		Error:     lipgloss.Color("#ff0000"),
	}

	// Default theme
	CurrentTheme = ThemeClinical

	Themes = []Theme{
		ThemeClinical,
		ThemeMinimal,
		ThemeRetroGreen,
	}
)

// GetTheme returns a theme by name, falling back to the default
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeClinical
}

// SetTheme changes the current theme and restyles the shared styles. An unknown name
// leaves the current theme in place.
func SetTheme(name string) error {
	if !slices.Contains(ThemeNames(), name) {
		return fmt.Errorf("viz: unknown theme %q (available: %s)", name, strings.Join(ThemeNames(), ", "))
	}
	CurrentTheme = GetTheme(name)
	applyTheme(CurrentTheme)
	return nil
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}
