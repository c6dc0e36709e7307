package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lecture-chat/cli/internal/model"
)

func (a *App) updateVideos(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "esc":
		return tea.Quit
	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}
	case "down", "j":
		if a.cursor < len(a.videos)-1 {
			a.cursor++
		}
	case "r":
		v := a.selected()
		if v == nil || !v.Status.IsTerminal() {
			return nil
		}
		id := v.ID
		return func() tea.Msg {
			if _, err := a.backend.Retry(a.ctx, id); err != nil {
				return errMsg{err}
			}
			return retriedMsg{id: id}
		}
	case "enter":
		v := a.selected()
		if v == nil {
			return nil
		}
		if v.Status != model.StatusCompleted {
			a.err = fmt.Errorf("%s is still %s", v.DisplayTitle(), v.Status)
			return nil
		}
		a.err = nil
		a.chat = NewChatView(a, v)
		a.view = viewChat
	}
	return nil
}

func (a *App) selected() *model.VideoRecord {
	if a.cursor < 0 || a.cursor >= len(a.videos) {
		return nil
	}
	return a.videos[a.cursor]
}

func (a *App) renderVideos() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Lecture Chat"))
	b.WriteString("\n\n")

	if len(a.videos) == 0 {
		b.WriteString(mutedStyle.Render("No videos yet. Upload one through the API."))
		b.WriteString("\n")
	}
	for i, v := range a.videos {
		line := fmt.Sprintf("%-40s %s %s", clip(v.DisplayTitle(), 40), statusStyle(v.Status).Render(fmt.Sprintf("%-12s", v.Status)), progressBar(v.Status.Progress(), 20))
		if v.Status == model.StatusFailed && v.Error != "" {
			line += " " + errorStyle.Render(clip(v.Error, 60))
		}
		if i == a.cursor {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	if a.err != nil {
		b.WriteString("\n" + errorStyle.Render(a.err.Error()) + "\n")
	}
	b.WriteString("\n" + helpStyle.Render("↑/↓ select • enter chat • r retry • q quit"))
	return b.String()
}

func progressBar(pct float64, width int) string {
	filled := int(pct / 100 * float64(width))
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + fmt.Sprintf("] %3.0f%%", pct)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
