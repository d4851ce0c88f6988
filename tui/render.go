package tui

import (
	"fmt"
	"strings"
	"time"

	"scrollfeed/feed"
	"scrollfeed/models"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	metaStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	noticeStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("244"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Padding(0, 1)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const (
	loadingText = "Loading feed..."
	moreText    = "Loading more..."
	emptyText   = "No items found!"
	endText     = "That's all we have"
)

// Render draws the feed content for a window of the given width. spin is
// the current loading indicator frame.
func Render(vm feed.ViewModel, width int, spin string, now time.Time) string {
	if vm.IsLoading {
		return noticeStyle.Render(spin + " " + loadingText)
	}
	if vm.Empty() {
		return noticeStyle.Render(emptyText)
	}

	var b strings.Builder
	for _, item := range vm.Items {
		b.WriteString(renderItem(item, width, now))
		b.WriteString("\n\n")
	}

	switch {
	case vm.IsLoadingMore:
		b.WriteString(noticeStyle.Render(spin + " " + moreText))
	case vm.IsLastPage:
		b.WriteString(noticeStyle.Render("─── " + endText + " ───"))
	}

	return b.String()
}

func renderItem(item models.Item, width int, now time.Time) string {
	meta := []string{item.Author}
	if item.Language != "" {
		meta = append(meta, item.Language)
	}
	if !item.CreatedAt.IsZero() {
		meta = append(meta, formatAge(now.Sub(item.CreatedAt)))
	}

	body := item.Body
	if width > 0 {
		body = lipgloss.NewStyle().Width(width).Render(body)
	}

	return titleStyle.Render(item.Title) + "\n" +
		metaStyle.Render(strings.Join(meta, " · ")) + "\n" +
		body
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
