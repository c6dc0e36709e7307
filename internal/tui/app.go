// Package tui is a terminal client: a live video list and a chat view per video.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lecture-chat/cli/internal/model"
)

// Backend is what the terminal client reads and calls
type Backend interface {
	ListVideos(ctx context.Context) ([]*model.VideoRecord, error)
	Ask(ctx context.Context, videoID, question string, history []model.ConversationTurn) (*model.AnswerResult, error)
	Retry(ctx context.Context, videoID string) (*model.VideoRecord, error)
}

type view int

const (
	viewVideos view = iota
	viewChat
)

const refreshInterval = 2 * time.Second

type (
	videosMsg  []*model.VideoRecord
	answerMsg  *model.AnswerResult
	retriedMsg struct{ id string }
	errMsg     struct{ err error }
	tickMsg    time.Time
)

// App is the bubbletea model of the terminal client
type App struct {
	backend Backend
	ctx     context.Context

	view   view
	videos []*model.VideoRecord
	cursor int
	err    error
	width  int
	height int

	chat *ChatView
}

// NewApp creates the client model
func NewApp(ctx context.Context, backend Backend) *App {
	return &App{backend: backend, ctx: ctx}
}

// Run starts the terminal client and blocks until it exits
func Run(ctx context.Context, backend Backend) error {
	p := tea.NewProgram(NewApp(ctx, backend), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// Init loads the video list and starts the refresh ticker
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.loadVideos(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (a *App) loadVideos() tea.Cmd {
	return func() tea.Msg {
		videos, err := a.backend.ListVideos(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		return videosMsg(videos)
	}
}

// Update handles input and command results
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		return a, nil
	case tickMsg:
		return a, tea.Batch(a.loadVideos(), tick())
	case videosMsg:
		a.videos = msg
		a.err = nil
		if a.cursor >= len(a.videos) {
			a.cursor = max(0, len(a.videos)-1)
		}
		if a.chat != nil {
			a.chat.refresh(a.videos)
		}
		return a, nil
	case retriedMsg:
		return a, a.loadVideos()
	case errMsg:
		if a.view == viewChat && a.chat != nil && a.chat.loading {
			a.chat.failed(msg.err)
			return a, nil
		}
		a.err = msg.err
		return a, nil
	case answerMsg:
		if a.chat != nil {
			a.chat.answered(msg)
		}
		return a, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.view == viewChat {
			return a, a.updateChat(msg)
		}
		return a, a.updateVideos(msg)
	}
	return a, nil
}

// View renders the current screen
func (a *App) View() string {
	if a.view == viewChat && a.chat != nil {
		return a.chat.render(a.width)
	}
	return a.renderVideos()
}
