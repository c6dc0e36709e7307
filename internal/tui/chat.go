package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lecture-chat/cli/internal/model"
)

// Message is one entry of the chat transcript
type Message struct {
	Role     model.Role
	Content  string
	Sources  []model.Source
	Degraded bool
}

// ChatView holds the conversation with one video
type ChatView struct {
	app      *App
	video    *model.VideoRecord
	messages []Message
	input    []rune
	loading  bool
}

// NewChatView starts an empty conversation
func NewChatView(app *App, video *model.VideoRecord) *ChatView {
	return &ChatView{app: app, video: video}
}

// history converts the transcript into conversation turns for the answerer
func (cv *ChatView) history() []model.ConversationTurn {
	turns := make([]model.ConversationTurn, 0, len(cv.messages))
	for _, m := range cv.messages {
		turns = append(turns, model.ConversationTurn{Role: m.Role, Content: m.Content})
	}
	return turns
}

func (a *App) updateChat(msg tea.KeyMsg) tea.Cmd {
	cv := a.chat
	switch msg.Type {
	case tea.KeyEsc:
		a.view = viewVideos
		return nil
	case tea.KeyEnter:
		return cv.send()
	case tea.KeyBackspace:
		if len(cv.input) > 0 {
			cv.input = cv.input[:len(cv.input)-1]
		}
	case tea.KeySpace:
		cv.input = append(cv.input, ' ')
	case tea.KeyRunes:
		cv.input = append(cv.input, msg.Runes...)
	}
	return nil
}

func (cv *ChatView) send() tea.Cmd {
	question := strings.TrimSpace(string(cv.input))
	if question == "" || cv.loading {
		return nil
	}
	history := cv.history()
	cv.messages = append(cv.messages, Message{Role: model.RoleUser, Content: question})
	cv.input = cv.input[:0]
	cv.loading = true

	a, id := cv.app, cv.video.ID
	return func() tea.Msg {
		res, err := a.backend.Ask(a.ctx, id, question, history)
		if err != nil {
			return errMsg{err}
		}
		return answerMsg(res)
	}
}

func (cv *ChatView) answered(res *model.AnswerResult) {
	cv.loading = false
	cv.messages = append(cv.messages, Message{
		Role:     model.RoleAssistant,
		Content:  res.Answer,
		Sources:  res.Sources,
		Degraded: res.Degraded,
	})
}

func (cv *ChatView) failed(err error) {
	cv.loading = false
	cv.messages = append(cv.messages, Message{Role: model.RoleAssistant, Content: "Error: " + err.Error(), Degraded: true})
}

// refresh picks up status changes of the open video
func (cv *ChatView) refresh(videos []*model.VideoRecord) {
	for _, v := range videos {
		if v.ID == cv.video.ID {
			cv.video = v
			return
		}
	}
}

func (cv *ChatView) render(width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Chat: " + cv.video.DisplayTitle()))
	b.WriteString("\n\n")

	wrap := assistantStyle
	if width > 4 {
		wrap = wrap.Width(width - 4)
	}
	for _, m := range cv.messages {
		if m.Role == model.RoleUser {
			b.WriteString(userStyle.Render("You: ") + m.Content + "\n\n")
			continue
		}
		label := "Assistant: "
		if m.Degraded {
			label = "Assistant (degraded): "
		}
		b.WriteString(wrap.Render(label+m.Content) + "\n")
		if len(m.Sources) > 0 {
			b.WriteString(mutedStyle.Render("Sources:") + "\n")
			for _, s := range m.Sources {
				b.WriteString(sourceStyle.Render(fmt.Sprintf("  [%s] %.2f %s", s.FormattedTimestamp, s.RelevanceScore, clip(s.Text, 70))) + "\n")
			}
		}
		b.WriteString("\n")
	}
	if cv.loading {
		b.WriteString(mutedStyle.Render("Thinking...") + "\n\n")
	}

	b.WriteString(inputStyle.Render("> " + string(cv.input) + "█"))
	b.WriteString("\n" + helpStyle.Render("enter send • esc back • ctrl+c quit"))
	return b.String()
}
