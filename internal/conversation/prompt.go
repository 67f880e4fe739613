package conversation

import (
	"fmt"
	"strings"

	"prepwise/server/internal/ai"
	"prepwise/server/internal/model"
)

// PromptContext narrows the tutor's focus for one call. All fields optional.
type PromptContext struct {
	Subject   string
	Topic     string
	SessionID string
}

// buildInstruction synthesizes the single system turn from the user's
// profile and the supplied context. Pure function.
func buildInstruction(user model.User, pctx PromptContext) ai.Message {
	var b strings.Builder
	b.WriteString("You are an exam-preparation tutor helping a student study effectively. ")
	fmt.Fprintf(&b, "The student's name is %s.", user.DisplayName)
	if user.AcademicLevel != "" {
		fmt.Fprintf(&b, " Academic level: %s.", user.AcademicLevel)
	}
	if len(user.TargetExams) > 0 {
		fmt.Fprintf(&b, " Target exams: %s.", strings.Join(user.TargetExams, ", "))
	}
	fmt.Fprintf(&b, " The student is at level %d with %d XP on the platform.", user.Level, user.XP)
	if pctx.Subject != "" {
		fmt.Fprintf(&b, " The current subject is %s.", pctx.Subject)
	}
	if pctx.Topic != "" {
		fmt.Fprintf(&b, " The current topic is %s.", pctx.Topic)
	}
	b.WriteString(" Give clear, encouraging, exam-focused answers.")
	return ai.Message{Role: "system", Content: b.String()}
}

// buildWindow maps the stored turns plus the new user message into the
// ordered sequence sent upstream: instruction first, then history
// oldest-first, then the new message.
func buildWindow(user model.User, pctx PromptContext, history []model.ConversationTurn, userText string, attachments []string) []ai.Message {
	messages := make([]ai.Message, 0, len(history)+2)
	messages = append(messages, buildInstruction(user, pctx))
	for _, turn := range history {
		role := "user"
		if turn.Sender == model.SenderAI {
			role = "assistant"
		}
		messages = append(messages, ai.Message{Role: role, Content: turn.Content})
	}
	content := userText
	if len(attachments) > 0 {
		content += "\n[attached: " + strings.Join(attachments, ", ") + "]"
	}
	messages = append(messages, ai.Message{Role: "user", Content: content})
	return messages
}
