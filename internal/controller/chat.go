package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/errs"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/llm"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/models"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/pipeline/summary"
)

// intentSystemPrompt is the fixed classification prompt (spec §4.6 step 1):
// the LLM must return intent/entity/confidence/edit_instruction as JSON.
const intentSystemPrompt = `Bạn là bộ phân loại ý định cho trợ lý cuộc họp. Đọc tin nhắn của người dùng và trả về DUY NHẤT một đối tượng JSON với các trường:
{"intent": "edit_summary" | "ask_question" | "general_chit_chat", "entity": "topic" | "speaker" | "action_items" | "decision_log" | "summary_bbh_hdqt" | "summary_nghi_quyet" | null, "confidence": number, "edit_instruction": string | null}
Không trả lời gì khác ngoài đối tượng JSON.`

const chatSystemPrompt = `Bạn là trợ lý hỏi đáp về nội dung cuộc họp. Trả lời dựa trên bản ghi và các tóm tắt được cung cấp, ngắn gọn và chính xác.`

const chitChatReply = "Rất vui được trò chuyện! Tôi có thể giúp gì thêm về cuộc họp này không?"

var updateTagPattern = regexp.MustCompile(`^\[UPDATE:([a-z_]+)\]\s*(.*)$`)

type intentDecision struct {
	Intent          string  `json:"intent"`
	Entity          *string `json:"entity"`
	Confidence      float64 `json:"confidence"`
	EditInstruction *string `json:"edit_instruction"`
}

func classifyIntent(ctx context.Context, svc llm.Service, model, message string) intentDecision {
	resp, err := svc.ChatCompletion(ctx, model, []llm.ChatMessage{
		{Role: "system", Content: intentSystemPrompt},
		{Role: "user", Content: message},
	}, 0)
	if err != nil || len(resp.Choices) == 0 {
		return intentDecision{Intent: "ask_question"}
	}

	var decision intentDecision
	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(raw), &decision); err != nil {
		return intentDecision{Intent: "ask_question"}
	}
	if decision.Intent == "" {
		decision.Intent = "ask_question"
	}
	return decision
}

// Chat runs the Chat Sub-engine for one user message (spec §4.6).
func (c *Controller) Chat(ctx context.Context, requestID, username, message string) (string, error) {
	job, err := c.jobs.FindByRequestID(ctx, requestID)
	if err != nil {
		return "", errs.New(errs.NotFound, "job %q not found", requestID)
	}
	if err := c.requireOwner(ctx, job, username); err != nil {
		return "", err
	}

	decision := classifyIntent(ctx, c.llm, c.cfg.LLMModel, message)

	var reply string
	switch decision.Intent {
	case "edit_summary":
		reply, err = c.chatEditSummary(ctx, job, decision)
	case "general_chit_chat":
		reply = chitChatReply
	default:
		reply, err = c.chatAskQuestion(ctx, job, message)
	}
	if err != nil {
		return "", err
	}

	if err := c.appendChatTurn(ctx, job.ID, message, reply); err != nil {
		return "", errs.Wrap(errs.Internal, err, "append chat history")
	}
	return reply, nil
}

func (c *Controller) chatEditSummary(ctx context.Context, job *models.Job, decision intentDecision) (string, error) {
	if decision.Entity == nil {
		return "Bạn muốn chỉnh sửa tóm tắt nào? (chủ đề, người nói, đầu việc, quyết định, biên bản HĐQT, nghị quyết)", nil
	}

	summaryType := models.SummaryType(*decision.Entity)
	if !summaryType.Valid() {
		return "Bạn muốn chỉnh sửa tóm tắt nào? (chủ đề, người nói, đầu việc, quyết định, biên bản HĐQT, nghị quyết)", nil
	}

	existing, err := c.summaries.FindByJobAndType(ctx, job.ID, summaryType)
	if err != nil {
		return fmt.Sprintf("Chưa có tóm tắt %q cho cuộc họp này. Vui lòng tạo tóm tắt trước khi chỉnh sửa.", summaryType), nil
	}

	instruction := ""
	if decision.EditInstruction != nil {
		instruction = *decision.EditInstruction
	}

	userTurn := fmt.Sprintf("Nội dung hiện tại:\n%s\n\nYêu cầu chỉnh sửa: %s\n\nNếu đồng ý, trả lời theo định dạng [UPDATE:%s] <nội dung mới>.", existing.Content, instruction, summaryType)

	resp, err := c.llm.ChatCompletion(ctx, c.cfg.LLMModel, []llm.ChatMessage{
		{Role: "system", Content: summary.Instructions(summaryType)},
		{Role: "user", Content: userTurn},
	}, 0.3)
	if err != nil || len(resp.Choices) == 0 {
		return "", errs.Upstream("llm", fmt.Errorf("edit_summary completion failed: %w", err))
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	newContent := reply
	if m := updateTagPattern.FindStringSubmatch(reply); m != nil {
		newContent = m[2]
	}

	if err := c.summaries.Upsert(ctx, &models.Summary{JobID: job.ID, SummaryType: summaryType, Content: newContent}); err != nil {
		return "", errs.Wrap(errs.Internal, err, "store edited summary")
	}

	return newContent, nil
}

func (c *Controller) chatAskQuestion(ctx context.Context, job *models.Job, message string) (string, error) {
	var messages []llm.ChatMessage
	messages = append(messages, llm.ChatMessage{Role: "system", Content: chatSystemPrompt})

	if t, err := c.transcripts.FindByJobAndLanguage(ctx, job.ID, job.ActiveLanguage); err == nil {
		var words []models.WordSegment
		if jsonErr := json.Unmarshal([]byte(t.WordsJSON), &words); jsonErr == nil {
			messages = append(messages, llm.ChatMessage{Role: "system", Content: "Bản ghi cuộc họp:\n" + summary.PlainText(words)})
		}
	}

	if summaries, err := c.summaries.ListByJob(ctx, job.ID); err == nil {
		for _, s := range summaries {
			messages = append(messages, llm.ChatMessage{Role: "system", Content: fmt.Sprintf("Tóm tắt (%s):\n%s", s.SummaryType, s.Content)})
		}
	}

	history, err := c.chats.ListByJob(ctx, job.ID, c.cfg.ChatHistoryLimit*2)
	if err == nil {
		for _, entry := range history {
			role := "user"
			if entry.Role == models.ChatRoleAssistant {
				role = "assistant"
			}
			messages = append(messages, llm.ChatMessage{Role: role, Content: entry.Message})
		}
	}

	messages = append(messages, llm.ChatMessage{Role: "user", Content: message})

	resp, err := c.llm.ChatCompletion(ctx, c.cfg.LLMModel, messages, 0.5)
	if err != nil || len(resp.Choices) == 0 {
		return "", errs.Upstream("llm", fmt.Errorf("ask_question completion failed: %w", err))
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Controller) appendChatTurn(ctx context.Context, jobID, userMessage, assistantReply string) error {
	if err := c.chats.Create(ctx, &models.ChatEntry{JobID: jobID, Role: models.ChatRoleUser, Message: userMessage}); err != nil {
		return err
	}
	return c.chats.Create(ctx, &models.ChatEntry{JobID: jobID, Role: models.ChatRoleAssistant, Message: assistantReply})
}
