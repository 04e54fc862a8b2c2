package summary

import "github.com/NguyenThaoVi0702/meeting-minutes-app/internal/models"

// instructions returns the system prompt for each summary type, grounded on
// original_source/app/services/ai_prompts.py's per-type prompt templates.
// The Vietnamese prompts match the domain the original system serves; they
// are data, not copied source text.
func instructions(t models.SummaryType) string {
	switch t {
	case models.SummaryTopic:
		return "Bạn là trợ lý tổng hợp cuộc họp. Tóm tắt các chủ đề chính đã được thảo luận trong bản ghi cuộc họp dưới đây, trình bày dưới dạng danh sách có tiêu đề rõ ràng."
	case models.SummarySpeaker:
		return "Bạn là trợ lý tổng hợp cuộc họp. Dựa trên bản ghi có gán người nói dưới đây, tóm tắt những gì mỗi người nói đã đóng góp hoặc đề cập trong cuộc họp."
	case models.SummaryActionItems:
		return "Bạn là trợ lý tổng hợp cuộc họp. Liệt kê các đầu việc (action items) được giao trong cuộc họp, kèm người phụ trách và thời hạn nếu được đề cập."
	case models.SummaryDecisionLog:
		return "Bạn là trợ lý tổng hợp cuộc họp. Liệt kê các quyết định đã được thống nhất trong cuộc họp."
	case models.SummaryBBHHDQT:
		return "Bạn là trợ lý soạn thảo biên bản họp Hội đồng quản trị. Soạn biên bản họp theo đúng văn phong hành chính, bao gồm thời gian, thành phần tham dự, nội dung thảo luận và kết luận."
	case models.SummaryNghiQuyet:
		return "Bạn là trợ lý soạn thảo nghị quyết. Soạn nghị quyết dựa trên các kết luận và quyết định được thống nhất trong cuộc họp, theo đúng văn phong hành chính."
	default:
		return "Tóm tắt nội dung cuộc họp dưới đây."
	}
}

// Instructions exposes instructions for the chat sub-engine's edit_summary
// path, which regenerates a summary type outside the normal flow.
func Instructions(t models.SummaryType) string { return instructions(t) }
