package llm

import "context"

// Fake is a deterministic Service used in controller and pipeline tests.
// Reply, when set, is returned as the single choice of every
// ChatCompletion call; otherwise a canned echo of the last message is
// returned so assertions can check that the right prompt reached the LLM.
type Fake struct {
	Reply string
	Err   error
}

func (f *Fake) GetModels(ctx context.Context) ([]string, error) {
	return []string{"fake-model"}, nil
}

func (f *Fake) ChatCompletion(ctx context.Context, model string, messages []ChatMessage, temperature float64) (*ChatResponse, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	content := f.Reply
	if content == "" && len(messages) > 0 {
		content = "echo: " + messages[len(messages)-1].Content
	}
	resp := &ChatResponse{Model: model}
	resp.Choices = []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	}{
		{Index: 0, Message: struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}{Role: "assistant", Content: content}, FinishReason: "stop"},
	}
	return resp, nil
}

func (f *Fake) ChatCompletionStream(ctx context.Context, model string, messages []ChatMessage, temperature float64) (<-chan string, <-chan error) {
	out := make(chan string, 1)
	errc := make(chan error, 1)
	resp, err := f.ChatCompletion(ctx, model, messages, temperature)
	if err != nil {
		errc <- err
	} else if len(resp.Choices) > 0 {
		out <- resp.Choices[0].Message.Content
	}
	close(out)
	close(errc)
	return out, errc
}

func (f *Fake) GetContextWindow(ctx context.Context, model string) (int, error) {
	return 8192, nil
}
