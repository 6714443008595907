// Package generator drives the chat model: one completion call that may
// request a tool, an optional tool round trip, and a final answer.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go/v2"
)

// ErrModelUnavailable wraps chat API failures so callers can distinguish a
// model outage from bad input.
var ErrModelUnavailable = errors.New("chat model unavailable")

// systemPrompt steers the model toward course material answers and caps it
// at one tool round per query.
const systemPrompt = `You are an AI assistant specialized in course materials and educational content with access to comprehensive search and outline tools for course information.

Tool Usage Guidelines:
- **Course content search tool**: Use for questions about specific course content or detailed educational materials
- **Course outline tool**: Use for questions about course structure, lesson lists, or course overviews
- **One tool use per query maximum**
- Synthesize tool results into accurate, fact-based responses
- If tools yield no results, state this clearly without offering alternatives

Response Protocol:
- **General knowledge questions**: Answer using existing knowledge without using tools
- **Course-specific content questions**: Use search tool first, then answer
- **Course outline/structure questions**: Use outline tool to provide course title, course link, and complete lesson list with numbers and titles
- **No meta-commentary**:
 - Provide direct answers only, no reasoning process, tool explanations, or question-type analysis
 - Do not mention "based on the search results" or "using the tool"

All responses must be:
1. **Brief, Concise and focused** - Get to the point quickly
2. **Educational** - Maintain instructional value
3. **Clear** - Use accessible language
4. **Example-supported** - Include relevant examples when they aid understanding
Provide only the direct answer to what was asked.`

// ToolExecutor supplies tool schemas and dispatches invocations. Satisfied
// by search.Registry.
type ToolExecutor interface {
	Definitions() []openai.ChatCompletionToolUnionParam
	Execute(ctx context.Context, name string, args json.RawMessage) (string, error)
}

// Generator produces answers through the OpenAI chat completions API.
type Generator struct {
	client    *openai.Client
	model     openai.ChatModel
	maxTokens int64
	logger    *slog.Logger
}

// New creates a generator backed by the given chat client.
func New(client *openai.Client, model string, maxTokens int64, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		client:    client,
		model:     openai.ChatModel(model),
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Generate answers a query, running at most one tool round trip. A tool
// request in the follow-up call is logged and whatever text the model
// produced alongside it is returned.
func (g *Generator) Generate(ctx context.Context, query, history string, tools ToolExecutor) (string, error) {
	messages, params := g.baseParams(query, history)
	if tools != nil {
		params.Tools = tools.Definitions()
	}

	completion, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", ErrModelUnavailable)
	}

	msg := completion.Choices[0].Message
	if len(msg.ToolCalls) == 0 || tools == nil {
		return msg.Content, nil
	}

	messages = g.appendToolRound(ctx, messages, msg, tools)

	params.Messages = messages
	params.Tools = nil

	final, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if len(final.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", ErrModelUnavailable)
	}

	finalMsg := final.Choices[0].Message
	if len(finalMsg.ToolCalls) > 0 {
		g.logger.Warn("model requested a tool after its tool round, surfacing text as-is",
			"tool", finalMsg.ToolCalls[0].Function.Name)
	}
	return finalMsg.Content, nil
}

// GenerateStream answers a query, delivering the final answer through
// onDelta as it arrives. The tool decision is made with a non-streaming
// call; only the answer itself streams.
func (g *Generator) GenerateStream(ctx context.Context, query, history string, tools ToolExecutor, onDelta func(string) error) (string, error) {
	messages, params := g.baseParams(query, history)
	if tools != nil {
		params.Tools = tools.Definitions()
	}

	completion, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", ErrModelUnavailable)
	}

	msg := completion.Choices[0].Message
	if len(msg.ToolCalls) == 0 || tools == nil {
		// Answer is already complete; deliver it as one delta.
		if msg.Content != "" {
			if err := onDelta(msg.Content); err != nil {
				return "", err
			}
		}
		return msg.Content, nil
	}

	messages = g.appendToolRound(ctx, messages, msg, tools)

	params.Messages = messages
	params.Tools = nil

	stream := g.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			if err := onDelta(delta); err != nil {
				return "", err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	if len(acc.Choices) == 0 {
		return "", fmt.Errorf("%w: empty stream", ErrModelUnavailable)
	}
	if acc.Choices[0].FinishReason == "tool_calls" {
		g.logger.Warn("model requested a tool after its tool round, surfacing text as-is")
	}
	return acc.Choices[0].Message.Content, nil
}

// baseParams builds the shared message list and request parameters.
func (g *Generator) baseParams(query, history string) ([]openai.ChatCompletionMessageParamUnion, openai.ChatCompletionNewParams) {
	system := systemPrompt
	if history != "" {
		system = fmt.Sprintf("%s\n\nPrevious conversation:\n%s", systemPrompt, history)
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(system),
		openai.UserMessage(query),
	}
	params := openai.ChatCompletionNewParams{
		Model:               g.model,
		Messages:            messages,
		Temperature:         openai.Float(0),
		MaxCompletionTokens: openai.Int(g.maxTokens),
	}
	return messages, params
}

// appendToolRound executes every tool call in msg and appends the assistant
// turn plus one tool result message per call. Execution failures become
// result text so the model can explain the limitation.
func (g *Generator) appendToolRound(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, msg openai.ChatCompletionMessage, tools ToolExecutor) []openai.ChatCompletionMessageParamUnion {
	messages = append(messages, msg.ToParam())

	for _, tc := range msg.ToolCalls {
		name := tc.Function.Name
		g.logger.Debug("executing tool", "tool", name)

		result, err := tools.Execute(ctx, name, json.RawMessage(tc.Function.Arguments))
		if err != nil {
			g.logger.Warn("tool execution failed", "tool", name, "error", err)
			result = fmt.Sprintf("Tool execution failed: %v", err)
		}
		messages = append(messages, openai.ToolMessage(result, tc.ID))
	}
	return messages
}
