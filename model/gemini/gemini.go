// Package gemini provides a model.Model backed by the native Google Gemini
// API through the google.golang.org/genai SDK.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/model"
)

// Options configures the Gemini model adapter.
type Options struct {
	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int32
}

// Model wraps the genai client behind the generic model.Model interface.
type Model struct {
	client *genai.Client
	opts   Options
}

// NewModel creates a Gemini model. An API key is required.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := Options{
		Model:       "gemini-2.0-flash",
		Temperature: 0.7,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Model{client: client, opts: opts}, nil
}

// NewModelFromClient creates a Gemini model from an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{Model: "gemini-2.0-flash", Temperature: 0.7}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements unified streaming / non-streaming generation.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		contents := buildContents(req.Contents)
		config := m.buildConfig(req)

		if !req.Stream {
			resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, contents, config)
			if err != nil {
				errCh <- fmt.Errorf("gemini generation failed: %w", err)
				return
			}
			final, err := parseResponse(resp)
			if err != nil {
				errCh <- err
				return
			}
			out <- final
			return
		}

		var (
			text   strings.Builder
			calls  []core.Part
			finish = "stop"
			usage  *model.TokenUsage
		)
		for resp, err := range m.client.Models.GenerateContentStream(ctx, m.opts.Model, contents, config) {
			if err != nil {
				errCh <- fmt.Errorf("gemini streaming error: %w", err)
				return
			}
			if resp.UsageMetadata != nil {
				usage = toUsage(resp.UsageMetadata)
			}
			if len(resp.Candidates) == 0 {
				continue
			}
			cand := resp.Candidates[0]
			if cand.FinishReason != "" {
				finish = mapFinishReason(cand.FinishReason)
			}
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part.Text != "" && !part.Thought {
					text.WriteString(part.Text)
					out <- model.Response{
						Partial: true,
						Content: core.NewTextContent(core.RoleAssistant, part.Text),
					}
				}
				if part.FunctionCall != nil {
					calls = append(calls, functionCallPart(part.FunctionCall, len(calls)))
				}
			}
		}

		parts := make([]core.Part, 0, len(calls)+1)
		if text.Len() > 0 {
			parts = append(parts, core.TextPart{Text: text.String()})
		}
		parts = append(parts, calls...)
		if len(calls) > 0 {
			finish = "tool_calls"
		}
		out <- model.Response{
			Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
			FinishReason: finish,
			Usage:        usage,
		}
	}()

	return out, errCh
}

// buildContents converts history to genai contents. Tool results are sent as
// user role function responses.
func buildContents(contents []core.Content) []*genai.Content {
	var out []*genai.Content
	for _, c := range contents {
		var parts []*genai.Part
		role := genai.RoleUser
		switch c.Role {
		case core.RoleSystem:
			continue
		case core.RoleAssistant:
			role = genai.RoleModel
		}
		for _, p := range c.Parts {
			switch part := p.(type) {
			case core.TextPart:
				if part.Text != "" {
					parts = append(parts, &genai.Part{Text: part.Text})
				}
			case core.FunctionCallPart:
				args := map[string]any{}
				if part.FunctionCall.Arguments != "" {
					_ = json.Unmarshal([]byte(part.FunctionCall.Arguments), &args)
				}
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   part.FunctionCall.ID,
					Name: part.FunctionCall.Name,
					Args: args,
				}})
			case core.FunctionResponsePart:
				fr := part.FunctionResponse
				response := map[string]any{"result": fr.Response}
				if fr.Error != "" {
					response = map[string]any{"error": fr.Error}
				}
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       fr.ID,
					Name:     fr.Name,
					Response: response,
				}})
			}
		}
		if len(parts) > 0 {
			out = append(out, &genai.Content{Role: string(role), Parts: parts})
		}
	}
	return out
}

func (m *Model) buildConfig(req model.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	var system []string
	if req.Instructions != "" {
		system = append(system, req.Instructions)
	}
	for _, c := range req.Contents {
		if c.Role == core.RoleSystem && c.Text() != "" {
			system = append(system, c.Text())
		}
	}
	if len(system) > 0 {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}},
		}
	}

	temperature := m.opts.Temperature
	if req.Settings.Temperature != nil {
		temperature = *req.Settings.Temperature
	}
	config.Temperature = genai.Ptr(float32(temperature))

	if req.Settings.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.Settings.MaxTokens)
	} else if m.opts.MaxTokens > 0 {
		config.MaxOutputTokens = m.opts.MaxTokens
	}

	if req.OutputSchema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = toSchema(req.OutputSchema)
	}

	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  toSchema(t.Function.Parameters),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
		config.ToolConfig = toolConfig(req.Settings.ToolChoice)
	}

	return config
}

func toolConfig(choice string) *genai.ToolConfig {
	fc := &genai.FunctionCallingConfig{}
	switch choice {
	case "":
		return nil
	case model.ToolChoiceAuto:
		fc.Mode = genai.FunctionCallingConfigModeAuto
	case model.ToolChoiceRequired:
		fc.Mode = genai.FunctionCallingConfigModeAny
	case model.ToolChoiceNone:
		fc.Mode = genai.FunctionCallingConfigModeNone
	default:
		fc.Mode = genai.FunctionCallingConfigModeAny
		fc.AllowedFunctionNames = []string{choice}
	}
	return &genai.ToolConfig{FunctionCallingConfig: fc}
}

// toSchema converts a JSON schema map into a genai.Schema.
func toSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}

	s := &genai.Schema{}
	if t, ok := schema["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				s.Properties[name] = toSchema(propMap)
			}
		}
	}
	s.Required = stringList(schema["required"])
	s.Enum = stringList(schema["enum"])
	if items, ok := schema["items"].(map[string]any); ok {
		s.Items = toSchema(items)
	}
	return s
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, e := range list {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func functionCallPart(fc *genai.FunctionCall, n int) core.Part {
	args, err := json.Marshal(fc.Args)
	if err != nil || fc.Args == nil {
		args = []byte("{}")
	}
	id := fc.ID
	if id == "" {
		id = fmt.Sprintf("%s_%d", fc.Name, n)
	}
	return core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: fc.Name, Arguments: string(args)}}
}

func parseResponse(resp *genai.GenerateContentResponse) (model.Response, error) {
	if len(resp.Candidates) == 0 {
		return model.Response{}, fmt.Errorf("gemini: empty response")
	}
	cand := resp.Candidates[0]

	var parts []core.Part
	var calls int
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part.Text != "" && !part.Thought {
				parts = append(parts, core.TextPart{Text: part.Text})
			}
			if part.FunctionCall != nil {
				parts = append(parts, functionCallPart(part.FunctionCall, calls))
				calls++
			}
		}
	}

	finish := mapFinishReason(cand.FinishReason)
	if calls > 0 {
		finish = "tool_calls"
	}

	out := model.Response{
		ID:           resp.ResponseID,
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: finish,
	}
	if resp.UsageMetadata != nil {
		out.Usage = toUsage(resp.UsageMetadata)
	}
	return out, nil
}

func toUsage(u *genai.GenerateContentResponseUsageMetadata) *model.TokenUsage {
	return &model.TokenUsage{
		PromptTokens:     int(u.PromptTokenCount),
		CompletionTokens: int(u.CandidatesTokenCount),
		TotalTokens:      int(u.TotalTokenCount),
	}
}

func mapFinishReason(reason genai.FinishReason) string {
	switch reason {
	case genai.FinishReasonMaxTokens:
		return "length"
	case genai.FinishReasonSafety:
		return "content_filter"
	default:
		return "stop"
	}
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "gemini",
		SupportsTools: true,
	}
}
