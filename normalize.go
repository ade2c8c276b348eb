package ai

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bitop-dev/aistream/logging"
	"github.com/bitop-dev/aistream/provider"
)

const defaultImageMediaType = "image/jpeg"

// standardizePrompt merges System, Prompt and Messages into one message list.
func standardizePrompt(req StreamTextRequest) ([]Message, error) {
	if req.Prompt != "" && len(req.Messages) > 0 {
		return nil, &InvalidPromptError{Message: "prompt and messages cannot both be set"}
	}
	if req.Prompt == "" && len(req.Messages) == 0 {
		return nil, &InvalidPromptError{Message: "prompt or messages must be set"}
	}

	out := make([]Message, 0, len(req.Messages)+2)
	if req.System != "" {
		out = append(out, System(req.System))
	}
	if len(req.Messages) > 0 {
		out = append(out, req.Messages...)
	} else {
		out = append(out, User(req.Prompt))
	}
	return out, nil
}

func toProviderMessages(msgs []Message, log logging.Logger) ([]provider.Message, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	out := make([]provider.Message, 0, len(msgs))
	for i, m := range msgs {
		pm, err := toProviderMessage(m, log)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		out = append(out, pm)
	}
	return out, nil
}

func toProviderMessage(m Message, log logging.Logger) (provider.Message, error) {
	pm := provider.Message{Name: m.Name, ToolCallID: m.ToolCallID}

	switch m.Role {
	case RoleSystem:
		pm.Role = provider.RoleSystem
	case RoleUser:
		pm.Role = provider.RoleUser
	case RoleAssistant:
		pm.Role = provider.RoleAssistant
	case RoleTool:
		pm.Role = provider.RoleTool
		if m.ToolCallID == "" {
			return provider.Message{}, &InvalidPromptError{Message: "tool message requires a tool call id"}
		}
	default:
		log.Warn("unknown message role, sending as user text", "role", string(m.Role))
		return provider.Message{
			Role:    provider.RoleUser,
			Content: []provider.ContentPart{provider.TextPart{Text: plainText(m.Content)}},
			Name:    m.Name,
		}, nil
	}

	for _, p := range m.Content {
		switch v := p.(type) {
		case TextPart:
			pm.Content = append(pm.Content, provider.TextPart{Text: v.Text})
		case ImagePart:
			img, err := toProviderImage(v)
			if err != nil {
				return provider.Message{}, err
			}
			pm.Content = append(pm.Content, img)
		case FilePart:
			fp, err := toProviderFile(v)
			if err != nil {
				return provider.Message{}, err
			}
			pm.Content = append(pm.Content, fp)
		case ReasoningPart:
			if m.Role != RoleAssistant {
				return provider.Message{}, &InvalidPromptError{Message: "reasoning is only allowed in assistant messages"}
			}
			pm.Content = append(pm.Content, provider.ReasoningPart{Text: v.Text, Signature: v.Signature})
		case ToolCallPart:
			if m.Role != RoleAssistant {
				return provider.Message{}, &InvalidPromptError{Message: "tool calls are only allowed in assistant messages"}
			}
			args := v.Args
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			pm.ToolCalls = append(pm.ToolCalls, provider.ToolCall{ID: v.ID, Name: v.Name, Args: append(json.RawMessage(nil), args...)})
		case ToolResultPart:
			if m.Role != RoleTool {
				return provider.Message{}, &InvalidPromptError{Message: "tool results are only allowed in tool messages"}
			}
			raw, err := json.Marshal(v.Result)
			if err != nil {
				return provider.Message{}, &InvalidPromptError{Message: "encode tool result", Cause: err}
			}
			pm.Content = append(pm.Content, provider.ToolResultPart{
				ToolCallID: v.ToolCallID,
				ToolName:   v.ToolName,
				Result:     raw,
				IsError:    v.IsError,
			})
		default:
			return provider.Message{}, &InvalidPromptError{Message: fmt.Sprintf("unknown content part type %T", p)}
		}
	}
	return pm, nil
}

func toProviderImage(v ImagePart) (provider.ImagePart, error) {
	mt := v.MediaType
	if mt == "" {
		mt = defaultImageMediaType
	}
	data, err := partBytes(v.Bytes, v.Base64)
	if err != nil {
		return provider.ImagePart{}, err
	}
	if len(data) == 0 && v.URL == "" {
		return provider.ImagePart{}, &InvalidPromptError{Message: "image part requires data or a url"}
	}
	return provider.ImagePart{Data: data, URL: v.URL, MediaType: mt}, nil
}

func toProviderFile(v FilePart) (provider.ContentPart, error) {
	mt := strings.ToLower(v.MediaType)
	switch {
	case strings.HasPrefix(mt, "image/"):
		return toProviderImage(ImagePart{URL: v.URL, MediaType: v.MediaType, Bytes: v.Bytes, Base64: v.Base64})
	case mt == "application/pdf", strings.HasPrefix(mt, "text/"):
		data, err := partBytes(v.Bytes, v.Base64)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 && v.URL == "" {
			return nil, &InvalidPromptError{Message: "file part requires data or a url"}
		}
		return provider.FilePart{Data: data, URL: v.URL, MediaType: v.MediaType, Filename: v.Filename}, nil
	default:
		return provider.TextPart{Text: filePlaceholder(v)}, nil
	}
}

func filePlaceholder(v FilePart) string {
	name := v.Filename
	if name == "" {
		name = "unnamed"
	}
	mt := v.MediaType
	if mt == "" {
		mt = "unknown"
	}
	return fmt.Sprintf("[file: %s (%s)]", name, mt)
}

func partBytes(b []byte, b64 string) ([]byte, error) {
	if len(b) > 0 {
		return append([]byte(nil), b...), nil
	}
	if b64 == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, &InvalidPromptError{Message: "decode base64 content", Cause: err}
	}
	return data, nil
}

func plainText(parts []ContentPart) string {
	var sb strings.Builder
	for _, p := range parts {
		switch v := p.(type) {
		case TextPart:
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(v.Text)
		case FilePart:
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(filePlaceholder(v))
		}
	}
	return sb.String()
}

func cloneStringMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
