package protocol

import "github.com/dohr-michael/chatwidget/internal/frames"

// JSONLinesBody is the shape A request body.
type JSONLinesBody struct {
	Message string   `json:"message"`
	Images  []string `json:"images"`
	Agent   bool     `json:"agent"`
	Stream  bool     `json:"stream"`
}

// JSONLines posts shape A bodies and decodes newline-delimited JSON objects.
type JSONLines struct {
	decoder frames.Decoder
}

func (JSONLines) Name() string        { return NameJSONLines }
func (JSONLines) DefaultPath() string { return "/chat/chat" }

func (p JSONLines) Decoder() frames.Decoder {
	if p.decoder == nil {
		return frames.JSONDecoder{Path: frames.DefaultContentPath}
	}
	return p.decoder
}

func (JSONLines) Body(req Request) any {
	images := []string{}
	if req.Image != nil {
		images = append(images, req.Image.DataURL())
	}
	return JSONLinesBody{
		Message: req.Text,
		Images:  images,
		Agent:   req.AgentMode,
		Stream:  true,
	}
}

// PrefixedBody is the shape B request body.
type PrefixedBody struct {
	Text        string `json:"text,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
	UseAgent    bool   `json:"use_agent"`
	Stream      bool   `json:"stream"`
}

// Prefixed posts shape B bodies and decodes prefixed text lines.
type Prefixed struct {
	decoder frames.Decoder
}

func (Prefixed) Name() string        { return NamePrefixed }
func (Prefixed) DefaultPath() string { return "/api/chat/chat" }

func (p Prefixed) Decoder() frames.Decoder {
	if p.decoder == nil {
		return frames.PrefixDecoder{Prefix: frames.DefaultPrefix}
	}
	return p.decoder
}

func (Prefixed) Body(req Request) any {
	body := PrefixedBody{
		Text:     req.Text,
		UseAgent: req.AgentMode,
		Stream:   true,
	}
	if req.Image != nil {
		body.ImageBase64 = req.Image.DataURL()
	}
	return body
}
