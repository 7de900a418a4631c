package agent

import (
	"encoding/json"
	"strings"
)

// orchestrateReply covers the reply shapes the orchestrate service is known
// to produce.
type orchestrateReply struct {
	Output   json.RawMessage `json:"output"`
	Text     any             `json:"text"`
	Message  any             `json:"message"`
	Response any             `json:"response"`
}

type replyOutput struct {
	Text    string `json:"text"`
	Generic []struct {
		ResponseType string `json:"response_type"`
		Text         string `json:"text"`
	} `json:"generic"`
}

// extractor pulls reply text out of one known shape.
type extractor func(r *orchestrateReply) (string, bool)

// replyExtractors are tried in order; the first non-empty match wins.
var replyExtractors = []extractor{
	outputText,
	outputGenericText,
	outputGenericFirst,
	outputString,
	topLevel(func(r *orchestrateReply) any { return r.Text }),
	topLevel(func(r *orchestrateReply) any { return r.Message }),
	topLevel(func(r *orchestrateReply) any { return r.Response }),
}

// ExtractReplyText turns a raw reply body into agent text. It never returns
// an empty string: unknown shapes come back as the body itself.
func ExtractReplyText(body []byte) string {
	var reply orchestrateReply
	if err := json.Unmarshal(body, &reply); err == nil {
		for _, ex := range replyExtractors {
			if text, ok := ex(&reply); ok {
				return text
			}
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return s
	}
	return "{}"
}

func decodeOutput(r *orchestrateReply) (replyOutput, bool) {
	var out replyOutput
	if len(r.Output) == 0 || r.Output[0] != '{' {
		return out, false
	}
	if err := json.Unmarshal(r.Output, &out); err != nil {
		return out, false
	}
	return out, true
}

func outputText(r *orchestrateReply) (string, bool) {
	out, ok := decodeOutput(r)
	return out.Text, ok && out.Text != ""
}

func outputGenericText(r *orchestrateReply) (string, bool) {
	out, ok := decodeOutput(r)
	if !ok {
		return "", false
	}
	for _, g := range out.Generic {
		if g.ResponseType == "text" && g.Text != "" {
			return g.Text, true
		}
	}
	return "", false
}

func outputGenericFirst(r *orchestrateReply) (string, bool) {
	out, ok := decodeOutput(r)
	if !ok || len(out.Generic) == 0 {
		return "", false
	}
	return out.Generic[0].Text, out.Generic[0].Text != ""
}

func outputString(r *orchestrateReply) (string, bool) {
	if len(r.Output) == 0 || r.Output[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(r.Output, &s); err != nil {
		return "", false
	}
	return s, s != ""
}

func topLevel(field func(r *orchestrateReply) any) extractor {
	return func(r *orchestrateReply) (string, bool) {
		s, ok := field(r).(string)
		return s, ok && s != ""
	}
}
