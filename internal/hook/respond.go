package hook

import (
	"encoding/json"
	"strings"
)

// Default status text when no handler contributed any.
const defaultStatusText = "Claude"

// Response is the serialized JSON envelope written back to the client.
type Response struct {
	Decision           string          `json:"decision,omitempty"`
	Reason             string          `json:"reason,omitempty"`
	Text               string          `json:"text,omitempty"`
	HookSpecificOutput *SpecificOutput `json:"hookSpecificOutput,omitempty"`
}

// SpecificOutput is the event-scoped response block the agent consumes.
type SpecificOutput struct {
	HookEventName            string `json:"hookEventName"`
	PermissionDecision       string `json:"permissionDecision,omitempty"`
	PermissionDecisionReason string `json:"permissionDecisionReason,omitempty"`
	AdditionalContext        string `json:"additionalContext,omitempty"`
	Guidance                 string `json:"guidance,omitempty"`
}

// EmptyResponse is the minimal valid response: a silent allow.
var EmptyResponse = []byte("{}")

// MarshalResponse shapes a dispatch result into the response schema for the
// event type. It never fails: any internal marshal problem degrades to the
// empty response.
func MarshalResponse(eventType EventType, res Result) []byte {
	resp := ShapeResponse(eventType, res)
	data, err := json.Marshal(resp)
	if err != nil {
		return EmptyResponse
	}
	return data
}

// ShapeResponse builds the response envelope without serializing it.
func ShapeResponse(eventType EventType, res Result) Response {
	additional := strings.Join(res.Context, "\n")

	switch eventType.Category() {
	case CategoryGating:
		return shapeGating(eventType, res, additional)
	case CategoryContinuation:
		return shapeContinuation(eventType, res, additional)
	case CategoryContext:
		if additional == "" && res.Guidance == "" {
			return Response{}
		}
		return Response{HookSpecificOutput: &SpecificOutput{
			HookEventName:     string(eventType),
			AdditionalContext: additional,
			Guidance:          res.Guidance,
		}}
	case CategoryStatusText:
		text := additional
		if strings.TrimSpace(text) == "" {
			text = defaultStatusText
		}
		return Response{Text: text}
	default:
		return Response{}
	}
}

func shapeGating(eventType EventType, res Result, additional string) Response {
	decision := res.Decision
	// Continue carries no gating meaning; the operation proceeds.
	if decision == DecisionContinue || !decision.Valid() {
		decision = DecisionAllow
	}
	if decision == DecisionAllow && res.Reason == "" && additional == "" && res.Guidance == "" {
		return Response{}
	}
	return Response{HookSpecificOutput: &SpecificOutput{
		HookEventName:            string(eventType),
		PermissionDecision:       string(decision),
		PermissionDecisionReason: res.Reason,
		AdditionalContext:        additional,
		Guidance:                 res.Guidance,
	}}
}

func shapeContinuation(eventType EventType, res Result, additional string) Response {
	var resp Response
	if res.Decision.Blocking() {
		resp.Decision = "block"
		resp.Reason = res.Reason
	}
	if additional != "" || res.Guidance != "" {
		resp.HookSpecificOutput = &SpecificOutput{
			HookEventName:     string(eventType),
			AdditionalContext: additional,
			Guidance:          res.Guidance,
		}
	}
	return resp
}
