// Package dispatcher turns Bedrock agent action-group events into operation
// invocations and builds the agent response.
package dispatcher

import "github.com/morezero/backup-assistant/pkg/response"

// Session attribute keys.
const (
	SessionAccountID = "AWSAccountId"
)

// Event parameter names. The Boto3 prefixed names are accepted for agents configured
// before the rename.
const (
	ParamRegion        = "AWSRegion"
	ParamAPIName       = "APIName"
	ParamAPINameLegacy = "Boto3APIName"
	ParamAPIJSON       = "APIJSON"
	ParamAPIJSONLegacy = "Boto3APIJSON"
)

// ResponseVersion is the message version of every response.
const ResponseVersion = "1.0"

// Agent identifies the calling agent.
type Agent struct {
	Name    string `json:"name"`
	ID      string `json:"id"`
	Alias   string `json:"alias"`
	Version string `json:"version"`
}

// Parameter is one function parameter of the event.
type Parameter struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Event is the action-group invocation event in function-details format.
type Event struct {
	MessageVersion          string            `json:"messageVersion"`
	Agent                   Agent             `json:"agent"`
	InputText               string            `json:"inputText"`
	SessionID               string            `json:"sessionId"`
	ActionGroup             string            `json:"actionGroup"`
	Function                string            `json:"function"`
	Parameters              []Parameter       `json:"parameters"`
	SessionAttributes       map[string]string `json:"sessionAttributes"`
	PromptSessionAttributes map[string]string `json:"promptSessionAttributes"`
}

// Param returns the value of the first parameter named one of names.
func (e *Event) Param(names ...string) (string, bool) {
	for _, n := range names {
		for _, p := range e.Parameters {
			if p.Name == n {
				return p.Value, true
			}
		}
	}
	return "", false
}

// TextBody carries the response text.
type TextBody struct {
	Body string `json:"body"`
}

// ResponseBody wraps the text body.
type ResponseBody struct {
	Text TextBody `json:"TEXT"`
}

// FunctionResponse carries the outcome. An empty ResponseState means success and is
// omitted from the JSON.
type FunctionResponse struct {
	ResponseState string       `json:"responseState,omitempty"`
	ResponseBody  ResponseBody `json:"responseBody"`
}

// ActionResponse echoes the action group and function.
type ActionResponse struct {
	ActionGroup      string           `json:"actionGroup"`
	Function         string           `json:"function"`
	FunctionResponse FunctionResponse `json:"functionResponse"`
}

// Response is the reply returned to the agent.
type Response struct {
	MessageVersion          string            `json:"messageVersion"`
	Response                ActionResponse    `json:"response"`
	SessionAttributes       map[string]string `json:"sessionAttributes"`
	PromptSessionAttributes map[string]string `json:"promptSessionAttributes"`
}

// State returns the response state, "" for success.
func (r *Response) State() string {
	return r.Response.FunctionResponse.ResponseState
}

// Body returns the response text.
func (r *Response) Body() string {
	return r.Response.FunctionResponse.ResponseBody.Text.Body
}

// FailureResponse is the reply for a request that never reached the dispatcher, e.g. an
// undecodable transport message.
func FailureResponse(msg string) *Response {
	return &Response{
		MessageVersion: ResponseVersion,
		Response: ActionResponse{
			FunctionResponse: FunctionResponse{
				ResponseState: string(response.StateFailure),
				ResponseBody:  ResponseBody{Text: TextBody{Body: msg}},
			},
		},
		SessionAttributes:       map[string]string{},
		PromptSessionAttributes: map[string]string{},
	}
}
