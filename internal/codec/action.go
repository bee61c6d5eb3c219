package codec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vehicle-signal/vis-server/internal/errorset"
)

// FilterRange is the inclusive numeric bound pair of a subscription filter.
type FilterRange struct {
	Below *Number `json:"below,omitempty"`
	Above *Number `json:"above,omitempty"`
}

// Filters is the optional per-subscription filter spec. Interval is always
// milliseconds.
type Filters struct {
	IntervalMillis *int64       `json:"interval,omitempty"`
	Range          *FilterRange `json:"range,omitempty"`
	MinChange      *Number      `json:"minChange,omitempty"`
}

// Requests, one struct per action. Each carries the fields that action's
// wire body defines; the action string itself is consumed by DecodeAction
// and is not repeated here.

type GetRequest struct {
	Path      Path
	RequestID RequestID
}

type SetRequest struct {
	Path      Path
	Value     Value
	RequestID RequestID
}

type SubscribeRequest struct {
	Path      Path
	RequestID RequestID
	Filters   *Filters
}

type UnsubscribeRequest struct {
	RequestID      RequestID
	SubscriptionID SubscriptionID
}

type UnsubscribeAllRequest struct {
	RequestID RequestID
}

type AuthorizeRequest struct {
	RequestID RequestID
}

type GetMetadataRequest struct {
	Path      Path
	RequestID RequestID
}

// wire decode shapes, unexported: every field optional since which ones are
// present depends on the action.
type wireRequest struct {
	Action         string          `json:"action"`
	Path           *Path           `json:"path"`
	Value          json.RawMessage `json:"value"`
	RequestID      *RequestID      `json:"requestId"`
	SubscriptionID *SubscriptionID `json:"subscriptionId"`
	Filters        *Filters        `json:"filters"`
}

// DecodeAction parses one inbound WebSocket text frame into the concrete
// request struct for its action. The action string is matched
// case-insensitively. An unrecognized or malformed frame returns a
// bad_request AppError; a recognized but unsupported action (authorize,
// getMetadata) returns a *AuthorizeRequest / *GetMetadataRequest so the
// caller can respond with not_implemented while still echoing the request
// id it carried.
func DecodeAction(data []byte) (interface{}, error) {
	var w wireRequest
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errorset.BadRequest(err.Error())
	}

	action := strings.ToLower(strings.TrimSpace(w.Action))

	requestID := func() RequestID {
		if w.RequestID != nil {
			return *w.RequestID
		}
		return NewRequestID()
	}

	switch action {
	case "get":
		if w.Path == nil {
			return nil, errorset.BadRequest("get request missing path")
		}
		return &GetRequest{Path: *w.Path, RequestID: requestID()}, nil
	case "set":
		if w.Path == nil {
			return nil, errorset.BadRequest("set request missing path")
		}
		return &SetRequest{Path: *w.Path, Value: ValueFromJSON(w.Value), RequestID: requestID()}, nil
	case "subscribe":
		if w.Path == nil {
			return nil, errorset.BadRequest("subscribe request missing path")
		}
		return &SubscribeRequest{Path: *w.Path, RequestID: requestID(), Filters: w.Filters}, nil
	case "unsubscribe":
		if w.SubscriptionID == nil {
			return nil, errorset.BadRequest("unsubscribe request missing subscriptionId")
		}
		return &UnsubscribeRequest{RequestID: requestID(), SubscriptionID: *w.SubscriptionID}, nil
	case "unsubscribeall":
		return &UnsubscribeAllRequest{RequestID: requestID()}, nil
	case "authorize":
		return &AuthorizeRequest{RequestID: requestID()}, nil
	case "getmetadata":
		if w.Path == nil {
			return nil, errorset.BadRequest("getMetadata request missing path")
		}
		return &GetMetadataRequest{Path: *w.Path, RequestID: requestID()}, nil
	default:
		return nil, errorset.BadRequest(fmt.Sprintf("unrecognized action %q", w.Action))
	}
}

// Success responses, one per action, plus the server-pushed Subscription
// notification.

type GetResponse struct {
	RequestID RequestID `json:"requestId"`
	Value     Value     `json:"value"`
	Timestamp int64     `json:"timestamp"`
}

func (r GetResponse) MarshalJSON() ([]byte, error) {
	type alias GetResponse
	return json.Marshal(struct {
		Action string `json:"action"`
		alias
	}{Action: "get", alias: alias(r)})
}

type SetResponse struct {
	RequestID RequestID `json:"requestId"`
	Timestamp int64     `json:"timestamp"`
}

func (r SetResponse) MarshalJSON() ([]byte, error) {
	type alias SetResponse
	return json.Marshal(struct {
		Action string `json:"action"`
		alias
	}{Action: "set", alias: alias(r)})
}

type SubscribeResponse struct {
	RequestID      RequestID      `json:"requestId"`
	SubscriptionID SubscriptionID `json:"subscriptionId"`
	Timestamp      int64          `json:"timestamp"`
}

func (r SubscribeResponse) MarshalJSON() ([]byte, error) {
	type alias SubscribeResponse
	return json.Marshal(struct {
		Action string `json:"action"`
		alias
	}{Action: "subscribe", alias: alias(r)})
}

type UnsubscribeResponse struct {
	RequestID      RequestID      `json:"requestId"`
	SubscriptionID SubscriptionID `json:"subscriptionId"`
	Timestamp      int64          `json:"timestamp"`
}

func (r UnsubscribeResponse) MarshalJSON() ([]byte, error) {
	type alias UnsubscribeResponse
	return json.Marshal(struct {
		Action string `json:"action"`
		alias
	}{Action: "unsubscribe", alias: alias(r)})
}

type UnsubscribeAllResponse struct {
	RequestID RequestID `json:"requestId"`
	Timestamp int64     `json:"timestamp"`
}

func (r UnsubscribeAllResponse) MarshalJSON() ([]byte, error) {
	type alias UnsubscribeAllResponse
	return json.Marshal(struct {
		Action string `json:"action"`
		alias
	}{Action: "unsubscribeAll", alias: alias(r)})
}

type SubscriptionNotification struct {
	SubscriptionID SubscriptionID `json:"subscriptionId"`
	Value          Value          `json:"value"`
	Timestamp      int64          `json:"timestamp"`
}

func (r SubscriptionNotification) MarshalJSON() ([]byte, error) {
	type alias SubscriptionNotification
	return json.Marshal(struct {
		Action string `json:"action"`
		alias
	}{Action: "subscription", alias: alias(r)})
}

// ActionErrorResponse is the shared error-frame shape for every action:
// requestId and/or subscriptionId (whichever the failing request carried),
// the error body, and a timestamp.
type ActionErrorResponse struct {
	Action         string                  `json:"action"`
	RequestID      *RequestID              `json:"requestId,omitempty"`
	SubscriptionID *SubscriptionID         `json:"subscriptionId,omitempty"`
	Error          errorset.ErrorResponse  `json:"error"`
	Timestamp      int64                   `json:"timestamp"`
}

// NewActionError builds an error-frame response for the named action.
func NewActionError(action string, requestID *RequestID, subscriptionID *SubscriptionID, err *errorset.AppError, now int64) ActionErrorResponse {
	return ActionErrorResponse{
		Action:         action,
		RequestID:      requestID,
		SubscriptionID: subscriptionID,
		Error:          err.ToResponse(),
		Timestamp:      now,
	}
}
