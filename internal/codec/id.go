package codec

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// wireID is the tagged-union representation shared by request ids and
// subscription ids: on the wire always a JSON string, holding either a
// decimal integer or a UUID. All of its fields are comparable, so wireID (and the
// named types built on it) can be used directly as map keys.
type wireID struct {
	isUUID bool
	uuid   uuid.UUID
	intVal uint64
}

func parseWireID(s string) (wireID, error) {
	if u, err := uuid.Parse(s); err == nil {
		return wireID{isUUID: true, uuid: u}, nil
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return wireID{intVal: n}, nil
	}
	return wireID{}, fmt.Errorf("value is neither a uuid nor an integer: %q", s)
}

func newWireUUID() wireID {
	return wireID{isUUID: true, uuid: uuid.New()}
}

func (w wireID) String() string {
	if w.isUUID {
		return w.uuid.String()
	}
	return strconv.FormatUint(w.intVal, 10)
}

// RequestID is the tagged union {integer, UUID} client requests are
// correlated by. Always a JSON string on the wire.
type RequestID struct {
	id wireID
}

// NewRequestID mints a fresh v4-UUID request id, the default construction
// used when the server originates a request id rather than echoing one.
func NewRequestID() RequestID {
	return RequestID{id: newWireUUID()}
}

func (r RequestID) String() string { return r.id.String() }

func (r RequestID) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.id.String())
}

func (r *RequestID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := parseWireID(s)
	if err != nil {
		return err
	}
	r.id = id
	return nil
}

// SubscriptionID is the tagged union {integer, UUID} identifying a standing
// subscription. The server always mints v4 UUIDs, but decode accepts either
// form since the wire rules match RequestID's.
type SubscriptionID struct {
	id wireID
}

// NewSubscriptionID mints a fresh v4-UUID subscription id.
func NewSubscriptionID() SubscriptionID {
	return SubscriptionID{id: newWireUUID()}
}

func (s SubscriptionID) String() string { return s.id.String() }

func (s SubscriptionID) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.id.String())
}

func (s *SubscriptionID) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	id, err := parseWireID(str)
	if err != nil {
		return err
	}
	s.id = id
	return nil
}
