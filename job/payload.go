package job

// Payload is the opaque, caller-produced parameter blob handed to a
// worker's processor. It is stored as a self-describing text blob
// (JSON, via the store's jsonb column type) and is never parsed or
// validated by the core; the "kind" key is not enforced either.
//
// Payload does not enforce immutability. Callers should treat a Payload
// as immutable once submitted, to avoid data races with the store
// layer's own (de)serialization.
type Payload map[string]any

// KindKey names the conventional "kind" field of a Payload. The core
// does not read it; it is set by NewPayload and read by Kind.
const KindKey = "kind"

// NewPayload creates a Payload with its required "kind" field set.
func NewPayload(kind string) Payload {
	return Payload{KindKey: kind}
}

// Kind returns the payload's "kind" field, or "" if unset or not a
// string.
func (p Payload) Kind() string {
	kind, _ := Get[string](p, KindKey)
	return kind
}

// Get returns the value associated with key, or nil if absent.
func (p Payload) Get(key string) any {
	if p == nil {
		return nil
	}
	return p[key]
}

// Set stores key/value in the payload.
func (p Payload) Set(key string, value any) {
	p[key] = value
}

// Get retrieves a payload value and attempts to cast it to type T.
//
// If the key does not exist or the stored value is not of type T, Get
// returns the zero value of T and false.
func Get[T any](p Payload, key string) (T, bool) {
	raw, ok := p[key]
	if !ok {
		var zero T
		return zero, false
	}
	ret, ok := raw.(T)
	if !ok {
		var zero T
		return zero, false
	}
	return ret, true
}

// Set stores a type-safe value in the payload using a generic helper.
func Set[T any](p Payload, key string, value T) {
	p[key] = value
}
