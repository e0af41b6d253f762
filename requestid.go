package strand

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader is echoed on every response and, when present on the
// request, adopted by UUIDGenerator.
const RequestIDHeader = "X-Request-Id"

// RequestID identifies one request. The server registers it for the
// request's handler chain, so it is available from any Context.
type RequestID string

// RequestIDGenerator produces the RequestID of a request. The server
// looks it up in its registry; the default is UUIDGenerator.
type RequestIDGenerator interface {
	Generate(r *http.Request) RequestID
}

type RequestIDGeneratorFunc func(r *http.Request) RequestID

func (f RequestIDGeneratorFunc) Generate(r *http.Request) RequestID { return f(r) }

// UUIDGenerator trusts an incoming X-Request-Id up to 128 bytes and
// otherwise issues a random UUID.
type UUIDGenerator struct{}

const maxIncomingRequestID = 128

func (UUIDGenerator) Generate(r *http.Request) RequestID {
	if id := r.Header.Get(RequestIDHeader); id != "" && len(id) <= maxIncomingRequestID {
		return RequestID(id)
	}
	return RequestID(uuid.NewString())
}
