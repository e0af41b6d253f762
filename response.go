package strand

import (
	"io"
	"net/http"
	"strconv"

	"github.com/dormoron/strand/internal/errs"
)

var _ http.ResponseWriter = &Response{}

// ErrResponseCommitted is returned when a response is sent twice.
var ErrResponseCommitted = errs.ErrResponseCommitted

const chunkSize = 4096

// Response accumulates status and headers until it is sent. Once the
// header is written the response is committed and further sends fail
// with ErrResponseCommitted.
//
// Response is also an http.ResponseWriter so that net/http helpers such
// as http.ServeContent can stream into it; the first Write commits.
type Response struct {
	writer     http.ResponseWriter
	status     int
	committed  bool
	written    int
	beforeSend []func(r *Response)
	tee        io.Writer
}

func newResponse(w http.ResponseWriter) *Response {
	return &Response{writer: w}
}

// Status sets the status to send. It has no effect once the response
// is committed.
func (r *Response) Status(code int) *Response {
	if !r.committed {
		r.status = code
	}
	return r
}

// StatusCode is the status sent, or to be sent. It defaults to 200.
func (r *Response) StatusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (r *Response) Header() http.Header {
	return r.writer.Header()
}

func (r *Response) ContentType(contentType string) *Response {
	r.writer.Header().Set("Content-Type", contentType)
	return r
}

func (r *Response) Cookie(ck *http.Cookie) *Response {
	http.SetCookie(r.writer, ck)
	return r
}

// BeforeSend registers fn to run just before the header is written.
// Hooks run in registration order and may still change status and
// headers.
func (r *Response) BeforeSend(fn func(r *Response)) *Response {
	r.beforeSend = append(r.beforeSend, fn)
	return r
}

// Tee copies the body bytes written from now on to w, e.g. to cache a
// response while it is sent. Errors from w are ignored.
func (r *Response) Tee(w io.Writer) *Response {
	r.tee = w
	return r
}

func (r *Response) Committed() bool {
	return r.committed
}

// BytesWritten counts the body bytes written so far.
func (r *Response) BytesWritten() int {
	return r.written
}

func (r *Response) commit() error {
	if r.committed {
		return ErrResponseCommitted
	}
	for _, fn := range r.beforeSend {
		fn(r)
	}
	r.committed = true
	r.writer.WriteHeader(r.StatusCode())
	return nil
}

// Send writes body as the complete response. Without a Content-Type the
// body is sent as application/octet-stream.
func (r *Response) Send(body []byte) error {
	if r.committed {
		return ErrResponseCommitted
	}
	h := r.writer.Header()
	if body != nil && h.Get("Content-Type") == "" {
		h.Set("Content-Type", "application/octet-stream")
	}
	if bodyAllowed(r.StatusCode()) {
		h.Set("Content-Length", strconv.Itoa(len(body)))
	}
	if err := r.commit(); err != nil {
		return err
	}
	for len(body) > 0 {
		size := min(chunkSize, len(body))
		n, err := r.writer.Write(body[:size])
		r.copy(body[:n])
		r.written += n
		if err != nil {
			return err
		}
		body = body[size:]
	}
	return nil
}

// SendString sends s, as text/plain unless a Content-Type is set.
func (r *Response) SendString(s string) error {
	if r.writer.Header().Get("Content-Type") == "" {
		r.ContentType("text/plain; charset=utf-8")
	}
	return r.Send([]byte(s))
}

// SendStatus sends an empty response with code.
func (r *Response) SendStatus(code int) error {
	r.status = code
	return r.Send(nil)
}

func bodyAllowed(status int) bool {
	return status >= 200 && status != http.StatusNoContent && status != http.StatusNotModified
}

func (r *Response) WriteHeader(code int) {
	if r.committed {
		return
	}
	r.status = code
	_ = r.commit()
}

func (r *Response) Write(p []byte) (int, error) {
	if !r.committed {
		_ = r.commit()
	}
	n, err := r.writer.Write(p)
	r.copy(p[:n])
	r.written += n
	return n, err
}

func (r *Response) copy(p []byte) {
	if r.tee != nil && len(p) > 0 {
		_, _ = r.tee.Write(p)
	}
}
