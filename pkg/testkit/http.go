package testkit

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/phonedeals/pkg/response"
)

// Request describes one call made through Do.
type Request struct {
	Method  string
	Path    string
	Body    any
	Token   string
	Cookies []*http.Cookie
	Header  http.Header
}

// Response is a recorded reply with its decoded envelope.
type Response struct {
	Code     int
	Header   http.Header
	Cookies  []*http.Cookie
	Raw      []byte
	Envelope response.Envelope
}

// Do serves req through h and decodes the JSON envelope when there is one.
func Do(t testing.TB, h http.Handler, req Request) Response {
	t.Helper()

	var body io.Reader
	switch b := req.Body.(type) {
	case nil:
	case string:
		body = bytes.NewBufferString(b)
	case []byte:
		body = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	r := httptest.NewRequest(req.Method, req.Path, body)
	for k, vs := range req.Header {
		for _, v := range vs {
			r.Header.Add(k, v)
		}
	}
	if body != nil && r.Header.Get("Content-Type") == "" {
		r.Header.Set("Content-Type", "application/json")
	}
	if req.Token != "" {
		r.Header.Set("Authorization", "Bearer "+req.Token)
	}
	for _, c := range req.Cookies {
		r.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	res := Response{
		Code:    rec.Code,
		Header:  rec.Header(),
		Cookies: rec.Result().Cookies(),
		Raw:     rec.Body.Bytes(),
	}
	if ct := rec.Header().Get("Content-Type"); len(res.Raw) > 0 && ct == "application/json" {
		require.NoError(t, json.Unmarshal(res.Raw, &res.Envelope), string(res.Raw))
	}
	return res
}

// Data re-decodes the envelope's data member into dest.
func (r Response) Data(t testing.TB, dest any) {
	t.Helper()
	raw, err := json.Marshal(r.Envelope.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, dest), string(r.Raw))
}
