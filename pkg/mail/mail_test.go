package mail

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEscapesData(t *testing.T) {
	body, err := Render("verify_email", map[string]string{
		"Name":        "<b>Ann</b>",
		"Link":        "http://localhost:3000/auth?view=verify&token=abc",
		"DeclineLink": "http://localhost:3000/auth?view=decline&token=abc",
	})
	require.NoError(t, err)

	assert.Contains(t, body, "&lt;b&gt;Ann&lt;/b&gt;")
	assert.Contains(t, body, "token=abc")
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := Render("nope", nil)
	assert.Error(t, err)
}

func TestRawMessageHeaders(t *testing.T) {
	raw := string(Message{To: []string{"a@x.io", "b@x.io"}, Subject: "Hi", HTML: "<p>x</p>"}.raw("PD <no-reply@x.io>"))

	assert.True(t, strings.HasPrefix(raw, "From: PD <no-reply@x.io>\r\n"))
	assert.Contains(t, raw, "To: a@x.io, b@x.io\r\n")
	assert.Contains(t, raw, "Content-Type: text/html")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\n<p>x</p>"))
}

func TestRecorder(t *testing.T) {
	var r Recorder
	require.NoError(t, r.Send(context.Background(), Message{To: []string{"a@x.io"}, Subject: "s"}))
	assert.Len(t, r.Sent(), 1)
}

func TestSMTPRequiresRecipients(t *testing.T) {
	s := &SMTP{Host: "localhost", Port: "1025"}
	assert.Error(t, s.Send(context.Background(), Message{}))
}
