package services

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessageEncodesSubject(t *testing.T) {
	subject := "New premium inquiry from Eve\r\nBcc: victim@example.com"
	raw, err := buildMessage(`"Grantdesk" <noreply@grantdesk.io>`, "support@grantdesk.io", subject, "<p>hi</p>", "hi")
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "\r\nBcc:")

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Empty(t, msg.Header.Get("Bcc"))

	decoded, err := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, subject, decoded)
}

func TestBuildMessageQuotedPrintableParts(t *testing.T) {
	htmlBody := `<p style="color: #0F766E;">Hi Ada, ünïcode</p>`
	textBody := "Hi Ada,\n\nsee you = soon"
	raw, err := buildMessage("noreply@grantdesk.io", "ada@example.com", "Reply", htmlBody, textBody)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `style=3D"color: #0F766E;"`)

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	_, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)

	reader := multipart.NewReader(msg.Body, params["boundary"])
	var bodies []string
	for {
		part, err := reader.NextRawPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, "quoted-printable", part.Header.Get("Content-Transfer-Encoding"))
		body, err := io.ReadAll(quotedprintable.NewReader(part))
		require.NoError(t, err)
		bodies = append(bodies, string(body))
	}
	require.Len(t, bodies, 2)
	assert.Equal(t, "Hi Ada,\r\n\r\nsee you = soon", bodies[0])
	assert.Equal(t, htmlBody, bodies[1])
}

func TestBuildMessageRejectsInjectedRecipient(t *testing.T) {
	_, err := buildMessage("noreply@grantdesk.io", "ada@example.com\r\nBcc: victim@example.com", "Reply", "", "hi")
	assert.Error(t, err)
}
