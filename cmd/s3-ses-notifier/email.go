package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"os"
)

// base64 line length for attachment bodies (RFC 2045)
const base64LineLength = 76

// Attachment is a file carried by an email
type Attachment struct {
	Filename string
	Data     []byte
}

// EmailMessage is a plain text email with a single attachment
type EmailMessage struct {
	Subject    string
	From       string
	To         string
	Body       string
	Attachment Attachment
}

// EmailComposer builds the notification email from the mail settings and the staged object
type EmailComposer struct{}

// Compose reads the staged object and builds the message around it
func (EmailComposer) Compose(config MailConfig, staged *StagedObject, filename string) (*EmailMessage, error) {

	data, err := os.ReadFile(staged.Path)
	if err != nil {
		return nil, newNotifierError(KindFetch, fmt.Sprintf("cannot read staged object %s", staged.Path), err)
	}

	return &EmailMessage{
		Subject: config.Subject,
		From:    config.From,
		To:      config.To,
		Body:    config.BodyText,
		Attachment: Attachment{
			Filename: filename,
			Data:     data,
		},
	}, nil
}

// Marshal renders the message as a multipart/mixed MIME document. The output depends only on
// the message contents.
func (m *EmailMessage) Marshal() ([]byte, error) {

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.SetBoundary(m.boundary()); err != nil {
		return nil, err
	}

	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	fmt.Fprintf(&buf, "From: %s\r\n", m.From)
	fmt.Fprintf(&buf, "To: %s\r\n", m.To)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: %s\r\n\r\n", mime.FormatMediaType("multipart/mixed", map[string]string{"boundary": mw.Boundary()}))

	// body
	th := textproto.MIMEHeader{}
	th.Set("Content-Type", `text/plain; charset="utf-8"`)
	th.Set("Content-Transfer-Encoding", "8bit")
	tw, err := mw.CreatePart(th)
	if err != nil {
		return nil, err
	}
	if _, err := tw.Write([]byte(m.Body)); err != nil {
		return nil, err
	}

	// attachment
	ah := textproto.MIMEHeader{}
	ah.Set("Content-Type", "application/octet-stream")
	ah.Set("Content-Transfer-Encoding", "base64")
	ah.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": m.Attachment.Filename}))
	aw, err := mw.CreatePart(ah)
	if err != nil {
		return nil, err
	}
	if err := writeBase64Lines(aw, m.Attachment.Data); err != nil {
		return nil, err
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// boundary is derived from the message contents so identical messages render identically
func (m *EmailMessage) boundary() string {
	h := sha256.New()
	for _, s := range []string{m.Subject, m.From, m.To, m.Body, m.Attachment.Filename} {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	h.Write(m.Attachment.Data)
	return "notifier-" + hex.EncodeToString(h.Sum(nil))[:40]
}

func writeBase64Lines(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 0 {
		n := base64LineLength
		if n > len(encoded) {
			n = len(encoded)
		}
		if _, err := w.Write([]byte(encoded[:n] + "\r\n")); err != nil {
			return err
		}
		encoded = encoded[n:]
	}
	return nil
}

//
// end of file
//
