package sender

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"

	"github.com/wisestep/emailing/internal/domain/model"
)

// buildMIMEMessage renders a job as an RFC 822 message: a multipart/mixed
// envelope with an HTML body part and one base64 part per attachment, or a
// plain HTML message when there are no attachments. Both the SMTP relay
// path and the Gmail raw-send path consume this format.
func buildMIMEMessage(job *model.EmailJob, atts []model.Attachment) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s\r\n", job.FromAddress)
	fmt.Fprintf(&buf, "To: %s\r\n", job.Recipient)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", job.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if len(atts) == 0 {
		buf.WriteString("Content-Type: text/html; charset=utf-8\r\n")
		buf.WriteString("\r\n")
		buf.WriteString(job.Body)
		buf.WriteString("\r\n")
		return buf.Bytes(), nil
	}

	writer := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", writer.Boundary())

	bodyHeader := textproto.MIMEHeader{}
	bodyHeader.Set("Content-Type", "text/html; charset=utf-8")
	bodyPart, err := writer.CreatePart(bodyHeader)
	if err != nil {
		return nil, fmt.Errorf("create body part: %w", err)
	}
	if _, err = bodyPart.Write([]byte(job.Body)); err != nil {
		return nil, fmt.Errorf("write body part: %w", err)
	}

	for _, att := range atts {
		data, decodeErr := base64.StdEncoding.DecodeString(att.Data)
		if decodeErr != nil {
			return nil, fmt.Errorf("decode attachment %s: %w", att.Filename, decodeErr)
		}

		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", contentType)
		header.Set("Content-Transfer-Encoding", "base64")
		header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Filename))

		part, partErr := writer.CreatePart(header)
		if partErr != nil {
			return nil, fmt.Errorf("create attachment part: %w", partErr)
		}
		encoded := base64.StdEncoding.EncodeToString(data)
		// 76-char lines per RFC 2045.
		for len(encoded) > 0 {
			n := 76
			if n > len(encoded) {
				n = len(encoded)
			}
			if _, writeErr := fmt.Fprintf(part, "%s\r\n", encoded[:n]); writeErr != nil {
				return nil, fmt.Errorf("write attachment part: %w", writeErr)
			}
			encoded = encoded[n:]
		}
	}

	if err = writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), nil
}
