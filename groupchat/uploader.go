package groupchat

import (
	"bytes"
	"context"

	"github.com/gabriel-vasile/mimetype"
)

// AttachmentUploader sends images to a group through the REST API. Nothing
// is added to the store here: the message arrives over the live channel.
type AttachmentUploader struct {
	sender  ImageSender
	logger  Logger
	metrics *Metrics
}

func NewAttachmentUploader(sender ImageSender) *AttachmentUploader {
	return &AttachmentUploader{sender: sender, logger: noopLogger{}}
}

// SetLogger overrides logger (optional).
func (u *AttachmentUploader) SetLogger(l Logger) {
	if l == nil {
		return
	}
	u.logger = l
}

// SetMetrics attaches Prometheus collectors (optional).
func (u *AttachmentUploader) SetMetrics(m *Metrics) { u.metrics = m }

// Upload sends data as an image of groupID. The content type is sniffed from
// the bytes; an empty filename is derived from it.
func (u *AttachmentUploader) Upload(ctx context.Context, groupID, filename string, data []byte) error {
	if len(data) == 0 {
		return NewError(ErrorInvalidAttachment, "attachment is empty")
	}
	if u.sender == nil {
		return NewError(ErrorUpload, "no image sender configured")
	}

	mt := mimetype.Detect(data)
	if filename == "" {
		filename = "attachment" + mt.Extension()
	}

	err := u.sender.SendImage(ctx, groupID, filename, mt.String(), bytes.NewReader(data))
	u.metrics.upload(err)
	if err != nil {
		u.logger.Warn("attachment upload failed", map[string]any{
			"group_id": groupID,
			"filename": filename,
			"error":    err.Error(),
		})
		return WrapError(ErrorUpload, "upload attachment", err)
	}

	u.logger.Debug("attachment uploaded", map[string]any{
		"group_id":     groupID,
		"filename":     filename,
		"content_type": mt.String(),
		"size":         len(data),
	})
	return nil
}
