package parser

import "errors"

var (
	ErrInvalidPacketType = errors.New("invalid packet type")

	ErrInvalidPayload = errors.New("invalid payload")

	ErrAttachmentMismatch = errors.New("attachment count mismatch")

	ErrUnexpectedBinary = errors.New("unexpected binary frame")

	ErrUnexpectedText = errors.New("text frame while reconstructing attachments")

	ErrNoEventName = errors.New("event name should be a string")
)
