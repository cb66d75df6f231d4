package actions

import "errors"

var (
	// ErrNotDraft — действие с черновиком над сообщением, которое не черновик.
	ErrNotDraft = errors.New("message is not a draft")

	// ErrPublisherUnavailable — RabbitMQ не настроен.
	ErrPublisherUnavailable = errors.New("command publisher unavailable")
)
