package guesspresenter

import "strings"

// Presenter delivers formatted messages without coupling to the command layer.
type Presenter struct {
	sendMessage func(room, message string) error
}

func NewPresenter(sendMessage func(room, message string) error) *Presenter {
	return &Presenter{sendMessage: sendMessage}
}

func (p *Presenter) Send(room, message string) error {
	if p == nil || p.sendMessage == nil {
		return nil
	}
	if strings.TrimSpace(message) == "" {
		return nil
	}
	return p.sendMessage(room, message)
}
