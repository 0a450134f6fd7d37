package gomokupresenter

import (
	"encoding/base64"
	"strings"
)

// Presenter delivers formatted messages and board images without coupling to the command layer.
type Presenter struct {
	sendMessage func(room, message string) error
	sendImage   func(room, imageBase64 string) error
}

func NewPresenter(sendMessage func(room, message string) error, sendImage func(room, imageBase64 string) error) *Presenter {
	return &Presenter{
		sendMessage: sendMessage,
		sendImage:   sendImage,
	}
}

// Text sends message unless it is blank.
func (p *Presenter) Text(room, message string) error {
	if p == nil || p.sendMessage == nil || strings.TrimSpace(message) == "" {
		return nil
	}
	return p.sendMessage(room, message)
}

// Board sends message first, then the PNG board as base64.
func (p *Presenter) Board(room, message string, png []byte) error {
	if p == nil {
		return nil
	}
	if err := p.Text(room, message); err != nil {
		return err
	}
	if len(png) > 0 && p.sendImage != nil {
		if err := p.sendImage(room, base64.StdEncoding.EncodeToString(png)); err != nil {
			return err
		}
	}
	return nil
}
