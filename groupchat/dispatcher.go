package groupchat

import (
	"encoding/json"
	"sync"
)

// Dispatcher routes inbound frames to registered callbacks.
type Dispatcher struct {
	mu      sync.RWMutex
	onText  func(TextMessage)
	onImage func(ImageMessage)
	onError func(error)
}

func (d *Dispatcher) SetOnText(fn func(TextMessage))   { d.mu.Lock(); d.onText = fn; d.mu.Unlock() }
func (d *Dispatcher) SetOnImage(fn func(ImageMessage)) { d.mu.Lock(); d.onImage = fn; d.mu.Unlock() }
func (d *Dispatcher) SetOnError(fn func(error))        { d.mu.Lock(); d.onError = fn; d.mu.Unlock() }

// Dispatch parses raw and calls the matching callback. Malformed frames are
// reported as ErrorProtocol and the returned error is that same value.
func (d *Dispatcher) Dispatch(raw json.RawMessage) error {
	ev, err := ParseInbound(raw)
	if err != nil {
		d.fireError(err)
		return err
	}

	d.mu.RLock()
	onText, onImage := d.onText, d.onImage
	d.mu.RUnlock()

	switch e := ev.(type) {
	case TextMessage:
		if onText != nil {
			onText(e)
		}
	case ImageMessage:
		if onImage != nil {
			onImage(e)
		}
	}
	return nil
}

func (d *Dispatcher) fireError(err error) {
	d.mu.RLock()
	onError := d.onError
	d.mu.RUnlock()
	if onError != nil && err != nil {
		onError(err)
	}
}
