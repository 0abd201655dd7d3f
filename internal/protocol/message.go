package protocol

import "github.com/OCAP2/physbridge/internal/ident"

// Message travels from the adapter to the scene.
type Message interface {
	Name() string
	isMessage()
}

// WorldReady acknowledges Init.
type WorldReady struct{}

// ObjectReady acknowledges that a body exists in the world.
type ObjectReady struct {
	ID ident.ID
}

// Report carries one report buffer. The receiver owns it until it is sent
// back with ReturnBuffer.
type Report struct {
	Buffer *Buffer
}

func (WorldReady) Name() string  { return "worldReady" }
func (ObjectReady) Name() string { return "objectReady" }
func (Report) Name() string      { return "report" }

func (WorldReady) isMessage()  {}
func (ObjectReady) isMessage() {}
func (Report) isMessage()      {}
