// Package azure provides an engine on the Microsoft Cognitive Services Speech
// SDK. The SDK links against the native Speech library, so the engine is only
// compiled with the "azure" build tag; other builds report ErrUnavailable.
package azure

import (
	"errors"

	"github.com/hyy20190326/luis-0509/internal/models"
	"github.com/hyy20190326/luis-0509/internal/service/stt"
)

const provider = "azure"

var (
	// ErrUnavailable is returned when the binary was built without the azure tag.
	ErrUnavailable = errors.New("azure speech support not compiled in (build with -tags azure)")
	ErrClosed      = errors.New("azure engine closed")
)

// Config describes the subscription and the PCM format pushed to the service.
type Config struct {
	Subscription  string
	Region        string
	Language      string
	SampleRate    uint32
	BitsPerSample uint8
	Channels      uint8
}

// Template builds one push-stream recognizer per session.
func Template(cfg Config) stt.Template {
	return stt.TemplateFunc{
		Name: provider,
		Fn: func(desc models.SessionDescriptor) (stt.Engine, error) {
			return New(cfg, desc)
		},
	}
}
