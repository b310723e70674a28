package app

import (
	"context"
	"fmt"
	"io"

	"github.com/hyy20190326/luis-0509/internal/config"
	"github.com/hyy20190326/luis-0509/internal/service/stt"
	"github.com/hyy20190326/luis-0509/internal/service/stt/azure"
	"github.com/hyy20190326/luis-0509/internal/service/stt/google"
	"github.com/hyy20190326/luis-0509/internal/service/stt/luis"
	"github.com/hyy20190326/luis-0509/internal/service/stt/mock"
)

// BuildTemplate assembles the engine template described by cfg. The returned
// closer releases shared engine clients and is never nil.
func BuildTemplate(ctx context.Context, cfg *config.Settings) (stt.Template, io.Closer, error) {
	var (
		tpl    stt.Template
		closer io.Closer = nopCloser{}
	)

	switch cfg.Engine.Provider {
	case "mock":
		tpl = mock.Template()
	case "google":
		g, err := google.NewTemplate(ctx, google.Config{
			LanguageCode:   cfg.Engine.Language,
			SampleRateHz:   cfg.Engine.SampleRate,
			InterimResults: cfg.Google.InterimResults,
			AudioEncoding:  cfg.Google.AudioEncoding,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("google speech client: %w", err)
		}
		tpl, closer = g, g
	case "azure":
		tpl = azure.Template(azure.Config{
			Subscription:  cfg.Azure.Subscription,
			Region:        cfg.Azure.Region,
			Language:      cfg.Engine.Language,
			SampleRate:    uint32(cfg.Engine.SampleRate),
			BitsPerSample: uint8(cfg.Engine.BitsPerSample),
			Channels:      uint8(cfg.Engine.Channels),
		})
	default:
		return nil, nil, fmt.Errorf("unknown engine provider %q", cfg.Engine.Provider)
	}

	if cfg.Luis.AppID != "" {
		tpl = luis.Enrich(tpl, luis.NewClient(luisConfig(cfg)))
	}
	return tpl, closer, nil
}

// luisConfig falls back to the regional endpoint and the speech subscription
// key when the LUIS section leaves them empty.
func luisConfig(cfg *config.Settings) luis.Config {
	c := luis.Config{
		Endpoint: cfg.Luis.Endpoint,
		AppID:    cfg.Luis.AppID,
		Key:      cfg.Luis.Key,
		Staging:  cfg.Luis.Staging,
		Timeout:  cfg.Luis.Timeout,
		Intents:  cfg.Luis.Intents,
	}
	if c.Endpoint == "" {
		c.Endpoint = fmt.Sprintf("https://%s.api.cognitive.microsoft.com", cfg.Azure.Region)
	}
	if c.Key == "" {
		c.Key = cfg.Azure.Subscription
	}
	return c
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
