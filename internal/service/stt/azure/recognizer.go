//go:build azure

package azure

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/audio"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"
	"github.com/rs/zerolog"

	"github.com/hyy20190326/luis-0509/internal/models"
	"github.com/hyy20190326/luis-0509/internal/observability/logging"
	"github.com/hyy20190326/luis-0509/internal/service/stt"
)

const stopTimeout = 5 * time.Second

// Engine is a continuous recognizer fed through a push audio stream.
// SDK callbacks are turned into the event channel.
type Engine struct {
	stream      *audio.PushAudioInputStream
	audioConfig *audio.AudioConfig
	speechCfg   *speech.SpeechConfig
	recognizer  *speech.SpeechRecognizer
	logger      zerolog.Logger

	mu      sync.RWMutex
	out     chan stt.Event
	done    chan struct{}
	once    sync.Once
	started bool
	closed  bool
}

// New builds the recognizer. Nothing is sent to the service before Start.
func New(cfg Config, desc models.SessionDescriptor) (stt.Engine, error) {
	format, err := audio.GetWaveFormatPCM(cfg.SampleRate, cfg.BitsPerSample, cfg.Channels)
	if err != nil {
		return nil, fmt.Errorf("audio format: %w", err)
	}
	defer format.Close()

	stream, err := audio.CreatePushAudioInputStreamFromFormat(format)
	if err != nil {
		return nil, fmt.Errorf("push stream: %w", err)
	}

	audioConfig, err := audio.NewAudioConfigFromStreamInput(stream)
	if err != nil {
		stream.Close()
		return nil, fmt.Errorf("audio config: %w", err)
	}

	speechCfg, err := speech.NewSpeechConfigFromSubscription(cfg.Subscription, cfg.Region)
	if err != nil {
		audioConfig.Close()
		stream.Close()
		return nil, fmt.Errorf("speech config: %w", err)
	}
	if err := speechCfg.SetSpeechRecognitionLanguage(cfg.Language); err != nil {
		speechCfg.Close()
		audioConfig.Close()
		stream.Close()
		return nil, fmt.Errorf("recognition language: %w", err)
	}

	recognizer, err := speech.NewSpeechRecognizerFromConfig(speechCfg, audioConfig)
	if err != nil {
		speechCfg.Close()
		audioConfig.Close()
		stream.Close()
		return nil, fmt.Errorf("recognizer: %w", err)
	}

	return &Engine{
		stream:      stream,
		audioConfig: audioConfig,
		speechCfg:   speechCfg,
		recognizer:  recognizer,
		logger:      logging.WithSession(desc.SessionID, provider),
		out:         make(chan stt.Event),
		done:        make(chan struct{}),
	}, nil
}

// Start wires the callbacks and starts continuous recognition.
func (e *Engine) Start(ctx context.Context) (<-chan stt.Event, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	if e.started {
		e.mu.Unlock()
		return nil, fmt.Errorf("azure engine already started")
	}
	e.started = true
	e.mu.Unlock()

	e.recognizer.SpeechStartDetected(func(ev speech.RecognitionEventArgs) {
		defer ev.Close()
		e.emit(stt.Event{Kind: stt.KindSpeechStart})
	})
	e.recognizer.SpeechEndDetected(func(ev speech.RecognitionEventArgs) {
		defer ev.Close()
		e.emit(stt.Event{Kind: stt.KindSpeechEnd})
	})
	e.recognizer.Recognized(func(ev speech.SpeechRecognitionEventArgs) {
		defer ev.Close()
		e.emit(recognized(ev.Result))
	})
	e.recognizer.Canceled(func(ev speech.SpeechRecognitionCanceledEventArgs) {
		defer ev.Close()
		if ev.Reason == common.EndOfStream {
			e.logger.Debug().Msg("recognition reached end of stream")
			return
		}
		e.emit(stt.Event{
			Kind: stt.KindCanceled,
			Err:  fmt.Errorf("recognition canceled: code %d: %s", ev.ErrorCode, ev.ErrorDetails),
		})
	})

	select {
	case err := <-e.recognizer.StartContinuousRecognitionAsync():
		if err != nil {
			return nil, fmt.Errorf("start continuous recognition: %w", err)
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return e.out, nil
}

// Feed writes PCM into the push stream.
func (e *Engine) Feed(audio []byte) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	return e.stream.Write(audio)
}

// Close stops recognition and releases the native handles.
func (e *Engine) Close() error {
	first := false
	e.once.Do(func() {
		first = true
		close(e.done)
	})
	if !first {
		return nil
	}

	// done is closed first so a blocked emit releases its read lock
	e.mu.Lock()
	e.closed = true
	started := e.started
	e.mu.Unlock()

	e.stream.CloseStream()

	var err error
	if started {
		select {
		case err = <-e.recognizer.StopContinuousRecognitionAsync():
		case <-time.After(stopTimeout):
			err = fmt.Errorf("stop continuous recognition: timed out after %s", stopTimeout)
		}
	}

	e.recognizer.Close()
	e.audioConfig.Close()
	e.speechCfg.Close()
	e.stream.Close()

	e.mu.Lock()
	close(e.out)
	e.mu.Unlock()
	return err
}

// emit never blocks past Close.
func (e *Engine) emit(ev stt.Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	select {
	case <-e.done:
		return
	default:
	}
	select {
	case e.out <- ev:
	case <-e.done:
	}
}

func recognized(r speech.SpeechRecognitionResult) stt.Event {
	var o outcome
	switch r.Reason {
	case common.RecognizedSpeech:
		o = outcomeRecognized
	case common.NoMatch:
		o = outcomeNoMatch
	}
	return resultEvent(o, r.Text, r.Properties.GetProperty(common.SpeechServiceResponseJSONResult, ""))
}
