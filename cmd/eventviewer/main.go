// Event Viewer - live display of session notifications.
// Receives the service's notification POSTs (and optionally the Kafka mirror)
// and pushes them to the browser over WebSocket.
package main

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"flag"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/hyy20190326/luis-0509/internal/models"
)

//go:embed static/*
var staticFiles embed.FS

func consumeKafka(ctx context.Context, hub *Hub, brokers, topic string) {
	// partition reader without a consumer group, good enough for a local tool
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   strings.Split(brokers, ","),
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-1*time.Hour)); err != nil {
		log.Warn().Err(err).Msg("Failed to seek, reading from the committed offset")
	}
	log.Info().Str("topic", topic).Msg("Consuming Kafka mirror (last hour)")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("topic", topic).Msg("Kafka read error")
			time.Sleep(time.Second)
			continue
		}

		var n models.Notification
		if err := json.Unmarshal(msg.Value, &n); err != nil {
			log.Warn().Err(err).Msg("JSON unmarshal error")
			continue
		}
		logEvent("kafka", n)
		hub.publish(n)
	}
}

func newMux(hub *Hub, authKey string) *http.ServeMux {
	staticFS, _ := fs.Sub(staticFiles, "static")
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(staticFS)))
	mux.HandleFunc("/ws", wsHandler(hub))
	mux.HandleFunc("/notify", notifyHandler(hub, authKey))
	return mux
}

func main() {
	addr := flag.String("addr", "127.0.0.1:8081", "HTTP listen address")
	authKey := flag.String("auth-key", "", "Expected Authorization header on /notify")
	brokers := flag.String("brokers", "", "Kafka brokers (comma-separated); empty disables the mirror consumer")
	topic := flag.String("topic", "luis.session.events", "Kafka mirror topic")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := newHub()
	go hub.run(ctx)

	if *brokers != "" {
		go consumeKafka(ctx, hub, *brokers, *topic)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newMux(hub, *authKey),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("url", "http://"+*addr).
		Str("notify", "http://"+*addr+"/notify").
		Str("brokers", *brokers).
		Msg("Event viewer starting")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server error")
	}
}
