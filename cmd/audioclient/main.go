// Command audioclient plays a WAV file into a running luis-server as one call:
// it starts a session over HTTP, streams the PCM over the gRPC ingress in
// 20ms chunks and stops the session when the file ends.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"

	grpcapi "github.com/hyy20190326/luis-0509/internal/api/grpc"
	"github.com/hyy20190326/luis-0509/internal/models"
)

// 8kHz 16-bit mono: 20ms = 320 samples = 640 bytes
const (
	defaultChunkSize = 640
	defaultInterval  = 20 * time.Millisecond
)

func main() {
	audioFile := flag.String("audio", "testdata/sample-8khz.wav", "Path to WAV file (8kHz 16-bit mono)")
	httpAddr := flag.String("server", "http://127.0.0.1:8059", "Command endpoint base URL")
	prefix := flag.String("prefix", "/xlp/short_voice_silence_server", "Command endpoint path")
	grpcAddr := flag.String("grpc", "127.0.0.1:50051", "gRPC ingress address")
	sn := flag.String("sn", uuid.NewString(), "Session id")
	callback := flag.String("callback", "", "callbackurl descriptor value (metadata only)")
	chunkSize := flag.Int("chunk", defaultChunkSize, "Bytes per frame")
	interval := flag.Duration("interval", defaultInterval, "Delay between frames")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	pcm, err := readPCM(*audioFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", *audioFile).Msg("Failed to read audio")
	}

	cmd := resty.New().SetBaseURL(*httpAddr).SetTimeout(5 * time.Second)
	if err := command(cmd, *prefix, map[string]string{
		"action":      "start",
		"sn":          *sn,
		"recordfile":  *audioFile,
		"client":      "audioclient",
		"callbackurl": *callback,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to start session")
	}
	log.Info().Str("sn", *sn).Msg("Session started")

	streamErr := stream(*grpcAddr, *sn, pcm, *chunkSize, *interval)

	if err := command(cmd, *prefix, map[string]string{"action": "stop", "sn": *sn}); err != nil {
		log.Error().Err(err).Msg("Failed to stop session")
	}
	if streamErr != nil {
		log.Fatal().Err(streamErr).Msg("Streaming failed")
	}
	log.Info().Str("sn", *sn).Msg("Session stopped")
}

// readPCM decodes the file and returns its samples as little-endian 16-bit PCM.
func readPCM(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("not a valid WAV file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode pcm: %w", err)
	}

	log.Info().
		Uint32("sampleRate", d.SampleRate).
		Uint16("channels", d.NumChans).
		Uint16("bitDepth", d.BitDepth).
		Int("samples", len(buf.Data)).
		Msg("WAV file loaded")
	if d.SampleRate != 8000 || d.NumChans != 1 {
		log.Warn().Msg("Server expects 8kHz mono audio")
	}
	return toPCM16(buf, int(d.BitDepth)), nil
}

func toPCM16(buf *audio.IntBuffer, bitDepth int) []byte {
	out := make([]byte, 2*len(buf.Data))
	for i, v := range buf.Data {
		switch {
		case bitDepth > 16:
			v >>= bitDepth - 16
		case bitDepth == 8:
			v = (v - 128) << 8
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v)))
	}
	return out
}

func command(c *resty.Client, prefix string, params map[string]string) error {
	var res models.CommandResult
	resp, err := c.R().SetQueryParams(params).SetResult(&res).SetError(&res).Get(prefix)
	if err != nil {
		return err
	}
	if resp.IsError() || res.Result != 0 {
		return fmt.Errorf("%s: status %d: %s", params["action"], resp.StatusCode(), res.Msg)
	}
	return nil
}

func stream(addr, sn string, pcm []byte, chunkSize int, interval time.Duration) error {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	timeout := time.Duration(len(pcm)/chunkSize+1)*interval + 30*time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, grpcapi.SessionIDKey, sn)

	s, err := grpcapi.NewAudioIngressClient(conn).StreamAudio(ctx)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var chunks int
	start := time.Now()
	for off := 0; off < len(pcm); off += chunkSize {
		end := min(off+chunkSize, len(pcm))
		if err := s.Send(wrapperspb.Bytes(pcm[off:end])); err != nil {
			return fmt.Errorf("send chunk %d: %w", chunks, err)
		}
		chunks++
		if chunks%50 == 0 {
			log.Debug().Int("chunks", chunks).Int("bytes", end).Msg("Streaming")
		}
		<-ticker.C
	}

	if _, err := s.CloseAndRecv(); err != nil {
		return fmt.Errorf("close stream: %w", err)
	}
	log.Info().
		Int("chunks", chunks).
		Int("bytes", len(pcm)).
		Dur("elapsed", time.Since(start)).
		Msg("Finished streaming")
	return nil
}
