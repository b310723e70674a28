// Command testclient sends one session command to a running luis-server and
// prints the response envelope.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyy20190326/luis-0509/internal/models"
)

func main() {
	server := flag.String("server", "http://127.0.0.1:8059", "Command endpoint base URL")
	prefix := flag.String("prefix", "/xlp/short_voice_silence_server", "Command endpoint path")
	action := flag.String("action", "start", "start or stop")
	sn := flag.String("sn", "test-"+time.Now().Format("150405"), "Session id")
	recordFile := flag.String("recordfile", "", "Record file echoed in nlp events")
	callback := flag.String("callback", "", "callbackurl descriptor value (metadata only)")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	params := map[string]string{"action": *action, "sn": *sn}
	if *recordFile != "" {
		params["recordfile"] = *recordFile
	}
	if *callback != "" {
		params["callbackurl"] = *callback
	}

	var res models.CommandResult
	resp, err := resty.New().
		SetBaseURL(*server).
		SetTimeout(5*time.Second).
		R().
		SetQueryParams(params).
		SetResult(&res).
		SetError(&res).
		Get(*prefix)
	if err != nil {
		log.Fatal().Err(err).Msg("Request failed")
	}

	log.Info().
		Int("status", resp.StatusCode()).
		Str("sn", *sn).
		Str("action", *action).
		Msg("Command sent")
	fmt.Printf("result=%d msg=%q\n", res.Result, res.Msg)
	if res.Result != 0 {
		os.Exit(1)
	}
}
