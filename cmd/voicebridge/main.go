// voicebridge keeps conversational agents and pathways in a local store and
// mirrors every change to the remote voice platform.
package main

import (
	"os"

	"github.com/rs/zerolog/log"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("voicebridge failed")
		os.Exit(1)
	}
}
