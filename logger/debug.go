// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package logger

import (
	"fmt"
	"os"

	"github.com/hokaccha/go-prettyjson"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// DebugJSON prints a prettified JSON of the data to CLI
func DebugJSON(obj interface{}) {
	if !log.Debug().Enabled() {
		return
	}

	s, _ := prettyjson.Marshal(obj)
	fmt.Fprintln(os.Stderr, string(s))
}

// DebugDumpJSON writes the object as prettified JSON to <name>.json when
// CNHARVEST_DEBUG_DUMP is set. Used to capture raw page envelopes for
// offline inspection.
func DebugDumpJSON(fs afero.Fs, name string, obj interface{}) {
	if os.Getenv("CNHARVEST_DEBUG_DUMP") == "" {
		return
	}

	s, err := prettyjson.Marshal(obj)
	if err != nil {
		log.Debug().Err(err).Str("dump", name).Msg("failed to marshal debug dump")
		return
	}
	if err := afero.WriteFile(fs, name+".json", s, 0o644); err != nil {
		log.Debug().Err(err).Str("dump", name).Msg("failed to write debug dump")
	}
}
