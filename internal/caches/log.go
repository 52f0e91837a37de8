package caches

import (
	"fmt"
	"log"
	"os"
)

// FORAGE_DEBUG turns on per-group creation traces.
var debugEnabled = os.Getenv("FORAGE_DEBUG") != ""

func debugf(format string, args ...any) {
	if debugEnabled {
		log.Printf("🔍 caches: "+format, args...)
	}
}

func warnf(format string, args ...any) {
	log.Printf("⚠️ caches: "+format, args...)
}

// assertf aborts the tick on corrupted state.
func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("caches: "+format, args...))
	}
}
