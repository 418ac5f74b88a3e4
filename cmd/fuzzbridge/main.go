// Command fuzzbridge is built with -buildmode=c-shared to expose the four
// host-fuzzer entry points (spec.md §4.1) as C-callable symbols: init,
// schedule, mutate, post_execute, plus deinit and splice_optout. The Go
// runtime embedded in the shared object owns all goroutines and channels;
// the host only ever crosses the cgo boundary with flat byte buffers and
// small integers.
package main

/*
#include <stddef.h>
*/
import "C"

import (
	"context"
	"os"
	"sync"
	"unsafe"

	"github.com/covfuzz/mutacore/internal/config"
	"github.com/covfuzz/mutacore/internal/session"
)

var (
	initOnce sync.Once
	sess     *session.Session
	bgCancel context.CancelFunc
)

func mustSession() *session.Session {
	initOnce.Do(func() {
		path := os.Getenv("DBFUZZ_CONFIG")
		if path == "" {
			path = "config.yaml"
		}
		cfg, err := config.Load(path)
		if err != nil {
			panic("fuzzbridge: config load failed: " + err.Error())
		}
		s, err := session.New(cfg)
		if err != nil {
			panic("fuzzbridge: session init failed: " + err.Error())
		}
		ctx, cancel := context.WithCancel(context.Background())
		bgCancel = cancel
		s.Pipeline.Start(ctx)
		sess = s
	})
	return sess
}

//export dbfuzz_init
func dbfuzz_init(data *C.char, length C.int) C.int {
	s := mustSession()
	buf := C.GoBytes(unsafe.Pointer(data), length)
	id, err := s.Bridge.Init(buf)
	if err != nil {
		return -1
	}
	return C.int(id)
}

//export dbfuzz_schedule
func dbfuzz_schedule(seedID C.int) C.int {
	s := mustSession()
	energy, err := s.Bridge.Schedule(int(seedID))
	if err != nil {
		return -1
	}
	return C.int(energy)
}

//export dbfuzz_mutate
func dbfuzz_mutate(maxLen C.int, out *C.char, outCap C.int, truncated *C.int) C.int {
	s := mustSession()
	buf, wasTruncated, err := s.Bridge.Mutate(int(maxLen))
	if err != nil {
		return -1
	}
	n := len(buf)
	if n > int(outCap) {
		n = int(outCap)
		wasTruncated = true
	}
	if n > 0 {
		dst := unsafe.Slice((*byte)(unsafe.Pointer(out)), n)
		copy(dst, buf[:n])
	}
	if truncated != nil {
		if wasTruncated {
			*truncated = 1
		} else {
			*truncated = 0
		}
	}
	return C.int(n)
}

//export dbfuzz_post_execute
func dbfuzz_post_execute() C.int {
	s := mustSession()
	newEdges, err := s.Bridge.PostExecute(context.Background())
	if err != nil {
		return -1
	}
	return C.int(newEdges)
}

//export dbfuzz_deinit
func dbfuzz_deinit() C.int {
	if sess == nil {
		return 0
	}
	err := sess.Bridge.Deinit()
	if bgCancel != nil {
		bgCancel()
	}
	if err != nil {
		return -1
	}
	return 0
}

//export dbfuzz_splice_optout
func dbfuzz_splice_optout() C.int {
	s := mustSession()
	if s.Bridge.SpliceOptOut() {
		return 1
	}
	return 0
}

func main() {}
