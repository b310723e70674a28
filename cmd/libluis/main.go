// Command libluis builds the service as a C shared library:
//
//	go build -buildmode=c-shared -o libns_luis.so ./cmd/libluis
//
// The host calls start_service on a dedicated thread and pushes call audio
// with write_stream from any thread.
package main

/*
#include <stddef.h>
#include <string.h>
*/
import "C"

import (
	"unsafe"
)

func main() {}

// start_service loads the config file and serves until stop_service or a
// listener failure. It returns 0 after a clean stop and -1 when startup fails.
//
//export start_service
func start_service(configPath *C.char) C.int {
	if configPath == nil {
		return statusFailed
	}
	return C.int(svc.run(C.GoString(configPath)))
}

//export stop_service
func stop_service() C.int {
	return C.int(svc.stop())
}

// write_stream queues len bytes of audio for the session named by the
// NUL-terminated id. It returns len on acceptance and -1 otherwise; acceptance
// does not mean the session exists.
//
//export write_stream
func write_stream(id *C.char, buffer *C.char, length C.size_t) C.int {
	if id == nil || buffer == nil {
		return statusFailed
	}
	idBytes := unsafe.Slice((*byte)(unsafe.Pointer(id)), int(C.strlen(id)))
	audio := unsafe.Slice((*byte)(unsafe.Pointer(buffer)), int(length))
	return C.int(svc.write(idBytes, audio))
}

// read_stream has no reverse audio channel behind it.
//
//export read_stream
func read_stream(id *C.char, buffer *C.char, length C.size_t) C.int {
	return statusFailed
}
