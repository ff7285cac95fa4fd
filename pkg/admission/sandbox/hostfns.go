// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package sandbox

import (
	"github.com/bytecodealliance/wasmtime-go/v25"

	ulog "github.com/stellar/node-operator/pkg/utils/log"
)

var log = ulog.Log.WithName("sandbox")

// maxLogLineBytes truncates plugin log lines so a misbehaving plugin cannot
// flood the operator log.
const maxLogLineBytes = 4 * 1024

// invocation is the host-side state of one plugin run: the serialized input
// handed in and whatever the plugin wrote back.
type invocation struct {
	input  []byte
	output []byte
}

// defineHostFunctions wires the `env` ABI into the linker:
//
//	input_len() -> i32
//	read_input(dst_ptr, len) -> i32
//	write_output(src_ptr, len) -> i32
//	log_message(src_ptr, len)
//
// All pointers are offsets into the plugin's own exported memory; the host
// never hands out addresses.
func defineHostFunctions(linker *wasmtime.Linker, store *wasmtime.Store, inv *invocation) error {
	if err := linker.DefineFunc(store, "env", "input_len", func() int32 {
		return int32(len(inv.input))
	}); err != nil {
		return err
	}

	if err := linker.DefineFunc(store, "env", "read_input",
		func(caller *wasmtime.Caller, ptr, length int32) int32 {
			data := pluginMemory(caller)
			if data == nil || !inRange(data, ptr, length) {
				return -1
			}
			n := copy(data[ptr:ptr+length], inv.input)
			return int32(n)
		}); err != nil {
		return err
	}

	if err := linker.DefineFunc(store, "env", "write_output",
		func(caller *wasmtime.Caller, ptr, length int32) int32 {
			data := pluginMemory(caller)
			if data == nil || !inRange(data, ptr, length) {
				return -1
			}
			// overwrite any previous output of this invocation
			inv.output = append([]byte(nil), data[ptr:ptr+length]...)
			return length
		}); err != nil {
		return err
	}

	return linker.DefineFunc(store, "env", "log_message",
		func(caller *wasmtime.Caller, ptr, length int32) {
			data := pluginMemory(caller)
			if data == nil || !inRange(data, ptr, length) {
				return
			}
			if length > maxLogLineBytes {
				length = maxLogLineBytes
			}
			log.Info("Plugin log", "message", string(data[ptr:ptr+length]))
		})
}

// pluginMemory resolves the caller's exported linear memory.
func pluginMemory(caller *wasmtime.Caller) []byte {
	export := caller.GetExport(memoryExport)
	if export == nil {
		return nil
	}
	memory := export.Memory()
	if memory == nil {
		return nil
	}
	return memory.UnsafeData(caller)
}

func inRange(data []byte, ptr, length int32) bool {
	return ptr >= 0 && length >= 0 && int64(ptr)+int64(length) <= int64(len(data))
}
