//go:build js && wasm

package main

import (
	"syscall/js"
)

func main() {
	js.Global().Set("stashCrypto", map[string]any{
		"deriveCredentials": js.FuncOf(bind2(deriveCredentials)),
		"seal":              js.FuncOf(bind2(sealSecret)),
		"open":              js.FuncOf(bind2(openSecret)),
		"generateKeypair": js.FuncOf(func(this js.Value, args []js.Value) any {
			return generateKeypair()
		}),
		"sealRequest": js.FuncOf(func(this js.Value, args []js.Value) any {
			if len(args) < 3 {
				return errorResult("Missing arguments: clientSecretKey, serverPublicKey, body", nil)
			}
			return sealRequest(args[0].String(), args[1].String(), args[2].String())
		}),
		"openResponse": js.FuncOf(func(this js.Value, args []js.Value) any {
			if len(args) < 4 {
				return errorResult("Missing arguments: clientSecretKey, serverPublicKey, response, signature", nil)
			}
			return openResponse(args[0].String(), args[1].String(), args[2].String(), args[3].String())
		}),
	})

	// Keep the program running for standard Go WASM
	select {}
}

func bind2(fn func(a, b string) map[string]any) func(js.Value, []js.Value) any {
	return func(this js.Value, args []js.Value) any {
		if len(args) < 2 {
			return errorResult("Missing arguments", nil)
		}
		return fn(args[0].String(), args[1].String())
	}
}
