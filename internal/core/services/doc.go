// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Theme discovery lives in themes.go with its clustering and keyword helpers,
// chapter generation in synthesis.go, question answering in retrieval.go and
// cache reuse in cache.go. Services are pure Go with no CGO.
package services
