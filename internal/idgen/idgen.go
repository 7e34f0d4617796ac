// Package idgen generates the identifiers used across session, order, and
// complaint records.
package idgen

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
)

// Session returns a new opaque session identifier.
func Session() string {
	return uuid.NewString()
}

// Order returns a short, human-shareable order id such as "ORD331718A2".
func Order() string {
	return "ORD" + strings.ToUpper(shortuuid.New()[:8])
}

// Complaint returns a short, human-shareable complaint id such as
// "CMP8F2A19BC".
func Complaint() string {
	return "CMP" + strings.ToUpper(shortuuid.New()[:8])
}

// TraceID returns a request-scoped tracing identifier, distinct in format
// from a session id so the two are never confused in logs.
func TraceID() string {
	return fmt.Sprintf("trc-%s", shortuuid.New())
}
