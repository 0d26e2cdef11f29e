package repository

import "context"

// PushGateway is the best-effort notification channel for unreachable
// recipients. Business-level failure comes back as ok=false; an error
// is returned only for transport faults, which callers log and swallow.
// Payloads never contain plaintext or ciphertext.
type PushGateway interface {
	Notify(ctx context.Context, userID int64, title, body string, extra map[string]string) (bool, error)
}

// KeyDirectory exposes recipient public keys. The delivery core only
// hands it to the signature-verification collaborator; it never reads
// key material itself.
type KeyDirectory interface {
	GetPublicKey(ctx context.Context, userID int64, keyID string) ([]byte, error)
	Fingerprint(key []byte) string
}

// ConnectionPusher is the connection-layer contract: fire-and-forget
// push of an opaque payload to one device. Ack or failure is observed
// by the retry sweeper, never synchronously by dispatch.
type ConnectionPusher interface {
	PushDevice(deviceID string, payload []byte) bool
}
