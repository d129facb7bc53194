package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

// Logger, LoggerProvider, and FieldsLogger alias the go-logger/glog
// contracts so every package in this module shares one logging
// vocabulary without importing glog directly.
type (
	Logger         = glog.Logger
	LoggerProvider = glog.LoggerProvider
	FieldsLogger   = glog.FieldsLogger
)

// SecretProvider seals and opens opaque byte payloads. backends/keystore
// uses it to encrypt ticket blobs at rest; implementations live in the
// security package (local AES-GCM, KMS, Vault, failover).
type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}
