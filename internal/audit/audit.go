package audit

import (
	"os"
	"sync"
)

// EnvLog names the environment variable holding the audit log path.
const EnvLog = "DERPKI_AUDIT_LOG"

var (
	mu      sync.RWMutex
	current Writer = NopWriter{}
	enabled bool
)

// Init installs w as the process-wide audit writer, closing the previous
// one. A nil w disables auditing.
func Init(w Writer) error {
	mu.Lock()
	defer mu.Unlock()
	prev := current
	if w == nil {
		current, enabled = NopWriter{}, false
	} else {
		current, enabled = w, true
	}
	return prev.Close()
}

// InitFile audits to the file at path. An empty path disables auditing.
func InitFile(path string) error {
	if path == "" {
		return Init(nil)
	}
	w, err := NewFileWriter(path)
	if err != nil {
		return err
	}
	return Init(w)
}

// InitFromEnv audits to the path in DERPKI_AUDIT_LOG, if set.
func InitFromEnv() error {
	return InitFile(os.Getenv(EnvLog))
}

// Enabled reports whether events are being recorded.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// Close closes the current writer and disables auditing.
func Close() error {
	return Init(nil)
}

// Log records event with the current writer.
func Log(event *Event) error {
	mu.RLock()
	defer mu.RUnlock()
	return current.Write(event)
}

func result(success bool) Result {
	if success {
		return ResultSuccess
	}
	return ResultFailure
}

// LogCACreated records the creation of a CA certificate.
func LogCACreated(path, subject, algorithm string, success bool) error {
	return Log(NewEvent(EventCACreated, result(success)).
		WithObject(Object{Type: "ca", Subject: subject, Path: path}).
		WithContext(Context{Algorithm: algorithm}))
}

// LogCALoaded records loading a CA certificate and key for signing.
func LogCALoaded(path, subject string, success bool) error {
	return Log(NewEvent(EventCALoaded, result(success)).
		WithObject(Object{Type: "ca", Subject: subject, Path: path}))
}

// LogKeyGenerated records a new private key written to path.
func LogKeyGenerated(path, algorithm string, success bool) error {
	return Log(NewEvent(EventKeyGenerated, result(success)).
		WithObject(Object{Type: "key", Path: path}).
		WithContext(Context{Algorithm: algorithm}))
}

// LogKeyAccessed records a private key being loaded. reason explains a
// failure.
func LogKeyAccessed(path string, success bool, reason string) error {
	e := NewEvent(EventKeyAccessed, result(success)).
		WithObject(Object{Type: "key", Path: path})
	if !success {
		e.WithContext(Context{Reason: reason})
	}
	return Log(e)
}

// LogCertSigned records a certificate signed by the CA at caPath.
func LogCertSigned(caPath, serial, subject, profile, algorithm string, success bool) error {
	return Log(NewEvent(EventCertSigned, result(success)).
		WithObject(Object{Type: "certificate", Serial: serial, Subject: subject}).
		WithContext(Context{CA: caPath, Profile: profile, Algorithm: algorithm}))
}

// LogCSRSigned records a certification request signed and written to path.
func LogCSRSigned(path, subject, algorithm string, success bool) error {
	return Log(NewEvent(EventCSRSigned, result(success)).
		WithObject(Object{Type: "csr", Subject: subject, Path: path}).
		WithContext(Context{Algorithm: algorithm}))
}
