package engine

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"syscall"
)

// Code classifies the outcome of a transfer.
type Code int

const (
	OK Code = iota
	FailedInit
	UnsupportedProtocol
	URLMalformat
	CouldntResolveHost
	CouldntConnect
	OperationTimedOut
	TooManyRedirects
	ReadError
	WriteError
	AbortedByCallback
	SSLConnectError
	PeerFailedVerification
	SSLCertProblem
	PinnedPubKeyNotMatch
	SendError
	RecvError
)

func (c Code) String() string {
	switch c {
	case OK:
		return "no error"
	case FailedInit:
		return "failed initialization"
	case UnsupportedProtocol:
		return "unsupported protocol"
	case URLMalformat:
		return "url using bad/illegal format or missing url"
	case CouldntResolveHost:
		return "could not resolve host name"
	case CouldntConnect:
		return "could not connect to server"
	case OperationTimedOut:
		return "operation timed out"
	case TooManyRedirects:
		return "number of redirects hit maximum amount"
	case ReadError:
		return "failed to read upload data"
	case WriteError:
		return "failed writing received data"
	case AbortedByCallback:
		return "operation was aborted by an application callback"
	case SSLConnectError:
		return "ssl connect error"
	case PeerFailedVerification:
		return "ssl peer certificate or ssh remote key was not ok"
	case SSLCertProblem:
		return "problem with the local ssl certificate"
	case PinnedPubKeyNotMatch:
		return "ssl public key does not match pinned public key"
	case SendError:
		return "failed sending data to the peer"
	case RecvError:
		return "failure when receiving data from the peer"
	default:
		return "unknown error"
	}
}

var (
	ErrClosed             = errors.New("engine closed")
	ErrHandleActive       = errors.New("handle already registered")
	ErrUnknownHandle      = errors.New("handle not registered with this engine")
	ErrMalformedURL       = errors.New("malformed url")
	ErrUnsupportedScheme  = errors.New("unsupported protocol scheme")
	ErrReadAborted        = errors.New("read callback aborted")
	ErrWriteAborted       = errors.New("write callback aborted")
	ErrProgressAborted    = errors.New("progress callback aborted")
	ErrTooManyRedirects   = errors.New("too many redirects")
	ErrPinnedKeyMismatch  = errors.New("pinned public key mismatch")
	ErrInvalidPinnedKey   = errors.New("invalid pinned public key")
	ErrNoCertificatesRead = errors.New("no certificates found")
)

// classify maps a transfer error onto a Code. Order matters: callback
// aborts and local sentinels win over whatever transport error wraps them.
func classify(err error) Code {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, ErrReadAborted):
		return ReadError
	case errors.Is(err, ErrWriteAborted):
		return WriteError
	case errors.Is(err, ErrProgressAborted):
		return AbortedByCallback
	case errors.Is(err, ErrTooManyRedirects):
		return TooManyRedirects
	case errors.Is(err, ErrPinnedKeyMismatch):
		return PinnedPubKeyNotMatch
	case errors.Is(err, ErrMalformedURL):
		return URLMalformat
	case errors.Is(err, ErrUnsupportedScheme):
		return UnsupportedProtocol
	case errors.Is(err, context.DeadlineExceeded):
		return OperationTimedOut
	}

	if _, ok := errors.AsType[*net.DNSError](err); ok {
		return CouldntResolveHost
	}
	if ne, ok := errors.AsType[net.Error](err); ok && ne.Timeout() {
		return OperationTimedOut
	}
	if _, ok := errors.AsType[*tls.CertificateVerificationError](err); ok {
		return PeerFailedVerification
	}
	if _, ok := errors.AsType[x509.UnknownAuthorityError](err); ok {
		return PeerFailedVerification
	}
	if _, ok := errors.AsType[x509.HostnameError](err); ok {
		return PeerFailedVerification
	}
	if _, ok := errors.AsType[tls.RecordHeaderError](err); ok {
		return SSLConnectError
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return CouldntConnect
	}
	if oe, ok := errors.AsType[*net.OpError](err); ok {
		switch oe.Op {
		case "dial":
			return CouldntConnect
		case "write":
			return SendError
		}
	}

	return RecvError
}
