// Package vfserr defines the canonical error taxonomy shared by every
// component of the fabric: the RPC layer, the job dispatcher and the
// trash subsystem all fail with a vfserr.Kind so that clients, backends
// and the FUSE bridge can agree on what went wrong without parsing
// strings.
package vfserr

import (
	"fmt"
	"syscall"
)

// Kind is one entry of the fixed error taxonomy. Retry is internal:
// the async and sync call engines consume it to drive cache
// invalidation and a single re-attempt, and it must never reach a
// caller outside rpcengine.
type Kind int

const (
	Failed Kind = iota
	NotFound
	Exists
	IsDirectory
	NotDirectory
	NotEmpty
	NotRegularFile
	NotSymbolicLink
	NotMountableFile
	FilenameTooLong
	InvalidFilename
	TooManyLinks
	NoSpace
	InvalidArgument
	PermissionDenied
	NotSupported
	NotMounted
	AlreadyMounted
	Closed
	Cancelled
	Pending
	ReadOnly
	CantCreateBackup
	WrongETag
	TimedOut
	Busy
	WouldBlock
	retry // internal; see Retry() constructor and IsRetry()
)

var kindNames = map[Kind]string{
	Failed:           "Failed",
	NotFound:         "NotFound",
	Exists:           "Exists",
	IsDirectory:      "IsDirectory",
	NotDirectory:     "NotDirectory",
	NotEmpty:         "NotEmpty",
	NotRegularFile:   "NotRegularFile",
	NotSymbolicLink:  "NotSymbolicLink",
	NotMountableFile: "NotMountableFile",
	FilenameTooLong:  "FilenameTooLong",
	InvalidFilename:  "InvalidFilename",
	TooManyLinks:     "TooManyLinks",
	NoSpace:          "NoSpace",
	InvalidArgument:  "InvalidArgument",
	PermissionDenied: "PermissionDenied",
	NotSupported:     "NotSupported",
	NotMounted:       "NotMounted",
	AlreadyMounted:   "AlreadyMounted",
	Closed:           "Closed",
	Cancelled:        "Cancelled",
	Pending:          "Pending",
	ReadOnly:         "ReadOnly",
	CantCreateBackup: "CantCreateBackup",
	WrongETag:        "WrongETag",
	TimedOut:         "TimedOut",
	Busy:             "Busy",
	WouldBlock:       "WouldBlock",
	retry:            "Retry",
}

// rpcNames is the name each Kind is serialized as on the wire (the
// per-backend method table error replies of this system). Kept separate
// from kindNames so the bus-facing name can diverge from the Go
// stringer form without disturbing %v output.
var rpcNames = map[Kind]string{
	Failed:           "org.vfsfabric.Error.Failed",
	NotFound:         "org.vfsfabric.Error.NotFound",
	Exists:           "org.vfsfabric.Error.Exists",
	IsDirectory:      "org.vfsfabric.Error.IsDirectory",
	NotDirectory:     "org.vfsfabric.Error.NotDirectory",
	NotEmpty:         "org.vfsfabric.Error.NotEmpty",
	NotRegularFile:   "org.vfsfabric.Error.NotRegularFile",
	NotSymbolicLink:  "org.vfsfabric.Error.NotSymbolicLink",
	NotMountableFile: "org.vfsfabric.Error.NotMountableFile",
	FilenameTooLong:  "org.vfsfabric.Error.FilenameTooLong",
	InvalidFilename:  "org.vfsfabric.Error.InvalidFilename",
	TooManyLinks:     "org.vfsfabric.Error.TooManyLinks",
	NoSpace:          "org.vfsfabric.Error.NoSpace",
	InvalidArgument:  "org.vfsfabric.Error.InvalidArgument",
	PermissionDenied: "org.vfsfabric.Error.PermissionDenied",
	NotSupported:     "org.vfsfabric.Error.NotSupported",
	NotMounted:       "org.vfsfabric.Error.NotMounted",
	AlreadyMounted:   "org.vfsfabric.Error.AlreadyMounted",
	Closed:           "org.vfsfabric.Error.Closed",
	Cancelled:        "org.vfsfabric.Error.Cancelled",
	Pending:          "org.vfsfabric.Error.Pending",
	ReadOnly:         "org.vfsfabric.Error.ReadOnly",
	CantCreateBackup: "org.vfsfabric.Error.CantCreateBackup",
	WrongETag:        "org.vfsfabric.Error.WrongETag",
	TimedOut:         "org.vfsfabric.Error.TimedOut",
	Busy:             "org.vfsfabric.Error.Busy",
	WouldBlock:       "org.vfsfabric.Error.WouldBlock",
	retry:            "org.vfsfabric.Error.Retry",
}

// errnoByKind maps a Kind to the POSIX errno a FUSE bridge would
// return for it. Every Kind maps to both an RPC error kind and a POSIX
// errno; kinds with no natural errno (Pending, Retry) map to EIO
// rather than inventing new errno values.
var errnoByKind = map[Kind]syscall.Errno{
	Failed:           syscall.EIO,
	NotFound:         syscall.ENOENT,
	Exists:           syscall.EEXIST,
	IsDirectory:      syscall.EISDIR,
	NotDirectory:     syscall.ENOTDIR,
	NotEmpty:         syscall.ENOTEMPTY,
	NotRegularFile:   syscall.EINVAL,
	NotSymbolicLink:  syscall.EINVAL,
	NotMountableFile: syscall.ENODEV,
	FilenameTooLong:  syscall.ENAMETOOLONG,
	InvalidFilename:  syscall.EINVAL,
	TooManyLinks:     syscall.EMLINK,
	NoSpace:          syscall.ENOSPC,
	InvalidArgument:  syscall.EINVAL,
	PermissionDenied: syscall.EACCES,
	NotSupported:     syscall.ENOTSUP,
	NotMounted:       syscall.ENOTCONN,
	AlreadyMounted:   syscall.EALREADY,
	Closed:           syscall.EBADF,
	Cancelled:        syscall.ECANCELED,
	Pending:          syscall.EIO,
	ReadOnly:         syscall.EROFS,
	CantCreateBackup: syscall.EIO,
	WrongETag:        syscall.EAGAIN,
	TimedOut:         syscall.ETIMEDOUT,
	Busy:             syscall.EBUSY,
	WouldBlock:       syscall.EWOULDBLOCK,
	retry:            syscall.EIO,
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// RPCName is the bus error name this Kind is reported under.
func (k Kind) RPCName() string {
	if name, ok := rpcNames[k]; ok {
		return name
	}
	return rpcNames[Failed]
}

// Errno is the POSIX errno a FUSE bridge should surface for this Kind.
func (k Kind) Errno() syscall.Errno {
	if errno, ok := errnoByKind[k]; ok {
		return errno
	}
	return syscall.EIO
}

// kindByRPCName is the reverse of rpcNames, built once at init so the
// RPC layer can classify a bus error name it received from a peer back
// into a Kind.
var kindByRPCName map[string]Kind

func init() {
	kindByRPCName = make(map[string]Kind, len(rpcNames))
	for k, name := range rpcNames {
		kindByRPCName[name] = k
	}
}

// KindFromRPCName classifies a bus error name (e.g.
// "org.vfsfabric.Error.NotFound") back into a Kind, defaulting to
// Failed for any name this fabric didn't mint itself.
func KindFromRPCName(name string) Kind {
	if k, ok := kindByRPCName[name]; ok {
		return k
	}
	return Failed
}

// Error wraps a Kind with a message and an optional cause, following
// rclone's preference (fs/fserrors) for a concrete error type over
// bare sentinel values so callers can attach context without losing the
// ability to classify the failure.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, vfserr.New(NotFound, "")) match on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds a *Error for the given Kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches cause to a new *Error of the given Kind.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// retryError is the single shared Retry sentinel. Its Kind (retry) is
// unexported, so no other package can build an Error of that Kind.
var retryError = &Error{Kind: retry, Message: "internal retry"}

// RetrySentinel returns the internal Retry error; rpcengine uses it to
// recognise Retry replies. The Kind itself is not exported.
func RetrySentinel() error { return retryError }

// IsRetry reports whether err is the internal Retry sentinel.
func IsRetry(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == retry
}

// KindOf extracts the Kind from err, defaulting to Failed for any
// error that didn't originate in this package (e.g. a raw I/O error
// from a backend that forgot to classify it).
func KindOf(err error) Kind {
	if err == nil {
		return Failed
	}
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind
	}
	return Failed
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
