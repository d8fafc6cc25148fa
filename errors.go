package simviz

import (
	"errors"
	"fmt"

	"github.com/gogpu/wgpu"
)

// Kind classifies an error by how the runtime reacts to it.
type Kind uint8

const (
	// KindInternal is any error that carries no more specific kind.
	KindInternal Kind = iota

	// KindSurfaceLost means the surface must be reconfigured; the frame is skipped.
	KindSurfaceLost

	// KindSurfaceOutdated means the surface size no longer matches the window.
	KindSurfaceOutdated

	// KindTimeout means surface acquisition timed out; the frame is skipped.
	KindTimeout

	// KindOutOfMemory is fatal: the render loop halts and the host is notified.
	KindOutOfMemory

	// KindDeviceLost is fatal: the render loop halts and the host is notified.
	KindDeviceLost

	// KindInvalidSetting rejects a setting update; state is unchanged.
	KindInvalidSetting

	// KindSerialization rejects a malformed settings tree or preset.
	KindSerialization

	// KindNoActiveSimulation rejects commands sent to an empty manager.
	KindNoActiveSimulation

	// KindPresetNotFound rejects an unknown preset name.
	KindPresetNotFound

	// KindColorSchemeNotFound rejects an unknown color scheme name.
	KindColorSchemeNotFound

	// KindShaderCompilation fails simulation start.
	KindShaderCompilation

	// KindPipelineCreation fails simulation start.
	KindPipelineCreation

	// KindBufferSizeMismatch fails simulation start when a host struct and
	// its WGSL declaration disagree on size.
	KindBufferSizeMismatch

	// KindResourceScalingFailure is degradable: the scaled field is cleared.
	KindResourceScalingFailure

	// KindWebcamUnavailable disables the webcam feature for the session.
	KindWebcamUnavailable
)

var kindNames = [...]string{
	KindInternal:               "Internal",
	KindSurfaceLost:            "SurfaceLost",
	KindSurfaceOutdated:        "SurfaceOutdated",
	KindTimeout:                "Timeout",
	KindOutOfMemory:            "OutOfMemory",
	KindDeviceLost:             "DeviceLost",
	KindInvalidSetting:         "InvalidSetting",
	KindSerialization:          "Serialization",
	KindNoActiveSimulation:     "NoActiveSimulation",
	KindPresetNotFound:         "PresetNotFound",
	KindColorSchemeNotFound:    "ColorSchemeNotFound",
	KindShaderCompilation:      "ShaderCompilation",
	KindPipelineCreation:       "PipelineCreation",
	KindBufferSizeMismatch:     "BufferSizeMismatch",
	KindResourceScalingFailure: "ResourceScalingFailure",
	KindWebcamUnavailable:      "WebcamUnavailable",
}

// String returns the kind name used on the host wire.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Transient reports whether the render loop should skip the frame and retry.
func (k Kind) Transient() bool {
	return k == KindSurfaceLost || k == KindSurfaceOutdated || k == KindTimeout
}

// Fatal reports whether the render loop must halt.
func (k Kind) Fatal() bool {
	return k == KindOutOfMemory || k == KindDeviceLost
}

// Error is the structured error returned across the core's API boundary.
// Name carries the offending setting, preset or scheme name when relevant.
type Error struct {
	Kind    Kind
	Name    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Name != "" {
		msg += " " + fmt.Sprintf("%q", e.Name)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the per-kind sentinels, so errors.Is(err, ErrPresetNotFound)
// holds for any preset lookup failure regardless of name.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Name == "" && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrSurfaceLost            = &Error{Kind: KindSurfaceLost}
	ErrSurfaceOutdated        = &Error{Kind: KindSurfaceOutdated}
	ErrTimeout                = &Error{Kind: KindTimeout}
	ErrOutOfMemory            = &Error{Kind: KindOutOfMemory}
	ErrDeviceLost             = &Error{Kind: KindDeviceLost}
	ErrInvalidSetting         = &Error{Kind: KindInvalidSetting}
	ErrSerialization          = &Error{Kind: KindSerialization}
	ErrNoActiveSimulation     = &Error{Kind: KindNoActiveSimulation}
	ErrPresetNotFound         = &Error{Kind: KindPresetNotFound}
	ErrColorSchemeNotFound    = &Error{Kind: KindColorSchemeNotFound}
	ErrShaderCompilation      = &Error{Kind: KindShaderCompilation}
	ErrPipelineCreation       = &Error{Kind: KindPipelineCreation}
	ErrBufferSizeMismatch     = &Error{Kind: KindBufferSizeMismatch}
	ErrResourceScalingFailure = &Error{Kind: KindResourceScalingFailure}
	ErrWebcamUnavailable      = &Error{Kind: KindWebcamUnavailable}
)

// Errorf builds a structured error of the given kind.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// InvalidSetting reports a rejected setting or state update.
func InvalidSetting(name, format string, args ...any) error {
	return &Error{Kind: KindInvalidSetting, Name: name, Message: fmt.Sprintf(format, args...)}
}

// Serialization reports a malformed settings tree.
func Serialization(reason string, err error) error {
	return &Error{Kind: KindSerialization, Message: reason, Err: err}
}

// PresetNotFound reports an unknown preset name.
func PresetNotFound(name string) error {
	return &Error{Kind: KindPresetNotFound, Name: name}
}

// ColorSchemeNotFound reports an unknown color scheme name.
func ColorSchemeNotFound(name string) error {
	return &Error{Kind: KindColorSchemeNotFound, Name: name}
}

// KindOf classifies err. Structured errors report their own kind; raw wgpu
// sentinels are mapped to the matching kind; anything else is KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, wgpu.ErrSurfaceLost):
		return KindSurfaceLost
	case errors.Is(err, wgpu.ErrSurfaceOutdated):
		return KindSurfaceOutdated
	case errors.Is(err, wgpu.ErrTimeout):
		return KindTimeout
	case errors.Is(err, wgpu.ErrOutOfMemory):
		return KindOutOfMemory
	case errors.Is(err, wgpu.ErrDeviceLost):
		return KindDeviceLost
	}
	return KindInternal
}

// Classify returns err as a structured *Error, wrapping it with its kind if
// it is not one already.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindOf(err), Err: err}
}
