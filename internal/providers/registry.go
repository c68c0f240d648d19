package providers

import (
	"fmt"

	"github.com/bobarin/director/internal/credentials"
)

// TextProviderKind, ImageProviderKind, VideoProviderKind and
// CompileProviderKind are closed tagged variants: each a string-backed enum
// with an exhaustive switch constructor below. Adding a vendor means adding
// a case here, not a new string sprinkled through the call sites — the
// REDESIGN FLAGS in spec §9 call this out explicitly against the teacher's
// original string-keyed provider dispatch in services/factory-style code.
type TextProviderKind string

const (
	TextProviderOpenAI TextProviderKind = "openai"
)

type ImageProviderKind string

const (
	ImageProviderGemini ImageProviderKind = "gemini"
)

type VideoProviderKind string

const (
	VideoProviderXAI VideoProviderKind = "xai"
)

type CompileProviderKind string

const (
	CompileProviderFFmpeg CompileProviderKind = "ffmpeg"
	CompileProviderNone   CompileProviderKind = "none"
)

// NewTextAdapter is the exhaustive constructor for TextCompletion adapters.
func NewTextAdapter(kind TextProviderKind, creds credentials.Credentials) (TextCompletion, error) {
	switch kind {
	case TextProviderOpenAI:
		return newOpenAIText(creds), nil
	default:
		return nil, fmt.Errorf("providers: unknown text provider kind %q", kind)
	}
}

// NewImageAdapter is the exhaustive constructor for ImageSynthesis adapters.
func NewImageAdapter(kind ImageProviderKind, creds credentials.Credentials) (ImageSynthesis, error) {
	switch kind {
	case ImageProviderGemini:
		return newGeminiImage(creds), nil
	default:
		return nil, fmt.Errorf("providers: unknown image provider kind %q", kind)
	}
}

// NewVideoAdapter is the exhaustive constructor for VideoSynthesis adapters.
func NewVideoAdapter(kind VideoProviderKind, creds credentials.Credentials) (VideoSynthesis, error) {
	switch kind {
	case VideoProviderXAI:
		return newXAIVideo(creds), nil
	default:
		return nil, fmt.Errorf("providers: unknown video provider kind %q", kind)
	}
}

// NewCompileAdapter is the exhaustive constructor for Compilation adapters.
// CompileProviderNone returns a nil Compilation and no error — the caller
// (Bundle construction) treats a nil Compile as "skip the Compiling phase",
// per spec §4.1.
func NewCompileAdapter(kind CompileProviderKind, creds credentials.Credentials) (Compilation, error) {
	switch kind {
	case CompileProviderFFmpeg:
		return newFFmpegCompile(creds), nil
	case CompileProviderNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("providers: unknown compile provider kind %q", kind)
	}
}

// NewBundle builds all four adapters from already-looked-up Credentials,
// using each one's ProviderTag as the adapter kind. An empty compile tag
// is treated as CompileProviderNone; any unknown tag returns the matching
// constructor's error. It does not consult a credential Store.
func NewBundle(
	textCreds credentials.Credentials,
	imageCreds credentials.Credentials,
	videoCreds credentials.Credentials,
	compileCreds credentials.Credentials,
) (Bundle, error) {
	text, err := NewTextAdapter(TextProviderKind(textCreds.ProviderTag), textCreds)
	if err != nil {
		return Bundle{}, err
	}
	image, err := NewImageAdapter(ImageProviderKind(imageCreds.ProviderTag), imageCreds)
	if err != nil {
		return Bundle{}, err
	}
	video, err := NewVideoAdapter(VideoProviderKind(videoCreds.ProviderTag), videoCreds)
	if err != nil {
		return Bundle{}, err
	}
	compileKind := CompileProviderKind(compileCreds.ProviderTag)
	if compileKind == "" {
		compileKind = CompileProviderNone
	}
	compile, err := NewCompileAdapter(compileKind, compileCreds)
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{Text: text, Image: image, Video: video, Compile: compile}, nil
}
