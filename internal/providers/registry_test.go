package providers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bobarin/director/internal/credentials"
)

func TestNewTextAdapterUnknownKindIsConfigError(t *testing.T) {
	_, err := NewTextAdapter("not-a-real-provider", credentials.Credentials{})
	require.Error(t, err)
}

func TestNewImageAdapterKnownKind(t *testing.T) {
	adapter, err := NewImageAdapter(ImageProviderGemini, credentials.Credentials{Token: "k"})
	require.NoError(t, err)
	require.NotNil(t, adapter)
}

func TestNewVideoAdapterKnownKind(t *testing.T) {
	adapter, err := NewVideoAdapter(VideoProviderXAI, credentials.Credentials{Token: "k"})
	require.NoError(t, err)
	require.NotNil(t, adapter)
}

func TestNewCompileAdapterNoneReturnsNilWithoutError(t *testing.T) {
	adapter, err := NewCompileAdapter(CompileProviderNone, credentials.Credentials{})
	require.NoError(t, err)
	require.Nil(t, adapter)
}

func TestNewCompileAdapterUnknownKindIsConfigError(t *testing.T) {
	_, err := NewCompileAdapter("not-a-real-provider", credentials.Credentials{})
	require.Error(t, err)
}

func TestNewBundleResolvesAllFourCapabilities(t *testing.T) {
	bundle, err := NewBundle(
		credentials.Credentials{ProviderTag: "openai", Token: "k"},
		credentials.Credentials{ProviderTag: "gemini", Token: "k"},
		credentials.Credentials{ProviderTag: "xai", Token: "k"},
		credentials.Credentials{ProviderTag: "none"},
	)
	require.NoError(t, err)
	require.NotNil(t, bundle.Text)
	require.NotNil(t, bundle.Image)
	require.NotNil(t, bundle.Video)
	require.Nil(t, bundle.Compile)
}

func TestNewBundleDefaultsEmptyCompileTagToNone(t *testing.T) {
	bundle, err := NewBundle(
		credentials.Credentials{ProviderTag: "openai", Token: "k"},
		credentials.Credentials{ProviderTag: "gemini", Token: "k"},
		credentials.Credentials{ProviderTag: "xai", Token: "k"},
		credentials.Credentials{},
	)
	require.NoError(t, err)
	require.Nil(t, bundle.Compile)
}

func TestNewBundlePropagatesUnknownProviderTag(t *testing.T) {
	_, err := NewBundle(
		credentials.Credentials{ProviderTag: "not-a-real-provider"},
		credentials.Credentials{ProviderTag: "gemini"},
		credentials.Credentials{ProviderTag: "xai"},
		credentials.Credentials{},
	)
	require.Error(t, err)
}
