package media

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCapabilitiesSupports(t *testing.T) {
	caps := RTPCapabilities{Codecs: []CodecCapability{
		{MimeType: "audio/opus"},
		{MimeType: "video/VP8"},
	}}

	require.True(t, caps.Supports("audio/opus"))
	require.True(t, caps.Supports("Video/vp8"))
	require.False(t, caps.Supports("video/H264"))
	require.False(t, RTPCapabilities{}.Supports("audio/opus"))
}

func TestDefaultCodecs(t *testing.T) {
	caps := RTPCapabilities{Codecs: DefaultCodecs()}
	require.True(t, caps.Supports("audio/opus"))
	require.True(t, caps.Supports("video/VP8"))
}
