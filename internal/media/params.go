package media

import "strings"

// Wire-level parameter types exchanged with clients. They deliberately mirror
// the ORTC shapes (ICE/DTLS/SCTP parameters, RTP codec descriptions) so the
// signaling layer can marshal them as-is.

type CodecCapability struct {
	MimeType     string   `json:"mimeType"`
	ClockRate    uint32   `json:"clockRate"`
	Channels     uint16   `json:"channels,omitempty"`
	SDPFmtpLine  string   `json:"sdpFmtpLine,omitempty"`
	RTCPFeedback []string `json:"rtcpFeedback,omitempty"`
}

type RTPCapabilities struct {
	Codecs []CodecCapability `json:"codecs"`
}

// Supports reports whether caps can receive the given codec mime type.
// Mime types compare case-insensitively.
func (c RTPCapabilities) Supports(mimeType string) bool {
	for _, codec := range c.Codecs {
		if strings.EqualFold(codec.MimeType, mimeType) {
			return true
		}
	}
	return false
}

type RTPEncoding struct {
	SSRC uint32 `json:"ssrc"`
	RID  string `json:"rid,omitempty"`
}

// RTPParameters describe one producer's stream as sent by the client.
type RTPParameters struct {
	MimeType    string        `json:"mimeType"`
	PayloadType uint8         `json:"payloadType"`
	ClockRate   uint32        `json:"clockRate"`
	Channels    uint16        `json:"channels,omitempty"`
	Encodings   []RTPEncoding `json:"encodings"`
}

type ICEParameters struct {
	UsernameFragment string `json:"usernameFragment"`
	Password         string `json:"password"`
	ICELite          bool   `json:"iceLite"`
}

type ICECandidate struct {
	Foundation string `json:"foundation"`
	Priority   uint32 `json:"priority"`
	Address    string `json:"address"`
	Protocol   string `json:"protocol"`
	Port       uint16 `json:"port"`
	Type       string `json:"type"`
}

type DTLSFingerprint struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

type DTLSParameters struct {
	Role         string            `json:"role"`
	Fingerprints []DTLSFingerprint `json:"fingerprints"`
}

type SCTPCapabilities struct {
	MaxMessageSize uint32 `json:"maxMessageSize"`
}

// TransportInfo is returned to the client after transport allocation; it is
// everything the remote side needs to connect.
type TransportInfo struct {
	ID             string           `json:"id"`
	ICEParameters  ICEParameters    `json:"iceParameters"`
	ICECandidates  []ICECandidate   `json:"iceCandidates"`
	DTLSParameters DTLSParameters   `json:"dtlsParameters"`
	SCTPParameters SCTPCapabilities `json:"sctpParameters"`
}

// DataProducerOptions mirror the data-channel subset of the produce contract.
type DataProducerOptions struct {
	Label    string `json:"label"`
	Protocol string `json:"protocol,omitempty"`
	StreamID uint16 `json:"streamId"`
}
