package config

import (
	"crypto/rand"
	"strings"
)

const (
	topicPrefix  = "attn-"
	topicLength  = 24
	topicCharset = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// GenerateTopic returns a random ntfy topic. The topic doubles as the
// only shared secret between daemon and phone, so it is drawn from the
// system CSPRNG to be unguessable on the public ntfy.sh server.
func GenerateTopic() string {
	// 252 is the largest multiple of len(topicCharset) below 256;
	// rejecting bytes at or above it keeps the selection uniform.
	const limit = 256 - 256%len(topicCharset)

	var b strings.Builder
	b.WriteString(topicPrefix)

	buf := make([]byte, topicLength)
	for b.Len() < len(topicPrefix)+topicLength {
		if _, err := rand.Read(buf); err != nil {
			// crypto/rand never fails on supported platforms.
			panic("config: system RNG unavailable: " + err.Error())
		}
		for _, c := range buf {
			if int(c) >= limit {
				continue
			}
			b.WriteByte(topicCharset[int(c)%len(topicCharset)])
			if b.Len() == len(topicPrefix)+topicLength {
				break
			}
		}
	}
	return b.String()
}

// ValidTopic reports whether a topic has the generated shape.
func ValidTopic(topic string) bool {
	if !strings.HasPrefix(topic, topicPrefix) {
		return false
	}
	suffix := strings.TrimPrefix(topic, topicPrefix)
	if len(suffix) != topicLength {
		return false
	}
	for _, c := range suffix {
		if !strings.ContainsRune(topicCharset, c) {
			return false
		}
	}
	return true
}
