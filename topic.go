package mqsession

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MQTT limits used when validating requests.
const (
	// MaxTopicLength is the maximum length of an MQTT topic (2 bytes for length prefix)
	MaxTopicLength = 65535

	// MaxPayloadSize is the largest payload that fits a PUBLISH with the
	// shortest topic and a packet identifier.
	MaxPayloadSize = 268435455 - 2 - 1 - 2
)

// MatchTopic reports whether topic matches filter.
//
// '+' matches exactly one level and '#' matches the remaining levels,
// including none. Filters starting with a wildcard never match topics that
// start with '$'.
func MatchTopic(filter, topic string) bool {
	if strings.HasPrefix(topic, "$") && (strings.HasPrefix(filter, "+") || strings.HasPrefix(filter, "#")) {
		return false
	}

	for {
		fLevel, fRest, fMore := strings.Cut(filter, "/")
		if fLevel == "#" {
			return true
		}
		tLevel, tRest, tMore := strings.Cut(topic, "/")
		if fLevel != "+" && fLevel != tLevel {
			return false
		}
		switch {
		case !fMore && !tMore:
			return true
		case !fMore:
			return false
		case !tMore:
			// "a/#" matches "a": the parent level is included.
			return fRest == "#"
		}
		filter, topic = fRest, tRest
	}
}

// ValidateTopic reports whether topic can be published to. The error wraps
// ErrInvalidTopic.
func ValidateTopic(topic string) error {
	return validatePublishTopic(topic, 0)
}

// ValidateFilter reports whether filter can be subscribed to. The error
// wraps ErrInvalidTopic.
func ValidateFilter(filter string) error {
	return validateSubscribeTopic(filter)
}

// validatePublishTopic validates a topic for publishing.
// Publish topics must not contain wildcards. maxLen 0 means MaxTopicLength.
func validatePublishTopic(topic string, maxLen int) error {
	if err := validateTopicString(topic, "topic", maxLen); err != nil {
		return err
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: wildcards are not allowed in a PUBLISH topic", ErrInvalidTopic)
	}
	return nil
}

// validateSubscribeTopic validates a topic filter for subscribing.
func validateSubscribeTopic(filter string) error {
	if err := validateTopicString(filter, "topic filter", 0); err != nil {
		return err
	}

	parts := strings.Split(filter, "/")
	for i, part := range parts {
		if strings.Contains(part, "+") && part != "+" {
			return fmt.Errorf("%w: '+' must occupy an entire level", ErrInvalidTopic)
		}
		if strings.Contains(part, "#") && (part != "#" || i != len(parts)-1) {
			return fmt.Errorf("%w: '#' must be the last level on its own", ErrInvalidTopic)
		}
	}
	return nil
}

func validateTopicString(s, what string, maxLen int) error {
	if maxLen <= 0 {
		maxLen = MaxTopicLength
	}
	switch {
	case s == "":
		return fmt.Errorf("%w: %s cannot be empty", ErrInvalidTopic, what)
	case len(s) > maxLen:
		return fmt.Errorf("%w: %s length %d exceeds maximum %d", ErrInvalidTopic, what, len(s), maxLen)
	case strings.IndexByte(s, 0) >= 0:
		return fmt.Errorf("%w: %s contains a null character", ErrInvalidTopic, what)
	case !utf8.ValidString(s):
		return fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidTopic, what)
	}
	return nil
}

// validatePayload validates message payload size.
func validatePayload(payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize)
	}
	return nil
}
