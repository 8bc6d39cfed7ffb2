package mqsession

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchTopic(t *testing.T) {
	tests := []struct {
		filter  string
		match   []string
		noMatch []string
	}{
		{
			filter:  "devices/sensor-1/status",
			match:   []string{"devices/sensor-1/status"},
			noMatch: []string{"devices/sensor-2/status", "devices/sensor-1", "devices/sensor-1/status/x"},
		},
		{
			filter:  "devices/+/status",
			match:   []string{"devices/a/status", "devices//status"},
			noMatch: []string{"devices/status", "devices/a/b/status", "x/a/status"},
		},
		{
			filter:  "devices/mqttagent/cmd/#",
			match:   []string{"devices/mqttagent/cmd", "devices/mqttagent/cmd/reboot", "devices/mqttagent/cmd/led/on"},
			noMatch: []string{"devices/mqttagent/cmdx", "devices/mqttagent/status"},
		},
		{
			filter:  "+/+/#",
			match:   []string{"a/b", "a/b/c/d"},
			noMatch: []string{"a"},
		},
		{
			filter:  "#",
			match:   []string{"a", "a/b/c", "/leading"},
			noMatch: []string{"$SYS/broker/uptime"},
		},
		{
			filter:  "+/broker/uptime",
			noMatch: []string{"$SYS/broker/uptime"},
		},
		{
			filter: "$SYS/#",
			match:  []string{"$SYS/broker/uptime"},
		},
		{
			filter:  "trailing/",
			match:   []string{"trailing/"},
			noMatch: []string{"trailing"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			for _, topic := range tt.match {
				assert.Truef(t, MatchTopic(tt.filter, topic), "%q should match %q", tt.filter, topic)
			}
			for _, topic := range tt.noMatch {
				assert.Falsef(t, MatchTopic(tt.filter, topic), "%q should not match %q", tt.filter, topic)
			}
		})
	}
}

func ExampleMatchTopic() {
	filter := "devices/+/cmd/#"
	for _, topic := range []string{"devices/lamp/cmd/on", "devices/lamp/status"} {
		fmt.Printf("%s: %v\n", topic, MatchTopic(filter, topic))
	}

	// Output:
	// devices/lamp/cmd/on: true
	// devices/lamp/status: false
}

func TestValidatePublishTopic(t *testing.T) {
	valid := []string{
		"devices/mqttagent/status",
		"/leading/slash",
		"spaces are fine",
		strings.Repeat("t", MaxTopicLength),
	}
	for _, topic := range valid {
		assert.NoError(t, validatePublishTopic(topic, 0), "%.20q", topic)
	}

	invalid := map[string]string{
		"empty":      "",
		"plus":       "devices/+/status",
		"hash":       "devices/#",
		"nul":        "devices\x00status",
		"bad utf8":   "devices/\xc3\x28",
		"too long":   strings.Repeat("t", MaxTopicLength+1),
		"embedded +": "a+b",
	}
	for name, topic := range invalid {
		assert.ErrorIs(t, validatePublishTopic(topic, 0), ErrInvalidTopic, name)
	}

	// a lower limit replaces MaxTopicLength
	assert.ErrorIs(t, validatePublishTopic("abcdef", 5), ErrInvalidTopic)
	assert.NoError(t, validatePublishTopic("abcde", 5))
}

func TestValidateSubscribeTopic(t *testing.T) {
	valid := []string{
		"devices/mqttagent/cmd/#",
		"#",
		"+",
		"+/+/+",
		"devices/+/status",
		"$SYS/#",
		"a//b",
	}
	for _, filter := range valid {
		assert.NoError(t, validateSubscribeTopic(filter), filter)
	}

	invalid := []string{
		"",
		"devices/#/status",
		"devices/cmd#",
		"devices/a+/status",
		"##",
		"a/\x00",
	}
	for _, filter := range invalid {
		assert.ErrorIs(t, validateSubscribeTopic(filter), ErrInvalidTopic, "%q", filter)
	}
}

func TestExportedValidators(t *testing.T) {
	assert.NoError(t, ValidateTopic("devices/mqttagent/status"))
	assert.ErrorIs(t, ValidateTopic("devices/+/status"), ErrInvalidTopic)

	assert.NoError(t, ValidateFilter("devices/mqttagent/cmd/#"))
	assert.ErrorIs(t, ValidateFilter("devices/x/#/bad"), ErrInvalidTopic)
}

func TestValidatePayload(t *testing.T) {
	assert.NoError(t, validatePayload(nil))
	assert.NoError(t, validatePayload([]byte("1")))
}
