package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgforward/internal/model"
)

func TestParse_SixSyntaxes(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		wantKey model.ChannelKey
		wantMsg int
	}{
		{"at_username", "@mychannel", model.ChannelKey{Username: "mychannel"}, 0},
		{"bare_username", "mychannel", model.ChannelKey{Username: "mychannel"}, 0},
		{"public_url", "https://t.me/mychannel", model.ChannelKey{Username: "mychannel"}, 0},
		{"public_url_with_msg", "https://t.me/mychannel/42", model.ChannelKey{Username: "mychannel"}, 42},
		{"private_numeric", "-1001234567890", model.ChannelKey{ID: -1001234567890}, 0},
		{"private_url", "https://t.me/c/1234567890/7", model.ChannelKey{ID: 1234567890}, 7},
		{"invite_url", "https://t.me/+AbCdEf123", model.ChannelKey{Username: "https://t.me/+AbCdEf123"}, 0},
		{"invite_bare", "+AbCdEf123", model.ChannelKey{Username: "https://t.me/+AbCdEf123"}, 0},
		{"joinchat", "https://t.me/joinchat/AbCdEf123", model.ChannelKey{Username: "https://t.me/joinchat/AbCdEf123"}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ref, err := Parse(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.wantKey, ref.Key)
			assert.Equal(t, tc.wantMsg, ref.EmbeddedMsg)
		})
	}
}

func TestParse_InvalidInputs(t *testing.T) {
	cases := []string{
		"",
		"ab",             // too short for username regex
		"123abc!!",       // not numeric, not a valid username
		"https://example.com/channel",
		"https://t.me/c/notanumber",
	}
	for _, in := range cases {
		_, err := Parse(in)
		assert.Error(t, err, "input %q should fail to parse", in)
	}
}

func TestParse_RoundTrip(t *testing.T) {
	// parse -> format -> parse yields an equivalent canonical key (spec §8).
	inputs := []string{"@mychannel", "mychannel", "https://t.me/mychannel"}
	var keys []model.ChannelKey
	for _, in := range inputs {
		ref, err := Parse(in)
		require.NoError(t, err)
		keys = append(keys, ref.Key)
	}
	for i := 1; i < len(keys); i++ {
		assert.Equal(t, keys[0], keys[i], "all forms of the same channel should canonicalize equally")
	}
}
