package gotdclient

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	gotderr "github.com/gotd/td/tgerr"

	"tgforward/internal/tgerr"
)

func TestClassify_FloodWaitBecomesRateLimit(t *testing.T) {
	err := classify(&gotderr.Error{Code: 420, Type: "FLOOD_WAIT", Argument: 30})
	wait, ok := tgerr.AsRateLimit(err)
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, wait)
}

func TestClassify_AuthKeyBecomesAuthorization(t *testing.T) {
	err := classify(&gotderr.Error{Code: 401, Type: "AUTH_KEY_UNREGISTERED"})
	assert.True(t, tgerr.Is(err, tgerr.KindAuthorization))
}

func TestClassify_ChannelPrivateBecomesPermission(t *testing.T) {
	err := classify(&gotderr.Error{Code: 400, Type: "CHANNEL_PRIVATE"})
	assert.True(t, tgerr.Is(err, tgerr.KindPermission))
}

func TestClassify_UnknownPlainErrorBecomesTransient(t *testing.T) {
	err := classify(errors.New("connection reset"))
	assert.True(t, tgerr.Is(err, tgerr.KindTransient))
}

func TestClassify_NilPassesThrough(t *testing.T) {
	assert.Nil(t, classify(nil))
}
