package court

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPublisher(t *testing.T) {
	t.Setenv("MQTT_PUBLISH_PREFIX", "")

	p := NewPublisher(nil, nil, "")
	require.NotNil(t, p)
	assert.Equal(t, "courtmesh", p.Prefix())
	assert.Equal(t, byte(0), p.qos)
	assert.True(t, p.retain)

	assert.Equal(t, "courts", NewPublisher(nil, nil, "courts").Prefix())

	t.Setenv("MQTT_PUBLISH_PREFIX", "env")
	assert.Equal(t, "env", NewPublisher(nil, nil, "courts").Prefix())
}

func TestPublisher_SetQoS(t *testing.T) {
	p := NewPublisher(nil, nil, "")
	p.SetQoS(2)
	assert.Equal(t, byte(2), p.qos)
	p.SetQoS(7)
	assert.Equal(t, byte(2), p.qos, "invalid QoS is ignored")
	p.SetRetain(false)
	assert.False(t, p.retain)
}

func TestPublisher_WithMock(t *testing.T) {
	t.Setenv("MQTT_PUBLISH_PREFIX", "")
	mock := NewMockClient()
	mock.SetConnected(true)
	state := NewStateTracker(nil)
	p := NewPublisher(mock, state, "courts")

	cam := broadcastCamera()
	d, err := newTestDetector(t).Detect(cam.width, cam.height, courtScene(t, cam))
	require.NoError(t, err)
	result := NewCameraResult("north", d, nil)
	state.Update(result)

	require.NoError(t, p.PublishResult(result))

	msg, ok := mock.LastPublished("courts/north")
	require.True(t, ok)
	assert.True(t, msg.Retain)

	var decoded struct {
		CameraID    string       `json:"cameraId"`
		Calibration *Calibration `json:"calibration"`
		Error       string       `json:"error"`
	}
	require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
	assert.Equal(t, "north", decoded.CameraID)
	require.NotNil(t, decoded.Calibration)
	assert.InDelta(t, d.Calibration.Intrinsics.Focal, decoded.Calibration.Intrinsics.Focal, 1e-9)
	assert.Empty(t, decoded.Error)

	combined, ok := mock.LastPublished("courts/calibrations")
	require.True(t, ok)
	var all struct {
		Cameras   map[string]*Calibration `json:"cameras"`
		Timestamp int64                   `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(combined.Payload, &all))
	assert.Contains(t, all.Cameras, "north")
	assert.NotZero(t, all.Timestamp)
}

func TestPublisher_WithMock_Failure(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)
	p := NewPublisher(mock, nil, "courts")

	result := NewCameraResult("south", nil, errors.New("pose: degenerate geometry"))
	require.NoError(t, p.PublishResult(result))

	msg, ok := mock.LastPublished("courts/south")
	require.True(t, ok)
	assert.Contains(t, string(msg.Payload), "degenerate geometry")

	_, ok = mock.LastPublished("courts/calibrations")
	assert.False(t, ok, "failures do not republish calibrations")
}

func TestPublisher_WithMock_NotConnected(t *testing.T) {
	p := NewPublisher(NewMockClient(), nil, "courts")
	err := p.PublishResult(NewCameraResult("north", nil, errors.New("x")))
	assert.ErrorContains(t, err, "not connected")

	assert.Error(t, NewPublisher(nil, nil, "").PublishResult(&CameraResult{CameraID: "north"}))
}

func TestPublisher_WithMock_PublishError(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)
	mock.SetPublishError(errors.New("broker full"))
	p := NewPublisher(mock, nil, "courts")

	err := p.PublishResult(NewCameraResult("north", nil, errors.New("x")))
	assert.ErrorContains(t, err, "broker full")
}
