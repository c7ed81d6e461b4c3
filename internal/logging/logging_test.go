package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToInfoAndTextFormat(t *testing.T) {
	var buf bytes.Buffer
	entry, err := New("tracker", Options{Output: &buf})
	require.NoError(t, err)

	assert.Equal(t, logrus.InfoLevel, entry.Logger.Level)
	entry.Info("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "component=tracker")
}

func TestNewRejectsInvalidLevel(t *testing.T) {
	_, err := New("tracker", Options{Level: "not-a-level"})
	assert.Error(t, err)
}

func TestNewHonorsJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	entry, err := New("backend", Options{Output: &buf, JSON: true})
	require.NoError(t, err)

	entry.Warn("uh oh")
	assert.Contains(t, buf.String(), `"msg":"uh oh"`)
}
