//go:build !opencv

package detector

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewEngine_OpenCVNotCompiledIn(t *testing.T) {
	_, err := NewEngine(EngineOpenCV)
	require.ErrorIs(t, err, ErrEngineUnavailable)

	_, err = NewWithEngine("OpenCV")
	require.ErrorIs(t, err, ErrEngineUnavailable)
}
