//go:build !opencv

package detector

import "fmt"

func newOpenCVEngine() (Engine, error) {
	return nil, fmt.Errorf("%w: opencv support not compiled in (rebuild with -tags opencv)", ErrEngineUnavailable)
}
