//go:build !windows

package formfill

import "errors"

func newSendInput(Options) (Injector, error) {
	return nil, errors.New("formfill: sendinput backend requires windows")
}
