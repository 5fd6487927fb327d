//go:build !windows

package protection

func newDefault(opts Options) (Service, error) {
	return NewLocal(opts)
}

func newDPAPI(Options) (Service, error) {
	return nil, ErrUnsupportedProvider
}
