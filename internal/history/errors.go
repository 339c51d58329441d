package history

type storeError string

// ErrClosed is returned by stores used after Close.
const ErrClosed = storeError("store closed")

func (e storeError) Error() string {
	return string(e)
}
