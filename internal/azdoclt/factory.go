package azdoclt

import "sync"

// Factory returns one Client per personal access token.
type Factory struct {
	lock    sync.Mutex
	clients map[string]*Client
}

func NewFactory() *Factory {
	return &Factory{clients: map[string]*Client{}}
}

// Get returns the client for token, it is created on the first call.
func (f *Factory) Get(token string) *Client {
	f.lock.Lock()
	defer f.lock.Unlock()

	if clt, exist := f.clients[token]; exist {
		return clt
	}

	clt := New(token)
	f.clients[token] = clt

	return clt
}
