package client

import (
	"fmt"
	"math/rand"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/luma/herald/protocol"
)

const srvPoolSize = 4

// srv is a server in the pool, along with what we learned trying it.
type srv struct {
	url        *url.URL
	didConnect bool
	reconnects int
	lastErr    error
	isImplicit bool
}

// setupServerPool builds the pool from Url and Servers, falling back to
// DefaultURL. Must be called with nc.mu held.
func (nc *Conn) setupServerPool() error {
	nc.srvPool = make([]*srv, 0, srvPoolSize)
	nc.urls = make(map[string]struct{}, srvPoolSize)

	for _, s := range nc.Opts.Servers {
		if err := nc.addURLToPool(s, false); err != nil {
			return err
		}
	}

	if !nc.Opts.NoRandomize {
		nc.shufflePool(0)
	}

	// An explicit Url always goes first.
	if nc.Opts.Url != "" {
		if err := nc.addURLToPool(nc.Opts.Url, false); err != nil {
			return err
		}

		last := len(nc.srvPool) - 1
		nc.srvPool[0], nc.srvPool[last] = nc.srvPool[last], nc.srvPool[0]
	} else if len(nc.srvPool) == 0 {
		if err := nc.addURLToPool(DefaultURL, false); err != nil {
			return err
		}
	}

	nc.current = nc.srvPool[0]

	return nil
}

func (nc *Conn) addURLToPool(sURL string, implicit bool) error {
	if !strings.Contains(sURL, "://") {
		sURL = "nats://" + sURL
	}

	u, err := url.Parse(sURL)
	if err != nil {
		return err
	}

	if u.Hostname() == "" {
		return fmt.Errorf("nats: invalid server url '%s'", sURL)
	}

	if u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(protocol.DefaultPort))
	}

	nc.srvPool = append(nc.srvPool, &srv{url: u, isImplicit: implicit})
	nc.urls[u.Host] = struct{}{}

	return nil
}

// shufflePool shuffles the pool from offset onwards.
func (nc *Conn) shufflePool(offset int) {
	if len(nc.srvPool) <= offset+1 {
		return
	}

	rand.Shuffle(len(nc.srvPool)-offset, func(i, j int) {
		nc.srvPool[offset+i], nc.srvPool[offset+j] = nc.srvPool[offset+j], nc.srvPool[offset+i]
	})
}

func (nc *Conn) currentServer() (int, *srv) {
	for i, s := range nc.srvPool {
		if s == nc.current {
			return i, s
		}
	}

	return -1, nil
}

// selectNextServer moves the current server to the back of the pool, or
// drops it once it used up its reconnect attempts, and makes the head of
// the pool current. Must be called with nc.mu held.
func (nc *Conn) selectNextServer() (*srv, error) {
	i, s := nc.currentServer()
	if i < 0 {
		return nil, ErrNoServers
	}

	sp := nc.srvPool
	num := len(sp)
	copy(sp[i:num-1], sp[i+1:num])

	maxReconnect := nc.Opts.MaxReconnect
	if maxReconnect < 0 || s.reconnects < maxReconnect {
		nc.srvPool[num-1] = s
	} else {
		nc.srvPool = sp[0 : num-1]
		delete(nc.urls, s.url.Host)
	}

	if len(nc.srvPool) == 0 {
		nc.current = nil
		return nil, ErrNoServers
	}

	nc.current = nc.srvPool[0]

	return nc.srvPool[0], nil
}

// addDiscoveredServers merges the connect_urls of an INFO into the pool,
// dropping implicit servers the cluster no longer advertises. It reports
// whether any server was added. Must be called with nc.mu held.
func (nc *Conn) addDiscoveredServers(connectURLs []string) bool {
	advertised := make(map[string]struct{}, len(connectURLs))
	for _, u := range connectURLs {
		advertised[u] = struct{}{}
	}

	kept := nc.srvPool[:0]
	for _, s := range nc.srvPool {
		if _, ok := advertised[s.url.Host]; s.isImplicit && !ok && s != nc.current {
			delete(nc.urls, s.url.Host)
			continue
		}
		kept = append(kept, s)
	}
	nc.srvPool = kept

	var added bool
	for _, u := range connectURLs {
		if _, ok := nc.urls[u]; ok {
			continue
		}

		if err := nc.addURLToPool(u, true); err != nil {
			nc.log.Debug("Ignoring malformed discovered server")
			continue
		}

		added = true
	}

	if added && !nc.Opts.NoRandomize {
		nc.shufflePool(1)
	}

	return added
}

func (nc *Conn) serverURLs(implicitOnly bool) []string {
	nc.mu.RLock()
	defer nc.mu.RUnlock()

	urls := make([]string, 0, len(nc.srvPool))
	for _, s := range nc.srvPool {
		if implicitOnly && !s.isImplicit {
			continue
		}

		urls = append(urls, s.url.String())
	}

	return urls
}

// Servers returns every server in the pool.
func (nc *Conn) Servers() []string {
	return nc.serverURLs(false)
}

// DiscoveredServers returns the servers learned from the cluster.
func (nc *Conn) DiscoveredServers() []string {
	return nc.serverURLs(true)
}
