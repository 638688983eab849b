package testserver

import (
	"math/rand"
	"strings"
)

type subscription struct {
	client  *client
	subject string
	queue   string
	sid     int64

	max       uint64
	delivered uint64
}

// subjectMatches reports whether subject is covered by pattern, where "*"
// matches a single token and a trailing ">" one or more.
func subjectMatches(pattern, subject string) bool {
	pts := strings.Split(pattern, ".")
	sts := strings.Split(subject, ".")

	for i, pt := range pts {
		if pt == ">" {
			return i == len(pts)-1 && len(sts) > i
		}

		if i >= len(sts) {
			return false
		}

		if pt != "*" && pt != sts[i] {
			return false
		}
	}

	return len(pts) == len(sts)
}

// sublist is the set of subscriptions of every client. It is not safe for
// concurrent use; the server guards it with its own mutex.
type sublist struct {
	subs map[*subscription]struct{}
}

func newSublist() *sublist {
	return &sublist{subs: make(map[*subscription]struct{})}
}

func (s *sublist) insert(sub *subscription) {
	s.subs[sub] = struct{}{}
}

func (s *sublist) remove(sub *subscription) {
	delete(s.subs, sub)
}

func (s *sublist) removeClient(c *client) {
	for sub := range s.subs {
		if sub.client == c {
			delete(s.subs, sub)
		}
	}
}

func (s *sublist) len() int {
	return len(s.subs)
}

// match returns every plain subscription on subject, plus one member of
// each queue group.
func (s *sublist) match(subject string) []*subscription {
	var (
		plain  []*subscription
		groups map[string][]*subscription
	)

	for sub := range s.subs {
		if !subjectMatches(sub.subject, subject) {
			continue
		}

		if sub.queue == "" {
			plain = append(plain, sub)
			continue
		}

		if groups == nil {
			groups = make(map[string][]*subscription)
		}
		groups[sub.queue] = append(groups[sub.queue], sub)
	}

	for _, members := range groups {
		plain = append(plain, members[rand.Intn(len(members))])
	}

	return plain
}
