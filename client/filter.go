package client

// AddMsgFilter installs f for messages whose subject is exactly subject,
// replacing any filter already there.
func (nc *Conn) AddMsgFilter(subject string, f MsgFilter) {
	nc.subsMu.Lock()
	defer nc.subsMu.Unlock()

	if nc.filters == nil {
		nc.filters = make(map[string]MsgFilter)
	}
	nc.filters[subject] = f
}

func (nc *Conn) RemoveMsgFilter(subject string) {
	nc.subsMu.Lock()
	defer nc.subsMu.Unlock()

	delete(nc.filters, subject)

	if len(nc.filters) == 0 {
		nc.filters = nil
	}
}
